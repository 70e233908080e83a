package stats

// ResetDaily clears the daily max-attack map. Intended for tests and dev
// convenience.
func ResetDaily() {
	mu.Lock()
	defer mu.Unlock()
	for k := range dailyMax {
		delete(dailyMax, k)
	}
}

// ResetMatches clears all per-match stats.
func ResetMatches() {
	mu.Lock()
	defer mu.Unlock()
	for k := range matches {
		delete(matches, k)
	}
}
