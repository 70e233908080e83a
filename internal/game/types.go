package game

// Attacker captures the attacking side of a melee exchange: how many
// models swing and with what profile.
type Attacker struct {
	UnitID   string
	UnitName string
	Models   int // models assigned to fight
	WSkill   int // hit threshold (2-6)
	Strength int
	AP       int // negative worsens the save
	Attacks  string // dice expr or int, per model
	Damage   string // dice expr or int, per unsaved wound
	Weapon   string
}

// Defender captures the minimal stats needed for resolution.
type Defender struct {
	UnitID    string
	UnitName  string
	Toughness int
	Save      int // 2-6; 7 means none
	InvSave   int // 0 if none
	FNP       int // 0 if none, else threshold (e.g., 5 means 5+)
}

// MeleeResult captures outcome and the step-by-step log.
type MeleeResult struct {
	Logs    []string `json:"logs"`
	Attacks int      `json:"attacks"`
	Hits    int      `json:"hits"`
	Wounds  int      `json:"wounds"`
	Saved   int      `json:"saved"`
	Unsaved int      `json:"unsaved"`
	// Damage holds post-Feel-No-Pain damage per unsaved wound, in the
	// order the wounds are allocated to models.
	Damage      []int `json:"damage"`
	DamageTotal int   `json:"damage_total"`
}
