// Package api is the HTTP client for the army data service. The game
// server and the simulator use it to pull faction catalogs and datasheets
// without bundling the YAML library themselves.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pefman/w40k-tabletop/internal/library"
)

// FactionInfo is the catalog listing entry.
type FactionInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Datasheets int    `json:"datasheets"`
}

// Client talks to one data service instance. Faction listings are cached
// briefly to keep lobby refreshes off the data service.
type Client struct {
	base string
	http *http.Client

	mu        sync.RWMutex
	factions  []FactionInfo
	cachedAt  time.Time
	cacheTTL  time.Duration
}

// NewClient builds a client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		base:     strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: 8 * time.Second},
		cacheTTL: 5 * time.Minute,
	}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("data api %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Factions lists the loaded factions, served from cache when fresh.
func (c *Client) Factions(ctx context.Context) ([]FactionInfo, error) {
	c.mu.RLock()
	if time.Since(c.cachedAt) < c.cacheTTL && len(c.factions) > 0 {
		out := make([]FactionInfo, len(c.factions))
		copy(out, c.factions)
		c.mu.RUnlock()
		return out, nil
	}
	c.mu.RUnlock()

	var res []FactionInfo
	if err := c.get(ctx, "/api/factions", &res); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.factions = make([]FactionInfo, len(res))
	copy(c.factions, res)
	c.cachedAt = time.Now()
	c.mu.Unlock()
	return res, nil
}

// Datasheets fetches a faction's full datasheet list.
func (c *Client) Datasheets(ctx context.Context, factionID string) ([]library.Datasheet, error) {
	var res []library.Datasheet
	if err := c.get(ctx, "/api/factions/"+factionID+"/datasheets", &res); err != nil {
		return nil, err
	}
	return res, nil
}

// Datasheet fetches a single datasheet.
func (c *Client) Datasheet(ctx context.Context, factionID, sheetID string) (*library.Datasheet, error) {
	var res library.Datasheet
	if err := c.get(ctx, "/api/factions/"+factionID+"/datasheets/"+sheetID, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
