package tui

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const maxRecent = 20

// RecentLocation is a location the user scanned before.
type RecentLocation struct {
	Name   string    `json:"name"`
	UsedAt time.Time `json:"used_at"`
}

func recentFilePath() string {
	cfg, _ := os.UserConfigDir()
	return filepath.Join(cfg, "leadtap", "recent_locations.json")
}

// LoadRecent returns the remembered locations, most recent first.
func LoadRecent() []RecentLocation {
	return loadRecentFrom(recentFilePath())
}

func loadRecentFrom(path string) []RecentLocation {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var entries []RecentLocation
	if json.Unmarshal(data, &entries) != nil {
		return nil
	}
	return entries
}

// SaveRecent moves locations to the front of the history.
func SaveRecent(locations []string) error {
	return saveRecentTo(recentFilePath(), locations, time.Now())
}

func saveRecentTo(path string, locations []string, now time.Time) error {
	entries := mergeRecent(loadRecentFrom(path), locations, now)
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func mergeRecent(entries []RecentLocation, locations []string, now time.Time) []RecentLocation {
	var front []RecentLocation
	seen := make(map[string]bool)
	for _, l := range locations {
		l = strings.TrimSpace(l)
		key := strings.ToLower(l)
		if l == "" || seen[key] {
			continue
		}
		seen[key] = true
		front = append(front, RecentLocation{Name: l, UsedAt: now})
	}
	for _, e := range entries {
		if !seen[strings.ToLower(e.Name)] {
			front = append(front, e)
		}
	}
	if len(front) > maxRecent {
		front = front[:maxRecent]
	}
	return front
}

// suggestions puts recent locations ahead of the known regions, without repeats.
func suggestions(recent []RecentLocation, regions []string) []string {
	out := make([]string, 0, len(recent)+len(regions))
	seen := make(map[string]bool)
	add := func(s string) {
		if k := strings.ToLower(s); !seen[k] {
			seen[k] = true
			out = append(out, s)
		}
	}
	for _, r := range recent {
		add(r.Name)
	}
	for _, r := range regions {
		add(r)
	}
	return out
}
