// Package leaderboard models the event → stage → group → match ranking tree
// and derives the table a viewer is looking at from local filter state.
package leaderboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ID identifies events, stages, groups, matches and competitors. The backend
// sends ids as JSON numbers or strings; both decode into ID.
type ID string

// UnmarshalJSON accepts numbers, strings and null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*id = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("leaderboard: invalid id %s: %w", b, err)
		}
		*id = ID(n.String())
	}
	return nil
}

// MarshalJSON writes integer ids as numbers and everything else as strings.
func (id ID) MarshalJSON() ([]byte, error) {
	if id == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// String implements fmt.Stringer.
func (id ID) String() string { return string(id) }

// Event is a tournament listed by the backend.
type Event struct {
	ID     ID     `json:"event_id"`
	Name   string `json:"event_name"`
	Status string `json:"event_status,omitempty"`
}

// Tree is the full leaderboard of one event.
type Tree struct {
	Stages []Stage `json:"stages"`
}

// Stage is a phase of an event (group stage, finals).
type Stage struct {
	ID     ID      `json:"stage_id"`
	Name   string  `json:"stage_name"`
	Groups []Group `json:"groups"`
}

// Group is a pool within a stage with its own standings and matches.
type Group struct {
	ID      ID      `json:"group_id"`
	Name    string  `json:"group_name"`
	Overall []Row   `json:"overall_leaderboard"`
	Matches []Match `json:"matches"`
}

// Match is one played game within a group.
type Match struct {
	ID     ID     `json:"match_id"`
	Number int    `json:"match_number"`
	Map    string `json:"match_map"`
	Stats  []Row  `json:"stats"`
}

// Stage returns the stage with id, or nil.
func (t *Tree) Stage(id ID) *Stage {
	if t == nil {
		return nil
	}
	for i := range t.Stages {
		if t.Stages[i].ID == id {
			return &t.Stages[i]
		}
	}
	return nil
}

// Group returns the group with id, or nil.
func (s *Stage) Group(id ID) *Group {
	if s == nil {
		return nil
	}
	for i := range s.Groups {
		if s.Groups[i].ID == id {
			return &s.Groups[i]
		}
	}
	return nil
}

// Match returns the match with id, or nil.
func (g *Group) Match(id ID) *Match {
	if g == nil {
		return nil
	}
	for i := range g.Matches {
		if g.Matches[i].ID == id {
			return &g.Matches[i]
		}
	}
	return nil
}

// FindMatch searches every stage and group for a match.
func (t *Tree) FindMatch(id ID) *Match {
	if t == nil {
		return nil
	}
	for i := range t.Stages {
		for j := range t.Stages[i].Groups {
			if m := t.Stages[i].Groups[j].Match(id); m != nil {
				return m
			}
		}
	}
	return nil
}
