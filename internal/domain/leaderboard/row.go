package leaderboard

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Row is one competitor's line in a standings table or a match result.
//
// Endpoints disagree on field names, so decoding resolves every field from
// an ordered list of candidates once, here, and nothing downstream repeats
// the fallbacks.
type Row struct {
	Placement     int     `json:"placement"`
	CompetitorID  ID      `json:"competitor_id"`
	Name          string  `json:"competitor_name"`
	Username      string  `json:"username,omitempty"`
	Kills         int     `json:"kills"`
	BonusPoints   float64 `json:"bonus_points"`
	PenaltyPoints float64 `json:"penalty_points"`
	TotalPoints   float64 `json:"total_pts"`
}

var (
	placementKeys    = []string{"placement", "position", "rank"}
	competitorIDKeys = []string{"competitor_id", "player_id", "team_id", "user_id"}
	joinPathNameKeys = []string{"player__username", "team__team_name", "competitor__username", "user__username"}
	killsKeys        = []string{"kills", "total_kills"}
	totalPointsKeys  = []string{"total_pts", "total_points"}
)

// UnmarshalJSON decodes any of the backend row shapes into the canonical Row.
func (r *Row) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*r = Row{
		Placement:     int(firstNumber(raw, placementKeys...)),
		CompetitorID:  firstID(raw, competitorIDKeys...),
		Username:      firstString(raw, "username"),
		Kills:         int(firstNumber(raw, killsKeys...)),
		BonusPoints:   firstNumber(raw, "bonus_points"),
		PenaltyPoints: firstNumber(raw, "penalty_points"),
		TotalPoints:   firstNumber(raw, totalPointsKeys...),
	}

	r.Name = firstString(raw, "competitor_name")
	if r.Name == "" {
		r.Name = firstString(raw, joinPathNameKeys...)
	}
	if r.Name == "" {
		r.Name = firstString(raw, "username", "team_name")
	}
	if r.Name == "" {
		r.Name = SyntheticName(r.CompetitorID)
	}
	return nil
}

// SyntheticName labels a competitor the backend sent without any name.
func SyntheticName(id ID) string {
	if id == "" {
		return "Unknown competitor"
	}
	return "Competitor " + string(id)
}

func present(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) > 0 && !bytes.Equal(v, []byte("null"))
}

func firstString(raw map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || !present(v) {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func firstID(raw map[string]json.RawMessage, keys ...string) ID {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || !present(v) {
			continue
		}
		var id ID
		if err := id.UnmarshalJSON(v); err == nil && id != "" {
			return id
		}
	}
	return ""
}

// firstNumber reads numbers and numeric strings (decimal fields often
// arrive as "12.50"). Absent, null and unparsable values fall through.
func firstNumber(raw map[string]json.RawMessage, keys ...string) float64 {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || !present(v) {
			continue
		}
		var f float64
		if err := json.Unmarshal(v, &f); err == nil {
			return f
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f
			}
		}
	}
	return 0
}
