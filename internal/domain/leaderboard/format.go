package leaderboard

import (
	"math"
	"strconv"
)

// DisplayRow is a Row reduced to what a ranking table shows.
type DisplayRow struct {
	Placement    int    `json:"placement"`
	CompetitorID ID     `json:"competitor_id"`
	Name         string `json:"name"`
	Kills        int    `json:"kills"`
	Points       string `json:"points"`
}

// FormatPoints renders points with exactly one decimal place.
func FormatPoints(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "0.0"
	}
	s := strconv.FormatFloat(v, 'f', 1, 64)
	if s == "-0.0" {
		return "0.0"
	}
	return s
}

// Display converts r for rendering.
func (r Row) Display() DisplayRow {
	return DisplayRow{
		Placement:    r.Placement,
		CompetitorID: r.CompetitorID,
		Name:         r.Name,
		Kills:        r.Kills,
		Points:       FormatPoints(r.TotalPoints),
	}
}

// DisplayRows converts rows preserving order.
func DisplayRows(rows []Row) []DisplayRow {
	out := make([]DisplayRow, len(rows))
	for i, r := range rows {
		out[i] = r.Display()
	}
	return out
}
