package scores

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ParseInt reads the leading integer of s, ignoring surrounding space and
// anything after the digits. "7.9" is 7; "abc" and "" are 0.
func ParseInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

// ParseDecimal reads the leading decimal number of s. Unparseable input is 0.
func ParseDecimal(s string) float64 {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	dot := false
	for ; end < len(s); end++ {
		c := s[end]
		if c == '.' && !dot {
			dot = true
			continue
		}
		if c < '0' || c > '9' {
			break
		}
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(s[:end], "."), 64)
	if err != nil {
		return 0
	}
	return f
}

func formatDecimal(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// UnmarshalJSON accepts cells as strings, numbers or null.
func (r *EditableRow) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["competitor_id"]; ok {
		if err := json.Unmarshal(v, &r.CompetitorID); err != nil {
			return fmt.Errorf("competitor_id: %w", err)
		}
	}
	for _, f := range Fields {
		v, ok := raw[string(f)]
		if !ok {
			continue
		}
		s, err := cellString(v)
		if err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		c, _ := r.cell(f)
		*c = s
	}
	return nil
}

func cellString(v json.RawMessage) (string, error) {
	v = bytes.TrimSpace(v)
	switch {
	case len(v) == 0 || bytes.Equal(v, []byte("null")):
		return "", nil
	case v[0] == '"':
		var s string
		err := json.Unmarshal(v, &s)
		return s, err
	default:
		var n json.Number
		if err := json.Unmarshal(v, &n); err != nil {
			return "", err
		}
		return n.String(), nil
	}
}

// Assignment is one "<row>.<field>=<value>" edit.
type Assignment struct {
	Row   int
	Field Field
	Value string
}

// ParseAssignment parses "<row>.<field>=<value>". Rows are zero based.
func ParseAssignment(s string) (Assignment, error) {
	target, value, ok := strings.Cut(s, "=")
	if !ok {
		return Assignment{}, fmt.Errorf("%w: %q has no '='", ErrBadAssignment, s)
	}
	row, field, ok := strings.Cut(target, ".")
	if !ok {
		return Assignment{}, fmt.Errorf("%w: %q has no field", ErrBadAssignment, s)
	}
	n, err := strconv.Atoi(strings.TrimSpace(row))
	if err != nil {
		return Assignment{}, fmt.Errorf("%w: row %q", ErrBadAssignment, row)
	}
	return Assignment{Row: n, Field: Field(strings.TrimSpace(field)), Value: value}, nil
}

// Apply edits the grid with every assignment, stopping at the first error.
func (e *Editor) Apply(edits ...Assignment) error {
	for _, a := range edits {
		if err := e.EditCell(a.Row, a.Field, a.Value); err != nil {
			return err
		}
	}
	return nil
}
