// Package scores is the in-memory grid operators use to correct match
// results before submitting them as one batch.
package scores

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/okian/arena/internal/domain/leaderboard"
	"github.com/okian/arena/internal/domain/pending"
	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// Field names an editable cell.
type Field string

// Editable fields.
const (
	FieldUsername      Field = "username"
	FieldPlacement     Field = "placement"
	FieldKills         Field = "kills"
	FieldBonusPoints   Field = "bonus_points"
	FieldPenaltyPoints Field = "penalty_points"
)

// Fields lists the editable fields in grid column order.
var Fields = []Field{FieldUsername, FieldPlacement, FieldKills, FieldBonusPoints, FieldPenaltyPoints}

// EditableRow holds one competitor's cells as typed by the operator.
type EditableRow struct {
	CompetitorID  leaderboard.ID `json:"competitor_id"`
	Username      string         `json:"username"`
	Placement     string         `json:"placement"`
	Kills         string         `json:"kills"`
	BonusPoints   string         `json:"bonus_points"`
	PenaltyPoints string         `json:"penalty_points"`
}

func (r *EditableRow) cell(f Field) (*string, bool) {
	switch f {
	case FieldUsername:
		return &r.Username, true
	case FieldPlacement:
		return &r.Placement, true
	case FieldKills:
		return &r.Kills, true
	case FieldBonusPoints:
		return &r.BonusPoints, true
	case FieldPenaltyPoints:
		return &r.PenaltyPoints, true
	}
	return nil, false
}

// BatchRow is one submitted row.
type BatchRow struct {
	CompetitorID  leaderboard.ID `json:"competitor_id"`
	Username      string         `json:"username,omitempty"`
	Placement     int            `json:"placement"`
	Kills         int            `json:"kills"`
	BonusPoints   float64        `json:"bonus_points"`
	PenaltyPoints float64        `json:"penalty_points"`
}

// BatchRequest replaces every row of one match.
type BatchRequest struct {
	MatchID leaderboard.ID `json:"match_id"`
	Rows    []BatchRow     `json:"rows"`
}

// Ack is the backend's reply to a save.
type Ack struct {
	Message string `json:"message"`
}

// Submitter sends a batch to the backend.
type Submitter interface {
	EditMatchResult(ctx context.Context, req BatchRequest) (Ack, error)
}

// Editor is safe for concurrent use. It never applies edits anywhere but
// its own grid; callers re-fetch after a successful save.
type Editor struct {
	submitter Submitter
	guard     pending.Guard
	logger    logger.Logger
	onSaved   func(ctx context.Context, matchID leaderboard.ID)

	mu      sync.Mutex
	open    bool
	matchID leaderboard.ID
	rows    []EditableRow
}

// New creates a closed editor.
func New(submitter Submitter, opts ...Option) *Editor {
	e := &Editor{
		submitter: submitter,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.guard == nil {
		e.guard = pending.New()
	}
	return e
}

// Load opens the editor on match, one row per stats entry.
func (e *Editor) Load(match leaderboard.Match) {
	rows := make([]EditableRow, 0, len(match.Stats))
	for _, s := range match.Stats {
		rows = append(rows, EditableRow{
			CompetitorID:  s.CompetitorID,
			Username:      s.Username,
			Placement:     strconv.Itoa(s.Placement),
			Kills:         strconv.Itoa(s.Kills),
			BonusPoints:   formatDecimal(s.BonusPoints),
			PenaltyPoints: formatDecimal(s.PenaltyPoints),
		})
	}
	e.LoadRows(match.ID, rows)
}

// LoadRows opens the editor on rows already in editable form. Empty
// numeric cells become "0".
func (e *Editor) LoadRows(matchID leaderboard.ID, rows []EditableRow) {
	grid := make([]EditableRow, len(rows))
	for i, r := range rows {
		for _, f := range []Field{FieldPlacement, FieldKills, FieldBonusPoints, FieldPenaltyPoints} {
			if c, _ := r.cell(f); *c == "" {
				*c = "0"
			}
		}
		grid[i] = r
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.open = true
	e.matchID = matchID
	e.rows = grid
}

// EditCell replaces one cell. Values are not validated until Save.
func (e *Editor) EditCell(row int, field Field, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.open {
		return ErrClosed
	}
	if row < 0 || row >= len(e.rows) {
		return fmt.Errorf("%w: %d", ErrRowOutOfRange, row)
	}
	c, ok := e.rows[row].cell(field)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	*c = value
	return nil
}

// Save converts the grid and submits it in one call. On success the
// editor closes; on failure the grid stays as it was.
func (e *Editor) Save(ctx context.Context) (Ack, error) {
	e.mu.Lock()
	if !e.open {
		e.mu.Unlock()
		return Ack{}, ErrClosed
	}
	req := e.requestLocked()
	e.mu.Unlock()

	key := "save:" + req.MatchID.String()
	if !e.guard.TryAcquire(ctx, key) {
		return Ack{}, ErrSaveInFlight
	}
	defer e.guard.Release(ctx, key)

	ack, err := e.submitter.EditMatchResult(ctx, req)
	if err != nil {
		metrics.RecordScoreSave("failed")
		e.logger.Warn(ctx, "score save failed",
			logger.String("match", req.MatchID.String()),
			logger.Error(err),
		)
		return Ack{}, fmt.Errorf("save match %s: %w", req.MatchID, err)
	}

	e.mu.Lock()
	if e.matchID == req.MatchID {
		e.open = false
		e.rows = nil
	}
	e.mu.Unlock()

	metrics.RecordScoreSave("saved")
	e.logger.Info(ctx, "score saved",
		logger.String("match", req.MatchID.String()),
		logger.Int("rows", len(req.Rows)),
	)
	if e.onSaved != nil {
		e.onSaved(ctx, req.MatchID)
	}
	return ack, nil
}

func (e *Editor) requestLocked() BatchRequest {
	req := BatchRequest{MatchID: e.matchID, Rows: make([]BatchRow, 0, len(e.rows))}
	for _, r := range e.rows {
		req.Rows = append(req.Rows, BatchRow{
			CompetitorID:  r.CompetitorID,
			Username:      r.Username,
			Placement:     ParseInt(r.Placement),
			Kills:         ParseInt(r.Kills),
			BonusPoints:   ParseDecimal(r.BonusPoints),
			PenaltyPoints: ParseDecimal(r.PenaltyPoints),
		})
	}
	return req
}

// Close discards the grid.
func (e *Editor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.open = false
	e.rows = nil
}

// IsOpen reports whether a grid is loaded.
func (e *Editor) IsOpen() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.open
}

// MatchID returns the loaded match.
func (e *Editor) MatchID() leaderboard.ID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.matchID
}

// Rows returns a copy of the grid.
func (e *Editor) Rows() []EditableRow {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]EditableRow(nil), e.rows...)
}

// Request returns the batch Save would submit.
func (e *Editor) Request() BatchRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requestLocked()
}
