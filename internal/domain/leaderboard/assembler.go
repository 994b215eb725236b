package leaderboard

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

// Overall is the match filter value selecting a group's overall standings.
const Overall = "overall"

// Status is the load state of an Assembler.
type Status string

// Assembler statuses. NotFound covers both an event without stages and a
// failed fetch; Err tells them apart.
const (
	StatusIdle     Status = "idle"
	StatusLoading  Status = "loading"
	StatusLoaded   Status = "loaded"
	StatusNotFound Status = "not_found"
)

// Fetcher loads the full tree for one event.
type Fetcher interface {
	LeaderboardTree(ctx context.Context, eventID ID) (*Tree, error)
}

// EventLister lists events available for selection.
type EventLister interface {
	Events(ctx context.Context) ([]Event, error)
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithEventLister enables LoadEvents.
func WithEventLister(l EventLister) Option {
	return func(a *Assembler) {
		a.lister = l
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Assembler) {
		if l != nil {
			a.logger = l
		}
	}
}

// Assembler holds the filter state of one leaderboard view. The tree is
// fetched once per event; stage, group and match changes are local.
type Assembler struct {
	mu sync.Mutex

	fetcher Fetcher
	lister  EventLister
	logger  logger.Logger

	status Status
	err    error
	// generation increments on every SelectEvent so a slow fetch for a
	// previous event cannot overwrite the current one.
	generation uint64

	events  []Event
	eventID ID
	tree    *Tree
	stageID ID
	groupID ID
	match   string
}

// NewAssembler creates an idle Assembler.
func NewAssembler(fetcher Fetcher, opts ...Option) *Assembler {
	a := &Assembler{
		fetcher: fetcher,
		logger:  logger.Nop(),
		status:  StatusIdle,
		match:   Overall,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// LoadEvents lists events and selects the first one. An empty list leaves
// the assembler idle.
func (a *Assembler) LoadEvents(ctx context.Context) error {
	if a.lister == nil {
		return ErrNoEventLister
	}
	events, err := a.lister.Events(ctx)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}

	a.mu.Lock()
	a.events = events
	a.mu.Unlock()

	if len(events) == 0 {
		a.logger.Info(ctx, "no events to select")
		return nil
	}
	return a.SelectEvent(ctx, events[0].ID)
}

// Events returns the last listed events.
func (a *Assembler) Events() []Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Event(nil), a.events...)
}

// SelectEvent fetches the tree for eventID and selects the default stage
// and group. A fetch error is returned and also leaves the status NotFound.
func (a *Assembler) SelectEvent(ctx context.Context, eventID ID) error {
	a.mu.Lock()
	a.generation++
	gen := a.generation
	a.status = StatusLoading
	a.err = nil
	a.eventID = eventID
	a.tree = nil
	a.stageID, a.groupID, a.match = "", "", Overall
	a.mu.Unlock()

	tree, err := a.fetcher.LeaderboardTree(ctx, eventID)

	a.mu.Lock()
	defer a.mu.Unlock()

	if gen != a.generation {
		a.logger.Debug(ctx, "discarding stale leaderboard", logger.String("event", eventID.String()))
		return ErrSuperseded
	}

	switch {
	case err != nil:
		a.status = StatusNotFound
		a.err = err
		metrics.RecordLeaderboardFetch("failed")
		a.logger.Warn(ctx, "leaderboard fetch failed", logger.String("event", eventID.String()), logger.Error(err))
		return fmt.Errorf("fetch leaderboard %s: %w", eventID, err)
	case tree == nil || len(tree.Stages) == 0:
		a.status = StatusNotFound
		metrics.RecordLeaderboardFetch("empty")
		a.logger.Info(ctx, "event has no leaderboard", logger.String("event", eventID.String()))
		return nil
	}

	a.tree = tree
	a.status = StatusLoaded
	a.selectStageLocked(&tree.Stages[0])
	metrics.RecordLeaderboardFetch("loaded")
	a.logger.Debug(ctx, "leaderboard loaded",
		logger.String("event", eventID.String()),
		logger.Int("stages", len(tree.Stages)),
	)
	return nil
}

// SelectStage switches stage, selects its first group (none when it has no
// groups) and resets the match filter.
func (a *Assembler) SelectStage(stageID ID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.tree == nil {
		return ErrNoTree
	}
	st := a.tree.Stage(stageID)
	if st == nil {
		return fmt.Errorf("%w: %s", ErrUnknownStage, stageID)
	}
	a.selectStageLocked(st)
	return nil
}

func (a *Assembler) selectStageLocked(st *Stage) {
	a.stageID = st.ID
	a.groupID = ""
	if len(st.Groups) > 0 {
		a.groupID = st.Groups[0].ID
	}
	a.match = Overall
}

// SelectGroup switches group within the current stage and resets the match
// filter.
func (a *Assembler) SelectGroup(groupID ID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.tree == nil {
		return ErrNoTree
	}
	if a.tree.Stage(a.stageID).Group(groupID) == nil {
		return fmt.Errorf("%w: %s", ErrUnknownGroup, groupID)
	}
	a.groupID = groupID
	a.match = Overall
	return nil
}

// SelectMatch sets the match filter. Empty selects Overall. Unknown match
// ids are accepted and display no rows.
func (a *Assembler) SelectMatch(matchID string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if matchID == "" {
		matchID = Overall
	}
	a.match = matchID
}

// Status returns the load status.
func (a *Assembler) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Err returns the fetch error behind StatusNotFound; nil when the event
// simply has no stages.
func (a *Assembler) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Rows returns the canonical rows for the current filter. Missing groups
// or matches yield an empty slice.
func (a *Assembler) Rows() []Row {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rowsLocked()
}

func (a *Assembler) rowsLocked() []Row {
	g := a.currentGroupLocked()
	if g == nil {
		return []Row{}
	}
	if a.match == Overall {
		return append([]Row{}, g.Overall...)
	}
	m := g.Match(ID(a.match))
	if m == nil {
		return []Row{}
	}
	return append([]Row{}, m.Stats...)
}

// DisplayRows returns Rows formatted for rendering.
func (a *Assembler) DisplayRows() []DisplayRow {
	return DisplayRows(a.Rows())
}

func (a *Assembler) currentGroupLocked() *Group {
	if a.tree == nil {
		return nil
	}
	return a.tree.Stage(a.stageID).Group(a.groupID)
}

// CurrentMatch returns a copy of the selected match, if the filter names
// one that exists.
func (a *Assembler) CurrentMatch() (Match, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.match == Overall {
		return Match{}, false
	}
	m := a.currentGroupLocked().Match(ID(a.match))
	if m == nil {
		return Match{}, false
	}
	return *m, true
}

// Choice is one entry of a selector.
type Choice struct {
	ID    ID     `json:"id"`
	Label string `json:"label"`
}

// View is a consistent snapshot of the assembler for rendering.
type View struct {
	Status  Status       `json:"status"`
	Error   string       `json:"error,omitempty"`
	EventID ID           `json:"event_id"`
	StageID ID           `json:"stage_id,omitempty"`
	GroupID ID           `json:"group_id,omitempty"`
	Match   string       `json:"match"`
	Stages  []Choice     `json:"stages"`
	Groups  []Choice     `json:"groups"`
	Matches []Choice     `json:"matches"`
	Rows    []DisplayRow `json:"rows"`
}

// View returns the current snapshot.
func (a *Assembler) View() View {
	a.mu.Lock()
	defer a.mu.Unlock()

	v := View{
		Status:  a.status,
		EventID: a.eventID,
		StageID: a.stageID,
		GroupID: a.groupID,
		Match:   a.match,
		Stages:  []Choice{},
		Groups:  []Choice{},
		Matches: []Choice{},
		Rows:    DisplayRows(a.rowsLocked()),
	}
	if a.err != nil {
		v.Error = a.err.Error()
	}
	if a.tree == nil {
		return v
	}

	for _, st := range a.tree.Stages {
		v.Stages = append(v.Stages, Choice{ID: st.ID, Label: st.Name})
	}
	if st := a.tree.Stage(a.stageID); st != nil {
		for _, g := range st.Groups {
			v.Groups = append(v.Groups, Choice{ID: g.ID, Label: g.Name})
		}
	}
	if g := a.currentGroupLocked(); g != nil {
		for _, m := range g.Matches {
			v.Matches = append(v.Matches, Choice{ID: m.ID, Label: matchLabel(m)})
		}
	}
	return v
}

func matchLabel(m Match) string {
	label := "Match " + strconv.Itoa(m.Number)
	if m.Map != "" {
		label += " - " + m.Map
	}
	return label
}
