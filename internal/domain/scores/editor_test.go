package scores

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/arena/internal/domain/leaderboard"
)

type fakeSubmitter struct {
	mu       sync.Mutex
	requests []BatchRequest
	err      error
	// block, when set, holds the call until closed.
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeSubmitter) EditMatchResult(ctx context.Context, req BatchRequest) (Ack, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	block, entered := f.block, f.entered
	f.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return Ack{}, ctx.Err()
		}
	}
	if f.err != nil {
		return Ack{}, f.err
	}
	return Ack{Message: "Match result updated"}, nil
}

func (f *fakeSubmitter) Requests() []BatchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]BatchRequest(nil), f.requests...)
}

func decodeMatch(raw string) leaderboard.Match {
	var m leaderboard.Match
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		panic(err)
	}
	return m
}

func TestEditorLoadEditSave(t *testing.T) {
	Convey("Given a match whose only row has null kills", t, func() {
		ctx := context.Background()
		sub := &fakeSubmitter{}
		var saved []leaderboard.ID
		ed := New(sub, WithOnSaved(func(_ context.Context, id leaderboard.ID) {
			saved = append(saved, id)
		}))
		ed.Load(decodeMatch(`{"match_id": 31, "match_number": 1, "stats": [{"competitor_id": 1, "kills": null}]}`))

		Convey("Then the editor opens with zeroed string cells", func() {
			So(ed.IsOpen(), ShouldBeTrue)
			So(ed.MatchID(), ShouldEqual, leaderboard.ID("31"))
			So(ed.Rows(), ShouldResemble, []EditableRow{{
				CompetitorID: "1", Placement: "0", Kills: "0", BonusPoints: "0", PenaltyPoints: "0",
			}})
		})

		Convey("When kills is edited to 7 and saved", func() {
			So(ed.EditCell(0, FieldKills, "7"), ShouldBeNil)
			ack, err := ed.Save(ctx)

			Convey("Then one batch with integer kills is sent and the editor closes", func() {
				So(err, ShouldBeNil)
				So(ack.Message, ShouldEqual, "Match result updated")
				reqs := sub.Requests()
				So(len(reqs), ShouldEqual, 1)
				So(reqs[0].MatchID, ShouldEqual, leaderboard.ID("31"))
				So(reqs[0].Rows, ShouldResemble, []BatchRow{{CompetitorID: "1", Kills: 7}})
				So(ed.IsOpen(), ShouldBeFalse)
				So(ed.Rows(), ShouldBeEmpty)
				So(saved, ShouldResemble, []leaderboard.ID{"31"})

				b, _ := json.Marshal(reqs[0])
				So(string(b), ShouldContainSubstring, `"kills":7`)
				So(string(b), ShouldContainSubstring, `"match_id":31`)
			})

			Convey("Then saving again reports the editor closed", func() {
				_, err := ed.Save(ctx)
				So(errors.Is(err, ErrClosed), ShouldBeTrue)
				So(len(sub.Requests()), ShouldEqual, 1)
			})
		})

		Convey("When the backend rejects the save", func() {
			sub.err = errors.New("bad request")
			So(ed.EditCell(0, FieldBonusPoints, "2.5"), ShouldBeNil)
			_, err := ed.Save(ctx)

			Convey("Then the grid stays open and unchanged for another try", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, sub.err), ShouldBeTrue)
				So(ed.IsOpen(), ShouldBeTrue)
				So(ed.Rows()[0].BonusPoints, ShouldEqual, "2.5")
				So(saved, ShouldBeEmpty)
			})
		})
	})
}

func TestEditorEditCell(t *testing.T) {
	Convey("Given an editor with two rows", t, func() {
		ed := New(&fakeSubmitter{})
		ed.Load(leaderboard.Match{ID: "m1", Stats: []leaderboard.Row{
			{CompetitorID: "1", Username: "alpha", Placement: 1, Kills: 3, BonusPoints: 1.5},
			{CompetitorID: "2", Username: "bravo", Placement: 2, Kills: 1, PenaltyPoints: 2},
		}})

		Convey("When one cell is edited", func() {
			So(ed.EditCell(1, FieldPlacement, "1"), ShouldBeNil)

			Convey("Then only that cell changes", func() {
				rows := ed.Rows()
				So(rows[0], ShouldResemble, EditableRow{CompetitorID: "1", Username: "alpha", Placement: "1", Kills: "3", BonusPoints: "1.5", PenaltyPoints: "0"})
				So(rows[1], ShouldResemble, EditableRow{CompetitorID: "2", Username: "bravo", Placement: "1", Kills: "1", BonusPoints: "0", PenaltyPoints: "2"})
			})
		})

		Convey("Then out of range rows and unknown fields are rejected", func() {
			So(errors.Is(ed.EditCell(2, FieldKills, "1"), ErrRowOutOfRange), ShouldBeTrue)
			So(errors.Is(ed.EditCell(-1, FieldKills, "1"), ErrRowOutOfRange), ShouldBeTrue)
			So(errors.Is(ed.EditCell(0, Field("total_pts"), "1"), ErrUnknownField), ShouldBeTrue)
		})

		Convey("Then values are not validated while editing", func() {
			So(ed.EditCell(0, FieldKills, "abc"), ShouldBeNil)
			So(ed.Request().Rows[0].Kills, ShouldEqual, 0)
		})

		Convey("When the editor is closed", func() {
			ed.Close()

			Convey("Then edits are discarded and rejected", func() {
				So(ed.Rows(), ShouldBeEmpty)
				So(errors.Is(ed.EditCell(0, FieldKills, "1"), ErrClosed), ShouldBeTrue)
			})
		})
	})
}

func TestEditorConcurrentSave(t *testing.T) {
	Convey("Given a save that is still in flight", t, func() {
		sub := &fakeSubmitter{block: make(chan struct{}), entered: make(chan struct{})}
		ed := New(sub)
		ed.Load(leaderboard.Match{ID: "m9", Stats: []leaderboard.Row{{CompetitorID: "1"}}})

		first := make(chan error, 1)
		go func() {
			_, err := ed.Save(context.Background())
			first <- err
		}()
		<-sub.entered

		Convey("When a second save is attempted", func() {
			_, err := ed.Save(context.Background())

			Convey("Then it is rejected without a network call", func() {
				So(errors.Is(err, ErrSaveInFlight), ShouldBeTrue)
				So(len(sub.Requests()), ShouldEqual, 1)
				close(sub.block)
				So(<-first, ShouldBeNil)
			})
		})
	})
}

func TestParsing(t *testing.T) {
	Convey("Given lenient integer input", t, func() {
		So(ParseInt("7"), ShouldEqual, 7)
		So(ParseInt(" 7 "), ShouldEqual, 7)
		So(ParseInt("7.9"), ShouldEqual, 7)
		So(ParseInt("12abc"), ShouldEqual, 12)
		So(ParseInt("-3"), ShouldEqual, -3)
		So(ParseInt("abc"), ShouldEqual, 0)
		So(ParseInt(""), ShouldEqual, 0)
		So(ParseInt("-"), ShouldEqual, 0)
	})

	Convey("Given lenient decimal input", t, func() {
		So(ParseDecimal("2.5"), ShouldEqual, 2.5)
		So(ParseDecimal(" 3 "), ShouldEqual, 3)
		So(ParseDecimal("1.5pts"), ShouldEqual, 1.5)
		So(ParseDecimal("4."), ShouldEqual, 4)
		So(ParseDecimal("x"), ShouldEqual, 0)
		So(ParseDecimal(""), ShouldEqual, 0)
	})

	Convey("Given assignments", t, func() {
		a, err := ParseAssignment("0.kills=7")
		So(err, ShouldBeNil)
		So(a, ShouldResemble, Assignment{Row: 0, Field: FieldKills, Value: "7"})

		a, err = ParseAssignment("2.username=new=name")
		So(err, ShouldBeNil)
		So(a.Value, ShouldEqual, "new=name")

		for _, bad := range []string{"kills=7", "0.kills", "x.kills=1"} {
			_, err := ParseAssignment(bad)
			So(errors.Is(err, ErrBadAssignment), ShouldBeTrue)
		}
	})

	Convey("Given editable rows with mixed cell types", t, func() {
		var rows []EditableRow
		err := json.Unmarshal([]byte(`[{"competitor_id": 5, "username": "x", "placement": 2, "kills": "4", "bonus_points": 1.5, "penalty_points": null}]`), &rows)

		Convey("Then every cell decodes to its string form", func() {
			So(err, ShouldBeNil)
			So(rows, ShouldResemble, []EditableRow{{CompetitorID: "5", Username: "x", Placement: "2", Kills: "4", BonusPoints: "1.5"}})
		})

		Convey("Then loading them fills empty numeric cells", func() {
			ed := New(&fakeSubmitter{})
			ed.LoadRows("m1", rows)
			So(ed.Rows()[0].PenaltyPoints, ShouldEqual, "0")
			So(ed.Apply(Assignment{Row: 0, Field: FieldKills, Value: "9"}), ShouldBeNil)
			So(ed.Request().Rows[0].Kills, ShouldEqual, 9)
		})
	})
}
