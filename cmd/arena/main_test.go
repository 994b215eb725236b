package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/arena/internal/adapters/backend"
	"github.com/okian/arena/internal/config"
	"github.com/okian/arena/internal/domain/scores"
	"github.com/okian/arena/pkg/logger"
)

func init() {
	_ = logger.InitWithWriter(io.Discard)
}

const treeJSON = `{"stages":[
	{"stage_id":1,"stage_name":"Groups","groups":[
		{"group_id":10,"group_name":"A",
		 "overall_leaderboard":[
			{"placement":1,"competitor_id":5,"competitor_name":"Owls","kills":4,"total_pts":12},
			{"placement":2,"competitor_id":6,"competitor_name":"Hawks","kills":2,"total_pts":7.25}],
		 "matches":[{"match_id":100,"match_number":1,"match_map":"Erangel","stats":[
			{"placement":1,"competitor_id":5,"username":"owl","kills":null,"total_pts":12}]}]}]}]}`

type fakeBackend struct {
	treeCalls   int32
	saveCalls   int32
	verifyCalls int32

	mu       sync.Mutex
	lastSave map[string]any
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case backend.PathLeaderboard:
		atomic.AddInt32(&f.treeCalls, 1)
		switch r.URL.Query().Get("event_id") {
		case "7":
			_, _ = io.WriteString(w, treeJSON)
		case "8":
			_, _ = io.WriteString(w, `{"stages":[]}`)
		default:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"detail":"Token expired"}`)
		}
	case backend.PathEditMatchResult:
		atomic.AddInt32(&f.saveCalls, 1)
		f.mu.Lock()
		_ = json.NewDecoder(r.Body).Decode(&f.lastSave)
		f.mu.Unlock()
		_, _ = io.WriteString(w, `{"message":"Match result updated"}`)
	case backend.PathVerifyPayment:
		atomic.AddInt32(&f.verifyCalls, 1)
		var in map[string]string
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["reference"] == "ref-success-1" {
			_, _ = io.WriteString(w, `{"order_id":42}`)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeBackend) saved() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSave
}

// run executes the CLI with args against backendURL and returns stdout.
func run(backendURL string, args ...string) (string, error) {
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--backend-url", backendURL}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLeaderboardCommand(t *testing.T) {
	convey.Convey("Given a backend with one event", t, func() {
		fb := &fakeBackend{}
		srv := httptest.NewServer(fb)
		defer srv.Close()

		convey.Convey("When the default view is printed", func() {
			out, err := run(srv.URL, "leaderboard", "--token", "tok", "--event", "7")

			convey.Convey("Then the first stage and group standings are shown", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "Stage: Groups")
				convey.So(out, convey.ShouldContainSubstring, "Group: A")
				convey.So(out, convey.ShouldContainSubstring, "Match: Overall")
				convey.So(out, convey.ShouldContainSubstring, "Owls")
				convey.So(out, convey.ShouldContainSubstring, "12.0")
				convey.So(out, convey.ShouldContainSubstring, "7.2")
			})
		})

		convey.Convey("When one match is selected", func() {
			out, err := run(srv.URL, "leaderboard", "--event", "7", "--match", "100")

			convey.Convey("Then its stats are shown under the match label", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "Match: Match 1 - Erangel")
				convey.So(out, convey.ShouldNotContainSubstring, "Hawks")
			})
		})

		convey.Convey("When the event has no leaderboard", func() {
			out, err := run(srv.URL, "leaderboard", "--event", "8")

			convey.Convey("Then a not found message is printed", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "No leaderboard found")
			})
		})

		convey.Convey("When the backend rejects the session", func() {
			_, err := run(srv.URL, "leaderboard", "--token", "old", "--event", "9")

			convey.Convey("Then the command fails asking to sign in again", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "sign in again")
				convey.So(err.Error(), convey.ShouldContainSubstring, "Token expired")
			})
		})

		convey.Convey("When --event is missing", func() {
			_, err := run(srv.URL, "leaderboard")
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(atomic.LoadInt32(&fb.treeCalls), convey.ShouldEqual, 0)
		})
	})
}

func TestScoresCommand(t *testing.T) {
	convey.Convey("Given a match with a null kills cell", t, func() {
		fb := &fakeBackend{}
		srv := httptest.NewServer(fb)
		defer srv.Close()

		convey.Convey("When kills is set to 7", func() {
			out, err := run(srv.URL, "scores", "--token", "tok", "--event", "7", "--match", "100", "--set", "0.kills=7")

			convey.Convey("Then one batch with integer kills is saved", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "Match result updated")
				convey.So(atomic.LoadInt32(&fb.saveCalls), convey.ShouldEqual, 1)

				body := fb.saved()
				convey.So(body["match_id"], convey.ShouldEqual, float64(100))
				row := body["rows"].([]any)[0].(map[string]any)
				convey.So(row["kills"], convey.ShouldEqual, float64(7))
				convey.So(row["username"], convey.ShouldEqual, "owl")
			})
		})

		convey.Convey("When an edit is malformed", func() {
			_, err := run(srv.URL, "scores", "--event", "7", "--match", "100", "--set", "kills=7")

			convey.Convey("Then nothing is sent", func() {
				convey.So(errors.Is(err, scores.ErrBadAssignment), convey.ShouldBeTrue)
				convey.So(atomic.LoadInt32(&fb.saveCalls), convey.ShouldEqual, 0)
			})
		})

		convey.Convey("When the match is not in the event", func() {
			_, err := run(srv.URL, "scores", "--event", "7", "--match", "999", "--set", "0.kills=1")
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(atomic.LoadInt32(&fb.saveCalls), convey.ShouldEqual, 0)
		})
	})
}

func TestVerifyCommand(t *testing.T) {
	convey.Convey("Given a reference the backend confirms", t, func() {
		fb := &fakeBackend{}
		srv := httptest.NewServer(fb)
		defer srv.Close()

		convey.Convey("When verify runs", func() {
			out, err := run(srv.URL, "verify", "--token", "tok", "--reference", "ref-success-1")

			convey.Convey("Then the transition and the order are printed once", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "verifying payment")
				convey.So(out, convey.ShouldContainSubstring, "payment verified after 1 attempt(s)")
				convey.So(out, convey.ShouldContainSubstring, "Order 42 confirmed.")
				convey.So(atomic.LoadInt32(&fb.verifyCalls), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When no token is configured", func() {
			t.Setenv("ARENA_TOKEN", "")
			_, err := run(srv.URL, "verify", "--reference", "ref-success-1")

			convey.Convey("Then it fails without calling the backend", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(atomic.LoadInt32(&fb.verifyCalls), convey.ShouldEqual, 0)
			})
		})
	})

	convey.Convey("Given a reference that stays unpaid", t, func() {
		fb := &fakeBackend{}
		srv := httptest.NewServer(fb)
		defer srv.Close()

		convey.Convey("When the command is interrupted", func() {
			var out bytes.Buffer
			c := &cli{cfg: config.New()}
			c.cfg.BackendURL = srv.URL
			c.cfg.Token = "tok"
			c.cfg.VerifyIntervalMS = 20

			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()
			err := c.verify(ctx, &out, "ref-pending")

			convey.Convey("Then it kept polling and stopped cleanly", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(atomic.LoadInt32(&fb.verifyCalls), convey.ShouldBeGreaterThan, 2)
				convey.So(out.String(), convey.ShouldContainSubstring, "not verified yet (attempt 1): "+backend.DefaultMessage)
			})
		})
	})
}

func TestServe(t *testing.T) {
	convey.Convey("Given a configuration on a free port", t, func() {
		c := &cli{cfg: config.New()}
		c.cfg.Addr = "127.0.0.1:0"
		c.cfg.BackendURL = "http://127.0.0.1:1"

		convey.Convey("When the context ends", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			convey.Convey("Then the server shuts down without error", func() {
				convey.So(c.serve(ctx), convey.ShouldBeNil)
			})
		})
	})

	convey.Convey("Given an invalid backend URL", t, func() {
		c := &cli{cfg: config.New()}
		c.cfg.BackendURL = "not a url"

		convey.Convey("Then serve fails before listening", func() {
			err := c.serve(context.Background())
			convey.So(errors.Is(err, backend.ErrBaseURL), convey.ShouldBeTrue)
		})
	})
}

func TestUpdateSystemMetrics(t *testing.T) {
	convey.Convey("Given the runtime metrics updater", t, func() {
		convey.So(updateSystemMetrics, convey.ShouldNotPanic)
	})
}
