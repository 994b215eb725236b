package verify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/goleak"

	"github.com/okian/arena/internal/session"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeVerifier answers with fn; a nil fn always fails.
type fakeVerifier struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, call int) (Order, error)
}

var errNotPaid = errors.New("payment not found")

func (f *fakeVerifier) VerifyPayment(ctx context.Context, _ string) (Order, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	fn := f.fn
	f.mu.Unlock()
	if fn == nil {
		return Order{}, errNotPaid
	}
	return fn(ctx, call)
}

func (f *fakeVerifier) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return false
}

func TestPollerMissingCredentials(t *testing.T) {
	Convey("Given a poller without a token", t, func() {
		f := &fakeVerifier{}
		p := New(f, session.New(""), "ref-1")

		Convey("Then Run fails immediately without calling the backend", func() {
			So(errors.Is(p.Run(context.Background()), ErrMissingCredentials), ShouldBeTrue)
			So(f.Calls(), ShouldEqual, 0)
			So(p.Snapshot().State, ShouldEqual, StateLoading)
		})
	})

	Convey("Given a poller without a reference", t, func() {
		f := &fakeVerifier{}
		p := New(f, session.New("tok"), "")

		Convey("Then Run fails immediately without calling the backend", func() {
			So(errors.Is(p.Run(context.Background()), ErrMissingCredentials), ShouldBeTrue)
			So(f.Calls(), ShouldEqual, 0)
		})
	})

	Convey("Given a nil session", t, func() {
		p := New(&fakeVerifier{}, nil, "ref-1")

		Convey("Then it is treated as missing credentials", func() {
			So(errors.Is(p.Run(context.Background()), ErrMissingCredentials), ShouldBeTrue)
		})
	})
}

func TestPollerSuccess(t *testing.T) {
	Convey("Given a backend that confirms the payment on the first call", t, func() {
		f := &fakeVerifier{fn: func(context.Context, int) (Order, error) {
			return Order{ID: "42"}, nil
		}}
		var mu sync.Mutex
		var states []State
		p := New(f, session.New("tok"), "ref-success-1",
			WithInterval(5*time.Millisecond),
			WithOnChange(func(s Snapshot) {
				mu.Lock()
				states = append(states, s.State)
				mu.Unlock()
			}),
		)

		Convey("When the poller runs", func() {
			err := p.Run(context.Background())

			Convey("Then it stops after exactly one request", func() {
				So(err, ShouldBeNil)
				time.Sleep(30 * time.Millisecond)
				So(f.Calls(), ShouldEqual, 1)

				snap := p.Snapshot()
				So(snap.State, ShouldEqual, StateSuccess)
				So(snap.Order, ShouldNotBeNil)
				So(snap.Order.ID, ShouldEqual, "42")
				So(snap.LastError, ShouldBeEmpty)

				mu.Lock()
				So(states, ShouldResemble, []State{StateSuccess})
				mu.Unlock()

				select {
				case <-p.Done():
				default:
					So("done channel open", ShouldBeEmpty)
				}
			})

			Convey("Then retry is no longer available", func() {
				So(errors.Is(p.Retry(context.Background()), ErrRetryUnavailable), ShouldBeTrue)
			})

			Convey("Then running it again sends nothing", func() {
				So(p.Run(context.Background()), ShouldBeNil)
				So(f.Calls(), ShouldEqual, 1)
				So(p.Snapshot().Attempts, ShouldEqual, 1)
			})
		})
	})

	Convey("Given a backend that confirms on the third call", t, func() {
		f := &fakeVerifier{fn: func(_ context.Context, call int) (Order, error) {
			if call < 3 {
				return Order{}, errNotPaid
			}
			return Order{ID: "7"}, nil
		}}
		p := New(f, session.New("tok"), "ref-late", WithInterval(5*time.Millisecond))

		Convey("Then Run returns after the confirming attempt", func() {
			So(p.Run(context.Background()), ShouldBeNil)
			So(f.Calls(), ShouldEqual, 3)
			So(p.Snapshot().Attempts, ShouldEqual, 3)
			So(p.Snapshot().State, ShouldEqual, StateSuccess)
		})
	})
}

func TestPollerKeepsPolling(t *testing.T) {
	Convey("Given a backend that always fails", t, func() {
		f := &fakeVerifier{}
		p := New(f, session.New("tok"), "ref-never",
			WithInterval(5*time.Millisecond),
			WithErrorMessage(func(error) string { return "Something went wrong. Please try again." }),
		)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- p.Run(ctx) }()

		Convey("Then it retries on every tick and stays in error", func() {
			So(waitFor(func() bool { return f.Calls() >= 4 }), ShouldBeTrue)
			snap := p.Snapshot()
			So(snap.State, ShouldEqual, StateError)
			So(snap.LastError, ShouldEqual, "Something went wrong. Please try again.")

			cancel()
			So(errors.Is(<-done, context.Canceled), ShouldBeTrue)

			Convey("And stops polling once torn down", func() {
				calls := f.Calls()
				time.Sleep(30 * time.Millisecond)
				So(f.Calls(), ShouldEqual, calls)
			})
		})

		Reset(func() {
			cancel()
		})
	})
}

func TestPollerRetry(t *testing.T) {
	Convey("Given a running poller in the error state with a long interval", t, func() {
		f := &fakeVerifier{}
		p := New(f, session.New("tok"), "ref-manual", WithInterval(time.Hour))
		ctx, cancel := context.WithCancel(context.Background())
		var runErr error
		stopped := make(chan struct{})
		go func() {
			runErr = p.Run(ctx)
			close(stopped)
		}()
		So(waitFor(func() bool { return p.Snapshot().State == StateError }), ShouldBeTrue)
		So(f.Calls(), ShouldEqual, 1)

		Convey("When a manual retry fails", func() {
			err := p.Retry(context.Background())

			Convey("Then exactly one more request was made and the error is returned", func() {
				So(errors.Is(err, errNotPaid), ShouldBeTrue)
				So(f.Calls(), ShouldEqual, 2)
				So(p.Snapshot().Retrying, ShouldBeFalse)
				So(p.Snapshot().State, ShouldEqual, StateError)
			})
		})

		Convey("When a manual retry succeeds", func() {
			f.mu.Lock()
			f.fn = func(context.Context, int) (Order, error) { return Order{ID: "99"}, nil }
			f.mu.Unlock()

			err := p.Retry(context.Background())

			Convey("Then the poller reaches success and Run returns", func() {
				So(err, ShouldBeNil)
				<-stopped
				So(runErr, ShouldBeNil)
				So(p.Snapshot().State, ShouldEqual, StateSuccess)
				So(p.Snapshot().Order.ID, ShouldEqual, "99")
			})
		})

		Convey("When a second retry is issued while one is in flight", func() {
			release := make(chan struct{})
			entered := make(chan struct{})
			f.mu.Lock()
			f.fn = func(ctx context.Context, _ int) (Order, error) {
				close(entered)
				select {
				case <-release:
				case <-ctx.Done():
				}
				return Order{}, errNotPaid
			}
			f.mu.Unlock()

			first := make(chan error, 1)
			go func() { first <- p.Retry(context.Background()) }()
			<-entered

			Convey("Then it is rejected and no extra request is made", func() {
				So(p.Snapshot().Retrying, ShouldBeTrue)
				So(errors.Is(p.Retry(context.Background()), ErrRetryInFlight), ShouldBeTrue)
				So(f.Calls(), ShouldEqual, 2)
				close(release)
				So(errors.Is(<-first, errNotPaid), ShouldBeTrue)
			})
		})

		Reset(func() {
			cancel()
			<-stopped
		})
	})

	Convey("Given a poller that never ran", t, func() {
		p := New(&fakeVerifier{}, session.New("tok"), "ref-idle")

		Convey("Then retry is unavailable", func() {
			So(errors.Is(p.Retry(context.Background()), ErrRetryUnavailable), ShouldBeTrue)
		})
	})
}

func TestPollerTeardown(t *testing.T) {
	Convey("Given a request that is still in flight", t, func() {
		entered := make(chan struct{})
		f := &fakeVerifier{fn: func(ctx context.Context, _ int) (Order, error) {
			close(entered)
			<-ctx.Done()
			// A response arriving after teardown must be ignored.
			return Order{ID: "late"}, nil
		}}
		p := New(f, session.New("tok"), "ref-teardown", WithInterval(time.Hour))
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- p.Run(ctx) }()
		<-entered

		Convey("When the poller is cancelled", func() {
			cancel()
			err := <-done

			Convey("Then Run returns the cancellation and the late result is not applied", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				snap := p.Snapshot()
				So(snap.State, ShouldEqual, StateLoading)
				So(snap.Order, ShouldBeNil)
			})
		})
	})

	Convey("Given a poller that is already running", t, func() {
		p := New(&fakeVerifier{}, session.New("tok"), "ref-twice", WithInterval(time.Hour))
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- p.Run(ctx) }()
		So(waitFor(func() bool { return p.Snapshot().State == StateError }), ShouldBeTrue)

		Convey("Then a second Run is rejected", func() {
			So(errors.Is(p.Run(ctx), ErrAlreadyRunning), ShouldBeTrue)
		})

		Reset(func() {
			cancel()
			<-done
		})
	})
}
