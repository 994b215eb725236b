package pending

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestGuard(t *testing.T) {
	Convey("Given an unbounded guard", t, func() {
		ctx := context.Background()
		g := New()

		Convey("When a key is acquired", func() {
			So(g.TryAcquire(ctx, "save:42"), ShouldBeTrue)

			Convey("Then a second acquire of the same key fails", func() {
				So(g.TryAcquire(ctx, "save:42"), ShouldBeFalse)
				So(g.Held(ctx, "save:42"), ShouldBeTrue)
				So(g.Size(), ShouldEqual, 1)
			})

			Convey("Then other keys are independent", func() {
				So(g.TryAcquire(ctx, "save:43"), ShouldBeTrue)
				So(g.Size(), ShouldEqual, 2)
			})

			Convey("Then after release it can be acquired again", func() {
				g.Release(ctx, "save:42")
				So(g.Held(ctx, "save:42"), ShouldBeFalse)
				So(g.Size(), ShouldEqual, 0)
				So(g.TryAcquire(ctx, "save:42"), ShouldBeTrue)
			})
		})

		Convey("When releasing a key that is not held", func() {
			g.Release(ctx, "missing")

			Convey("Then nothing changes", func() {
				So(g.Size(), ShouldEqual, 0)
			})
		})

		Convey("When many goroutines race for one key", func() {
			var wins atomic.Int64
			var wg sync.WaitGroup
			for i := 0; i < 64; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if g.TryAcquire(ctx, "retry") {
						wins.Add(1)
					}
				}()
			}
			wg.Wait()

			Convey("Then exactly one wins", func() {
				So(wins.Load(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a bounded guard", t, func() {
		ctx := context.Background()
		g := New(WithMaxInFlight(2))

		Convey("When the bound is reached", func() {
			for i := 0; i < 2; i++ {
				So(g.TryAcquire(ctx, fmt.Sprintf("k%d", i)), ShouldBeTrue)
			}

			Convey("Then new keys are refused until one is released", func() {
				So(g.TryAcquire(ctx, "k2"), ShouldBeFalse)
				g.Release(ctx, "k0")
				So(g.TryAcquire(ctx, "k2"), ShouldBeTrue)
			})
		})
	})
}
