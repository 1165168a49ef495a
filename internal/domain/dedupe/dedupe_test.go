package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/divtracker/internal/domain/dedupe"
)

func TestInMemory(t *testing.T) {
	Convey("Given a new deduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemory(dedupe.WithMaxSize(3))

		Convey("When a key is recorded twice", func() {
			first := d.SeenAndRecord(ctx, "u1")
			second := d.SeenAndRecord(ctx, "u1")

			Convey("Then only the second call reports it as seen", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When a key is unrecorded", func() {
			d.SeenAndRecord(ctx, "u1")
			d.Unrecord(ctx, "u1")
			d.Unrecord(ctx, "missing")

			Convey("Then it is new again", func() {
				So(d.Size(), ShouldEqual, 0)
				So(d.SeenAndRecord(ctx, "u1"), ShouldBeFalse)
			})
		})

		Convey("When more keys than the bound are recorded", func() {
			for _, k := range []string{"a", "b", "c", "d"} {
				d.SeenAndRecord(ctx, k)
			}

			Convey("Then the oldest key is evicted", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "d"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "b"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "a"), ShouldBeFalse)
			})
		})
	})

	Convey("Given an unbounded deduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemory(dedupe.WithMaxSize(0))
		for i := 0; i < 100; i++ {
			d.SeenAndRecord(ctx, fmt.Sprintf("k%d", i))
		}
		So(d.Size(), ShouldEqual, 100)
	})

	Convey("Given concurrent callers recording the same key", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemory()

		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			fresh int
		)
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if !d.SeenAndRecord(ctx, dedupe.PairKey("u1", "Alice")) {
					mu.Lock()
					fresh++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		So(fresh, ShouldEqual, 1)
	})

	Convey("Given pair keys", t, func() {
		So(dedupe.PairKey("u1", "Alice"), ShouldNotEqual, dedupe.PairKey("u1A", "lice"))
	})
}
