package model_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/divtracker/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestTicket(t *testing.T) {
	convey.Convey("Given a ticket", t, func() {
		now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
		margin := 5 * time.Minute

		convey.Convey("When it expires well after the margin", func() {
			tk := model.Ticket{Ticket: "t", SessionID: "s", ExpiresAt: now.Add(time.Hour)}
			convey.So(tk.ValidAt(now, margin), convey.ShouldBeTrue)
		})

		convey.Convey("When it expires inside the margin", func() {
			tk := model.Ticket{Ticket: "t", ExpiresAt: now.Add(4 * time.Minute)}
			convey.So(tk.ValidAt(now, margin), convey.ShouldBeFalse)
		})

		convey.Convey("When it is the startup sentinel", func() {
			tk := model.Ticket{ExpiresAt: model.ExpiredSentinel}
			convey.So(tk.ValidAt(now, margin), convey.ShouldBeFalse)
		})

		convey.Convey("When the ticket string is empty", func() {
			tk := model.Ticket{ExpiresAt: now.Add(time.Hour)}
			convey.So(tk.ValidAt(now, margin), convey.ShouldBeFalse)
		})
	})
}

func TestStatsPayload(t *testing.T) {
	convey.Convey("Given a payload", t, func() {
		p := model.StatsPayload{Stats: []model.RawStat{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}}

		v, ok := p.Value("b")
		convey.So(ok, convey.ShouldBeTrue)
		convey.So(v, convey.ShouldEqual, "2")

		_, ok = p.Value("c")
		convey.So(ok, convey.ShouldBeFalse)

		v, ok = p.At(0)
		convey.So(ok, convey.ShouldBeTrue)
		convey.So(v, convey.ShouldEqual, "1")

		_, ok = p.At(11)
		convey.So(ok, convey.ShouldBeFalse)
		_, ok = p.At(-1)
		convey.So(ok, convey.ShouldBeFalse)
	})
}

func TestParseGame(t *testing.T) {
	convey.Convey("Given game selectors", t, func() {
		g, err := model.ParseGame("1")
		convey.So(err, convey.ShouldBeNil)
		convey.So(g, convey.ShouldEqual, model.Game1)

		g, err = model.ParseGame(" 2 ")
		convey.So(err, convey.ShouldBeNil)
		convey.So(g.String(), convey.ShouldEqual, "2")

		_, err = model.ParseGame("3")
		convey.So(errors.Is(err, model.ErrUnknownGame), convey.ShouldBeTrue)
		convey.So(model.Game(3).Valid(), convey.ShouldBeFalse)
	})
}

func TestUpstreamError(t *testing.T) {
	convey.Convey("Given an upstream error wrapped twice", t, func() {
		base := &model.UpstreamError{ProfileID: "u1", Code: "1003", Message: "profile not found"}
		err := fmt.Errorf("batch: %w", base)

		convey.So(errors.Is(err, model.ErrUpstream), convey.ShouldBeTrue)
		var ue *model.UpstreamError
		convey.So(errors.As(err, &ue), convey.ShouldBeTrue)
		convey.So(ue.ProfileID, convey.ShouldEqual, "u1")
		convey.So(err.Error(), convey.ShouldContainSubstring, "profile not found")
	})
}

func TestRecordString(t *testing.T) {
	convey.Convey("Given typed records", t, func() {
		r1 := &model.Game1Stats{ID: "u1", Name: "Alice", Level: 10, MainStory: "42 %", AllNames: []string{"Alice", "Al"}}
		r2 := &model.Game2Stats{ID: "u2", Name: "Bob", LongestRogue: 7}

		var rec model.Record = r1
		convey.So(rec.ProfileID(), convey.ShouldEqual, "u1")
		convey.So(r1.String(), convey.ShouldContainSubstring, "Level: 10\n")
		convey.So(r1.String(), convey.ShouldContainSubstring, "Main story: 42 %\n")
		convey.So(r1.String(), convey.ShouldContainSubstring, "All names: Alice, Al\n")
		convey.So(r2.String(), convey.ShouldContainSubstring, "Longest rogue (min): 7\n")
		convey.So(r2.ProfileID(), convey.ShouldEqual, "u2")
	})
}
