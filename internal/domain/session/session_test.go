package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/divtracker/internal/domain/model"
	"github.com/okian/divtracker/internal/domain/session"
	"github.com/okian/divtracker/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var now = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

// fakeAuth returns scripted results and counts calls.
type fakeAuth struct {
	calls   atomic.Int32
	failFor int32
	expires time.Duration
	delay   time.Duration
}

func (f *fakeAuth) Login(_ context.Context) (model.Ticket, error) {
	n := f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if n <= f.failFor {
		return model.Ticket{}, errors.New("connection refused")
	}
	return model.Ticket{Ticket: "tk", SessionID: "sid", ExpiresAt: now.Add(f.expires)}, nil
}

func newManager(auth *fakeAuth, opts ...session.Option) *session.Manager {
	base := []session.Option{
		session.WithClock(session.ClockFunc(func() time.Time { return now })),
		session.WithRetryInterval(0),
	}
	return session.NewManager(auth, append(base, opts...)...)
}

func TestTicketStore(t *testing.T) {
	Convey("Given a fresh ticket store", t, func() {
		store := session.NewTicketStore()

		Convey("Then it holds the expired sentinel", func() {
			So(store.Load().ExpiresAt, ShouldEqual, model.ExpiredSentinel)
			So(store.Load().ValidAt(now, 0), ShouldBeFalse)
		})

		Convey("When the ticket is replaced", func() {
			tk := model.Ticket{Ticket: "a", SessionID: "b", ExpiresAt: now.Add(time.Hour)}
			store.Replace(tk)

			Convey("Then all fields change together", func() {
				So(store.Load(), ShouldResemble, tk)
			})
		})
	})
}

func TestEnsureValid(t *testing.T) {
	Convey("Given a session manager", t, func() {
		ctx := context.Background()

		Convey("When the ticket is valid", func() {
			auth := &fakeAuth{expires: time.Hour}
			m := newManager(auth)
			m.Store().Replace(model.Ticket{Ticket: "t", SessionID: "s", ExpiresAt: now.Add(time.Hour)})

			err := m.EnsureValid(ctx)

			Convey("Then no login happens", func() {
				So(err, ShouldBeNil)
				So(auth.calls.Load(), ShouldEqual, 0)
			})
		})

		Convey("When the ticket expires inside the margin", func() {
			auth := &fakeAuth{expires: time.Hour}
			m := newManager(auth)
			m.Store().Replace(model.Ticket{Ticket: "old", ExpiresAt: now.Add(4 * time.Minute)})

			tk, err := m.Ticket(ctx)

			Convey("Then it is renewed once", func() {
				So(err, ShouldBeNil)
				So(auth.calls.Load(), ShouldEqual, 1)
				So(tk.Ticket, ShouldEqual, "tk")
				So(tk.SessionID, ShouldEqual, "sid")
			})
		})

		Convey("When the first logins fail", func() {
			auth := &fakeAuth{failFor: 2, expires: time.Hour}
			m := newManager(auth)

			err := m.EnsureValid(ctx)

			Convey("Then it keeps trying until one succeeds", func() {
				So(err, ShouldBeNil)
				So(auth.calls.Load(), ShouldEqual, 3)
			})
		})

		Convey("When every login fails", func() {
			auth := &fakeAuth{failFor: 100}
			m := newManager(auth)

			err := m.EnsureValid(ctx)

			Convey("Then it gives up after exactly five attempts", func() {
				So(errors.Is(err, model.ErrRenewalExhausted), ShouldBeTrue)
				So(auth.calls.Load(), ShouldEqual, 5)
			})
		})

		Convey("When login keeps returning a ticket inside the margin", func() {
			auth := &fakeAuth{expires: time.Minute}
			m := newManager(auth)

			err := m.EnsureValid(ctx)

			Convey("Then each such login counts as a failed attempt", func() {
				So(errors.Is(err, model.ErrRenewalExhausted), ShouldBeTrue)
				So(auth.calls.Load(), ShouldEqual, 5)
			})
		})

		Convey("When a single attempt is configured", func() {
			auth := &fakeAuth{failFor: 100}
			m := newManager(auth, session.WithAttempts(1))

			err := m.EnsureValid(ctx)

			Convey("Then only one login is made", func() {
				So(errors.Is(err, model.ErrRenewalExhausted), ShouldBeTrue)
				So(auth.calls.Load(), ShouldEqual, 1)
			})
		})

		Convey("When many callers find the ticket expired at once", func() {
			auth := &fakeAuth{expires: time.Hour, delay: 20 * time.Millisecond}
			m := newManager(auth)

			var wg sync.WaitGroup
			errs := make(chan error, 20)
			for range 20 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs <- m.EnsureValid(ctx)
				}()
			}
			wg.Wait()
			close(errs)

			Convey("Then a single login serves all of them", func() {
				for err := range errs {
					So(err, ShouldBeNil)
				}
				So(auth.calls.Load(), ShouldEqual, 1)
			})
		})

		Convey("When the context is already cancelled", func() {
			auth := &fakeAuth{failFor: 100}
			m := newManager(auth, session.WithRetryInterval(time.Hour))
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			err := m.EnsureValid(cctx)

			Convey("Then the caller gets its cancellation without a login", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(errors.Is(err, model.ErrRenewalExhausted), ShouldBeFalse)
				So(auth.calls.Load(), ShouldEqual, 0)
			})
		})

		Convey("When callers with different deadlines share a slow renewal", func() {
			auth := &fakeAuth{expires: time.Hour, delay: 100 * time.Millisecond}
			m := newManager(auth)

			short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
			defer cancel()

			var (
				wg         sync.WaitGroup
				errA, errB error
			)
			wg.Add(2)
			go func() {
				defer wg.Done()
				errA = m.EnsureValid(short)
			}()
			go func() {
				defer wg.Done()
				time.Sleep(5 * time.Millisecond)
				errB = m.EnsureValid(ctx)
			}()
			wg.Wait()

			Convey("Then only the short caller fails, with its own deadline", func() {
				So(errors.Is(errA, context.DeadlineExceeded), ShouldBeTrue)
				So(errors.Is(errA, model.ErrRenewalExhausted), ShouldBeFalse)
				So(errB, ShouldBeNil)
				So(auth.calls.Load(), ShouldEqual, 1)
				So(m.Store().Load().Ticket, ShouldEqual, "tk")
			})
		})

		Convey("When the shared renewal outlives its own deadline", func() {
			auth := &fakeAuth{failFor: 100, delay: 10 * time.Millisecond}
			m := newManager(auth,
				session.WithRetryInterval(5*time.Millisecond),
				session.WithAttempts(100),
				session.WithRenewTimeout(40*time.Millisecond),
			)

			err := m.EnsureValid(ctx)

			Convey("Then it is reported as exhausted", func() {
				So(errors.Is(err, model.ErrRenewalExhausted), ShouldBeTrue)
				So(auth.calls.Load(), ShouldBeLessThan, 100)
			})
		})
	})
}
