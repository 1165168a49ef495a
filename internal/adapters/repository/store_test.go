package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/divtracker/internal/adapters/repository"
	"github.com/okian/divtracker/pkg/logger"
)

func init() {
	_ = logger.Init()
}

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// stepClock advances one second per call.
func stepClock() func() time.Time {
	var n atomic.Int64
	return func() time.Time {
		return base.Add(time.Duration(n.Add(1)) * time.Second)
	}
}

type opener func(t *testing.T, opts ...repository.Option) repository.NameStore

// contract runs the behaviour every backend must share. ns keeps ids and
// names unique against shared external databases.
func contract(t *testing.T, open opener, ns string) {
	ctx := context.Background()
	u1, u2, u3 := ns+"u1", ns+"u2", ns+"u3"
	alice, old := ns+"Alice", ns+"OldAlice"

	Convey("Given an empty name store", t, func() {
		store := open(t, repository.WithClock(stepClock()))
		defer store.Close()

		Convey("When names are recorded, including a duplicate", func() {
			So(store.Record(ctx, u1, old), ShouldBeNil)
			So(store.Record(ctx, u1, alice), ShouldBeNil)
			So(store.Record(ctx, u2, ns+"alice"), ShouldBeNil)
			So(store.Record(ctx, u1, alice), ShouldBeNil)

			Convey("Then the history keeps first sightings only", func() {
				h, err := store.History(ctx, u1)
				So(err, ShouldBeNil)
				So(h, ShouldHaveLength, 2)
				So(h[0].Name, ShouldEqual, old)
				So(h[1].Name, ShouldEqual, alice)
				So(h[1].RecordedAt.Equal(base.Add(2*time.Second)), ShouldBeTrue)
			})

			Convey("Then names come back oldest first", func() {
				names, err := store.NamesByID(ctx, u1)
				So(err, ShouldBeNil)
				So(names, ShouldResemble, []string{old, alice})
			})

			Convey("Then name lookup ignores case", func() {
				ids, err := store.IDsByName(ctx, ns+"ALICE")
				So(err, ShouldBeNil)
				So(ids, ShouldResemble, []string{u1, u2})
			})
		})

		Convey("When a name carries non-ASCII letters", func() {
			u7 := ns + "u7"
			So(store.Record(ctx, u7, ns+"Ölaf"), ShouldBeNil)

			Convey("Then lookup folds them like any other letter", func() {
				for _, q := range []string{ns + "ölaf", ns + "ÖLAF", ns + "Ölaf"} {
					ids, err := store.IDsByName(ctx, q)
					So(err, ShouldBeNil)
					So(ids, ShouldResemble, []string{u7})
				}
			})
		})

		Convey("When nothing matches", func() {
			ids, err := store.IDsByName(ctx, ns+"nobody")
			So(err, ShouldBeNil)
			So(ids, ShouldBeEmpty)

			names, err := store.NamesByID(ctx, ns+"u404")
			So(err, ShouldBeNil)
			So(names, ShouldBeEmpty)
		})

		Convey("When a record is incomplete", func() {
			So(errors.Is(store.Record(ctx, "", alice), repository.ErrInvalidRecord), ShouldBeTrue)
			So(errors.Is(store.Record(ctx, u1, " "), repository.ErrInvalidRecord), ShouldBeTrue)
		})

		Convey("When the same pair is recorded concurrently", func() {
			var wg sync.WaitGroup
			errs := make(chan error, 20)
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					errs <- store.Record(ctx, u3, ns+"Bob")
				}()
			}
			wg.Wait()
			close(errs)

			Convey("Then it is stored once", func() {
				for err := range errs {
					So(err, ShouldBeNil)
				}
				names, err := store.NamesByID(ctx, u3)
				So(err, ShouldBeNil)
				So(names, ShouldResemble, []string{ns + "Bob"})
			})
		})
	})
}

func TestMemoryStore(t *testing.T) {
	contract(t, func(_ *testing.T, opts ...repository.Option) repository.NameStore {
		return repository.NewMemory(opts...)
	}, "")

	Convey("Given a closed memory store", t, func() {
		s := repository.NewMemory()
		So(s.Close(), ShouldBeNil)
		So(errors.Is(s.Record(context.Background(), "u1", "a"), repository.ErrClosed), ShouldBeTrue)
	})
}

func TestSQLiteStore(t *testing.T) {
	contract(t, func(t *testing.T, opts ...repository.Option) repository.NameStore {
		s, err := repository.NewSQLite(context.Background(), ":memory:", opts...)
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		return s
	}, "")

	Convey("Given a sqlite file that is reopened", t, func() {
		ctx := context.Background()
		dsn := t.TempDir() + "/names.db"

		s, err := repository.NewSQLite(ctx, dsn)
		So(err, ShouldBeNil)
		So(s.Record(ctx, "u1", "Alice"), ShouldBeNil)
		So(s.Close(), ShouldBeNil)

		s, err = repository.NewSQLite(ctx, dsn)
		So(err, ShouldBeNil)
		defer s.Close()

		ids, err := s.IDsByName(ctx, "alice")
		So(err, ShouldBeNil)
		So(ids, ShouldResemble, []string{"u1"})
	})
}

func TestSQLiteStoreMigratesNameKey(t *testing.T) {
	Convey("Given a sqlite file written before names had a folded key", t, func() {
		ctx := context.Background()
		dsn := t.TempDir() + "/legacy.db"

		db, err := sql.Open("sqlite", dsn)
		So(err, ShouldBeNil)
		_, err = db.ExecContext(ctx, `
			CREATE TABLE ubi_user (
				id   TEXT    NOT NULL,
				name TEXT    NOT NULL,
				ts   INTEGER NOT NULL,
				PRIMARY KEY (id, name)
			);
			CREATE INDEX idx_ubi_user_name ON ubi_user (name COLLATE NOCASE);
			INSERT INTO ubi_user (id, name, ts) VALUES ('u1', 'Ölaf', 1), ('u2', 'Alice', 2);
		`)
		So(err, ShouldBeNil)
		So(db.Close(), ShouldBeNil)

		Convey("When it is opened", func() {
			s, err := repository.NewSQLite(ctx, dsn)
			So(err, ShouldBeNil)
			defer s.Close()

			Convey("Then old rows are found by folded name", func() {
				ids, err := s.IDsByName(ctx, "ÖLAF")
				So(err, ShouldBeNil)
				So(ids, ShouldResemble, []string{"u1"})

				ids, err = s.IDsByName(ctx, "alice")
				So(err, ShouldBeNil)
				So(ids, ShouldResemble, []string{"u2"})
			})

			Convey("Then new rows land next to them", func() {
				So(s.Record(ctx, "u3", "ölaf"), ShouldBeNil)
				ids, err := s.IDsByName(ctx, "Ölaf")
				So(err, ShouldBeNil)
				So(ids, ShouldResemble, []string{"u1", "u3"})
			})
		})
	})
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("DIVTRACKER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("DIVTRACKER_TEST_POSTGRES_DSN not set")
	}
	contract(t, func(t *testing.T, opts ...repository.Option) repository.NameStore {
		s, err := repository.NewPostgres(context.Background(), dsn, opts...)
		if err != nil {
			t.Fatalf("open postgres: %v", err)
		}
		return s
	}, uuid.NewString()+"-")
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("DIVTRACKER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DIVTRACKER_TEST_REDIS_ADDR not set")
	}
	prefix := "divtracker-test-" + uuid.NewString()
	contract(t, func(t *testing.T, opts ...repository.Option) repository.NameStore {
		opts = append(opts, repository.WithKeyPrefix(prefix))
		s, err := repository.NewRedis(context.Background(), &redis.Options{Addr: addr}, opts...)
		if err != nil {
			t.Fatalf("open redis: %v", err)
		}
		return s
	}, uuid.NewString()+"-")
}

func TestOpen(t *testing.T) {
	Convey("Given store parameters", t, func() {
		ctx := context.Background()

		Convey("When the driver is memory", func() {
			s, err := repository.Open(ctx, repository.Params{Driver: repository.DriverMemory})
			So(err, ShouldBeNil)
			So(s, ShouldHaveSameTypeAs, &repository.MemoryStore{})
		})

		Convey("When the driver is sqlite", func() {
			s, err := repository.Open(ctx, repository.Params{Driver: repository.DriverSQLite, DSN: ":memory:"})
			So(err, ShouldBeNil)
			So(s.Close(), ShouldBeNil)
		})

		Convey("When the driver is unknown", func() {
			_, err := repository.Open(ctx, repository.Params{Driver: "mongo"})
			So(errors.Is(err, repository.ErrUnknownDriver), ShouldBeTrue)
		})
	})
}
