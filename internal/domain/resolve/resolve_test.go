package resolve_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/okian/divtracker/internal/domain/model"
	"github.com/okian/divtracker/internal/domain/resolve"
	"github.com/okian/divtracker/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type mockDirectory struct {
	byName    []model.ProfileRef
	byNameErr error
	byID      map[string]string
	byIDErr   error
	idCalls   int
}

func (m *mockDirectory) ProfilesByName(_ context.Context, _ string) ([]model.ProfileRef, error) {
	return m.byName, m.byNameErr
}

func (m *mockDirectory) ProfileByID(_ context.Context, id string) (model.ProfileRef, error) {
	m.idCalls++
	if m.byIDErr != nil {
		return model.ProfileRef{}, m.byIDErr
	}
	return model.ProfileRef{ID: id, Name: m.byID[id]}, nil
}

type mockIndex struct {
	ids []string
	err error
}

func (m *mockIndex) IDsByName(_ context.Context, _ string) ([]string, error) {
	return m.ids, m.err
}

func TestResolve(t *testing.T) {
	Convey("Given a resolver", t, func() {
		ctx := context.Background()
		dir := &mockDirectory{}
		idx := &mockIndex{}
		r := resolve.New(dir, idx)

		Convey("When only the directory knows the name", func() {
			dir.byName = []model.ProfileRef{{ID: "u1", Name: "Alice"}}

			refs, err := r.Resolve(ctx, "Alice")

			Convey("Then the directory entry is returned", func() {
				So(err, ShouldBeNil)
				So(refs, ShouldResemble, []model.ProfileRef{{ID: "u1", Name: "Alice"}})
			})
		})

		Convey("When both sources return the same id", func() {
			dir.byName = []model.ProfileRef{{ID: "u1", Name: "Alice"}, {ID: "u1", Name: "Alice"}}
			idx.ids = []string{"u1", "u3", "u3"}

			refs, err := r.Resolve(ctx, "alice")

			Convey("Then ids are unique and the directory name wins", func() {
				So(err, ShouldBeNil)
				So(refs, ShouldResemble, []model.ProfileRef{
					{ID: "u1", Name: "Alice"},
					{ID: "u3"},
				})
			})
		})

		Convey("When the directory fails but the cache has the name", func() {
			dir.byNameErr = errors.New("503")
			idx.ids = []string{"u2"}

			refs, err := r.Resolve(ctx, "Bob")

			Convey("Then the cache entry is returned without a name", func() {
				So(err, ShouldBeNil)
				So(refs, ShouldResemble, []model.ProfileRef{{ID: "u2"}})
				So(refs[0].HasName(), ShouldBeFalse)
			})
		})

		Convey("When neither source knows the name", func() {
			idx.err = errors.New("db locked")

			_, err := r.Resolve(ctx, "Nobody")

			Convey("Then it fails with not found", func() {
				So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
			})
		})

		Convey("When the directory failed on session renewal and the cache is empty", func() {
			dir.byNameErr = fmt.Errorf("directory: %w", model.ErrRenewalExhausted)

			_, err := r.Resolve(ctx, "Alice")

			Convey("Then the renewal failure surfaces", func() {
				So(errors.Is(err, model.ErrRenewalExhausted), ShouldBeTrue)
				So(errors.Is(err, model.ErrNotFound), ShouldBeFalse)
			})
		})
	})
}

func TestBackfill(t *testing.T) {
	Convey("Given a resolver", t, func() {
		ctx := context.Background()
		dir := &mockDirectory{byID: map[string]string{"u2": "Bob"}}
		r := resolve.New(dir, &mockIndex{})

		Convey("When the name is unknown", func() {
			p := model.ProfileRef{ID: "u2"}
			err := r.Backfill(ctx, &p)

			Convey("Then it is filled by reverse lookup", func() {
				So(err, ShouldBeNil)
				So(p.Name, ShouldEqual, "Bob")
				So(dir.idCalls, ShouldEqual, 1)
			})
		})

		Convey("When the name is already known", func() {
			p := model.ProfileRef{ID: "u2", Name: "Robert"}
			err := r.Backfill(ctx, &p)

			Convey("Then no lookup is made", func() {
				So(err, ShouldBeNil)
				So(p.Name, ShouldEqual, "Robert")
				So(dir.idCalls, ShouldEqual, 0)
			})
		})

		Convey("When the reverse lookup finds nothing", func() {
			p := model.ProfileRef{ID: "u9"}
			err := r.Backfill(ctx, &p)

			Convey("Then it reports not found and leaves the name empty", func() {
				So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
				So(p.Name, ShouldBeEmpty)
			})
		})

		Convey("When the reverse lookup errors", func() {
			dir.byIDErr = errors.New("timeout")
			p := model.ProfileRef{ID: "u2"}

			Convey("Then the error is returned", func() {
				So(r.Backfill(ctx, &p), ShouldNotBeNil)
			})
		})
	})
}
