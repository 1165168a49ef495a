package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/divtracker/internal/adapters/http/api"
	"github.com/okian/divtracker/internal/domain/model"
	"github.com/okian/divtracker/pkg/logger"
)

func init() {
	_ = logger.Init()
}

type mockDependencies struct {
	recs     []model.Record
	statsErr error
	history  []model.NameRecord
	namesErr error
	readyErr error

	gotGame model.Game
	gotName string
}

func (m *mockDependencies) GetStats(_ context.Context, game model.Game, name string) ([]model.Record, error) {
	m.gotGame, m.gotName = game, name
	return m.recs, m.statsErr
}

func (m *mockDependencies) NameHistory(_ context.Context, id string) ([]model.NameRecord, error) {
	if m.namesErr != nil {
		return nil, m.namesErr
	}
	if len(m.history) == 0 {
		return nil, model.ErrNotFound
	}
	return m.history, nil
}

func (m *mockDependencies) Ready(context.Context) error { return m.readyErr }

func (m *mockDependencies) Status() map[string]any {
	return map[string]any{"started": true, "games": []string{"1", "2"}}
}

func serve(h http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestServer_Stats(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := &mockDependencies{}
		h := api.NewServer(deps, nil).Router()

		Convey("When a player is found", func() {
			deps.recs = []model.Record{
				&model.Game1Stats{ID: "u1", Name: "Alice", Level: 30, AllNames: []string{"Alice"}},
			}

			w := serve(h, http.MethodGet, "/api/v1/stats/1/Alice", "", nil)

			Convey("Then the records are returned as JSON", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
				So(deps.gotGame, ShouldEqual, model.Game1)
				So(deps.gotName, ShouldEqual, "Alice")

				var body struct {
					Game    string `json:"game"`
					Records []struct {
						ProfileID string         `json:"profile_id"`
						Stats     map[string]any `json:"stats"`
					} `json:"records"`
				}
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body.Game, ShouldEqual, "1")
				So(body.Records, ShouldHaveLength, 1)
				So(body.Records[0].ProfileID, ShouldEqual, "u1")
				So(body.Records[0].Stats["level"], ShouldEqual, 30.0)
				So(body.Records[0].Stats["name"], ShouldEqual, "Alice")
			})
		})

		Convey("When text is requested", func() {
			deps.recs = []model.Record{
				&model.Game2Stats{ID: "u2", Name: "Bob", Level: 40},
			}

			byQuery := serve(h, http.MethodGet, "/api/v1/stats/2/Bob?format=text", "", nil)
			byAccept := serve(h, http.MethodGet, "/api/v1/stats/2/Bob", "", map[string]string{"Accept": "text/plain"})

			Convey("Then the chat rendering is returned", func() {
				So(byQuery.Code, ShouldEqual, http.StatusOK)
				So(byQuery.Header().Get("Content-Type"), ShouldStartWith, "text/plain")
				So(byQuery.Body.String(), ShouldStartWith, "Player: Bob\n")
				So(byAccept.Body.String(), ShouldEqual, byQuery.Body.String())
			})
		})

		Convey("When lookups fail", func() {
			cases := []struct {
				err    error
				status int
				code   string
			}{
				{model.ErrNotFound, http.StatusNotFound, "not_found"},
				{errors.Join(model.ErrNoResults, model.ErrNoProfileForGame), http.StatusNotFound, "no_results"},
				{model.ErrRenewalExhausted, http.StatusBadGateway, "session_unavailable"},
				{errors.Join(model.ErrNoResults, model.ErrRenewalExhausted), http.StatusBadGateway, "session_unavailable"},
				{errors.Join(model.ErrNoResults, &model.UpstreamError{ProfileID: "u2", Code: "1"}), http.StatusBadGateway, "upstream_error"},
				{&model.UpstreamError{ProfileID: "u1", Code: "1100"}, http.StatusBadGateway, "upstream_error"},
				{model.ErrTimeout, http.StatusGatewayTimeout, "timeout"},
				{errors.New("boom"), http.StatusInternalServerError, "internal"},
			}
			for _, c := range cases {
				deps.statsErr = c.err
				w := serve(h, http.MethodGet, "/api/v1/stats/1/Alice", "", nil)
				So(w.Code, ShouldEqual, c.status)

				var body map[string]string
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body["code"], ShouldEqual, c.code)
			}
		})

		Convey("When the game is unknown", func() {
			deps.gotName = ""
			w := serve(h, http.MethodGet, "/api/v1/stats/3/Alice", "", nil)

			Convey("Then the request is rejected without a lookup", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(deps.gotName, ShouldBeEmpty)
			})
		})
	})
}

func TestServer_Command(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := &mockDependencies{recs: []model.Record{&model.Game1Stats{ID: "u1", Name: "Alice"}}}
		h := api.NewServer(deps, nil).Router()

		Convey("When a command is posted", func() {
			w := serve(h, http.MethodPost, "/api/v1/command", `{"text":"/div1 Alice"}`, nil)

			Convey("Then the reply text is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var body map[string]string
				So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
				So(body["reply"], ShouldStartWith, "Player: Alice\n")
				So(deps.gotGame, ShouldEqual, model.Game1)
			})
		})

		Convey("When the command lacks arguments", func() {
			w := serve(h, http.MethodPost, "/api/v1/command", `{"text":"/div"}`, nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "usage")
		})

		Convey("When the text is not a command", func() {
			w := serve(h, http.MethodPost, "/api/v1/command", `{"text":"hello"}`, nil)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the body is not JSON", func() {
			w := serve(h, http.MethodPost, "/api/v1/command", `text=/div1`, nil)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the session cannot be renewed", func() {
			deps.statsErr = errors.Join(model.ErrNoResults, model.ErrRenewalExhausted)
			w := serve(h, http.MethodPost, "/api/v1/command", `{"text":"/div 1 Alice"}`, nil)
			So(w.Code, ShouldEqual, http.StatusBadGateway)
		})
	})
}

func TestServer_Names(t *testing.T) {
	Convey("Given an API server with a name history", t, func() {
		ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		deps := &mockDependencies{history: []model.NameRecord{{ID: "u1", Name: "Alice", RecordedAt: ts}}}
		h := api.NewServer(deps, nil).Router()

		Convey("When the history is requested", func() {
			w := serve(h, http.MethodGet, "/api/v1/names/u1", "", nil)

			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"name":"Alice"`)
			So(w.Body.String(), ShouldContainSubstring, `"recorded_at":"2024-05-01T12:00:00Z"`)
		})

		Convey("When the id is unknown", func() {
			deps.history = nil
			w := serve(h, http.MethodGet, "/api/v1/names/u9", "", nil)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestServer_Probes(t *testing.T) {
	Convey("Given an API server", t, func() {
		deps := &mockDependencies{}
		h := api.NewServer(deps, nil).Router()

		Convey("Then /healthz exposes metrics", func() {
			serve(h, http.MethodGet, "/api/v1/stats/9/x", "", nil)
			w := serve(h, http.MethodGet, "/healthz", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "http_requests_total")
		})

		Convey("Then /readyz follows the session state", func() {
			So(serve(h, http.MethodGet, "/readyz", "", nil).Code, ShouldEqual, http.StatusOK)

			deps.readyErr = model.ErrRenewalExhausted
			So(serve(h, http.MethodGet, "/readyz", "", nil).Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("Then /status reports the service state", func() {
			w := serve(h, http.MethodGet, "/status", "", nil)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
		})

		Convey("Then unknown routes are not found", func() {
			So(serve(h, http.MethodGet, "/unknown", "", nil).Code, ShouldEqual, http.StatusNotFound)
		})
	})
}
