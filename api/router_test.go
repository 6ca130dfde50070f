package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukane-philemon/gradebook/internal/metrics"
	"github.com/ukane-philemon/gradebook/internal/student"
)

type failingPersister struct {
	err error
}

func (fp *failingPersister) Load(context.Context) ([]*student.Student, error) {
	return nil, nil
}

func (fp *failingPersister) Save(context.Context, []*student.Student) error {
	return fp.err
}

type testRouter struct {
	router  *Router
	store   *student.StudentRepository
	hook    *test.Hook
	metrics *metrics.Metrics
}

func newTestRouter(t *testing.T, cfg student.Config, initial []*student.Student) *testRouter {
	t.Helper()

	logger, hook := test.NewNullLogger()
	cfg.Logger = logger

	store, err := student.NewStudentRepository(cfg, initial)
	require.NoError(t, err)

	m := metrics.NewMetrics(prometheus.NewRegistry(), store.Count)
	router := NewRouter(store, Config{
		RankingSize: 3,
		Metrics:     m,
		Logger:      logger,
	})

	return &testRouter{
		router:  router,
		store:   store,
		hook:    hook,
		metrics: m,
	}
}

// do serves a request and returns the recorder.
func (tr *testRouter) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}

	res := httptest.NewRecorder()
	tr.router.ServeHTTP(res, req)
	return res
}

func decodeError(t *testing.T, res *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	return body.Error
}

func decodeStudent(t *testing.T, res *httptest.ResponseRecorder) *student.Student {
	t.Helper()
	s := new(student.Student)
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), s))
	return s
}

func decodeStudents(t *testing.T, res *httptest.ResponseRecorder) []*student.Student {
	t.Helper()
	var students []*student.Student
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &students))
	return students
}

func TestRouteMatching(t *testing.T) {
	tr := newTestRouter(t, student.Config{}, student.DefaultSeed())

	tests := []struct {
		name       string
		method     string
		path       string
		wantRoute  string
		wantID     int
		wantNoHits bool
	}{
		{name: "list", method: http.MethodGet, path: "/students", wantRoute: "/students"},
		{name: "trailing slash", method: http.MethodGet, path: "/students/", wantRoute: "/students"},
		{name: "sorted", method: http.MethodGet, path: "/students/sorted", wantRoute: "/students/sorted"},
		{name: "ranking", method: http.MethodGet, path: "/students/ranking", wantRoute: "/students/ranking"},
		{name: "approved", method: http.MethodGet, path: "/students/approved", wantRoute: "/students/approved"},
		{name: "failed", method: http.MethodGet, path: "/students/failed", wantRoute: "/students/failed"},
		{name: "average", method: http.MethodGet, path: "/students/average/4", wantRoute: "/students/average/{id}", wantID: 4},
		{name: "by id", method: http.MethodGet, path: "/students/12", wantRoute: "/students/{id}", wantID: 12},
		{name: "create", method: http.MethodPost, path: "/students", wantRoute: "/students"},
		{name: "remedial", method: http.MethodPut, path: "/students/remedial/3", wantRoute: "/students/remedial/{id}", wantID: 3},
		{name: "update", method: http.MethodPut, path: "/students/3", wantRoute: "/students/{id}", wantID: 3},
		{name: "non numeric id", method: http.MethodGet, path: "/students/abc", wantNoHits: true},
		{name: "negative id", method: http.MethodGet, path: "/students/-1", wantNoHits: true},
		{name: "signed id", method: http.MethodGet, path: "/students/+1", wantNoHits: true},
		{name: "id overflow", method: http.MethodGet, path: "/students/99999999999999999999999", wantNoHits: true},
		{name: "extra segment", method: http.MethodGet, path: "/students/1/extra", wantNoHits: true},
		{name: "unknown prefix", method: http.MethodGet, path: "/teachers", wantNoHits: true},
		{name: "wrong method", method: http.MethodDelete, path: "/students/1", wantNoHits: true},
		{name: "post with id", method: http.MethodPost, path: "/students/1", wantNoHits: true},
		{name: "remedial without id", method: http.MethodPut, path: "/students/remedial", wantNoHits: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt, params, found := tr.router.resolve(tt.method, tt.path)
			if tt.wantNoHits {
				assert.False(t, found)
				return
			}

			require.True(t, found)
			assert.Equal(t, tt.wantRoute, rt.pattern)
			assert.Equal(t, tt.wantID, params.ID)
		})
	}
}

func TestFirstMatchWins(t *testing.T) {
	tr := newTestRouter(t, student.Config{}, student.DefaultSeed())

	// "sorted" is a literal route declared before /students/{id}, and
	// "remedial" would never parse as an id.
	rt, _, found := tr.router.resolve(http.MethodGet, "/students/sorted")
	require.True(t, found)
	assert.Equal(t, "/students/sorted", rt.pattern)

	rt, params, found := tr.router.resolve(http.MethodPut, "/students/remedial/5")
	require.True(t, found)
	assert.Equal(t, "/students/remedial/{id}", rt.pattern)
	assert.Equal(t, 5, params.ID)
}

func TestUnmatchedRoute(t *testing.T) {
	tr := newTestRouter(t, student.Config{}, student.DefaultSeed())

	for _, path := range []string{"/students/abc", "/nope", "/"} {
		res := tr.do(http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, res.Code, path)
		assert.Equal(t, "application/json", res.Header().Get("Content-Type"))
		assert.Equal(t, "route not found", decodeError(t, res))
	}

	res := tr.do(http.MethodPatch, "/students/1", `{"name":"x"}`)
	assert.Equal(t, http.StatusNotFound, res.Code)

	assert.Equal(t, 3.0, testutil.ToFloat64(tr.metrics.RequestsTotal.WithLabelValues(http.MethodGet, unmatchedRoute, "404")))
	assert.Equal(t, 1.0, testutil.ToFloat64(tr.metrics.RequestsTotal.WithLabelValues(http.MethodPatch, unmatchedRoute, "404")))
}

func TestNewRouterDefaults(t *testing.T) {
	store, err := student.NewStudentRepository(student.Config{}, student.DefaultSeed())
	require.NoError(t, err)

	router := NewRouter(store, Config{})
	assert.Equal(t, 3, router.rankingSize)
	assert.Equal(t, logrus.StandardLogger(), router.log)

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/students", nil))
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestServerErrorIsLogged(t *testing.T) {
	tr := newTestRouter(t, student.Config{Persister: &failingPersister{err: errors.New("disk full")}}, student.DefaultSeed())

	res := tr.do(http.MethodPost, "/students", `{"name":"Bruna","scores":[9]}`)
	assert.Equal(t, http.StatusInternalServerError, res.Code)
	assert.Equal(t, "internal server error", decodeError(t, res))
	assert.Equal(t, 5, tr.store.Count())

	require.NotNil(t, tr.hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, tr.hook.LastEntry().Level)
	assert.Equal(t, 1.0, testutil.ToFloat64(tr.metrics.ServerErrorsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(tr.metrics.RequestsTotal.WithLabelValues(http.MethodPost, "/students", "500")))
}

func TestUnencodableBodyIsServerError(t *testing.T) {
	tr := newTestRouter(t, student.Config{}, student.DefaultSeed())
	tr.router.routes = append(tr.router.routes, newRoute(http.MethodGet, "/broken", func(*http.Request, Params) (int, any, error) {
		return http.StatusOK, map[string]float64{"average": math.Inf(1)}, nil
	}))

	res := tr.do(http.MethodGet, "/broken", "")
	assert.Equal(t, http.StatusInternalServerError, res.Code)
	assert.Equal(t, "application/json", res.Header().Get("Content-Type"))
	assert.Equal(t, "internal server error", decodeError(t, res))

	require.NotNil(t, tr.hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, tr.hook.LastEntry().Level)
	assert.Equal(t, 1.0, testutil.ToFloat64(tr.metrics.ServerErrorsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(tr.metrics.RequestsTotal.WithLabelValues(http.MethodGet, "/broken", "500")))
	assert.Equal(t, 0.0, testutil.ToFloat64(tr.metrics.RequestsTotal.WithLabelValues(http.MethodGet, "/broken", "200")))
}
