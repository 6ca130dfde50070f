package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	customerror "github.com/ukane-philemon/gradebook/internal/errors"
	"github.com/ukane-philemon/gradebook/internal/metrics"
)

// unmatchedRoute labels metrics for requests that match no route.
const unmatchedRoute = "unmatched"

// Params holds values extracted from a matched path.
type Params struct {
	ID int
}

// handlerFunc handles a matched request and returns the status code and body
// to encode, or an error to be mapped by handleError.
type handlerFunc func(req *http.Request, params Params) (int, any, error)

type segment struct {
	literal string
	isID    bool
}

type route struct {
	method   string
	pattern  string
	segments []segment
	handle   handlerFunc
}

// newRoute parses pattern into literal segments and at most one {id}
// segment, which must be the last one.
func newRoute(method, pattern string, handle handlerFunc) *route {
	parts := splitPath(pattern)
	segments := make([]segment, 0, len(parts))
	for index, part := range parts {
		if part == "{id}" {
			if index != len(parts)-1 {
				panic("api: {id} must be the last segment of " + pattern)
			}
			segments = append(segments, segment{isID: true})
			continue
		}
		segments = append(segments, segment{literal: part})
	}

	return &route{
		method:   method,
		pattern:  pattern,
		segments: segments,
		handle:   handle,
	}
}

// match reports whether method and path segments match r.
func (r *route) match(method string, parts []string) (Params, bool) {
	var params Params
	if r.method != method || len(r.segments) != len(parts) {
		return params, false
	}

	for index, seg := range r.segments {
		if !seg.isID {
			if seg.literal != parts[index] {
				return params, false
			}
			continue
		}

		id, ok := parseID(parts[index])
		if !ok {
			return params, false
		}
		params.ID = id
	}

	return params, true
}

// parseID accepts only non-negative base 10 integers made of ASCII digits.
func parseID(s string) (int, bool) {
	if s == "" {
		return 0, false
	}

	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return 0, false
		}
	}

	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return id, true
}

// splitPath splits path on "/" and drops empty segments.
func splitPath(path string) []string {
	raw := strings.Split(path, "/")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

// Config configures a Router.
type Config struct {
	// RankingSize is the number of students returned by the ranking route.
	RankingSize int
	Metrics     *metrics.Metrics
	Logger      logrus.FieldLogger
}

// Router dispatches requests through an ordered route table. The first route
// whose method and path match handles the request.
type Router struct {
	db          StudentDatabase
	routes      []*route
	rankingSize int
	metrics     *metrics.Metrics
	log         logrus.FieldLogger
}

// NewRouter creates a new instance of *Router serving the student routes.
func NewRouter(db StudentDatabase, cfg Config) *Router {
	r := &Router{
		db:          db,
		rankingSize: cfg.RankingSize,
		metrics:     cfg.Metrics,
		log:         cfg.Logger,
	}

	if r.rankingSize < 1 {
		r.rankingSize = 3
	}

	if r.log == nil {
		r.log = logrus.StandardLogger()
	}

	r.routes = []*route{
		newRoute(http.MethodGet, "/students", r.listStudents),
		newRoute(http.MethodGet, "/students/sorted", r.sortedStudents),
		newRoute(http.MethodGet, "/students/ranking", r.rankedStudents),
		newRoute(http.MethodGet, "/students/approved", r.approvedStudents),
		newRoute(http.MethodGet, "/students/failed", r.failedStudents),
		newRoute(http.MethodGet, "/students/average/{id}", r.studentAverage),
		newRoute(http.MethodGet, "/students/{id}", r.getStudent),
		newRoute(http.MethodPost, "/students", r.createStudent),
		newRoute(http.MethodPut, "/students/remedial/{id}", r.remedialScores),
		newRoute(http.MethodPut, "/students/{id}", r.updateStudent),
	}

	return r
}

// resolve returns the first route matching method and path.
func (r *Router) resolve(method, path string) (*route, Params, bool) {
	parts := splitPath(path)
	for _, rt := range r.routes {
		if params, ok := rt.match(method, parts); ok {
			return rt, params, true
		}
	}
	return nil, Params{}, false
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(res http.ResponseWriter, req *http.Request) {
	rt, params, found := r.resolve(req.Method, req.URL.Path)
	if !found {
		status, body := r.handleError(req, &customerror.ErrorRouteNotFound{})
		status = r.writeJSON(res, req, status, body)
		r.metrics.ObserveRequest(req.Method, unmatchedRoute, status)
		return
	}

	status, body, err := rt.handle(req, params)
	if err != nil {
		status, body = r.handleError(req, err)
	}

	status = r.writeJSON(res, req, status, body)
	r.metrics.ObserveRequest(req.Method, rt.pattern, status)
}
