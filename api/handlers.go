package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ukane-philemon/gradebook/internal/db"
	"github.com/ukane-philemon/gradebook/internal/student"
)

// listStudents handles GET /students. An optional name query parameter
// narrows the list.
func (r *Router) listStudents(req *http.Request, _ Params) (int, any, error) {
	filter := &student.Filter{
		NameContains: req.URL.Query().Get("name"),
	}
	return http.StatusOK, r.db.Students(filter), nil
}

func (r *Router) sortedStudents(_ *http.Request, _ Params) (int, any, error) {
	return http.StatusOK, r.db.SortedByAverage(), nil
}

func (r *Router) rankedStudents(_ *http.Request, _ Params) (int, any, error) {
	return http.StatusOK, r.db.TopRanked(r.rankingSize), nil
}

func (r *Router) approvedStudents(_ *http.Request, _ Params) (int, any, error) {
	return http.StatusOK, r.db.Approved(), nil
}

func (r *Router) failedStudents(_ *http.Request, _ Params) (int, any, error) {
	return http.StatusOK, r.db.Failed(), nil
}

func (r *Router) studentAverage(_ *http.Request, params Params) (int, any, error) {
	view, err := r.db.StudentView(params.ID)
	if err != nil {
		return 0, nil, fmt.Errorf("db.StudentView error: %w", err)
	}
	return http.StatusOK, view, nil
}

func (r *Router) getStudent(_ *http.Request, params Params) (int, any, error) {
	s, err := r.db.Student(params.ID)
	if err != nil {
		return 0, nil, fmt.Errorf("db.Student error: %w", err)
	}
	return http.StatusOK, s, nil
}

// createStudent handles POST /students. The body carries either a scores
// list or the three named scores.
func (r *Router) createStudent(req *http.Request, _ Params) (int, any, error) {
	body, err := readStudentBody(req)
	if err != nil {
		return 0, nil, err
	}

	input, err := body.newStudent()
	if err != nil {
		return 0, nil, invalidFields(err)
	}

	s, err := r.db.Create(req.Context(), input)
	if err != nil {
		if errors.Is(err, db.ErrorInvalidRequest) {
			return 0, nil, invalidFields(err)
		}
		return 0, nil, fmt.Errorf("db.Create error: %w", err)
	}

	return http.StatusCreated, s, nil
}

// updateStudent handles PUT /students/{id}. Fields missing from the body are
// left untouched.
func (r *Router) updateStudent(req *http.Request, params Params) (int, any, error) {
	// Unknown ids are reported before the body is inspected.
	if _, err := r.db.Student(params.ID); err != nil {
		return 0, nil, fmt.Errorf("db.Student error: %w", err)
	}

	body, err := readStudentBody(req)
	if err != nil {
		return 0, nil, err
	}

	input, err := body.studentUpdate()
	if err != nil {
		return 0, nil, invalidFields(err)
	}

	s, err := r.db.Update(req.Context(), params.ID, input)
	if err != nil {
		if errors.Is(err, db.ErrorInvalidRequest) {
			return 0, nil, invalidFields(err)
		}
		return 0, nil, fmt.Errorf("db.Update error: %w", err)
	}

	return http.StatusOK, s, nil
}

// remedialScores handles PUT /students/remedial/{id}, replacing every score
// of the student.
func (r *Router) remedialScores(req *http.Request, params Params) (int, any, error) {
	if _, err := r.db.Student(params.ID); err != nil {
		return 0, nil, fmt.Errorf("db.Student error: %w", err)
	}

	body, err := readStudentBody(req)
	if err != nil {
		return 0, nil, err
	}

	if !present(body.Scores) {
		return 0, nil, errInvalidScores
	}

	scores, err := parseScores(body.Scores)
	if err != nil {
		return 0, nil, errInvalidScores
	}

	s, err := r.db.UpdateScores(req.Context(), params.ID, scores)
	if err != nil {
		if errors.Is(err, db.ErrorInvalidRequest) {
			return 0, nil, errInvalidScores
		}
		return 0, nil, fmt.Errorf("db.UpdateScores error: %w", err)
	}

	return http.StatusOK, s, nil
}
