package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/ukane-philemon/gradebook/internal/db"
	customerror "github.com/ukane-philemon/gradebook/internal/errors"
	"github.com/ukane-philemon/gradebook/internal/student"
)

// maxBodyBytes caps the size of request bodies.
const maxBodyBytes = 1 << 20

var errInvalidScores = fmt.Errorf("%w: invalid scores", db.ErrorInvalidRequest)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
}

// studentBody is the request body of the student mutation routes. Fields are
// kept raw so that a field of the wrong type is reported as an invalid field
// instead of a malformed body.
type studentBody struct {
	Name   json.RawMessage `json:"name"`
	Scores json.RawMessage `json:"scores"`
	Score1 json.RawMessage `json:"score1"`
	Score2 json.RawMessage `json:"score2"`
	Score3 json.RawMessage `json:"score3"`
}

// readStudentBody reads the full request body and decodes it. An empty body
// is treated as an empty object.
func readStudentBody(req *http.Request) (*studentBody, error) {
	body := new(studentBody)
	if req.Body == nil {
		return body, nil
	}

	data, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes+1))
	if err != nil {
		return nil, &customerror.ErrorMalformedBody{Err: err}
	}

	if len(data) > maxBodyBytes {
		return nil, &customerror.ErrorMalformedBody{Err: fmt.Errorf("body exceeds %d bytes", maxBodyBytes)}
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return body, nil
	}

	if err := json.Unmarshal(data, body); err != nil {
		return nil, &customerror.ErrorMalformedBody{Err: err}
	}

	return body, nil
}

// namedScores returns the raw score1, score2 and score3 fields in order.
func (b *studentBody) namedScores() []json.RawMessage {
	return []json.RawMessage{b.Score1, b.Score2, b.Score3}
}

// hasNamedScores reports whether any of score1..score3 is set.
func (b *studentBody) hasNamedScores() bool {
	for _, raw := range b.namedScores() {
		if present(raw) {
			return true
		}
	}
	return false
}

// newStudent converts b into the input for creating a student. A scores list
// wins over named scores; named scores must all be set.
func (b *studentBody) newStudent() (*student.NewStudent, error) {
	input := new(student.NewStudent)
	if present(b.Name) {
		name, err := parseName(b.Name)
		if err != nil {
			return nil, err
		}
		input.Name = name
	}

	switch {
	case present(b.Scores):
		scores, err := parseScores(b.Scores)
		if err != nil {
			return nil, err
		}
		input.Scores = scores
	case b.hasNamedScores():
		scores := make([]float64, 0, db.ThreeScoreArity)
		for index, raw := range b.namedScores() {
			if !present(raw) {
				return nil, fmt.Errorf("score%d is required", index+1)
			}

			score, err := parseScore(raw, index+1)
			if err != nil {
				return nil, err
			}
			scores = append(scores, score)
		}
		input.Scores = scores
	}

	return input, nil
}

// studentUpdate converts b into a partial update.
func (b *studentBody) studentUpdate() (*student.StudentUpdate, error) {
	input := new(student.StudentUpdate)
	if present(b.Name) {
		name, err := parseName(b.Name)
		if err != nil {
			return nil, err
		}
		input.Name = &name
	}

	if present(b.Scores) {
		scores, err := parseScores(b.Scores)
		if err != nil {
			return nil, err
		}
		input.Scores = scores
	}

	for index, raw := range b.namedScores() {
		if !present(raw) {
			continue
		}

		score, err := parseScore(raw, index+1)
		if err != nil {
			return nil, err
		}

		if input.ScoreAt == nil {
			input.ScoreAt = make(map[int]float64, db.ThreeScoreArity)
		}
		input.ScoreAt[index+1] = score
	}

	return input, nil
}

// present reports whether a raw field was supplied with a non-null value.
func present(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

func parseName(raw json.RawMessage) (string, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return "", errors.New("name must be a string")
	}
	return name, nil
}

func parseScores(raw json.RawMessage) ([]float64, error) {
	var values []*float64
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, errors.New("scores must be an array of numbers")
	}

	scores := make([]float64, 0, len(values))
	for _, value := range values {
		if value == nil {
			return nil, errors.New("scores must be an array of numbers")
		}
		scores = append(scores, *value)
	}
	return scores, nil
}

func parseScore(raw json.RawMessage, slot int) (float64, error) {
	var score float64
	if err := json.Unmarshal(raw, &score); err != nil {
		return 0, fmt.Errorf("score%d must be a number", slot)
	}
	return score, nil
}

// invalidFields wraps the reason err carries into the "invalid fields"
// validation error.
func invalidFields(err error) error {
	return fmt.Errorf("%w: invalid fields: %s", db.ErrorInvalidRequest, errorReason(err))
}

// errorReason returns the message of err without the db.ErrorInvalidRequest
// prefix.
func errorReason(err error) string {
	return strings.TrimPrefix(err.Error(), db.ErrorInvalidRequest.Error()+": ")
}

// handleError maps err to a status code and response body. Server errors are
// logged and replaced with a generic error.
func (r *Router) handleError(req *http.Request, err error) (int, *errorResponse) {
	var malformedBody *customerror.ErrorMalformedBody
	var routeNotFound *customerror.ErrorRouteNotFound
	switch {
	case errors.As(err, &routeNotFound):
		return http.StatusNotFound, &errorResponse{Error: routeNotFound.Error()}
	case errors.Is(err, db.ErrorNotFound):
		return http.StatusNotFound, &errorResponse{Error: db.ErrorNotFound.Error()}
	case errors.As(err, &malformedBody):
		return http.StatusBadRequest, &errorResponse{Error: malformedBody.Error()}
	case errors.Is(err, db.ErrorInvalidRequest):
		return http.StatusBadRequest, &errorResponse{Error: errorReason(err)}
	}

	r.log.WithError(err).WithFields(logrus.Fields{
		"method": req.Method,
		"path":   req.URL.Path,
	}).Error("SERVER ERROR")
	r.metrics.IncrementServerErrors()

	return http.StatusInternalServerError, &errorResponse{Error: (&customerror.ErrorUnknown{}).Error()}
}

// writeJSON encodes body and writes it with the provided status code. A body
// that cannot be encoded is answered as a server error. Returns the status
// code that was written.
func (r *Router) writeJSON(res http.ResponseWriter, req *http.Request, status int, body any) int {
	data, err := json.Marshal(body)
	if err != nil {
		var errBody *errorResponse
		status, errBody = r.handleError(req, fmt.Errorf("json.Marshal error: %w", err))
		data, _ = json.Marshal(errBody)
	}

	res.Header().Set("Content-Type", "application/json")
	res.WriteHeader(status)
	if _, err := res.Write(append(data, '\n')); err != nil {
		r.log.WithError(err).Warn("failed to write response")
	}

	return status
}
