package student

import (
	"math"
	"time"

	"github.com/ukane-philemon/gradebook/internal/db"
)

// Status is the pass/fail outcome derived from a student's average.
type Status string

const (
	StatusApproved Status = "Approved"
	StatusFailed   Status = "Failed"
)

// ArityAny accepts any non-empty number of scores.
const ArityAny = 0

// Event types published after a committed mutation.
const (
	EventCreated = "student.created"
	EventUpdated = "student.updated"
)

// Student is a stored student record. Average and Status are derived from
// Scores and are recomputed on every change.
type Student struct {
	ID      int       `json:"id" bson:"_id" yaml:"id"`
	Name    string    `json:"name" bson:"name" yaml:"name"`
	Scores  []float64 `json:"scores" bson:"scores" yaml:"scores"`
	Average float64   `json:"average" bson:"average" yaml:"-"`
	Status  Status    `json:"status" bson:"status" yaml:"-"`
}

// StudentView is a student record with its derived fields flattened next to
// the raw record. Score1..Score3 are only set for stores running with the
// three-score arity.
type StudentView struct {
	ID      int       `json:"id"`
	Name    string    `json:"name"`
	Scores  []float64 `json:"scores"`
	Score1  *float64  `json:"score1,omitempty"`
	Score2  *float64  `json:"score2,omitempty"`
	Score3  *float64  `json:"score3,omitempty"`
	Average float64   `json:"average"`
	Status  Status    `json:"status"`
}

// NewStudent is the input for creating a student.
type NewStudent struct {
	Name   string    `json:"name" validate:"required,notblank"`
	Scores []float64 `json:"scores" validate:"required,min=1,dive,finite"`
}

// StudentUpdate is a partial update. Nil fields are left untouched. ScoreAt
// replaces individual scores by their 1-based position.
type StudentUpdate struct {
	Name    *string
	Scores  []float64
	ScoreAt map[int]float64
}

// Filter narrows the list of students returned by Students.
type Filter struct {
	// NameContains matches names case-insensitively.
	NameContains string
}

// Event describes a committed mutation.
type Event struct {
	Type    string    `json:"type"`
	Student *Student  `json:"student"`
	At      time.Time `json:"at"`
}

func (s *Student) clone() *Student {
	c := *s
	c.Scores = cloneScores(s.Scores)
	return &c
}

func (s *Student) view(arity int) *StudentView {
	v := &StudentView{
		ID:      s.ID,
		Name:    s.Name,
		Scores:  cloneScores(s.Scores),
		Average: s.Average,
		Status:  s.Status,
	}
	if arity == db.ThreeScoreArity && len(s.Scores) == db.ThreeScoreArity {
		v.Score1, v.Score2, v.Score3 = &v.Scores[0], &v.Scores[1], &v.Scores[2]
	}
	return v
}

func cloneScores(scores []float64) []float64 {
	if scores == nil {
		return nil
	}
	c := make([]float64, len(scores))
	copy(c, scores)
	return c
}

// Average returns the arithmetic mean of scores rounded to two decimal places,
// rounding halves away from zero. Returns 0 for an empty list.
func Average(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}

	var sum float64
	for _, score := range scores {
		sum += score
	}

	return math.Round(sum/float64(len(scores))*100) / 100
}

// StatusFor returns StatusApproved if average is at least passThreshold.
func StatusFor(average, passThreshold float64) Status {
	if average >= passThreshold {
		return StatusApproved
	}
	return StatusFailed
}
