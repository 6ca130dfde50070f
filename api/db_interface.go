package api

import (
	"context"

	"github.com/ukane-philemon/gradebook/internal/student"
)

type StudentDatabase interface {
	// Students returns all students in insertion order, narrowed by filter
	// when it is not nil.
	Students(filter *student.Filter) []*student.Student
	// Student returns the student that match id. Returns db.ErrorNotFound if
	// no student exists.
	Student(id int) (*student.Student, error)
	// StudentView returns the student that match id with average and status
	// flattened into the record. Returns db.ErrorNotFound if no student
	// exists.
	StudentView(id int) (*student.StudentView, error)
	// Create adds a new student. Returns db.ErrorInvalidRequest if the input
	// fails validation.
	Create(ctx context.Context, input *student.NewStudent) (*student.Student, error)
	// Update applies a partial update. Returns db.ErrorNotFound or
	// db.ErrorInvalidRequest.
	Update(ctx context.Context, id int, input *student.StudentUpdate) (*student.Student, error)
	// UpdateScores replaces a student's scores. Returns db.ErrorNotFound or
	// db.ErrorInvalidRequest.
	UpdateScores(ctx context.Context, id int, scores []float64) (*student.Student, error)
	SortedByAverage() []*student.Student
	TopRanked(n int) []*student.Student
	Approved() []*student.Student
	Failed() []*student.Student
}
