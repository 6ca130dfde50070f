package student

import "context"

type Repository interface {
	// Students returns all students in insertion order. A non-nil filter with
	// a NameContains value narrows the result to students whose name contains
	// it, ignoring case.
	Students(filter *Filter) []*Student
	// Student returns the student that match the provided id. Returns
	// db.ErrorNotFound if no student exists.
	Student(id int) (*Student, error)
	// StudentView returns the student that match the provided id with its
	// average and status flattened alongside the record. Returns
	// db.ErrorNotFound if no student exists.
	StudentView(id int) (*StudentView, error)
	// Create adds a new student and assigns its id. Returns
	// db.ErrorInvalidRequest if the name or scores are invalid.
	Create(ctx context.Context, input *NewStudent) (*Student, error)
	// Update applies a partial update to the student that match id. Returns
	// db.ErrorNotFound if no student exists or db.ErrorInvalidRequest if a
	// supplied field is invalid.
	Update(ctx context.Context, id int, input *StudentUpdate) (*Student, error)
	// UpdateScores replaces the scores of the student that match id.
	UpdateScores(ctx context.Context, id int, scores []float64) (*Student, error)
	// SortedByAverage returns all students ordered by average, highest first.
	// Students with equal averages keep their insertion order.
	SortedByAverage() []*Student
	// TopRanked returns the first n students of SortedByAverage.
	TopRanked(n int) []*Student
	// Approved returns students whose status is StatusApproved.
	Approved() []*Student
	// Failed returns students whose status is StatusFailed.
	Failed() []*Student
}

// Persister stores the full student list. Save is called with the complete
// list after every mutation and must not retain the slice.
type Persister interface {
	// Load returns the stored list, or nil if nothing was stored yet.
	Load(ctx context.Context) ([]*Student, error)
	Save(ctx context.Context, students []*Student) error
}

// Publisher receives committed mutations.
type Publisher interface {
	Publish(event *Event) error
}
