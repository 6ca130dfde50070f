package student

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/sirupsen/logrus"
	"github.com/ukane-philemon/gradebook/internal/db"
)

// Check that *StudentRepository implements Repository.
var _ Repository = (*StudentRepository)(nil)

// Config configures a StudentRepository.
type Config struct {
	// PassThreshold is the minimum average for StatusApproved. Zero means
	// db.DefaultPassThreshold.
	PassThreshold float64
	// Arity is the exact number of scores each student must have, or ArityAny.
	Arity int
	// Persister is optional. When set, every mutation is saved before it is
	// committed.
	Persister Persister
	// Publisher is optional.
	Publisher Publisher
	Logger    logrus.FieldLogger
}

// StudentRepository is an in-memory Repository. All methods are safe for
// concurrent use; mutations are serialized.
type StudentRepository struct {
	mu       sync.RWMutex
	students []*Student
	// positions maps a student id to its index in students.
	positions map[int]int
	nextID    int

	passThreshold float64
	arity         int
	persister     Persister
	publisher     Publisher
	validate      *validator.Validate
	log           logrus.FieldLogger
}

// NewStudentRepository creates a new instance of *StudentRepository holding
// initial. Derived fields of initial are recomputed. Returns
// db.ErrorCorruptState if initial holds duplicate ids or invalid records.
func NewStudentRepository(cfg Config, initial []*Student) (*StudentRepository, error) {
	if cfg.Arity < 0 {
		return nil, fmt.Errorf("invalid score arity %d", cfg.Arity)
	}

	passThreshold := cfg.PassThreshold
	if passThreshold == 0 {
		passThreshold = db.DefaultPassThreshold
	}

	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	sr := &StudentRepository{
		students:      make([]*Student, 0, len(initial)),
		positions:     make(map[int]int, len(initial)),
		nextID:        1,
		passThreshold: passThreshold,
		arity:         cfg.Arity,
		persister:     cfg.Persister,
		publisher:     cfg.Publisher,
		validate:      newValidator(),
		log:           log,
	}

	for index, s := range initial {
		if s == nil {
			return nil, fmt.Errorf("%w: record %d is empty", db.ErrorCorruptState, index+1)
		}

		if s.ID < 1 {
			return nil, fmt.Errorf("%w: record %d has invalid id %d", db.ErrorCorruptState, index+1, s.ID)
		}

		if _, found := sr.positions[s.ID]; found {
			return nil, fmt.Errorf("%w: duplicate id %d", db.ErrorCorruptState, s.ID)
		}

		if err := sr.checkName(s.Name); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", db.ErrorCorruptState, s.ID, err)
		}

		if err := sr.checkScores(s.Scores); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", db.ErrorCorruptState, s.ID, err)
		}

		student := s.clone()
		sr.computeDerived(student)
		sr.positions[student.ID] = len(sr.students)
		sr.students = append(sr.students, student)

		if student.ID >= sr.nextID {
			sr.nextID = student.ID + 1
		}
	}

	return sr, nil
}

// Students implements Repository.
func (sr *StudentRepository) Students(filter *Filter) []*Student {
	var query string
	if filter != nil {
		query = strings.ToLower(filter.NameContains)
	}

	return sr.collect(func(s *Student) bool {
		return query == "" || strings.Contains(strings.ToLower(s.Name), query)
	})
}

// Student implements Repository.
func (sr *StudentRepository) Student(id int) (*Student, error) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	position, found := sr.positions[id]
	if !found {
		return nil, fmt.Errorf("%w: no record found for student with ID %d", db.ErrorNotFound, id)
	}

	return sr.students[position].clone(), nil
}

// StudentView implements Repository.
func (sr *StudentRepository) StudentView(id int) (*StudentView, error) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	position, found := sr.positions[id]
	if !found {
		return nil, fmt.Errorf("%w: no record found for student with ID %d", db.ErrorNotFound, id)
	}

	return sr.students[position].view(sr.arity), nil
}

// Create implements Repository.
func (sr *StudentRepository) Create(ctx context.Context, input *NewStudent) (*Student, error) {
	if input == nil {
		return nil, fmt.Errorf("%w: missing required argument(s)", db.ErrorInvalidRequest)
	}

	if err := sr.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %s", db.ErrorInvalidRequest, validationReason(err))
	}

	if err := sr.checkScoreSet(input.Scores); err != nil {
		return nil, fmt.Errorf("%w: %v", db.ErrorInvalidRequest, err)
	}

	sr.mu.Lock()
	defer sr.mu.Unlock()

	student := &Student{
		ID:     sr.nextID,
		Name:   input.Name,
		Scores: cloneScores(input.Scores),
	}
	sr.computeDerived(student)

	next := append(sr.snapshot(1), student)
	if err := sr.persist(ctx, next); err != nil {
		return nil, err
	}

	sr.students = next
	sr.positions[student.ID] = len(next) - 1
	sr.nextID++

	sr.publish(EventCreated, student)
	return student.clone(), nil
}

// Update implements Repository.
func (sr *StudentRepository) Update(ctx context.Context, id int, input *StudentUpdate) (*Student, error) {
	return sr.replace(ctx, id, func(student *Student) error {
		if input == nil {
			return nil
		}

		if input.Name != nil {
			if err := sr.checkName(*input.Name); err != nil {
				return err
			}
			student.Name = *input.Name
		}

		if input.Scores != nil {
			student.Scores = cloneScores(input.Scores)
		}

		for slot, score := range input.ScoreAt {
			if slot < 1 || slot > len(student.Scores) {
				return fmt.Errorf("score%d does not exist for this student", slot)
			}
			student.Scores[slot-1] = score
		}

		return sr.checkScores(student.Scores)
	})
}

// UpdateScores implements Repository.
func (sr *StudentRepository) UpdateScores(ctx context.Context, id int, scores []float64) (*Student, error) {
	return sr.replace(ctx, id, func(student *Student) error {
		if err := sr.checkScores(scores); err != nil {
			return err
		}
		student.Scores = cloneScores(scores)
		return nil
	})
}

// SortedByAverage implements Repository.
func (sr *StudentRepository) SortedByAverage() []*Student {
	students := sr.collect(nil)

	// Sort according to highest average.
	sort.SliceStable(students, func(i, j int) bool {
		return students[i].Average > students[j].Average
	})

	return students
}

// TopRanked implements Repository.
func (sr *StudentRepository) TopRanked(n int) []*Student {
	if n <= 0 {
		return []*Student{}
	}

	students := sr.SortedByAverage()
	if n < len(students) {
		students = students[:n]
	}
	return students
}

// Approved implements Repository.
func (sr *StudentRepository) Approved() []*Student {
	return sr.collect(func(s *Student) bool { return s.Status == StatusApproved })
}

// Failed implements Repository.
func (sr *StudentRepository) Failed() []*Student {
	return sr.collect(func(s *Student) bool { return s.Status == StatusFailed })
}

// Count returns the number of stored students.
func (sr *StudentRepository) Count() int {
	sr.mu.RLock()
	defer sr.mu.RUnlock()
	return len(sr.students)
}

// Persist saves the current student list. It is used to write a freshly
// seeded store to an empty backend.
func (sr *StudentRepository) Persist(ctx context.Context) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	return sr.persist(ctx, sr.students)
}

// collect returns copies of the students accepted by keep, in insertion
// order. A nil keep accepts every student. The result is never nil.
func (sr *StudentRepository) collect(keep func(*Student) bool) []*Student {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	students := make([]*Student, 0, len(sr.students))
	for _, s := range sr.students {
		if keep == nil || keep(s) {
			students = append(students, s.clone())
		}
	}
	return students
}

// replace runs apply on a copy of the student that match id and commits the
// copy once it has been persisted.
func (sr *StudentRepository) replace(ctx context.Context, id int, apply func(*Student) error) (*Student, error) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	position, found := sr.positions[id]
	if !found {
		return nil, fmt.Errorf("%w: no record found for student with ID %d", db.ErrorNotFound, id)
	}

	student := sr.students[position].clone()
	if err := apply(student); err != nil {
		return nil, fmt.Errorf("%w: %v", db.ErrorInvalidRequest, err)
	}
	sr.computeDerived(student)

	next := sr.snapshot(0)
	next[position] = student
	if err := sr.persist(ctx, next); err != nil {
		return nil, err
	}

	sr.students = next
	sr.publish(EventUpdated, student)
	return student.clone(), nil
}

// snapshot returns a shallow copy of the student list with capacity for extra
// appended entries. Callers must hold the write lock.
func (sr *StudentRepository) snapshot(extra int) []*Student {
	next := make([]*Student, len(sr.students), len(sr.students)+extra)
	copy(next, sr.students)
	return next
}

func (sr *StudentRepository) persist(ctx context.Context, students []*Student) error {
	if sr.persister == nil {
		return nil
	}

	if err := sr.persister.Save(ctx, students); err != nil {
		return fmt.Errorf("persister.Save error: %w", err)
	}
	return nil
}

func (sr *StudentRepository) publish(eventType string, student *Student) {
	if sr.publisher == nil {
		return
	}

	err := sr.publisher.Publish(&Event{
		Type:    eventType,
		Student: student.clone(),
		At:      time.Now().UTC(),
	})
	if err != nil {
		sr.log.WithError(err).WithFields(logrus.Fields{
			"event":     eventType,
			"studentID": student.ID,
		}).Warn("failed to publish student event")
	}
}

func (sr *StudentRepository) computeDerived(student *Student) {
	student.Average = Average(student.Scores)
	student.Status = StatusFor(student.Average, sr.passThreshold)
}

func (sr *StudentRepository) checkName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("name is required")
	}
	return nil
}

func (sr *StudentRepository) checkScores(scores []float64) error {
	if len(scores) == 0 {
		return errors.New("scores must contain at least one score")
	}

	for index, score := range scores {
		if !isFinite(score) {
			return fmt.Errorf("score %d is not a number", index+1)
		}
	}

	return sr.checkScoreSet(scores)
}

// checkScoreSet checks rules that apply to the scores as a whole: the arity
// policy and an average that can be represented.
func (sr *StudentRepository) checkScoreSet(scores []float64) error {
	if sr.arity != ArityAny && len(scores) != sr.arity {
		return fmt.Errorf("exactly %d scores are required", sr.arity)
	}

	if !isFinite(Average(scores)) {
		return errors.New("scores are too large to average")
	}

	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Both tags are static, registration cannot fail.
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		field := fl.Field()
		switch field.Kind() {
		case reflect.Float32, reflect.Float64:
			return isFinite(field.Float())
		default:
			return false
		}
	})
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	return v
}

// validationReason turns validator errors into a short user facing reason.
func validationReason(err error) string {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return err.Error()
	}

	reasons := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		switch fe.Tag() {
		case "required", "notblank":
			reasons = append(reasons, fe.Field()+" is required")
		case "finite":
			reasons = append(reasons, fe.Field()+" must be a finite number")
		case "min":
			reasons = append(reasons, fmt.Sprintf("%s must contain at least %s value(s)", fe.Field(), fe.Param()))
		default:
			reasons = append(reasons, fe.Field()+" is invalid")
		}
	}
	return strings.Join(reasons, ", ")
}
