package mongodb

import (
	"github.com/ukane-philemon/gradebook/internal/student"
)

type dbStudentRecord struct {
	ID       int       `bson:"_id"`
	Position int       `bson:"position"`
	Name     string    `bson:"name"`
	Scores   []float64 `bson:"scores"`
	Average  float64   `bson:"average"`
	Status   string    `bson:"status"`
}

func newDBStudentRecord(s *student.Student, position int) *dbStudentRecord {
	return &dbStudentRecord{
		ID:       s.ID,
		Position: position,
		Name:     s.Name,
		Scores:   s.Scores,
		Average:  s.Average,
		Status:   string(s.Status),
	}
}

func (sr *dbStudentRecord) Student() *student.Student {
	return &student.Student{
		ID:      sr.ID,
		Name:    sr.Name,
		Scores:  sr.Scores,
		Average: sr.Average,
		Status:  student.Status(sr.Status),
	}
}
