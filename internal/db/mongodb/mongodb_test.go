package mongodb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ukane-philemon/gradebook/internal/student"
)

func TestNewRequiresArguments(t *testing.T) {
	_, err := New(context.Background(), "gradebook", "", nil)
	assert.Error(t, err)

	_, err = New(context.Background(), "", "mongodb://localhost:27017", nil)
	assert.Error(t, err)
}

func TestStudentRecordConversion(t *testing.T) {
	s := &student.Student{
		ID:      4,
		Name:    "João",
		Scores:  []float64{4, 6, 5},
		Average: 5,
		Status:  student.StatusFailed,
	}

	record := newDBStudentRecord(s, 2)
	assert.Equal(t, 4, record.ID)
	assert.Equal(t, 2, record.Position)
	assert.Equal(t, "Failed", record.Status)
	assert.Equal(t, s, record.Student())
}
