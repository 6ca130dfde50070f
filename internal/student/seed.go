package student

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultSeed returns the students loaded when no seed file is configured and
// the persister holds no data.
func DefaultSeed() []*Student {
	return []*Student{
		{ID: 1, Name: "Jéferson", Scores: []float64{8, 7, 9}},
		{ID: 2, Name: "Maria", Scores: []float64{6, 5, 7}},
		{ID: 3, Name: "Carlos", Scores: []float64{9, 8, 10}},
		{ID: 4, Name: "João", Scores: []float64{4, 6, 5}},
		{ID: 5, Name: "Ana", Scores: []float64{7, 7, 8}},
	}
}

type seedFile struct {
	Students []struct {
		Name   string    `yaml:"name"`
		Scores []float64 `yaml:"scores"`
	} `yaml:"students"`
}

// LoadSeedFile reads a YAML seed list of the form:
//
//	students:
//	  - name: Ana
//	    scores: [7, 7, 8]
//
// Ids are assigned from 1 in file order. Validation of names and scores is
// left to NewStudentRepository.
func LoadSeedFile(path string) ([]*Student, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("os.ReadFile error: %w", err)
	}

	var seed seedFile
	if err := yaml.Unmarshal(b, &seed); err != nil {
		return nil, fmt.Errorf("yaml.Unmarshal error: %w", err)
	}

	students := make([]*Student, 0, len(seed.Students))
	for index, s := range seed.Students {
		students = append(students, &Student{
			ID:     index + 1,
			Name:   s.Name,
			Scores: s.Scores,
		})
	}

	return students, nil
}
