package db

import (
	"errors"
)

// DefaultPassThreshold is the minimum average a student needs to be approved.
const DefaultPassThreshold = 7.0

// ThreeScoreArity is the number of named scores (score1, score2, score3)
// required when the store runs with a fixed score arity.
const ThreeScoreArity = 3

// ErrorInvalidRequest is a user facing error returned by repositories.
var ErrorInvalidRequest = errors.New("invalid request")

// ErrorNotFound is returned by repositories when no record matches the
// requested ID.
var ErrorNotFound = errors.New("student not found")

// ErrorCorruptState is returned by persisters and store constructors when the
// stored record list cannot be trusted.
var ErrorCorruptState = errors.New("corrupt persisted state")
