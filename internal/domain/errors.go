package domain

import "fmt"

// TrainingDataError reports malformed or insufficient training data. A failed
// Fit never affects a previously trained model.
type TrainingDataError struct {
	Reason string
	Row    int // zero-based record index, -1 when not row-specific
}

func (e *TrainingDataError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("training data: record %d: %s", e.Row, e.Reason)
	}
	return "training data: " + e.Reason
}

// UnknownCategoryError reports a soil label absent from the model's encoding.
type UnknownCategoryError struct {
	Label string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown soil category %q", e.Label)
}

// SchemaMismatchError reports a feature vector that does not match the
// model's trained schema.
type SchemaMismatchError struct {
	Reason string
}

func (e *SchemaMismatchError) Error() string {
	return "schema mismatch: " + e.Reason
}

func trainingErr(reason string) *TrainingDataError {
	return &TrainingDataError{Reason: reason, Row: -1}
}
