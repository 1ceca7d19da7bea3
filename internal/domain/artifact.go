package domain

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"
)

const artifactVersion = 1

// artifact is the on-disk form of a TrainedModel.
type artifact struct {
	Version      int           `json:"version"`
	ID           string        `json:"id"`
	TrainedAt    time.Time     `json:"trained_at"`
	Schema       Schema        `json:"schema"`
	Classes      []string      `json:"classes"`
	SoilLabels   []string      `json:"soil_labels,omitempty"`
	Options      ForestOptions `json:"options"`
	TrainingRows int           `json:"training_rows"`
	Forest       forest        `json:"forest"`
}

// Encode writes the model as a JSON artifact.
func (m *TrainedModel) Encode(w io.Writer) error {
	a := artifact{
		Version:      artifactVersion,
		ID:           m.id,
		TrainedAt:    m.trainedAt,
		Schema:       m.schema,
		Classes:      m.classes,
		SoilLabels:   m.soilLabels,
		Options:      m.opts,
		TrainingRows: m.trainingRows,
		Forest:       m.forest,
	}
	if err := json.NewEncoder(w).Encode(a); err != nil {
		return fmt.Errorf("encode model artifact: %w", err)
	}
	return nil
}

// DecodeModel reads a JSON artifact written by Encode and checks that the
// trees are consistent with the recorded schema and class labels.
func DecodeModel(r io.Reader) (*TrainedModel, error) {
	var a artifact
	if err := json.NewDecoder(r).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode model artifact: %w", err)
	}
	if a.Version != artifactVersion {
		return nil, fmt.Errorf("decode model artifact: unsupported version %d", a.Version)
	}
	if err := validateSchema(a.Schema); err != nil {
		return nil, fmt.Errorf("decode model artifact: %w", err)
	}
	if len(a.Classes) < 2 || a.Forest.NumClasses != len(a.Classes) || len(a.Forest.Trees) == 0 {
		return nil, fmt.Errorf("decode model artifact: inconsistent classes")
	}
	if !strictlySorted(a.Classes) {
		return nil, fmt.Errorf("decode model artifact: classes must be unique and sorted")
	}
	if a.Schema.HasSoil != (len(a.SoilLabels) > 0) {
		return nil, fmt.Errorf("decode model artifact: soil labels do not match schema")
	}
	if !strictlySorted(a.SoilLabels) {
		return nil, fmt.Errorf("decode model artifact: soil labels must be unique and sorted")
	}
	width := a.Schema.Width()
	for ti, t := range a.Forest.Trees {
		if err := checkTree(t, width, len(a.Classes)); err != nil {
			return nil, fmt.Errorf("decode model artifact: tree %d: %w", ti, err)
		}
	}

	return &TrainedModel{
		id:           a.ID,
		trainedAt:    a.TrainedAt,
		schema:       a.Schema,
		classes:      a.Classes,
		soilLabels:   a.SoilLabels,
		soilIndex:    indexOf(a.SoilLabels),
		forest:       a.Forest,
		opts:         a.Options,
		trainingRows: a.TrainingRows,
	}, nil
}

func checkTree(t tree, width, numClasses int) error {
	if len(t.Nodes) == 0 {
		return fmt.Errorf("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Feature < 0 {
			if len(n.Dist) != numClasses {
				return fmt.Errorf("node %d: distribution has %d classes", i, len(n.Dist))
			}
			for _, p := range n.Dist {
				if math.IsNaN(p) || p < 0 || p > 1 {
					return fmt.Errorf("node %d: probability %v outside [0,1]", i, p)
				}
			}
			continue
		}
		if n.Feature >= width {
			return fmt.Errorf("node %d: feature %d out of range", i, n.Feature)
		}
		// Children are always appended after their parent.
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d: child index out of range", i)
		}
	}
	return nil
}

// strictlySorted reports whether labels are in ascending order without
// duplicates. Rank relies on that order to break ties.
func strictlySorted(labels []string) bool {
	for i := 1; i < len(labels); i++ {
		if labels[i-1] >= labels[i] {
			return false
		}
	}
	return true
}
