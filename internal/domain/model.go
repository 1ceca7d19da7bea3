package domain

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
)

// DefaultTopK is the number of crops returned when the caller does not ask
// for a specific cutoff.
const DefaultTopK = 5

// TrainedModel is a fitted crop classifier together with the class labels and
// soil encoding it was trained with. It is immutable after Fit and safe for
// concurrent use; retraining produces a new value.
type TrainedModel struct {
	id           string
	trainedAt    time.Time
	schema       Schema
	classes      []string
	soilLabels   []string
	soilIndex    map[string]int
	forest       forest
	opts         ForestOptions
	trainingRows int
}

// Fit trains a random forest on records laid out according to schema.
//
// Class labels and soil categories are each encoded by sorted order, so two
// fits over the same records with the same options produce identical models
// (apart from ID and timestamp).
func Fit(schema Schema, records []CropRecord, opts ForestOptions) (*TrainedModel, error) {
	if err := validateSchema(schema); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, trainingErr("no records")
	}

	labelSet := make(map[string]struct{})
	soilSet := make(map[string]struct{})
	for i, rec := range records {
		if err := checkRecord(schema, rec); err != nil {
			err.Row = i
			return nil, err
		}
		labelSet[rec.Label] = struct{}{}
		if schema.HasSoil {
			soilSet[rec.Soil] = struct{}{}
		}
	}
	if len(labelSet) < 2 {
		return nil, trainingErr(fmt.Sprintf("need at least 2 distinct labels, got %d", len(labelSet)))
	}

	classes := sortedKeys(labelSet)
	classIndex := indexOf(classes)
	soilLabels := sortedKeys(soilSet)
	soilIndex := indexOf(soilLabels)

	x := make([][]float64, len(records))
	y := make([]int, len(records))
	for i, rec := range records {
		row := make([]float64, schema.Width())
		for j, name := range schema.Numeric {
			row[j] = rec.Features[name]
		}
		if schema.HasSoil {
			row[len(schema.Numeric)] = float64(soilIndex[rec.Soil])
		}
		x[i] = row
		y[i] = classIndex[rec.Label]
	}

	opts = opts.withDefaults(schema.Width())

	return &TrainedModel{
		id:           uuid.NewString(),
		trainedAt:    clock.Now(),
		schema:       cloneSchema(schema),
		classes:      classes,
		soilLabels:   soilLabels,
		soilIndex:    soilIndex,
		forest:       growForest(x, y, len(classes), opts),
		opts:         opts,
		trainingRows: len(records),
	}, nil
}

func validateSchema(schema Schema) error {
	if schema.Width() == 0 {
		return trainingErr("schema has no features")
	}
	seen := make(map[string]struct{}, len(schema.Numeric))
	for _, name := range schema.Numeric {
		if name == "" {
			return trainingErr("schema has an empty feature name")
		}
		if _, dup := seen[name]; dup {
			return trainingErr(fmt.Sprintf("duplicate feature %q", name))
		}
		seen[name] = struct{}{}
	}
	return nil
}

func checkRecord(schema Schema, rec CropRecord) *TrainingDataError {
	if rec.Label == "" {
		return trainingErr("empty label")
	}
	if len(rec.Features) != len(schema.Numeric) {
		return trainingErr(fmt.Sprintf("expected %d features, got %d", len(schema.Numeric), len(rec.Features)))
	}
	for _, name := range schema.Numeric {
		v, ok := rec.Features[name]
		if !ok {
			return trainingErr(fmt.Sprintf("missing feature %q", name))
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return trainingErr(fmt.Sprintf("feature %q is not finite", name))
		}
	}
	switch {
	case schema.HasSoil && rec.Soil == "":
		return trainingErr("missing soil category")
	case !schema.HasSoil && rec.Soil != "":
		return trainingErr("unexpected soil category")
	}
	return nil
}

// ID returns the unique identifier assigned at fit time.
func (m *TrainedModel) ID() string { return m.id }

// TrainedAt returns when the model was fitted.
func (m *TrainedModel) TrainedAt() time.Time { return m.trainedAt }

// Schema returns a copy of the training schema.
func (m *TrainedModel) Schema() Schema { return cloneSchema(m.schema) }

// Classes returns the class labels in encoding order.
func (m *TrainedModel) Classes() []string { return slices.Clone(m.classes) }

// SoilCategories returns the soil labels in encoding order.
func (m *TrainedModel) SoilCategories() []string { return slices.Clone(m.soilLabels) }

// Options returns the effective forest options.
func (m *TrainedModel) Options() ForestOptions { return m.opts }

// TrainingRows returns the number of records the model was fitted on.
func (m *TrainedModel) TrainingRows() int { return m.trainingRows }

// Rank scores every class for sample, keeps those present in allowed (a nil
// allowed set disables filtering), and returns the top k by descending score.
// Ties keep class-label order. k <= 0 selects DefaultTopK.
func (m *TrainedModel) Rank(sample Sample, allowed CropSet, k int) (Recommendation, error) {
	if k <= 0 {
		k = DefaultTopK
	}
	probs, err := m.Probabilities(sample)
	if err != nil {
		return Recommendation{}, err
	}

	candidates := make([]int, 0, len(m.classes))
	for i, label := range m.classes {
		if allowed == nil || allowed.Contains(label) {
			candidates = append(candidates, i)
		}
	}

	rec := Recommendation{
		Items:    []ScoredCrop{},
		Outcome:  OutcomeRanked,
		Filtered: allowed != nil,
		ModelID:  m.id,
		K:        k,
	}
	if len(candidates) == 0 {
		rec.Outcome = OutcomeNoEligibleCrop
		return rec, nil
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return probs[candidates[a]] > probs[candidates[b]]
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	for _, c := range candidates {
		rec.Items = append(rec.Items, ScoredCrop{
			Crop:   m.classes[c],
			Score:  probs[c],
			Season: CropSeason(m.classes[c]),
		})
	}
	return rec, nil
}

// Predict returns the single most likely crop label.
func (m *TrainedModel) Predict(sample Sample) (string, error) {
	rec, err := m.Rank(sample, nil, 1)
	if err != nil {
		return "", err
	}
	return rec.Items[0].Crop, nil
}

// Probabilities returns one score per class label, in Classes order.
func (m *TrainedModel) Probabilities(sample Sample) ([]float64, error) {
	row, err := m.encode(sample)
	if err != nil {
		return nil, err
	}
	return m.forest.predict(row), nil
}

func (m *TrainedModel) encode(sample Sample) ([]float64, error) {
	if len(sample.Values) != len(m.schema.Numeric) {
		return nil, &SchemaMismatchError{
			Reason: fmt.Sprintf("expected %d numeric features, got %d", len(m.schema.Numeric), len(sample.Values)),
		}
	}
	for i, v := range sample.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &SchemaMismatchError{Reason: fmt.Sprintf("feature %q is not finite", m.schema.Numeric[i])}
		}
	}

	row := make([]float64, m.schema.Width())
	copy(row, sample.Values)

	switch {
	case m.schema.HasSoil && sample.Soil == "":
		return nil, &SchemaMismatchError{Reason: "soil category required"}
	case !m.schema.HasSoil && sample.Soil != "":
		return nil, &SchemaMismatchError{Reason: "model was trained without a soil category"}
	case m.schema.HasSoil:
		code, ok := m.soilIndex[sample.Soil]
		if !ok {
			return nil, &UnknownCategoryError{Label: sample.Soil}
		}
		row[len(m.schema.Numeric)] = float64(code)
	}
	return row, nil
}

func cloneSchema(s Schema) Schema {
	return Schema{Numeric: slices.Clone(s.Numeric), HasSoil: s.HasSoil}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func indexOf(labels []string) map[string]int {
	idx := make(map[string]int, len(labels))
	for i, l := range labels {
		idx[l] = i
	}
	return idx
}
