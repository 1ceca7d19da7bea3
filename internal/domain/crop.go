package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Season is an agricultural planting period used as a rule-table key.
type Season string

const (
	SeasonKharif Season = "Kharif"
	SeasonRabi   Season = "Rabi"
	SeasonZaid   Season = "Zaid"
)

// Seasons lists the closed set of seasons in display order.
var Seasons = []Season{SeasonKharif, SeasonRabi, SeasonZaid}

// ParseSeason validates a season identifier. Matching is exact on the
// canonical (untranslated) name.
func ParseSeason(s string) (Season, error) {
	for _, season := range Seasons {
		if string(season) == s {
			return season, nil
		}
	}
	return "", fmt.Errorf("unknown season %q", s)
}

// Soil categories offered by the rule recommender.
const (
	SoilAlluvial = "Alluvial"
	SoilBlack    = "Black"
	SoilRed      = "Red"
	SoilLaterite = "Laterite"
	SoilSandy    = "Sandy"
	SoilClayey   = "Clayey"
)

// SoilTypes lists the soil categories offered to the presentation layer.
var SoilTypes = []string{SoilAlluvial, SoilBlack, SoilRed, SoilLaterite, SoilSandy, SoilClayey}

// CropRecord is one historical observation used for training.
type CropRecord struct {
	Features map[string]float64
	Soil     string // empty unless the schema carries a soil column
	Label    string
}

// Schema describes the feature layout a model is trained on. Numeric holds
// the feature names in column order; when HasSoil is set the encoded soil
// category is appended as the final column.
type Schema struct {
	Numeric []string `json:"numeric"`
	HasSoil bool     `json:"has_soil"`
}

// Width returns the number of model input columns.
func (s Schema) Width() int {
	if s.HasSoil {
		return len(s.Numeric) + 1
	}
	return len(s.Numeric)
}

// SampleFromMap orders named feature values according to the schema.
func (s Schema) SampleFromMap(values map[string]float64, soil string) (Sample, error) {
	if len(values) != len(s.Numeric) {
		return Sample{}, &SchemaMismatchError{
			Reason: fmt.Sprintf("expected %d numeric features, got %d", len(s.Numeric), len(values)),
		}
	}
	out := make([]float64, len(s.Numeric))
	for i, name := range s.Numeric {
		v, ok := values[name]
		if !ok {
			return Sample{}, &SchemaMismatchError{Reason: fmt.Sprintf("missing feature %q", name)}
		}
		out[i] = v
	}
	return Sample{Values: out, Soil: soil}, nil
}

// Sample is a single inference input: numeric values in schema order plus an
// optional raw soil label.
type Sample struct {
	Values []float64
	Soil   string
}

// CropSet is a set of crop names compared case-insensitively. A nil CropSet
// means "no filter"; a non-nil empty set filters out everything.
type CropSet map[string]struct{}

// NewCropSet builds a CropSet from crop names.
func NewCropSet(names ...string) CropSet {
	set := make(CropSet, len(names))
	for _, n := range names {
		set.Add(n)
	}
	return set
}

// Add inserts a crop name.
func (s CropSet) Add(name string) {
	key := canonicalCrop(name)
	if key == "" {
		return
	}
	s[key] = struct{}{}
}

// Contains reports whether name is a member.
func (s CropSet) Contains(name string) bool {
	_, ok := s[canonicalCrop(name)]
	return ok
}

// Names returns the members in sorted order.
func (s CropSet) Names() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// cropAliases maps crop names used in district production statistics onto
// classifier labels. Keys are lower-cased with whitespace collapsed.
var cropAliases = map[string]string{
	"paddy":             "rice",
	"arhar/tur":         "pigeonpeas",
	"pigeon peas":       "pigeonpeas",
	"moong(green gram)": "mungbean",
	"moong":             "mungbean",
	"mung bean":         "mungbean",
	"urad":              "blackgram",
	"black gram":        "blackgram",
	"gram":              "chickpea",
	"masoor":            "lentil",
	"moth":              "mothbeans",
	"moth beans":        "mothbeans",
	"rajmash kholar":    "kidneybeans",
	"kidney beans":      "kidneybeans",
	"cotton(lint)":      "cotton",
	"water melon":       "watermelon",
	"musk melon":        "muskmelon",
	"pome granet":       "pomegranate",
}

func canonicalCrop(name string) string {
	key := strings.ToLower(strings.Join(strings.Fields(name), " "))
	if alias, ok := cropAliases[key]; ok {
		return alias
	}
	return key
}

// Outcome distinguishes a populated ranking from a filter that eliminated
// every candidate.
type Outcome string

const (
	OutcomeRanked         Outcome = "ranked"
	OutcomeNoEligibleCrop Outcome = "no_eligible_crop"
)

// ScoredCrop is a crop label with its confidence score in [0,1].
type ScoredCrop struct {
	Crop   string  `json:"crop"`
	Score  float64 `json:"score"`
	Season string  `json:"season,omitempty"`
}

// Recommendation is a ranked, truncated list of crops.
type Recommendation struct {
	Items    []ScoredCrop `json:"items"`
	Outcome  Outcome      `json:"outcome"`
	Filtered bool         `json:"filtered"`
	ModelID  string       `json:"model_id,omitempty"`
	K        int          `json:"k"`
}

// NoEligibleCrop reports whether the region filter removed every candidate.
func (r Recommendation) NoEligibleCrop() bool {
	return r.Outcome == OutcomeNoEligibleCrop
}
