// Package region answers "which crops has this district historically grown"
// from crop production history.
package region

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/couchcryptid/crop-advisor-service/internal/dataset"
	"github.com/couchcryptid/crop-advisor-service/internal/domain"
)

// ErrUnknownRegion is returned for a (state, district) pair with no history.
var ErrUnknownRegion = errors.New("unknown region")

// Source supplies the crop set for a district and the regions it knows
// about. Returned sets are shared and must be treated as read-only.
type Source interface {
	CropsFor(ctx context.Context, state, district string) (domain.CropSet, error)
	States() []string
	Districts(state string) ([]string, error)
}

type regionKey struct {
	state    string
	district string
}

func keyFor(state, district string) regionKey {
	return regionKey{state: normalize(state), district: normalize(district)}
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Index is an immutable in-memory lookup built from production records.
// State and district names are matched case-insensitively.
type Index struct {
	crops     map[regionKey]domain.CropSet
	states    map[string]string            // normalized -> display name
	districts map[string]map[string]string // normalized state -> normalized district -> display name
}

// NewIndex builds an Index from production history.
func NewIndex(records []dataset.ProductionRecord) *Index {
	idx := &Index{
		crops:     make(map[regionKey]domain.CropSet),
		states:    make(map[string]string),
		districts: make(map[string]map[string]string),
	}
	for _, rec := range records {
		k := keyFor(rec.State, rec.District)
		set, ok := idx.crops[k]
		if !ok {
			set = domain.CropSet{}
			idx.crops[k] = set
		}
		set.Add(rec.Crop)

		if _, ok := idx.states[k.state]; !ok {
			idx.states[k.state] = strings.TrimSpace(rec.State)
			idx.districts[k.state] = make(map[string]string)
		}
		if _, ok := idx.districts[k.state][k.district]; !ok {
			idx.districts[k.state][k.district] = strings.TrimSpace(rec.District)
		}
	}
	return idx
}

// CropsFor returns the crops recorded for a district.
func (i *Index) CropsFor(_ context.Context, state, district string) (domain.CropSet, error) {
	set, ok := i.crops[keyFor(state, district)]
	if !ok {
		return nil, fmt.Errorf("%w: %s / %s", ErrUnknownRegion, state, district)
	}
	return set, nil
}

// States returns every state with history, sorted.
func (i *Index) States() []string {
	return sortedValues(i.states)
}

// Districts returns the districts of a state, sorted.
func (i *Index) Districts(state string) ([]string, error) {
	d, ok := i.districts[normalize(state)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRegion, state)
	}
	return sortedValues(d), nil
}

// Len returns the number of indexed districts.
func (i *Index) Len() int {
	return len(i.crops)
}

func sortedValues(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
