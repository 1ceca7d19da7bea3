package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/crop-advisor-service/internal/dataset"
	"github.com/couchcryptid/crop-advisor-service/internal/region"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_GeneratesLoadableFixtures(t *testing.T) {
	dir := t.TempDir()
	training := filepath.Join(dir, "train.csv")
	production := filepath.Join(dir, "production.csv")

	require.NoError(t, run([]string{"-training-out", training, "-production-out", production, "-rows", "5", "-soil"}))

	schema, records, err := dataset.LoadTrainingCSV(training)
	require.NoError(t, err)
	assert.Equal(t, featureColumns, schema.Numeric)
	assert.True(t, schema.HasSoil)
	assert.Len(t, records, 5*len(profiles))

	prod, err := dataset.LoadProductionCSV(production)
	require.NoError(t, err)
	assert.Len(t, prod, len(districts)*6*3)

	idx := region.NewIndex(prod)
	assert.Equal(t, len(districts), idx.Len())
	crops, err := idx.CropsFor(t.Context(), "punjab", "ludhiana")
	require.NoError(t, err)
	assert.Len(t, crops, 6)
	for _, name := range crops.Names() {
		assert.Contains(t, profiles, name)
	}
}

func TestRun_Deterministic(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	b := filepath.Join(dir, "b.csv")

	require.NoError(t, run([]string{"-training-out", a, "-rows", "3"}))
	require.NoError(t, run([]string{"-training-out", b, "-rows", "3"}))

	da, err := os.ReadFile(a)
	require.NoError(t, err)
	db, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
}

func TestRun_Validation(t *testing.T) {
	require.Error(t, run(nil))
	require.Error(t, run([]string{"-training-out", filepath.Join(t.TempDir(), "x.csv"), "-rows", "0"}))
}
