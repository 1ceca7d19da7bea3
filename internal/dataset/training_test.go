package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/crop-advisor-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trainingCSV = "\uFEFFN,P,K,temperature,humidity,ph,rainfall,label\n" +
	"90,42,43,20.87974371,82.00274423,6.502985292,202.9355362,rice\n" +
	"85,58,41,21.77046169,80.31964408,7.038096361,226.6555374,rice\n" +
	"71,54,16,22.61359953,63.69070564,5.749914421,87.75953857,maize\n"

func TestReadTrainingCSV(t *testing.T) {
	schema, recs, err := ReadTrainingCSV(strings.NewReader(trainingCSV))
	require.NoError(t, err)

	assert.Equal(t, domain.Schema{Numeric: []string{"N", "P", "K", "temperature", "humidity", "ph", "rainfall"}}, schema)
	require.Len(t, recs, 3)
	assert.Equal(t, "rice", recs[0].Label)
	assert.Equal(t, 90.0, recs[0].Features["N"])
	assert.InDelta(t, 202.9355362, recs[0].Features["rainfall"], 1e-9)
	assert.Empty(t, recs[0].Soil)
	assert.Equal(t, "maize", recs[2].Label)
}

func TestReadTrainingCSV_SoilColumn(t *testing.T) {
	data := "N,P,Soil_Type,moisture,label\n" +
		"10,20,Black,33,cotton\n" +
		"15,25, Alluvial ,40,rice\n"

	schema, recs, err := ReadTrainingCSV(strings.NewReader(data))
	require.NoError(t, err)

	assert.True(t, schema.HasSoil)
	assert.Equal(t, []string{"N", "P", "moisture"}, schema.Numeric)
	assert.Equal(t, "Black", recs[0].Soil)
	assert.Equal(t, "Alluvial", recs[1].Soil)
	assert.Equal(t, 40.0, recs[1].Features["moisture"])
}

func TestReadTrainingCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"empty", "", "empty training data"},
		{"no label column", "N,P\n1,2\n", `missing "label"`},
		{"header only", "N,label\n", "no data rows"},
		{"non numeric", "N,label\n1,rice\nabc,maize\n", `line 3: column "N"`},
		{"empty label", "N,label\n1,\n", "line 2: empty label"},
		{"empty soil", "N,soil,label\n1,,rice\n", "empty soil category"},
		{"ragged row", "N,label\n1,rice,extra\n", "read row"},
		{"blank header", "N,,label\n1,2,rice\n", "empty name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ReadTrainingCSV(strings.NewReader(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadTrainingCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crops.csv")
	require.NoError(t, os.WriteFile(path, []byte(trainingCSV), 0o600))

	_, recs, err := LoadTrainingCSV(path)
	require.NoError(t, err)
	assert.Len(t, recs, 3)

	_, _, err = LoadTrainingCSV(filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open training data")
}

func TestReadTrainingCSV_FitsModel(t *testing.T) {
	schema, recs, err := ReadTrainingCSV(strings.NewReader(trainingCSV))
	require.NoError(t, err)

	m, err := domain.Fit(schema, recs, domain.ForestOptions{Trees: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"maize", "rice"}, m.Classes())
}
