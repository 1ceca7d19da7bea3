package advisor

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/crop-advisor-service/internal/dataset"
	"github.com/couchcryptid/crop-advisor-service/internal/domain"
	"github.com/couchcryptid/crop-advisor-service/internal/observability"
	"github.com/couchcryptid/crop-advisor-service/internal/region"
	"github.com/stretchr/testify/require"
)

var featureNames = []string{"N", "P", "K", "temperature", "humidity", "ph", "rainfall"}

var centers = map[string][]float64{
	"rice":       {80, 45, 40, 23, 82, 6.4, 220},
	"wheat":      {20, 60, 20, 15, 40, 7.6, 60},
	"watermelon": {100, 15, 50, 30, 90, 5.2, 120},
}

var soils = map[string]string{
	"rice":       domain.SoilAlluvial,
	"wheat":      domain.SoilBlack,
	"watermelon": domain.SoilSandy,
}

// writeTrainingCSV writes 10 jittered rows per label and returns the path.
func writeTrainingCSV(t *testing.T, labels ...string) string {
	t.Helper()
	if len(labels) == 0 {
		labels = []string{"rice", "wheat", "watermelon"}
	}

	var b strings.Builder
	b.WriteString(strings.Join(featureNames, ",") + ",soil,label\n")
	for _, label := range labels {
		for i := range 10 {
			jitter := float64(i-5) * 0.1
			for _, v := range centers[label] {
				fmt.Fprintf(&b, "%g,", v+jitter)
			}
			fmt.Fprintf(&b, "%s,%s\n", soils[label], label)
		}
	}

	path := filepath.Join(t.TempDir(), "train.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

func requestFor(label string) MLRequest {
	features := make(map[string]float64, len(featureNames))
	for i, name := range featureNames {
		features[name] = centers[label][i]
	}
	return MLRequest{Features: features, Soil: soils[label]}
}

func testRegions() region.Source {
	return region.NewIndex([]dataset.ProductionRecord{
		{State: "Punjab", District: "Ludhiana", Crop: "Wheat"},
		{State: "Punjab", District: "Ludhiana", Crop: "Rice"},
		{State: "Uttar Pradesh", District: "Meerut", Crop: "Sugarcane"},
	})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, opts Options) (*Service, *observability.Metrics) {
	t.Helper()
	if opts.TrainingDataPath == "" {
		opts.TrainingDataPath = writeTrainingCSV(t)
	}
	if opts.Forest.Trees == 0 {
		opts.Forest = domain.ForestOptions{Trees: 15, Seed: 7}
	}
	metrics := observability.NewMetricsForTesting()
	return New(opts, testRegions(), discardLogger(), metrics), metrics
}
