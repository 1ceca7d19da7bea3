package domain

import "testing"

var testFeatures = []string{"N", "P", "K", "temperature", "humidity", "ph", "rainfall"}

// clusterCenters are separated on every feature so each crop occupies its own
// region of feature space.
var clusterCenters = map[string][]float64{
	"rice":       {80, 45, 40, 23, 82, 6.4, 220},
	"wheat":      {20, 60, 20, 15, 40, 7.6, 60},
	"watermelon": {100, 15, 50, 30, 90, 5.2, 120},
}

var clusterSoil = map[string]string{
	"rice":       SoilAlluvial,
	"wheat":      SoilBlack,
	"watermelon": SoilSandy,
}

// clusterRecords returns 10 jittered rows per crop.
func clusterRecords(withSoil bool) []CropRecord {
	var out []CropRecord
	for _, label := range []string{"rice", "wheat", "watermelon"} {
		center := clusterCenters[label]
		for i := range 10 {
			jitter := float64(i-5) * 0.1
			features := make(map[string]float64, len(testFeatures))
			for j, name := range testFeatures {
				features[name] = center[j] + jitter
			}
			rec := CropRecord{Features: features, Label: label}
			if withSoil {
				rec.Soil = clusterSoil[label]
			}
			out = append(out, rec)
		}
	}
	return out
}

func centerSample(label string, withSoil bool) Sample {
	s := Sample{Values: append([]float64(nil), clusterCenters[label]...)}
	if withSoil {
		s.Soil = clusterSoil[label]
	}
	return s
}

func fitClusters(t *testing.T, withSoil bool) *TrainedModel {
	t.Helper()
	m, err := Fit(Schema{Numeric: testFeatures, HasSoil: withSoil}, clusterRecords(withSoil), ForestOptions{Trees: 25, Seed: 7})
	if err != nil {
		t.Fatalf("fit clusters: %v", err)
	}
	return m
}
