// Command train fits the crop classifier on a training CSV and writes the
// model as a JSON artifact that the advisor can load via MODEL_PATH.
//
// Usage:
//
//	go run ./cmd/train \
//	  -data data/Crop_recommendation.csv \
//	  -out models/forest.json \
//	  -trees 100 -seed 42
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/couchcryptid/crop-advisor-service/internal/dataset"
	"github.com/couchcryptid/crop-advisor-service/internal/domain"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	data := fs.String("data", "data/Crop_recommendation.csv", "training CSV with a label column")
	out := fs.String("out", "", "output path for the model artifact")
	trees := fs.Int("trees", 100, "number of trees")
	maxDepth := fs.Int("max-depth", 0, "maximum tree depth (0 = unlimited)")
	minLeaf := fs.Int("min-leaf", 1, "minimum samples per leaf")
	seed := fs.Uint64("seed", 42, "random seed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		fs.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	schema, records, err := dataset.LoadTrainingCSV(*data)
	if err != nil {
		return err
	}
	log.Printf("loaded %d records, %d features, soil column: %t", len(records), len(schema.Numeric), schema.HasSoil)

	m, err := domain.Fit(schema, records, domain.ForestOptions{
		Trees:          *trees,
		MaxDepth:       *maxDepth,
		MinSamplesLeaf: *minLeaf,
		Seed:           *seed,
	})
	if err != nil {
		return err
	}

	if err := writeArtifact(*out, m); err != nil {
		return err
	}
	log.Printf("model %s: %d classes, %d trees -> %s", m.ID(), len(m.Classes()), m.Options().Trees, *out)
	return nil
}

// writeArtifact writes to a temp file and renames it so a running advisor
// never reads a partial artifact.
func writeArtifact(path string, m *domain.TrainedModel) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".model-*.json")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := m.Encode(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}
