// Command evaluate checks the crop classifier on a labelled CSV. It holds out
// a stratified fraction of every crop, fits on the rest, and reports accuracy
// and ranking sanity checks. The exit code is non-zero if any phase fails.
//
// Usage:
//
//	go run ./cmd/evaluate \
//	  -data data/Crop_recommendation.csv \
//	  -holdout 0.2 -min-accuracy 0.9
package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"os"
	"sort"

	"github.com/couchcryptid/crop-advisor-service/internal/dataset"
	"github.com/couchcryptid/crop-advisor-service/internal/domain"
)

// phase tracks pass/fail for an evaluation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

type options struct {
	data        string
	holdout     float64
	minAccuracy float64
	topK        int
	forest      domain.ForestOptions
}

func main() {
	var opts options
	flag.StringVar(&opts.data, "data", "data/Crop_recommendation.csv", "labelled training CSV")
	flag.Float64Var(&opts.holdout, "holdout", 0.2, "fraction of each crop held out for testing")
	flag.Float64Var(&opts.minAccuracy, "min-accuracy", 0.9, "minimum top-1 accuracy on the held-out rows")
	flag.IntVar(&opts.topK, "k", domain.DefaultTopK, "cutoff for top-k accuracy")
	flag.IntVar(&opts.forest.Trees, "trees", 100, "number of trees")
	flag.Uint64Var(&opts.forest.Seed, "seed", 42, "random seed for the split and the forest")
	flag.Parse()

	os.Exit(run(os.Stdout, opts))
}

func run(out io.Writer, opts options) int {
	fmt.Fprintln(out, "=== Crop Model Evaluation ===")
	fmt.Fprintln(out)

	schema, records, err := dataset.LoadTrainingCSV(opts.data)
	if err != nil {
		fmt.Fprintf(out, "FATAL: load training data: %v\n", err)
		return 1
	}
	if opts.holdout <= 0 || opts.holdout >= 1 {
		fmt.Fprintf(out, "FATAL: -holdout must be between 0 and 1\n")
		return 1
	}

	datasetPhase := validateDataset(records, opts.holdout)
	if !datasetPhase.passed() {
		return report(out, []*phase{datasetPhase}, 0, 0)
	}

	train, test := stratifiedSplit(records, opts.holdout, opts.forest.Seed)
	model, err := domain.Fit(schema, train, opts.forest)
	if err != nil {
		fmt.Fprintf(out, "FATAL: fit: %v\n", err)
		return 1
	}

	phases := []*phase{
		datasetPhase,
		validateAccuracy(model, schema, test, opts.minAccuracy, opts.topK, out),
		validateRanking(model, schema, test, opts.topK),
	}
	return report(out, phases, len(train), len(test))
}

func report(out io.Writer, phases []*phase, trainRows, testRows int) int {
	fmt.Fprintln(out)
	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Rows: %d train, %d held out\n", trainRows, testRows)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll evaluations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nEvaluation FAILED.")
	return 1
}

// ── Phases ──

func validateDataset(records []domain.CropRecord, holdout float64) *phase {
	p := &phase{name: "Phase 1: Dataset shape"}
	counts := labelCounts(records)
	if len(counts) < 2 {
		p.errorf("need at least 2 crops, found %d", len(counts))
	}
	for _, label := range sortedLabels(counts) {
		if heldOut(counts[label], holdout) == 0 {
			p.errorf("%s: %d rows leaves nothing to hold out", label, counts[label])
		}
	}
	return p
}

func validateAccuracy(model *domain.TrainedModel, schema domain.Schema, test []domain.CropRecord, minAccuracy float64, k int, out io.Writer) *phase {
	p := &phase{name: "Phase 2: Held-out accuracy"}

	hits, topKHits := 0, 0
	perLabel := map[string][2]int{} // label -> {correct, total}
	for i, rec := range test {
		sample, err := schema.SampleFromMap(rec.Features, rec.Soil)
		if err != nil {
			p.errorf("row %d: %v", i, err)
			continue
		}
		ranked, err := model.Rank(sample, nil, k)
		if err != nil {
			p.errorf("row %d: %v", i, err)
			continue
		}
		c := perLabel[rec.Label]
		c[1]++
		if ranked.Items[0].Crop == rec.Label {
			hits++
			c[0]++
		}
		for _, item := range ranked.Items {
			if item.Crop == rec.Label {
				topKHits++
				break
			}
		}
		perLabel[rec.Label] = c
	}

	accuracy := float64(hits) / float64(len(test))
	fmt.Fprintf(out, "Top-1 accuracy: %.4f (%d/%d)\n", accuracy, hits, len(test))
	fmt.Fprintf(out, "Top-%d accuracy: %.4f\n", k, float64(topKHits)/float64(len(test)))

	labels := make([]string, 0, len(perLabel))
	for l := range perLabel {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, l := range labels {
		c := perLabel[l]
		fmt.Fprintf(out, "  %-14s %d/%d\n", l, c[0], c[1])
	}

	if accuracy < minAccuracy {
		p.errorf("top-1 accuracy %.4f below minimum %.4f", accuracy, minAccuracy)
	}
	return p
}

func validateRanking(model *domain.TrainedModel, schema domain.Schema, test []domain.CropRecord, k int) *phase {
	p := &phase{name: "Phase 3: Ranking invariants"}
	classes := make(map[string]bool, len(model.Classes()))
	for _, c := range model.Classes() {
		classes[c] = true
	}

	for i, rec := range test {
		sample, err := schema.SampleFromMap(rec.Features, rec.Soil)
		if err != nil {
			continue // reported in phase 2
		}
		probs, err := model.Probabilities(sample)
		if err != nil {
			continue
		}
		sum := 0.0
		for _, v := range probs {
			sum += v
		}
		if math.Abs(sum-1) > 1e-9 {
			p.errorf("row %d: probabilities sum to %f", i, sum)
		}

		ranked, err := model.Rank(sample, nil, k)
		if err != nil {
			continue
		}
		if len(ranked.Items) != min(k, len(classes)) {
			p.errorf("row %d: %d items, want %d", i, len(ranked.Items), min(k, len(classes)))
		}
		for j, item := range ranked.Items {
			if !classes[item.Crop] {
				p.errorf("row %d: %q is not a class label", i, item.Crop)
			}
			if item.Score < 0 || item.Score > 1 {
				p.errorf("row %d: score %f out of range", i, item.Score)
			}
			if j > 0 && item.Score > ranked.Items[j-1].Score {
				p.errorf("row %d: scores not descending at position %d", i, j)
			}
		}
	}
	return p
}

// ── Split ──

// stratifiedSplit holds out round(fraction*n) rows of every crop, chosen by a
// seeded shuffle so reruns see the same split.
func stratifiedSplit(records []domain.CropRecord, fraction float64, seed uint64) (train, test []domain.CropRecord) {
	byLabel := map[string][]domain.CropRecord{}
	for _, r := range records {
		byLabel[r.Label] = append(byLabel[r.Label], r)
	}
	rng := rand.New(rand.NewPCG(seed, 0))
	for _, label := range sortedLabels(labelCounts(records)) {
		rows := byLabel[label]
		rng.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		n := heldOut(len(rows), fraction)
		test = append(test, rows[:n]...)
		train = append(train, rows[n:]...)
	}
	return train, test
}

// heldOut returns how many of n rows to hold out, keeping at least one row
// on each side.
func heldOut(n int, fraction float64) int {
	h := int(math.Round(float64(n) * fraction))
	return max(0, min(h, n-1))
}

func labelCounts(records []domain.CropRecord) map[string]int {
	counts := map[string]int{}
	for _, r := range records {
		counts[r.Label]++
	}
	return counts
}

func sortedLabels(counts map[string]int) []string {
	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}
