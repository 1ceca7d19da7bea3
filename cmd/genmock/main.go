// Command genmock writes deterministic synthetic fixtures shaped like the
// public crop recommendation and crop production tables, for local runs and
// tests that should not depend on the real datasets.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -training-out data/mock/crop_recommendation.csv \
//	  -production-out data/mock/crop_production.csv \
//	  -rows 100 -soil
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/couchcryptid/crop-advisor-service/internal/domain"
)

var featureColumns = []string{"N", "P", "K", "temperature", "humidity", "ph", "rainfall"}

// cropProfile holds a crop's mean measurements (featureColumns order) and
// the soil it is most often grown in.
type cropProfile struct {
	means []float64
	soil  string
}

var profiles = map[string]cropProfile{
	"apple":       {[]float64{20.8, 134.2, 199.9, 22.6, 92.3, 5.9, 112.7}, domain.SoilLaterite},
	"banana":      {[]float64{100.2, 82.0, 50.1, 27.4, 80.4, 6.0, 104.6}, domain.SoilAlluvial},
	"blackgram":   {[]float64{40.0, 67.5, 19.2, 30.0, 65.1, 7.1, 67.9}, domain.SoilBlack},
	"chickpea":    {[]float64{40.1, 67.8, 79.9, 18.9, 16.9, 7.3, 80.1}, domain.SoilBlack},
	"coconut":     {[]float64{22.0, 16.9, 30.6, 27.4, 94.8, 6.0, 175.7}, domain.SoilSandy},
	"coffee":      {[]float64{101.2, 28.7, 29.9, 25.5, 58.9, 6.8, 158.1}, domain.SoilLaterite},
	"cotton":      {[]float64{117.8, 46.2, 19.6, 24.0, 79.8, 6.9, 80.4}, domain.SoilBlack},
	"grapes":      {[]float64{23.2, 132.5, 200.1, 23.8, 81.9, 6.0, 69.6}, domain.SoilRed},
	"jute":        {[]float64{78.4, 46.9, 40.0, 25.0, 79.6, 6.7, 174.8}, domain.SoilAlluvial},
	"kidneybeans": {[]float64{20.8, 67.5, 20.1, 20.1, 21.6, 5.7, 105.9}, domain.SoilClayey},
	"lentil":      {[]float64{18.8, 68.4, 19.4, 24.5, 64.8, 6.9, 45.7}, domain.SoilBlack},
	"maize":       {[]float64{77.8, 48.4, 19.8, 22.4, 65.1, 6.2, 84.8}, domain.SoilAlluvial},
	"mango":       {[]float64{20.1, 27.2, 29.9, 31.2, 50.2, 5.8, 94.7}, domain.SoilRed},
	"mothbeans":   {[]float64{21.4, 48.0, 20.2, 28.2, 53.2, 6.8, 51.2}, domain.SoilSandy},
	"mungbean":    {[]float64{21.0, 47.3, 19.9, 28.5, 85.5, 6.7, 48.4}, domain.SoilSandy},
	"muskmelon":   {[]float64{100.3, 17.7, 50.1, 28.7, 92.3, 6.4, 24.7}, domain.SoilSandy},
	"orange":      {[]float64{19.6, 16.6, 10.0, 22.8, 92.2, 7.0, 110.5}, domain.SoilRed},
	"papaya":      {[]float64{49.9, 59.1, 50.0, 33.7, 92.4, 6.7, 142.6}, domain.SoilClayey},
	"pigeonpeas":  {[]float64{20.7, 67.7, 20.3, 27.7, 48.1, 5.8, 149.5}, domain.SoilBlack},
	"pomegranate": {[]float64{18.9, 18.8, 40.2, 21.8, 90.1, 6.4, 107.5}, domain.SoilRed},
	"rice":        {[]float64{79.9, 47.6, 39.9, 23.7, 82.3, 6.4, 236.2}, domain.SoilAlluvial},
	"watermelon":  {[]float64{99.4, 17.0, 50.2, 25.6, 85.2, 6.5, 50.8}, domain.SoilSandy},
}

var districts = []struct{ state, district string }{
	{"Punjab", "Ludhiana"},
	{"Punjab", "Amritsar"},
	{"Maharashtra", "Pune"},
	{"Maharashtra", "Nagpur"},
	{"West Bengal", "Nadia"},
	{"Kerala", "Thrissur"},
	{"Rajasthan", "Jaipur"},
	{"Uttar Pradesh", "Meerut"},
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("genmock", flag.ContinueOnError)
	trainingOut := fs.String("training-out", "", "output path for the training CSV")
	productionOut := fs.String("production-out", "", "output path for the production history CSV (optional)")
	rows := fs.Int("rows", 100, "rows per crop")
	withSoil := fs.Bool("soil", false, "add a soil column to the training CSV")
	seed := fs.Uint64("seed", 2024, "random seed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *trainingOut == "" {
		fs.Usage()
		return fmt.Errorf("missing required flag: -training-out")
	}
	if *rows <= 0 {
		return fmt.Errorf("-rows must be positive")
	}

	rng := rand.New(rand.NewPCG(*seed, 0))
	if err := writeFile(*trainingOut, func(w io.Writer) error {
		return writeTraining(w, rng, *rows, *withSoil)
	}); err != nil {
		return err
	}
	log.Printf("training: %d crops x %d rows -> %s", len(profiles), *rows, *trainingOut)

	if *productionOut != "" {
		rng := rand.New(rand.NewPCG(*seed, 1))
		if err := writeFile(*productionOut, func(w io.Writer) error {
			return writeProduction(w, rng)
		}); err != nil {
			return err
		}
		log.Printf("production: %d districts -> %s", len(districts), *productionOut)
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func sortedCrops() []string {
	crops := make([]string, 0, len(profiles))
	for c := range profiles {
		crops = append(crops, c)
	}
	sort.Strings(crops)
	return crops
}

// writeTraining emits rows jittered uniformly within ±10% of each crop's
// means. With soil enabled, 80% of a crop's rows use its usual soil.
func writeTraining(w io.Writer, rng *rand.Rand, rows int, withSoil bool) error {
	cw := csv.NewWriter(w)
	header := append([]string(nil), featureColumns...)
	if withSoil {
		header = append(header, "soil")
	}
	if err := cw.Write(append(header, "label")); err != nil {
		return err
	}

	for _, crop := range sortedCrops() {
		p := profiles[crop]
		for range rows {
			rec := make([]string, 0, len(header)+1)
			for _, mean := range p.means {
				v := mean * (0.9 + 0.2*rng.Float64())
				rec = append(rec, strconv.FormatFloat(v, 'f', 2, 64))
			}
			if withSoil {
				soil := p.soil
				if rng.Float64() >= 0.8 {
					soil = domain.SoilTypes[rng.IntN(len(domain.SoilTypes))]
				}
				rec = append(rec, soil)
			}
			if err := cw.Write(append(rec, crop)); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// writeProduction gives every district six crops over three years, with
// crop names title-cased and seasons padded the way the published table is.
func writeProduction(w io.Writer, rng *rand.Rand) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"State_Name", "District_Name", "Crop_Year", "Season", "Crop", "Area", "Production"}); err != nil {
		return err
	}

	crops := sortedCrops()
	for _, d := range districts {
		perm := rng.Perm(len(crops))
		for _, ci := range perm[:6] {
			crop := crops[ci]
			season := domain.CropSeason(crop)
			if season == domain.SeasonAllYear {
				season = "Whole Year"
			}
			for year := 2012; year < 2015; year++ {
				area := 100 + rng.Float64()*900
				rec := []string{
					d.state,
					strings.ToUpper(d.district),
					strconv.Itoa(year),
					fmt.Sprintf("%-11s", season),
					strings.ToUpper(crop[:1]) + crop[1:],
					strconv.FormatFloat(area, 'f', 0, 64),
					strconv.FormatFloat(area*(1+rng.Float64()*3), 'f', 0, 64),
				}
				if err := cw.Write(rec); err != nil {
					return err
				}
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
