// Command trainer builds a labeled training table from raw observation CSVs.
// One input file is one location's series: each is loaded, derived, and
// labeled independently so every location gets thresholds from its own
// distribution, then the labeled rows are merged into a single output table.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gammazero/workerpool"
	"github.com/schollz/progressbar/v3"

	"agrostress/features"
	"agrostress/ingest"
)

type fileResult struct {
	path       string
	rows       []features.LabeledRow
	thresholds features.Thresholds
	summary    *ingest.Summary
	err        error
}

func main() {
	inGlob := flag.String("in", "data/raw/*.csv", "glob of raw observation CSVs, one file per location")
	outPath := flag.String("out", "data/processed/training_table.csv", "merged training table output")
	thresholdsPath := flag.String("thresholds", "data/processed/thresholds.json", "realized thresholds per input file")
	workers := flag.Int("workers", 4, "parallel file loads")
	flag.Parse()

	paths, err := filepath.Glob(*inGlob)
	if err != nil {
		log.Fatal("bad glob: ", err)
	}
	if len(paths) == 0 {
		log.Fatalf("no files match %s", *inGlob)
	}
	sort.Strings(paths)

	cfg := features.DefaultConfig()
	bar := progressbar.Default(int64(len(paths)), "Building training table")

	var mu sync.Mutex
	results := make([]fileResult, 0, len(paths))
	wp := workerpool.New(*workers)
	for _, path := range paths {
		path := path
		wp.Submit(func() {
			res := processFile(path, cfg)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			_ = bar.Add(1)
		})
	}
	wp.StopWait()

	sort.Slice(results, func(i, j int) bool { return results[i].path < results[j].path })

	var merged []features.LabeledRow
	thresholds := make(map[string]features.Thresholds, len(results))
	failed := 0
	for _, res := range results {
		if res.err != nil {
			failed++
			log.Printf("%s: %v", res.path, res.err)
			continue
		}
		for _, warn := range res.summary.Warnings {
			log.Printf("%s: %s", res.path, warn)
		}
		merged = append(merged, res.rows...)
		thresholds[filepath.Base(res.path)] = res.thresholds
	}
	if len(merged) == 0 {
		log.Fatal("no labeled rows produced")
	}

	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		log.Fatal(err)
	}
	if err := ingest.WriteTrainingFile(*outPath, merged); err != nil {
		log.Fatal(err)
	}
	if err := writeThresholds(*thresholdsPath, thresholds); err != nil {
		log.Fatal(err)
	}

	log.Printf("wrote %d rows from %d file(s) to %s (%d failed)",
		len(merged), len(thresholds), *outPath, failed)
}

// processFile runs one location through the full pipeline: ingest, derive,
// drop incomplete head rows, label.
func processFile(path string, cfg features.Config) fileResult {
	res := fileResult{path: path}

	series, summary, err := ingest.ReadFile(path)
	if err != nil {
		res.err = err
		return res
	}
	res.summary = summary

	rows, err := features.Derive(series, cfg)
	if err != nil {
		res.err = fmt.Errorf("derive: %w", err)
		return res
	}
	complete := features.DropIncomplete(rows)
	if len(complete) == 0 {
		res.err = fmt.Errorf("series too short for trend features (%d rows)", len(rows))
		return res
	}

	labeled, thresholds, err := features.Label(complete, cfg)
	if err != nil {
		res.err = fmt.Errorf("label: %w", err)
		return res
	}
	res.rows = labeled
	res.thresholds = thresholds
	return res
}

func writeThresholds(path string, thresholds map[string]features.Thresholds) error {
	data, err := json.MarshalIndent(thresholds, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
