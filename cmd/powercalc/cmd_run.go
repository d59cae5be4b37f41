package main

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gridops/meterpower/internal/config"
	"github.com/gridops/meterpower/internal/models"
	"github.com/gridops/meterpower/internal/normalize"
	"github.com/gridops/meterpower/internal/pipeline"
)

var runFlags struct {
	results   string
	synonyms  string
	failFast  bool
	workers   int
	noRewrite bool
	compact   bool
}

var runCmd = &cobra.Command{
	Use:   "run <dataset.json>",
	Short: "Clean a dataset and derive power for every record",
	Long: `Clean the dataset's field names, then derive real, reactive and
apparent power per record.

The dataset is a JSON object mapping record identifiers to measurement
records. Unrecognized fields are dropped and reported; when any were
dropped, the cleaned dataset is written back to the input file. Results
go to <dataset>_results.json next to the input, one {p, q, s} triple per
resolved record, in input order. Records that resolve but cannot be
computed get null triples; records that fail to resolve are reported and
left out of the results.

Usage:
  powercalc run data1.json
  powercalc run data1.json --results out.json
  powercalc run data1.json --synonyms fields.yaml --fail-fast`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runFlags.results, "results", "o", "", "Results path (default: <dataset>_results.json)")
	f.StringVar(&runFlags.synonyms, "synonyms", "", "YAML file overriding the field name vocabulary")
	f.BoolVar(&runFlags.failFast, "fail-fast", false, "Stop at the first record that cannot be resolved")
	f.IntVar(&runFlags.workers, "workers", runtime.NumCPU(), "Concurrent derivation workers")
	f.BoolVar(&runFlags.noRewrite, "no-rewrite", false, "Never write the cleaned dataset back to the input file")
	f.BoolVar(&runFlags.compact, "compact", false, "Write JSON files compactly instead of indented")
}

func runRun(cmd *cobra.Command, args []string) error {
	path := args[0]
	ds, err := loadDatasetFile(path)
	if err != nil {
		return err
	}

	engine, err := buildEngine(runFlags.synonyms, runFlags.failFast, runFlags.workers)
	if err != nil {
		return err
	}

	report, results, err := engine.Run(cmd.Context(), ds)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := reportAndRewrite(out, report, ds, path, runFlags.noRewrite, runFlags.compact); err != nil {
		return err
	}

	resultsPath := runFlags.results
	if resultsPath == "" {
		resultsPath = strings.TrimSuffix(path, ".json") + "_results.json"
	}
	if err := writeJSONFile(resultsPath, results, runFlags.compact); err != nil {
		return err
	}

	fmt.Fprintln(out, "Inputs from: "+path)
	fmt.Fprintln(out, "Results written to: "+resultsPath)
	fmt.Fprintln(out, "Done.")
	return nil
}

func buildEngine(synonymsPath string, failFast bool, workers int) (*pipeline.Engine, error) {
	sets, err := config.LoadSynonyms(synonymsPath)
	if err != nil {
		return nil, err
	}
	resolver, err := normalize.NewResolver(sets)
	if err != nil {
		return nil, err
	}
	return pipeline.New(resolver,
		pipeline.WithFailFast(failFast),
		pipeline.WithWorkers(workers),
	), nil
}

// reportAndRewrite prints the cleaning findings and, unless disabled,
// writes the cleaned dataset back to its file when fields were dropped.
// A dataset that was already clean is never rewritten.
func reportAndRewrite(out io.Writer, report *models.CleaningReport, ds *models.Dataset, path string, noRewrite, compact bool) error {
	if report.AnyIgnored() {
		fmt.Fprintf(out, "The following keys were ignored and removed from %q:\n", path)
		for _, rec := range report.Records {
			if len(rec.Ignored) > 0 {
				fmt.Fprintf(out, "\t%s: %s\n", rec.ID, strings.Join(rec.Ignored, ", "))
			}
		}
		if !noRewrite {
			if err := writeJSONFile(path, ds, compact); err != nil {
				return err
			}
		}
	} else {
		fmt.Fprintf(out, "No keys were ignored in %q\n", path)
	}

	if report.Failed > 0 {
		fmt.Fprintf(out, "%d of %d records could not be resolved:\n", report.Failed, report.Total)
		for _, rec := range report.Records {
			if rec.Error != "" {
				fmt.Fprintf(out, "\t%s: %s\n", rec.ID, rec.Error)
			}
		}
	}
	return nil
}
