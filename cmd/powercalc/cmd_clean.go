package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cleanFlags struct {
	synonyms  string
	failFast  bool
	noRewrite bool
	report    string
	compact   bool
}

var cleanCmd = &cobra.Command{
	Use:   "clean <dataset.json>",
	Short: "Normalize a dataset's field names without deriving power",
	Long: `Normalize the dataset's field names to the canonical vocabulary
(voltage, current, power_factor), dropping unrecognized fields.

When any fields were dropped, the cleaned dataset is written back to the
input file. Malformed entries are kept in place untouched.

Usage:
  powercalc clean data1.json
  powercalc clean data1.json --no-rewrite --report report.json`,
	Args: cobra.ExactArgs(1),
	RunE: runClean,
}

func init() {
	f := cleanCmd.Flags()
	f.StringVar(&cleanFlags.synonyms, "synonyms", "", "YAML file overriding the field name vocabulary")
	f.BoolVar(&cleanFlags.failFast, "fail-fast", false, "Stop at the first record that cannot be resolved")
	f.BoolVar(&cleanFlags.noRewrite, "no-rewrite", false, "Never write the cleaned dataset back to the input file")
	f.StringVar(&cleanFlags.report, "report", "", "Also write the full cleaning report to this path")
	f.BoolVar(&cleanFlags.compact, "compact", false, "Write JSON files compactly instead of indented")
}

func runClean(cmd *cobra.Command, args []string) error {
	path := args[0]
	ds, err := loadDatasetFile(path)
	if err != nil {
		return err
	}

	engine, err := buildEngine(cleanFlags.synonyms, cleanFlags.failFast, 1)
	if err != nil {
		return err
	}

	report, err := engine.Clean(ds)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if err := reportAndRewrite(out, report, ds, path, cleanFlags.noRewrite, cleanFlags.compact); err != nil {
		return err
	}
	fmt.Fprintf(out, "Cleaned %d of %d records (%d failed)\n", report.Cleaned, report.Total, report.Failed)

	if cleanFlags.report != "" {
		if err := writeJSONFile(cleanFlags.report, report, cleanFlags.compact); err != nil {
			return err
		}
		fmt.Fprintln(out, "Report written to: "+cleanFlags.report)
	}

	fmt.Fprintln(out, "Done.")
	return nil
}
