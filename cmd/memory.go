/*
Copyright © 2025 The weconnect-translate Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dutchyankee87/weconnect-translate/internal/orchestrator"
)

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and seed the correction memory",
	Long: `List learned terms and segments, show statistics and import corrections.

Learned terms come from terminology corrections and are sent to the provider
as a glossary. Learned segments come from phrasing corrections and replace
the provider's translation once their confidence reaches the override
threshold.`,
}

var (
	memorySource string
	memoryTarget string
)

// memoryPair validates the --source/--target flags.
func memoryPair() (string, string, error) {
	if memorySource == "" || memoryTarget == "" {
		return "", "", fmt.Errorf("--source and --target are required")
	}
	src, err := orchestrator.NormalizeLang(memorySource)
	if err != nil {
		return "", "", err
	}
	tgt, err := orchestrator.NormalizeLang(memoryTarget)
	if err != nil {
		return "", "", err
	}
	return src, tgt, nil
}

func snippet(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n-3]) + "..."
	}
	return s
}

var memoryTermsCmd = &cobra.Command{
	Use:   "terms",
	Short: "List learned terms for a language pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		src, tgt, err := memoryPair()
		if err != nil {
			return err
		}
		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		terms, err := a.db.ListTerms(context.Background(), src, tgt)
		if err != nil {
			return fmt.Errorf("failed to list terms: %w", err)
		}
		if len(terms) == 0 {
			fmt.Printf("No learned terms for %s→%s.\n", src, tgt)
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SOURCE TERM\tTARGET TERM\tFREQUENCY\tUPDATED")
		for _, t := range terms {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", t.SourceTerm, t.TargetTerm, t.Frequency, t.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var memorySegmentsCmd = &cobra.Command{
	Use:   "segments",
	Short: "List learned segments for a language pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		src, tgt, err := memoryPair()
		if err != nil {
			return err
		}
		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		segs, err := a.db.ListSegments(context.Background(), src, tgt)
		if err != nil {
			return fmt.Errorf("failed to list segments: %w", err)
		}
		if len(segs) == 0 {
			fmt.Printf("No learned segments for %s→%s.\n", src, tgt)
			return nil
		}

		threshold := a.cfg.Orchestrator.OverrideThreshold
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "USED\tCONFIDENCE\tACTIVE\tLAST USED\tSOURCE\tIMPROVED")
		for _, s := range segs {
			fmt.Fprintf(w, "%d\t%.2f\t%v\t%s\t%s\t%s\n",
				s.UsageCount, s.Confidence(), s.Confidence() >= threshold, s.LastUsedAt.Format("2006-01-02 15:04"),
				snippet(s.SourceText, 40), snippet(s.ImprovedTarget, 40))
		}
		return w.Flush()
	},
}

var memoryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show job and correction memory statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.db.Stats(context.Background())
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}

		statuses := make([]string, 0, len(stats.JobsByStatus))
		for s := range stats.JobsByStatus {
			statuses = append(statuses, s)
		}
		sort.Strings(statuses)
		for _, s := range statuses {
			fmt.Printf("Jobs %-12s %d\n", s+":", stats.JobsByStatus[s])
		}
		fmt.Printf("Learned terms:     %d (%d uses)\n", stats.LearnedTerms, stats.TotalTermUses)
		fmt.Printf("Learned segments:  %d (%d uses)\n", stats.LearnedSegments, stats.TotalSegmentUses)
		fmt.Printf("Corrections:       %d\n", stats.Corrections)
		return nil
	},
}

var memoryImportCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Import corrections from a CSV file",
	Long: `Import corrections for one language pair from a CSV file with the columns
original,corrected,type[,machine_text]. type is terminology or phrasing.

Example:
  weconnect-translate memory import corrections.csv -s EN -t DE`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, tgt, err := memoryPair()
		if err != nil {
			return err
		}
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open input CSV: %w", err)
		}
		defer f.Close()

		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.review.Import(context.Background(), f, src, tgt)
		if err != nil {
			return err
		}

		rows := make([]int, 0, len(res.Skipped))
		for row := range res.Skipped {
			rows = append(rows, row)
		}
		sort.Ints(rows)
		for _, row := range rows {
			fmt.Fprintf(os.Stderr, "Row %d skipped: %s\n", row, res.Skipped[row])
		}
		fmt.Printf("Imported %d terminology and %d phrasing correction(s) for %s→%s\n",
			res.Terminology, res.Phrasing, src, tgt)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(memoryCmd)

	memoryCmd.PersistentFlags().StringVarP(&memorySource, "source", "s", "", "Source language code")
	memoryCmd.PersistentFlags().StringVarP(&memoryTarget, "target", "t", "", "Target language code")

	memoryCmd.AddCommand(memoryTermsCmd)
	memoryCmd.AddCommand(memorySegmentsCmd)
	memoryCmd.AddCommand(memoryStatsCmd)
	memoryCmd.AddCommand(memoryImportCmd)
}
