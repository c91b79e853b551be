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
	"os/signal"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dutchyankee87/weconnect-translate/internal/job"
	"github.com/dutchyankee87/weconnect-translate/internal/orchestrator"
)

var (
	inputFile  string
	outputDir  string
	sourceLang string
	targetLang []string
	glossaryID string
	userID     string
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate a file into one or more languages",
	Long: `Translate a file and wait until every target language has finished.

Text files (.txt, .md) are translated segment by segment: learned segment
overrides are applied, markup is protected and the result is quality
checked. Other supported files (.docx, .pptx, .xlsx, .pdf, .html, .xliff,
.srt) go through the provider's document API.

Several target languages create one job per language, processed in batches.

Example:
  weconnect-translate translate -i brochure.md -s EN -t DE,FR,ES -o ./out`,
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return fmt.Errorf("failed to read input file: %w", err)
		}

		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := context.Background()
		sub, err := a.orch.Submit(ctx, orchestrator.SubmitRequest{
			UserID:      userID,
			FileName:    filepath.Base(inputFile),
			Data:        data,
			SourceLang:  sourceLang,
			TargetLangs: targetLang,
			GlossaryID:  glossaryID,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Job %s: %s → %v\n", sub.JobID, sub.SourceLang, sub.TargetLangs)

		// Ctrl-C cancels the job; Wait returns once it is recorded as failed.
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt)
		defer signal.Stop(interrupt)
		go func() {
			<-interrupt
			_ = a.orch.Cancel(context.Background(), sub.JobID)
		}()
		a.orch.Wait()

		view, err := a.orch.Lookup(ctx, sub.JobID)
		if err != nil {
			return err
		}
		leaves := leafViews(view)

		if outputDir != "" {
			if err := copyOutputs(a, leaves, outputDir); err != nil {
				return err
			}
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "LANG\tSTATUS\tSCORE\tWARNINGS\tBILLED\tRESULT")
		completed := 0
		for _, l := range leaves {
			result := l.ErrorMessage
			score, warnings := "-", "-"
			if l.Status == job.StatusCompleted {
				completed++
				result = l.OutputFileName
				if l.QA != nil {
					score, warnings = qaScore(l.QA), fmt.Sprint(l.QA.WarningCount)
				}
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n", l.TargetLang, l.Status, score, warnings, l.BilledCharacters, result)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		if completed == 0 {
			return fmt.Errorf("translation failed: %s", view.Job.ErrorMessage)
		}
		return nil
	},
}

// leafViews returns the jobs that carry a translation: the children of a
// multi-language job, or the job itself.
func leafViews(v *orchestrator.JobView) []orchestrator.ChildView {
	if len(v.Children) > 0 {
		return v.Children
	}
	return []orchestrator.ChildView{{Job: v.Job, QA: v.QA}}
}

func qaScore(qa *job.QAResult) string {
	if !qa.Evaluated {
		return "n/a"
	}
	return fmt.Sprint(qa.Score)
}

func copyOutputs(a *app, leaves []orchestrator.ChildView, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	for _, l := range leaves {
		if l.Status != job.StatusCompleted {
			continue
		}
		data, err := a.files.Read(l.OutputFilePath)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, l.OutputFileName), data, 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input file to translate (required)")
	translateCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory to copy translated files into")
	translateCmd.Flags().StringVarP(&sourceLang, "source", "s", "auto", "Source language code, or auto for text files")
	translateCmd.Flags().StringSliceVarP(&targetLang, "target", "t", nil, "Target language codes (comma-separated, required)")
	translateCmd.Flags().StringVarP(&glossaryID, "glossary", "g", "", "Provider glossary used when no terms were learned")
	translateCmd.Flags().StringVar(&userID, "user", "", "User the job is submitted for")

	translateCmd.MarkFlagRequired("input")
	translateCmd.MarkFlagRequired("target")
}
