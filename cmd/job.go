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
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dutchyankee87/weconnect-translate/internal/qa"
)

var jobCmd = &cobra.Command{
	Use:   "job",
	Short: "Inspect translation jobs",
}

var jobShowJSON bool

var jobShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a job, its child jobs and quality results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		view, err := a.orch.Lookup(context.Background(), args[0])
		if err != nil {
			return err
		}

		if jobShowJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		}

		j := view.Job
		fmt.Printf("Job:      %s\n", j.ID)
		fmt.Printf("File:     %s\n", j.SourceFileName)
		fmt.Printf("Language: %s → %s\n", j.SourceLang, j.TargetLang)
		fmt.Printf("Status:   %s\n", j.Status)
		if j.ErrorMessage != "" {
			fmt.Printf("Message:  %s\n", j.ErrorMessage)
		}
		fmt.Printf("Billed:   %d characters, %d corrections applied\n", j.BilledCharacters, j.AppliedCorrections)

		leaves := leafViews(view)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "\nJOB\tLANG\tSTATUS\tSCORE\tOUTPUT")
		for _, l := range leaves {
			score := "-"
			if l.QA != nil {
				score = qaScore(l.QA)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", l.ID, l.TargetLang, l.Status, score, l.OutputFilePath)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		for _, l := range leaves {
			if l.QA == nil || l.QA.WarningCount == 0 {
				continue
			}
			fmt.Printf("\nWarnings for %s:\n", l.TargetLang)
			for _, gw := range l.QA.GlossaryWarnings {
				fmt.Printf("  %s\n", qa.Describe(gw))
			}
			for _, nw := range l.QA.NumberWarnings {
				fmt.Printf("  %s\n", qa.Describe(nw))
			}
		}
		return nil
	},
}

var jobListLimit int

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		jobs, err := a.db.ListJobs(context.Background(), jobListLimit)
		if err != nil {
			return fmt.Errorf("failed to list jobs: %w", err)
		}
		if len(jobs) == 0 {
			fmt.Println("No jobs.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCREATED\tSOURCE\tTARGET\tSTATUS\tFILE")
		for _, j := range jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				j.ID, j.CreatedAt.Format("2006-01-02 15:04"), j.SourceLang, j.TargetLang, j.Status, j.SourceFileName)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(jobCmd)

	jobShowCmd.Flags().BoolVar(&jobShowJSON, "json", false, "Print the job as JSON")
	jobListCmd.Flags().IntVarP(&jobListLimit, "limit", "n", 20, "Maximum number of jobs")

	jobCmd.AddCommand(jobShowCmd)
	jobCmd.AddCommand(jobListCmd)
}
