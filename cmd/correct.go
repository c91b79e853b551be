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
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dutchyankee87/weconnect-translate/internal/review"
)

var correctFile string

var correctCmd = &cobra.Command{
	Use:   "correct",
	Short: "Submit reviewer corrections for a job",
	Long: `Submit corrections from a JSON file ("-" reads stdin):

  {
    "jobId": "…",
    "targetLanguage": "DE",
    "countryCode": "DE",
    "submittedBy": "reviewer@example.com",
    "corrections": [
      {"originalText": "invoice", "correctedText": "Rechnung", "type": "terminology"},
      {"originalText": "Thank you.", "correctedText": "Vielen Dank.", "machineText": "Danke.", "type": "phrasing"}
    ]
  }

Terminology corrections become glossary terms for future jobs; phrasing
corrections become segment overrides once confirmed often enough.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = os.Stdin
		if correctFile != "-" {
			f, err := os.Open(correctFile)
			if err != nil {
				return fmt.Errorf("failed to open corrections file: %w", err)
			}
			defer f.Close()
			r = f
		}

		var sub review.Submission
		if err := json.NewDecoder(r).Decode(&sub); err != nil {
			return fmt.Errorf("failed to parse corrections: %w", err)
		}

		a, err := newApp(cmd, false)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.review.Submit(context.Background(), sub)
		if err != nil {
			return err
		}
		fmt.Printf("Recorded %d correction(s) for job %s (%d terminology, %d phrasing)\n",
			res.Saved, res.JobID, res.Terminology, res.Phrasing)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(correctCmd)

	correctCmd.Flags().StringVarP(&correctFile, "file", "f", "", "JSON file with the corrections (required)")
	correctCmd.MarkFlagRequired("file")
}
