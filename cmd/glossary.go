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
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dutchyankee87/weconnect-translate/internal/orchestrator"
	"github.com/dutchyankee87/weconnect-translate/internal/translator"
)

var glossaryCmd = &cobra.Command{
	Use:   "glossary",
	Short: "Manage provider glossaries",
	Long: `Create and delete glossaries on the translation provider.

A glossary created here can be passed to "translate --glossary" or the
glossaryId form field. It is used for language pairs without learned terms;
learned terms always produce a temporary glossary of their own.`,
}

var (
	glossarySource  string
	glossaryTarget  string
	glossaryEntries string
)

var glossaryCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a glossary from a CSV or TSV file of source,target pairs",
	Long: `Create a provider glossary from a file of source,target pairs.
Files ending in .tsv are tab separated.

Example:
  weconnect-translate glossary create brand-terms -s EN -t DE -f terms.csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := orchestrator.NormalizeLang(glossarySource)
		if err != nil {
			return fmt.Errorf("--source: %w", err)
		}
		tgt, err := orchestrator.NormalizeLang(glossaryTarget)
		if err != nil {
			return fmt.Errorf("--target: %w", err)
		}
		entries, err := readGlossaryEntries(glossaryEntries)
		if err != nil {
			return err
		}

		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := a.provider.CreateGlossary(context.Background(), args[0], src, tgt, entries)
		if err != nil {
			return fmt.Errorf("failed to create glossary: %w", err)
		}
		fmt.Printf("Created glossary %s (%d entries, %s→%s)\n", id, len(entries), src, tgt)
		return nil
	},
}

func readGlossaryEntries(path string) ([]translator.GlossaryEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open glossary file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		r.Comma = '\t'
	}
	r.FieldsPerRecord = 2
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read glossary file: %w", err)
	}

	entries := make([]translator.GlossaryEntry, 0, len(records))
	for _, rec := range records {
		source, target := strings.TrimSpace(rec[0]), strings.TrimSpace(rec[1])
		if source == "" || target == "" {
			continue
		}
		entries = append(entries, translator.GlossaryEntry{Source: source, Target: target})
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("glossary file %s has no entries", path)
	}
	return entries, nil
}

var glossaryDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a provider glossary by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.provider.DeleteGlossary(context.Background(), args[0]); err != nil {
			return fmt.Errorf("failed to delete glossary: %w", err)
		}
		fmt.Printf("Deleted glossary: %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(glossaryCmd)

	glossaryCreateCmd.Flags().StringVarP(&glossarySource, "source", "s", "", "Source language code (required)")
	glossaryCreateCmd.Flags().StringVarP(&glossaryTarget, "target", "t", "", "Target language code (required)")
	glossaryCreateCmd.Flags().StringVarP(&glossaryEntries, "file", "f", "", "CSV or TSV file with source,target pairs (required)")
	glossaryCreateCmd.MarkFlagRequired("source")
	glossaryCreateCmd.MarkFlagRequired("target")
	glossaryCreateCmd.MarkFlagRequired("file")

	glossaryCmd.AddCommand(glossaryCreateCmd)
	glossaryCmd.AddCommand(glossaryDeleteCmd)
}
