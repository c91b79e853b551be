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
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "weconnect-translate",
	Short: "Translation jobs with correction memory and quality checks",
	Long: `Submits documents to a machine translation provider, one job per target
language, and learns from reviewer corrections.

Learned terms are sent to the provider as a glossary, learned segments
replace the provider's translation once they have been confirmed often
enough, and every finished text job is checked for glossary compliance
and numeric consistency.

Settings come from flags, WECONNECT_* environment variables, an optional
.env file and an optional config file.

Use "weconnect-translate translate --help" to translate a file directly or
"weconnect-translate serve" to run the HTTP API.`,
	Version:       version,
	SilenceUsage:  true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("env", ".env", "Environment file to load, ignored when missing")
	pf.String("config", "", "Config file (yaml, toml or json)")
	pf.String("db", "", "Database path (default ./data/weconnect.db)")
	pf.String("data-dir", "", "Directory for uploads and translated files (default ./data)")
	pf.String("log-level", "", "Log level: debug, info, warn or error")
	pf.String("log-format", "", "Log format: text or json")
	pf.String("provider", "", "Translation provider: deepl or google")
	pf.String("api-key", "", "Provider API key")
}
