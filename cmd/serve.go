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
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dutchyankee87/weconnect-translate/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve job submission, job lookup, cancellation and correction
submission over HTTP until interrupted.

  POST /api/jobs              multipart: file, sourceLanguage, targetLanguages, glossaryId, userId
  GET  /api/jobs/:id          job with child jobs and quality results
  POST /api/jobs/:id/cancel   cancel a running job
  POST /api/corrections       submit reviewer corrections
  GET  /healthz`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(cmd, true)
		if err != nil {
			return err
		}
		defer a.Close()

		srv := server.New(a.orch, a.review, a.logger, a.cfg.Server.MaxUploadBytes)
		return srv.Run(ctx, a.cfg.Server.Addr, a.cfg.Server.ShutdownGrace)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default :8080)")
	serveCmd.Flags().String("review-base-url", "", "Base URL of the review UI used in notifications")
	serveCmd.Flags().String("outbox-dir", "", "Directory notifications are written to")
	serveCmd.Flags().Int("batch-size", 0, "Target languages translated concurrently per batch")
	serveCmd.Flags().Duration("batch-delay", 0, "Pause between batches")
}
