/*
Copyright 2024 Blnk Finance Authors.

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

package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/jerry-enebeli/xbridge/client"
	"github.com/jerry-enebeli/xbridge/reporter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// reporterCommands runs a reporter that relays transfers from the source
// bridge to the destination bridge.
func reporterCommands(b *bridgeInstance) *cobra.Command {
	var settle time.Duration

	cmd := &cobra.Command{
		Use:         "reporter",
		Short:       "relay transfers between two bridges",
		Annotations: map[string]string{skipBridge: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			cfg := b.cnf.Reporter
			if cfg.Name == "" || cfg.SourceUrl == "" || cfg.DestinationUrl == "" {
				log.Fatal("reporter.name, reporter.source_url and reporter.destination_url are required")
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			r := reporter.New(cfg.Name,
				client.New(cfg.SourceUrl, cfg.SourceKey),
				client.New(cfg.DestinationUrl, cfg.DestinationKey),
				reporter.WithInterval(time.Duration(cfg.PollIntervalSec)*time.Second),
				reporter.WithSettle(settle),
			)

			logrus.WithField("reporter", cfg.Name).Info("reporter started")
			if err := r.Run(ctx); err != nil {
				log.Fatal(err)
			}
			logrus.WithField("last_pulse", r.LastPulse()).Info("reporter stopped")
		},
	}

	cmd.Flags().DurationVar(&settle, "settle", 0, "how long a transfer must be visible before it is reported")
	return cmd
}
