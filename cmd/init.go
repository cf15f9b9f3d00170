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
	"fmt"
	"log"

	"github.com/jerry-enebeli/xbridge"
	apimodel "github.com/jerry-enebeli/xbridge/api/model"
	"github.com/jerry-enebeli/xbridge/config"
	"github.com/jerry-enebeli/xbridge/internal/apierror"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// initRequest maps the configured defaults onto the same request the admin
// API accepts, so both paths share validation.
func initRequest(d config.BridgeDefaults) *apimodel.InitBridge {
	return &apimodel.InitBridge{
		ChainName:   d.ChainName,
		Symbol:      fmt.Sprintf("%d,%s", d.TokenPrecision, d.TokenSymbol),
		Contract:    d.TokenContract,
		ExpireAfter: d.ExpireAfterSeconds,
		Issue:       d.Issue,
		Threshold:   d.Threshold,
		FeeRate:     d.FeeRate,
		MinQuantity: d.MinQuantity,
	}
}

func initCommands(b *bridgeInstance) *cobra.Command {
	var enable bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "initialise the bridge from the configured defaults",
		Run: func(cmd *cobra.Command, args []string) {
			defer func() {
				if err := b.db.Close(); err != nil {
					log.Printf("Error closing datasource: %v", err)
				}
			}()

			req := initRequest(b.cnf.Bridge.Defaults)
			if err := req.ValidateInitBridge(); err != nil {
				log.Fatalf("invalid bridge defaults: %v", err)
			}
			params, err := req.ToInitParams()
			if err != nil {
				log.Fatalf("invalid bridge defaults: %v", err)
			}

			ctx := xbridge.WithCaller(context.Background(), b.bridge.Account())
			settings, err := b.bridge.Init(ctx, params)
			switch {
			case apierror.Is(err, apierror.ErrConflict):
				logrus.Info("bridge already initialised")
			case err != nil:
				log.Fatalf("error initialising bridge: %v", err)
			default:
				logrus.WithField("chain", settings.ChainName).Info("bridge initialised")
			}

			if !enable {
				return
			}
			if _, err := b.bridge.Enable(ctx, true); err != nil {
				log.Fatalf("error enabling bridge: %v", err)
			}
			logrus.Info("bridge enabled")
		},
	}

	cmd.Flags().BoolVar(&enable, "enable", false, "enable the bridge once initialised")
	return cmd
}
