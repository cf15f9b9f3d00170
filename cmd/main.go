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
	"fmt"
	"log"
	"os"

	"github.com/jerry-enebeli/xbridge"
	"github.com/jerry-enebeli/xbridge/config"
	"github.com/jerry-enebeli/xbridge/database"
	"github.com/jerry-enebeli/xbridge/internal/notification"
	"github.com/jerry-enebeli/xbridge/tokenledger"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// skipBridge marks commands that only need the configuration.
const skipBridge = "skip-bridge"

// XBridge is the CLI application.
type XBridge struct {
	cmd *cobra.Command
}

// bridgeInstance holds what preRun built for the command being executed.
type bridgeInstance struct {
	bridge *xbridge.Bridge
	db     database.IDataSource
	cnf    *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and, unless the command opts out, builds the
// bridge service on top of the configured datasource and token ledger.
func preRun(app *bridgeInstance, configFile *string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig(*configFile)
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}
		app.cnf = cnf

		if cmd.Annotations[skipBridge] == "true" {
			return nil
		}

		db, newBridge, err := setupBridge(cnf)
		if err != nil {
			notification.NotifyError(err)
			log.Fatal(err)
		}
		app.db = db
		app.bridge = newBridge
		return nil
	}
}

// newTokenLedger talks to a Blnk ledger when one is configured and keeps
// balances in memory otherwise.
func newTokenLedger(cfg *config.Configuration) tokenledger.TokenLedger {
	if cfg.Ledger.Url != "" {
		return tokenledger.NewBlnkLedger(cfg.Ledger.Url, cfg.Ledger.Key, cfg.Ledger.IssuanceBalance)
	}
	logrus.Warn("no token ledger configured, balances are kept in memory")
	return tokenledger.NewMemoryLedger(cfg.Bridge.Account)
}

func setupBridge(cfg *config.Configuration) (database.IDataSource, *xbridge.Bridge, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newBridge, err := xbridge.NewBridge(db, newTokenLedger(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("error creating bridge: %v", err)
	}
	return db, newBridge, nil
}

func NewCLI() *XBridge {
	var configFile string
	b := &bridgeInstance{}

	var rootCmd = &cobra.Command{
		Use:   "xbridge",
		Short: "Cross-chain token bridge",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./xbridge.json", "Configuration file for xbridge")
	rootCmd.PersistentPreRunE = preRun(b, &configFile)

	rootCmd.AddCommand(serverCommands(b))
	rootCmd.AddCommand(workerCommands(b))
	rootCmd.AddCommand(migrateCommands(b))
	rootCmd.AddCommand(reporterCommands(b))
	rootCmd.AddCommand(initCommands(b))
	rootCmd.AddCommand(configCommands(b))

	return &XBridge{cmd: rootCmd}
}

func (x XBridge) executeCLI() {
	if err := x.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
