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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5005"

	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	DEFAULT_EVENT_QUEUE     = "bridge_events"
	DEFAULT_WEBHOOK_QUEUE   = "bridge_webhooks"
	DEFAULT_MAX_EVICTIONS   = 2
	DEFAULT_MONITORING_PORT = "5004"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"XBRIDGE_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"XBRIDGE_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"XBRIDGE_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"XBRIDGE_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"XBRIDGE_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"XBRIDGE_SERVER_PORT"`
}

type DataSourceConfig struct {
	Driver string `json:"driver" envconfig:"XBRIDGE_DATA_SOURCE_DRIVER"`
	Dns    string `json:"dns" envconfig:"XBRIDGE_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns           string `json:"dns" envconfig:"XBRIDGE_REDIS_DNS"`
	SkipTLSVerify bool   `json:"skip_tls_verify" envconfig:"XBRIDGE_REDIS_SKIP_TLS_VERIFY"`
}

type QueueConfig struct {
	EventQueue   string `json:"event_queue" envconfig:"XBRIDGE_QUEUE_EVENT_QUEUE"`
	WebhookQueue string `json:"webhook_queue" envconfig:"XBRIDGE_QUEUE_WEBHOOK_QUEUE"`
	Concurrency  int    `json:"concurrency" envconfig:"XBRIDGE_QUEUE_CONCURRENCY"`

	// MonitoringPort serves the asynqmon dashboard next to the workers.
	MonitoringPort string `json:"monitoring_port" envconfig:"XBRIDGE_QUEUE_MONITORING_PORT"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"XBRIDGE_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"XBRIDGE_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"XBRIDGE_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"XBRIDGE_SLACK_WEBHOOK_URL"`
}

type WebhookConfig struct {
	Url     string            `json:"url" envconfig:"XBRIDGE_WEBHOOK_URL"`
	Headers map[string]string `json:"headers"`
}

type Notification struct {
	Slack   SlackWebhook  `json:"slack"`
	Webhook WebhookConfig `json:"webhook"`
}

// BridgeDefaults are the parameters `xbridge init` applies when the state store
// has not been initialised yet.
type BridgeDefaults struct {
	ChainName          string `json:"chain_name"`
	TokenSymbol        string `json:"token_symbol"`
	TokenPrecision     uint8  `json:"token_precision"`
	TokenContract      string `json:"token_contract"`
	Issue              bool   `json:"issue"`
	Threshold          uint32 `json:"threshold"`
	ExpireAfterSeconds uint32 `json:"expire_after_seconds"`
	FeeRate            string `json:"fee_rate"`
	MinQuantity        string `json:"min_quantity"`
}

type BridgeConfig struct {
	// Account is the identity the bridge holds custody under on its own ledger.
	Account string `json:"account" envconfig:"XBRIDGE_BRIDGE_ACCOUNT"`
	// Chains maps every known chain name to the bridge account deployed on it.
	Chains         map[string]string `json:"chains"`
	SystemAccounts []string          `json:"system_accounts"`
	MaxEvictions   int               `json:"max_evictions" envconfig:"XBRIDGE_BRIDGE_MAX_EVICTIONS"`
	Defaults       BridgeDefaults    `json:"defaults"`
}

type LedgerConfig struct {
	Url string `json:"url" envconfig:"XBRIDGE_LEDGER_URL"`
	Key string `json:"key" envconfig:"XBRIDGE_LEDGER_KEY"`
	// IssuanceBalance is the ledger indicator new units are drawn from when issuing.
	IssuanceBalance string `json:"issuance_balance" envconfig:"XBRIDGE_LEDGER_ISSUANCE_BALANCE"`
}

type ReporterConfig struct {
	Name            string `json:"name" envconfig:"XBRIDGE_REPORTER_NAME"`
	SourceUrl       string `json:"source_url" envconfig:"XBRIDGE_REPORTER_SOURCE_URL"`
	SourceKey       string `json:"source_key" envconfig:"XBRIDGE_REPORTER_SOURCE_KEY"`
	DestinationUrl  string `json:"destination_url" envconfig:"XBRIDGE_REPORTER_DESTINATION_URL"`
	DestinationKey  string `json:"destination_key" envconfig:"XBRIDGE_REPORTER_DESTINATION_KEY"`
	PollIntervalSec int    `json:"poll_interval_sec" envconfig:"XBRIDGE_REPORTER_POLL_INTERVAL_SEC"`
}

type Configuration struct {
	ProjectName     string           `json:"project_name" envconfig:"XBRIDGE_PROJECT_NAME"`
	EnableTelemetry bool             `json:"enable_telemetry" envconfig:"XBRIDGE_ENABLE_TELEMETRY"`
	Server          ServerConfig     `json:"server"`
	DataSource      DataSourceConfig `json:"data_source"`
	Redis           RedisConfig      `json:"redis"`
	Queue           QueueConfig      `json:"queue"`
	Notification    Notification     `json:"notification"`
	RateLimit       RateLimitConfig  `json:"rate_limit"`
	Bridge          BridgeConfig     `json:"bridge"`
	Ledger          LedgerConfig     `json:"ledger"`
	Reporter        ReporterConfig   `json:"reporter"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}

	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("xbridge", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called xbridge.json with your config")
	}
	return c, nil
}

// ChainAccount returns the bridge account registered for chain.
func (cnf *Configuration) ChainAccount(chain string) (string, bool) {
	account, ok := cnf.Bridge.Chains[strings.ToLower(chain)]
	return account, ok
}

// IsSystemAccount reports whether deposits from account must be ignored.
func (cnf *Configuration) IsSystemAccount(account string) bool {
	if account == cnf.Bridge.Account {
		return true
	}
	for _, a := range cnf.Bridge.SystemAccounts {
		if a == account {
			return true
		}
	}
	return false
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "XBridge"
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.DataSource.Driver = strings.ToLower(strings.TrimSpace(cnf.DataSource.Driver))
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Bridge.Account = strings.TrimSpace(cnf.Bridge.Account)

	if cnf.DataSource.Driver == "" {
		cnf.DataSource.Driver = DriverPostgres
	}
	switch cnf.DataSource.Driver {
	case DriverPostgres:
		if cnf.DataSource.Dns == "" {
			log.Println("Error: Data source DNS is empty. It's a required field.")
			return errors.New("data source DNS is required")
		}
	case DriverMemory:
	default:
		return errors.New("data source driver must be either postgres or memory")
	}

	if cnf.Bridge.Account == "" {
		log.Println("Error: Bridge account is empty. It's a required field.")
		return errors.New("bridge account is required")
	}

	normalized := make(map[string]string, len(cnf.Bridge.Chains))
	for chain, account := range cnf.Bridge.Chains {
		normalized[strings.ToLower(strings.TrimSpace(chain))] = strings.TrimSpace(account)
	}
	cnf.Bridge.Chains = normalized

	if cnf.Bridge.MaxEvictions <= 0 {
		cnf.Bridge.MaxEvictions = DEFAULT_MAX_EVICTIONS
	}

	// Set default value for Port if it's empty
	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Queue.EventQueue == "" {
		cnf.Queue.EventQueue = DEFAULT_EVENT_QUEUE
	}
	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = DEFAULT_WEBHOOK_QUEUE
	}
	if cnf.Queue.Concurrency <= 0 {
		cnf.Queue.Concurrency = 1
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = DEFAULT_MONITORING_PORT
	}

	if cnf.Reporter.PollIntervalSec <= 0 {
		cnf.Reporter.PollIntervalSec = 10
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
