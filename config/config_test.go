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
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAndAddDefaults(t *testing.T) {
	cnf := Configuration{
		DataSource: DataSourceConfig{Dns: ""},
		Bridge:     BridgeConfig{Account: "eosbridge"},
	}

	err := cnf.validateAndAddDefaults()
	if err == nil || err.Error() != "data source DNS is required" {
		t.Errorf("Expected data source DNS required error, got %v", err)
	}

	cnf = Configuration{
		DataSource: DataSourceConfig{Driver: DriverMemory},
	}
	err = cnf.validateAndAddDefaults()
	if err == nil || err.Error() != "bridge account is required" {
		t.Errorf("Expected bridge account required error, got %v", err)
	}

	cnf = Configuration{
		DataSource: DataSourceConfig{Driver: "mongo"},
		Bridge:     BridgeConfig{Account: "eosbridge"},
	}
	err = cnf.validateAndAddDefaults()
	assert.EqualError(t, err, "data source driver must be either postgres or memory")

	cnf = Configuration{
		ProjectName: "Test Project",
		DataSource:  DataSourceConfig{Dns: "some-dns"},
		Bridge: BridgeConfig{
			Account: " eosbridge ",
			Chains:  map[string]string{" WAX ": "waxbridge"},
		},
	}
	err = cnf.validateAndAddDefaults()
	assert.NoError(t, err)
	assert.Equal(t, DEFAULT_PORT, cnf.Server.Port)
	assert.Equal(t, DriverPostgres, cnf.DataSource.Driver)
	assert.Equal(t, "eosbridge", cnf.Bridge.Account)
	assert.Equal(t, DEFAULT_MAX_EVICTIONS, cnf.Bridge.MaxEvictions)
	assert.Equal(t, DEFAULT_EVENT_QUEUE, cnf.Queue.EventQueue)
	assert.Equal(t, DEFAULT_WEBHOOK_QUEUE, cnf.Queue.WebhookQueue)
	assert.Equal(t, 10, cnf.Reporter.PollIntervalSec)

	account, ok := cnf.ChainAccount("wax")
	assert.True(t, ok)
	assert.Equal(t, "waxbridge", account)
}

func TestRateLimitDefaults(t *testing.T) {
	rps := 10.0
	cnf := Configuration{
		DataSource: DataSourceConfig{Driver: DriverMemory},
		Bridge:     BridgeConfig{Account: "eosbridge"},
		RateLimit:  RateLimitConfig{RequestsPerSecond: &rps},
	}
	assert.NoError(t, cnf.validateAndAddDefaults())
	if assert.NotNil(t, cnf.RateLimit.Burst) {
		assert.Equal(t, 20, *cnf.RateLimit.Burst)
	}
	if assert.NotNil(t, cnf.RateLimit.CleanupIntervalSec) {
		assert.Equal(t, 10800, *cnf.RateLimit.CleanupIntervalSec)
	}
}

func TestIsSystemAccount(t *testing.T) {
	cnf := Configuration{
		Bridge: BridgeConfig{
			Account:        "eosbridge",
			SystemAccounts: []string{"eosio.ram", "eosio.stake"},
		},
	}
	assert.True(t, cnf.IsSystemAccount("eosbridge"))
	assert.True(t, cnf.IsSystemAccount("eosio.stake"))
	assert.False(t, cnf.IsSystemAccount("alice"))
}

func TestLoadConfigFromFile(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "xbridge.json")
	if err != nil {
		t.Fatalf("Unable to create temporary file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	sampleConfig := Configuration{
		ProjectName: "Temp Project",
		DataSource:  DataSourceConfig{Dns: "temp-dns"},
		Bridge:      BridgeConfig{Account: "eosbridge"},
	}
	if err := json.NewEncoder(tmpFile).Encode(sampleConfig); err != nil {
		t.Fatalf("Unable to write to temporary file: %v", err)
	}
	tmpFile.Close()

	t.Setenv("XBRIDGE_PROJECT_NAME", "Env Project")

	if err := loadConfigFromFile(tmpFile.Name()); err != nil {
		t.Fatalf("loadConfigFromFile failed: %v", err)
	}

	loadedConfig, err := Fetch()
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if loadedConfig.ProjectName != "Env Project" {
		t.Errorf("Expected ProjectName to be 'Env Project', got '%s'", loadedConfig.ProjectName)
	}
	if loadedConfig.DataSource.Dns != "temp-dns" {
		t.Errorf("Expected DataSource.Dns to be 'temp-dns', got '%s'", loadedConfig.DataSource.Dns)
	}
}

func TestInitConfig(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "xbridge.json")
	if err != nil {
		t.Fatalf("Unable to create temporary file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	sampleConfig := Configuration{
		ProjectName: "InitConfig Test",
		DataSource:  DataSourceConfig{Driver: DriverMemory},
		Bridge:      BridgeConfig{Account: "waxbridge"},
	}
	if err := json.NewEncoder(tmpFile).Encode(sampleConfig); err != nil {
		t.Fatalf("Unable to write to temporary file: %v", err)
	}
	tmpFile.Close()

	if err := InitConfig(tmpFile.Name()); err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	loadedConfig, err := Fetch()
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	assert.Equal(t, "InitConfig Test", loadedConfig.ProjectName)
	assert.Equal(t, "waxbridge", loadedConfig.Bridge.Account)
}
