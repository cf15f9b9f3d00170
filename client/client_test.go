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

package client

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/jerry-enebeli/xbridge/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tok = model.Symbol{Code: "TOK", Precision: 4}

func TestClient_TransfersAndReports(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	transfer := model.Transfer{
		ID:              3,
		FromBlockchain:  "eos",
		ToBlockchain:    "wax",
		ToAccount:       "dave",
		Quantity:        model.NewAsset(9980, tok),
		TransactionTime: now,
		ExpiresAt:       now.Add(time.Hour),
	}

	httpmock.RegisterResponder(http.MethodGet, "http://eos.bridge/transfers?unexpired=true",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "rep-key", req.Header.Get(keyHeader))
			return httpmock.NewJsonResponse(http.StatusOK, []model.Transfer{transfer})
		})
	httpmock.RegisterResponder(http.MethodPost, "http://wax.bridge/reports",
		func(req *http.Request) (*http.Response, error) {
			var body struct {
				Transfer model.Transfer `json:"transfer"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				return httpmock.NewStringResponse(http.StatusBadRequest, `{"errors":"bad"}`), nil
			}
			return httpmock.NewJsonResponse(http.StatusCreated, model.Report{ID: 1, Transfer: body.Transfer, ConfirmedBy: []string{"alice"}})
		})

	source := New("http://eos.bridge/", "rep-key")
	transfers, err := source.Transfers(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.Equal(t, "0.9980 TOK", transfers[0].Quantity.String())

	destination := New("http://wax.bridge", "rep-key")
	report, err := destination.SubmitReport(context.Background(), transfers[0])
	require.NoError(t, err)
	assert.Equal(t, uint64(1), report.ID)
	assert.Equal(t, uint64(3), report.Transfer.ID)
	assert.True(t, transfers[0].ExpiresAt.Equal(report.Transfer.ExpiresAt))
}

func TestClient_Errors(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "http://wax.bridge/reports/4/execute",
		httpmock.NewStringResponder(http.StatusBadRequest, `{"error":"INVALID_INPUT: transfer already expired"}`))
	httpmock.RegisterResponder(http.MethodPost, "http://wax.bridge/fees/distribute",
		httpmock.NewStringResponder(http.StatusTooEarly, `not json`))

	c := New("http://wax.bridge", "")
	_, err := c.Execute(context.Background(), 4)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))
	assert.Contains(t, err.Error(), "transfer already expired")

	_, err = c.DistributeFees(context.Background())
	assert.Equal(t, http.StatusTooEarly, StatusCode(err))
	assert.Contains(t, err.Error(), "not json")

	assert.Equal(t, 0, StatusCode(assert.AnError))
}
