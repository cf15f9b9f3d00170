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

package tokenledger

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/jerry-enebeli/xbridge/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tok = model.Symbol{Code: "TOK", Precision: 4}

func TestMemoryLedger_IssueAndTransfer(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger("bridge")

	assert.ErrorIs(t, ledger.Issue(ctx, "ref-0", "mallory", model.NewAsset(10, tok), ""), ErrNotIssuer)
	require.NoError(t, ledger.Issue(ctx, "ref-1", "bridge", model.NewAsset(10000, tok), "mint"))
	require.NoError(t, ledger.Transfer(ctx, "ref-2", "bridge", "alice", model.NewAsset(9980, tok), "release"))

	assert.Equal(t, int64(20), ledger.Balance("bridge", tok))
	assert.Equal(t, int64(9980), ledger.Balance("alice", tok))

	movements := ledger.Movements()
	require.Len(t, movements, 2)
	assert.Equal(t, "issue", movements[0].Kind)
	assert.Equal(t, "release", movements[1].Memo)
}

func TestMemoryLedger_ReferenceAppliedOnce(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger("bridge")
	ledger.Deposit("bridge", model.NewAsset(100, tok))

	require.NoError(t, ledger.Transfer(ctx, "payout-1", "bridge", "alice", model.NewAsset(60, tok), "fees"))
	require.NoError(t, ledger.Transfer(ctx, "payout-1", "bridge", "alice", model.NewAsset(60, tok), "fees"))
	require.NoError(t, ledger.Issue(ctx, "issue-1", "bridge", model.NewAsset(5, tok), ""))
	require.NoError(t, ledger.Issue(ctx, "issue-1", "bridge", model.NewAsset(5, tok), ""))

	assert.Equal(t, int64(60), ledger.Balance("alice", tok))
	assert.Equal(t, int64(45), ledger.Balance("bridge", tok))
	assert.Len(t, ledger.Movements(), 2)
}

func TestMemoryLedger_FailedReferenceCanBeRetried(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger("bridge")

	assert.ErrorIs(t, ledger.Transfer(ctx, "payout-1", "bridge", "alice", model.NewAsset(60, tok), ""), ErrInsufficientFunds)
	ledger.Deposit("bridge", model.NewAsset(60, tok))
	require.NoError(t, ledger.Transfer(ctx, "payout-1", "bridge", "alice", model.NewAsset(60, tok), ""))
	assert.Equal(t, int64(60), ledger.Balance("alice", tok))
}

func TestMemoryLedger_Overdraw(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger("bridge")
	ledger.Deposit("bridge", model.NewAsset(5, tok))

	err := ledger.Transfer(ctx, "ref-1", "bridge", "alice", model.NewAsset(6, tok), "")
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, int64(5), ledger.Balance("bridge", tok))
	assert.Empty(t, ledger.Movements())
}

func TestMemoryLedger_RejectsNonPositive(t *testing.T) {
	ledger := NewMemoryLedger("bridge")
	assert.ErrorIs(t, ledger.Transfer(context.Background(), "ref-1", "bridge", "alice", model.NewAsset(0, tok), ""), ErrInvalidQuantity)
}

func TestBlnkLedger_Transfer(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	var sent Transaction
	httpmock.RegisterResponder(http.MethodPost, "http://ledger.local/transactions",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "secret", req.Header.Get("X-Blnk-Key"))
			require.NoError(t, json.NewDecoder(req.Body).Decode(&sent))
			return httpmock.NewJsonResponse(http.StatusCreated, map[string]string{"status": StatusApplied})
		})

	ledger := NewBlnkLedger("http://ledger.local/", "secret", "")
	err := ledger.Transfer(context.Background(), "xbridge:report:7:release", "bridge", "alice", model.NewAsset(12345, tok), "wax:0xabc")
	require.NoError(t, err)

	assert.Equal(t, "@bridge", sent.Source)
	assert.Equal(t, "@alice", sent.Destination)
	assert.Equal(t, 1.2345, sent.Amount)
	assert.Equal(t, float64(10000), sent.Precision)
	assert.Equal(t, "TOK", sent.Currency)
	assert.False(t, sent.AllowOverdraft)
	assert.True(t, sent.SkipQueue)
	assert.Equal(t, "xbridge:report:7:release", sent.Reference)
	assert.Equal(t, "wax:0xabc", sent.Memo())
}

func TestBlnkLedger_IssueDrawsFromIssuanceBalance(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	var sent Transaction
	httpmock.RegisterResponder(http.MethodPost, "http://ledger.local/transactions",
		func(req *http.Request) (*http.Response, error) {
			require.NoError(t, json.NewDecoder(req.Body).Decode(&sent))
			return httpmock.NewJsonResponse(http.StatusCreated, map[string]string{"status": StatusQueued})
		})

	ledger := NewBlnkLedger("http://ledger.local", "", "@mint")
	require.NoError(t, ledger.Issue(context.Background(), "", "bridge", model.NewAsset(500, tok), "issue"))
	assert.Equal(t, "@mint", sent.Source)
	assert.Equal(t, "@bridge", sent.Destination)
	assert.True(t, sent.AllowOverdraft)
	assert.NotEmpty(t, sent.Reference)
}

func TestBlnkLedger_Rejected(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "http://ledger.local/transactions",
		httpmock.NewStringResponder(http.StatusCreated, `{"status":"REJECTED"}`))

	ledger := NewBlnkLedger("http://ledger.local", "", "")
	err := ledger.Transfer(context.Background(), "ref-1", "bridge", "alice", model.NewAsset(1, tok), "")
	var rejected *RejectedError
	assert.ErrorAs(t, err, &rejected)
}

func TestBlnkLedger_HTTPError(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "http://ledger.local/transactions",
		httpmock.NewStringResponder(http.StatusBadRequest, `{"error":"insufficient funds"}`))

	ledger := NewBlnkLedger("http://ledger.local", "", "")
	err := ledger.Transfer(context.Background(), "ref-1", "bridge", "alice", model.NewAsset(1, tok), "")
	assert.Error(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestBlnkLedger_ReusedReferenceIsApplied(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(http.MethodPost, "http://ledger.local/transactions",
		httpmock.NewStringResponder(http.StatusBadRequest, `{"error":"reference xbridge:report:7:release has already been used"}`))

	ledger := NewBlnkLedger("http://ledger.local", "", "")
	err := ledger.Transfer(context.Background(), "xbridge:report:7:release", "bridge", "alice", model.NewAsset(1, tok), "")
	assert.NoError(t, err)
}

func TestTransaction_Asset(t *testing.T) {
	txn := Transaction{Amount: 1.2345, Currency: "tok"}
	a, err := txn.Asset(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(12345), a.Amount)

	txn.Currency = "ABC"
	_, err = txn.Asset(tok)
	assert.ErrorIs(t, err, model.ErrSymbolMismatch)
}

func TestAccount(t *testing.T) {
	assert.Equal(t, "alice", Account("@alice"))
	assert.Equal(t, "alice", Account("alice"))
}
