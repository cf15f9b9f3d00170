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

package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jerry-enebeli/xbridge/internal/apierror"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tok = Symbol{Code: "TOK", Precision: 4}

func TestGenerateUUIDWithSuffix(t *testing.T) {
	id := GenerateUUIDWithSuffix("archive")
	assert.Contains(t, id, "archive_")
}

func TestHashKey(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	assert.Len(t, HashKey(key), 64)
	assert.Equal(t, HashKey(key), HashKey(key))
	assert.NotEqual(t, HashKey(key), HashKey(key+"x"))
}

func TestParseAsset(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    Asset
		wantErr bool
	}{
		{name: "four decimals", raw: "1.2345 TOK", want: Asset{Amount: 12345, Symbol: tok}},
		{name: "no decimals", raw: "15 WAX", want: Asset{Amount: 15, Symbol: Symbol{Code: "WAX"}}},
		{name: "lower case code", raw: "1.0 tok", wantErr: true},
		{name: "missing code", raw: "1.0000", wantErr: true},
		{name: "garbage amount", raw: "abc TOK", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAsset(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.raw, got.String())
		})
	}
}

func TestAssetJSON(t *testing.T) {
	raw, err := json.Marshal(Asset{Amount: 5, Symbol: tok})
	require.NoError(t, err)
	assert.JSONEq(t, `"0.0005 TOK"`, string(raw))

	var a Asset
	require.NoError(t, json.Unmarshal(raw, &a))
	assert.Equal(t, Asset{Amount: 5, Symbol: tok}, a)
}

func TestAssetArithmetic(t *testing.T) {
	a := Asset{Amount: 100, Symbol: tok}

	sum, err := a.Add(Asset{Amount: 20, Symbol: tok})
	require.NoError(t, err)
	assert.Equal(t, int64(120), sum.Amount)

	diff, err := a.Sub(Asset{Amount: 150, Symbol: tok})
	require.NoError(t, err)
	assert.Equal(t, int64(-50), diff.Amount)

	_, err = a.Add(Asset{Amount: 1, Symbol: Symbol{Code: "WAX", Precision: 4}})
	assert.ErrorIs(t, err, ErrSymbolMismatch)
}

func TestAssetConvert(t *testing.T) {
	remote := Asset{Amount: 123456, Symbol: Symbol{Code: "WTOK", Precision: 4}}

	same, err := remote.Convert(tok)
	require.NoError(t, err)
	assert.Equal(t, Asset{Amount: 123456, Symbol: tok}, same)

	coarse, err := remote.Convert(Symbol{Code: "TOK", Precision: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(1234), coarse.Amount)
}

func TestFeeStateFee(t *testing.T) {
	fees := FeeState{Rate: decimal.RequireFromString("0.002"), Total: Asset{Symbol: tok}, Reserve: Asset{Symbol: tok}}

	fee := fees.Fee(Asset{Amount: 10000, Symbol: tok})
	assert.Equal(t, int64(20), fee.Amount)

	// truncated, never rounded up
	fee = fees.Fee(Asset{Amount: 499, Symbol: tok})
	assert.Equal(t, int64(0), fee.Amount)

	require.NoError(t, fees.Accrue(Asset{Amount: 20, Symbol: tok}))
	assert.Equal(t, int64(20), fees.Reserve.Amount)
	assert.Equal(t, int64(20), fees.Total.Amount)
}

func TestTransferEqual(t *testing.T) {
	now := time.Unix(1700000000, 0)
	a := Transfer{ID: 1, TransactionID: "tx", FromBlockchain: "eos", ToBlockchain: "wax",
		FromAccount: "alice", ToAccount: "bob", Quantity: Asset{Amount: 1, Symbol: tok},
		TransactionTime: now, ExpiresAt: now.Add(time.Hour)}
	b := a
	b.TransactionTime = now.UTC()
	assert.True(t, a.Equal(&b))

	b.Quantity.Amount = 2
	assert.False(t, a.Equal(&b))
	assert.Equal(t, TransferKey{Chain: "eos", ID: 1}, a.Key())
}

func TestReportVoting(t *testing.T) {
	r := NewReport(Transfer{ID: 1, FromBlockchain: "eos"}, "alice", 2)
	assert.False(t, r.Confirmed)

	err := r.Confirm("alice", 2)
	assert.True(t, apierror.Is(err, apierror.ErrConflict))

	require.NoError(t, r.Confirm("bob", 2))
	assert.True(t, r.Confirmed)

	// confirmation is sticky
	assert.False(t, r.Promote(5))
	assert.True(t, r.Confirmed)

	failed, err := r.Fail("alice", 2)
	require.NoError(t, err)
	assert.False(t, failed)

	_, err = r.Fail("alice", 2)
	assert.True(t, apierror.Is(err, apierror.ErrConflict))

	failed, err = r.Fail("bob", 2)
	require.NoError(t, err)
	assert.True(t, failed)
	assert.True(t, r.Resolved())
}

func TestReportActionable(t *testing.T) {
	now := time.Unix(1700000000, 0)
	r := &Report{Transfer: Transfer{ExpiresAt: now.Add(time.Minute)}}

	assert.True(t, apierror.Is(r.Actionable(now), apierror.ErrConflict))
	r.Confirmed = true
	assert.NoError(t, r.Actionable(now))
	assert.True(t, apierror.Is(r.Actionable(now.Add(time.Minute)), apierror.ErrInvalidInput))

	r.Executed = true
	assert.True(t, apierror.Is(r.Actionable(now), apierror.ErrConflict))
}

func TestReportClone(t *testing.T) {
	r := NewReport(Transfer{ID: 1}, "alice", 1)
	c := r.Clone()
	c.ConfirmedBy[0] = "mallory"
	assert.Equal(t, "alice", r.ConfirmedBy[0])
}
