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
	"testing"
	"time"

	"github.com/jerry-enebeli/xbridge/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitBridge(t *testing.T) {
	valid := InitBridge{
		ChainName:   "eos",
		Symbol:      "4,TOK",
		Contract:    "xbridge.token",
		ExpireAfter: 3600,
		Threshold:   2,
		FeeRate:     "0.002",
		MinQuantity: "1.0000 TOK",
	}
	require.NoError(t, valid.ValidateInitBridge())

	params, err := valid.ToInitParams()
	require.NoError(t, err)
	assert.Equal(t, model.Symbol{Code: "TOK", Precision: 4}, params.Token.Symbol)
	assert.True(t, decimal.RequireFromString("0.002").Equal(params.FeeRate))
	assert.Equal(t, int64(10000), params.MinQuantity.Amount)

	tests := []struct {
		name   string
		mutate func(*InitBridge)
	}{
		{"missing chain", func(i *InitBridge) { i.ChainName = "" }},
		{"bad symbol", func(i *InitBridge) { i.Symbol = "TOK" }},
		{"missing contract", func(i *InitBridge) { i.Contract = "" }},
		{"zero threshold", func(i *InitBridge) { i.Threshold = 0 }},
		{"bad rate", func(i *InitBridge) { i.FeeRate = "two percent" }},
		{"bad minimum", func(i *InitBridge) { i.MinQuantity = "1 TOK TOK" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			assert.Error(t, req.ValidateInitBridge())
		})
	}
}

func TestUpdateBridge(t *testing.T) {
	req := UpdateBridge{Threshold: 3, ExpireAfter: 60, MinQuantity: "0.5000 TOK"}
	require.NoError(t, req.ValidateUpdateBridge())
	params, err := req.ToUpdateParams()
	require.NoError(t, err)
	assert.True(t, params.FeeRate.IsZero())
	assert.Equal(t, int64(5000), params.MinQuantity.Amount)
}

func TestEnableAndReporter(t *testing.T) {
	assert.Error(t, (&EnableBridge{}).ValidateEnableBridge())
	off := false
	assert.NoError(t, (&EnableBridge{Enable: &off}).ValidateEnableBridge())

	assert.NoError(t, (&CreateReporter{Account: "alice"}).ValidateCreateReporter())
	assert.Error(t, (&CreateReporter{Account: "averyveryverylongname"}).ValidateCreateReporter())
}

func TestSubmitReport(t *testing.T) {
	now := time.Now()
	req := SubmitReport{Transfer: model.Transfer{
		FromBlockchain:  "wax",
		ToBlockchain:    "eos",
		ToAccount:       "dave",
		Quantity:        model.NewAsset(10000, model.Symbol{Code: "TOK", Precision: 4}),
		TransactionTime: now,
		ExpiresAt:       now.Add(time.Hour),
	}}
	assert.NoError(t, req.ValidateSubmitReport())

	for _, quantity := range []model.Asset{
		model.NewAsset(-10000, model.Symbol{Code: "TOK", Precision: 4}),
		model.NewAsset(0, model.Symbol{Code: "TOK", Precision: 4}),
		model.NewAsset(10000, model.Symbol{}),
	} {
		bad := req
		bad.Transfer.Quantity = quantity
		assert.Error(t, bad.ValidateSubmitReport(), quantity.String())
	}

	req.Transfer.ExpiresAt = time.Time{}
	assert.Error(t, req.ValidateSubmitReport())
}

func TestDeposit(t *testing.T) {
	req := Deposit{TransactionID: "tx", From: "alice", To: "bridge", Quantity: "2.5000 TOK", Memo: "wax,dave"}
	require.NoError(t, req.ValidateDeposit())
	d, err := req.ToDeposit()
	require.NoError(t, err)
	assert.Equal(t, int64(25000), d.Quantity.Amount)

	req.Quantity = "lots"
	assert.Error(t, req.ValidateDeposit())
}
