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
	"github.com/jerry-enebeli/xbridge"
	"github.com/jerry-enebeli/xbridge/model"
	"github.com/shopspring/decimal"
)

type InitBridge struct {
	ChainName   string `json:"chain_name"`
	Symbol      string `json:"symbol"` // "4,TOK"
	Contract    string `json:"contract"`
	ExpireAfter uint32 `json:"expire_after"`
	Issue       bool   `json:"issue"`
	Threshold   uint32 `json:"threshold"`
	FeeRate     string `json:"fee_rate"`
	MinQuantity string `json:"min_quantity"` // "1.0000 TOK"
}

type UpdateBridge struct {
	Threshold   uint32 `json:"threshold"`
	FeeRate     string `json:"fee_rate"`
	ExpireAfter uint32 `json:"expire_after"`
	MinQuantity string `json:"min_quantity"`
}

type EnableBridge struct {
	Enable *bool `json:"enable"`
}

type CreateReporter struct {
	Account string `json:"account"`
}

// CreatedReporter is returned once, when the reporter is whitelisted.
type CreatedReporter struct {
	Reporter *model.Reporter `json:"reporter"`
	Key      string          `json:"key"`
}

type SubmitReport struct {
	Transfer model.Transfer `json:"transfer"`
}

type Deposit struct {
	TransactionID string `json:"transaction_id"`
	Contract      string `json:"contract"`
	From          string `json:"from"`
	To            string `json:"to"`
	Quantity      string `json:"quantity"`
	Memo          string `json:"memo"`
}

func (i *InitBridge) ToInitParams() (xbridge.InitParams, error) {
	symbol, err := model.ParseSymbol(i.Symbol)
	if err != nil {
		return xbridge.InitParams{}, err
	}
	rate, minQuantity, err := parseRateAndMinimum(i.FeeRate, i.MinQuantity)
	if err != nil {
		return xbridge.InitParams{}, err
	}
	return xbridge.InitParams{
		ChainName:   i.ChainName,
		Token:       model.TokenInfo{Symbol: symbol, Contract: i.Contract},
		ExpireAfter: i.ExpireAfter,
		DoIssue:     i.Issue,
		Threshold:   i.Threshold,
		FeeRate:     rate,
		MinQuantity: minQuantity,
	}, nil
}

func (u *UpdateBridge) ToUpdateParams() (xbridge.UpdateParams, error) {
	rate, minQuantity, err := parseRateAndMinimum(u.FeeRate, u.MinQuantity)
	if err != nil {
		return xbridge.UpdateParams{}, err
	}
	return xbridge.UpdateParams{
		Threshold:   u.Threshold,
		FeeRate:     rate,
		ExpireAfter: u.ExpireAfter,
		MinQuantity: minQuantity,
	}, nil
}

func (d *Deposit) ToDeposit() (xbridge.Deposit, error) {
	quantity, err := model.ParseAsset(d.Quantity)
	if err != nil {
		return xbridge.Deposit{}, err
	}
	return xbridge.Deposit{
		TransactionID: d.TransactionID,
		Contract:      d.Contract,
		From:          d.From,
		To:            d.To,
		Quantity:      quantity,
		Memo:          d.Memo,
	}, nil
}

func parseRateAndMinimum(rate, minQuantity string) (decimal.Decimal, model.Asset, error) {
	feeRate := decimal.Zero
	if rate != "" {
		var err error
		if feeRate, err = decimal.NewFromString(rate); err != nil {
			return decimal.Decimal{}, model.Asset{}, err
		}
	}
	minimum, err := model.ParseAsset(minQuantity)
	if err != nil {
		return decimal.Decimal{}, model.Asset{}, err
	}
	return feeRate, minimum, nil
}
