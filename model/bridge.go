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
	"time"

	"github.com/shopspring/decimal"
)

type TokenInfo struct {
	Symbol   Symbol `json:"symbol"`
	Contract string `json:"contract"`
}

// Settings is the singleton configuration of a bridge. It exists only once
// the bridge has been initialised.
type Settings struct {
	ChainName      string    `json:"chain_name"`
	Token          TokenInfo `json:"token"`
	Enabled        bool      `json:"enabled"`
	DoIssue        bool      `json:"do_issue"`
	NextTransferID uint64    `json:"next_transfer_id"`
	ExpireAfter    uint32    `json:"expire_after"` // seconds
	Threshold      uint32    `json:"threshold"`
	MinQuantity    Asset     `json:"min_quantity"`
}

func (s *Settings) ExpireDuration() time.Duration {
	return time.Duration(s.ExpireAfter) * time.Second
}

type FeeState struct {
	Total            Asset           `json:"total"`
	Reserve          Asset           `json:"reserve"`
	LastDistribution time.Time       `json:"last_distribution"`
	Rate             decimal.Decimal `json:"rate"`
}

// Fee returns the fee owed on quantity, truncated to whole minor units.
func (f *FeeState) Fee(quantity Asset) Asset {
	amount := decimal.NewFromInt(quantity.Amount).Mul(f.Rate).IntPart()
	return Asset{Amount: amount, Symbol: quantity.Symbol}
}

// Accrue adds fee to both the reserve and the lifetime total.
func (f *FeeState) Accrue(fee Asset) error {
	reserve, err := f.Reserve.Add(fee)
	if err != nil {
		return err
	}
	total, err := f.Total.Add(fee)
	if err != nil {
		return err
	}
	f.Reserve, f.Total = reserve, total
	return nil
}

type Reporter struct {
	Account   string    `json:"account"`
	Points    uint64    `json:"points"`
	KeyHash   string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Transfer is both an outbound transfer recorded by this bridge and the
// claim reporters submit about a transfer recorded on another chain.
type Transfer struct {
	ID              uint64    `json:"id"`
	TransactionID   string    `json:"transaction_id"`
	FromBlockchain  string    `json:"from_blockchain"`
	ToBlockchain    string    `json:"to_blockchain"`
	FromAccount     string    `json:"from_account"`
	ToAccount       string    `json:"to_account"`
	Quantity        Asset     `json:"quantity"`
	TransactionTime time.Time `json:"transaction_time"`
	ExpiresAt       time.Time `json:"expires_at"`
	IsRefund        bool      `json:"is_refund"`
}

// Key is the dedup key of reports about this transfer.
func (t *Transfer) Key() TransferKey {
	return TransferKey{Chain: t.FromBlockchain, ID: t.ID}
}

// Equal compares every field of the claim.
func (t *Transfer) Equal(o *Transfer) bool {
	return t.ID == o.ID &&
		t.TransactionID == o.TransactionID &&
		t.FromBlockchain == o.FromBlockchain &&
		t.ToBlockchain == o.ToBlockchain &&
		t.FromAccount == o.FromAccount &&
		t.ToAccount == o.ToAccount &&
		t.Quantity == o.Quantity &&
		t.TransactionTime.Equal(o.TransactionTime) &&
		t.ExpiresAt.Equal(o.ExpiresAt) &&
		t.IsRefund == o.IsRefund
}

func (t *Transfer) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}

// TransferKey identifies a transfer across chains.
type TransferKey struct {
	Chain string `json:"chain"`
	ID    uint64 `json:"id"`
}

// Less orders keys by chain, then by id.
func (k TransferKey) Less(o TransferKey) bool {
	if k.Chain != o.Chain {
		return k.Chain < o.Chain
	}
	return k.ID < o.ID
}
