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
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/jerry-enebeli/xbridge/internal/request"
	"github.com/jerry-enebeli/xbridge/model"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	StatusApplied  = "APPLIED"
	StatusRejected = "REJECTED"
	StatusQueued   = "QUEUED"
)

// Transaction is the transaction shape of the Blnk ledger API, used both for
// requests and for the transaction.* webhooks it emits.
type Transaction struct {
	TransactionID  string                 `json:"transaction_id,omitempty"`
	Amount         float64                `json:"amount"`
	Precision      float64                `json:"precision"`
	AllowOverdraft bool                   `json:"allow_overdraft"`
	SkipQueue      bool                   `json:"skip_queue"`
	Source         string                 `json:"source"`
	Destination    string                 `json:"destination"`
	Reference      string                 `json:"reference"`
	Currency       string                 `json:"currency"`
	Description    string                 `json:"description"`
	Status         string                 `json:"status,omitempty"`
	CreatedAt      time.Time              `json:"created_at,omitempty"`
	MetaData       map[string]interface{} `json:"meta_data,omitempty"`
}

// Memo returns the memo the sender attached, preferring meta_data.memo over
// the description.
func (t *Transaction) Memo() string {
	if memo, ok := t.MetaData["memo"].(string); ok {
		return memo
	}
	return t.Description
}

// Asset converts the transaction amount into minor units of symbol.
func (t *Transaction) Asset(symbol model.Symbol) (model.Asset, error) {
	if !strings.EqualFold(t.Currency, symbol.Code) {
		return model.Asset{}, model.ErrSymbolMismatch
	}
	minor := decimal.NewFromFloat(t.Amount).Shift(int32(symbol.Precision)).Round(0)
	if !minor.BigInt().IsInt64() {
		return model.Asset{}, model.ErrAssetOverflow
	}
	return model.NewAsset(minor.IntPart(), symbol), nil
}

// Account strips the "@" indicator prefix from a balance reference.
func Account(balance string) string {
	return strings.TrimPrefix(balance, "@")
}

func indicator(account string) string {
	return "@" + account
}

// BlnkLedger records every movement as a transaction on a Blnk ledger.
// Accounts map to "@account" balance indicators and issuance is drawn from the
// overdraft-enabled issuance balance.
type BlnkLedger struct {
	baseURL  string
	key      string
	issuance string
}

func NewBlnkLedger(baseURL, key, issuanceBalance string) *BlnkLedger {
	if issuanceBalance == "" {
		issuanceBalance = "xbridge-issuance"
	}
	return &BlnkLedger{
		baseURL:  strings.TrimRight(baseURL, "/"),
		key:      key,
		issuance: Account(issuanceBalance),
	}
}

func (l *BlnkLedger) Issue(ctx context.Context, reference, to string, quantity model.Asset, memo string) error {
	if err := checkQuantity(quantity); err != nil {
		return err
	}
	return l.record(ctx, Transaction{
		Reference:      reference,
		Source:         indicator(l.issuance),
		Destination:    indicator(to),
		AllowOverdraft: true,
		Description:    memo,
	}, quantity, "issue")
}

func (l *BlnkLedger) Transfer(ctx context.Context, reference, from, to string, quantity model.Asset, memo string) error {
	if err := checkQuantity(quantity); err != nil {
		return err
	}
	return l.record(ctx, Transaction{
		Reference:   reference,
		Source:      indicator(from),
		Destination: indicator(to),
		Description: memo,
	}, quantity, "transfer")
}

func (l *BlnkLedger) record(ctx context.Context, txn Transaction, quantity model.Asset, kind string) error {
	txn.Amount = quantity.Decimal().InexactFloat64()
	txn.Precision = math.Pow10(int(quantity.Symbol.Precision))
	txn.Currency = quantity.Symbol.Code
	if txn.Reference == "" {
		txn.Reference = model.GenerateUUIDWithSuffix("xbridge")
	}
	txn.SkipQueue = true
	txn.MetaData = map[string]interface{}{"memo": txn.Description, "kind": kind}

	payload, err := request.ToJsonReq(txn)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/transactions", l.baseURL), payload)
	if err != nil {
		return err
	}
	if l.key != "" {
		req.Header.Set("X-Blnk-Key", l.key)
	}

	var response Transaction
	if _, err = request.Call(req, &response); err != nil {
		if alreadyRecorded(err) {
			logrus.WithField("reference", txn.Reference).Infof("ledger %s was already recorded", kind)
			return nil
		}
		return errors.Wrapf(err, "ledger %s of %s from %s to %s", kind, quantity, txn.Source, txn.Destination)
	}
	if strings.EqualFold(response.Status, StatusRejected) {
		return &RejectedError{Reference: txn.Reference, Status: response.Status}
	}

	logrus.WithFields(logrus.Fields{
		"reference":   txn.Reference,
		"source":      txn.Source,
		"destination": txn.Destination,
		"quantity":    quantity.String(),
	}).Infof("ledger %s recorded", kind)
	return nil
}

// alreadyRecorded reports whether the ledger refused a transaction because
// its reference was used before, which means an earlier attempt went through.
func alreadyRecorded(err error) bool {
	var statusErr *request.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode >= http.StatusInternalServerError {
		return false
	}
	return strings.Contains(string(statusErr.Body), "has already been used")
}
