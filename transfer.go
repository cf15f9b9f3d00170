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

package xbridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/jerry-enebeli/xbridge/database"
	"github.com/jerry-enebeli/xbridge/internal/apierror"
	"github.com/jerry-enebeli/xbridge/model"
	"github.com/jerry-enebeli/xbridge/tokenledger"
	"github.com/sirupsen/logrus"
)

const maxAccountLength = 12

// Deposit is a movement of tokens into the bridge's custody as reported by
// the token ledger.
type Deposit struct {
	TransactionID string      `json:"transaction_id"`
	Contract      string      `json:"contract"`
	From          string      `json:"from"`
	To            string      `json:"to"`
	Quantity      model.Asset `json:"quantity"`
	Memo          string      `json:"memo"`
}

type transferRequest struct {
	TransactionID string
	ToBlockchain  string
	FromAccount   string
	ToAccount     string
	Quantity      model.Asset
	IsRefund      bool
}

func normalizeChain(chain string) string {
	return strings.ToLower(strings.TrimSpace(chain))
}

// parseMemo splits a "<chain>,<account>" deposit memo.
func parseMemo(memo string) (chain, account string, err error) {
	parts := strings.Split(memo, ",")
	if len(parts) < 2 {
		return "", "", apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("invalid memo %q: expected <chain>,<account>", memo), nil)
	}
	return normalizeChain(parts[0]), strings.TrimSpace(parts[1]), nil
}

// registerTransfer assigns the next transfer id, accrues the fee of a regular
// transfer and stores the outbound record that reporters relay to the
// destination chain.
func (b *Bridge) registerTransfer(ctx context.Context, u *unit, settings *model.Settings, req transferRequest) (*model.Transfer, error) {
	if !settings.Enabled {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "bridge transfers are disabled", nil)
	}
	if req.Quantity.Amount <= 0 {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "the transfer quantity must be positive", nil)
	}

	fees, err := u.store.GetFees(ctx)
	if err != nil {
		return nil, err
	}

	id := settings.NextTransferID
	settings.NextTransferID++

	fee := model.NewAsset(0, req.Quantity.Symbol)
	if !req.IsRefund {
		fee = fees.Fee(req.Quantity)
	}
	net, err := req.Quantity.Sub(fee)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "invalid transfer quantity", err)
	}
	if err = fees.Accrue(fee); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "fee does not match the fee reserve", err)
	}

	transfer := &model.Transfer{
		ID:              id,
		TransactionID:   req.TransactionID,
		FromBlockchain:  settings.ChainName,
		ToBlockchain:    req.ToBlockchain,
		FromAccount:     req.FromAccount,
		ToAccount:       req.ToAccount,
		Quantity:        net,
		TransactionTime: u.now,
		ExpiresAt:       u.now.Add(settings.ExpireDuration()),
		IsRefund:        req.IsRefund,
	}
	if err = u.store.InsertTransfer(ctx, transfer); err != nil {
		return nil, err
	}
	if err = u.store.SaveFees(ctx, fees); err != nil {
		return nil, err
	}
	if err = u.store.SaveSettings(ctx, settings); err != nil {
		return nil, err
	}

	u.emit(model.EventTransferRegistered, transfer)
	return transfer, nil
}

// OnTransfer is called by the token ledger for every movement that touches
// the bridge. Movements made by the bridge itself or by system accounts, and
// movements of any other token, are ignored and return a nil transfer. Every
// other deposit must carry a "<chain>,<account>" memo naming a known chain.
func (b *Bridge) OnTransfer(ctx context.Context, deposit Deposit) (*model.Transfer, error) {
	if err := requireCaller(ctx, b.account); err != nil {
		return nil, err
	}
	if b.system[deposit.From] {
		return nil, nil
	}

	var result *model.Transfer
	err := b.run(ctx, "OnTransfer", func(ctx context.Context, u *unit) error {
		settings, err := loadSettings(ctx, u.store)
		if err != nil {
			return err
		}
		if deposit.Contract != settings.Token.Contract {
			return nil
		}

		if deposit.To != b.account {
			return apierror.NewAPIError(apierror.ErrInvalidInput, "bridge not involved in transfer", nil)
		}
		if deposit.Quantity.Symbol != settings.Token.Symbol {
			return apierror.NewAPIError(apierror.ErrInvalidInput, "correct token ledger, but wrong symbol", nil)
		}
		if deposit.Quantity.Amount < settings.MinQuantity.Amount {
			return apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("sent quantity is less than required min quantity %s", settings.MinQuantity), nil)
		}

		chain, account, err := parseMemo(deposit.Memo)
		if err != nil {
			return err
		}
		if _, known := b.chains[chain]; !known {
			return apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("invalid memo: target blockchain %q is not valid", chain), nil)
		}
		if chain == normalizeChain(settings.ChainName) {
			return apierror.NewAPIError(apierror.ErrInvalidInput, "cannot send to the same chain", nil)
		}
		if len(account) == 0 || len(account) > maxAccountLength {
			return apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("invalid memo: target name %q is not valid", account), nil)
		}

		result, err = b.registerTransfer(ctx, u, settings, transferRequest{
			TransactionID: deposit.TransactionID,
			ToBlockchain:  chain,
			FromAccount:   deposit.From,
			ToAccount:     account,
			Quantity:      deposit.Quantity,
		})
		if err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"transfer": result.ID,
			"from":     result.FromAccount,
			"to":       fmt.Sprintf("%s:%s", result.ToBlockchain, result.ToAccount),
			"quantity": result.Quantity.String(),
		}).Info("transfer registered")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// OnLedgerTransaction translates a transaction applied on the Blnk ledger into
// a deposit. Transactions whose destination is not the bridge are ignored.
func (b *Bridge) OnLedgerTransaction(ctx context.Context, txn *tokenledger.Transaction) (*model.Transfer, error) {
	if tokenledger.Account(txn.Destination) != b.account {
		return nil, nil
	}

	settings, err := b.Settings(ctx)
	if err != nil {
		return nil, err
	}

	contract := settings.Token.Contract
	if c, ok := txn.MetaData["contract"].(string); ok && c != "" {
		contract = c
	}
	quantity, err := txn.Asset(settings.Token.Symbol)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "correct token ledger, but wrong symbol", err)
	}

	transactionID := txn.TransactionID
	if transactionID == "" {
		transactionID = txn.Reference
	}
	return b.OnTransfer(ctx, Deposit{
		TransactionID: transactionID,
		Contract:      contract,
		From:          tokenledger.Account(txn.Source),
		To:            tokenledger.Account(txn.Destination),
		Quantity:      quantity,
		Memo:          txn.Memo(),
	})
}

// Transfers lists outbound transfers ordered by id.
func (b *Bridge) Transfers(ctx context.Context, unexpiredOnly bool, limit, offset int) ([]*model.Transfer, error) {
	filter := database.Filter{Limit: limit, Offset: offset}
	if unexpiredOnly {
		now := b.now()
		filter.UnexpiredAt = &now
	}
	var transfers []*model.Transfer
	err := b.view(ctx, func(store database.Store) error {
		var err error
		transfers, err = store.GetTransfers(ctx, filter)
		return err
	})
	return transfers, err
}

func (b *Bridge) Transfer(ctx context.Context, id uint64) (*model.Transfer, error) {
	var transfer *model.Transfer
	err := b.view(ctx, func(store database.Store) error {
		var err error
		transfer, err = store.GetTransfer(ctx, id)
		return err
	})
	return transfer, err
}
