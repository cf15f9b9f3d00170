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
	"errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/jerry-enebeli/xbridge/model"
	"github.com/shopspring/decimal"
)

func isAsset(value interface{}) error {
	raw, _ := value.(string)
	if raw == "" {
		return nil
	}
	if _, err := model.ParseAsset(raw); err != nil {
		return errors.New("must be formatted as '1.0000 TOK'")
	}
	return nil
}

func isPositiveQuantity(value interface{}) error {
	quantity, _ := value.(model.Asset)
	if quantity.Amount <= 0 || !quantity.IsValid() {
		return errors.New("must be a positive amount of a valid symbol")
	}
	return nil
}

func isSymbol(value interface{}) error {
	raw, _ := value.(string)
	if raw == "" {
		return nil
	}
	if _, err := model.ParseSymbol(raw); err != nil {
		return errors.New("must be formatted as '4,TOK'")
	}
	return nil
}

func isRate(value interface{}) error {
	raw, _ := value.(string)
	if raw == "" {
		return nil
	}
	if _, err := decimal.NewFromString(raw); err != nil {
		return errors.New("must be a decimal number")
	}
	return nil
}

func (i *InitBridge) ValidateInitBridge() error {
	return validation.ValidateStruct(i,
		validation.Field(&i.ChainName, validation.Required),
		validation.Field(&i.Symbol, validation.Required, validation.By(isSymbol)),
		validation.Field(&i.Contract, validation.Required),
		validation.Field(&i.ExpireAfter, validation.Required),
		validation.Field(&i.Threshold, validation.Required),
		validation.Field(&i.FeeRate, validation.By(isRate)),
		validation.Field(&i.MinQuantity, validation.Required, validation.By(isAsset)),
	)
}

func (u *UpdateBridge) ValidateUpdateBridge() error {
	return validation.ValidateStruct(u,
		validation.Field(&u.Threshold, validation.Required),
		validation.Field(&u.ExpireAfter, validation.Required),
		validation.Field(&u.FeeRate, validation.By(isRate)),
		validation.Field(&u.MinQuantity, validation.Required, validation.By(isAsset)),
	)
}

func (e *EnableBridge) ValidateEnableBridge() error {
	return validation.ValidateStruct(e,
		validation.Field(&e.Enable, validation.NotNil),
	)
}

func (r *CreateReporter) ValidateCreateReporter() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Account, validation.Required, validation.Length(1, 12)),
	)
}

func (s *SubmitReport) ValidateSubmitReport() error {
	t := &s.Transfer
	return validation.ValidateStruct(t,
		validation.Field(&t.FromBlockchain, validation.Required),
		validation.Field(&t.ToBlockchain, validation.Required),
		validation.Field(&t.ToAccount, validation.Required),
		validation.Field(&t.Quantity, validation.By(isPositiveQuantity)),
		validation.Field(&t.TransactionTime, validation.Required),
		validation.Field(&t.ExpiresAt, validation.Required),
	)
}

func (d *Deposit) ValidateDeposit() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.TransactionID, validation.Required),
		validation.Field(&d.From, validation.Required),
		validation.Field(&d.To, validation.Required),
		validation.Field(&d.Quantity, validation.Required, validation.By(isAsset)),
	)
}
