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

// Package tokenledger moves bridged tokens on the ledger the bridge holds
// custody on.
package tokenledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jerry-enebeli/xbridge/model"
)

var (
	ErrInsufficientFunds = errors.New("overdrawn balance")
	ErrNotIssuer         = errors.New("missing required authority to issue")
	ErrInvalidQuantity   = errors.New("must transfer positive quantity")
)

// TokenLedger is the token contract the bridge releases funds through. Both
// calls either fully apply or fail. A reference is applied at most once: a
// call repeating an applied reference succeeds without moving funds again.
type TokenLedger interface {
	// Issue creates quantity new units and credits them to "to".
	Issue(ctx context.Context, reference, to string, quantity model.Asset, memo string) error
	// Transfer moves existing units between two accounts.
	Transfer(ctx context.Context, reference, from, to string, quantity model.Asset, memo string) error
}

// RejectedError is returned when the ledger accepted the request but refused
// to apply it.
type RejectedError struct {
	Reference string
	Status    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("ledger transaction %s was %s", e.Reference, e.Status)
}

func checkQuantity(quantity model.Asset) error {
	if !quantity.IsValid() {
		return fmt.Errorf("invalid symbol %s", quantity.Symbol)
	}
	if quantity.Amount <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}
