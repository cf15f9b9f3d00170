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
	"sync"

	"github.com/jerry-enebeli/xbridge/model"
)

// Movement is one applied ledger operation.
type Movement struct {
	Reference string
	Kind      string
	From      string
	To        string
	Quantity  model.Asset
	Memo      string
}

// MemoryLedger is an in-process token ledger. Only the configured issuer may
// issue and balances can never go negative.
type MemoryLedger struct {
	mu        sync.Mutex
	issuer    string
	balances  map[string]map[model.Symbol]int64
	applied   map[string]bool
	movements []Movement
}

func NewMemoryLedger(issuer string) *MemoryLedger {
	return &MemoryLedger{
		issuer:   issuer,
		balances: make(map[string]map[model.Symbol]int64),
		applied:  make(map[string]bool),
	}
}

func (l *MemoryLedger) Issue(_ context.Context, reference, to string, quantity model.Asset, memo string) error {
	if err := checkQuantity(quantity); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.applied[reference] {
		return nil
	}
	if to != l.issuer {
		return ErrNotIssuer
	}
	l.credit(to, quantity)
	l.record(Movement{Reference: reference, Kind: "issue", To: to, Quantity: quantity, Memo: memo})
	return nil
}

func (l *MemoryLedger) Transfer(_ context.Context, reference, from, to string, quantity model.Asset, memo string) error {
	if err := checkQuantity(quantity); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.applied[reference] {
		return nil
	}
	if l.balances[from][quantity.Symbol] < quantity.Amount {
		return ErrInsufficientFunds
	}
	l.balances[from][quantity.Symbol] -= quantity.Amount
	l.credit(to, quantity)
	l.record(Movement{Reference: reference, Kind: "transfer", From: from, To: to, Quantity: quantity, Memo: memo})
	return nil
}

func (l *MemoryLedger) record(m Movement) {
	if m.Reference != "" {
		l.applied[m.Reference] = true
	}
	l.movements = append(l.movements, m)
}

// Deposit credits account directly, as funds arriving from outside the bridge.
func (l *MemoryLedger) Deposit(account string, quantity model.Asset) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(account, quantity)
}

func (l *MemoryLedger) Balance(account string, symbol model.Symbol) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account][symbol]
}

func (l *MemoryLedger) Movements() []Movement {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Movement{}, l.movements...)
}

func (l *MemoryLedger) credit(account string, quantity model.Asset) {
	if l.balances[account] == nil {
		l.balances[account] = make(map[model.Symbol]int64)
	}
	l.balances[account][quantity.Symbol] += quantity.Amount
}
