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

import "time"

const (
	LedgerIssue    = "issue"
	LedgerTransfer = "transfer"
)

// LedgerEntry is a token movement decided by a committed call and applied to
// the token ledger after the commit. The ledger applies a reference at most
// once, so an entry can be retried until it goes through. Entries of one
// group are applied in order.
type LedgerEntry struct {
	Seq       uint64    `json:"seq"`
	Reference string    `json:"reference"`
	Group     string    `json:"group"`
	Kind      string    `json:"kind"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to"`
	Quantity  Asset     `json:"quantity"`
	Memo      string    `json:"memo"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"last_error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Settlement summarises one pass over the pending ledger entries.
type Settlement struct {
	Applied int            `json:"applied"`
	Failed  int            `json:"failed"`
	Pending []*LedgerEntry `json:"pending"`
}
