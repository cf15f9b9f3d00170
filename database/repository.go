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

package database

import (
	"context"
	"time"

	"github.com/jerry-enebeli/xbridge/model"
)

// IDataSource is the bridge state store. Every state change happens inside
// Atomic: either all writes made by fn are kept or none are.
type IDataSource interface {
	Atomic(ctx context.Context, fn func(store Store) error) error // Runs fn with exclusive, all-or-nothing access
	View(ctx context.Context, fn func(store Store) error) error   // Runs fn against a consistent read-only view
	Close() error
}

// Store groups the tables of the bridge.
type Store interface {
	settings // Singleton settings slot
	fees     // Singleton fee state slot
	transfer // Outbound transfers
	reporter // Reporter registry
	report   // Reports on inbound claims
	archive  // Reports kept for manual review
	outbox   // Token movements waiting to be applied to the ledger
}

type settings interface {
	GetSettings(ctx context.Context) (*model.Settings, error) // NOT_FOUND until the bridge is initialised
	SaveSettings(ctx context.Context, s *model.Settings) error
}

type fees interface {
	GetFees(ctx context.Context) (*model.FeeState, error)
	SaveFees(ctx context.Context, f *model.FeeState) error
}

type transfer interface {
	InsertTransfer(ctx context.Context, t *model.Transfer) error
	GetTransfer(ctx context.Context, id uint64) (*model.Transfer, error)
	GetTransfers(ctx context.Context, filter Filter) ([]*model.Transfer, error)                // Ordered by id
	ExpiredTransfers(ctx context.Context, now time.Time, limit int) ([]*model.Transfer, error) // Earliest expiry first
	DeleteTransfer(ctx context.Context, id uint64) error
}

type reporter interface {
	InsertReporter(ctx context.Context, r *model.Reporter) error // CONFLICT if the account is registered
	GetReporter(ctx context.Context, account string) (*model.Reporter, error)
	GetReporterByKeyHash(ctx context.Context, keyHash string) (*model.Reporter, error)
	GetReporters(ctx context.Context) ([]*model.Reporter, error) // Ordered by account
	UpdateReporter(ctx context.Context, r *model.Reporter) error
	DeleteReporter(ctx context.Context, account string) error
}

type report interface {
	InsertReport(ctx context.Context, r *model.Report) error // Assigns r.ID
	GetReport(ctx context.Context, id uint64) (*model.Report, error)
	GetReportsByKey(ctx context.Context, key model.TransferKey) ([]*model.Report, error) // Ordered by id
	GetReports(ctx context.Context, filter Filter) ([]*model.Report, error)              // Ordered by id
	GetUnconfirmedReports(ctx context.Context) ([]*model.Report, error)
	ExpiredReports(ctx context.Context, now time.Time, limit int) ([]*model.Report, error) // Earliest expiry first
	UpdateReport(ctx context.Context, r *model.Report) error
	DeleteReport(ctx context.Context, id uint64) error
}

type archive interface {
	ArchiveReport(ctx context.Context, e *model.ExpiredReport) error
	GetArchivedReports(ctx context.Context, limit, offset int) ([]*model.ExpiredReport, error) // Oldest first
	ClearArchivedReports(ctx context.Context, count int) (int, error)                          // Removes up to count, oldest first
}

type outbox interface {
	InsertLedgerEntry(ctx context.Context, e *model.LedgerEntry) error                 // Assigns e.Seq; CONFLICT on a reused reference
	PendingLedgerEntries(ctx context.Context, limit int) ([]*model.LedgerEntry, error) // Oldest first
	UpdateLedgerEntry(ctx context.Context, e *model.LedgerEntry) error                 // Records a failed attempt
	DeleteLedgerEntry(ctx context.Context, seq uint64) error                           // Drops an applied entry
}

// Filter narrows list queries. A non-nil UnexpiredAt keeps only entries that
// expire after that instant.
type Filter struct {
	UnexpiredAt *time.Time
	Limit       int
	Offset      int
}

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return 100
	}
	return f.Limit
}
