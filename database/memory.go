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
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/jerry-enebeli/xbridge/internal/apierror"
	"github.com/jerry-enebeli/xbridge/model"
)

const btreeDegree = 16

type expiryKey struct {
	at time.Time
	id uint64
}

func expiryLess(a, b expiryKey) bool {
	if !a.at.Equal(b.at) {
		return a.at.Before(b.at)
	}
	return a.id < b.id
}

type reportKey struct {
	key model.TransferKey
	id  uint64
}

func reportKeyLess(a, b reportKey) bool {
	if a.key != b.key {
		return a.key.Less(b.key)
	}
	return a.id < b.id
}

type archivedEntry struct {
	seq   uint64
	entry *model.ExpiredReport
}

// memState holds every table as a B-tree plus its secondary indexes. Items
// are never mutated after insertion, so cloned trees can share them.
type memState struct {
	settings *model.Settings
	fees     *model.FeeState

	transfers      *btree.BTreeG[*model.Transfer]
	transferExpiry *btree.BTreeG[expiryKey]

	reporters *btree.BTreeG[*model.Reporter]

	reports      *btree.BTreeG[*model.Report]
	reportKeys   *btree.BTreeG[reportKey]
	reportExpiry *btree.BTreeG[expiryKey]

	archive *btree.BTreeG[archivedEntry]

	ledger     *btree.BTreeG[*model.LedgerEntry]
	ledgerRefs *btree.BTreeG[string]

	lastReportID   uint64
	lastArchiveSeq uint64
	lastLedgerSeq  uint64
}

func newMemState() *memState {
	return &memState{
		transfers:      btree.NewG(btreeDegree, func(a, b *model.Transfer) bool { return a.ID < b.ID }),
		transferExpiry: btree.NewG(btreeDegree, expiryLess),
		reporters:      btree.NewG(btreeDegree, func(a, b *model.Reporter) bool { return a.Account < b.Account }),
		reports:        btree.NewG(btreeDegree, func(a, b *model.Report) bool { return a.ID < b.ID }),
		reportKeys:     btree.NewG(btreeDegree, reportKeyLess),
		reportExpiry:   btree.NewG(btreeDegree, expiryLess),
		archive:        btree.NewG(btreeDegree, func(a, b archivedEntry) bool { return a.seq < b.seq }),
		ledger:         btree.NewG(btreeDegree, func(a, b *model.LedgerEntry) bool { return a.Seq < b.Seq }),
		ledgerRefs:     btree.NewG(btreeDegree, func(a, b string) bool { return a < b }),
	}
}

// clone is O(1); the trees copy nodes lazily on write.
func (s *memState) clone() *memState {
	c := *s
	c.transfers = s.transfers.Clone()
	c.transferExpiry = s.transferExpiry.Clone()
	c.reporters = s.reporters.Clone()
	c.reports = s.reports.Clone()
	c.reportKeys = s.reportKeys.Clone()
	c.reportExpiry = s.reportExpiry.Clone()
	c.archive = s.archive.Clone()
	c.ledger = s.ledger.Clone()
	c.ledgerRefs = s.ledgerRefs.Clone()
	return &c
}

// MemoryDataSource keeps the bridge state in process. Atomic works on a
// snapshot that replaces the live state only when fn succeeds.
type MemoryDataSource struct {
	mu    sync.RWMutex
	state *memState
}

func NewMemoryDataSource() *MemoryDataSource {
	return &MemoryDataSource{state: newMemState()}
}

func (m *MemoryDataSource) Atomic(ctx context.Context, fn func(store Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := m.state.clone()
	if err := fn(&memStore{st: snapshot}); err != nil {
		return err
	}
	m.state = snapshot
	return nil
}

func (m *MemoryDataSource) View(ctx context.Context, fn func(store Store) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&memStore{st: m.state, readOnly: true})
}

func (m *MemoryDataSource) Close() error {
	return nil
}

type memStore struct {
	st       *memState
	readOnly bool
}

func (s *memStore) writable() error {
	if s.readOnly {
		return apierror.NewAPIError(apierror.ErrInternalServer, "write attempted on a read-only view", nil)
	}
	return nil
}

func copyTransfer(t *model.Transfer) *model.Transfer {
	c := *t
	return &c
}

func copyReporter(r *model.Reporter) *model.Reporter {
	c := *r
	return &c
}

func (s *memStore) GetSettings(_ context.Context) (*model.Settings, error) {
	if s.st.settings == nil {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "the bridge has not been initialized", nil)
	}
	c := *s.st.settings
	return &c, nil
}

func (s *memStore) SaveSettings(_ context.Context, settings *model.Settings) error {
	if err := s.writable(); err != nil {
		return err
	}
	c := *settings
	s.st.settings = &c
	return nil
}

func (s *memStore) GetFees(_ context.Context) (*model.FeeState, error) {
	if s.st.fees == nil {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "the bridge has not been initialized", nil)
	}
	c := *s.st.fees
	return &c, nil
}

func (s *memStore) SaveFees(_ context.Context, fees *model.FeeState) error {
	if err := s.writable(); err != nil {
		return err
	}
	c := *fees
	s.st.fees = &c
	return nil
}

func (s *memStore) InsertTransfer(_ context.Context, t *model.Transfer) error {
	if err := s.writable(); err != nil {
		return err
	}
	if s.st.transfers.Has(t) {
		return apierror.NewAPIError(apierror.ErrConflict, "Transfer with this id already exists", nil)
	}
	s.st.transfers.ReplaceOrInsert(copyTransfer(t))
	s.st.transferExpiry.ReplaceOrInsert(expiryKey{at: t.ExpiresAt, id: t.ID})
	return nil
}

func (s *memStore) GetTransfer(_ context.Context, id uint64) (*model.Transfer, error) {
	t, ok := s.st.transfers.Get(&model.Transfer{ID: id})
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "Transfer not found", nil)
	}
	return copyTransfer(t), nil
}

func (s *memStore) GetTransfers(_ context.Context, filter Filter) ([]*model.Transfer, error) {
	transfers := []*model.Transfer{}
	skipped := 0
	s.st.transfers.Ascend(func(t *model.Transfer) bool {
		if filter.UnexpiredAt != nil && t.Expired(*filter.UnexpiredAt) {
			return true
		}
		if skipped < filter.Offset {
			skipped++
			return true
		}
		transfers = append(transfers, copyTransfer(t))
		return len(transfers) < filter.limit()
	})
	return transfers, nil
}

func (s *memStore) ExpiredTransfers(_ context.Context, now time.Time, limit int) ([]*model.Transfer, error) {
	transfers := []*model.Transfer{}
	s.st.transferExpiry.Ascend(func(k expiryKey) bool {
		if k.at.After(now) || len(transfers) >= limit {
			return false
		}
		if t, ok := s.st.transfers.Get(&model.Transfer{ID: k.id}); ok {
			transfers = append(transfers, copyTransfer(t))
		}
		return true
	})
	return transfers, nil
}

func (s *memStore) DeleteTransfer(_ context.Context, id uint64) error {
	if err := s.writable(); err != nil {
		return err
	}
	t, ok := s.st.transfers.Delete(&model.Transfer{ID: id})
	if !ok {
		return apierror.NewAPIError(apierror.ErrNotFound, "Transfer not found", nil)
	}
	s.st.transferExpiry.Delete(expiryKey{at: t.ExpiresAt, id: t.ID})
	return nil
}

func (s *memStore) InsertReporter(_ context.Context, r *model.Reporter) error {
	if err := s.writable(); err != nil {
		return err
	}
	if s.st.reporters.Has(r) {
		return apierror.NewAPIError(apierror.ErrConflict, "Reporter already exists", nil)
	}
	s.st.reporters.ReplaceOrInsert(copyReporter(r))
	return nil
}

func (s *memStore) GetReporter(_ context.Context, account string) (*model.Reporter, error) {
	r, ok := s.st.reporters.Get(&model.Reporter{Account: account})
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "Reporter not found", nil)
	}
	return copyReporter(r), nil
}

func (s *memStore) GetReporterByKeyHash(_ context.Context, keyHash string) (*model.Reporter, error) {
	var found *model.Reporter
	s.st.reporters.Ascend(func(r *model.Reporter) bool {
		if r.KeyHash == keyHash {
			found = copyReporter(r)
			return false
		}
		return true
	})
	if found == nil {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "Reporter not found", nil)
	}
	return found, nil
}

func (s *memStore) GetReporters(_ context.Context) ([]*model.Reporter, error) {
	reporters := make([]*model.Reporter, 0, s.st.reporters.Len())
	s.st.reporters.Ascend(func(r *model.Reporter) bool {
		reporters = append(reporters, copyReporter(r))
		return true
	})
	return reporters, nil
}

func (s *memStore) UpdateReporter(_ context.Context, r *model.Reporter) error {
	if err := s.writable(); err != nil {
		return err
	}
	if !s.st.reporters.Has(r) {
		return apierror.NewAPIError(apierror.ErrNotFound, "Reporter not found", nil)
	}
	s.st.reporters.ReplaceOrInsert(copyReporter(r))
	return nil
}

func (s *memStore) DeleteReporter(_ context.Context, account string) error {
	if err := s.writable(); err != nil {
		return err
	}
	if _, ok := s.st.reporters.Delete(&model.Reporter{Account: account}); !ok {
		return apierror.NewAPIError(apierror.ErrNotFound, "Reporter not found", nil)
	}
	return nil
}

func (s *memStore) InsertReport(_ context.Context, r *model.Report) error {
	if err := s.writable(); err != nil {
		return err
	}
	s.st.lastReportID++
	r.ID = s.st.lastReportID
	s.st.reports.ReplaceOrInsert(r.Clone())
	s.st.reportKeys.ReplaceOrInsert(reportKey{key: r.Key(), id: r.ID})
	s.st.reportExpiry.ReplaceOrInsert(expiryKey{at: r.Transfer.ExpiresAt, id: r.ID})
	return nil
}

func (s *memStore) GetReport(_ context.Context, id uint64) (*model.Report, error) {
	r, ok := s.st.reports.Get(&model.Report{ID: id})
	if !ok {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "Report not found", nil)
	}
	return r.Clone(), nil
}

func (s *memStore) GetReportsByKey(_ context.Context, key model.TransferKey) ([]*model.Report, error) {
	reports := []*model.Report{}
	s.st.reportKeys.AscendGreaterOrEqual(reportKey{key: key}, func(k reportKey) bool {
		if k.key != key {
			return false
		}
		if r, ok := s.st.reports.Get(&model.Report{ID: k.id}); ok {
			reports = append(reports, r.Clone())
		}
		return true
	})
	return reports, nil
}

func (s *memStore) GetReports(_ context.Context, filter Filter) ([]*model.Report, error) {
	reports := []*model.Report{}
	skipped := 0
	s.st.reports.Ascend(func(r *model.Report) bool {
		if filter.UnexpiredAt != nil && r.Transfer.Expired(*filter.UnexpiredAt) {
			return true
		}
		if skipped < filter.Offset {
			skipped++
			return true
		}
		reports = append(reports, r.Clone())
		return len(reports) < filter.limit()
	})
	return reports, nil
}

func (s *memStore) GetUnconfirmedReports(_ context.Context) ([]*model.Report, error) {
	reports := []*model.Report{}
	s.st.reports.Ascend(func(r *model.Report) bool {
		if !r.Confirmed {
			reports = append(reports, r.Clone())
		}
		return true
	})
	return reports, nil
}

func (s *memStore) ExpiredReports(_ context.Context, now time.Time, limit int) ([]*model.Report, error) {
	reports := []*model.Report{}
	s.st.reportExpiry.Ascend(func(k expiryKey) bool {
		if k.at.After(now) || len(reports) >= limit {
			return false
		}
		if r, ok := s.st.reports.Get(&model.Report{ID: k.id}); ok {
			reports = append(reports, r.Clone())
		}
		return true
	})
	return reports, nil
}

func (s *memStore) UpdateReport(_ context.Context, r *model.Report) error {
	if err := s.writable(); err != nil {
		return err
	}
	stored, ok := s.st.reports.Get(r)
	if !ok {
		return apierror.NewAPIError(apierror.ErrNotFound, "Report not found", nil)
	}
	updated := stored.Clone()
	updated.ConfirmedBy = append([]string{}, r.ConfirmedBy...)
	updated.Confirmed = r.Confirmed
	updated.FailedBy = append([]string{}, r.FailedBy...)
	updated.Failed = r.Failed
	updated.Executed = r.Executed
	s.st.reports.ReplaceOrInsert(updated)
	return nil
}

func (s *memStore) DeleteReport(_ context.Context, id uint64) error {
	if err := s.writable(); err != nil {
		return err
	}
	r, ok := s.st.reports.Delete(&model.Report{ID: id})
	if !ok {
		return apierror.NewAPIError(apierror.ErrNotFound, "Report not found", nil)
	}
	s.st.reportKeys.Delete(reportKey{key: r.Key(), id: r.ID})
	s.st.reportExpiry.Delete(expiryKey{at: r.Transfer.ExpiresAt, id: r.ID})
	return nil
}

func (s *memStore) ArchiveReport(_ context.Context, e *model.ExpiredReport) error {
	if err := s.writable(); err != nil {
		return err
	}
	s.st.lastArchiveSeq++
	c := *e
	c.Report = *e.Report.Clone()
	s.st.archive.ReplaceOrInsert(archivedEntry{seq: s.st.lastArchiveSeq, entry: &c})
	return nil
}

func (s *memStore) GetArchivedReports(_ context.Context, limit, offset int) ([]*model.ExpiredReport, error) {
	if limit <= 0 {
		limit = 100
	}
	archived := []*model.ExpiredReport{}
	skipped := 0
	s.st.archive.Ascend(func(a archivedEntry) bool {
		if skipped < offset {
			skipped++
			return true
		}
		c := *a.entry
		c.Report = *a.entry.Report.Clone()
		archived = append(archived, &c)
		return len(archived) < limit
	})
	return archived, nil
}

func (s *memStore) ClearArchivedReports(_ context.Context, count int) (int, error) {
	if err := s.writable(); err != nil {
		return 0, err
	}
	var seqs []uint64
	s.st.archive.Ascend(func(a archivedEntry) bool {
		if len(seqs) >= count {
			return false
		}
		seqs = append(seqs, a.seq)
		return true
	})
	for _, seq := range seqs {
		s.st.archive.Delete(archivedEntry{seq: seq})
	}
	return len(seqs), nil
}

func (s *memStore) InsertLedgerEntry(_ context.Context, e *model.LedgerEntry) error {
	if err := s.writable(); err != nil {
		return err
	}
	if s.st.ledgerRefs.Has(e.Reference) {
		return apierror.NewAPIError(apierror.ErrConflict, "Ledger entry with this reference already exists", nil)
	}
	s.st.lastLedgerSeq++
	e.Seq = s.st.lastLedgerSeq
	c := *e
	s.st.ledger.ReplaceOrInsert(&c)
	s.st.ledgerRefs.ReplaceOrInsert(e.Reference)
	return nil
}

func (s *memStore) PendingLedgerEntries(_ context.Context, limit int) ([]*model.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	entries := []*model.LedgerEntry{}
	s.st.ledger.Ascend(func(e *model.LedgerEntry) bool {
		c := *e
		entries = append(entries, &c)
		return len(entries) < limit
	})
	return entries, nil
}

func (s *memStore) UpdateLedgerEntry(_ context.Context, e *model.LedgerEntry) error {
	if err := s.writable(); err != nil {
		return err
	}
	if !s.st.ledger.Has(&model.LedgerEntry{Seq: e.Seq}) {
		return apierror.NewAPIError(apierror.ErrNotFound, "Ledger entry not found", nil)
	}
	c := *e
	s.st.ledger.ReplaceOrInsert(&c)
	return nil
}

func (s *memStore) DeleteLedgerEntry(_ context.Context, seq uint64) error {
	if err := s.writable(); err != nil {
		return err
	}
	e, ok := s.st.ledger.Delete(&model.LedgerEntry{Seq: seq})
	if !ok {
		return apierror.NewAPIError(apierror.ErrNotFound, "Ledger entry not found", nil)
	}
	s.st.ledgerRefs.Delete(e.Reference)
	return nil
}
