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
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jerry-enebeli/xbridge/internal/apierror"
	"github.com/jerry-enebeli/xbridge/model"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSymbol = model.Symbol{Code: "TOK", Precision: 4}

func newTestDataSource(t *testing.T) (*Datasource, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &Datasource{Conn: db}, mock
}

func testTransfer() model.Transfer {
	at := time.Unix(1700000000, 0).UTC()
	return model.Transfer{
		ID:              3,
		TransactionID:   "0xabc",
		FromBlockchain:  "wax",
		ToBlockchain:    "eos",
		FromAccount:     "alice",
		ToAccount:       "bob",
		Quantity:        model.NewAsset(10000, testSymbol),
		TransactionTime: at,
		ExpiresAt:       at.Add(time.Hour),
	}
}

func TestAtomic_Commit(t *testing.T) {
	ds, mock := newTestDataSource(t)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(stateLockKey).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO xbridge.settings").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := ds.Atomic(context.Background(), func(store Store) error {
		return store.SaveSettings(context.Background(), &model.Settings{
			ChainName:   "eos",
			Token:       model.TokenInfo{Symbol: testSymbol, Contract: "eosio.token"},
			Threshold:   2,
			ExpireAfter: 3600,
			MinQuantity: model.NewAsset(0, testSymbol),
		})
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAtomic_RollbackOnError(t *testing.T) {
	ds, mock := newTestDataSource(t)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(stateLockKey).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM xbridge.transfers").WithArgs(int64(9)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	boom := errors.New("ledger unavailable")
	err := ds.Atomic(context.Background(), func(store Store) error {
		if err := store.DeleteTransfer(context.Background(), 9); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAtomic_LockFailure(t *testing.T) {
	ds, mock := newTestDataSource(t)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	called := false
	err := ds.Atomic(context.Background(), func(store Store) error {
		called = true
		return nil
	})
	assert.False(t, called)
	assert.True(t, apierror.Is(err, apierror.ErrInternalServer))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSettings(t *testing.T) {
	ds, mock := newTestDataSource(t)

	rows := sqlmock.NewRows([]string{"chain_name", "token_symbol", "token_contract", "enabled", "do_issue",
		"next_transfer_id", "expire_after", "threshold", "min_quantity"}).
		AddRow("eos", "4,TOK", "eosio.token", true, false, int64(5), int64(3600), int64(2), int64(10000))
	mock.ExpectQuery("SELECT chain_name, token_symbol").WillReturnRows(rows)

	s, err := ds.GetSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "eos", s.ChainName)
	assert.Equal(t, testSymbol, s.Token.Symbol)
	assert.Equal(t, uint64(5), s.NextTransferID)
	assert.Equal(t, uint32(2), s.Threshold)
	assert.Equal(t, model.NewAsset(10000, testSymbol), s.MinQuantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSettings_NotInitialized(t *testing.T) {
	ds, mock := newTestDataSource(t)
	mock.ExpectQuery("SELECT chain_name, token_symbol").WillReturnError(sql.ErrNoRows)

	_, err := ds.GetSettings(context.Background())
	assert.True(t, apierror.Is(err, apierror.ErrNotFound))
}

func TestGetFees(t *testing.T) {
	ds, mock := newTestDataSource(t)

	last := time.Unix(1700000000, 0).UTC()
	rows := sqlmock.NewRows([]string{"symbol", "total", "reserve", "last_distribution", "rate"}).
		AddRow("4,TOK", int64(500), int64(120), last, "0.002")
	mock.ExpectQuery("SELECT symbol, total, reserve").WillReturnRows(rows)

	f, err := ds.GetFees(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.NewAsset(500, testSymbol), f.Total)
	assert.Equal(t, model.NewAsset(120, testSymbol), f.Reserve)
	assert.True(t, decimal.RequireFromString("0.002").Equal(f.Rate))
	assert.True(t, last.Equal(f.LastDistribution))
}

func TestInsertTransfer(t *testing.T) {
	ds, mock := newTestDataSource(t)
	tr := testTransfer()

	mock.ExpectExec("INSERT INTO xbridge.transfers").
		WithArgs(int64(3), "0xabc", "wax", "eos", "alice", "bob", int64(10000), "4,TOK",
			tr.TransactionTime, tr.ExpiresAt, false).
		WillReturnResult(sqlmock.NewResult(1, 1))

	assert.NoError(t, ds.InsertTransfer(context.Background(), &tr))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertTransfer_Duplicate(t *testing.T) {
	ds, mock := newTestDataSource(t)
	tr := testTransfer()

	mock.ExpectExec("INSERT INTO xbridge.transfers").WillReturnError(&pq.Error{Code: "23505"})

	err := ds.InsertTransfer(context.Background(), &tr)
	assert.True(t, apierror.Is(err, apierror.ErrConflict))
}

func TestExpiredTransfers(t *testing.T) {
	ds, mock := newTestDataSource(t)
	tr := testTransfer()
	now := tr.ExpiresAt.Add(time.Minute)

	rows := sqlmock.NewRows([]string{"id", "transaction_id", "from_blockchain", "to_blockchain", "from_account",
		"to_account", "quantity", "symbol", "transaction_time", "expires_at", "is_refund"}).
		AddRow(int64(3), "0xabc", "wax", "eos", "alice", "bob", int64(10000), "4,TOK", tr.TransactionTime, tr.ExpiresAt, false)
	mock.ExpectQuery("WHERE expires_at <= \\$1").WithArgs(now, 2).WillReturnRows(rows)

	transfers, err := ds.ExpiredTransfers(context.Background(), now, 2)
	require.NoError(t, err)
	require.Len(t, transfers, 1)
	assert.True(t, tr.Equal(transfers[0]))
}

func TestInsertReporter_Duplicate(t *testing.T) {
	ds, mock := newTestDataSource(t)

	mock.ExpectExec("INSERT INTO xbridge.reporters").WillReturnError(&pq.Error{Code: "23505"})

	err := ds.InsertReporter(context.Background(), &model.Reporter{Account: "alice", KeyHash: "h"})
	assert.True(t, apierror.Is(err, apierror.ErrConflict))
}

func TestDeleteReporter_NotFound(t *testing.T) {
	ds, mock := newTestDataSource(t)

	mock.ExpectExec("DELETE FROM xbridge.reporters").WithArgs("ghost").WillReturnResult(sqlmock.NewResult(0, 0))

	err := ds.DeleteReporter(context.Background(), "ghost")
	assert.True(t, apierror.Is(err, apierror.ErrNotFound))
}

func TestInsertReport(t *testing.T) {
	ds, mock := newTestDataSource(t)
	r := model.NewReport(testTransfer(), "alice", 2)

	mock.ExpectQuery("INSERT INTO xbridge.reports").
		WithArgs("wax", int64(3), sqlmock.AnyArg(), []byte(`["alice"]`), false, []byte(`[]`), false, false, r.Transfer.ExpiresAt).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))

	require.NoError(t, ds.InsertReport(context.Background(), r))
	assert.Equal(t, uint64(7), r.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReportsByKey(t *testing.T) {
	ds, mock := newTestDataSource(t)
	tr := testTransfer()
	transferJSON, err := json.Marshal(tr)
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"id", "transfer", "confirmed_by", "confirmed", "failed_by", "failed", "executed"}).
		AddRow(int64(7), transferJSON, []byte(`["alice","bob"]`), true, []byte(`[]`), false, false).
		AddRow(int64(8), transferJSON, []byte(`["carol"]`), false, []byte(`[]`), false, false)
	mock.ExpectQuery("WHERE transfer_chain = \\$1 AND transfer_id = \\$2").WithArgs("wax", int64(3)).WillReturnRows(rows)

	reports, err := ds.GetReportsByKey(context.Background(), tr.Key())
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, []string{"alice", "bob"}, reports[0].ConfirmedBy)
	assert.True(t, reports[0].Confirmed)
	assert.True(t, tr.Equal(&reports[1].Transfer))
}

func TestUpdateReport(t *testing.T) {
	ds, mock := newTestDataSource(t)
	r := model.NewReport(testTransfer(), "alice", 1)
	r.ID = 7
	r.Executed = true

	mock.ExpectExec("UPDATE xbridge.reports").
		WithArgs(int64(7), []byte(`["alice"]`), true, []byte(`[]`), false, true).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, ds.UpdateReport(context.Background(), r))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClearArchivedReports(t *testing.T) {
	ds, mock := newTestDataSource(t)

	mock.ExpectExec("DELETE FROM xbridge.reports_expired").WithArgs(5).WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := ds.ClearArchivedReports(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestInsertLedgerEntry(t *testing.T) {
	ds, mock := newTestDataSource(t)
	at := time.Unix(1700000000, 0).UTC()
	e := &model.LedgerEntry{
		Reference: "xbridge:report:7:release",
		Group:     "report:7",
		Kind:      model.LedgerTransfer,
		From:      "bridge",
		To:        "bob",
		Quantity:  model.NewAsset(9980, testSymbol),
		Memo:      "wax #3",
		CreatedAt: at,
	}

	mock.ExpectQuery("INSERT INTO xbridge.ledger_outbox").
		WithArgs(e.Reference, e.Group, e.Kind, "bridge", "bob", int64(9980), "4,TOK", "wax #3", at).
		WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(int64(11)))

	require.NoError(t, ds.InsertLedgerEntry(context.Background(), e))
	assert.Equal(t, uint64(11), e.Seq)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertLedgerEntry_DuplicateReference(t *testing.T) {
	ds, mock := newTestDataSource(t)

	mock.ExpectQuery("INSERT INTO xbridge.ledger_outbox").WillReturnError(&pq.Error{Code: "23505"})

	err := ds.InsertLedgerEntry(context.Background(), &model.LedgerEntry{Reference: "ref", Quantity: model.NewAsset(1, testSymbol)})
	assert.True(t, apierror.Is(err, apierror.ErrConflict))
}

func TestPendingLedgerEntries(t *testing.T) {
	ds, mock := newTestDataSource(t)
	at := time.Unix(1700000000, 0).UTC()

	rows := sqlmock.NewRows([]string{"seq", "reference", "grp", "kind", "from_account", "to_account", "quantity", "symbol", "memo", "attempts", "last_error", "created_at"}).
		AddRow(int64(4), "ref-a", "fees:1", "transfer", "bridge", "alice", int64(52), "4,TOK", "fees", 1, "overdrawn balance", at)
	mock.ExpectQuery("FROM xbridge.ledger_outbox").WithArgs(10).WillReturnRows(rows)

	entries, err := ds.PendingLedgerEntries(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, uint64(4), entries[0].Seq)
	assert.Equal(t, model.NewAsset(52, testSymbol), entries[0].Quantity)
	assert.Equal(t, "overdrawn balance", entries[0].LastError)
}

func TestDeleteLedgerEntry_NotFound(t *testing.T) {
	ds, mock := newTestDataSource(t)

	mock.ExpectExec("DELETE FROM xbridge.ledger_outbox").WithArgs(int64(4)).WillReturnResult(sqlmock.NewResult(0, 0))

	err := ds.DeleteLedgerEntry(context.Background(), 4)
	assert.True(t, apierror.Is(err, apierror.ErrNotFound))
}
