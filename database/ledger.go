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

	"github.com/jerry-enebeli/xbridge/internal/apierror"
	"github.com/jerry-enebeli/xbridge/model"
	"github.com/lib/pq"
)

const ledgerEntryColumns = `seq, reference, grp, kind, from_account, to_account, quantity, symbol, memo, attempts, last_error, created_at`

func scanLedgerEntry(row scanner) (*model.LedgerEntry, error) {
	e := model.LedgerEntry{}
	var amount int64
	var symbol string
	err := row.Scan(&e.Seq, &e.Reference, &e.Group, &e.Kind, &e.From, &e.To, &amount, &symbol,
		&e.Memo, &e.Attempts, &e.LastError, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	sym, err := model.ParseSymbol(symbol)
	if err != nil {
		return nil, err
	}
	e.Quantity = model.NewAsset(amount, sym)
	return &e, nil
}

func (d *Datasource) InsertLedgerEntry(ctx context.Context, e *model.LedgerEntry) error {
	var seq int64
	err := d.db().QueryRowContext(ctx, `
		INSERT INTO xbridge.ledger_outbox (reference, grp, kind, from_account, to_account, quantity, symbol, memo, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING seq
	`, e.Reference, e.Group, e.Kind, e.From, e.To, e.Quantity.Amount, e.Quantity.Symbol.String(), e.Memo, e.CreatedAt).Scan(&seq)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return apierror.NewAPIError(apierror.ErrConflict, "Ledger entry with this reference already exists", err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to stage ledger entry", err)
	}
	e.Seq = uint64(seq)
	return nil
}

func (d *Datasource) PendingLedgerEntries(ctx context.Context, limit int) ([]*model.LedgerEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.db().QueryContext(ctx, `
		SELECT `+ledgerEntryColumns+`
		FROM xbridge.ledger_outbox
		ORDER BY seq
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve ledger entries", err)
	}
	defer rows.Close()

	entries := []*model.LedgerEntry{}
	for rows.Next() {
		e, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan ledger entry", err)
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over ledger entries", err)
	}
	return entries, nil
}

func (d *Datasource) UpdateLedgerEntry(ctx context.Context, e *model.LedgerEntry) error {
	res, err := d.db().ExecContext(ctx, `
		UPDATE xbridge.ledger_outbox
		SET attempts = $2, last_error = $3
		WHERE seq = $1
	`, int64(e.Seq), e.Attempts, e.LastError)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update ledger entry", err)
	}
	return expectAffected(res, "Ledger entry not found")
}

func (d *Datasource) DeleteLedgerEntry(ctx context.Context, seq uint64) error {
	res, err := d.db().ExecContext(ctx, `DELETE FROM xbridge.ledger_outbox WHERE seq = $1`, int64(seq))
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to delete ledger entry", err)
	}
	return expectAffected(res, "Ledger entry not found")
}
