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
	"time"

	"github.com/jerry-enebeli/xbridge/internal/apierror"
	"github.com/jerry-enebeli/xbridge/model"
	"github.com/lib/pq"
)

const transferColumns = `id, transaction_id, from_blockchain, to_blockchain, from_account, to_account,
		       quantity, symbol, transaction_time, expires_at, is_refund`

func scanTransfer(row scanner) (*model.Transfer, error) {
	t := model.Transfer{}
	var amount int64
	var symbol string
	err := row.Scan(&t.ID, &t.TransactionID, &t.FromBlockchain, &t.ToBlockchain, &t.FromAccount, &t.ToAccount,
		&amount, &symbol, &t.TransactionTime, &t.ExpiresAt, &t.IsRefund)
	if err != nil {
		return nil, err
	}
	sym, err := model.ParseSymbol(symbol)
	if err != nil {
		return nil, err
	}
	t.Quantity = model.NewAsset(amount, sym)
	return &t, nil
}

func (d *Datasource) InsertTransfer(ctx context.Context, t *model.Transfer) error {
	_, err := d.db().ExecContext(ctx, `
		INSERT INTO xbridge.transfers (`+transferColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, int64(t.ID), t.TransactionID, t.FromBlockchain, t.ToBlockchain, t.FromAccount, t.ToAccount,
		t.Quantity.Amount, t.Quantity.Symbol.String(), t.TransactionTime, t.ExpiresAt, t.IsRefund)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return apierror.NewAPIError(apierror.ErrConflict, "Transfer with this id already exists", err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record transfer", err)
	}
	return nil
}

func (d *Datasource) GetTransfer(ctx context.Context, id uint64) (*model.Transfer, error) {
	row := d.db().QueryRowContext(ctx, `
		SELECT `+transferColumns+`
		FROM xbridge.transfers
		WHERE id = $1
	`, int64(id))
	t, err := scanTransfer(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Transfer not found", nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve transfer", err)
	}
	return t, nil
}

func (d *Datasource) GetTransfers(ctx context.Context, filter Filter) ([]*model.Transfer, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if filter.UnexpiredAt != nil {
		rows, err = d.db().QueryContext(ctx, `
			SELECT `+transferColumns+`
			FROM xbridge.transfers
			WHERE expires_at > $1
			ORDER BY id
			LIMIT $2 OFFSET $3
		`, *filter.UnexpiredAt, filter.limit(), filter.Offset)
	} else {
		rows, err = d.db().QueryContext(ctx, `
			SELECT `+transferColumns+`
			FROM xbridge.transfers
			ORDER BY id
			LIMIT $1 OFFSET $2
		`, filter.limit(), filter.Offset)
	}
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve transfers", err)
	}
	return collectTransfers(rows)
}

func (d *Datasource) ExpiredTransfers(ctx context.Context, now time.Time, limit int) ([]*model.Transfer, error) {
	rows, err := d.db().QueryContext(ctx, `
		SELECT `+transferColumns+`
		FROM xbridge.transfers
		WHERE expires_at <= $1
		ORDER BY expires_at, id
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve expired transfers", err)
	}
	return collectTransfers(rows)
}

func collectTransfers(rows *sql.Rows) ([]*model.Transfer, error) {
	defer rows.Close()

	transfers := []*model.Transfer{}
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan transfer data", err)
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over transfers", err)
	}
	return transfers, nil
}

func (d *Datasource) DeleteTransfer(ctx context.Context, id uint64) error {
	res, err := d.db().ExecContext(ctx, `DELETE FROM xbridge.transfers WHERE id = $1`, int64(id))
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to delete transfer", err)
	}
	return expectAffected(res, "Transfer not found")
}

func expectAffected(res sql.Result, notFound string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read affected rows", err)
	}
	if n == 0 {
		return apierror.NewAPIError(apierror.ErrNotFound, notFound, nil)
	}
	return nil
}
