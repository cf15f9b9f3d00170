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

	"github.com/jerry-enebeli/xbridge/internal/apierror"
	"github.com/jerry-enebeli/xbridge/model"
	"github.com/lib/pq"
)

func scanReporter(row scanner) (*model.Reporter, error) {
	r := model.Reporter{}
	if err := row.Scan(&r.Account, &r.Points, &r.KeyHash, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (d *Datasource) InsertReporter(ctx context.Context, r *model.Reporter) error {
	_, err := d.db().ExecContext(ctx, `
		INSERT INTO xbridge.reporters (account, points, key_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`, r.Account, int64(r.Points), r.KeyHash, r.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return apierror.NewAPIError(apierror.ErrConflict, "Reporter already exists", err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to add reporter", err)
	}
	return nil
}

func (d *Datasource) GetReporter(ctx context.Context, account string) (*model.Reporter, error) {
	row := d.db().QueryRowContext(ctx, `
		SELECT account, points, key_hash, created_at
		FROM xbridge.reporters
		WHERE account = $1
	`, account)
	r, err := scanReporter(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Reporter not found", nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve reporter", err)
	}
	return r, nil
}

func (d *Datasource) GetReporterByKeyHash(ctx context.Context, keyHash string) (*model.Reporter, error) {
	row := d.db().QueryRowContext(ctx, `
		SELECT account, points, key_hash, created_at
		FROM xbridge.reporters
		WHERE key_hash = $1
	`, keyHash)
	r, err := scanReporter(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Reporter not found", nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve reporter", err)
	}
	return r, nil
}

func (d *Datasource) GetReporters(ctx context.Context) ([]*model.Reporter, error) {
	rows, err := d.db().QueryContext(ctx, `
		SELECT account, points, key_hash, created_at
		FROM xbridge.reporters
		ORDER BY account
	`)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve reporters", err)
	}
	defer rows.Close()

	reporters := []*model.Reporter{}
	for rows.Next() {
		r, err := scanReporter(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan reporter data", err)
		}
		reporters = append(reporters, r)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over reporters", err)
	}
	return reporters, nil
}

func (d *Datasource) UpdateReporter(ctx context.Context, r *model.Reporter) error {
	res, err := d.db().ExecContext(ctx, `
		UPDATE xbridge.reporters
		SET points = $2, key_hash = $3
		WHERE account = $1
	`, r.Account, int64(r.Points), r.KeyHash)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update reporter", err)
	}
	return expectAffected(res, "Reporter not found")
}

func (d *Datasource) DeleteReporter(ctx context.Context, account string) error {
	res, err := d.db().ExecContext(ctx, `DELETE FROM xbridge.reporters WHERE account = $1`, account)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to remove reporter", err)
	}
	return expectAffected(res, "Reporter not found")
}
