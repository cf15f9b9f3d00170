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
	"time"

	"github.com/jerry-enebeli/xbridge/internal/apierror"
	"github.com/jerry-enebeli/xbridge/model"
)

const reportColumns = `id, transfer, confirmed_by, confirmed, failed_by, failed, executed`

func scanReport(row scanner) (*model.Report, error) {
	r := model.Report{}
	var transferJSON, confirmedByJSON, failedByJSON []byte
	err := row.Scan(&r.ID, &transferJSON, &confirmedByJSON, &r.Confirmed, &failedByJSON, &r.Failed, &r.Executed)
	if err != nil {
		return nil, err
	}
	if err = json.Unmarshal(transferJSON, &r.Transfer); err != nil {
		return nil, err
	}
	if err = json.Unmarshal(confirmedByJSON, &r.ConfirmedBy); err != nil {
		return nil, err
	}
	if err = json.Unmarshal(failedByJSON, &r.FailedBy); err != nil {
		return nil, err
	}
	return &r, nil
}

func (d *Datasource) InsertReport(ctx context.Context, r *model.Report) error {
	transferJSON, err := json.Marshal(r.Transfer)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal transfer", err)
	}
	confirmedByJSON, _ := json.Marshal(nonNil(r.ConfirmedBy))
	failedByJSON, _ := json.Marshal(nonNil(r.FailedBy))

	err = d.db().QueryRowContext(ctx, `
		INSERT INTO xbridge.reports (transfer_chain, transfer_id, transfer, confirmed_by, confirmed,
		                             failed_by, failed, executed, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`, r.Transfer.FromBlockchain, int64(r.Transfer.ID), transferJSON, confirmedByJSON, r.Confirmed,
		failedByJSON, r.Failed, r.Executed, r.Transfer.ExpiresAt).Scan(&r.ID)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record report", err)
	}
	return nil
}

func (d *Datasource) GetReport(ctx context.Context, id uint64) (*model.Report, error) {
	row := d.db().QueryRowContext(ctx, `
		SELECT `+reportColumns+`
		FROM xbridge.reports
		WHERE id = $1
	`, int64(id))
	r, err := scanReport(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "Report not found", nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve report", err)
	}
	return r, nil
}

func (d *Datasource) GetReportsByKey(ctx context.Context, key model.TransferKey) ([]*model.Report, error) {
	rows, err := d.db().QueryContext(ctx, `
		SELECT `+reportColumns+`
		FROM xbridge.reports
		WHERE transfer_chain = $1 AND transfer_id = $2
		ORDER BY id
	`, key.Chain, int64(key.ID))
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve reports", err)
	}
	return collectReports(rows)
}

func (d *Datasource) GetReports(ctx context.Context, filter Filter) ([]*model.Report, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if filter.UnexpiredAt != nil {
		rows, err = d.db().QueryContext(ctx, `
			SELECT `+reportColumns+`
			FROM xbridge.reports
			WHERE expires_at > $1
			ORDER BY id
			LIMIT $2 OFFSET $3
		`, *filter.UnexpiredAt, filter.limit(), filter.Offset)
	} else {
		rows, err = d.db().QueryContext(ctx, `
			SELECT `+reportColumns+`
			FROM xbridge.reports
			ORDER BY id
			LIMIT $1 OFFSET $2
		`, filter.limit(), filter.Offset)
	}
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve reports", err)
	}
	return collectReports(rows)
}

func (d *Datasource) GetUnconfirmedReports(ctx context.Context) ([]*model.Report, error) {
	rows, err := d.db().QueryContext(ctx, `
		SELECT `+reportColumns+`
		FROM xbridge.reports
		WHERE NOT confirmed
		ORDER BY id
	`)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve unconfirmed reports", err)
	}
	return collectReports(rows)
}

func (d *Datasource) ExpiredReports(ctx context.Context, now time.Time, limit int) ([]*model.Report, error) {
	rows, err := d.db().QueryContext(ctx, `
		SELECT `+reportColumns+`
		FROM xbridge.reports
		WHERE expires_at <= $1
		ORDER BY expires_at, id
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve expired reports", err)
	}
	return collectReports(rows)
}

func collectReports(rows *sql.Rows) ([]*model.Report, error) {
	defer rows.Close()

	reports := []*model.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan report data", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over reports", err)
	}
	return reports, nil
}

// UpdateReport persists the vote sets and flags. The claim itself is immutable.
func (d *Datasource) UpdateReport(ctx context.Context, r *model.Report) error {
	confirmedByJSON, _ := json.Marshal(nonNil(r.ConfirmedBy))
	failedByJSON, _ := json.Marshal(nonNil(r.FailedBy))

	res, err := d.db().ExecContext(ctx, `
		UPDATE xbridge.reports
		SET confirmed_by = $2, confirmed = $3, failed_by = $4, failed = $5, executed = $6
		WHERE id = $1
	`, int64(r.ID), confirmedByJSON, r.Confirmed, failedByJSON, r.Failed, r.Executed)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update report", err)
	}
	return expectAffected(res, "Report not found")
}

func (d *Datasource) DeleteReport(ctx context.Context, id uint64) error {
	res, err := d.db().ExecContext(ctx, `DELETE FROM xbridge.reports WHERE id = $1`, int64(id))
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to delete report", err)
	}
	return expectAffected(res, "Report not found")
}

func (d *Datasource) ArchiveReport(ctx context.Context, e *model.ExpiredReport) error {
	reportJSON, err := json.Marshal(e.Report)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal report", err)
	}
	_, err = d.db().ExecContext(ctx, `
		INSERT INTO xbridge.reports_expired (archive_id, report, reason, archived_at)
		VALUES ($1, $2, $3, $4)
	`, e.ID, reportJSON, e.Reason, e.ArchivedAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to archive report", err)
	}
	return nil
}

func (d *Datasource) GetArchivedReports(ctx context.Context, limit, offset int) ([]*model.ExpiredReport, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.db().QueryContext(ctx, `
		SELECT archive_id, report, reason, archived_at
		FROM xbridge.reports_expired
		ORDER BY seq
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve archived reports", err)
	}
	defer rows.Close()

	archived := []*model.ExpiredReport{}
	for rows.Next() {
		e := model.ExpiredReport{}
		var reportJSON []byte
		if err = rows.Scan(&e.ID, &reportJSON, &e.Reason, &e.ArchivedAt); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan archived report", err)
		}
		if err = json.Unmarshal(reportJSON, &e.Report); err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to unmarshal archived report", err)
		}
		archived = append(archived, &e)
	}
	if err = rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Error occurred while iterating over archived reports", err)
	}
	return archived, nil
}

func (d *Datasource) ClearArchivedReports(ctx context.Context, count int) (int, error) {
	res, err := d.db().ExecContext(ctx, `
		DELETE FROM xbridge.reports_expired
		WHERE seq IN (SELECT seq FROM xbridge.reports_expired ORDER BY seq LIMIT $1)
	`, count)
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to clear archived reports", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read affected rows", err)
	}
	return int(n), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
