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
)

func (d *Datasource) GetSettings(ctx context.Context) (*model.Settings, error) {
	s := model.Settings{}
	var symbol string
	var minQuantity int64

	row := d.db().QueryRowContext(ctx, `
		SELECT chain_name, token_symbol, token_contract, enabled, do_issue,
		       next_transfer_id, expire_after, threshold, min_quantity
		FROM xbridge.settings
		WHERE id = 1
	`)
	err := row.Scan(&s.ChainName, &symbol, &s.Token.Contract, &s.Enabled, &s.DoIssue,
		&s.NextTransferID, &s.ExpireAfter, &s.Threshold, &minQuantity)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "the bridge has not been initialized", nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve settings", err)
	}

	s.Token.Symbol, err = model.ParseSymbol(symbol)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Stored token symbol is invalid", err)
	}
	s.MinQuantity = model.NewAsset(minQuantity, s.Token.Symbol)
	return &s, nil
}

func (d *Datasource) SaveSettings(ctx context.Context, s *model.Settings) error {
	_, err := d.db().ExecContext(ctx, `
		INSERT INTO xbridge.settings (id, chain_name, token_symbol, token_contract, enabled, do_issue,
		                              next_transfer_id, expire_after, threshold, min_quantity)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			chain_name = EXCLUDED.chain_name,
			token_symbol = EXCLUDED.token_symbol,
			token_contract = EXCLUDED.token_contract,
			enabled = EXCLUDED.enabled,
			do_issue = EXCLUDED.do_issue,
			next_transfer_id = EXCLUDED.next_transfer_id,
			expire_after = EXCLUDED.expire_after,
			threshold = EXCLUDED.threshold,
			min_quantity = EXCLUDED.min_quantity
	`, s.ChainName, s.Token.Symbol.String(), s.Token.Contract, s.Enabled, s.DoIssue,
		int64(s.NextTransferID), int64(s.ExpireAfter), int64(s.Threshold), s.MinQuantity.Amount)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to save settings", err)
	}
	return nil
}

func (d *Datasource) GetFees(ctx context.Context) (*model.FeeState, error) {
	f := model.FeeState{}
	var symbol string
	var total, reserve int64

	row := d.db().QueryRowContext(ctx, `
		SELECT symbol, total, reserve, last_distribution, rate
		FROM xbridge.fees
		WHERE id = 1
	`)
	err := row.Scan(&symbol, &total, &reserve, &f.LastDistribution, &f.Rate)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, "the bridge has not been initialized", nil)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve fees", err)
	}

	sym, err := model.ParseSymbol(symbol)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Stored fee symbol is invalid", err)
	}
	f.Total = model.NewAsset(total, sym)
	f.Reserve = model.NewAsset(reserve, sym)
	return &f, nil
}

func (d *Datasource) SaveFees(ctx context.Context, f *model.FeeState) error {
	_, err := d.db().ExecContext(ctx, `
		INSERT INTO xbridge.fees (id, symbol, total, reserve, last_distribution, rate)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			total = EXCLUDED.total,
			reserve = EXCLUDED.reserve,
			last_distribution = EXCLUDED.last_distribution,
			rate = EXCLUDED.rate
	`, f.Reserve.Symbol.String(), f.Total.Amount, f.Reserve.Amount, f.LastDistribution, f.Rate)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to save fees", err)
	}
	return nil
}
