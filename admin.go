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

package xbridge

import (
	"context"
	"strings"

	"github.com/jerry-enebeli/xbridge/database"
	"github.com/jerry-enebeli/xbridge/internal/apierror"
	"github.com/jerry-enebeli/xbridge/model"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// InitParams are the one-time settings of a bridge.
type InitParams struct {
	ChainName   string
	Token       model.TokenInfo
	ExpireAfter uint32 // seconds
	DoIssue     bool
	Threshold   uint32
	FeeRate     decimal.Decimal
	MinQuantity model.Asset
}

// UpdateParams are the settings that may change after initialisation.
type UpdateParams struct {
	Threshold   uint32
	FeeRate     decimal.Decimal
	ExpireAfter uint32
	MinQuantity model.Asset
}

func validateParameters(threshold uint32, rate decimal.Decimal, minQuantity model.Asset, symbol model.Symbol) error {
	if threshold == 0 {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "threshold must be positive", nil)
	}
	if minQuantity.Amount < 0 {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "min_quantity must be >= 0", nil)
	}
	if minQuantity.Symbol != symbol {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "token info symbol does not match min_quantity symbol", nil)
	}
	if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return apierror.NewAPIError(apierror.ErrInvalidInput, "fee rate must be in [0, 1)", nil)
	}
	return nil
}

// Init stores the bridge settings and an empty fee ledger. The bridge starts
// disabled and can only be initialised once.
func (b *Bridge) Init(ctx context.Context, params InitParams) (*model.Settings, error) {
	if err := requireCaller(ctx, b.account); err != nil {
		return nil, err
	}
	if !params.Token.Symbol.IsValid() {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "invalid token symbol", nil)
	}
	if err := validateParameters(params.Threshold, params.FeeRate, params.MinQuantity, params.Token.Symbol); err != nil {
		return nil, err
	}

	var result *model.Settings
	err := b.run(ctx, "Init", func(ctx context.Context, u *unit) error {
		_, err := u.store.GetSettings(ctx)
		if err == nil {
			return apierror.NewAPIError(apierror.ErrConflict, "settings already defined", nil)
		}
		if !apierror.Is(err, apierror.ErrNotFound) {
			return err
		}

		settings := &model.Settings{
			ChainName:   normalizeChain(params.ChainName),
			Token:       params.Token,
			DoIssue:     params.DoIssue,
			ExpireAfter: params.ExpireAfter,
			Threshold:   params.Threshold,
			MinQuantity: params.MinQuantity,
		}
		if err = u.store.SaveSettings(ctx, settings); err != nil {
			return err
		}
		if err = u.store.SaveFees(ctx, &model.FeeState{
			Total:            model.NewAsset(0, params.Token.Symbol),
			Reserve:          model.NewAsset(0, params.Token.Symbol),
			LastDistribution: u.now,
			Rate:             params.FeeRate,
		}); err != nil {
			return err
		}
		result = settings
		return nil
	})
	if err != nil {
		return nil, err
	}
	logrus.Infof("bridge initialised on chain %s for %s", result.ChainName, result.Token.Symbol)
	return result, nil
}

// Update changes the tunable settings. Lowering the threshold promotes every
// unconfirmed report that now has enough confirmations; confirmation is never
// taken back when the threshold rises.
func (b *Bridge) Update(ctx context.Context, params UpdateParams) (*model.Settings, error) {
	if err := requireCaller(ctx, b.account); err != nil {
		return nil, err
	}

	var result *model.Settings
	err := b.run(ctx, "Update", func(ctx context.Context, u *unit) error {
		settings, err := loadSettings(ctx, u.store)
		if err != nil {
			return err
		}
		if err = validateParameters(params.Threshold, params.FeeRate, params.MinQuantity, settings.Token.Symbol); err != nil {
			return err
		}

		settings.Threshold = params.Threshold
		settings.ExpireAfter = params.ExpireAfter
		settings.MinQuantity = params.MinQuantity
		if err = u.store.SaveSettings(ctx, settings); err != nil {
			return err
		}

		fees, err := u.store.GetFees(ctx)
		if err != nil {
			return err
		}
		fees.Rate = params.FeeRate
		if err = u.store.SaveFees(ctx, fees); err != nil {
			return err
		}

		unconfirmed, err := u.store.GetUnconfirmedReports(ctx)
		if err != nil {
			return err
		}
		for _, r := range unconfirmed {
			if !r.Promote(settings.Threshold) {
				continue
			}
			if err = u.store.UpdateReport(ctx, r); err != nil {
				return err
			}
			u.emit(model.EventReportConfirmed, r)
		}
		result = settings
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Enable switches reporting and transfers on or off.
func (b *Bridge) Enable(ctx context.Context, enable bool) (*model.Settings, error) {
	if err := requireCaller(ctx, b.account); err != nil {
		return nil, err
	}

	var result *model.Settings
	err := b.run(ctx, "Enable", func(ctx context.Context, u *unit) error {
		settings, err := loadSettings(ctx, u.store)
		if err != nil {
			return err
		}
		settings.Enabled = enable
		result = settings
		return u.store.SaveSettings(ctx, settings)
	})
	if err != nil {
		return nil, err
	}
	logrus.Infof("bridge enabled: %t", enable)
	return result, nil
}

// AddReporter whitelists account and returns the API key it authenticates
// with. The key is only ever returned here; the store keeps its hash.
func (b *Bridge) AddReporter(ctx context.Context, account string) (*model.Reporter, string, error) {
	if err := requireCaller(ctx, b.account); err != nil {
		return nil, "", err
	}
	account = strings.TrimSpace(account)
	if account == "" {
		return nil, "", apierror.NewAPIError(apierror.ErrInvalidInput, "reporter account is required", nil)
	}

	key, err := model.GenerateKey()
	if err != nil {
		return nil, "", err
	}

	var reporter *model.Reporter
	err = b.run(ctx, "AddReporter", func(ctx context.Context, u *unit) error {
		reporter = &model.Reporter{Account: account, KeyHash: model.HashKey(key), CreatedAt: u.now}
		err := u.store.InsertReporter(ctx, reporter)
		if apierror.Is(err, apierror.ErrConflict) {
			return apierror.NewAPIError(apierror.ErrConflict, "reporter already defined", nil)
		}
		return err
	})
	if err != nil {
		return nil, "", err
	}
	return reporter, key, nil
}

func (b *Bridge) RemoveReporter(ctx context.Context, account string) error {
	if err := requireCaller(ctx, b.account); err != nil {
		return err
	}
	return b.run(ctx, "RemoveReporter", func(ctx context.Context, u *unit) error {
		err := u.store.DeleteReporter(ctx, account)
		if apierror.Is(err, apierror.ErrNotFound) {
			return apierror.NewAPIError(apierror.ErrConflict, "reporter does not exist", nil)
		}
		return err
	})
}

// ClearArchive drops up to count archived reports, oldest first.
func (b *Bridge) ClearArchive(ctx context.Context, count int) (int, error) {
	if err := requireCaller(ctx, b.account); err != nil {
		return 0, err
	}
	if count <= 0 {
		return 0, apierror.NewAPIError(apierror.ErrInvalidInput, "count must be positive", nil)
	}

	var cleared int
	err := b.run(ctx, "ClearArchive", func(ctx context.Context, u *unit) error {
		var err error
		cleared, err = u.store.ClearArchivedReports(ctx, count)
		return err
	})
	return cleared, err
}

func (b *Bridge) Settings(ctx context.Context) (*model.Settings, error) {
	var settings *model.Settings
	err := b.view(ctx, func(store database.Store) error {
		var err error
		settings, err = loadSettings(ctx, store)
		return err
	})
	return settings, err
}

func (b *Bridge) Reporters(ctx context.Context) ([]*model.Reporter, error) {
	var reporters []*model.Reporter
	err := b.view(ctx, func(store database.Store) error {
		var err error
		reporters, err = store.GetReporters(ctx)
		return err
	})
	return reporters, err
}

// ReporterByKey resolves the reporter an API key belongs to.
func (b *Bridge) ReporterByKey(ctx context.Context, key string) (*model.Reporter, error) {
	var reporter *model.Reporter
	err := b.view(ctx, func(store database.Store) error {
		var err error
		reporter, err = store.GetReporterByKeyHash(ctx, model.HashKey(key))
		return err
	})
	return reporter, err
}

// Reports lists reports ordered by id.
func (b *Bridge) Reports(ctx context.Context, unexpiredOnly bool, limit, offset int) ([]*model.Report, error) {
	filter := database.Filter{Limit: limit, Offset: offset}
	if unexpiredOnly {
		now := b.now()
		filter.UnexpiredAt = &now
	}
	var reports []*model.Report
	err := b.view(ctx, func(store database.Store) error {
		var err error
		reports, err = store.GetReports(ctx, filter)
		return err
	})
	return reports, err
}

func (b *Bridge) Report(ctx context.Context, id uint64) (*model.Report, error) {
	var report *model.Report
	err := b.view(ctx, func(store database.Store) error {
		var err error
		report, err = store.GetReport(ctx, id)
		return err
	})
	return report, err
}

func (b *Bridge) ArchivedReports(ctx context.Context, limit, offset int) ([]*model.ExpiredReport, error) {
	var archived []*model.ExpiredReport
	err := b.view(ctx, func(store database.Store) error {
		var err error
		archived, err = store.GetArchivedReports(ctx, limit, offset)
		return err
	})
	return archived, err
}
