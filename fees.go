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
	"fmt"
	"math/big"

	"github.com/jerry-enebeli/xbridge/database"
	"github.com/jerry-enebeli/xbridge/internal/apierror"
	"github.com/jerry-enebeli/xbridge/internal/notification"
	"github.com/jerry-enebeli/xbridge/model"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// activityGate is the number of work points reporters must have earned before
// the reserve is distributed: about ten transfers, each needing threshold
// reports and one execution.
func activityGate(threshold uint32) uint64 {
	return (uint64(threshold) + 1) * 10
}

// share is points/total of reserve, rounded down to whole minor units.
func share(reserve int64, points, total uint64) int64 {
	amount := decimal.NewFromInt(reserve).Mul(decimal.NewFromBigInt(new(big.Int).SetUint64(points), 0))
	quotient, _ := amount.QuoRem(decimal.NewFromBigInt(new(big.Int).SetUint64(total), 0), 0)
	return quotient.IntPart()
}

// DistributeFees pays the fee reserve out to reporters in proportion to their
// work points and resets the points. Anyone may call it once enough activity
// accrued since the last distribution. Rounding dust stays in the reserve.
// Payouts are applied to the ledger after the reserve is debited and retried
// by SettleLedger until they go through.
func (b *Bridge) DistributeFees(ctx context.Context) (*model.Distribution, error) {
	var result *model.Distribution
	err := b.run(ctx, "DistributeFees", func(ctx context.Context, u *unit) error {
		settings, err := loadSettings(ctx, u.store)
		if err != nil {
			return err
		}
		fees, err := u.store.GetFees(ctx)
		if err != nil {
			return err
		}
		reporters, err := u.store.GetReporters(ctx)
		if err != nil {
			return err
		}

		var totalPoints uint64
		for _, r := range reporters {
			totalPoints += r.Points
		}
		if totalPoints <= activityGate(settings.Threshold) {
			return apierror.NewAPIError(apierror.ErrTooEarly, "not enough transfers have been processed since last time",
				map[string]uint64{"points": totalPoints, "required": activityGate(settings.Threshold) + 1})
		}

		reserve := fees.Reserve
		distributionID := model.GenerateUUIDWithSuffix("dist")
		distribution := &model.Distribution{
			ID:          distributionID,
			TotalPoints: totalPoints,
			Distributed: model.NewAsset(0, reserve.Symbol),
		}
		for _, r := range reporters {
			if r.Points == 0 {
				continue
			}
			payout := model.NewAsset(share(reserve.Amount, r.Points, totalPoints), reserve.Symbol)
			distribution.Payouts = append(distribution.Payouts, model.FeePayout{Reporter: r.Account, Points: r.Points, Amount: payout})

			if distribution.Distributed, err = distribution.Distributed.Add(payout); err != nil {
				return err
			}
			r.Points = 0
			if err = u.store.UpdateReporter(ctx, r); err != nil {
				return err
			}
			if payout.Amount > 0 {
				reference := ledgerReference(settings.ChainName, "fees", distributionID, r.Account)
				err = u.stage(ctx, &model.LedgerEntry{
					Reference: reference,
					Group:     reference,
					Kind:      model.LedgerTransfer,
					From:      b.account,
					To:        r.Account,
					Quantity:  payout,
					Memo:      "fees",
				})
				if err != nil {
					return errors.Wrapf(err, "staging fee payout to %s failed", r.Account)
				}
			}
		}

		if fees.Reserve, err = fees.Reserve.Sub(distribution.Distributed); err != nil {
			return err
		}
		if fees.Reserve.Amount < 0 {
			violation := apierror.NewAPIError(apierror.ErrInvariantViolation, "negative reserve, something went wrong",
				map[string]string{"reserve": reserve.String(), "distributed": distribution.Distributed.String()})
			notification.NotifyError(fmt.Errorf("fee distribution: %w", violation))
			return violation
		}
		fees.LastDistribution = u.now
		if err = u.store.SaveFees(ctx, fees); err != nil {
			return err
		}

		distribution.Reserve = fees.Reserve
		logrus.WithFields(logrus.Fields{
			"points":      totalPoints,
			"distributed": distribution.Distributed.String(),
			"reserve":     fees.Reserve.String(),
		}).Info("fees distributed")
		u.emit(model.EventFeesDistributed, distribution)
		result = distribution
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Fees returns the fee ledger.
func (b *Bridge) Fees(ctx context.Context) (*model.FeeState, error) {
	var fees *model.FeeState
	err := b.view(ctx, func(store database.Store) error {
		var err error
		fees, err = store.GetFees(ctx)
		return err
	})
	return fees, err
}
