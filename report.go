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

	"github.com/jerry-enebeli/xbridge/internal/apierror"
	"github.com/jerry-enebeli/xbridge/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SubmitReport records reporter's confirmation of claim. The first claim for a
// transfer creates a report; an identical claim adds a confirmation to it and
// a claim that differs from every stored one opens a separate report under
// the same transfer key.
func (b *Bridge) SubmitReport(ctx context.Context, reporter string, claim model.Transfer) (*model.Report, error) {
	if err := requireCaller(ctx, reporter); err != nil {
		return nil, err
	}

	var result *model.Report
	err := b.run(ctx, "SubmitReport", func(ctx context.Context, u *unit) error {
		settings, err := loadSettings(ctx, u.store)
		if err != nil {
			return err
		}
		if _, err = reporterWorked(ctx, u.store, reporter); err != nil {
			return err
		}
		if claim.Quantity.Amount <= 0 || !claim.Quantity.IsValid() {
			return apierror.NewAPIError(apierror.ErrInvalidInput, "the transfer quantity must be positive", nil)
		}
		if claim.Expired(u.now) {
			return apierror.NewAPIError(apierror.ErrInvalidInput, "transfer already expired", nil)
		}
		if err = b.freeStorage(ctx, u); err != nil {
			return err
		}
		if !settings.Enabled {
			return apierror.NewAPIError(apierror.ErrInvalidInput, "reporting is disabled", nil)
		}

		claim.FromBlockchain = normalizeChain(claim.FromBlockchain)
		claim.ToBlockchain = normalizeChain(claim.ToBlockchain)
		existing, err := u.store.GetReportsByKey(ctx, claim.Key())
		if err != nil {
			return err
		}
		for _, r := range existing {
			if !r.Transfer.Equal(&claim) {
				continue
			}
			wasConfirmed := r.Confirmed
			if err = r.Confirm(reporter, settings.Threshold); err != nil {
				return err
			}
			if err = u.store.UpdateReport(ctx, r); err != nil {
				return err
			}
			if !wasConfirmed && r.Confirmed {
				u.emit(model.EventReportConfirmed, r)
			}
			result = r
			return nil
		}

		if len(existing) > 0 {
			logrus.WithFields(logrus.Fields{
				"chain":    claim.FromBlockchain,
				"transfer": claim.ID,
				"reporter": reporter,
				"reports":  len(existing),
			}).Warn("claim differs from every stored report for this transfer, opening a separate report")
		}

		r := model.NewReport(claim, reporter, settings.Threshold)
		if err = u.store.InsertReport(ctx, r); err != nil {
			return err
		}
		u.emit(model.EventReportCreated, r)
		if r.Confirmed {
			u.emit(model.EventReportConfirmed, r)
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Execute releases the funds of a confirmed report to its recipient. New
// units are issued first when the bridge issues and the claim is not a
// refund; refunded funds are already held by the bridge. The token movements
// are applied to the ledger once the report is committed as executed; a
// movement the ledger rejects stays pending and is retried by SettleLedger.
func (b *Bridge) Execute(ctx context.Context, reporter string, reportID uint64) (*model.Report, error) {
	if err := requireCaller(ctx, reporter); err != nil {
		return nil, err
	}

	var result *model.Report
	err := b.run(ctx, "Execute", func(ctx context.Context, u *unit) error {
		settings, err := loadSettings(ctx, u.store)
		if err != nil {
			return err
		}
		if _, err = reporterWorked(ctx, u.store, reporter); err != nil {
			return err
		}
		if err = b.freeStorage(ctx, u); err != nil {
			return err
		}

		r, err := getReport(ctx, u, reportID)
		if err != nil {
			return err
		}
		if err = r.Actionable(u.now); err != nil {
			return err
		}

		quantity, err := localQuantity(r.Transfer.Quantity, settings)
		if err != nil {
			return err
		}

		r.Executed = true
		if err = u.store.UpdateReport(ctx, r); err != nil {
			return err
		}

		memo := fmt.Sprintf("%s #%d", r.Transfer.FromBlockchain, r.Transfer.ID)
		group := fmt.Sprintf("report:%d", r.ID)
		if !r.Transfer.IsRefund && settings.DoIssue {
			err = u.stage(ctx, &model.LedgerEntry{
				Reference: ledgerReference(settings.ChainName, "report", r.ID, model.LedgerIssue),
				Group:     group,
				Kind:      model.LedgerIssue,
				To:        b.account,
				Quantity:  quantity,
				Memo:      memo,
			})
			if err != nil {
				return errors.Wrap(err, "staging token issue failed")
			}
		}
		err = u.stage(ctx, &model.LedgerEntry{
			Reference: ledgerReference(settings.ChainName, "report", r.ID, "release"),
			Group:     group,
			Kind:      model.LedgerTransfer,
			From:      b.account,
			To:        r.Transfer.ToAccount,
			Quantity:  quantity,
			Memo:      memo,
		})
		if err != nil {
			return errors.Wrap(err, "staging token transfer failed")
		}

		logrus.WithFields(logrus.Fields{
			"report":   r.ID,
			"reporter": reporter,
			"to":       r.Transfer.ToAccount,
			"quantity": quantity.String(),
		}).Info("report executed")
		u.emit(model.EventReportExecuted, r)
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkFailed records that reporter could not execute a confirmed report. Once
// enough reporters agree the report fails: a regular transfer is refunded to
// its sender on the origin chain, a failed refund is archived for review.
func (b *Bridge) MarkFailed(ctx context.Context, reporter string, reportID uint64) (*model.Report, error) {
	if err := requireCaller(ctx, reporter); err != nil {
		return nil, err
	}

	var result *model.Report
	err := b.run(ctx, "MarkFailed", func(ctx context.Context, u *unit) error {
		settings, err := loadSettings(ctx, u.store)
		if err != nil {
			return err
		}
		if _, err = reporterWorked(ctx, u.store, reporter); err != nil {
			return err
		}
		if err = b.freeStorage(ctx, u); err != nil {
			return err
		}

		r, err := getReport(ctx, u, reportID)
		if err != nil {
			return err
		}
		if err = r.Actionable(u.now); err != nil {
			return err
		}

		failed, err := r.Fail(reporter, settings.Threshold)
		if err != nil {
			return err
		}
		if err = u.store.UpdateReport(ctx, r); err != nil {
			return err
		}
		result = r
		if !failed {
			return nil
		}
		u.emit(model.EventReportFailed, r)

		if r.Transfer.IsRefund {
			return b.archive(ctx, u, r, model.ArchiveReasonRefundFailed)
		}

		source, ok := b.chains[normalizeChain(r.Transfer.ToBlockchain)]
		if !ok {
			return apierror.NewAPIError(apierror.ErrInvalidInput, fmt.Sprintf("no bridge account known for chain %s", r.Transfer.ToBlockchain), nil)
		}
		quantity, err := localQuantity(r.Transfer.Quantity, settings)
		if err != nil {
			return err
		}
		refund, err := b.registerTransfer(ctx, u, settings, transferRequest{
			TransactionID: fmt.Sprintf("refund:%s:%d", r.Transfer.FromBlockchain, r.Transfer.ID),
			ToBlockchain:  r.Transfer.FromBlockchain,
			FromAccount:   source,
			ToAccount:     r.Transfer.FromAccount,
			Quantity:      quantity,
			IsRefund:      true,
		})
		if err != nil {
			return err
		}
		logrus.WithFields(logrus.Fields{
			"report":   r.ID,
			"refund":   refund.ID,
			"to":       refund.ToAccount,
			"quantity": refund.Quantity.String(),
		}).Info("report failed, refund registered")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func getReport(ctx context.Context, u *unit, id uint64) (*model.Report, error) {
	r, err := u.store.GetReport(ctx, id)
	if apierror.Is(err, apierror.ErrNotFound) {
		return nil, apierror.NewAPIError(apierror.ErrNotFound, "report does not exist", nil)
	}
	return r, err
}

// localQuantity re-denominates a claimed quantity in the bridge's token.
func localQuantity(quantity model.Asset, settings *model.Settings) (model.Asset, error) {
	local, err := quantity.Convert(settings.Token.Symbol)
	if err != nil {
		return model.Asset{}, apierror.NewAPIError(apierror.ErrInvalidInput, "claimed quantity cannot be expressed in the bridge token", err)
	}
	return local, nil
}

// archive snapshots r for manual review.
func (b *Bridge) archive(ctx context.Context, u *unit, r *model.Report, reason string) error {
	entry := model.NewExpiredReport(r, reason, u.now)
	if err := u.store.ArchiveReport(ctx, entry); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"report": r.ID, "reason": reason}).Warn("report archived for manual review")
	u.emit(model.EventReportArchived, entry)
	u.reviews = append(u.reviews, entry)
	return nil
}
