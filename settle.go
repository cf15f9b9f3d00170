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

	"github.com/jerry-enebeli/xbridge/database"
	"github.com/jerry-enebeli/xbridge/internal/apierror"
	redlock "github.com/jerry-enebeli/xbridge/internal/lock"
	"github.com/jerry-enebeli/xbridge/internal/notification"
	"github.com/jerry-enebeli/xbridge/model"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	settleLockKey = "xbridge:settle"
	settleBatch   = 20
	// alertAttempts is the failed attempt after which operators are paged.
	alertAttempts = 5
)

// stage records a token movement that is applied once the call commits.
func (u *unit) stage(ctx context.Context, e *model.LedgerEntry) error {
	e.CreatedAt = u.now
	if err := u.store.InsertLedgerEntry(ctx, e); err != nil {
		return err
	}
	u.settle = true
	return nil
}

func ledgerReference(chain string, parts ...interface{}) string {
	ref := "xbridge:" + normalizeChain(chain)
	for _, p := range parts {
		ref += fmt.Sprintf(":%v", p)
	}
	return ref
}

// SettleLedger applies pending token movements in staging order. An entry
// that fails stays pending with its error and holds back the later entries
// of its group until a later pass applies it.
func (b *Bridge) SettleLedger(ctx context.Context) (*model.Settlement, error) {
	ctx, span := tracer.Start(ctx, "SettleLedger")
	defer span.End()

	result := &model.Settlement{Pending: []*model.LedgerEntry{}}
	if b.redis != nil {
		locker := redlock.NewLocker(b.redis, settleLockKey, model.GenerateUUIDWithSuffix("loc"))
		if err := locker.Lock(ctx, stateLockTimeout); err != nil {
			logrus.Debugf("ledger settlement skipped: %v", err)
			return result, nil
		}
		defer func() {
			if err := locker.Unlock(context.Background()); err != nil {
				logrus.Error("lock error ", err)
			}
		}()
	}

	var pending []*model.LedgerEntry
	err := b.view(ctx, func(store database.Store) error {
		var err error
		pending, err = store.PendingLedgerEntries(ctx, settleBatch)
		return err
	})
	if err != nil {
		return nil, logAndRecordError(span, "failed to load pending ledger entries", err)
	}

	blocked := make(map[string]bool)
	var applied []model.Event
	for _, e := range pending {
		if blocked[e.Group] {
			result.Pending = append(result.Pending, e)
			continue
		}
		if applyErr := b.apply(ctx, e); applyErr != nil {
			blocked[e.Group] = true
			result.Failed++
			result.Pending = append(result.Pending, e)
			b.recordFailure(ctx, e, applyErr)
			continue
		}

		result.Applied++
		applied = append(applied, model.Event{Name: model.EventLedgerApplied, Data: e, OccurredAt: b.now()})
		err = b.datasource.Atomic(ctx, func(store database.Store) error {
			return store.DeleteLedgerEntry(ctx, e.Seq)
		})
		if err != nil && !apierror.Is(err, apierror.ErrNotFound) {
			// the ledger ignores the reference on the next pass
			logrus.Errorf("failed to clear applied ledger entry %s: %v", e.Reference, err)
		}
	}

	span.SetAttributes(attribute.Int("xbridge.ledger.applied", result.Applied), attribute.Int("xbridge.ledger.failed", result.Failed))
	if len(applied) > 0 {
		if err = b.publisher.Publish(ctx, applied...); err != nil {
			logrus.Errorf("failed to publish %d events: %v", len(applied), err)
		}
	}
	return result, nil
}

func (b *Bridge) apply(ctx context.Context, e *model.LedgerEntry) error {
	if e.Kind == model.LedgerIssue {
		return b.ledger.Issue(ctx, e.Reference, e.To, e.Quantity, e.Memo)
	}
	return b.ledger.Transfer(ctx, e.Reference, e.From, e.To, e.Quantity, e.Memo)
}

func (b *Bridge) recordFailure(ctx context.Context, e *model.LedgerEntry, applyErr error) {
	e.Attempts++
	e.LastError = applyErr.Error()
	logrus.WithFields(logrus.Fields{
		"reference": e.Reference,
		"to":        e.To,
		"quantity":  e.Quantity.String(),
		"attempts":  e.Attempts,
	}).Warnf("ledger %s not applied, will retry: %v", e.Kind, applyErr)

	err := b.datasource.Atomic(ctx, func(store database.Store) error {
		return store.UpdateLedgerEntry(ctx, e)
	})
	if err != nil && !apierror.Is(err, apierror.ErrNotFound) {
		logrus.Errorf("failed to record ledger attempt for %s: %v", e.Reference, err)
	}
	if e.Attempts == alertAttempts {
		notification.NotifyError(fmt.Errorf("ledger %s %s of %s to %s keeps failing: %w", e.Kind, e.Reference, e.Quantity, e.To, applyErr))
	}
}

// PendingLedger lists the token movements that have not been applied yet.
func (b *Bridge) PendingLedger(ctx context.Context, limit int) ([]*model.LedgerEntry, error) {
	var entries []*model.LedgerEntry
	err := b.view(ctx, func(store database.Store) error {
		var err error
		entries, err = store.PendingLedgerEntries(ctx, limit)
		return err
	})
	return entries, err
}
