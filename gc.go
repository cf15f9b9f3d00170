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

	"github.com/jerry-enebeli/xbridge/model"
	"github.com/sirupsen/logrus"
)

// freeStorage evicts at most maxEvictions expired transfers and as many
// expired reports, earliest expiry first. Reports that never reached a
// terminal state are archived before they are removed.
func (b *Bridge) freeStorage(ctx context.Context, u *unit) error {
	transfers, err := u.store.ExpiredTransfers(ctx, u.now, b.maxEvictions)
	if err != nil {
		return err
	}
	for _, t := range transfers {
		if err = u.store.DeleteTransfer(ctx, t.ID); err != nil {
			return err
		}
	}

	reports, err := u.store.ExpiredReports(ctx, u.now, b.maxEvictions)
	if err != nil {
		return err
	}
	for _, r := range reports {
		if !r.Resolved() {
			if err = b.archive(ctx, u, r, model.ArchiveReasonExpired); err != nil {
				return err
			}
		}
		if err = u.store.DeleteReport(ctx, r.ID); err != nil {
			return err
		}
	}

	// reporter calls also retry ledger entries that failed earlier
	u.settle = true

	if len(transfers) > 0 || len(reports) > 0 {
		logrus.Debugf("freed %d expired transfers and %d expired reports", len(transfers), len(reports))
	}
	return nil
}
