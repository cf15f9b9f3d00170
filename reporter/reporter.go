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

// Package reporter implements the off-chain relayer. A reporter watches the
// outbound transfers of a source bridge, reports them to the destination
// bridge and executes the reports that reached consensus there.
package reporter

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jerry-enebeli/xbridge/client"
	"github.com/jerry-enebeli/xbridge/model"
	"github.com/sirupsen/logrus"
)

const DefaultPollInterval = 10 * time.Second

// Bridge is the part of the bridge API a reporter uses.
type Bridge interface {
	Transfers(ctx context.Context, unexpiredOnly bool) ([]model.Transfer, error)
	Reports(ctx context.Context, unexpiredOnly bool) ([]model.Report, error)
	SubmitReport(ctx context.Context, claim model.Transfer) (*model.Report, error)
	Execute(ctx context.Context, reportID uint64) (*model.Report, error)
	MarkFailed(ctx context.Context, reportID uint64) (*model.Report, error)
}

type Reporter struct {
	name        string
	source      Bridge
	destination Bridge
	interval    time.Duration
	settle      time.Duration
	pick        func(n int) int
	now         func() time.Time

	mu        sync.Mutex
	firstSeen map[string]time.Time
	lastPulse time.Time
}

type Option func(*Reporter)

// WithSettle delays reporting a transfer until it has been visible on the
// source bridge for at least d.
func WithSettle(d time.Duration) Option {
	return func(r *Reporter) { r.settle = d }
}

func WithInterval(d time.Duration) Option {
	return func(r *Reporter) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithPicker replaces the random choice among candidates.
func WithPicker(pick func(n int) int) Option {
	return func(r *Reporter) { r.pick = pick }
}

func WithClock(now func() time.Time) Option {
	return func(r *Reporter) { r.now = now }
}

func New(name string, source, destination Bridge, opts ...Option) *Reporter {
	r := &Reporter{
		name:        name,
		source:      source,
		destination: destination,
		interval:    DefaultPollInterval,
		pick:        rand.Intn,
		now:         time.Now,
		firstSeen:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run ticks until ctx is done. Errors of a tick are logged and the next tick
// starts after the poll interval.
func (r *Reporter) Run(ctx context.Context) error {
	logrus.Infof("reporter %s started", r.name)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if err := r.Tick(ctx); err != nil {
			logrus.Errorf("reporter %s: %v", r.name, err)
		}
		select {
		case <-ctx.Done():
			logrus.Infof("reporter %s stopped", r.name)
			return nil
		case <-ticker.C:
		}
	}
}

// LastPulse is the time of the last tick whose state fetch succeeded.
func (r *Reporter) LastPulse() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastPulse
}

// Tick runs one iteration: report one unreported transfer, then execute one
// confirmed report.
func (r *Reporter) Tick(ctx context.Context) error {
	var (
		transfers []model.Transfer
		reports   []model.Report
	)
	err := retry(ctx, func() error {
		var err error
		if transfers, err = r.source.Transfers(ctx, true); err != nil {
			return err
		}
		reports, err = r.destination.Reports(ctx, true)
		return err
	})
	if err != nil {
		return fmt.Errorf("fetching state: %w", err)
	}

	r.mu.Lock()
	r.lastPulse = r.now()
	r.mu.Unlock()

	if err := r.reportTransfers(ctx, transfers, reports); err != nil {
		return err
	}
	return r.executeReports(ctx, reports)
}

func transferKey(t model.Transfer) string {
	return fmt.Sprintf("%s|%d|%s", t.FromBlockchain, t.ID, t.TransactionID)
}

func (r *Reporter) reportTransfers(ctx context.Context, transfers []model.Transfer, reports []model.Report) error {
	now := r.now()
	reported := make(map[string]bool)
	for _, rep := range reports {
		if rep.HasConfirmed(r.name) {
			reported[transferKey(rep.Transfer)] = true
		}
	}

	r.mu.Lock()
	live := make(map[string]bool, len(transfers))
	var candidates []model.Transfer
	for _, t := range transfers {
		key := transferKey(t)
		live[key] = true
		if t.Expired(now) || reported[key] {
			continue
		}
		seen, ok := r.firstSeen[key]
		if !ok {
			logrus.Infof("reporter %s saw transfer %s: %s@%s == %s ==> %s@%s",
				r.name, key, t.FromAccount, t.FromBlockchain, t.Quantity, t.ToAccount, t.ToBlockchain)
			r.firstSeen[key] = now
			seen = now
		}
		if now.Sub(seen) >= r.settle {
			candidates = append(candidates, t)
		}
	}
	for key := range r.firstSeen {
		if !live[key] {
			delete(r.firstSeen, key)
		}
	}
	r.mu.Unlock()

	if len(candidates) == 0 {
		return nil
	}

	transfer := candidates[r.pick(len(candidates))]
	report, err := r.destination.SubmitReport(ctx, transfer)
	if err != nil {
		return fmt.Errorf("reporting transfer %s: %w", transferKey(transfer), err)
	}
	logrus.Infof("reporter %s reported transfer %s as report %d", r.name, transferKey(transfer), report.ID)
	return nil
}

func (r *Reporter) executeReports(ctx context.Context, reports []model.Report) error {
	var candidates []model.Report
	for _, rep := range reports {
		if rep.Confirmed && !rep.Executed && !rep.Failed && !rep.HasFailed(r.name) {
			candidates = append(candidates, rep)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	report := candidates[r.pick(len(candidates))]
	_, err := r.destination.Execute(ctx, report.ID)
	if err == nil {
		logrus.Infof("reporter %s executed report %d (transfer %s)", r.name, report.ID, transferKey(report.Transfer))
		return nil
	}
	logrus.Errorf("reporter %s could not execute report %d (transfer %s): %v", r.name, report.ID, transferKey(report.Transfer), err)

	if _, err = r.destination.MarkFailed(ctx, report.ID); err != nil {
		return fmt.Errorf("flagging report %d as failed: %w", report.ID, err)
	}
	logrus.Infof("reporter %s reported failed execution of report %d", r.name, report.ID)
	return nil
}

// retry retries transient failures. A 4xx answer of the bridge will not get
// better by asking again.
func retry(ctx context.Context, op func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = 5 * time.Second

	return backoff.Retry(func() error {
		err := op()
		if code := client.StatusCode(err); code >= http.StatusBadRequest && code < http.StatusInternalServerError {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(policy, ctx))
}
