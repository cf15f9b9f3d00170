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
	"embed"
	"fmt"
	"time"

	"github.com/jerry-enebeli/xbridge/config"
	"github.com/jerry-enebeli/xbridge/database"
	"github.com/jerry-enebeli/xbridge/internal/apierror"
	redlock "github.com/jerry-enebeli/xbridge/internal/lock"
	"github.com/jerry-enebeli/xbridge/internal/notification"
	redis_db "github.com/jerry-enebeli/xbridge/internal/redis-db"
	"github.com/jerry-enebeli/xbridge/model"
	"github.com/jerry-enebeli/xbridge/tokenledger"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	stateLockKey     = "xbridge:state"
	stateLockTimeout = 30 * time.Second
	stateLockWait    = 10 * time.Second
)

var tracer = otel.Tracer("xbridge")

//go:embed sql/*.sql
var SQLFiles embed.FS

// Bridge is the bridge service. It owns report consensus, the transfer log,
// the fee ledger and garbage collection of expired state.
type Bridge struct {
	datasource   database.IDataSource
	ledger       tokenledger.TokenLedger
	publisher    Publisher
	redis        redis.UniversalClient
	account      string
	chains       map[string]string
	system       map[string]bool
	maxEvictions int
	now          func() time.Time
}

// Option customises a Bridge built by NewBridge.
type Option func(*Bridge)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) { b.now = now }
}

// WithPublisher sets where committed events are sent.
func WithPublisher(p Publisher) Option {
	return func(b *Bridge) { b.publisher = p }
}

// WithRedis serialises calls across replicas with a Redis lock on top of the
// datasource's own serialisation.
func WithRedis(client redis.UniversalClient) Option {
	return func(b *Bridge) { b.redis = client }
}

// NewBridge builds a Bridge on top of db and ledger using the loaded
// configuration. When Redis is configured and no publisher is given, events
// go to the asynq event queue.
func NewBridge(db database.IDataSource, ledger tokenledger.TokenLedger, opts ...Option) (*Bridge, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	b := &Bridge{
		datasource:   db,
		ledger:       ledger,
		account:      configuration.Bridge.Account,
		chains:       make(map[string]string, len(configuration.Bridge.Chains)),
		system:       make(map[string]bool, len(configuration.Bridge.SystemAccounts)+1),
		maxEvictions: configuration.Bridge.MaxEvictions,
		now:          func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
	for chain, account := range configuration.Bridge.Chains {
		b.chains[normalizeChain(chain)] = account
	}
	b.system[b.account] = true
	for _, account := range configuration.Bridge.SystemAccounts {
		b.system[account] = true
	}
	if b.maxEvictions <= 0 {
		b.maxEvictions = config.DEFAULT_MAX_EVICTIONS
	}

	for _, opt := range opts {
		opt(b)
	}

	if configuration.Redis.Dns != "" && (b.redis == nil || b.publisher == nil) {
		if b.redis == nil {
			redisClient, err := redis_db.NewRedisClient([]string{configuration.Redis.Dns}, configuration.Redis.SkipTLSVerify)
			if err != nil {
				return nil, err
			}
			b.redis = redisClient.Client()
		}
		if b.publisher == nil {
			queue, err := NewQueue(configuration)
			if err != nil {
				return nil, err
			}
			notification.RegisterWebhookSender(queue.SendWebhookEvent)
			b.publisher = queue
		}
	}
	if b.publisher == nil {
		b.publisher = logPublisher{}
	}
	return b, nil
}

// Account is the identity the bridge holds custody under.
func (b *Bridge) Account() string {
	return b.account
}

// unit is the state of one all-or-nothing call.
type unit struct {
	store   database.Store
	now     time.Time
	events  []model.Event
	reviews []*model.ExpiredReport
	// settle is set when pending ledger entries should be applied after commit.
	settle bool
}

func (u *unit) emit(name string, data interface{}) {
	u.events = append(u.events, model.Event{Name: name, Data: data, OccurredAt: u.now})
}

func logAndRecordError(span trace.Span, msg string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
	if apierror.CodeOf(err) == apierror.ErrInternalServer || apierror.CodeOf(err) == apierror.ErrInvariantViolation {
		logrus.Errorf("%s: %v", msg, err)
	} else {
		logrus.Debugf("%s: %v", msg, err)
	}
	return err
}

// run executes fn as one indivisible call against the state store. Events and
// review requests are only released once the call committed.
func (b *Bridge) run(ctx context.Context, name string, fn func(ctx context.Context, u *unit) error) error {
	ctx, span := tracer.Start(ctx, name)
	defer span.End()

	if b.redis != nil {
		locker := redlock.NewLocker(b.redis, stateLockKey, model.GenerateUUIDWithSuffix("loc"))
		if err := locker.WaitLock(ctx, stateLockTimeout, stateLockWait); err != nil {
			return logAndRecordError(span, "state lock error", apierror.NewAPIError(apierror.ErrInternalServer, "the bridge is busy, try again", err))
		}
		defer func(locker *redlock.Locker) {
			if err := locker.Unlock(context.Background()); err != nil {
				logrus.Error("lock error ", err)
			}
		}(locker)
	}

	var u *unit
	err := b.datasource.Atomic(ctx, func(store database.Store) error {
		u = &unit{store: store, now: b.now()}
		return fn(ctx, u)
	})
	if err != nil {
		return logAndRecordError(span, fmt.Sprintf("%s failed", name), err)
	}

	span.SetAttributes(attribute.Int("xbridge.events", len(u.events)))
	b.release(ctx, u)
	if u.settle {
		if _, err = b.SettleLedger(ctx); err != nil {
			logrus.Errorf("ledger settlement after %s failed: %v", name, err)
		}
	}
	return nil
}

func (b *Bridge) release(ctx context.Context, u *unit) {
	if len(u.events) > 0 {
		if err := b.publisher.Publish(ctx, u.events...); err != nil {
			logrus.Errorf("failed to publish %d events: %v", len(u.events), err)
		}
	}
	for _, archived := range u.reviews {
		notification.NotifyReview("Report needs manual review", map[string]string{
			"Report":   fmt.Sprintf("%d", archived.Report.ID),
			"Transfer": fmt.Sprintf("%s #%d", archived.Report.Transfer.FromBlockchain, archived.Report.Transfer.ID),
			"Quantity": archived.Report.Transfer.Quantity.String(),
			"Reason":   archived.Reason,
		})
	}
}

func (b *Bridge) view(ctx context.Context, fn func(store database.Store) error) error {
	return b.datasource.View(ctx, fn)
}

func loadSettings(ctx context.Context, store database.Store) (*model.Settings, error) {
	settings, err := store.GetSettings(ctx)
	if apierror.Is(err, apierror.ErrNotFound) {
		return nil, apierror.NewAPIError(apierror.ErrInvalidInput, "the bridge has not been initialised", nil)
	}
	return settings, err
}

// reporterWorked checks reporter is registered and credits it one work point.
func reporterWorked(ctx context.Context, store database.Store, account string) (*model.Reporter, error) {
	reporter, err := store.GetReporter(ctx, account)
	if apierror.Is(err, apierror.ErrNotFound) {
		return nil, apierror.NewAPIError(apierror.ErrForbidden, "the signer is not a known reporter", nil)
	}
	if err != nil {
		return nil, err
	}
	reporter.Points++
	if err = store.UpdateReporter(ctx, reporter); err != nil {
		return nil, err
	}
	return reporter, nil
}
