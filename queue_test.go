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
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/jerry-enebeli/xbridge/config"
	"github.com/jerry-enebeli/xbridge/database"
	"github.com/jerry-enebeli/xbridge/model"
	"github.com/jerry-enebeli/xbridge/tokenledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T, webhookURL string) (*Queue, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	conf := &config.Configuration{
		Redis: config.RedisConfig{Dns: mr.Addr()},
		Bridge: config.BridgeConfig{
			Account: bridgeAccount,
			Chains:  map[string]string{"eos": bridgeAccount, "wax": "waxbridge"},
		},
	}
	conf.Notification.Webhook.Url = webhookURL
	config.MockConfig(conf)

	q, err := NewQueue(conf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q, mr
}

func TestQueue_Publish(t *testing.T) {
	q, _ := newTestQueue(t, "")

	err := q.Publish(context.Background(),
		model.Event{Name: model.EventReportCreated, Data: map[string]int{"id": 1}, OccurredAt: time.Now()},
		model.Event{Name: model.EventReportConfirmed, Data: map[string]int{"id": 1}, OccurredAt: time.Now()},
	)
	require.NoError(t, err)

	tasks, err := q.Inspector.ListPendingTasks(config.DEFAULT_EVENT_QUEUE)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	var event model.Event
	require.NoError(t, json.Unmarshal(tasks[0].Payload, &event))
	assert.Equal(t, model.EventReportCreated, event.Name)
}

func TestQueue_ProcessEventForwardsToWebhookQueue(t *testing.T) {
	q, _ := newTestQueue(t, "http://hooks.local/xbridge")

	payload, err := json.Marshal(model.Event{Name: model.EventTransferRegistered, Data: map[string]int{"id": 3}})
	require.NoError(t, err)

	require.NoError(t, q.ProcessEvent(context.Background(), asynq.NewTask(config.DEFAULT_EVENT_QUEUE, payload)))

	tasks, err := q.Inspector.ListPendingTasks(config.DEFAULT_WEBHOOK_QUEUE)
	require.NoError(t, err)
	require.Len(t, tasks, 1)

	var hook NewWebhook
	require.NoError(t, json.Unmarshal(tasks[0].Payload, &hook))
	assert.Equal(t, model.EventTransferRegistered, hook.Event)
}

func TestQueue_SendWebhookWithoutURL(t *testing.T) {
	q, _ := newTestQueue(t, "")

	require.NoError(t, q.SendWebhookEvent("system.error", map[string]string{"error": "boom"}))

	queues, err := q.Inspector.Queues()
	require.NoError(t, err)
	assert.NotContains(t, queues, config.DEFAULT_WEBHOOK_QUEUE)
}

func TestQueue_ProcessEventBadPayload(t *testing.T) {
	q, _ := newTestQueue(t, "")
	err := q.ProcessEvent(context.Background(), asynq.NewTask(config.DEFAULT_EVENT_QUEUE, []byte("{")))
	assert.Error(t, err)
}

func TestNewBridge_WithRedis(t *testing.T) {
	_, mr := newTestQueue(t, "")

	b, err := NewBridge(database.NewMemoryDataSource(), tokenledger.NewMemoryLedger(bridgeAccount))
	require.NoError(t, err)
	require.NotNil(t, b.redis)
	require.IsType(t, &Queue{}, b.publisher)

	admin := as(bridgeAccount)
	_, err = b.Init(admin, InitParams{
		ChainName:   "eos",
		Token:       model.TokenInfo{Symbol: tok, Contract: tokenContract},
		ExpireAfter: 60,
		Threshold:   1,
		MinQuantity: model.NewAsset(0, tok),
	})
	require.NoError(t, err)
	_, err = b.Enable(admin, true)
	require.NoError(t, err)
	_, err = b.OnTransfer(admin, deposit(10000, "wax,dave"))
	require.NoError(t, err)

	assert.False(t, mr.Exists(stateLockKey))

	queue := b.publisher.(*Queue)
	tasks, err := queue.Inspector.ListPendingTasks(config.DEFAULT_EVENT_QUEUE)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}
