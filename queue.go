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

	"github.com/hibiken/asynq"
	"github.com/jerry-enebeli/xbridge/config"
	redis_db "github.com/jerry-enebeli/xbridge/internal/redis-db"
	"github.com/jerry-enebeli/xbridge/model"
	"github.com/sirupsen/logrus"
)

// Publisher receives the events of every committed call.
type Publisher interface {
	Publish(ctx context.Context, events ...model.Event) error
}

// logPublisher is used when no queue is configured.
type logPublisher struct{}

func (logPublisher) Publish(_ context.Context, events ...model.Event) error {
	for _, e := range events {
		logrus.Debugf("event %s", e.Name)
	}
	return nil
}

// Queue publishes bridge events and webhook deliveries on asynq.
type Queue struct {
	Client       *asynq.Client
	Inspector    *asynq.Inspector
	eventQueue   string
	webhookQueue string
}

// NewQueue initializes a new Queue instance with the provided configuration.
//
// Parameters:
// - conf *config.Configuration: The configuration for the queue.
//
// Returns:
// - *Queue: A pointer to the newly created Queue instance.
// - error: An error if the Redis DNS cannot be parsed.
func NewQueue(conf *config.Configuration) (*Queue, error) {
	queueOptions, err := redis_db.AsynqOpt(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}

	eventQueue, webhookQueue := conf.Queue.EventQueue, conf.Queue.WebhookQueue
	if eventQueue == "" {
		eventQueue = config.DEFAULT_EVENT_QUEUE
	}
	if webhookQueue == "" {
		webhookQueue = config.DEFAULT_WEBHOOK_QUEUE
	}

	return &Queue{
		Client:       asynq.NewClient(queueOptions),
		Inspector:    asynq.NewInspector(queueOptions),
		eventQueue:   eventQueue,
		webhookQueue: webhookQueue,
	}, nil
}

// Publish enqueues every event on the event queue.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - events ...model.Event: The committed events to publish.
//
// Returns:
// - error: The first enqueue error, if any.
func (q *Queue) Publish(ctx context.Context, events ...model.Event) error {
	ctx, span := tracer.Start(ctx, "Publishing events")
	defer span.End()

	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return err
		}
		task := asynq.NewTask(q.eventQueue, payload, asynq.Queue(q.eventQueue), asynq.MaxRetry(5))
		info, err := q.Client.EnqueueContext(ctx, task)
		if err != nil {
			logrus.Error(err, info)
			return err
		}
		logrus.Debugf(" [*] Successfully enqueued event: %s", e.Name)
	}
	return nil
}

// SendWebhook enqueues a webhook delivery. Nothing is enqueued when no
// webhook URL is configured.
func (q *Queue) SendWebhook(ctx context.Context, newWebhook NewWebhook) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}
	if conf.Notification.Webhook.Url == "" {
		return nil
	}

	payload, err := json.Marshal(newWebhook)
	if err != nil {
		return err
	}
	task := asynq.NewTask(q.webhookQueue, payload, asynq.Queue(q.webhookQueue))
	info, err := q.Client.EnqueueContext(ctx, task)
	if err != nil {
		logrus.Error(err, info)
		return err
	}
	return nil
}

// SendWebhookEvent adapts SendWebhook to notification.WebhookSender.
func (q *Queue) SendWebhookEvent(event string, payload interface{}) error {
	return q.SendWebhook(context.Background(), NewWebhook{Event: event, Payload: payload})
}

// ProcessEvent handles one task of the event queue by forwarding the event to
// the webhook queue.
func (q *Queue) ProcessEvent(ctx context.Context, task *asynq.Task) error {
	var event model.Event
	if err := json.Unmarshal(task.Payload(), &event); err != nil {
		logrus.Errorf("Error unmarshaling event payload: %v", err)
		return err
	}
	logrus.Infof("Processing event: %s", event.Name)
	return q.SendWebhook(ctx, NewWebhook{Event: event.Name, Payload: event.Data})
}

func (q *Queue) Close() error {
	if err := q.Inspector.Close(); err != nil {
		return err
	}
	return q.Client.Close()
}
