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

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
	"github.com/jerry-enebeli/xbridge"
	"github.com/jerry-enebeli/xbridge/config"
	redis_db "github.com/jerry-enebeli/xbridge/internal/redis-db"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.elastic.co/apm/module/apmlogrus/v2"
)

func init() {
	logrus.AddHook(&apmlogrus.Hook{})
}

// initializeQueues weights webhook delivery above event fan-out so receivers
// are not starved during bursts.
func initializeQueues(conf *config.Configuration) map[string]int {
	return map[string]int{
		conf.Queue.WebhookQueue: 3,
		conf.Queue.EventQueue:   1,
	}
}

func initializeWorkerServer(conf *config.Configuration, queues map[string]int) (*asynq.Server, error) {
	redisOption, err := redis_db.AsynqOpt(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return nil, fmt.Errorf("error parsing Redis URL: %v", err)
	}

	return asynq.NewServer(redisOption, asynq.Config{
		Concurrency: conf.Queue.Concurrency,
		Queues:      queues,
	}), nil
}

func initializeTaskHandlers(conf *config.Configuration, queue *xbridge.Queue, mux *asynq.ServeMux) {
	mux.HandleFunc(conf.Queue.EventQueue, queue.ProcessEvent)
	mux.HandleFunc(conf.Queue.WebhookQueue, xbridge.ProcessWebhook)
}

// workerCommands defines the "workers" command. The workers fan bridge events
// out to the webhook queue and deliver webhooks.
func workerCommands(b *bridgeInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:         "workers",
		Short:       "start bridge workers",
		Annotations: map[string]string{skipBridge: "true"},
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			conf := b.cnf
			if conf.Redis.Dns == "" {
				log.Fatal("workers need redis.dns to be configured")
			}

			shutdown, err := initializeTracing(ctx, conf)
			if err != nil {
				log.Fatal(err)
			}
			defer func() {
				if err := shutdown(ctx); err != nil {
					log.Printf("Error during shutdown: %v", err)
				}
			}()

			queue, err := xbridge.NewQueue(conf)
			if err != nil {
				log.Fatal(err)
			}
			defer queue.Close()

			srv, err := initializeWorkerServer(conf, initializeQueues(conf))
			if err != nil {
				log.Fatal(err)
			}

			mux := asynq.NewServeMux()
			initializeTaskHandlers(conf, queue, mux)

			redisOption, _ := redis_db.AsynqOpt(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
			h := asynqmon.New(asynqmon.Options{
				RootPath:     "/monitoring",
				RedisConnOpt: redisOption,
			})

			go func() {
				monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
				log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
				if err := http.ListenAndServe(monitoringAddr, h); err != nil {
					log.Fatalf("could not start asynqmon server: %v", err)
				}
			}()

			if err := srv.Run(mux); err != nil {
				log.Fatalf("could not run server: %v", err)
			}
		},
	}

	return cmd
}
