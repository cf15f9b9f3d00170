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

package notification

import (
	"fmt"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/jerry-enebeli/xbridge/config"
	"github.com/jerry-enebeli/xbridge/internal/request"
	"github.com/sirupsen/logrus"
)

// WebhookSender forwards an operator notification as a webhook event.
type WebhookSender func(event string, payload interface{}) error

var webhookSender WebhookSender

// RegisterWebhookSender installs the function NotifyError uses to mirror
// errors to the configured webhook.
func RegisterWebhookSender(sender WebhookSender) {
	webhookSender = sender
}

type slackText struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

type slackMessage struct {
	Blocks []slackBlock `json:"blocks"`
}

func buildSlackMessage(title string, fields map[string]string) slackMessage {
	msg := slackMessage{Blocks: []slackBlock{{
		Type: "header",
		Text: &slackText{Type: "plain_text", Text: title, Emoji: true},
	}}}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		msg.Blocks = append(msg.Blocks, slackBlock{
			Type:   "section",
			Fields: []slackText{{Type: "mrkdwn", Text: fmt.Sprintf("*%s:*\n%s", k, fields[k])}},
		})
	}
	return msg
}

// SlackNotification posts a message with the given title and fields to the
// configured Slack webhook. The current time is always appended.
func SlackNotification(title string, fields map[string]string) {
	conf, err := config.Fetch()
	if err != nil {
		log.Println(err)
		return
	}
	if conf.Notification.Slack.WebhookUrl == "" {
		return
	}

	withTime := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		withTime[k] = v
	}
	withTime["Time"] = time.Now().Format(time.RFC822)

	payload, err := request.ToJsonReq(buildSlackMessage(title, withTime))
	if err != nil {
		log.Println(err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, conf.Notification.Slack.WebhookUrl, payload)
	if err != nil {
		log.Println(err)
		return
	}

	if _, err = request.Call(req, nil); err != nil {
		log.Println(err)
	}
}

// NotifyError logs systemError and reports it to Slack and the registered
// webhook sender without blocking the caller.
func NotifyError(systemError error) {
	go func(systemError error) {
		logrus.Error(systemError)
		SlackNotification("Error From XBridge 🐞", map[string]string{"Error": systemError.Error()})
		if webhookSender != nil {
			if err := webhookSender("system.error", map[string]string{"error": systemError.Error()}); err != nil {
				logrus.Errorf("failed to send error webhook: %v", err)
			}
		}
	}(systemError)
}

// NotifyReview asks an operator to look at something the bridge could not
// resolve on its own, such as an archived report.
func NotifyReview(title string, fields map[string]string) {
	go SlackNotification(title, fields)
}
