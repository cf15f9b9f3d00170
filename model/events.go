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

package model

import "time"

const (
	EventTransferRegistered = "transfer.registered"
	EventReportCreated      = "report.created"
	EventReportConfirmed    = "report.confirmed"
	EventReportExecuted     = "report.executed"
	EventReportFailed       = "report.failed"
	EventReportArchived     = "report.archived"
	EventFeesDistributed    = "fees.distributed"
	EventLedgerApplied      = "ledger.applied"
)

// Event is a domain event published once the call that produced it committed.
type Event struct {
	Name       string      `json:"event"`
	Data       interface{} `json:"data"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// FeePayout is one reporter's share of a distribution.
type FeePayout struct {
	Reporter string `json:"reporter"`
	Points   uint64 `json:"points"`
	Amount   Asset  `json:"amount"`
}

type Distribution struct {
	ID          string      `json:"id"`
	TotalPoints uint64      `json:"total_points"`
	Distributed Asset       `json:"distributed"`
	Reserve     Asset       `json:"reserve"`
	Payouts     []FeePayout `json:"payouts"`
}
