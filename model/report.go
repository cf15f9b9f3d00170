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

import (
	"time"

	"github.com/jerry-enebeli/xbridge/internal/apierror"
)

// Report tracks the votes of reporters on one transfer claim.
// Executed and Failed only ever go from false to true and never both.
type Report struct {
	ID          uint64   `json:"id"`
	Transfer    Transfer `json:"transfer"`
	ConfirmedBy []string `json:"confirmed_by"`
	Confirmed   bool     `json:"confirmed"`
	FailedBy    []string `json:"failed_by"`
	Failed      bool     `json:"failed"`
	Executed    bool     `json:"executed"`
}

// NewReport creates a report holding the first confirmation of claim.
func NewReport(claim Transfer, reporter string, threshold uint32) *Report {
	r := &Report{
		Transfer:    claim,
		ConfirmedBy: []string{reporter},
		FailedBy:    []string{},
	}
	r.Promote(threshold)
	return r
}

func (r *Report) Key() TransferKey {
	return r.Transfer.Key()
}

func (r *Report) HasConfirmed(reporter string) bool {
	return contains(r.ConfirmedBy, reporter)
}

func (r *Report) HasFailed(reporter string) bool {
	return contains(r.FailedBy, reporter)
}

// Confirm adds reporter to the confirmation set.
func (r *Report) Confirm(reporter string, threshold uint32) error {
	if r.HasConfirmed(reporter) {
		return apierror.NewAPIError(apierror.ErrConflict, "the reporter has already confirmed this transfer", nil)
	}
	r.ConfirmedBy = append(r.ConfirmedBy, reporter)
	r.Promote(threshold)
	return nil
}

// Promote marks the report confirmed once enough reporters agreed. It never
// clears the flag.
func (r *Report) Promote(threshold uint32) bool {
	if r.Confirmed || uint32(len(r.ConfirmedBy)) < threshold {
		return false
	}
	r.Confirmed = true
	return true
}

// Actionable checks that the report can still be executed or failed at now.
func (r *Report) Actionable(now time.Time) error {
	switch {
	case !r.Confirmed:
		return apierror.NewAPIError(apierror.ErrConflict, "the report is not confirmed yet", nil)
	case r.Executed:
		return apierror.NewAPIError(apierror.ErrConflict, "the report has already been executed", nil)
	case r.Failed:
		return apierror.NewAPIError(apierror.ErrConflict, "the report has already failed", nil)
	case r.Transfer.Expired(now):
		return apierror.NewAPIError(apierror.ErrInvalidInput, "the transfer has already expired", nil)
	}
	return nil
}

// Fail adds reporter to the failure set and reports whether this call moved
// the report into the failed state.
func (r *Report) Fail(reporter string, threshold uint32) (bool, error) {
	if r.HasFailed(reporter) {
		return false, apierror.NewAPIError(apierror.ErrConflict, "the reporter has already marked this transfer as failed", nil)
	}
	r.FailedBy = append(r.FailedBy, reporter)
	if !r.Failed && uint32(len(r.FailedBy)) >= threshold {
		r.Failed = true
		return true, nil
	}
	return false, nil
}

// Resolved reports whether the report reached a terminal state.
func (r *Report) Resolved() bool {
	return r.Executed || r.Failed
}

func (r *Report) Clone() *Report {
	c := *r
	c.ConfirmedBy = append([]string{}, r.ConfirmedBy...)
	c.FailedBy = append([]string{}, r.FailedBy...)
	return &c
}

// ExpiredReport is an archived snapshot of a report kept for manual review.
type ExpiredReport struct {
	ID         string    `json:"id"`
	Report     Report    `json:"report"`
	Reason     string    `json:"reason"`
	ArchivedAt time.Time `json:"archived_at"`
}

const (
	ArchiveReasonExpired      = "expired"
	ArchiveReasonRefundFailed = "refund_failed"
)

func NewExpiredReport(report *Report, reason string, at time.Time) *ExpiredReport {
	return &ExpiredReport{
		ID:         GenerateUUIDWithSuffix("archive"),
		Report:     *report.Clone(),
		Reason:     reason,
		ArchivedAt: at,
	}
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
