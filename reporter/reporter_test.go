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

package reporter

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jerry-enebeli/xbridge/client"
	"github.com/jerry-enebeli/xbridge/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockBridge struct {
	mock.Mock
}

func (m *MockBridge) Transfers(ctx context.Context, unexpiredOnly bool) ([]model.Transfer, error) {
	args := m.Called(ctx, unexpiredOnly)
	transfers, _ := args.Get(0).([]model.Transfer)
	return transfers, args.Error(1)
}

func (m *MockBridge) Reports(ctx context.Context, unexpiredOnly bool) ([]model.Report, error) {
	args := m.Called(ctx, unexpiredOnly)
	reports, _ := args.Get(0).([]model.Report)
	return reports, args.Error(1)
}

func (m *MockBridge) SubmitReport(ctx context.Context, claim model.Transfer) (*model.Report, error) {
	args := m.Called(ctx, claim)
	report, _ := args.Get(0).(*model.Report)
	return report, args.Error(1)
}

func (m *MockBridge) Execute(ctx context.Context, reportID uint64) (*model.Report, error) {
	args := m.Called(ctx, reportID)
	report, _ := args.Get(0).(*model.Report)
	return report, args.Error(1)
}

func (m *MockBridge) MarkFailed(ctx context.Context, reportID uint64) (*model.Report, error) {
	args := m.Called(ctx, reportID)
	report, _ := args.Get(0).(*model.Report)
	return report, args.Error(1)
}

var (
	tok = model.Symbol{Code: "TOK", Precision: 4}
	t0  = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

func transfer(id uint64) model.Transfer {
	return model.Transfer{
		ID:              id,
		TransactionID:   "tx",
		FromBlockchain:  "eos",
		ToBlockchain:    "wax",
		FromAccount:     "sender",
		ToAccount:       "dave",
		Quantity:        model.NewAsset(10000, tok),
		TransactionTime: t0,
		ExpiresAt:       t0.Add(time.Hour),
	}
}

func first(int) int { return 0 }

func TestTick_ReportsUnreportedTransfer(t *testing.T) {
	source, destination := new(MockBridge), new(MockBridge)
	ctx := context.Background()

	source.On("Transfers", ctx, true).Return([]model.Transfer{transfer(1), transfer(2)}, nil)
	destination.On("Reports", ctx, true).Return([]model.Report{
		{ID: 1, Transfer: transfer(1), ConfirmedBy: []string{"alice"}},
	}, nil)
	destination.On("SubmitReport", ctx, transfer(2)).Return(&model.Report{ID: 2}, nil)

	r := New("alice", source, destination, WithPicker(first), WithClock(func() time.Time { return t0 }))
	require.NoError(t, r.Tick(ctx))

	destination.AssertExpectations(t)
	destination.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
	assert.Equal(t, t0, r.LastPulse())
}

func TestTick_SkipsExpiredAndWaitsToSettle(t *testing.T) {
	source, destination := new(MockBridge), new(MockBridge)
	ctx := context.Background()
	now := t0

	expired := transfer(1)
	expired.ExpiresAt = t0.Add(-time.Second)
	source.On("Transfers", ctx, true).Return([]model.Transfer{expired, transfer(2)}, nil)
	destination.On("Reports", ctx, true).Return([]model.Report{}, nil)
	destination.On("SubmitReport", ctx, transfer(2)).Return(&model.Report{ID: 1}, nil).Once()

	r := New("alice", source, destination, WithPicker(first), WithSettle(time.Minute), WithClock(func() time.Time { return now }))
	require.NoError(t, r.Tick(ctx))
	destination.AssertNotCalled(t, "SubmitReport", mock.Anything, mock.Anything)

	now = t0.Add(time.Minute)
	require.NoError(t, r.Tick(ctx))
	destination.AssertExpectations(t)
}

func TestTick_ExecutesOrFlagsFailure(t *testing.T) {
	source, destination := new(MockBridge), new(MockBridge)
	ctx := context.Background()

	source.On("Transfers", ctx, true).Return([]model.Transfer{}, nil)
	destination.On("Reports", ctx, true).Return([]model.Report{
		{ID: 1, Transfer: transfer(1), Confirmed: true, Executed: true},
		{ID: 2, Transfer: transfer(2), Confirmed: true, FailedBy: []string{"alice"}},
		{ID: 3, Transfer: transfer(3)},
		{ID: 4, Transfer: transfer(4), Confirmed: true},
	}, nil)
	destination.On("Execute", ctx, uint64(4)).Return(nil, errors.New("insufficient funds"))
	destination.On("MarkFailed", ctx, uint64(4)).Return(&model.Report{ID: 4}, nil)

	r := New("alice", source, destination, WithPicker(first), WithClock(func() time.Time { return t0 }))
	require.NoError(t, r.Tick(ctx))
	destination.AssertExpectations(t)
}

func TestTick_ExecuteSuccessDoesNotFlag(t *testing.T) {
	source, destination := new(MockBridge), new(MockBridge)
	ctx := context.Background()

	source.On("Transfers", ctx, true).Return([]model.Transfer{}, nil)
	destination.On("Reports", ctx, true).Return([]model.Report{{ID: 4, Transfer: transfer(4), Confirmed: true}}, nil)
	destination.On("Execute", ctx, uint64(4)).Return(&model.Report{ID: 4, Executed: true}, nil)

	r := New("alice", source, destination, WithPicker(first))
	require.NoError(t, r.Tick(ctx))
	destination.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything)
}

func TestTick_FetchErrorIsPermanentOnClientError(t *testing.T) {
	source, destination := new(MockBridge), new(MockBridge)
	ctx := context.Background()

	source.On("Transfers", ctx, true).Return(nil, &client.Error{StatusCode: http.StatusUnauthorized, Message: "Invalid API key"}).Once()

	r := New("alice", source, destination)
	err := r.Tick(ctx)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, client.StatusCode(err))
	source.AssertNumberOfCalls(t, "Transfers", 1)
	assert.True(t, r.LastPulse().IsZero())
}

func TestRun_StopsWithContext(t *testing.T) {
	source, destination := new(MockBridge), new(MockBridge)
	source.On("Transfers", mock.Anything, true).Return([]model.Transfer{}, nil)
	destination.On("Reports", mock.Anything, true).Return([]model.Report{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New("alice", source, destination, WithInterval(time.Millisecond))
	assert.NoError(t, r.Run(ctx))
}
