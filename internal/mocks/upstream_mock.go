package mocks

import (
	"context"

	"github.com/benmeehan/sensor-alert-engine/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockUpstreamClient is a mock implementation of the upstream.Client interface
type MockUpstreamClient struct {
	mock.Mock
}

func (m *MockUpstreamClient) ListDevices(ctx context.Context) ([]models.Device, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Device), args.Error(1)
}

func (m *MockUpstreamClient) LatestReadings(ctx context.Context, deviceID int64) ([]models.Reading, error) {
	args := m.Called(ctx, deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Reading), args.Error(1)
}

func (m *MockUpstreamClient) Thresholds(ctx context.Context, deviceID int64) ([]models.Threshold, error) {
	args := m.Called(ctx, deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Threshold), args.Error(1)
}
