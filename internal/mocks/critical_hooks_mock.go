package mocks

import (
	"github.com/benmeehan/sensor-alert-engine/internal/models"
	"github.com/stretchr/testify/mock"
)

// MockCriticalHooks is a mock implementation of alerts.CriticalHooks
type MockCriticalHooks struct {
	mock.Mock
}

func (m *MockCriticalHooks) Notify(alert *models.Alert, message string) {
	m.Called(alert, message)
}

func (m *MockCriticalHooks) LogEvent(alert *models.Alert, event string) {
	m.Called(alert, event)
}
