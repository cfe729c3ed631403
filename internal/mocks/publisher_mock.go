package mocks

import (
	"github.com/stretchr/testify/mock"
)

// MockPublisher is a mock implementation of events.Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(kind string, payload map[string]any) {
	m.Called(kind, payload)
}
