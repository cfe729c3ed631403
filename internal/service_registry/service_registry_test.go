package service_registry_test

import (
	"errors"
	"testing"

	"github.com/benmeehan/sensor-alert-engine/internal/mocks"
	"github.com/benmeehan/sensor-alert-engine/internal/service_registry"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// TestServiceRegistry_StartStop_Order tests that services start in order and stop in reverse.
func TestServiceRegistry_StartStop_Order(t *testing.T) {
	// Setup
	var calls []string
	registry := service_registry.NewServiceRegistry(zerolog.Nop())
	for _, name := range []string{"bus", "polling", "api"} {
		svc := new(mocks.MockService)
		svc.On("Start").Run(func(mock.Arguments) { calls = append(calls, "start:"+name) }).Return(nil)
		svc.On("Stop").Run(func(mock.Arguments) { calls = append(calls, "stop:"+name) }).Return(nil)
		registry.RegisterService(name, svc)
	}

	// Execute
	require.NoError(t, registry.StartServices())
	require.NoError(t, registry.StopServices())

	// Assert
	assert.Equal(t, []string{
		"start:bus", "start:polling", "start:api",
		"stop:api", "stop:polling", "stop:bus",
	}, calls)
	assert.Equal(t, []string{"bus", "polling", "api"}, registry.Names())
}

// TestServiceRegistry_RegisterService_Duplicate tests that a name is registered once.
func TestServiceRegistry_RegisterService_Duplicate(t *testing.T) {
	registry := service_registry.NewServiceRegistry(zerolog.Nop())

	registry.RegisterService("bus", new(mocks.MockService))
	registry.RegisterService("bus", new(mocks.MockService))

	assert.Equal(t, []string{"bus"}, registry.Names())
}

// TestServiceRegistry_StartServices_Rollback tests that started services are stopped on failure.
func TestServiceRegistry_StartServices_Rollback(t *testing.T) {
	// Setup
	first := new(mocks.MockService)
	second := new(mocks.MockService)
	third := new(mocks.MockService)
	startErr := errors.New("port in use")

	first.On("Start").Return(nil)
	first.On("Stop").Return(nil)
	second.On("Start").Return(startErr)

	registry := service_registry.NewServiceRegistry(zerolog.Nop())
	registry.RegisterService("bus", first)
	registry.RegisterService("api", second)
	registry.RegisterService("polling", third)

	// Execute
	err := registry.StartServices()

	// Assert
	assert.ErrorIs(t, err, startErr)
	first.AssertExpectations(t)
	second.AssertNotCalled(t, "Stop")
	third.AssertNotCalled(t, "Start")
}

// TestServiceRegistry_StopServices_CollectsErrors tests that every service is stopped
// even when some fail.
func TestServiceRegistry_StopServices_CollectsErrors(t *testing.T) {
	// Setup
	first := new(mocks.MockService)
	second := new(mocks.MockService)
	stopErr := errors.New("not running")
	first.On("Stop").Return(nil)
	second.On("Stop").Return(stopErr)

	registry := service_registry.NewServiceRegistry(zerolog.Nop())
	registry.RegisterService("bus", first)
	registry.RegisterService("api", second)

	// Execute
	err := registry.StopServices()

	// Assert
	assert.ErrorIs(t, err, stopErr)
	assert.ErrorContains(t, err, "failed to stop api")
	first.AssertExpectations(t)
}
