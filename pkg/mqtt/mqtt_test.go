package mqtt_test

import (
	"errors"
	"testing"

	"github.com/benmeehan/sensor-alert-engine/internal/mocks"
	"github.com/benmeehan/sensor-alert-engine/pkg/mqtt"
	"github.com/stretchr/testify/assert"
)

// TestMqttService_Initialize_CAReadError tests that an unreadable CA file aborts before connecting.
func TestMqttService_Initialize_CAReadError(t *testing.T) {
	// Setup
	fileClient := new(mocks.MockFileOperations)
	readErr := errors.New("no such file")
	fileClient.On("ReadFileRaw", "/etc/ca.pem").Return(nil, readErr)
	service := mqtt.NewMqttService(fileClient)

	// Execute
	err := service.Initialize(mqtt.Options{
		Broker:        "tls://broker:8883",
		ClientID:      "engine-test",
		CACertificate: "/etc/ca.pem",
	})

	// Assert
	assert.ErrorIs(t, err, readErr)
	fileClient.AssertExpectations(t)
}

// TestMqttService_Initialize_InvalidCA tests that a non-PEM CA file is rejected.
func TestMqttService_Initialize_InvalidCA(t *testing.T) {
	// Setup
	fileClient := new(mocks.MockFileOperations)
	fileClient.On("ReadFileRaw", "/etc/ca.pem").Return([]byte("not a certificate"), nil)
	service := mqtt.NewMqttService(fileClient)

	// Execute
	err := service.Initialize(mqtt.Options{
		Broker:        "tls://broker:8883",
		ClientID:      "engine-test",
		CACertificate: "/etc/ca.pem",
	})

	// Assert
	assert.EqualError(t, err, "failed to append CA certificate")
}

// TestMqttService_Disconnect_NotInitialized tests that disconnecting an unused service is safe.
func TestMqttService_Disconnect_NotInitialized(t *testing.T) {
	service := mqtt.NewMqttService(new(mocks.MockFileOperations))

	assert.NotPanics(t, func() { service.Disconnect(250) })
}
