package main

import (
	"flag"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/benmeehan/sensor-alert-engine/internal/alerts"
	"github.com/benmeehan/sensor-alert-engine/internal/api"
	"github.com/benmeehan/sensor-alert-engine/internal/events"
	"github.com/benmeehan/sensor-alert-engine/internal/logger"
	"github.com/benmeehan/sensor-alert-engine/internal/metrics_collectors"
	"github.com/benmeehan/sensor-alert-engine/internal/service_registry"
	"github.com/benmeehan/sensor-alert-engine/internal/services"
	"github.com/benmeehan/sensor-alert-engine/internal/state_managers"
	"github.com/benmeehan/sensor-alert-engine/internal/utils"
	"github.com/benmeehan/sensor-alert-engine/pkg/file"
	"github.com/benmeehan/sensor-alert-engine/pkg/mqtt"
	"github.com/benmeehan/sensor-alert-engine/pkg/upstream"
	"github.com/google/uuid"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML configuration file")
	flag.Parse()

	fileClient := file.NewFileService()

	// Load configuration from file
	config, err := utils.LoadConfig(*configPath, fileClient)
	if err != nil {
		bootLog := logger.Init("info", false)
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.Init(config.Logging.Level, config.Logging.Pretty)

	// Event bus and observers
	bus := events.NewBus(logger.WithComponent("event_bus"))
	if config.Events.LogAlerts {
		bus.Subscribe(events.NewAlertObserver(logger.WithComponent("alert_observer")))
	}
	var stats *events.StatisticsObserver
	if config.Events.Statistics {
		stats = events.NewStatisticsObserver()
		bus.Subscribe(stats)
	}

	var mqttClient *mqtt.MqttService
	if config.MQTT.Enabled {
		// Generate a unique MQTT Client ID by appending a UUID
		clientID := config.MQTT.ClientID + "-" + uuid.New().String()
		log.Info().Str("client_id", clientID).Msg("Using MQTT Client ID")

		mqttClient = mqtt.NewMqttService(fileClient)
		err = mqttClient.Initialize(mqtt.Options{
			Broker:         config.MQTT.Broker,
			ClientID:       clientID,
			Username:       config.MQTT.Username,
			Password:       config.MQTT.Password,
			CACertificate:  config.MQTT.CACertificate,
			ConnectTimeout: config.MQTT.ConnectTimeout,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize MQTT connection")
		}
		bus.Subscribe(events.NewMQTTBridgeObserver(mqttClient, config.MQTT.TopicPrefix, config.MQTT.QOS, config.MQTT.PublishTimeout))
	}

	// Store and alert factory
	store := state_managers.NewDeviceStore(bus, logger.WithComponent("store"),
		state_managers.WithRetention(config.Alerts.Retention))
	store.SetEvaluationEnabled(config.Polling.EnabledAtStart)

	factoryOpts := []alerts.Option{}
	if config.Alerts.Seed != 0 {
		factoryOpts = append(factoryOpts, alerts.WithRand(rand.New(rand.NewPCG(config.Alerts.Seed, config.Alerts.Seed))))
	}
	factory := alerts.NewFactory(logger.WithComponent("alerts"), factoryOpts...)

	client := upstream.NewHTTPClient(
		config.Upstream.BaseURL,
		upstream.Paths{
			Devices:    config.Upstream.DevicesPath,
			Readings:   config.Upstream.ReadingsPath,
			Thresholds: config.Upstream.ThresholdsPath,
		},
		&http.Client{},
		logger.WithComponent("upstream"),
	)

	polling := services.NewPollingService(client, store, factory, bus, services.PollingSettings{
		Interval:       config.Polling.Interval,
		FallbackDelay:  config.Polling.FallbackDelay,
		DeviceAttempts: config.Polling.DeviceAttempts,
		DeviceBackoff:  config.Polling.DeviceBackoff,
		DeviceTimeout:  config.Polling.DeviceTimeout,
		DataTimeout:    config.Polling.DataTimeout,
		FetchWorkers:   config.Polling.FetchWorkers,
		AlertMaxAge:    config.Alerts.MaxAge,
		AutoResolve:    config.Polling.AutoResolve,
	}, logger.WithComponent("polling"))

	// Registration order is start order; shutdown runs in reverse so the bus drains last
	serviceRegistry := service_registry.NewServiceRegistry(logger.WithComponent("registry"))
	serviceRegistry.RegisterService("event_bus", bus)
	serviceRegistry.RegisterService("polling", polling)

	if config.API.Enabled {
		var statsProvider api.EventStatsProvider
		if stats != nil {
			statsProvider = stats
		}
		apiLogger := logger.WithComponent("api")
		handler := api.NewHandler(store, statsProvider, metrics_collectors.NewHostMetricsRegistry(apiLogger), apiLogger)
		server := api.NewServer(config.API.Address, api.NewRouter(handler, apiLogger), config.API.ShutdownTimeout, apiLogger)
		serviceRegistry.RegisterService("api", server)
	}

	if err := serviceRegistry.StartServices(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start services")
	}
	log.Info().Strs("services", serviceRegistry.Names()).Msg("All services started successfully")

	// Handle graceful shutdown
	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down gracefully...")
	if err := serviceRegistry.StopServices(); err != nil {
		log.Error().Err(err).Msg("Some services failed to stop")
	}
	if mqttClient != nil {
		mqttClient.Disconnect(250)
	}
	log.Info().Msg("Shutdown complete")
}
