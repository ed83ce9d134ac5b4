// Helios Core - Solar Energy Automation Controller
//
// This is the main entry point for the Helios Core application.
// Helios turns inverter power readings into device decisions:
//   - Surplus solar activates deferrable loads in priority order
//   - Grid deficit sheds loads, protecting essential devices
//   - Manual overrides always win over automation
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/helioshome/helios-core/migrations"

	"github.com/helioshome/helios-core/internal/api"
	"github.com/helioshome/helios-core/internal/automation"
	"github.com/helioshome/helios-core/internal/device"
	"github.com/helioshome/helios-core/internal/infrastructure/config"
	"github.com/helioshome/helios-core/internal/infrastructure/database"
	"github.com/helioshome/helios-core/internal/infrastructure/influxdb"
	"github.com/helioshome/helios-core/internal/infrastructure/logging"
	"github.com/helioshome/helios-core/internal/infrastructure/mqtt"
	"github.com/helioshome/helios-core/internal/inverter"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// retentionInterval is how often old automation events are pruned.
const retentionInterval = 24 * time.Hour

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Helios Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Initialise device registry, seeding the default device set on
	// first run so a fresh install has something to automate.
	deviceRepo := device.NewSQLiteRepository(db.DB)
	if seedErr := device.Seed(ctx, deviceRepo, log); seedErr != nil {
		return fmt.Errorf("seeding devices: %w", seedErr)
	}

	deviceRegistry := device.NewRegistry(deviceRepo)
	deviceRegistry.SetLogger(log)
	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", len(deviceRegistry.List()))

	// Event log
	eventRepo := automation.NewSQLiteEventRepository(db.DB)

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// WebSocket hub, shared between the API server, the automation
	// manager, and the inverter poller.
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	// Automation manager. Optional side channels are only passed when
	// configured; a nil *Client inside a non-nil interface would defeat
	// the manager's nil checks.
	var publisher automation.Publisher
	var metrics automation.MetricsWriter
	if mqttClient != nil {
		publisher = mqttClient
	}
	if influxClient != nil {
		metrics = influxClient
	}

	manager := automation.NewManager(deviceRegistry, eventRepo, publisher, hub, metrics, automation.Config{
		Enabled:         cfg.Automation.Enabled,
		MinSurplusW:     cfg.Automation.MinSurplusW,
		TariffEURPerKWh: cfg.Automation.TariffEURPerKWh,
	}, log)
	defer manager.Close()

	if restoreErr := manager.Restore(ctx); restoreErr != nil {
		return fmt.Errorf("restoring automation state: %w", restoreErr)
	}
	log.Info("automation manager initialised",
		"enabled", cfg.Automation.Enabled,
		"min_surplus_w", cfg.Automation.MinSurplusW,
	)

	// Inverter reading source
	source, err := buildInverterSource(cfg, mqttClient, log)
	if err != nil {
		return err
	}

	var telemetry inverter.TelemetryWriter
	if influxClient != nil {
		telemetry = influxClient
	}

	poller := inverter.NewPoller(source, manager, telemetry, hub,
		time.Duration(cfg.Inverter.PollInterval)*time.Second, log)
	go poller.Run(ctx)

	// Periodic event retention pruning
	if cfg.Automation.EventRetentionDays > 0 {
		go runRetentionLoop(ctx, eventRepo, cfg.Automation.EventRetentionDays, log)
	}

	// API server
	apiServer, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Logger:      log,
		Registry:    deviceRegistry,
		Manager:     manager,
		MQTT:        mqttClient,
		Influx:      influxClient,
		ExternalHub: hub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started", "host", cfg.API.Host, "port", cfg.API.Port)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Automation manager
	// 3. InfluxDB (if enabled)
	// 4. MQTT (if enabled)
	// 5. Database

	log.Info("Helios Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HELIOS_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HELIOS_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// buildInverterSource selects the power reading source from config.
//
// "mqtt" reads gateway publications from the power reading topic and
// requires MQTT to be enabled; "simulator" (the default) generates a
// plausible solar day locally.
func buildInverterSource(cfg *config.Config, mqttClient *mqtt.Client, log *logging.Logger) (inverter.Source, error) {
	switch cfg.Inverter.Source {
	case "mqtt":
		if mqttClient == nil {
			return nil, fmt.Errorf("inverter source %q requires MQTT to be enabled", cfg.Inverter.Source)
		}
		src := inverter.NewMQTTSource()
		topic := mqtt.Topics{}.PowerReading()
		if err := mqttClient.Subscribe(topic, 1, src.Handler()); err != nil {
			return nil, fmt.Errorf("subscribing to power readings: %w", err)
		}
		log.Info("inverter source: mqtt", "topic", topic)
		return src, nil
	case "", "simulator":
		src := inverter.NewSimulator(cfg.Inverter.PeakSolarW, cfg.Inverter.BaseLoadW, time.Now().UnixNano())
		log.Info("inverter source: simulator",
			"peak_solar_w", cfg.Inverter.PeakSolarW,
			"base_load_w", cfg.Inverter.BaseLoadW,
		)
		return src, nil
	default:
		return nil, fmt.Errorf("unknown inverter source %q", cfg.Inverter.Source)
	}
}

// runRetentionLoop prunes automation events older than the retention
// window, once at startup and then daily.
func runRetentionLoop(ctx context.Context, events automation.EventRepository, days int, log *logging.Logger) {
	prune := func() {
		cutoff := time.Now().AddDate(0, 0, -days)
		deleted, err := events.PurgeBefore(ctx, cutoff)
		if err != nil {
			log.Warn("event retention prune failed", "error", err)
			return
		}
		if deleted > 0 {
			log.Info("pruned automation events", "deleted", deleted, "older_than_days", days)
		}
	}

	prune()

	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
