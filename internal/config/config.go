package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the variable that overrides the config file path.
const EnvConfigPath = "CASTCORE_CONFIG"

// Journal drivers.
const (
	DriverNone     = "none"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Simulation holds all configuration for the combat simulation binary.
type Simulation struct {
	LogLevel    string        `yaml:"log_level" env:"CASTCORE_LOG_LEVEL"`
	TickRate    time.Duration `yaml:"tick_rate" env:"CASTCORE_TICK_RATE"`
	Authority   bool          `yaml:"authority" env:"CASTCORE_AUTHORITY"`
	CatalogPath string        `yaml:"catalog_path" env:"CASTCORE_CATALOG"`

	// RunFor stops the simulation after the given wall time; 0 runs until a signal.
	RunFor time.Duration `yaml:"run_for" env:"CASTCORE_RUN_FOR"`

	Journal   JournalConfig   `yaml:"journal" envPrefix:"CASTCORE_JOURNAL_"`
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"CASTCORE_OTEL_"`

	// Scenario
	Actors []ActorEntry `yaml:"actors"`
}

// JournalConfig selects and tunes the combat journal store.
type JournalConfig struct {
	Driver        string         `yaml:"driver" env:"DRIVER"`
	SQLitePath    string         `yaml:"sqlite_path" env:"SQLITE_PATH"`
	Database      DatabaseConfig `yaml:"database" envPrefix:"DB_"`
	QueueSize     int            `yaml:"queue_size" env:"QUEUE_SIZE"`
	BatchSize     int            `yaml:"batch_size" env:"BATCH_SIZE"`
	FlushInterval time.Duration  `yaml:"flush_interval" env:"FLUSH_INTERVAL"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	DBName   string `yaml:"dbname" env:"NAME"`
	SSLMode  string `yaml:"sslmode" env:"SSLMODE"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// TelemetryConfig configures OTLP tracing. Empty endpoint disables export.
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint" env:"ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
}

// ActorEntry describes one scenario actor. A zero ID is allocated at spawn.
type ActorEntry struct {
	ID        uint32           `yaml:"id"`
	Name      string           `yaml:"name"`
	Team      int32            `yaml:"team"`
	Level     int32            `yaml:"level"`
	MaxHP     int32            `yaml:"max_hp"`
	MaxEnergy int32            `yaml:"max_energy"`
	X         float64          `yaml:"x"`
	Y         float64          `yaml:"y"`
	Radius    float64          `yaml:"radius"`
	Abilities map[string]int32 `yaml:"abilities"`
	Default   string           `yaml:"default_ability"`
	// Rotation is the ordered list of abilities the scenario AI tries each tick.
	Rotation []string `yaml:"rotation"`
}

// DefaultSimulation returns Simulation config with sensible defaults.
func DefaultSimulation() Simulation {
	return Simulation{
		LogLevel:    "info",
		TickRate:    50 * time.Millisecond,
		Authority:   true,
		CatalogPath: "config/catalog.yaml",
		Journal: JournalConfig{
			Driver:        DriverSQLite,
			SQLitePath:    "castcore.db",
			QueueSize:     1024,
			BatchSize:     128,
			FlushInterval: time.Second,
			Database: DatabaseConfig{
				Host:     "127.0.0.1",
				Port:     5432,
				User:     "castcore",
				Password: "castcore",
				DBName:   "castcore",
				SSLMode:  "disable",
			},
		},
		Telemetry: TelemetryConfig{
			ServiceName: "castcore",
		},
	}
}

// LoadSimulation loads config from a YAML file, then applies CASTCORE_* environment overrides.
// If the file doesn't exist, returns defaults (with overrides).
func LoadSimulation(path string) (Simulation, error) {
	cfg := DefaultSimulation()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values the binary cannot run with.
func (c Simulation) Validate() error {
	if c.TickRate <= 0 {
		return fmt.Errorf("tick_rate must be > 0, got %s", c.TickRate)
	}
	switch c.Journal.Driver {
	case DriverNone, DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("unknown journal driver %q", c.Journal.Driver)
	}
	if c.Journal.Driver == DriverSQLite && c.Journal.SQLitePath == "" {
		return fmt.Errorf("journal.sqlite_path is required for the sqlite driver")
	}
	seen := make(map[uint32]struct{}, len(c.Actors))
	for _, a := range c.Actors {
		if a.ID == 0 {
			continue
		}
		if _, dup := seen[a.ID]; dup {
			return fmt.Errorf("actor %d: duplicate id", a.ID)
		}
		seen[a.ID] = struct{}{}
	}
	return nil
}
