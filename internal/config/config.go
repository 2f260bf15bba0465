package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root configuration for the GreenSIG entrypoint.
type Config struct {
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Bootstrap BootstrapConfig `mapstructure:"bootstrap"`
	Manage    ManageConfig    `mapstructure:"manage"`
	Server    ServerConfig    `mapstructure:"server"`
	Status    StatusConfig    `mapstructure:"status"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// PostgresConfig describes the application datastore.
type PostgresConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	DB             string        `mapstructure:"db"`
	SSLMode        string        `mapstructure:"ssl_mode"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// RedisConfig describes the Celery broker / cache backend.
// An empty Host disables the broker readiness probe.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// BootstrapConfig controls the startup sequence.
type BootstrapConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	ProbeBroker bool          `mapstructure:"probe_broker"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ManageConfig locates the Django management tool invoked for migrations and
// static asset collection.
type ManageConfig struct {
	Python  string `mapstructure:"python"`
	Script  string `mapstructure:"script"`
	Workdir string `mapstructure:"workdir"`
}

// ServerConfig describes the application server the entrypoint hands off to.
// When Command is set it is used verbatim as the server argv; otherwise the
// default daphne command is built from Bind, Port and ASGIModule.
type ServerConfig struct {
	Bind       string   `mapstructure:"bind"`
	Port       int      `mapstructure:"port"`
	ASGIModule string   `mapstructure:"asgi_module"`
	Command    []string `mapstructure:"command"`
}

// StatusConfig configures the `serve` status API.
type StatusConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	ServiceName  string `mapstructure:"service_name"`
	LogLevel     string `mapstructure:"log_level"`
}

// ServerArgv returns the argv the launcher should exec. An explicit
// server.command wins; the default runs daphne bound to server.bind:server.port.
func (c *Config) ServerArgv() []string {
	if len(c.Server.Command) > 0 {
		return c.Server.Command
	}
	return []string{
		"daphne",
		"-b", c.Server.Bind,
		"-p", fmt.Sprintf("%d", c.Server.Port),
		c.Server.ASGIModule,
	}
}

// BrokerProbeEnabled reports whether the Redis readiness stage should run.
func (c *Config) BrokerProbeEnabled() bool {
	return c.Bootstrap.ProbeBroker && c.Redis.Host != ""
}

// Load reads config from the optional YAML file at path, then overlays
// environment variables with the GREENSIG_ prefix (e.g. GREENSIG_POSTGRES_HOST).
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("GREENSIG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Bootstrap.MaxAttempts < 1 {
		return fmt.Errorf("bootstrap.max_attempts must be >= 1, got %d", cfg.Bootstrap.MaxAttempts)
	}
	if cfg.Bootstrap.RetryDelay <= 0 {
		return fmt.Errorf("bootstrap.retry_delay must be positive, got %s", cfg.Bootstrap.RetryDelay)
	}
	if cfg.Postgres.Host == "" {
		return fmt.Errorf("postgres.host must not be empty")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("postgres.host", "db")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "greensig")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.db", "greensig")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.connect_timeout", 5*time.Second)

	v.SetDefault("redis.host", "redis")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("bootstrap.max_attempts", 30)
	v.SetDefault("bootstrap.retry_delay", 2*time.Second)
	v.SetDefault("bootstrap.probe_broker", true)
	v.SetDefault("bootstrap.timeout", 5*time.Minute)

	v.SetDefault("manage.python", "python")
	v.SetDefault("manage.script", "manage.py")
	v.SetDefault("manage.workdir", "")

	v.SetDefault("server.bind", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.asgi_module", "greensig_web.asgi:application")
	v.SetDefault("server.command", []string{})

	v.SetDefault("status.port", 8081)
	v.SetDefault("status.read_timeout", 10*time.Second)
	v.SetDefault("status.write_timeout", 10*time.Second)
	v.SetDefault("status.shutdown_timeout", 30*time.Second)

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.otlp_insecure", true)
	v.SetDefault("telemetry.service_name", "greensig-entrypoint")
	v.SetDefault("telemetry.log_level", "info")
}
