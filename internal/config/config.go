// Package config loads editor and document store settings from a YAML file
// with STOCKFLOW_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/stockflow-editor/internal/logging"
	"github.com/signalsfoundry/stockflow-editor/internal/observability"
	"github.com/signalsfoundry/stockflow-editor/layout"
	"github.com/signalsfoundry/stockflow-editor/timectrl"
)

const (
	// DefaultCollection is the collection loaded when none is named.
	DefaultCollection = "objects"
	// DefaultConnectString selects the NATS key/value backend with bucket
	// stemio-db.
	DefaultConnectString = "nats://localhost:4222/stemio-db"
	// DefaultPort is the document store server's listening port.
	DefaultPort = 49152
	// DefaultWikiHost prefixes wiki references when they are opened.
	DefaultWikiHost = "https://wiki.stemio.org/index.php"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete settings tree.
type Config struct {
	Store   StoreConfig   `yaml:"store"`
	Server  ServerConfig  `yaml:"server"`
	Layout  layout.Config `yaml:"layout"`
	Clock   ClockConfig   `yaml:"clock"`
	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
	Wiki    WikiConfig    `yaml:"wiki"`
}

// StoreConfig names the persistence backend. The connect string scheme
// picks it: mem://, file://<dir>, nats://host:port/<bucket>, or
// grpc://host:port for a remote document store server.
type StoreConfig struct {
	ConnectString string `yaml:"connect_string"`
	Collection    string `yaml:"collection"`
}

// ServerConfig configures cmd/docstore-server.
type ServerConfig struct {
	Port        int    `yaml:"port"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// ClockConfig paces layout frames.
type ClockConfig struct {
	Mode string `yaml:"mode"` // realtime | accelerated
	FPS  int    `yaml:"fps"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig mirrors observability.TracingConfig.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// WikiConfig locates the wiki that wikirefs point into.
type WikiConfig struct {
	Host string `yaml:"host"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Store:   StoreConfig{ConnectString: DefaultConnectString, Collection: DefaultCollection},
		Server:  ServerConfig{Port: DefaultPort, MetricsAddr: ":9090"},
		Layout:  layout.DefaultConfig(),
		Clock:   ClockConfig{Mode: "realtime", FPS: 60},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Tracing: TracingConfig{Exporter: "stdout", ServiceName: "stockflow-editor", SampleRatio: 1},
		Wiki:    WikiConfig{Host: DefaultWikiHost},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file. Unknown YAML keys
// are rejected and ${VAR} references in the file are expanded.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
		dec := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(data))))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %q: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from STOCKFLOW_* variables (and LOG_LEVEL /
// LOG_FORMAT) found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s=%q: %w", key, v, ErrInvalid))
				return
			}
			*dst = f
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s=%q: %w", key, v, ErrInvalid))
				return
			}
			*dst = n
		}
	}

	str("STOCKFLOW_CONNECT_STRING", &c.Store.ConnectString)
	str("STOCKFLOW_COLLECTION", &c.Store.Collection)
	integer("STOCKFLOW_PORT", &c.Server.Port)
	str("STOCKFLOW_METRICS_ADDR", &c.Server.MetricsAddr)
	num("STOCKFLOW_WIDTH", &c.Layout.Width)
	num("STOCKFLOW_HEIGHT", &c.Layout.Height)
	str("STOCKFLOW_CLOCK_MODE", &c.Clock.Mode)
	integer("STOCKFLOW_FPS", &c.Clock.FPS)
	str("LOG_LEVEL", &c.Logging.Level)
	str("LOG_FORMAT", &c.Logging.Format)
	if v, ok := lookup("STOCKFLOW_TRACING_ENABLED"); ok {
		c.Tracing.Enabled = strings.EqualFold(v, "true")
	}
	str("STOCKFLOW_TRACING_EXPORTER", &c.Tracing.Exporter)
	str("STOCKFLOW_OTLP_ENDPOINT", &c.Tracing.Endpoint)
	str("STOCKFLOW_WIKI_HOST", &c.Wiki.Host)
	return errors.Join(errs...)
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format+": %w", append(args, ErrInvalid)...))
	}
	if c.Store.ConnectString == "" {
		fail("store.connect_string is empty")
	}
	if c.Store.Collection == "" {
		fail("store.collection is empty")
	}
	if c.Store.Collection == "system.indexes" {
		fail("store.collection %q is reserved", c.Store.Collection)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		fail("server.port %d out of range", c.Server.Port)
	}
	if c.Layout.Width < 0 || c.Layout.Height < 0 {
		fail("layout viewport %vx%v is negative", c.Layout.Width, c.Layout.Height)
	}
	if c.Layout.AlphaDecay < 0 || c.Layout.AlphaDecay >= 1 {
		fail("layout.alpha_decay %v outside [0,1)", c.Layout.AlphaDecay)
	}
	if c.Layout.VelocityDecay < 0 || c.Layout.VelocityDecay > 1 {
		fail("layout.velocity_decay %v outside [0,1]", c.Layout.VelocityDecay)
	}
	switch c.Clock.Mode {
	case "realtime", "accelerated":
	default:
		fail("clock.mode %q is not realtime or accelerated", c.Clock.Mode)
	}
	if c.Clock.FPS <= 0 {
		fail("clock.fps %d must be positive", c.Clock.FPS)
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		fail("logging.level: %v", err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		fail("logging.format %q is not text or json", c.Logging.Format)
	}
	switch strings.ToLower(c.Tracing.Exporter) {
	case "", "stdout", "otlp", "otlpgrpc":
	default:
		fail("tracing.exporter %q is not stdout or otlp", c.Tracing.Exporter)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		fail("tracing.sample_ratio %v outside [0,1]", c.Tracing.SampleRatio)
	}
	return errors.Join(errs...)
}

// LoggerConfig converts to the logger's configuration.
func (c Config) LoggerConfig() logging.Config {
	return logging.Config{Level: c.Logging.Level, Format: c.Logging.Format}
}

// TracingConfig converts to the tracer's configuration.
func (c Config) TracingConfig() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     c.Tracing.Enabled,
		ServiceName: c.Tracing.ServiceName,
		Exporter:    c.Tracing.Exporter,
		Endpoint:    c.Tracing.Endpoint,
		SampleRatio: c.Tracing.SampleRatio,
	}
}

// ClockMode is the parsed frame clock mode.
func (c Config) ClockMode() timectrl.Mode { return timectrl.ParseMode(c.Clock.Mode) }

// WikiURL is where a wiki reference points.
func (c Config) WikiURL(ref string) string {
	return strings.TrimRight(c.Wiki.Host, "/") + "/" + ref
}
