package ops

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
	"gopkg.in/yaml.v3"

	"taskpulse/internal/task"
	"taskpulse/pkg/conn"
	"taskpulse/pkg/exception"
	"taskpulse/pkg/websocket"
)

const (
	defaultDirName     = ".taskpulse"
	defaultTasksFile   = "tasks.json"
	defaultSqliteFile  = "tasks.db"
	defaultSessionFile = "session.json"
	defaultQueueSize   = 64
	defaultAppName     = "taskpulse.watch"
)

// FileConfig mirrors the config file layout. JSON, TOML and YAML share it.
type FileConfig struct {
	Channel   ChannelConfig   `json:"channel" toml:"channel" yaml:"channel"`
	Store     StoreConfig     `json:"store" toml:"store" yaml:"store"`
	Session   SessionConfig   `json:"session" toml:"session" yaml:"session"`
	Profiling ProfilingConfig `json:"profiling" toml:"profiling" yaml:"profiling"`
}

// ChannelConfig describes the notification endpoint and its reconnect policy.
type ChannelConfig struct {
	Host           string        `json:"host" toml:"host" yaml:"host"`
	Secure         bool          `json:"secure" toml:"secure" yaml:"secure"`
	Path           string        `json:"path" toml:"path" yaml:"path"`
	ConnectTimeout Duration      `json:"connectTimeout" toml:"connect_timeout" yaml:"connectTimeout"`
	PingInterval   Duration      `json:"pingInterval" toml:"ping_interval" yaml:"pingInterval"`
	MaxAttempts    int           `json:"maxAttempts" toml:"max_attempts" yaml:"maxAttempts"`
	Cooldown       Duration      `json:"cooldown" toml:"cooldown" yaml:"cooldown"`
	Backoff        BackoffConfig `json:"backoff" toml:"backoff" yaml:"backoff"`
	QueueSize      int           `json:"queueSize" toml:"queue_size" yaml:"queueSize"`
}

// BackoffConfig describes reconnect delays.
type BackoffConfig struct {
	Min    Duration `json:"min" toml:"min" yaml:"min"`
	Max    Duration `json:"max" toml:"max" yaml:"max"`
	Factor float64  `json:"factor" toml:"factor" yaml:"factor"`
	Jitter float64  `json:"jitter" toml:"jitter" yaml:"jitter"`
}

// StoreConfig selects the task store backend.
type StoreConfig struct {
	Backend  string         `json:"backend" toml:"backend" yaml:"backend"`
	Path     string         `json:"path" toml:"path" yaml:"path"`
	Postgres PostgresConfig `json:"postgres" toml:"postgres" yaml:"postgres"`
}

// PostgresConfig describes a PostgreSQL connection.
type PostgresConfig struct {
	Host            string            `json:"host" toml:"host" yaml:"host"`
	Port            int               `json:"port" toml:"port" yaml:"port"`
	User            string            `json:"user" toml:"user" yaml:"user"`
	Password        string            `json:"password" toml:"password" yaml:"password"`
	Database        string            `json:"database" toml:"database" yaml:"database"`
	SSLMode         string            `json:"sslMode" toml:"ssl_mode" yaml:"sslMode"`
	Params          map[string]string `json:"params" toml:"params" yaml:"params"`
	ConnString      string            `json:"connString" toml:"conn_string" yaml:"connString"`
	MaxOpenConns    int               `json:"maxOpenConns" toml:"max_open_conns" yaml:"maxOpenConns"`
	MaxIdleConns    int               `json:"maxIdleConns" toml:"max_idle_conns" yaml:"maxIdleConns"`
	ConnMaxLifetime Duration          `json:"connMaxLifetime" toml:"conn_max_lifetime" yaml:"connMaxLifetime"`
}

// SessionConfig locates the session file.
type SessionConfig struct {
	Path string `json:"path" toml:"path" yaml:"path"`
}

// ProfilingConfig enables continuous profiling for the watcher.
type ProfilingConfig struct {
	Enabled         bool   `json:"enabled" toml:"enabled" yaml:"enabled"`
	ServerAddress   string `json:"serverAddress" toml:"server_address" yaml:"serverAddress"`
	ApplicationName string `json:"applicationName" toml:"application_name" yaml:"applicationName"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	// Channel has no Dialer, Clock or hooks set.
	Channel     websocket.Option
	QueueSize   int
	Store       task.Config
	SessionPath string
	Profiling   ProfilingConfig
}

// Load reads the config file at path and resolves it. An empty path yields the defaults.
// The format follows the extension: .json, .toml, .yaml or .yml.
func Load(path string) (Loaded, error) {
	var cfg FileConfig
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Loaded{}, errors.Wrap(err, "read config").With("path", path)
		}
		if err := Decode(filepath.Ext(path), data, &cfg); err != nil {
			return Loaded{}, errors.Wrap(err, "decode config").With("path", path)
		}
	}
	dir, err := DefaultDir()
	if err != nil {
		return Loaded{}, err
	}
	return Resolve(cfg, dir), nil
}

// Decode unmarshals data in the format named by ext.
func Decode(ext string, data []byte, cfg *FileConfig) error {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "json":
		return sonic.Unmarshal(data, cfg)
	case "toml":
		return toml.Unmarshal(data, cfg)
	case "yaml", "yml":
		return yaml.Unmarshal(data, cfg)
	default:
		return errors.Wrap(exception.ErrConfigUnsupportedFormat, "decode config").With("ext", ext)
	}
}

// DefaultDir is where tasks and the session live unless configured otherwise.
func DefaultDir() (string, error) {
	if dir := os.Getenv("TASKPULSE_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "resolve home directory")
	}
	return filepath.Join(home, defaultDirName), nil
}

// Resolve fills defaults relative to dir.
func Resolve(cfg FileConfig, dir string) Loaded {
	return Loaded{
		Channel:     resolveChannel(cfg.Channel),
		QueueSize:   resolveQueueSize(cfg.Channel.QueueSize),
		Store:       resolveStore(cfg.Store, dir),
		SessionPath: resolvePath(cfg.Session.Path, dir, defaultSessionFile),
		Profiling:   resolveProfiling(cfg.Profiling),
	}
}

func resolveChannel(cfg ChannelConfig) websocket.Option {
	backoff := websocket.DefaultBackoff()
	if cfg.Backoff.Min > 0 {
		backoff.Min = cfg.Backoff.Min.Std()
	}
	if cfg.Backoff.Max > 0 {
		backoff.Max = cfg.Backoff.Max.Std()
	}
	if cfg.Backoff.Factor > 1 {
		backoff.Factor = cfg.Backoff.Factor
	}
	if cfg.Backoff.Jitter > 0 {
		backoff.Jitter = cfg.Backoff.Jitter
	}
	return websocket.Option{
		Endpoint: websocket.Endpoint{
			Host:   cfg.Host,
			Secure: cfg.Secure,
			Path:   cfg.Path,
		},
		Backoff:        backoff,
		ConnectTimeout: cfg.ConnectTimeout.Std(),
		PingInterval:   cfg.PingInterval.Std(),
		MaxAttempts:    cfg.MaxAttempts,
		Cooldown:       cfg.Cooldown.Std(),
	}
}

func resolveQueueSize(size int) int {
	if size <= 0 {
		return defaultQueueSize
	}
	return size
}

func resolveStore(cfg StoreConfig, dir string) task.Config {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = task.BackendFile
	}
	out := task.Config{Backend: backend}
	switch backend {
	case task.BackendSqlite:
		out.Path = resolvePath(cfg.Path, dir, defaultSqliteFile)
	case task.BackendPostgres:
		pg := cfg.Postgres
		out.SQL = conn.Option{
			Driver:          conn.DriverPostgres,
			Host:            pg.Host,
			Port:            pg.Port,
			User:            pg.User,
			Password:        pg.Password,
			Database:        pg.Database,
			SSLMode:         pg.SSLMode,
			Params:          pg.Params,
			ConnString:      pg.ConnString,
			MaxOpenConns:    pg.MaxOpenConns,
			MaxIdleConns:    pg.MaxIdleConns,
			ConnMaxLifetime: pg.ConnMaxLifetime.Std(),
		}
	default:
		out.Path = resolvePath(cfg.Path, dir, defaultTasksFile)
	}
	return out
}

func resolvePath(path, dir, name string) string {
	if path == "" {
		return filepath.Join(dir, name)
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func resolveProfiling(cfg ProfilingConfig) ProfilingConfig {
	if cfg.ApplicationName == "" {
		cfg.ApplicationName = defaultAppName
	}
	return cfg
}

// Duration is a time.Duration written as a Go duration string such as "1m30s".
// JSON also accepts a bare number of seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return errors.Wrap(exception.ErrConfigInvalidDuration, err.Error()).With("value", s)
	}
	*d = Duration(parsed)
	return nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var text string
		if err := sonic.UnmarshalString(s, &text); err != nil {
			return errors.Wrap(exception.ErrConfigInvalidDuration, err.Error()).With("value", s)
		}
		return d.UnmarshalText([]byte(text))
	}
	var seconds float64
	if err := sonic.UnmarshalString(s, &seconds); err != nil {
		return errors.Wrap(exception.ErrConfigInvalidDuration, err.Error()).With("value", s)
	}
	*d = Duration(seconds * float64(time.Second))
	return nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}
