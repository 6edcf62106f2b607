// Package config loads the redisgate settings from an optional YAML file
// and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/redisgate/pkg/logger"
	"github.com/dmitrymomot/redisgate/pkg/pool"
	"github.com/dmitrymomot/redisgate/pkg/redis"
)

// DefaultPath is read when REDISGATE_CONFIG is unset.
const DefaultPath = "config.yaml"

const connectRetryInterval = 100 * time.Millisecond

var (
	// ErrRead is returned when the config file exists but cannot be read or decoded.
	ErrRead = errors.New("config: failed to read config file")

	// ErrEnv is returned for an environment override that cannot be parsed.
	ErrEnv = errors.New("config: invalid environment variable")
)

// Config is the full service configuration.
//
// Defaults come from the envDefault tags, a YAML file may override them and
// environment variables override both.
type Config struct {
	Address string `yaml:"address" env:"ADDRESS" envDefault:":8080"`
	Log     Log    `yaml:"log"`
	Sentry  Sentry `yaml:"sentry"`
	Redis   Redis  `yaml:"redis"`
}

// Log selects the log level and format.
type Log struct {
	Level  string `yaml:"level" env:"LOG_LEVEL" envDefault:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" envDefault:"json"`
}

// Sentry enables error reporting when DSN is set.
type Sentry struct {
	DSN         string `yaml:"dsn" env:"SENTRY_DSN"`
	Environment string `yaml:"environment" env:"SENTRY_ENVIRONMENT" envDefault:"production"`
}

// Redis describes the deployment. Host, Port and Password are
// comma-separated lists for the arbiter and sharded topologies, aligned by
// position.
type Redis struct {
	Topology              string `yaml:"topology" env:"REDIS_TOPOLOGY" envDefault:"single"`
	URL                   string `yaml:"url" env:"REDIS_URL"`
	Host                  string `yaml:"host" env:"REDIS_HOST" envDefault:"localhost"`
	Port                  string `yaml:"port" env:"REDIS_PORT" envDefault:"6379"`
	Password              string `yaml:"password" env:"REDIS_PASSWORD"`
	MasterName            string `yaml:"master_name" env:"REDIS_MASTER_NAME" envDefault:"mymaster"`
	MultiKey              string `yaml:"multi_key" env:"REDIS_MULTI_KEY" envDefault:"strict"`
	Pool                  Pool   `yaml:"pool"`
	TimeoutMillis         int    `yaml:"timeout_millis" env:"REDIS_TIMEOUT" envDefault:"2000"`
	ShutdownTimeoutMillis int    `yaml:"shutdown_timeout_millis" env:"REDIS_SHUTDOWN_TIMEOUT" envDefault:"5000"`
	// ConnectRetries is the number of attempts for each new connection.
	ConnectRetries int `yaml:"connect_retries" env:"REDIS_CONNECT_RETRIES" envDefault:"1"`
}

// Pool sizes every connection pool, one per shard on sharded deployments.
// MaxWaitMillis and BlockWhenExhausted default to pool.DefaultConfig.
type Pool struct {
	MaxTotal           int  `yaml:"max_total" env:"REDIS_POOL_MAX_TOTAL" envDefault:"8"`
	MaxIdle            int  `yaml:"max_idle" env:"REDIS_POOL_MAX_IDLE" envDefault:"8"`
	MinIdle            int  `yaml:"min_idle" env:"REDIS_POOL_MIN_IDLE" envDefault:"0"`
	MaxWaitMillis      int  `yaml:"max_wait_millis" env:"REDIS_POOL_MAX_WAIT_MILLIS"`
	BlockWhenExhausted bool `yaml:"block_when_exhausted" env:"REDIS_POOL_BLOCK_WHEN_EXHAUSTED"`
}

// Default returns the configuration used for anything left unset.
func Default() Config {
	pc := pool.DefaultConfig()
	c := Config{
		Redis: Redis{
			Pool: Pool{
				MaxWaitMillis:      int(pc.MaxWait / time.Millisecond),
				BlockWhenExhausted: pc.BlockWhenExhausted,
			},
		},
	}
	if err := env.ParseWithOptions(&c, env.Options{Environment: map[string]string{}}); err != nil {
		panic(fmt.Sprintf("config: invalid envDefault tag: %v", err))
	}
	return c
}

// Load reads the file named by REDISGATE_CONFIG (or DefaultPath), applies
// environment overrides and validates the result. A missing file is not an
// error.
func Load() (Config, error) {
	path := os.Getenv("REDISGATE_CONFIG")
	if path == "" {
		path = DefaultPath
	}
	return LoadFrom(path, env.ToMap(os.Environ()))
}

// LoadFrom is Load with an explicit path and environment. A nil environ is
// treated as empty, not as the process environment.
func LoadFrom(path string, environ map[string]string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Config{}, errors.Join(ErrRead, err)
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, errors.Join(ErrRead, fmt.Errorf("%s: %w", path, err))
		}
	}

	if environ == nil {
		environ = map[string]string{}
	}
	// Defaults were applied by Default. Reading them from a tag no field
	// carries makes this pass override only what the environment sets.
	if err := env.ParseWithOptions(&cfg, env.Options{
		Environment:         environ,
		DefaultValueTagName: "envOverride",
	}); err != nil {
		return Config{}, errors.Join(ErrEnv, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every setting that can be checked without dialing.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Address) == "" {
		return fmt.Errorf("%w: empty address", pool.ErrConfigInvalid)
	}
	if _, err := c.Logger(); err != nil {
		return errors.Join(pool.ErrConfigInvalid, err)
	}
	if c.Redis.TimeoutMillis <= 0 {
		return fmt.Errorf("%w: timeout %dms must be positive", pool.ErrConfigInvalid, c.Redis.TimeoutMillis)
	}
	if c.Redis.ConnectRetries < 1 {
		return fmt.Errorf("%w: connect retries %d must be at least 1", pool.ErrConfigInvalid, c.Redis.ConnectRetries)
	}
	if c.Redis.ShutdownTimeoutMillis <= 0 {
		return fmt.Errorf("%w: shutdown timeout %dms must be positive", pool.ErrConfigInvalid, c.Redis.ShutdownTimeoutMillis)
	}
	_, err := c.PoolSpec()
	return err
}

// Logger returns the logger settings.
func (c Config) Logger() (logger.Config, error) {
	level, err := logger.ParseLevel(c.Log.Level)
	if err != nil {
		return logger.Config{}, err
	}
	switch c.Log.Format {
	case "", logger.FormatJSON, logger.FormatText:
	default:
		return logger.Config{}, fmt.Errorf("%w: format %q", logger.ErrInvalidConfig, c.Log.Format)
	}
	return logger.Config{
		Level:  level,
		Format: c.Log.Format,
		Sentry: logger.SentryConfig{
			DSN:         c.Sentry.DSN,
			Environment: c.Sentry.Environment,
			MinLevel:    slog.LevelWarn,
		},
	}, nil
}

// DialOptions returns the per-connection socket and retry settings.
func (c Config) DialOptions() []redis.Option {
	return []redis.Option{
		redis.WithTimeout(c.timeout()),
		redis.WithDialTimeout(c.timeout()),
		redis.WithRetry(c.Redis.ConnectRetries, connectRetryInterval),
	}
}

// ShutdownTimeout bounds how long pool shutdown waits for borrowers.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Redis.ShutdownTimeoutMillis) * time.Millisecond
}

func (c Config) timeout() time.Duration {
	return time.Duration(c.Redis.TimeoutMillis) * time.Millisecond
}

// PoolSpec translates the redis section into the boot-time pool.Spec.
func (c Config) PoolSpec() (pool.Spec, error) {
	r := c.Redis

	topology, err := pool.ParseTopology(r.Topology)
	if err != nil {
		return pool.Spec{}, err
	}
	multiKey, err := pool.ParseMultiKeyPolicy(r.MultiKey)
	if err != nil {
		return pool.Spec{}, err
	}

	pc := pool.Config{
		MaxTotal:           r.Pool.MaxTotal,
		MaxIdle:            r.Pool.MaxIdle,
		MinIdle:            r.Pool.MinIdle,
		MaxWait:            time.Duration(r.Pool.MaxWaitMillis) * time.Millisecond,
		BlockWhenExhausted: r.Pool.BlockWhenExhausted,
	}
	if err := pc.Validate(); err != nil {
		return pool.Spec{}, err
	}

	spec := pool.Spec{
		Topology:   topology,
		Config:     pc,
		MasterName: r.MasterName,
		MultiKey:   multiKey,
	}

	if r.URL != "" {
		if topology != pool.TopologySingle {
			return pool.Spec{}, fmt.Errorf("%w: url is only supported by the single topology", pool.ErrConfigInvalid)
		}
		ep, err := redis.ParseURL(r.URL)
		if err != nil {
			return pool.Spec{}, errors.Join(pool.ErrConfigInvalid, err)
		}
		spec.Endpoints = []redis.Endpoint{ep}
		return spec, nil
	}

	hosts := split(r.Host)
	ports := split(r.Port)
	if len(hosts) == 0 {
		return pool.Spec{}, fmt.Errorf("%w: no host configured", pool.ErrConfigInvalid)
	}
	if len(hosts) != len(ports) {
		return pool.Spec{}, fmt.Errorf("%w: %d hosts but %d ports", pool.ErrConfigInvalid, len(hosts), len(ports))
	}

	passwords, err := c.passwords(topology, len(hosts))
	if err != nil {
		return pool.Spec{}, err
	}

	for i, host := range hosts {
		port, err := strconv.Atoi(ports[i])
		if err != nil {
			return pool.Spec{}, fmt.Errorf("%w: port %q is not a number", pool.ErrConfigInvalid, ports[i])
		}
		ep := redis.Endpoint{Host: host, Port: port, Password: passwords[i]}
		if err := ep.Validate(); err != nil {
			return pool.Spec{}, errors.Join(pool.ErrConfigInvalid, err)
		}
		spec.Endpoints = append(spec.Endpoints, ep)
	}

	switch topology {
	case pool.TopologySingle:
		if len(hosts) != 1 {
			return pool.Spec{}, fmt.Errorf("%w: single topology takes one host, got %d", pool.ErrConfigInvalid, len(hosts))
		}
	case pool.TopologyArbiter:
		if strings.TrimSpace(r.MasterName) == "" {
			return pool.Spec{}, fmt.Errorf("%w: arbiter topology needs a master name", pool.ErrConfigInvalid)
		}
		spec.MasterPassword = strings.TrimSpace(r.Password)
	}

	return spec, nil
}

// passwords returns one credential per endpoint. Arbiters are contacted
// without one: the password belongs to the primary they announce.
func (c Config) passwords(topology pool.Topology, n int) ([]string, error) {
	out := make([]string, n)
	pw := strings.TrimSpace(c.Redis.Password)

	switch topology {
	case pool.TopologySingle:
		out[0] = pw
	case pool.TopologySharded:
		if pw == "" {
			return out, nil
		}
		list := strings.Split(c.Redis.Password, ",")
		if len(list) != n {
			return nil, fmt.Errorf("%w: %d passwords for %d shards", pool.ErrConfigInvalid, len(list), n)
		}
		for i, p := range list {
			out[i] = strings.TrimSpace(p)
		}
	}
	return out, nil
}

func split(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
