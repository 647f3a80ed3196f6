package config

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// DBConfig holds the database connection parameters.
type DBConfig struct {
	Type     string `mapstructure:"type" json:"type"` // "postgres" or "sqlite"
	Host     string `mapstructure:"host" json:"host"`
	User     string `mapstructure:"user" json:"user"`
	Password string `mapstructure:"password" json:"password"`
	DBName   string `mapstructure:"dbname" json:"dbname"` // file path for sqlite
	Port     int    `mapstructure:"port" json:"port"`
	SSLMode  string `mapstructure:"sslmode" json:"sslmode"`
	TimeZone string `mapstructure:"timezone" json:"timezone"`
}

// LoggerConfig holds the logging configuration.
type LoggerConfig struct {
	Level      string `mapstructure:"level" json:"level"`   // e.g., "debug", "info", "warn", "error"
	Format     string `mapstructure:"format" json:"format"` // "text" or "json"
	FilePath   string `mapstructure:"path" json:"path"`     // e.g., "logs/tss-cli.log"
	MaxSize    int    `mapstructure:"max_size" json:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups"`
	MaxAge     int    `mapstructure:"max_age" json:"max_age"`
	Compress   bool   `mapstructure:"compress" json:"compress"`
	TSSLib     string `mapstructure:"tss_lib" json:"tss_lib"` // level of the tss-lib internal logger
}

// RelayConfig holds the settings of the rendezvous manager service.
type RelayConfig struct {
	Listen       string `mapstructure:"listen" json:"listen"`
	Backend      string `mapstructure:"backend" json:"backend"` // "memory" or "redis"
	RedisAddress string `mapstructure:"redis_address" json:"redis_address"`
	EntryTTL     int    `mapstructure:"entry_ttl" json:"entry_ttl"`     // seconds, 0 keeps entries forever
	StaleAfter   int    `mapstructure:"stale_after" json:"stale_after"` // seconds without a ping before a signer is evicted
	RoomTTL      int    `mapstructure:"room_ttl" json:"room_ttl"`       // seconds a closed signing room stays reserved
}

// TimeoutConfig holds the protocol timing parameters.
type TimeoutConfig struct {
	Poll      int `mapstructure:"poll" json:"poll"`             // seconds, per-peer round collection
	Signup    int `mapstructure:"signup" json:"signup"`         // seconds, signing-room inactivity
	PollDelay int `mapstructure:"poll_delay" json:"poll_delay"` // milliseconds between relay roundtrips
}

// Config holds the application's configuration values.
type Config struct {
	Manager  string        `mapstructure:"manager" json:"manager"` // relay base address used by clients
	Relay    RelayConfig   `mapstructure:"relay" json:"relay"`
	Timeouts TimeoutConfig `mapstructure:"timeouts" json:"timeouts"`
	Database DBConfig      `mapstructure:"database" json:"database"`
	Logger   LoggerConfig  `mapstructure:"logger" json:"logger"`
}

// PollTimeout is the per-ordinal round collection window.
func (t TimeoutConfig) PollTimeout() time.Duration { return time.Duration(t.Poll) * time.Second }

// SignupTimeout is the signing-room inactivity window.
func (t TimeoutConfig) SignupTimeout() time.Duration { return time.Duration(t.Signup) * time.Second }

// Delay is the sleep between relay roundtrips while polling.
func (t TimeoutConfig) Delay() time.Duration { return time.Duration(t.PollDelay) * time.Millisecond }

func setDefaults(v *viper.Viper) {
	v.SetDefault("manager", "http://127.0.0.1:8000")
	v.SetDefault("relay.listen", ":8000")
	v.SetDefault("relay.backend", "memory")
	v.SetDefault("relay.redis_address", "127.0.0.1:6379")
	v.SetDefault("relay.entry_ttl", 0)
	v.SetDefault("relay.stale_after", 5)
	v.SetDefault("relay.room_ttl", 60)
	v.SetDefault("timeouts.poll", 30)
	v.SetDefault("timeouts.signup", 30)
	v.SetDefault("timeouts.poll_delay", 25)
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dbname", "tss-cli.db")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "text")
	v.SetDefault("logger.tss_lib", "error")
}

// LoadConfig reads the configuration from a file, when path is not empty, and
// applies the TSS_CLI_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TSS_CLI")
	for key, env := range map[string]string{
		"manager":         "TSS_CLI_MANAGER",
		"timeouts.poll":   "TSS_CLI_POLL_TIMEOUT",
		"timeouts.signup": "TSS_CLI_SIGNUP_TIMEOUT",
		"logger.level":    "TSS_CLI_LOG_LEVEL",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, errors.Wrapf(err, "bind %s", env)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if config.Timeouts.Poll <= 0 || config.Timeouts.Signup <= 0 {
		return nil, errors.New("timeouts must be positive")
	}
	return config, nil
}
