package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Match    MatchConfig    `mapstructure:"match"`
}

type ServerConfig struct {
	Port            string `mapstructure:"port"`
	Mode            string `mapstructure:"mode"`            // debug, release
	ShutdownTimeout int    `mapstructure:"shutdownTimeout"` // seconds
	// AllowedOrigins lists browser origins allowed to open match sockets.
	// Empty means same host only; "*" allows any.
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // postgres, mysql, sqlite
	DSN    string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Expire int    `mapstructure:"expire"` // hours
}

type MatchConfig struct {
	TurnSeconds         int `mapstructure:"turnSeconds"`
	TicketTTLSeconds    int `mapstructure:"ticketTTLSeconds"`
	MaxPendingIdentical int `mapstructure:"maxPendingIdentical"`
	StarterCards        int `mapstructure:"starterCards"`
	OutboundBuffer      int `mapstructure:"outboundBuffer"`
}

func (m MatchConfig) TurnDuration() time.Duration {
	return time.Duration(m.TurnSeconds) * time.Second
}

func (m MatchConfig) TicketTTL() time.Duration {
	return time.Duration(m.TicketTTLSeconds) * time.Second
}

var GlobalConfig *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdownTimeout", 10)
	v.SetDefault("server.allowedOrigins", []string{})
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.dsn", "")
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	// Keys must be known for env overrides to reach Unmarshal.
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expire", 72)
	v.SetDefault("match.turnSeconds", 300)
	v.SetDefault("match.ticketTTLSeconds", 30)
	v.SetDefault("match.maxPendingIdentical", 1)
	v.SetDefault("match.starterCards", 7)
	v.SetDefault("match.outboundBuffer", 16)
}

// Default returns the configuration used when no file overrides a key.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Fatalf("Unable to decode defaults, %v", err)
	}
	return &cfg
}

func LoadConfig(path string) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("TRIAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		log.Fatalf("Error reading config file, %s", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}
	GlobalConfig = &cfg
}
