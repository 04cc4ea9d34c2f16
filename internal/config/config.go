package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel string  `env:"LOG_LEVEL" envDefault:"info"`
	HTTP     HTTP    `envPrefix:"HTTP_"`
	Redis    Redis   `envPrefix:"REDIS_"`
	Storage  Storage `envPrefix:"STORAGE_"`
	Batch    Batch   `envPrefix:"BATCH_"`
	Quota    Quota   `envPrefix:"QUOTA_"`
}

type HTTP struct {
	Port int `env:"PORT" envDefault:"8080"`
}

type Redis struct {
	Addr          string `env:"ADDR" envDefault:"127.0.0.1:6379"`
	Password      string `env:"PASSWORD"`
	DB            int    `env:"DB"`
	StreamKey     string `env:"STREAM_KEY" envDefault:"batch:triggers"`
	Group         string `env:"GROUP" envDefault:"batch:workers"`
	ScheduledZSet string `env:"SCHEDULED_ZSET" envDefault:"batch:scheduled"`
	// TaskTTL is the ephemeral task retention window, refreshed on every write.
	TaskTTL time.Duration `env:"TASK_TTL" envDefault:"24h"`
}

type Storage struct {
	Dir string `env:"DIR" envDefault:"./data"`
}

type Batch struct {
	AllowedDomains []string `env:"DOMAINS" envDefault:"moemail.app" envSeparator:","`
	// ChunkSize bounds a single trigger invocation so it fits well inside any
	// platform request deadline.
	ChunkSize    int `env:"CHUNK_SIZE" envDefault:"100"`
	SubBatchSize int `env:"SUB_BATCH_SIZE" envDefault:"20"`
	// AsyncThreshold is the smallest total handled by the task machinery;
	// anything below it belongs on the synchronous create endpoint.
	AsyncThreshold     int `env:"ASYNC_THRESHOLD" envDefault:"50"`
	MaxBatchSize       int `env:"MAX_SIZE" envDefault:"10000"`
	TriggerMaxAttempts int `env:"TRIGGER_MAX_ATTEMPTS" envDefault:"5"`
}

type Quota struct {
	DefaultLimit   int            `env:"DEFAULT_LIMIT" envDefault:"50"`
	RoleLimits     map[string]int `env:"ROLE_LIMITS" envDefault:"knight:200,duke:500"`
	PrivilegedRole string         `env:"PRIVILEGED_ROLE" envDefault:"emperor"`
}

// LimitFor returns the active-address ceiling for a role.
func (q Quota) LimitFor(role string) int {
	if limit, ok := q.RoleLimits[role]; ok {
		return limit
	}
	return q.DefaultLimit
}

// Exempt reports whether the role bypasses quota checks entirely.
func (q Quota) Exempt(role string) bool {
	return role != "" && role == q.PrivilegedRole
}

func Load() *Config {
	_ = godotenv.Load()

	var c Config
	if err := env.Parse(&c); err != nil {
		log.Fatal(err)
	}

	return &c
}
