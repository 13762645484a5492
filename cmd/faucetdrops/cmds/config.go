package cmds

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config is the process configuration read from the environment. Backend selection and connection
// settings are read separately by the backends package.
type Config struct {
	Port            int           `env:"PORT" envDefault:"8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	NetworksFile    string        `env:"NETWORKS_FILE" envDefault:"networks.yaml"`
	DashboardTTL    time.Duration `env:"DASHBOARD_TTL" envDefault:"5m"`
	ClaimsTTL       time.Duration `env:"CLAIMS_TTL" envDefault:"10m"`
	SoftRefreshAge  time.Duration `env:"SOFT_REFRESH_AGE" envDefault:"2m"`
	UpstreamTimeout time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"15s"`
	JobTimeout      time.Duration `env:"JOB_TIMEOUT" envDefault:"2m"`
	DedupClaims     bool          `env:"DEDUP_CLAIMS" envDefault:"false"`
	RefreshCron     string        `env:"REFRESH_CRON"`
	JobTopicArn     string        `env:"JOB_TOPIC_ARN"`
	SNSEndpoint     string        `env:"SNS_ENDPOINT"`
	Timezone        string        `env:"TIMEZONE"`
	RPCMethod       string        `env:"RPC_METHOD" envDefault:"faucet_getAllTransactions"`
}

// LoadEnvFile loads ENV_FILE (default .env) into the environment if it exists.
func LoadEnvFile() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Info("The .env file not found.")
	}
}

func ParseConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Location resolves the timezone used for calendar months. Empty means the process local zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// ConfigureLogging applies LOG_LEVEL; an unknown level keeps the logrus default.
func (c Config) ConfigureLogging() {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		log.WithError(err).Warn("Unknown LOG_LEVEL, keeping default")
		return
	}
	log.SetLevel(lvl)
}
