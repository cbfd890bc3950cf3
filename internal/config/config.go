package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-yaml/yaml"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/totegamma/helm/internal/domain"
)

const EnvPrefix = "helm"

type Config struct {
	Helm   Helm   `yaml:"helm"`
	Server Server `yaml:"server"`
}

type Helm struct {
	FQDN             string        `yaml:"fqdn"`
	ServiceAuthority string        `yaml:"serviceAuthority" split_words:"true"`
	ReplayWindow     time.Duration `yaml:"replayWindow" split_words:"true"`
	RateLimit        float64       `yaml:"rateLimit" split_words:"true"`
	RateBurst        int           `yaml:"rateBurst" split_words:"true"`
}

type Server struct {
	Bind           string        `yaml:"bind"`
	DatabaseDriver string        `yaml:"databaseDriver" split_words:"true"`
	DatabaseDsn    string        `yaml:"databaseDsn" split_words:"true"`
	RedisAddr      string        `yaml:"redisAddr" split_words:"true"`
	RedisPassword  string        `yaml:"redisPassword" split_words:"true"`
	RedisDB        int           `yaml:"redisDB" envconfig:"redis_db"`
	MemcachedAddr  string        `yaml:"memcachedAddr" split_words:"true"`
	CacheTTL       time.Duration `yaml:"cacheTTL" envconfig:"cache_ttl"`
	EnableTrace    bool          `yaml:"enableTrace" split_words:"true"`
	TraceEndpoint  string        `yaml:"traceEndpoint" split_words:"true"`
	SentryDsn      string        `yaml:"sentryDsn" split_words:"true"`
	Environment    string        `yaml:"environment"`
	SweepCron      string        `yaml:"sweepCron" split_words:"true"`
}

func Default() Config {
	return Config{
		Helm: Helm{
			ReplayWindow: 5 * time.Minute,
			RateLimit:    5,
			RateBurst:    20,
		},
		Server: Server{
			Bind:           ":8000",
			DatabaseDriver: "sqlite",
			CacheTTL:       time.Minute,
			Environment:    "development",
			SweepCron:      "* * * * *",
		},
	}
}

// Load reads the yaml file at path, if any, over the defaults and then applies
// HELM_* environment variables, including those from a .env file.
func Load(path string) (Config, error) {
	config := Default()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return Config{}, err
		}
		defer file.Close()

		err = yaml.NewDecoder(file).Decode(&config)
		if err != nil {
			return Config{}, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	_ = godotenv.Load(".env")
	if err := envconfig.Process(EnvPrefix, &config); err != nil {
		return Config{}, fmt.Errorf("error processing environment: %w", err)
	}

	return config, config.Validate()
}

func (c Config) Validate() error {
	if !common.IsHexAddress(c.Helm.ServiceAuthority) {
		return fmt.Errorf("helm.serviceAuthority must be a hex address, got %q", c.Helm.ServiceAuthority)
	}
	if common.HexToAddress(c.Helm.ServiceAuthority) == (common.Address{}) {
		return fmt.Errorf("helm.serviceAuthority must not be the zero address")
	}
	switch c.Server.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Server.DatabaseDriver)
	}
	if c.Server.DatabaseDriver == "postgres" && c.Server.DatabaseDsn == "" {
		return fmt.Errorf("server.databaseDsn is required for postgres")
	}
	if c.Helm.ReplayWindow <= 0 {
		return fmt.Errorf("helm.replayWindow must be positive")
	}
	return nil
}

func (c Config) ToDomain() domain.Config {
	return domain.Config{
		FQDN:             c.Helm.FQDN,
		ServiceAuthority: common.HexToAddress(c.Helm.ServiceAuthority),
		ReplayWindow:     c.Helm.ReplayWindow,
		RateLimit:        c.Helm.RateLimit,
		RateBurst:        c.Helm.RateBurst,
	}
}
