// Package config loads the application configuration: a JSON file discovered
// near the binary plus GACETA_* environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	General  GeneralConfig  `mapstructure:"general"`
	Server   ServerConfig   `mapstructure:"server"`
	Oracle   OracleConfig   `mapstructure:"oracle"`
	Search   SearchConfig   `mapstructure:"search"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Signals  SignalsConfig  `mapstructure:"signals"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Memory   MemoryConfig   `mapstructure:"memory"`
	Delivery DeliveryConfig `mapstructure:"delivery"`
}

type GeneralConfig struct {
	// TopicDomain is what the briefing is about, e.g. "Cuba".
	TopicDomain string `mapstructure:"topic_domain"`
	Debug       bool   `mapstructure:"debug"`
}

type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"`
	// Schedule is a cron expression; empty disables scheduled runs.
	Schedule string `mapstructure:"schedule"`
}

type OracleConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	Project         string        `mapstructure:"project"`
	Location        string        `mapstructure:"location"`
	GenerativeModel string        `mapstructure:"generative_model"`
	EmbeddingModel  string        `mapstructure:"embedding_model"`
	EmbeddingDims   int           `mapstructure:"embedding_dims"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type SearchConfig struct {
	// Keyword is the fallback provider behind the grounded searcher.
	Keyword         string `mapstructure:"keyword"`
	KeywordAPIKey   string `mapstructure:"keyword_api_key"`
	ResultsPerQuery int    `mapstructure:"results_per_query"`
}

type FetchConfig struct {
	// Kind selects the fetcher: http or chromedp.
	Kind    string        `mapstructure:"kind"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type EconomicSourceConfig struct {
	Name     string `mapstructure:"name"`
	URL      string `mapstructure:"url"`
	ImageURL string `mapstructure:"image_url"`
}

type TrendsConfig struct {
	Geo             string `mapstructure:"geo"`
	DailyQuota      int64  `mapstructure:"daily_quota"`
	BigQueryProject string `mapstructure:"bigquery_project"`
	SerpAPIKey      string `mapstructure:"serpapi_key"`
}

type SignalsConfig struct {
	EconomicSources []EconomicSourceConfig `mapstructure:"economic_sources"`
	Trends          TrendsConfig           `mapstructure:"trends"`
}

type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN returns the connection string, preferring the explicit URL.
func (p PostgresConfig) DSN() string {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, ssl)
}

func (p PostgresConfig) Validate() error {
	if strings.TrimSpace(p.URL) != "" {
		return nil
	}
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("storage.postgres.host required when url is not provided")
	}
	if strings.TrimSpace(p.Port) == "" {
		return fmt.Errorf("storage.postgres.port required when url is not provided")
	}
	if strings.TrimSpace(p.DBName) == "" {
		return fmt.Errorf("storage.postgres.dbname required when url is not provided")
	}
	return nil
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type MemoryConfig struct {
	// WindowDays bounds the "recent briefings" context for query generation.
	WindowDays int `mapstructure:"window_days"`
	// SimilarityK is how many nearest topics the dedup filter consults.
	SimilarityK int `mapstructure:"similarity_k"`
	MaxQueries  int `mapstructure:"max_queries"`
}

type DeliveryConfig struct {
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       string   `mapstructure:"to"`
	BCC      []string `mapstructure:"bcc"`
	Subject  string   `mapstructure:"subject"`
	// NonInteractive skips the send confirmation prompt.
	NonInteractive bool `mapstructure:"non_interactive"`
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.topic_domain", "Cuba")
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("oracle.generative_model", "gemini-2.5-flash")
	viper.SetDefault("oracle.embedding_model", "text-embedding-004")
	viper.SetDefault("oracle.embedding_dims", 768)
	viper.SetDefault("oracle.timeout", time.Minute)
	viper.SetDefault("search.keyword", "serper")
	viper.SetDefault("search.results_per_query", 5)
	viper.SetDefault("fetch.kind", "http")
	viper.SetDefault("fetch.timeout", 10*time.Second)
	viper.SetDefault("signals.trends.geo", "CU")
	viper.SetDefault("signals.trends.daily_quota", 20)
	viper.SetDefault("storage.redis.timeout", 5*time.Second)
	viper.SetDefault("memory.window_days", 3)
	viper.SetDefault("memory.similarity_k", 3)
	viper.SetDefault("memory.max_queries", 3)
	viper.SetDefault("delivery.smtp_port", 587)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("GACETA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	if err := config.Storage.Postgres.Validate(); err != nil {
		panic(err)
	}
	return &config
}
