package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Upstream   UpstreamConfig
	Logger     LoggerConfig
	Database   DatabaseConfig
	RunStore   RunStoreConfig
	Pipeline   PipelineConfig
	Kubernetes KubernetesConfig
}

type ServerConfig struct {
	Host string
	Port int
}

// UpstreamConfig points the CLI at a running pipeline server.
type UpstreamConfig struct {
	URL     string
	Timeout time.Duration
}

type LoggerConfig struct {
	Level  string
	Format string
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

type RunStoreConfig struct {
	Path string
}

type PipelineConfig struct {
	Root       string
	Project    string
	Region     string
	StageImage string
}

type KubernetesConfig struct {
	Enabled        bool
	InCluster      bool
	KubeConfigPath string
	DefaultNS      string
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	return LoadFrom(viper.New())
}

// LoadFrom reads configuration from v, which may already have flags bound.
func LoadFrom(v *viper.Viper) (*Config, error) {
	// Defaults
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("UPSTREAM_URL", "http://localhost:8080")
	v.SetDefault("UPSTREAM_TIMEOUT", "30s")
	v.SetDefault("LOGGER_LEVEL", "info")
	v.SetDefault("LOGGER_FORMAT", "json")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", 5432)
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_PASSWORD", "postgres")
	v.SetDefault("DATABASE_NAME", "model_registry")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MAX_OPEN_CONNS", 10)
	v.SetDefault("DATABASE_MAX_IDLE_CONNS", 2)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", "30m")
	v.SetDefault("RUNSTORE_PATH", "pipeline-runs.db")
	v.SetDefault("PIPELINE_ROOT", "pipeline-root")
	v.SetDefault("PIPELINE_PROJECT", "")
	v.SetDefault("PIPELINE_REGION", "")
	v.SetDefault("STAGE_IMAGE", "ghcr.io/mlops/pipelinectl:latest")
	v.SetDefault("KUBERNETES_ENABLED", false)
	v.SetDefault("KUBERNETES_IN_CLUSTER", false)
	v.SetDefault("KUBERNETES_KUBECONFIG", "")
	v.SetDefault("KUBERNETES_NAMESPACE", "ml-pipelines")

	// Env
	v.AutomaticEnv()

	timeout, err := time.ParseDuration(v.GetString("UPSTREAM_TIMEOUT"))
	if err != nil {
		timeout = 30 * time.Second
	}
	lifetime, err := time.ParseDuration(v.GetString("DATABASE_CONN_MAX_LIFETIME"))
	if err != nil {
		lifetime = 30 * time.Minute
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetInt("SERVER_PORT"),
		},
		Upstream: UpstreamConfig{
			URL:     v.GetString("UPSTREAM_URL"),
			Timeout: timeout,
		},
		Logger: LoggerConfig{
			Level:  v.GetString("LOGGER_LEVEL"),
			Format: v.GetString("LOGGER_FORMAT"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("DATABASE_HOST"),
			Port:            v.GetInt("DATABASE_PORT"),
			User:            v.GetString("DATABASE_USER"),
			Password:        v.GetString("DATABASE_PASSWORD"),
			Name:            v.GetString("DATABASE_NAME"),
			SSLMode:         v.GetString("DATABASE_SSLMODE"),
			MaxOpenConns:    v.GetInt("DATABASE_MAX_OPEN_CONNS"),
			MaxIdleConns:    v.GetInt("DATABASE_MAX_IDLE_CONNS"),
			ConnMaxLifetime: lifetime,
		},
		RunStore: RunStoreConfig{
			Path: v.GetString("RUNSTORE_PATH"),
		},
		Pipeline: PipelineConfig{
			Root:       v.GetString("PIPELINE_ROOT"),
			Project:    v.GetString("PIPELINE_PROJECT"),
			Region:     v.GetString("PIPELINE_REGION"),
			StageImage: v.GetString("STAGE_IMAGE"),
		},
		Kubernetes: KubernetesConfig{
			Enabled:        v.GetBool("KUBERNETES_ENABLED"),
			InCluster:      v.GetBool("KUBERNETES_IN_CLUSTER"),
			KubeConfigPath: v.GetString("KUBERNETES_KUBECONFIG"),
			DefaultNS:      v.GetString("KUBERNETES_NAMESPACE"),
		},
	}

	return cfg, nil
}
