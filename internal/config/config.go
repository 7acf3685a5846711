// Package config loads control-plane configuration from environment
// variables, an optional config file, and defaults, using spf13/viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds every configuration section the control plane reads.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	NATS        NATSConfig        `mapstructure:"nats"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Dispatcher  DispatcherConfig  `mapstructure:"dispatcher"`
	MergeWorker MergeWorkerConfig `mapstructure:"merge_worker"`
	Budget      BudgetConfig      `mapstructure:"budget"`
	Adapter     AdapterConfig     `mapstructure:"adapter"`
	HumanLoop   HumanLoopConfig   `mapstructure:"human_loop"`
	Worktree    WorktreeConfig    `mapstructure:"worktree"`
}

// ServerConfig configures the REST transport the API server binds (the
// transport itself is an external collaborator; this only carries the
// bind address/timeouts it needs).
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeout int    `mapstructure:"write_timeout_seconds"`
	CORSOrigins  []string `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"db_name"`
	SSLMode  string `mapstructure:"ssl_mode"`
	MaxConns int    `mapstructure:"max_conns"`
	MinConns int    `mapstructure:"min_conns"`
}

func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// NATSConfig configures the pub/sub bus. An empty URL selects the
// in-memory bus, which is what test and single-process deployments use.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	ClientID      string `mapstructure:"client_id"`
	MaxReconnects int    `mapstructure:"max_reconnects"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type AuthConfig struct {
	JWTSecret     string `mapstructure:"jwt_secret"`
	TokenDuration int    `mapstructure:"token_duration_seconds"`
}

func (a *AuthConfig) TokenDurationTime() time.Duration {
	return time.Duration(a.TokenDuration) * time.Second
}

// DispatcherConfig configures the notification-driven dispatcher (§4.5).
type DispatcherConfig struct {
	MaxConcurrent          int `mapstructure:"max_concurrent"`
	PollIntervalSeconds    int `mapstructure:"poll_interval_seconds"`
	PollBatchSize          int `mapstructure:"poll_batch_size"`
	ReconcileIntervalSecs  int `mapstructure:"reconcile_interval_seconds"`
	StuckAgentMinutes      int `mapstructure:"stuck_agent_minutes"`
}

func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		MaxConcurrent:         32,
		PollIntervalSeconds:   5,
		PollBatchSize:         10,
		ReconcileIntervalSecs: 60,
		StuckAgentMinutes:     30,
	}
}

// MergeWorkerConfig configures the background merge loop (§4.7).
type MergeWorkerConfig struct {
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
	GitTimeoutSeconds   int `mapstructure:"git_timeout_seconds"`
}

func DefaultMergeWorkerConfig() MergeWorkerConfig {
	return MergeWorkerConfig{PollIntervalSeconds: 5, GitTimeoutSeconds: 60}
}

// BudgetConfig holds platform-default budget caps, applied when an agent's
// own config does not declare one (§4.3).
type BudgetConfig struct {
	DefaultDailyCostLimitUSD float64 `mapstructure:"default_daily_cost_limit_usd"`
	DefaultTaskCostLimitUSD  float64 `mapstructure:"default_task_cost_limit_usd"`
	DefaultModel             string  `mapstructure:"default_model"`
}

// AdapterConfig holds platform-wide adapter defaults (§4.4).
type AdapterConfig struct {
	DefaultAdapter    string `mapstructure:"default_adapter"`
	ToolBridgePath    string `mapstructure:"tool_bridge_path"`
	APIBaseURL        string `mapstructure:"api_base_url"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
}

// HumanLoopConfig configures default rendezvous timeouts (§4.8).
type HumanLoopConfig struct {
	DefaultTimeoutMinutes int `mapstructure:"default_timeout_minutes"`
}

// WorktreeConfig configures git worktree placement for task branches.
// Worktrees live under <repo.local_path>/.worktrees/<branch>/ per §6.
type WorktreeConfig struct {
	MaxPerRepo int `mapstructure:"max_per_repo"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_seconds", 30)
	v.SetDefault("server.write_timeout_seconds", 30)
	v.SetDefault("server.cors_origins", []string{})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "openclaw")
	v.SetDefault("database.password", "")
	v.SetDefault("database.db_name", "openclaw")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 25)
	v.SetDefault("database.min_conns", 5)

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.client_id", "openclaw")
	v.SetDefault("nats.max_reconnects", 10)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.output_path", "stdout")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_duration_seconds", 3600)

	d := DefaultDispatcherConfig()
	v.SetDefault("dispatcher.max_concurrent", d.MaxConcurrent)
	v.SetDefault("dispatcher.poll_interval_seconds", d.PollIntervalSeconds)
	v.SetDefault("dispatcher.poll_batch_size", d.PollBatchSize)
	v.SetDefault("dispatcher.reconcile_interval_seconds", d.ReconcileIntervalSecs)
	v.SetDefault("dispatcher.stuck_agent_minutes", d.StuckAgentMinutes)

	m := DefaultMergeWorkerConfig()
	v.SetDefault("merge_worker.poll_interval_seconds", m.PollIntervalSeconds)
	v.SetDefault("merge_worker.git_timeout_seconds", m.GitTimeoutSeconds)

	v.SetDefault("budget.default_daily_cost_limit_usd", 50.0)
	v.SetDefault("budget.default_task_cost_limit_usd", 20.0)
	v.SetDefault("budget.default_model", "default")

	v.SetDefault("adapter.default_adapter", "mock")
	v.SetDefault("adapter.tool_bridge_path", "")
	v.SetDefault("adapter.api_base_url", "http://localhost:8080")
	v.SetDefault("adapter.timeout_seconds", 1800)

	v.SetDefault("human_loop.default_timeout_minutes", 0)

	v.SetDefault("worktree.max_per_repo", 10)
}

// Load reads configuration from the OPENCLAW_ environment namespace, an
// optional config.yaml in the working directory or /etc/openclaw/, and
// falls back to defaults for everything else.
func Load() (*Config, error) {
	return LoadWithPath("")
}

func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("OPENCLAW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/openclaw/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	var errs []string
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errs = append(errs, "database.port must be between 1 and 65535")
	}
	if cfg.Dispatcher.MaxConcurrent <= 0 {
		errs = append(errs, "dispatcher.max_concurrent must be positive")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
