package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the tip bot configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Ethereum EthereumConfig `mapstructure:"ethereum"`
	Wallet   WalletConfig   `mapstructure:"wallet"`
	Token    TokenConfig    `mapstructure:"token"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Slack    SlackConfig    `mapstructure:"slack"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// EthereumConfig contains Ethereum client settings
type EthereumConfig struct {
	RPCURL          string        `mapstructure:"rpc_url"`
	ChainID         int64         `mapstructure:"chain_id"`
	TokenContract   string        `mapstructure:"token_contract"`
	Confirmations   uint64        `mapstructure:"confirmations"`
	GasLimit        uint64        `mapstructure:"gas_limit"`
	MaxGasPrice     string        `mapstructure:"max_gas_price"`
	PollingInterval time.Duration `mapstructure:"polling_interval"`
	ConfirmTimeout  time.Duration `mapstructure:"confirm_timeout"`
	ExplorerBaseURL string        `mapstructure:"explorer_base_url"`
}

// WalletConfig contains the admin wallet root secret.
// The mnemonic is the single root from which the admin/pool account (index 0)
// and every user deposit account are derived.
type WalletConfig struct {
	Mnemonic string `mapstructure:"mnemonic"`
}

// TokenConfig contains the stablecoin metadata used for the EIP-712 domain
type TokenConfig struct {
	Name    string `mapstructure:"name"`
	Symbol  string `mapstructure:"symbol"`
	Version string `mapstructure:"version"`
}

// QueueConfig contains transaction queue settings
type QueueConfig struct {
	Buffer int `mapstructure:"buffer"`
}

// SlackConfig contains Slack Web API settings for direct-message delivery
type SlackConfig struct {
	BotToken string `mapstructure:"bot_token"`
	APIURL   string `mapstructure:"api_url"`
}

// AuthConfig contains admin endpoint authentication settings
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "60s")
	viper.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.database", "tipbot")

	// Ethereum defaults (Base mainnet)
	viper.SetDefault("ethereum.chain_id", 8453)
	viper.SetDefault("ethereum.confirmations", 1)
	viper.SetDefault("ethereum.gas_limit", 120000)
	viper.SetDefault("ethereum.polling_interval", "3s")
	viper.SetDefault("ethereum.confirm_timeout", "5m")
	viper.SetDefault("ethereum.explorer_base_url", "https://basescan.org")

	// Token defaults (USDC on Base)
	viper.SetDefault("token.name", "USD Coin")
	viper.SetDefault("token.symbol", "USDC")
	viper.SetDefault("token.version", "2")

	// Queue defaults
	viper.SetDefault("queue.buffer", 64)

	// Slack defaults
	viper.SetDefault("slack.api_url", "https://slack.com/api")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output_path", "stdout")
}

func validate(config *Config) error {
	if config.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if config.Ethereum.RPCURL == "" {
		return fmt.Errorf("ethereum.rpc_url is required")
	}
	if config.Ethereum.TokenContract == "" {
		return fmt.Errorf("ethereum.token_contract is required")
	}
	if config.Wallet.Mnemonic == "" {
		return fmt.Errorf("wallet.mnemonic is required")
	}
	return nil
}

// GetConnectionString returns a PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
