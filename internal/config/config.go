// Package config loads server settings from the environment and an optional
// .env file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	LedgerContract = "contract"
	LedgerMemory   = "memory"
)

// Config holds all server settings.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT" validate:"required,numeric"`
	DBPath     string `mapstructure:"DB_PATH" validate:"required"`

	RPCURL              string        `mapstructure:"RPC_URL" validate:"required_if=LedgerMode contract,omitempty,url"`
	ChainID             int64         `mapstructure:"CHAIN_ID" validate:"gt=0"`
	BillSplitAddress    string        `mapstructure:"BILLSPLIT_ADDRESS" validate:"required_if=LedgerMode contract,omitempty,eth_addr"`
	ARCTokenAddress     string        `mapstructure:"ARC_TOKEN_ADDRESS" validate:"omitempty,eth_addr"`
	ENSRegistryAddress  string        `mapstructure:"ENS_REGISTRY_ADDRESS" validate:"omitempty,eth_addr"`
	ENSCacheTTL         time.Duration `mapstructure:"ENS_CACHE_TTL" validate:"gte=0"`
	SignerPrivateKey    string        `mapstructure:"SIGNER_PRIVATE_KEY" validate:"omitempty,hexadecimal"`
	LedgerMode          string        `mapstructure:"LEDGER_MODE" validate:"oneof=contract memory"`
	ReceiptPollInterval time.Duration `mapstructure:"RECEIPT_POLL_INTERVAL" validate:"gt=0"`

	AMQPURL      string `mapstructure:"AMQP_URL" validate:"omitempty,url"`
	AMQPExchange string `mapstructure:"AMQP_EXCHANGE" validate:"required"`

	JWTSecret string        `mapstructure:"JWT_SECRET" validate:"required,min=16"`
	JWTTTL    time.Duration `mapstructure:"JWT_TTL" validate:"gt=0"`

	MinExpenseETH string `mapstructure:"MIN_EXPENSE_ETH" validate:"required,numeric"`

	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"oneof=text json"`
}

var keys = []string{
	"SERVER_PORT", "DB_PATH",
	"RPC_URL", "CHAIN_ID", "BILLSPLIT_ADDRESS", "ARC_TOKEN_ADDRESS",
	"ENS_REGISTRY_ADDRESS", "ENS_CACHE_TTL", "SIGNER_PRIVATE_KEY",
	"LEDGER_MODE", "RECEIPT_POLL_INTERVAL",
	"AMQP_URL", "AMQP_EXCHANGE",
	"JWT_SECRET", "JWT_TTL",
	"MIN_EXPENSE_ETH",
	"LOG_LEVEL", "LOG_FORMAT",
}

// LoadConfig reads configuration from environment variables, falling back to
// a .env file in path and then to defaults.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("DB_PATH", "./data/ontime.db")
	v.SetDefault("RPC_URL", "https://ethereum-sepolia-rpc.publicnode.com")
	v.SetDefault("CHAIN_ID", 11155111)
	v.SetDefault("ENS_REGISTRY_ADDRESS", "0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e")
	v.SetDefault("ENS_CACHE_TTL", "10m")
	v.SetDefault("LEDGER_MODE", LedgerContract)
	v.SetDefault("RECEIPT_POLL_INTERVAL", "2s")
	v.SetDefault("AMQP_EXCHANGE", "ontime.sessions")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("MIN_EXPENSE_ETH", "0.001")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")

	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("failed to read config file; using environment values", "error", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.LedgerMode = strings.ToLower(strings.TrimSpace(cfg.LedgerMode))
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	cfg.SignerPrivateKey = strings.TrimPrefix(strings.TrimSpace(cfg.SignerPrivateKey), "0x")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field formats and cross-field requirements.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.ServerPort
}

// OffchainEnabled reports whether an AMQP broker is configured.
func (c *Config) OffchainEnabled() bool {
	return c.AMQPURL != ""
}
