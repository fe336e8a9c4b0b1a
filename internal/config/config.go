package config

import (
	"os"
	"strconv"
	"time"

	"github.com/quantfold/execution-engine/pkg/types"
)

type Config struct {
	Environment string
	LogLevel    string

	Broker struct {
		Name    string // paper, bybit
		APIKey  string
		Secret  string
		Testnet bool
		Demo    bool
	}

	Execution struct {
		DefaultTimeInForce   types.TimeInForce
		QuoteFallbackPrice   float64 // used when no quote is available
		OrderPollInterval    time.Duration
		OrderPollErrInterval time.Duration
	}

	Risk struct {
		Limits           types.RiskLimits
		MonitorInterval  time.Duration
		ErrorInterval    time.Duration
		AutoRemediation  bool
	}

	Monitoring struct {
		PrometheusPort int
		HealthPort     int
	}
}

func Load() *Config {
	cfg := &Config{
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}

	cfg.Broker.Name = getEnv("BROKER_NAME", "paper")
	cfg.Broker.APIKey = getEnv("BROKER_API_KEY", "")
	cfg.Broker.Secret = getEnv("BROKER_SECRET", "")
	cfg.Broker.Testnet = getEnvBool("BROKER_TESTNET", true)
	cfg.Broker.Demo = getEnvBool("BROKER_DEMO", false)

	cfg.Execution.DefaultTimeInForce = types.TimeInForce(getEnv("DEFAULT_TIME_IN_FORCE", string(types.TimeInForceDay)))
	cfg.Execution.QuoteFallbackPrice = getEnvFloat("QUOTE_FALLBACK_PRICE", 100.0)
	cfg.Execution.OrderPollInterval = getEnvDuration("ORDER_POLL_INTERVAL", 5*time.Second)
	cfg.Execution.OrderPollErrInterval = getEnvDuration("ORDER_POLL_ERR_INTERVAL", 10*time.Second)

	cfg.Risk.Limits = types.RiskLimits{
		MaxPositionSize:           getEnvFloat("MAX_POSITION_SIZE", 50000.0),
		MaxPortfolioConcentration: getEnvFloat("MAX_PORTFOLIO_CONCENTRATION", 0.20),
		MaxDailyLoss:              getEnvFloat("MAX_DAILY_LOSS", 5000.0),
		MaxDrawdown:               getEnvFloat("MAX_DRAWDOWN", 0.15),
		StopLossPercentage:        getEnvFloat("STOP_LOSS_PERCENTAGE", 0.05),
	}
	cfg.Risk.MonitorInterval = getEnvDuration("RISK_MONITOR_INTERVAL", 30*time.Second)
	cfg.Risk.ErrorInterval = getEnvDuration("RISK_MONITOR_ERR_INTERVAL", 60*time.Second)
	cfg.Risk.AutoRemediation = getEnvBool("RISK_AUTO_REMEDIATION", true)

	cfg.Monitoring.PrometheusPort = getEnvInt("PROMETHEUS_PORT", 8080)
	cfg.Monitoring.HealthPort = getEnvInt("HEALTH_PORT", 8081)

	return cfg
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}
