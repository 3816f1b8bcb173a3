package app

import (
	"github.com/enersystems/es-inventory-hub/internal/platform/logger"
	"github.com/enersystems/es-inventory-hub/internal/utils"
)

type Config struct {
	HTTPAddr    string
	MetricsAddr string
	JWTSecret   string
	PolicyPath  string
	Environment string
	Version     string
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		HTTPAddr:    utils.GetEnv("HTTP_ADDR", ":8080", log),
		MetricsAddr: utils.GetEnv("METRICS_ADDR", "", log),
		JWTSecret:   utils.GetEnv("JWT_SECRET_KEY", "", log),
		PolicyPath:  utils.GetEnv("RECONCILE_POLICY_PATH", "", log),
		Environment: utils.GetEnv("ENVIRONMENT", "development", log),
		Version:     utils.GetEnv("SERVICE_VERSION", "dev", log),
	}
}
