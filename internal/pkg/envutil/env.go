package envutil

import (
	"os"
	"strconv"
	"strings"

	"github.com/meridianrefining/refinery-backend/internal/pkg/logger"
)

// GetEnv returns the value of key or defaultVal when unset/empty.
func GetEnv(key, defaultVal string, log *logger.Logger) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		if defaultVal != "" && log != nil {
			log.Debug("Env var unset, using default", "key", key, "default", defaultVal)
		}
		return defaultVal
	}
	return v
}

func GetEnvAsInt(key string, defaultVal int, log *logger.Logger) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		if log != nil {
			log.Warn("Env var is not an int, using default", "key", key, "value", v, "default", defaultVal)
		}
		return defaultVal
	}
	return n
}

func GetEnvAsBool(key string, defaultVal bool, log *logger.Logger) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		if log != nil {
			log.Warn("Env var is not a bool, using default", "key", key, "value", v, "default", defaultVal)
		}
		return defaultVal
	}
	return b
}
