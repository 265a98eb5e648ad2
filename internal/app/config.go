package app

import (
	"time"

	"github.com/meridianrefining/refinery-backend/internal/pkg/envutil"
	"github.com/meridianrefining/refinery-backend/internal/pkg/logger"
)

type Config struct {
	JWTSecretKey    string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	HolidayCalendarPath string
	ReportCacheTTL      time.Duration

	// FlagApprovalRequiresAll keeps a batch flagged until every pending flag
	// is approved instead of releasing it on the first approval.
	FlagApprovalRequiresAll bool

	Environment string
	Version     string
}

func LoadConfig(log *logger.Logger) Config {
	jwtSecretKey := envutil.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTLSeconds := envutil.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	refreshTokenTTLSeconds := envutil.GetEnvAsInt("REFRESH_TOKEN_TTL", 86400, log)
	reportCacheTTLSeconds := envutil.GetEnvAsInt("REPORT_CACHE_TTL", 300, log)
	return Config{
		JWTSecretKey:            jwtSecretKey,
		AccessTokenTTL:          time.Duration(accessTokenTTLSeconds) * time.Second,
		RefreshTokenTTL:         time.Duration(refreshTokenTTLSeconds) * time.Second,
		HolidayCalendarPath:     envutil.GetEnv("HOLIDAY_CALENDAR_PATH", "", log),
		ReportCacheTTL:          time.Duration(reportCacheTTLSeconds) * time.Second,
		FlagApprovalRequiresAll: envutil.GetEnvAsBool("FLAG_APPROVAL_REQUIRES_ALL", false, log),
		Environment:             envutil.GetEnv("ENVIRONMENT", "development", log),
		Version:                 envutil.GetEnv("SERVICE_VERSION", "dev", log),
	}
}
