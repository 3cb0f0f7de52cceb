package config

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

type lookupFunc func(key string) (string, bool)

// Environment variable names understood by the server.
const (
	EnvHTTPAddr             = "HTTP_ADDR"
	EnvDatabaseDSN          = "DATABASE_URL"
	EnvSecretKey            = "JWT_SECRET"
	EnvTokenTTL             = "JWT_TTL"
	EnvTokenLeeway          = "JWT_LEEWAY"
	EnvBcryptCost           = "BCRYPT_COST"
	EnvResetCodeLength      = "RESET_CODE_LENGTH"
	EnvResetCodeTTL         = "RESET_CODE_TTL"
	EnvResetCodeMaxAttempts = "RESET_CODE_MAX_ATTEMPTS"
	EnvStrictValidation     = "STRICT_VALIDATION"
	EnvSMTPHost             = "SMTP_HOST"
	EnvSMTPPort             = "SMTP_PORT"
	EnvSMTPUser             = "SMTP_USER"
	EnvSMTPPassword         = "SMTP_PASSWORD"
	EnvMailFrom             = "MAIL_FROM"
	EnvMailTimeout          = "MAIL_TIMEOUT"
	EnvDBTimeout            = "DB_TIMEOUT"
	EnvRedisAddr            = "REDIS_ADDR"
	EnvRedisPassword        = "REDIS_PASSWORD"
	EnvRateLimitAttempts    = "RATE_LIMIT_ATTEMPTS"
	EnvRateLimitWindow      = "RATE_LIMIT_WINDOW"
	EnvPredictionServiceURL = "PREDICTION_SERVICE_URL"
	EnvPredictionTimeout    = "PREDICTION_TIMEOUT"
	EnvLogLevel             = "LOG_LEVEL"
	EnvShutdownTimeout      = "SHUTDOWN_TIMEOUT"
)

// parseEnv overlays values from the environment. Unset or empty variables
// are skipped. All malformed values are reported together.
func parseEnv(config *Config, lookup lookupFunc) error {
	p := envParser{lookup: lookup}

	p.str(EnvHTTPAddr, &config.HTTPAddr)
	p.str(EnvDatabaseDSN, &config.DatabaseDSN)
	p.str(EnvSecretKey, &config.SecretKey)
	p.duration(EnvTokenTTL, &config.AccessTokenValidityDuration)
	p.duration(EnvTokenLeeway, &config.TokenLeeway)
	p.integer(EnvBcryptCost, &config.BcryptCost)
	p.integer(EnvResetCodeLength, &config.ResetCodeLength)
	p.duration(EnvResetCodeTTL, &config.ResetCodeValidityDuration)
	p.integer(EnvResetCodeMaxAttempts, &config.ResetCodeMaxAttempts)
	p.boolean(EnvStrictValidation, &config.StrictValidation)
	p.str(EnvSMTPHost, &config.SMTPHost)
	p.integer(EnvSMTPPort, &config.SMTPPort)
	p.str(EnvSMTPUser, &config.SMTPUser)
	p.str(EnvSMTPPassword, &config.SMTPPassword)
	p.str(EnvMailFrom, &config.MailFrom)
	p.duration(EnvMailTimeout, &config.MailTimeout)
	p.duration(EnvDBTimeout, &config.DBTimeout)
	p.str(EnvRedisAddr, &config.RedisAddr)
	p.str(EnvRedisPassword, &config.RedisPassword)
	p.integer(EnvRateLimitAttempts, &config.RateLimitAttempts)
	p.duration(EnvRateLimitWindow, &config.RateLimitWindow)
	p.str(EnvPredictionServiceURL, &config.PredictionServiceURL)
	p.duration(EnvPredictionTimeout, &config.PredictionTimeout)
	p.str(EnvLogLevel, &config.LogLevel)
	p.duration(EnvShutdownTimeout, &config.ShutdownTimeout)

	return errors.Join(p.errs...)
}

type envParser struct {
	lookup lookupFunc
	errs   []error
}

func (p *envParser) value(key string) (string, bool) {
	v, ok := p.lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (p *envParser) str(key string, dst *string) {
	if v, ok := p.value(key); ok {
		*dst = v
	}
}

func (p *envParser) integer(key string, dst *int) {
	v, ok := p.value(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = n
}

func (p *envParser) boolean(key string, dst *bool) {
	v, ok := p.value(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = b
}

func (p *envParser) duration(key string, dst *time.Duration) {
	v, ok := p.value(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = d
}
