package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/innocode-solutions/abp-5dsm-sub002/internal/flagx"
	"github.com/innocode-solutions/abp-5dsm-sub002/internal/timex"
)

// JsonConfig is the on-disk shape of the optional configuration file.
// Durations accept "15m"-style strings or integer nanoseconds. Absent or zero
// fields keep the value from the previous layer.
type JsonConfig struct {
	HTTPAddr                    string         `json:"http_addr"`
	DatabaseDSN                 string         `json:"database_dsn"`
	SecretKey                   string         `json:"secret_key"`
	AccessTokenValidityDuration timex.Duration `json:"access_token_validity_duration"`
	TokenLeeway                 timex.Duration `json:"token_leeway"`
	BcryptCost                  int            `json:"bcrypt_cost"`
	ResetCodeLength             int            `json:"reset_code_length"`
	ResetCodeValidityDuration   timex.Duration `json:"reset_code_validity_duration"`
	ResetCodeMaxAttempts        int            `json:"reset_code_max_attempts"`
	StrictValidation            *bool          `json:"strict_validation"`
	SMTPHost                    string         `json:"smtp_host"`
	SMTPPort                    int            `json:"smtp_port"`
	SMTPUser                    string         `json:"smtp_user"`
	SMTPPassword                string         `json:"smtp_password"`
	MailFrom                    string         `json:"mail_from"`
	MailTimeout                 timex.Duration `json:"mail_timeout"`
	DBTimeout                   timex.Duration `json:"db_timeout"`
	RedisAddr                   string         `json:"redis_addr"`
	RedisPassword               string         `json:"redis_password"`
	RateLimitAttempts           int            `json:"rate_limit_attempts"`
	RateLimitWindow             timex.Duration `json:"rate_limit_window"`
	PredictionServiceURL        string         `json:"prediction_service_url"`
	PredictionTimeout           timex.Duration `json:"prediction_timeout"`
	LogLevel                    string         `json:"log_level"`
	ShutdownTimeout             timex.Duration `json:"shutdown_timeout"`
}

// parseJson overlays values from the file named by -c/-config. Nothing is
// loaded when neither flag is present. An unreadable or invalid file panics.
func parseJson(config *Config, args []string) {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	c.apply(config)
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.TokenLeeway, c.TokenLeeway)
	setInt(&config.BcryptCost, c.BcryptCost)
	setInt(&config.ResetCodeLength, c.ResetCodeLength)
	setDuration(&config.ResetCodeValidityDuration, c.ResetCodeValidityDuration)
	setInt(&config.ResetCodeMaxAttempts, c.ResetCodeMaxAttempts)
	if c.StrictValidation != nil {
		config.StrictValidation = *c.StrictValidation
	}
	setString(&config.SMTPHost, c.SMTPHost)
	setInt(&config.SMTPPort, c.SMTPPort)
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.MailFrom, c.MailFrom)
	setDuration(&config.MailTimeout, c.MailTimeout)
	setDuration(&config.DBTimeout, c.DBTimeout)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	setInt(&config.RateLimitAttempts, c.RateLimitAttempts)
	setDuration(&config.RateLimitWindow, c.RateLimitWindow)
	setString(&config.PredictionServiceURL, c.PredictionServiceURL)
	setDuration(&config.PredictionTimeout, c.PredictionTimeout)
	setString(&config.LogLevel, c.LogLevel)
	setDuration(&config.ShutdownTimeout, c.ShutdownTimeout)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.IsSet() {
		*dst = v.Duration
	}
}
