// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

const envPrefix = "DUTYROSTER"

type Config struct {
	Port            int
	DBPath          string
	LogLevel        string
	LogFormat       string
	BaseURL         string
	Location        *time.Location
	ApprovalWindow  time.Duration
	ShutdownTimeout time.Duration
	WSOrigins       []string

	SendGridKey  string
	MailFromName string
	MailFrom     string

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubscriber string

	FirebaseCredentials string

	S3Endpoint        string
	S3Bucket          string
	S3Region          string
	S3AccessKey       string
	S3SecretKey       string
	S3Prefix          string
	ArchivePassphrase string

	CleanupSchedule string
	ArchiveSchedule string
}

func defaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("db_path", "dutyroster.db")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("base_url", "http://localhost:8080")
	v.SetDefault("timezone", "Local")
	v.SetDefault("approval_window", "5m")
	v.SetDefault("shutdown_timeout", "10s")
	v.SetDefault("ws_origins", "")
	v.SetDefault("sendgrid_api_key", "")
	v.SetDefault("mail_from_name", "Duty Roster")
	v.SetDefault("mail_from", "noreply@localhost")
	v.SetDefault("vapid_public_key", "")
	v.SetDefault("vapid_private_key", "")
	v.SetDefault("vapid_subscriber", "mailto:noreply@localhost")
	v.SetDefault("firebase_credentials", "")
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("s3_bucket", "")
	v.SetDefault("s3_region", "us-east-1")
	v.SetDefault("s3_access_key", "")
	v.SetDefault("s3_secret_key", "")
	v.SetDefault("s3_prefix", "")
	v.SetDefault("archive_passphrase", "")
	v.SetDefault("cleanup_schedule", "0 3 * * *")
	v.SetDefault("archive_schedule", "30 3 * * 1")
}

// Load reads envFile when it exists, then the DUTYROSTER_* environment.
// Variables already set in the environment win over the file. Every invalid
// value is reported in one error.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	defaults(v)
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	cfg := Config{
		Port:                v.GetInt("port"),
		DBPath:              v.GetString("db_path"),
		LogLevel:            strings.ToLower(v.GetString("log_level")),
		LogFormat:           strings.ToLower(v.GetString("log_format")),
		BaseURL:             strings.TrimRight(v.GetString("base_url"), "/"),
		ApprovalWindow:      v.GetDuration("approval_window"),
		ShutdownTimeout:     v.GetDuration("shutdown_timeout"),
		WSOrigins:           splitList(v.GetString("ws_origins")),
		SendGridKey:         v.GetString("sendgrid_api_key"),
		MailFromName:        v.GetString("mail_from_name"),
		MailFrom:            v.GetString("mail_from"),
		VAPIDPublicKey:      v.GetString("vapid_public_key"),
		VAPIDPrivateKey:     v.GetString("vapid_private_key"),
		VAPIDSubscriber:     v.GetString("vapid_subscriber"),
		FirebaseCredentials: v.GetString("firebase_credentials"),
		S3Endpoint:          v.GetString("s3_endpoint"),
		S3Bucket:            v.GetString("s3_bucket"),
		S3Region:            v.GetString("s3_region"),
		S3AccessKey:         v.GetString("s3_access_key"),
		S3SecretKey:         v.GetString("s3_secret_key"),
		S3Prefix:            v.GetString("s3_prefix"),
		ArchivePassphrase:   v.GetString("archive_passphrase"),
		CleanupSchedule:     v.GetString("cleanup_schedule"),
		ArchiveSchedule:     v.GetString("archive_schedule"),
	}

	invalid := make([]string, 0, 4)
	key := func(name string) string { return envPrefix + "_" + strings.ToUpper(name) }

	if cfg.Port < 1 || cfg.Port > 65535 {
		invalid = append(invalid, key("port"))
	}
	if cfg.DBPath == "" {
		invalid = append(invalid, key("db_path"))
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		invalid = append(invalid, key("log_level"))
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		invalid = append(invalid, key("log_format"))
	}
	loc, err := time.LoadLocation(v.GetString("timezone"))
	if err != nil {
		invalid = append(invalid, key("timezone"))
	}
	cfg.Location = loc
	if cfg.ApprovalWindow <= 0 {
		invalid = append(invalid, key("approval_window"))
	}
	if cfg.ShutdownTimeout <= 0 {
		invalid = append(invalid, key("shutdown_timeout"))
	}
	if (cfg.VAPIDPublicKey == "") != (cfg.VAPIDPrivateKey == "") {
		invalid = append(invalid, key("vapid_private_key"))
	}
	if cfg.FirebaseCredentials != "" {
		if _, err := os.Stat(cfg.FirebaseCredentials); err != nil {
			invalid = append(invalid, key("firebase_credentials"))
		}
	}
	if cfg.S3Bucket != "" && (cfg.S3AccessKey == "" || cfg.S3SecretKey == "") {
		invalid = append(invalid, key("s3_access_key"))
	}
	if _, err := cron.ParseStandard(cfg.CleanupSchedule); err != nil {
		invalid = append(invalid, key("cleanup_schedule"))
	}
	if _, err := cron.ParseStandard(cfg.ArchiveSchedule); err != nil {
		invalid = append(invalid, key("archive_schedule"))
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(invalid, ", "))
	}
	return cfg, nil
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
