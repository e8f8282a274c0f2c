package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string
	OpsToken  string

	Portal     PortalConfig
	Telegram   TelegramConfig
	Attendance AttendanceConfig
	Schedule   ScheduleConfig
	Snapshot   SnapshotConfig
	Vocabulary VocabularyConfig
	CORS       CORSConfig
	Log        LogConfig
}

// PortalConfig points at the groupware portal the report is pulled from.
type PortalConfig struct {
	LoginURL      string
	ReportURL     string
	Username      string
	Password      string
	UsernameField string
	PasswordField string
	UserAgent     string
	Timeout       time.Duration
}

// TelegramConfig configures report delivery.
type TelegramConfig struct {
	BotToken     string
	ChatID       int64
	Retries      int
	RetryDelay   time.Duration
	SendSnapshot bool
}

// AttendanceConfig carries the sheet name and the standard workday. Clock
// values are HH:MM strings; malformed values fall back to the defaults with
// a logged warning when materialized.
type AttendanceConfig struct {
	SheetName            string
	WorkStart            string
	WorkEnd              string
	LunchStart           string
	LunchEnd             string
	MorningHalfStart     string
	AfternoonHalfEnd     string
	EveningThresholdHour int
}

// ScheduleConfig drives daemon-mode runs.
type ScheduleConfig struct {
	Enabled      bool
	Morning      string
	Evening      string
	WeekdaysOnly bool
}

// SnapshotConfig controls per-run snapshot files.
type SnapshotConfig struct {
	Dir    string
	TTL    time.Duration
	Format string
}

// VocabularyConfig locates the leave vocabulary file.
type VocabularyConfig struct {
	File  string
	Watch bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.OpsToken = v.GetString("OPS_TOKEN")

	cfg.Portal = PortalConfig{
		LoginURL:      v.GetString("PORTAL_LOGIN_URL"),
		ReportURL:     v.GetString("PORTAL_REPORT_URL"),
		Username:      v.GetString("PORTAL_USERNAME"),
		Password:      v.GetString("PORTAL_PASSWORD"),
		UsernameField: v.GetString("PORTAL_USERNAME_FIELD"),
		PasswordField: v.GetString("PORTAL_PASSWORD_FIELD"),
		UserAgent:     v.GetString("PORTAL_USER_AGENT"),
		Timeout:       parseDuration(v.GetString("PORTAL_TIMEOUT"), 2*time.Minute),
	}

	cfg.Telegram = TelegramConfig{
		BotToken:     v.GetString("TELEGRAM_BOT_TOKEN"),
		ChatID:       v.GetInt64("TELEGRAM_CHAT_ID"),
		Retries:      v.GetInt("TELEGRAM_RETRIES"),
		RetryDelay:   parseDuration(v.GetString("TELEGRAM_RETRY_DELAY"), 3*time.Second),
		SendSnapshot: v.GetBool("TELEGRAM_SEND_SNAPSHOT"),
	}

	cfg.Attendance = AttendanceConfig{
		SheetName:            v.GetString("REPORT_SHEET_NAME"),
		WorkStart:            v.GetString("WORK_START"),
		WorkEnd:              v.GetString("WORK_END"),
		LunchStart:           v.GetString("LUNCH_START"),
		LunchEnd:             v.GetString("LUNCH_END"),
		MorningHalfStart:     v.GetString("MORNING_HALF_EXPECTED_START"),
		AfternoonHalfEnd:     v.GetString("AFTERNOON_HALF_EXPECTED_END"),
		EveningThresholdHour: v.GetInt("EVENING_RUN_THRESHOLD_HOUR"),
	}

	cfg.Schedule = ScheduleConfig{
		Enabled:      v.GetBool("SCHEDULE_ENABLED"),
		Morning:      v.GetString("SCHEDULE_MORNING"),
		Evening:      v.GetString("SCHEDULE_EVENING"),
		WeekdaysOnly: v.GetBool("SCHEDULE_WEEKDAYS_ONLY"),
	}

	cfg.Snapshot = SnapshotConfig{
		Dir:    v.GetString("SNAPSHOT_DIR"),
		TTL:    parseDuration(v.GetString("SNAPSHOT_TTL"), 7*24*time.Hour),
		Format: strings.ToLower(v.GetString("SNAPSHOT_FORMAT")),
	}

	cfg.Vocabulary = VocabularyConfig{
		File:  v.GetString("VOCABULARY_FILE"),
		Watch: v.GetBool("VOCABULARY_WATCH"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("OPS_TOKEN", "")

	v.SetDefault("PORTAL_LOGIN_URL", "")
	v.SetDefault("PORTAL_REPORT_URL", "")
	v.SetDefault("PORTAL_USERNAME", "")
	v.SetDefault("PORTAL_PASSWORD", "")
	v.SetDefault("PORTAL_USERNAME_FIELD", "userEmail")
	v.SetDefault("PORTAL_PASSWORD_FIELD", "userPw")
	v.SetDefault("PORTAL_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("PORTAL_TIMEOUT", "2m")

	v.SetDefault("TELEGRAM_BOT_TOKEN", "")
	v.SetDefault("TELEGRAM_CHAT_ID", 0)
	v.SetDefault("TELEGRAM_RETRIES", 3)
	v.SetDefault("TELEGRAM_RETRY_DELAY", "3s")
	v.SetDefault("TELEGRAM_SEND_SNAPSHOT", false)

	v.SetDefault("REPORT_SHEET_NAME", "세부현황_B")
	v.SetDefault("WORK_START", "09:00")
	v.SetDefault("WORK_END", "18:00")
	v.SetDefault("LUNCH_START", "12:00")
	v.SetDefault("LUNCH_END", "13:00")
	v.SetDefault("MORNING_HALF_EXPECTED_START", "14:00")
	v.SetDefault("AFTERNOON_HALF_EXPECTED_END", "14:00")
	v.SetDefault("EVENING_RUN_THRESHOLD_HOUR", 18)

	v.SetDefault("SCHEDULE_ENABLED", false)
	v.SetDefault("SCHEDULE_MORNING", "08:40")
	v.SetDefault("SCHEDULE_EVENING", "18:10")
	v.SetDefault("SCHEDULE_WEEKDAYS_ONLY", true)

	v.SetDefault("SNAPSHOT_DIR", "./snapshots")
	v.SetDefault("SNAPSHOT_TTL", "168h")
	v.SetDefault("SNAPSHOT_FORMAT", "xlsx")

	v.SetDefault("VOCABULARY_FILE", "./configs/vocabulary.yaml")
	v.SetDefault("VOCABULARY_WATCH", true)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
