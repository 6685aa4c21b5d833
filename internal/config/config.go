package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	JWT      JWTConfig
	App      AppConfig
	Payroll  PayrollConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string
}

// AppConfig holds application configuration
type AppConfig struct {
	Port           int
	Env            string
	LogLevel       string
	Version        string
	AllowedOrigins []string
}

// PayrollConfig holds the calculation and scheduling switches of the payroll engine
type PayrollConfig struct {
	BatchConcurrency  int
	NightPolicy       string
	WeekStart         time.Weekday
	Location          *time.Location
	RequireAttendance bool
	ProtectConfirmed  bool

	// RuleSetSource is "file" (YAML rule book, embedded default when RuleSetFile is empty)
	// or "database" (labor_law_rule_sets table).
	RuleSetSource string
	RuleSetFile   string

	// AutoRunDay is the day of month on which the previous month is calculated
	// for AutoRunCompanies. Zero disables the job.
	AutoRunDay       int
	AutoRunCompanies []string
}

const (
	RuleSetSourceFile     = "file"
	RuleSetSourceDatabase = "database"
)

func Load() (*Config, error) {
	// .env is optional; the process environment always wins.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	config := &Config{}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	maxConns, err := strconv.ParseInt(getEnv("DB_MAX_CONNS", "25"), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}
	minConns, err := strconv.ParseInt(getEnv("DB_MIN_CONNS", "5"), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "hris-payroll"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		MaxConns: int32(maxConns),
		MinConns: int32(minConns),
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Port:           appPort,
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Version:        getEnv("APP_VERSION", "v1.0.0"),
		AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS"),
	}
	if len(config.App.AllowedOrigins) == 0 {
		config.App.AllowedOrigins = []string{"http://localhost:3000"}
	}

	// JWT configuration
	config.JWT = JWTConfig{
		Secret: getEnv("JWT_SECRET_KEY", ""),
	}

	// Payroll configuration
	payroll, err := loadPayroll()
	if err != nil {
		return nil, err
	}
	config.Payroll = payroll

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

func loadPayroll() (PayrollConfig, error) {
	concurrency, err := strconv.Atoi(getEnv("PAYROLL_BATCH_CONCURRENCY", "8"))
	if err != nil {
		return PayrollConfig{}, fmt.Errorf("invalid PAYROLL_BATCH_CONCURRENCY: %w", err)
	}

	weekStart, err := parseWeekday(getEnv("PAYROLL_WEEK_START", "monday"))
	if err != nil {
		return PayrollConfig{}, fmt.Errorf("invalid PAYROLL_WEEK_START: %w", err)
	}

	loc, err := time.LoadLocation(getEnv("PAYROLL_TIMEZONE", "Asia/Seoul"))
	if err != nil {
		return PayrollConfig{}, fmt.Errorf("invalid PAYROLL_TIMEZONE: %w", err)
	}

	requireAttendance, err := strconv.ParseBool(getEnv("PAYROLL_REQUIRE_ATTENDANCE", "false"))
	if err != nil {
		return PayrollConfig{}, fmt.Errorf("invalid PAYROLL_REQUIRE_ATTENDANCE: %w", err)
	}

	protectConfirmed, err := strconv.ParseBool(getEnv("PAYROLL_PROTECT_CONFIRMED", "false"))
	if err != nil {
		return PayrollConfig{}, fmt.Errorf("invalid PAYROLL_PROTECT_CONFIRMED: %w", err)
	}

	autoRunDay, err := strconv.Atoi(getEnv("PAYROLL_AUTO_RUN_DAY", "0"))
	if err != nil {
		return PayrollConfig{}, fmt.Errorf("invalid PAYROLL_AUTO_RUN_DAY: %w", err)
	}

	return PayrollConfig{
		BatchConcurrency:  concurrency,
		NightPolicy:       strings.ToLower(getEnv("PAYROLL_NIGHT_POLICY", "checkout_window")),
		WeekStart:         weekStart,
		Location:          loc,
		RequireAttendance: requireAttendance,
		ProtectConfirmed:  protectConfirmed,
		RuleSetSource:     strings.ToLower(getEnv("PAYROLL_RULE_SET_SOURCE", RuleSetSourceFile)),
		RuleSetFile:       getEnv("PAYROLL_RULE_SET_FILE", ""),
		AutoRunDay:        autoRunDay,
		AutoRunCompanies:  getEnvSlice("PAYROLL_AUTO_RUN_COMPANIES"),
	}, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}

	if c.Database.MaxConns < 1 || c.Database.MinConns < 0 {
		return fmt.Errorf("DB_MAX_CONNS must be at least 1 and DB_MIN_CONNS not negative")
	}

	p := c.Payroll
	if p.BatchConcurrency < 1 {
		return fmt.Errorf("PAYROLL_BATCH_CONCURRENCY must be at least 1")
	}
	if p.NightPolicy != "checkout_window" && p.NightPolicy != "interval_overlap" {
		return fmt.Errorf("PAYROLL_NIGHT_POLICY must be checkout_window or interval_overlap")
	}
	if p.RuleSetSource != RuleSetSourceFile && p.RuleSetSource != RuleSetSourceDatabase {
		return fmt.Errorf("PAYROLL_RULE_SET_SOURCE must be file or database")
	}
	if p.AutoRunDay < 0 || p.AutoRunDay > 28 {
		return fmt.Errorf("PAYROLL_AUTO_RUN_DAY must be between 0 and 28")
	}
	if p.AutoRunDay > 0 && len(p.AutoRunCompanies) == 0 {
		return fmt.Errorf("PAYROLL_AUTO_RUN_COMPANIES is required when PAYROLL_AUTO_RUN_DAY is set")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(env string) []string {
	value := getEnv(env, "")
	if value == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}

func parseWeekday(s string) (time.Weekday, error) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.EqualFold(d.String(), strings.TrimSpace(s)) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}
