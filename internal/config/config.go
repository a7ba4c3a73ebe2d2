package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for our application
type Config struct {
	Port                      string
	Origin                    string
	Environment               string
	JWTSecret                 string
	JWTRefreshSecret          string
	Database                  DatabaseConfig
	Queue                     QueueConfig
	JWTExpirationMinutes      int
	JWTRefreshExpirationHours int
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// QueueConfig holds tuning values for the scheduling engine
type QueueConfig struct {
	DefaultSlotMinutes int            // slot duration when a doctor has no usable average
	MinSlotMinutes     int            // floor applied to any per-patient duration
	SearchHorizonDays  int            // how far ahead the slot finder looks
	Location           *time.Location // clinic-local calendar
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load database configuration
	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "clinic"),
	}

	// Build DSN (Data Source Name) for MySQL connection. Appointment and
	// queue dates are normalized to midnight UTC before they reach the
	// driver, so the connection must serialize time.Time values in UTC:
	// any other loc shifts midnight across the DATE boundary and breaks
	// appointment_date equality filters.
	dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)

	jwtExpMinutes, err := strconv.Atoi(getEnv("JWT_EXPIRATION_MINUTES", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_MINUTES: %w", err)
	}

	jwtRefreshExpHours, err := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRATION_HOURS", "168")) // 7 days
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_REFRESH_EXPIRATION_HOURS: %w", err)
	}

	queueConfig, err := loadQueueConfig()
	if err != nil {
		return nil, err
	}

	// Return complete configuration
	return &Config{
		Port:                      getEnv("PORT", "3001"),
		Origin:                    getEnv("ORIGIN", "http://localhost:4200"),
		Environment:               getEnv("APP_ENV", "development"),
		JWTSecret:                 getEnv("JWT_SECRET", "default_jwt_secret"),
		JWTRefreshSecret:          getEnv("JWT_REFRESH_SECRET", "default_refresh_secret"),
		Database:                  dbConfig,
		Queue:                     queueConfig,
		JWTExpirationMinutes:      jwtExpMinutes,
		JWTRefreshExpirationHours: jwtRefreshExpHours,
	}, nil
}

func loadQueueConfig() (QueueConfig, error) {
	defaultSlot, err := strconv.Atoi(getEnv("DEFAULT_SLOT_MINUTES", "10"))
	if err != nil {
		return QueueConfig{}, fmt.Errorf("invalid DEFAULT_SLOT_MINUTES: %w", err)
	}

	minSlot, err := strconv.Atoi(getEnv("MIN_SLOT_MINUTES", "5"))
	if err != nil {
		return QueueConfig{}, fmt.Errorf("invalid MIN_SLOT_MINUTES: %w", err)
	}

	horizon, err := strconv.Atoi(getEnv("SLOT_SEARCH_DAYS", "30"))
	if err != nil {
		return QueueConfig{}, fmt.Errorf("invalid SLOT_SEARCH_DAYS: %w", err)
	}

	loc := time.Local
	if tz := getEnv("CLINIC_TIMEZONE", ""); tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return QueueConfig{}, fmt.Errorf("invalid CLINIC_TIMEZONE: %w", err)
		}
	}

	return QueueConfig{
		DefaultSlotMinutes: defaultSlot,
		MinSlotMinutes:     minSlot,
		SearchHorizonDays:  horizon,
		Location:           loc,
	}, nil
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
