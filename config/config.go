package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr string
	PublicURL  string

	SongsDir    string
	WaveformDir string

	MinListenTime   int
	SkipDisabled    bool
	ContinuousQueue bool
	AutoSubmitOnEnd bool
	DefaultVolume   int

	LogLevel string

	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	HEOSDiscoverTimeout int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr: getEnvWithDefault("LISTEN_ADDR", ":5000"),
		PublicURL:  os.Getenv("PUBLIC_URL"),

		SongsDir:    getEnvWithDefault("SONGS_DIR", "songs"),
		WaveformDir: getEnvWithDefault("WAVEFORM_DIR", "data/waveforms"),

		MinListenTime:   getEnvAsIntWithDefault("MIN_LISTEN_TIME", 20),
		SkipDisabled:    getEnvAsBool("SKIP_DISABLED"),
		ContinuousQueue: getEnvAsBool("CONTINUOUS_QUEUE"),
		AutoSubmitOnEnd: getEnvAsBool("AUTO_SUBMIT_ON_END"),
		DefaultVolume:   getEnvAsIntWithDefault("DEFAULT_VOLUME", 100),

		LogLevel: getEnvWithDefault("LOG_LEVEL", "info"),

		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     getEnvAsInt("DB_PORT"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),
		DBSSLMode:  os.Getenv("DB_SSLMODE"),

		RedisHost:     os.Getenv("REDIS_HOST"),
		RedisPort:     getEnvAsInt("REDIS_PORT"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvAsIntWithDefault("REDIS_DB", 0),

		HEOSDiscoverTimeout: getEnvAsIntWithDefault("HEOS_DISCOVER_TIMEOUT", 3),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.SongsDir == "" {
		return errors.New("SONGS_DIR is required")
	}

	if c.MinListenTime < 0 {
		return errors.New("MIN_LISTEN_TIME must not be negative")
	}

	if c.DefaultVolume < 0 || c.DefaultVolume > 100 {
		return errors.New("DEFAULT_VOLUME must be between 0 and 100")
	}

	if c.HEOSDiscoverTimeout < 1 {
		return errors.New("HEOS_DISCOVER_TIMEOUT must be at least 1 second")
	}

	return nil
}

func (c *Config) HasDatabase() bool {
	return c.DBHost != ""
}

func (c *Config) HasRedis() bool {
	return c.RedisHost != ""
}

func getEnvAsInt(key string) int {
	return getEnvAsIntWithDefault(key, 0)
}

func getEnvAsIntWithDefault(key string, defaultValue int) int {
	if value, ok := os.LookupEnv(key); ok {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvWithDefault(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return false
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

func (c *Config) GetDBConfig() *DBConfig {
	return &DBConfig{
		Host:     c.DBHost,
		Port:     c.DBPort,
		User:     c.DBUser,
		Password: c.DBPassword,
		Name:     c.DBName,
		SSLMode:  c.DBSSLMode,
	}
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c *Config) GetRedisConfig() *RedisConfig {
	return &RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}
