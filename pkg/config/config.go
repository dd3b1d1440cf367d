package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPServer HTTPServerConfig
	Counter    CounterConfig
	Devices    DevicesConfig
	Auth       AuthConfig
	Kafka      KafkaConfig
	Redis      RedisConfig
	Database   DatabaseConfig
	Audit      AuditConfig
}

type HTTPServerConfig struct {
	Port int
}

type CounterConfig struct {
	// Timezone is the IANA zone used for daily/hourly bucketing. Pinned
	// explicitly so day boundaries stay deterministic across deployments.
	Timezone        string
	HeartbeatWindow time.Duration
}

type DevicesConfig struct {
	// Map is the serial=storeId table, e.g. "2210...=arrow-01,2110...=arrow-02".
	Map string
	// StoreNames is the id=display-name catalog, e.g. "arrow-01=Tienda Arrow 01".
	StoreNames string
}

type AuthConfig struct {
	// UsersFile is a JSON file with the static credential table. Empty
	// disables the login endpoint.
	UsersFile string
}

type KafkaConfig struct {
	Enabled       bool
	Brokers       []string
	TopicEvents   string
	NumPartitions int
	GroupID       string
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type AuditConfig struct {
	BatchSize     int
	FlushInterval time.Duration
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		HTTPServer: HTTPServerConfig{
			Port: getEnvAsInt("HTTP_PORT", 10000),
		},
		Counter: CounterConfig{
			Timezone:        getEnv("COUNTER_TIMEZONE", "UTC"),
			HeartbeatWindow: getEnvAsDuration("HEARTBEAT_ONLINE_WINDOW", 90*time.Second),
		},
		Devices: DevicesConfig{
			Map: getEnv("DEVICE_MAP",
				"221000002507152508=arrow-01,211000002507152051=arrow-02,211000002507152052=arrow-03"),
			StoreNames: getEnv("STORE_NAMES",
				"arrow-01=Tienda Arrow 01,arrow-02=Tienda Arrow 02,arrow-03=Tienda Arrow 03"),
		},
		Auth: AuthConfig{
			UsersFile: getEnv("AUTH_USERS_FILE", ""),
		},
		Kafka: KafkaConfig{
			Enabled:       getEnvAsBool("KAFKA_ENABLED", false),
			Brokers:       strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicEvents:   getEnv("KAFKA_TOPIC_EVENTS", "counter.events.audit"),
			NumPartitions: getEnvAsInt("KAFKA_NUM_PARTITIONS", 10),
			GroupID:       getEnv("KAFKA_GROUP_ID", "audit-writer-group"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "counter_user"),
			Password: getEnv("DB_PASSWORD", "counter_pass"),
			DBName:   getEnv("DB_NAME", "counter_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Audit: AuditConfig{
			BatchSize:     getEnvAsInt("AUDIT_BATCH_SIZE", 100),
			FlushInterval: getEnvAsDuration("AUDIT_FLUSH_INTERVAL", 5*time.Second),
		},
	}

	return config, nil
}

// Location resolves the configured counting timezone.
func (c CounterConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid COUNTER_TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// ParseStoreNames parses the id=display-name catalog.
func (d DevicesConfig) ParseStoreNames() (map[string]string, error) {
	names := make(map[string]string)
	for _, pair := range strings.Split(d.StoreNames, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		id, name, ok := strings.Cut(pair, "=")
		id, name = strings.TrimSpace(id), strings.TrimSpace(name)
		if !ok || id == "" || name == "" {
			return nil, fmt.Errorf("invalid store catalog entry %q (expected id=name)", pair)
		}
		names[id] = name
	}
	return names, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
