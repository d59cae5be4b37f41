package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gridops/meterpower/internal/normalize"
)

// Config holds all consumer configuration
type Config struct {
	Kafka     KafkaConfig
	InfluxDB  InfluxDBConfig
	Processor ProcessorConfig
	Ops       OpsConfig
}

// KafkaConfig holds Kafka-related configuration
type KafkaConfig struct {
	Brokers       []string
	Topic         string
	GroupID       string
	ConsumerCount int
	BatchSize     int
	BatchTimeout  time.Duration
}

// InfluxDBConfig holds InfluxDB-related configuration
type InfluxDBConfig struct {
	URL          string
	Org          string
	Token        string
	Bucket       string
	BatchSize    int
	BatchTimeout time.Duration
}

// ProcessorConfig holds processor-related configuration
type ProcessorConfig struct {
	WorkerCount        int
	QueueSize          int
	EnableAggregations bool
	SynonymsFile       string
}

// OpsConfig holds the operational HTTP endpoint configuration
type OpsConfig struct {
	Addr string
}

// Load loads configuration from environment variables with sensible
// defaults. The InfluxDB token has no default: it must come from the
// environment.
func Load() (*Config, error) {
	cfg := &Config{
		Kafka: KafkaConfig{
			Brokers:       getEnvStringSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:         getEnv("KAFKA_TOPIC", "meter-readings"),
			GroupID:       getEnv("KAFKA_GROUP_ID", "meterpower-consumer"),
			ConsumerCount: getEnvInt("KAFKA_CONSUMER_COUNT", 3),
			BatchSize:     getEnvInt("KAFKA_BATCH_SIZE", 5000),
			BatchTimeout:  getEnvDuration("KAFKA_BATCH_TIMEOUT", 1*time.Second),
		},
		InfluxDB: InfluxDBConfig{
			URL:          getEnv("INFLUXDB_URL", "http://localhost:8086"),
			Org:          getEnv("INFLUXDB_ORG", "gridops"),
			Token:        getEnv("INFLUXDB_TOKEN", ""),
			Bucket:       getEnv("INFLUXDB_BUCKET", "meterpower"),
			BatchSize:    getEnvInt("INFLUXDB_BATCH_SIZE", 5000),
			BatchTimeout: getEnvDuration("INFLUXDB_BATCH_TIMEOUT", 500*time.Millisecond),
		},
		Processor: ProcessorConfig{
			WorkerCount:        getEnvInt("PROCESSOR_WORKER_COUNT", 4),
			QueueSize:          getEnvInt("PROCESSOR_QUEUE_SIZE", 100000),
			EnableAggregations: getEnvBool("PROCESSOR_ENABLE_AGGREGATIONS", true),
			SynonymsFile:       getEnv("SYNONYMS_FILE", ""),
		},
		Ops: OpsConfig{
			Addr: getEnv("OPS_ADDR", ":9090"),
		},
	}
	if cfg.InfluxDB.Token == "" {
		return nil, errors.New("INFLUXDB_TOKEN is required")
	}
	return cfg, nil
}

// SynonymsFile is the YAML schema for a custom field vocabulary: the three
// synonym lists nest under a top-level synonyms key. A section left out of
// the file keeps its built-in names; a section declared empty is a
// configuration error the resolver reports.
type SynonymsFile struct {
	Synonyms SynonymSections `yaml:"synonyms"`
}

// SynonymSections holds the per-field synonym lists of a SynonymsFile.
type SynonymSections struct {
	Voltage     []string `yaml:"voltage"`
	Current     []string `yaml:"current"`
	PowerFactor []string `yaml:"power_factor"`
}

// LoadSynonyms reads a YAML vocabulary file and returns it as resolver
// sets. An empty path selects the built-in defaults. A file that sets no
// section under the synonyms key is an error, not a fallback.
func LoadSynonyms(path string) (normalize.Sets, error) {
	sets := normalize.DefaultSets()
	if path == "" {
		return sets, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return normalize.Sets{}, fmt.Errorf("read synonyms: %w", err)
	}
	var file SynonymsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return normalize.Sets{}, fmt.Errorf("parse synonyms %s: %w", path, err)
	}

	sections := file.Synonyms
	if sections.Voltage == nil && sections.Current == nil && sections.PowerFactor == nil {
		return normalize.Sets{}, fmt.Errorf("synonyms %s: no sections under a top-level synonyms key", path)
	}
	if sections.Voltage != nil {
		sets.Voltage = sections.Voltage
	}
	if sections.Current != nil {
		sets.Current = sections.Current
	}
	if sections.PowerFactor != nil {
		sets.PowerFactor = sections.PowerFactor
	}
	return sets, nil
}

// Helper functions to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists {
		return strings.Split(value, ",")
	}
	return defaultValue
}
