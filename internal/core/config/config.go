package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type CoverageCfg struct {
	Enabled    bool
	RedisAddr  string
	Resolution int
	OpTimeout  time.Duration
}

type CoverageEventsCfg struct {
	Enabled bool
	Brokers string
	Topic   string
	GroupID string
}

type Config struct {
	Addr           string
	LogLevel       string
	DriversFile    string
	QueryDeadline  time.Duration
	ExecTimeout    time.Duration
	ExecMaxWorkers int
	FetchCacheSize int
	FetchCacheTTL  time.Duration
	Coverage       CoverageCfg
	CoverageEvents CoverageEventsCfg
}

func FromEnv() Config {
	res := getint("COVERAGE_H3_RES", 5)
	if res < 0 {
		res = 0
	}
	if res > 15 {
		res = 15
	}

	return Config{
		Addr:           getenv("ADDR", ":8080"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		DriversFile:    getenv("DRIVERS_FILE", ""),
		QueryDeadline:  getduration("QUERY_DEADLINE", 30*time.Second),
		ExecTimeout:    getduration("EXEC_TIMEOUT", 15*time.Second),
		ExecMaxWorkers: getint("EXEC_MAX_WORKERS", 8),
		FetchCacheSize: getint("FETCH_CACHE_SIZE", 512),
		FetchCacheTTL:  getduration("FETCH_CACHE_TTL", 60*time.Second),
		Coverage: CoverageCfg{
			Enabled:    getbool("COVERAGE_ENABLED", false),
			RedisAddr:  getenv("REDIS_ADDR", "localhost:6379"),
			Resolution: res,
			OpTimeout:  getduration("COVERAGE_OP_TIMEOUT", 250*time.Millisecond),
		},
		CoverageEvents: CoverageEventsCfg{
			Enabled: getbool("COVERAGE_EVENTS_ENABLED", false),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getenv("KAFKA_TOPIC", "coverage-events"),
			GroupID: getenv("KAFKA_GROUP_ID", "stac-federator"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
