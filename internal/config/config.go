package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr string

	Env string // "dev" | "prod"

	// Ledger backend: "csv" (whole-file rewrite ledger), "sqlite"
	// (transactional store), or "memory" (dev only).
	Backend    string
	LedgerPath string // csv backend, e.g. "./data/visitors.csv"
	DBPath     string // sqlite backend, e.g. "./data/gatelog.db"

	// PublicBaseURL is what visitor form links are built from; defaults to
	// a localhost URL derived from HTTPAddr.
	PublicBaseURL string

	// Open-entry auditor.
	OpenAlertHours       int // 0 = auditor disabled
	AuditIntervalMinutes int
}

// Load reads an optional .env file and then builds the config from the
// environment.
func Load(logger *log.Logger) Config {
	if err := godotenv.Load(); err != nil {
		logger.Printf("no .env file, using environment as-is")
	}
	return FromEnv()
}

func FromEnv() Config {
	addr := getenvDefault("GATELOG_HTTP_ADDR", ":8080")

	env := strings.ToLower(getenvDefault("GATELOG_ENV", "dev"))
	if env != "dev" && env != "prod" {
		// fail-soft: treat unknown as dev
		env = "dev"
	}

	backend := strings.ToLower(getenvDefault("GATELOG_BACKEND", "csv"))
	switch backend {
	case "csv", "sqlite", "memory":
	default:
		backend = "csv"
	}

	baseURL := strings.TrimRight(os.Getenv("GATELOG_PUBLIC_BASE_URL"), "/")
	if baseURL == "" {
		baseURL = "http://localhost" + normalizeAddrForURL(addr)
	}

	return Config{
		HTTPAddr: addr,
		Env:      env,

		Backend:    backend,
		LedgerPath: getenvDefault("GATELOG_LEDGER_PATH", "./data/visitors.csv"),
		DBPath:     getenvDefault("GATELOG_DB_PATH", "./data/gatelog.db"),

		PublicBaseURL: baseURL,

		OpenAlertHours:       getenvInt("GATELOG_OPEN_ALERT_HOURS", 24),
		AuditIntervalMinutes: getenvInt("GATELOG_AUDIT_INTERVAL_MINUTES", 30),
	}
}

// normalizeAddrForURL turns a listen address like ":8080" into a host
// suffix usable in a URL.
func normalizeAddrForURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return addr
	}
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[i:]
	}
	return ""
}

func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
