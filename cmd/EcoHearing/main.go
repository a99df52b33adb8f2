package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/ecohearing/EcoHearing/internal/api"
	"github.com/ecohearing/EcoHearing/internal/estimate"
	"github.com/ecohearing/EcoHearing/internal/flow"
	"github.com/ecohearing/EcoHearing/internal/store"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for EcoHearing state data
	DefaultStateDir = "/var/lib/ecohearing"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "ecohearing.db"
	// DefaultAPIAddr is the default API listen address
	DefaultAPIAddr = ":8080"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	st, err := buildStore(flags)
	if err != nil {
		slog.Error("Failed to initialize session store", "error", err)
		os.Exit(1)
	}

	opts := buildAPIOptions(flags)
	server := api.NewServer(st, estimate.New(), opts...)

	slog.Info("Bootstrapping EcoHearing", "store", *flags.storeBackend, "api_addr", *flags.apiAddr)
	if err := server.Run(); err != nil {
		slog.Error("EcoHearing failed to run", "error", err)
		os.Exit(1)
	}
}

// Config holds environment configuration
type Config struct {
	StoreBackend string
	DatabaseURL  string
	RedisAddr    string
	StateDir     string
	APIAddr      string
	PacingMS     string
}

// Flags holds command line flag values
type Flags struct {
	storeBackend *string
	dbDSN        *string
	redisAddr    *string
	stateDir     *string
	apiAddr      *string
	pacingMS     *int
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and
// a .env file.
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		StoreBackend: os.Getenv("ECOHEARING_STORE"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		StateDir:     os.Getenv("ECOHEARING_STATE_DIR"),
		APIAddr:      os.Getenv("ECOHEARING_API_ADDR"),
		PacingMS:     os.Getenv("ECOHEARING_PACING_MS"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No ECOHEARING_STATE_DIR set, using default", "state_dir", config.StateDir)
	}
	if config.StoreBackend == "" {
		config.StoreBackend = "memory"
	}
	if config.APIAddr == "" {
		config.APIAddr = DefaultAPIAddr
	}

	slog.Debug("environment variables loaded",
		"ECOHEARING_STORE", config.StoreBackend,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"REDIS_ADDR_SET", config.RedisAddr != "",
		"ECOHEARING_STATE_DIR", config.StateDir,
		"ECOHEARING_API_ADDR", config.APIAddr)

	return config
}

// parseCommandLineFlags parses command line arguments with environment
// defaults.
func parseCommandLineFlags(config Config) Flags {
	pacing := int(flow.DefaultPacing / time.Millisecond)
	if config.PacingMS != "" {
		if parsed, err := strconv.Atoi(config.PacingMS); err == nil && parsed > 0 {
			pacing = parsed
		} else {
			slog.Debug("Ignoring invalid ECOHEARING_PACING_MS", "value", config.PacingMS)
		}
	}

	flags := Flags{
		storeBackend: flag.String("store", config.StoreBackend, "session store backend: memory, sqlite, postgres, or redis (overrides $ECOHEARING_STORE)"),
		dbDSN:        flag.String("db-dsn", config.DatabaseURL, "database DSN for the sqlite/postgres store (overrides $DATABASE_URL)"),
		redisAddr:    flag.String("redis-addr", config.RedisAddr, "redis address for the redis store (overrides $REDIS_ADDR)"),
		stateDir:     flag.String("state-dir", config.StateDir, "state directory for EcoHearing data (overrides $ECOHEARING_STATE_DIR)"),
		apiAddr:      flag.String("api-addr", config.APIAddr, "API server address (overrides $ECOHEARING_API_ADDR)"),
		pacingMS:     flag.Int("pacing-ms", pacing, "presentation delay between hearing steps, in milliseconds"),
	}
	flag.Parse()

	// a sqlite store without an explicit DSN lives in the state directory
	if *flags.storeBackend == "sqlite" && *flags.dbDSN == "" {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite in state dir", "sqlite_path", *flags.dbDSN)
	}

	slog.Debug("flags parsed",
		"store", *flags.storeBackend,
		"dbDSN_set", *flags.dbDSN != "",
		"redisAddr_set", *flags.redisAddr != "",
		"stateDir", *flags.stateDir,
		"apiAddr", *flags.apiAddr,
		"pacingMS", *flags.pacingMS)

	return flags
}

// buildStore selects and opens the configured session store backend.
func buildStore(flags Flags) (store.Store, error) {
	switch *flags.storeBackend {
	case "sqlite":
		return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
	case "postgres":
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	case "redis":
		return store.NewRedisStore(store.WithRedisAddr(*flags.redisAddr))
	default:
		return store.NewInMemoryStore(), nil
	}
}

// buildAPIOptions constructs API server configuration options.
func buildAPIOptions(flags Flags) []api.Option {
	opts := []api.Option{api.WithAddr(*flags.apiAddr)}
	if *flags.pacingMS > 0 {
		opts = append(opts, api.WithPacing(time.Duration(*flags.pacingMS)*time.Millisecond))
	}
	return opts
}
