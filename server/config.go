package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/pikyscz-a11y/Agaaaarjedemebomby/server/protocol"
	"github.com/pikyscz-a11y/Agaaaarjedemebomby/server/room"
)

// Config holds the server settings
type Config struct {
	Addr                 string
	DBPath               string
	TickRate             int
	MaxRooms             int
	EmptyRoomGrace       time.Duration
	Compression          bool
	CompressionThreshold int
	RateLimitMessages    int
	RateLimitWindow      time.Duration
	JWTSecret            string
	RequireToken         bool
	PublicURL            string
	LogLevel             slog.Level
	LogFormat            string
	MaxConnsPerIP        int
	MaxConns             int
}

// DefaultConfig returns the settings used when nothing is configured
func DefaultConfig() Config {
	return Config{
		Addr:                 ":8080",
		TickRate:             room.DefaultTickRate,
		MaxRooms:             room.DefaultMaxRooms,
		EmptyRoomGrace:       room.DefaultEmptyGrace,
		Compression:          true,
		CompressionThreshold: 512,
		RateLimitMessages:    protocol.DefaultRateLimit,
		RateLimitWindow:      protocol.DefaultRateWindow,
		PublicURL:            "http://localhost:8080",
		LogLevel:             slog.LevelInfo,
		LogFormat:            "text",
		MaxConnsPerIP:        5,
		MaxConns:             1000,
	}
}

// LoadConfig reads an optional .env file, then the environment, then flags
func LoadConfig(args []string) (Config, error) {
	fset := flag.NewFlagSet("arena", flag.ContinueOnError)
	envFile := fset.String("env", ".env", "path to an optional .env file")
	addr := fset.String("addr", "", "HTTP listen address (overrides ADDR)")
	dbPath := fset.String("db", "", "SQLite database path (overrides DB_PATH)")
	if err := fset.Parse(args); err != nil {
		return Config{}, err
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", *envFile, err)
	}

	cfg, err := configFromEnv(os.LookupEnv)
	if err != nil {
		return Config{}, err
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	return cfg, nil
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.lookup(key); ok && v != "" {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		e.errs = append(e.errs, fmt.Errorf("%s: want a positive integer, got %q", key, v))
		return
	}
	*dst = n
}

func (e *envReader) boolean(key string, dst *bool) {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: want a boolean, got %q", key, v))
		return
	}
	*dst = b
}

// duration accepts Go durations ("90s") or plain seconds ("90")
func (e *envReader) duration(key string, dst *time.Duration) {
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		*dst = time.Duration(secs) * time.Second
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		e.errs = append(e.errs, fmt.Errorf("%s: want a duration, got %q", key, v))
		return
	}
	*dst = d
}

func configFromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := DefaultConfig()
	e := &envReader{lookup: lookup}

	e.str("ADDR", &cfg.Addr)
	e.str("DB_PATH", &cfg.DBPath)
	e.integer("TICK_RATE", &cfg.TickRate)
	e.integer("MAX_ROOMS", &cfg.MaxRooms)
	e.duration("EMPTY_ROOM_GRACE", &cfg.EmptyRoomGrace)
	e.boolean("COMPRESSION", &cfg.Compression)
	e.integer("COMPRESSION_THRESHOLD", &cfg.CompressionThreshold)
	e.integer("RATE_LIMIT_MESSAGES", &cfg.RateLimitMessages)
	e.duration("RATE_LIMIT_WINDOW", &cfg.RateLimitWindow)
	e.str("JWT_SECRET", &cfg.JWTSecret)
	e.boolean("REQUIRE_TOKEN", &cfg.RequireToken)
	e.str("PUBLIC_URL", &cfg.PublicURL)
	e.str("LOG_FORMAT", &cfg.LogFormat)
	e.integer("MAX_CONNS_PER_IP", &cfg.MaxConnsPerIP)
	e.integer("MAX_CONNS", &cfg.MaxConns)

	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			e.errs = append(e.errs, fmt.Errorf("LOG_LEVEL: %w", err))
		}
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")

	if cfg.RequireToken && cfg.JWTSecret == "" {
		e.errs = append(e.errs, errors.New("REQUIRE_TOKEN is set but JWT_SECRET is empty"))
	}
	if err := errors.Join(e.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func newLogger(cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
