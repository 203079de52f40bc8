// Package logger provides structured logging for timegraph
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps zerolog with timegraph-specific functionality
type Logger struct {
	zlog zerolog.Logger
}

// Config holds logger configuration
type Config struct {
	Level      string // debug, info, warn, error
	Pretty     bool   // pretty-print for development
	Output     io.Writer
	WithCaller bool

	// File, when set, receives JSON logs with size-based rotation
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// NewLogger creates a new structured logger
func NewLogger(cfg Config) *Logger {
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	// Pretty printing for development
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 100),
			MaxBackups: orDefault(cfg.MaxBackups, 5),
			MaxAge:     orDefault(cfg.MaxAgeDays, 28),
			Compress:   true,
		}
		output = zerolog.MultiLevelWriter(output, rotator)
	}

	zlog := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("service", "timegraph").
		Logger()

	if cfg.WithCaller {
		zlog = zlog.With().Caller().Logger()
	}

	return &Logger{zlog: zlog}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Info logs an info message
func (l *Logger) Info(msg string) *zerolog.Event {
	return l.zlog.Info().Str("msg", msg)
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) *zerolog.Event {
	return l.zlog.Debug().Str("msg", msg)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) *zerolog.Event {
	return l.zlog.Warn().Str("msg", msg)
}

// Error logs an error message
func (l *Logger) Error(msg string) *zerolog.Event {
	return l.zlog.Error().Str("msg", msg)
}

func (l *Logger) component(name string) *Logger {
	return &Logger{zlog: l.zlog.With().Str("component", name).Logger()}
}

// StoreLogger returns a logger for one quad store ("persistent" or "mirror")
func (l *Logger) StoreLogger(role string) *Logger {
	return &Logger{
		zlog: l.zlog.With().
			Str("component", "store").
			Str("role", role).
			Logger(),
	}
}

// IndexLogger returns a logger for time index maintenance
func (l *Logger) IndexLogger() *Logger {
	return l.component("timeindex")
}

// SyncLogger returns a logger for change propagation
func (l *Logger) SyncLogger() *Logger {
	return l.component("changefeed")
}

// SnapshotLogger returns a logger for snapshot materialization
func (l *Logger) SnapshotLogger() *Logger {
	return l.component("snapshot")
}

// JournalLogger returns a logger for the change journal
func (l *Logger) JournalLogger() *Logger {
	return l.component("journal")
}

// LogGrpcRequest logs a gRPC request with structured fields
func (l *Logger) LogGrpcRequest(method string, duration time.Duration, err error) {
	event := l.zlog.Debug()
	if err != nil {
		event = l.zlog.Warn().Err(err)
	}
	event.Str("component", "grpc").
		Str("method", method).
		Dur("duration_ms", duration).
		Msg("gRPC request completed")
}

// LogStoreOperation logs a quad store operation with structured fields
func (l *Logger) LogStoreOperation(operation string, duration time.Duration, quadCount int, err error) {
	event := l.zlog.Debug().
		Str("operation", operation).
		Dur("duration_ms", duration).
		Int("quad_count", quadCount)

	if err != nil {
		event = l.zlog.Error().
			Str("operation", operation).
			Dur("duration_ms", duration).
			Err(err)
	}

	event.Msg("Store operation completed")
}

// LogIndexBuilt logs a completed index build
func (l *Logger) LogIndexBuilt(entries int, duration time.Duration) {
	l.zlog.Info().
		Str("event", "index_built").
		Int("entries", entries).
		Dur("duration_ms", duration).
		Msg("Time index built")
}

// LogMaterialize logs a snapshot materialization
func (l *Logger) LogMaterialize(snapshotID, selector string, graphs, triples int, duration time.Duration, err error) {
	if err != nil {
		l.zlog.Error().
			Str("selector", selector).
			Dur("duration_ms", duration).
			Err(err).
			Msg("Materialization failed")
		return
	}
	l.zlog.Debug().
		Str("snapshot_id", snapshotID).
		Str("selector", selector).
		Int("graphs", graphs).
		Int("triples", triples).
		Dur("duration_ms", duration).
		Msg("Snapshot materialized")
}

// LogPropagationFailure logs listeners that failed to apply an event
func (l *Logger) LogPropagationFailure(event string, failed int, err error) {
	l.zlog.Warn().
		Str("event", event).
		Int("failed_listeners", failed).
		Err(err).
		Msg("Change propagation failed; replicas may have drifted")
}

// LogServerStart logs server startup
func (l *Logger) LogServerStart(grpcPort, httpPort int, dbPath string) {
	l.zlog.Info().
		Str("event", "server_start").
		Int("grpc_port", grpcPort).
		Int("http_port", httpPort).
		Str("database", dbPath).
		Msg("timegraph server starting")
}

// LogServerReady logs when server is ready
func (l *Logger) LogServerReady(port int) {
	l.zlog.Info().
		Str("event", "server_ready").
		Int("port", port).
		Msg("timegraph server ready to accept connections")
}

// LogServerShutdown logs server shutdown
func (l *Logger) LogServerShutdown() {
	l.zlog.Info().
		Str("event", "server_shutdown").
		Msg("timegraph server shutting down")
}

// Global logger instance
var globalLogger *Logger

// InitGlobalLogger initializes the global logger
func InitGlobalLogger(cfg Config) {
	globalLogger = NewLogger(cfg)
	log.Logger = globalLogger.zlog
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *Logger {
	if globalLogger == nil {
		// Initialize with defaults if not set
		InitGlobalLogger(Config{
			Level:  "info",
			Pretty: true,
		})
	}
	return globalLogger
}
