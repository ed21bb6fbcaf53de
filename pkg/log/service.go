package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mwantia/stickerbox/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LoggerService interface {
	Debug(msg string, args ...any)

	Info(msg string, args ...any)

	Warn(msg string, args ...any)

	Error(msg string, args ...any)

	Fatal(msg string, args ...any)

	Named(name string) LoggerService
}

// sink is shared between a logger and all of its named children so lines
// from concurrent services never interleave.
type sink struct {
	mutex    sync.Mutex
	terminal io.Writer
	file     io.Writer
	color    bool
	json     bool
	format   string
}

type LoggerServiceImpl struct {
	LoggerService

	sink  *sink
	name  string
	level LogLevel
}

type logEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Service   string `json:"service,omitempty"`
	Message   string `json:"message"`
}

func NewLoggerService(name string, cfg config.LogConfig) LoggerService {
	s := &sink{
		json:   cfg.JSON,
		format: cfg.TimeFormat,
	}

	if cfg.File != "" {
		s.file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.Rotation.MaxSize,
			MaxBackups: cfg.Rotation.MaxBackups,
			MaxAge:     cfg.Rotation.MaxAge,
			Compress:   cfg.Rotation.Compress,
		}
	}
	// Never go completely silent: without a file, stderr stays on.
	if !cfg.NoTerminal || s.file == nil {
		s.terminal = os.Stderr
		s.color = !cfg.NoColor
	}

	return &LoggerServiceImpl{
		sink:  s,
		name:  name,
		level: Parse(cfg.Level),
	}
}

// NewWriterLogger logs plain, uncoloured lines to w. Used by tests and by
// commands that must keep stdout clean.
func NewWriterLogger(name string, level string, w io.Writer) LoggerService {
	return &LoggerServiceImpl{
		sink:  &sink{terminal: w, format: time.RFC3339},
		name:  name,
		level: Parse(level),
	}
}

// Nop returns a logger that discards everything.
func Nop() LoggerService {
	return &LoggerServiceImpl{
		sink:  &sink{terminal: io.Discard},
		level: Fatal + 1,
	}
}

func (s *sink) line(level LogLevel, name, msg string) []byte {
	timestamp := time.Now().Format(s.format)

	if s.json {
		data, _ := json.Marshal(logEntry{
			Timestamp: timestamp,
			Level:     level.String(),
			Service:   name,
			Message:   msg,
		})
		return append(data, '\n')
	}

	prefix := fmt.Sprintf("[%s] %-5s", timestamp, level)
	if name != "" {
		prefix += " [" + name + "]"
	}
	return []byte(prefix + " " + msg + "\n")
}

func (s *sink) write(level LogLevel, line []byte) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.terminal != nil {
		if s.color && !s.json {
			fmt.Fprintf(s.terminal, "%s%s\033[0m\n", Color(level), line[:len(line)-1])
		} else {
			s.terminal.Write(line)
		}
	}
	if s.file != nil {
		s.file.Write(line)
	}
}

func (impl *LoggerServiceImpl) log(level LogLevel, msg string, args ...any) {
	if level < impl.level {
		return
	}

	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	impl.sink.write(level, impl.sink.line(level, impl.name, msg))

	if level == Fatal {
		os.Exit(1)
	}
}

func (impl *LoggerServiceImpl) Debug(msg string, args ...any) {
	impl.log(Debug, msg, args...)
}

func (impl *LoggerServiceImpl) Info(msg string, args ...any) {
	impl.log(Info, msg, args...)
}

func (impl *LoggerServiceImpl) Warn(msg string, args ...any) {
	impl.log(Warn, msg, args...)
}

func (impl *LoggerServiceImpl) Error(msg string, args ...any) {
	impl.log(Error, msg, args...)
}

func (impl *LoggerServiceImpl) Fatal(msg string, args ...any) {
	impl.log(Fatal, msg, args...)
}

// Named returns a child logger whose name is appended to the parent's with
// a slash, e.g. "stickerbox/blobs".
func (impl *LoggerServiceImpl) Named(name string) LoggerService {
	if impl.name != "" {
		name = impl.name + "/" + name
	}

	return &LoggerServiceImpl{
		sink:  impl.sink,
		name:  name,
		level: impl.level,
	}
}
