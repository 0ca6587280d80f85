// Package logging implements the keyed message catalog and severity
// gating described in ltfslogging.h: every log call names a 5-digit
// message id, each id maps to a fixed format string and severity, and
// severity controls both the zap level used and whether syslog also
// receives the message (C10).
package logging

import (
	"fmt"
	"log/syslog"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level mirrors ltfslogging.h's LTFS_NONE..LTFS_TRACE enum, in the same
// numeric order so comparisons ("is this message at least as severe as
// the configured threshold") read the same way.
type Level int

const (
	LevelNone   Level = -1
	LevelErr    Level = 0
	LevelWarn   Level = 1
	LevelInfo   Level = 2
	LevelDebug  Level = 3
	LevelDebug1 Level = 4
	LevelDebug2 Level = 5
	LevelDebug3 Level = 6
	LevelTrace  Level = 7
)

func (l Level) zapLevel() zapcore.Level {
	switch {
	case l <= LevelErr:
		return zapcore.ErrorLevel
	case l == LevelWarn:
		return zapcore.WarnLevel
	case l == LevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}

// syslogPriority returns the syslog priority for levels LTFS_INFO
// through LTFS_ERR; ltfslogging.h routes LTFS_DEBUG/LTFS_TRACE to the
// console only, never to syslog.
func (l Level) syslogPriority() (syslog.Priority, bool) {
	switch l {
	case LevelErr:
		return syslog.LOG_ERR, true
	case LevelWarn:
		return syslog.LOG_WARNING, true
	case LevelInfo:
		return syslog.LOG_INFO, true
	default:
		return 0, false
	}
}

// Entry is one message-catalog entry: a fixed format string and the
// severity it always logs at.
type Entry struct {
	Level  Level
	Format string
}

// Catalog maps 5-digit message ids (as used throughout the original,
// e.g. "11182E") to their Entry. Plugin components contribute their own
// id ranges via Register, matching the catalog's "plugin-contributed
// ID ranges" extensibility.
type Catalog struct {
	entries map[string]Entry
}

// NewCatalog returns an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[string]Entry)}
}

// Register adds or overwrites a catalog entry for id.
func (c *Catalog) Register(id string, level Level, format string) {
	c.entries[id] = Entry{Level: level, Format: format}
}

// RegisterRange bulk-registers a plugin's contributed message ids.
func (c *Catalog) RegisterRange(entries map[string]Entry) {
	for id, e := range entries {
		c.entries[id] = e
	}
}

// Logger fans a keyed, leveled message out to a zap sink and, for
// LTFS_INFO..LTFS_ERR severities, to syslog.
type Logger struct {
	catalog  *Catalog
	zap      *zap.Logger
	sysw     *syslog.Writer
	threshold Level
}

// New returns a Logger over catalog and zapLogger, gating messages below
// threshold. sysw may be nil to disable syslog fan-out (e.g. in tests).
func New(catalog *Catalog, zapLogger *zap.Logger, sysw *syslog.Writer, threshold Level) *Logger {
	return &Logger{catalog: catalog, zap: zapLogger, sysw: sysw, threshold: threshold}
}

// Msg looks up id in the catalog and emits it with args applied to its
// format string. An id with no catalog entry falls back to LevelErr and
// logs the id itself, matching the original's defensive "unknown message
// id" handling.
func (l *Logger) Msg(id string, args ...interface{}) {
	entry, ok := l.catalog.entries[id]
	if !ok {
		l.zap.Error("unknown message id", zap.String("id", id))

		return
	}

	if entry.Level > l.threshold {
		return
	}

	msg := fmt.Sprintf(entry.Format, args...)

	l.zap.Log(entry.Level.zapLevel(), msg, zap.String("id", id))

	if l.sysw == nil {
		return
	}

	if prio, ok := entry.Level.syslogPriority(); ok {
		switch prio {
		case syslog.LOG_ERR:
			_ = l.sysw.Err(msg)
		case syslog.LOG_WARNING:
			_ = l.sysw.Warning(msg)
		case syslog.LOG_INFO:
			_ = l.sysw.Info(msg)
		}
	}
}
