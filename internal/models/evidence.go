package models

import (
	"strings"
	"time"
)

// LogLevel is the normalised severity of a log record.
type LogLevel string

const (
	LevelDebug   LogLevel = "debug"
	LevelInfo    LogLevel = "info"
	LevelWarn    LogLevel = "warn"
	LevelError   LogLevel = "error"
	LevelFatal   LogLevel = "fatal"
	LevelUnknown LogLevel = "unknown"
)

// ParseLogLevel maps backend-specific level spellings onto LogLevel.
func ParseLogLevel(raw string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug", "trace", "dbg":
		return LevelDebug
	case "info", "information", "notice", "inf":
		return LevelInfo
	case "warn", "warning", "wrn":
		return LevelWarn
	case "error", "err", "severe":
		return LevelError
	case "fatal", "critical", "crit", "panic", "emergency", "alert":
		return LevelFatal
	default:
		return LevelUnknown
	}
}

// IsError reports whether the level denotes a failure.
func (l LogLevel) IsError() bool {
	return l == LevelError || l == LevelFatal
}

// Backend identifies the log store tier a record came from.
type Backend string

const (
	BackendRecent     Backend = "recent"
	BackendHistorical Backend = "historical"
)

// EvidenceRecord is one raw log line. Records are never mutated after fetch.
type EvidenceRecord struct {
	Source        string            `json:"source"`
	Backend       Backend           `json:"backend"`
	Service       string            `json:"service,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
	Severity      LogLevel          `json:"severity"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	TraceID       string            `json:"trace_id,omitempty"`
	Body          string            `json:"body"`
	Fields        map[string]string `json:"fields,omitempty"`
}

// Field returns a structured field value, falling back to the well-known columns.
func (r EvidenceRecord) Field(name string) string {
	switch name {
	case "correlation_id":
		if r.CorrelationID != "" {
			return r.CorrelationID
		}
	case "trace_id":
		if r.TraceID != "" {
			return r.TraceID
		}
	}
	return r.Fields[name]
}

// LogQuery is the filter shape shared by recent and historical log stores.
type LogQuery struct {
	Service     string
	Stream      string
	Start       time.Time
	End         time.Time
	Levels      []LogLevel
	Keywords    []string
	Identifiers map[string]string
	// CorrelationID matches any configured correlation or trace field.
	CorrelationID string
	Limit         int
}
