// Package observability carries events out of the optimizer, the
// reference interpreter and the RPC server. Severities use the
// OpenTelemetry SeverityNumber scale so events can be forwarded to a
// collector unchanged.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Level is an event severity on the OTel SeverityNumber scale.
type Level int

const (
	LevelVerbose Level = 5  // OTel DEBUG
	LevelInfo    Level = 9  // OTel INFO
	LevelWarning Level = 13 // OTel WARN
	LevelError   Level = 17 // OTel ERROR
)

var severities = []struct {
	max  Level
	name string
	slog slog.Level
}{
	{4, "TRACE", slog.LevelDebug},
	{8, "DEBUG", slog.LevelDebug},
	{12, "INFO", slog.LevelInfo},
	{16, "WARN", slog.LevelWarn},
	{20, "ERROR", slog.LevelError},
}

func (l Level) severity() (string, slog.Level) {
	for _, s := range severities {
		if l <= s.max {
			return s.name, s.slog
		}
	}
	return "FATAL", slog.LevelError
}

// String returns the OTel severity text of the range l falls in.
func (l Level) String() string {
	name, _ := l.severity()
	return name
}

// SlogLevel returns the slog level events of this severity are logged at.
func (l Level) SlogLevel() slog.Level {
	_, level := l.severity()
	return level
}

// ParseLevel returns the level named by an OTel severity text. Names are
// case-insensitive; each maps to the lowest number of its range.
func ParseLevel(name string) (Level, error) {
	upper := strings.ToUpper(name)
	low := Level(1)
	for _, s := range severities {
		if s.name == upper {
			return low, nil
		}
		low = s.max + 1
	}
	if upper == "FATAL" {
		return low, nil
	}
	return 0, fmt.Errorf("unknown level: %q", name)
}

func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	v, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// EventType names a kind of event, such as "optimize.pass" or
// "simulate.complete". Each package declares its own.
type EventType string

// Event is one observation. It lines up with an OTel LogRecord: Type is the
// event name, Source the instrumentation scope and Data the attributes.
type Event struct {
	Type      EventType
	Level     Level
	Timestamp time.Time
	Source    string
	Data      map[string]any
}

// Observer receives events.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}

// Emit stamps an event with the current time and delivers it to obs.
func Emit(ctx context.Context, obs Observer, typ EventType, level Level, source string, data map[string]any) {
	obs.OnEvent(ctx, Event{
		Type:      typ,
		Level:     level,
		Timestamp: time.Now(),
		Source:    source,
		Data:      data,
	})
}
