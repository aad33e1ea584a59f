package engine

import (
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"

	"envkit/internal/observ"
	"envkit/internal/trace"
)

// AmbiguityPolicy decides what GetFirst does when several declarations match.
type AmbiguityPolicy uint8

const (
	AmbiguityIgnore AmbiguityPolicy = iota
	AmbiguityWarn
	AmbiguityError
)

func (p AmbiguityPolicy) String() string {
	switch p {
	case AmbiguityIgnore:
		return "ignore"
	case AmbiguityWarn:
		return "warn"
	case AmbiguityError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseAmbiguity converts a manifest or flag value to a policy.
func ParseAmbiguity(s string) (AmbiguityPolicy, error) {
	switch strings.ToLower(s) {
	case "ignore", "":
		return AmbiguityIgnore, nil
	case "warn", "warning":
		return AmbiguityWarn, nil
	case "error":
		return AmbiguityError, nil
	default:
		return AmbiguityIgnore, fmt.Errorf("invalid ambiguity policy: %q (expected: ignore|warn|error)", s)
	}
}

// Config tunes an engine.
type Config struct {
	// MaxDiagnostics caps the diagnostic bag (default 100).
	MaxDiagnostics int
	Ambiguity      AmbiguityPolicy
	// Jobs limits parallel parsing and phase (a) in LoadAll; 0 means one job
	// per unit.
	Jobs int
	// CaseInsensitive folds identifier case when interning symbols.
	CaseInsensitive bool
	// Tracer receives spans for loads and population; nil disables tracing.
	Tracer trace.Tracer
	// Logger receives operational messages; nil discards them.
	Logger *log.Logger
	// Timer, when set, records load and population phases.
	Timer *observ.Timer
}

func (c Config) withDefaults() Config {
	if c.MaxDiagnostics <= 0 {
		c.MaxDiagnostics = 100
	}
	if c.Tracer == nil {
		c.Tracer = trace.Nop
	}
	if c.Logger == nil {
		l := log.New()
		l.SetOutput(io.Discard)
		c.Logger = l
	}
	return c
}
