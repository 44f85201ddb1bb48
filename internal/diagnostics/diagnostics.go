// Package diagnostics provides error and warning reporting for the
// GridVerify pipeline. Well-formedness checking accumulates every
// violation before failing, so diagnostics are collected rather than
// returned one at a time.
package diagnostics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gridverify/gridverify/internal/position"
)

// Level represents the severity level of a diagnostic.
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
	LevelHint
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarning:
		return "warning"
	case LevelInfo:
		return "info"
	case LevelHint:
		return "hint"
	default:
		return "unknown"
	}
}

// Category represents the category of diagnostic.
type Category int

const (
	// Front-end categories.
	CategorySyntax Category = iota
	CategoryTypeError
	CategoryUndefinedVariable
	CategoryRedefinition

	// Kernel well-formedness.
	CategoryKernelShape
	CategoryBarrierShape
	CategoryAxisConstants
	CategoryTileStatic

	// Transformation pipeline.
	CategoryUnsupportedConstruct
	CategoryRaceInstrumentation

	// Candidate invariants.
	CategoryCandidate
)

func (c Category) String() string {
	switch c {
	case CategorySyntax:
		return "syntax"
	case CategoryTypeError:
		return "type-error"
	case CategoryUndefinedVariable:
		return "undefined-variable"
	case CategoryRedefinition:
		return "redefinition"
	case CategoryKernelShape:
		return "kernel-shape"
	case CategoryBarrierShape:
		return "barrier-shape"
	case CategoryAxisConstants:
		return "axis-constants"
	case CategoryTileStatic:
		return "tile-static"
	case CategoryUnsupportedConstruct:
		return "unsupported-construct"
	case CategoryRaceInstrumentation:
		return "race-instrumentation"
	case CategoryCandidate:
		return "candidate"
	default:
		return "unknown"
	}
}

// Diagnostic represents a single diagnostic message with source location.
type Diagnostic struct {
	Level    Level
	Category Category
	Message  string
	Span     position.Span
}

// String renders the diagnostic in the canonical one-line format.
func (d Diagnostic) String() string {
	var sb strings.Builder
	if d.Span.IsValid() {
		sb.WriteString(d.Span.String())
		sb.WriteString(": ")
	}
	sb.WriteString(d.Level.String())
	sb.WriteString(" [")
	sb.WriteString(d.Category.String())
	sb.WriteString("]: ")
	sb.WriteString(d.Message)
	return sb.String()
}

// Collector accumulates diagnostics for a verification session.
// It is not safe for concurrent use; each pipeline run owns its own
// collector, matching the one-Program-per-engine discipline.
type Collector struct {
	diags        []Diagnostic
	errorCount   int
	warningCount int
}

// NewCollector creates an empty diagnostic collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Add records a diagnostic.
func (c *Collector) Add(d Diagnostic) {
	c.diags = append(c.diags, d)
	switch d.Level {
	case LevelError:
		c.errorCount++
	case LevelWarning:
		c.warningCount++
	}
}

// Errorf records an error-level diagnostic with a formatted message.
func (c *Collector) Errorf(cat Category, span position.Span, format string, args ...interface{}) {
	c.Add(Diagnostic{
		Level:    LevelError,
		Category: cat,
		Message:  fmt.Sprintf(format, args...),
		Span:     span,
	})
}

// Warnf records a warning-level diagnostic with a formatted message.
func (c *Collector) Warnf(cat Category, span position.Span, format string, args ...interface{}) {
	c.Add(Diagnostic{
		Level:    LevelWarning,
		Category: cat,
		Message:  fmt.Sprintf(format, args...),
		Span:     span,
	})
}

// ErrorCount returns the number of error-level diagnostics collected.
func (c *Collector) ErrorCount() int { return c.errorCount }

// WarningCount returns the number of warning-level diagnostics collected.
func (c *Collector) WarningCount() int { return c.warningCount }

// HasErrors returns true if any error-level diagnostic was collected.
func (c *Collector) HasErrors() bool { return c.errorCount > 0 }

// Diagnostics returns the collected diagnostics sorted by source
// position, errors before warnings at the same position.
func (c *Collector) Diagnostics() []Diagnostic {
	sorted := make([]Diagnostic, len(c.diags))
	copy(sorted, c.diags)
	sort.SliceStable(sorted, func(i, j int) bool {
		si, sj := sorted[i].Span, sorted[j].Span
		if si.Start != sj.Start {
			return si.Start.Before(sj.Start)
		}
		return sorted[i].Level < sorted[j].Level
	})
	return sorted
}
