// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
)

// 🎨 Display configuration
const (
	fixIndent     = 4  // spaces to indent fix entries
	idWidth       = 24 // Base width for fix id
	categoryWidth = 18 // Width for category
	strategyWidth = 12 // Width for strategy text
)

// 🎯 FixOperation is the outcome of one fix for logging
type FixOperation struct {
	ID       string // Fix id
	Category string // Fix category
	Strategy string // Locator strategy that found the span
	Applied  bool   // Whether the fix was substituted
}

// 📦 SessionOperation represents a patch session for logging
type SessionOperation struct {
	SessionID string // Session id
	Filename  string // Target document
	Selected  int    // Number of selected fixes
	DryRun    bool   // Whether the run is a preview
}

// 🎯 Logger handles structured logging with console output
type Logger struct {
	zlog       zerolog.Logger
	console    io.Writer
	mu         sync.Mutex
	currentOp  *SessionOperation
	operations []FixOperation
}

// 🏭 New creates a new logger
func New(console io.Writer, level zerolog.Level) *Logger {
	zlog := zerolog.New(zerolog.ConsoleWriter{Out: console}).With().Timestamp().Logger().Level(level)
	return &Logger{
		zlog:    zlog,
		console: console,
	}
}

// 🔇 Discard returns a logger that prints nothing
func Discard() *Logger {
	return &Logger{
		zlog:    zerolog.Nop(),
		console: io.Discard,
	}
}

// 🔑 contextKey is the type for context values
type contextKey struct{}

// 🎯 FromContext gets the logger from context, or a discarding logger when
// none was stored
func FromContext(ctx context.Context) *Logger {
	logger, ok := ctx.Value(contextKey{}).(*Logger)
	if !ok {
		return Discard()
	}
	return logger
}

// 🎯 NewContext adds the logger to context
func NewContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, l)
}

// 📝 formatFixOperation formats a fix outcome for display
func (l *Logger) formatFixOperation(op FixOperation) string {
	// Determine symbol and color
	var symbol rune
	var symbolColor color.Attribute
	status := "applied"
	switch {
	case !op.Applied:
		symbol = '✗'
		symbolColor = color.FgRed
		status = "not found"
	case op.Strategy == "exact":
		symbol = '✓'
		symbolColor = color.FgGreen
	default:
		symbol = '≈'
		symbolColor = color.FgYellow
	}

	strategy := op.Strategy
	if strategy == "" {
		strategy = "-"
	}

	// Build the line
	return fmt.Sprintf("%s%s %s %s %s %s",
		fmt.Sprintf("%*s", fixIndent, ""),
		color.New(symbolColor).Sprint(string(symbol)),
		fmt.Sprintf("%-*s", idWidth, op.ID),
		color.New(color.FgCyan).Sprint(fmt.Sprintf("%-*s", categoryWidth, op.Category)),
		color.New(color.FgBlue).Sprint(fmt.Sprintf("%-*s", strategyWidth, strategy)),
		status)
}

// 📝 LogFixOperation logs the outcome of a fix
func (l *Logger) LogFixOperation(ctx context.Context, op FixOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Add to operations list
	l.operations = append(l.operations, op)

	// Format and print
	fmt.Fprintln(l.console, l.formatFixOperation(op))

	// Log to zerolog
	l.zlog.Info().
		Str("fix_id", op.ID).
		Str("category", op.Category).
		Str("strategy", op.Strategy).
		Bool("applied", op.Applied).
		Msg("fix operation")
}

// 📝 StartSession starts a new patch session
func (l *Logger) StartSession(ctx context.Context, op SessionOperation) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.currentOp = &op
	l.operations = nil

	verb := "patching"
	if op.DryRun {
		verb = "previewing"
	}

	// Print session header
	fmt.Fprintf(l.console, "[%s %s]\n", verb,
		color.New(color.FgCyan).Sprint(op.Filename))

	fmt.Fprintf(l.console, "%s %s %s %s\n",
		color.New(color.FgMagenta).Sprint("◆"),
		color.New(color.Bold).Sprint(op.SessionID),
		color.New(color.Faint).Sprint("•"),
		color.New(color.FgYellow).Sprintf("%d selected", op.Selected))

	// Log to zerolog
	l.zlog.Info().
		Str("session_id", op.SessionID).
		Str("filename", op.Filename).
		Int("selected", op.Selected).
		Bool("dry_run", op.DryRun).
		Msg("starting patch session")
}

// 📝 EndSession ends the current session and returns the number of applied fixes
func (l *Logger) EndSession(ctx context.Context) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.currentOp == nil {
		return 0
	}

	applied := 0
	for _, op := range l.operations {
		if op.Applied {
			applied++
		}
	}

	// Log summary
	l.zlog.Info().
		Str("session_id", l.currentOp.SessionID).
		Int("fixes", len(l.operations)).
		Int("applied", applied).
		Msg("fix outcomes recorded")

	l.currentOp = nil
	l.operations = nil
	return applied
}

// 📝 LogNewline logs a newline
func (l *Logger) LogNewline() {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.console)
}

// 📝 Header logs a header
func (l *Logger) Header(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	name := color.New(color.Bold, color.FgCyan).Sprint("docpatch")
	fmt.Fprintf(l.console, "\n%s %s\n\n", name, color.New(color.Faint).Sprint("• "+msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Success logs a success message
func (l *Logger) Success(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "✅ %s\n", color.New(color.FgGreen).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Warning logs a warning message
func (l *Logger) Warning(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "⚠️  %s\n", color.New(color.FgYellow).Sprint(msg))
	l.zlog.Warn().Msg(msg)
}

// 📝 Error logs an error message
func (l *Logger) Error(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "❌ %s\n", color.New(color.FgRed).Sprint(msg))
	l.zlog.Error().Msg(msg)
}

// 📝 Info logs an info message
func (l *Logger) Info(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.console, "ℹ️  %s\n", color.New(color.FgCyan).Sprint(msg))
	l.zlog.Info().Msg(msg)
}

// 📝 Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.Info(fmt.Sprintf(format, args...))
}

// 📝 Warningf logs a formatted warning message
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.Warning(fmt.Sprintf(format, args...))
}

// 📝 Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.Error(fmt.Sprintf(format, args...))
}

// 📝 Successf logs a formatted success message
func (l *Logger) Successf(format string, args ...interface{}) {
	l.Success(fmt.Sprintf(format, args...))
}
