// Package logging provides categorized logging for vibetex on top of zap.
// Each subsystem logs through its own named category so noisy areas (render,
// research) can be silenced from config without touching the rest.
package logging

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot         Category = "boot"         // Boot/wiring
	CategoryAPI          Category = "api"          // LLM API calls
	CategoryPerception   Category = "perception"   // Intent extraction, transcription
	CategoryArticulation Category = "articulation" // Response parsing
	CategoryTools        Category = "tools"        // Tool registry and execution
	CategoryComposer     Category = "composer"     // Composition pipeline
	CategoryRender       Category = "render"       // manim + ffmpeg
	CategoryCompile      Category = "compile"      // pdflatex / html conversion
	CategoryResearch     Category = "research"     // Web fetching and summaries
	CategoryStore        Category = "store"        // Templates and history
	CategoryHTTP         Category = "http"         // HTTP surface
	CategoryTactile      Category = "tactile"      // Process execution
)

// Options configures the root logger. It mirrors config.LoggingConfig so this
// package does not import config.
type Options struct {
	Level      string
	Format     string // "console" or "json"
	File       string
	Categories map[string]bool
}

// Logger is a category-scoped printf-style logger.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	options Options
	loggers = make(map[Category]*Logger)
)

// Initialize builds the root zap logger from options and resets category loggers.
func Initialize(o Options) error {
	level, err := ParseLevel(o.Level)
	if err != nil {
		return err
	}

	var cfg zap.Config
	if strings.EqualFold(o.Format, "json") {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	if o.File != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, o.File)
	}

	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	install(l, o)
	return nil
}

// UseLogger installs an already built zap logger (tests, CLI).
func UseLogger(l *zap.Logger, categories map[string]bool) {
	if l == nil {
		l = zap.NewNop()
	}
	install(l, Options{Categories: categories})
}

func install(l *zap.Logger, o Options) {
	mu.Lock()
	defer mu.Unlock()
	old := root
	root = l
	options = o
	loggers = make(map[Category]*Logger)
	_ = old.Sync()
}

// ParseLevel maps a config level name to a zap level. Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// Zap returns the root zap logger.
func Zap() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root
}

// ZapFor returns a named structured logger for category, or a no-op logger
// when the category is disabled.
func ZapFor(category Category) *zap.Logger {
	if !IsCategoryEnabled(category) {
		return zap.NewNop()
	}
	return Zap().Named(string(category))
}

// IsCategoryEnabled returns whether a specific category is enabled.
// Categories absent from the filter are enabled.
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()
	if options.Categories == nil {
		return true
	}
	enabled, ok := options.Categories[string(category)]
	return !ok || enabled
}

// Get returns (or creates) a logger for the given category.
// Disabled categories get a no-op logger.
func Get(category Category) *Logger {
	if !IsCategoryEnabled(category) {
		return &Logger{category: category, sugar: zap.NewNop().Sugar()}
	}

	mu.RLock()
	if l, ok := loggers[category]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[category]; ok {
		return l
	}
	l := &Logger{category: category, sugar: root.Named(string(category)).Sugar()}
	loggers[category] = l
	return l
}

// Category returns the logger's category.
func (l *Logger) Category() Category { return l.category }

func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.sugar.Infof(format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.sugar.Warnf(format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// With returns a child logger carrying structured fields.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{category: l.category, sugar: l.sugar.With(keysAndValues...)}
}

// Sync flushes the root logger.
func Sync() {
	_ = Zap().Sync()
}

// =============================================================================
// CONVENIENCE FUNCTIONS
// =============================================================================

func Boot(format string, args ...interface{})      { Get(CategoryBoot).Info(format, args...) }
func BootDebug(format string, args ...interface{}) { Get(CategoryBoot).Debug(format, args...) }
func BootWarn(format string, args ...interface{})  { Get(CategoryBoot).Warn(format, args...) }

func API(format string, args ...interface{})      { Get(CategoryAPI).Info(format, args...) }
func APIDebug(format string, args ...interface{}) { Get(CategoryAPI).Debug(format, args...) }
func APIWarn(format string, args ...interface{})  { Get(CategoryAPI).Warn(format, args...) }

func Perception(format string, args ...interface{}) { Get(CategoryPerception).Info(format, args...) }
func PerceptionDebug(format string, args ...interface{}) {
	Get(CategoryPerception).Debug(format, args...)
}
func PerceptionWarn(format string, args ...interface{}) {
	Get(CategoryPerception).Warn(format, args...)
}

func ArticulationDebug(format string, args ...interface{}) {
	Get(CategoryArticulation).Debug(format, args...)
}

func Tools(format string, args ...interface{})      { Get(CategoryTools).Info(format, args...) }
func ToolsDebug(format string, args ...interface{}) { Get(CategoryTools).Debug(format, args...) }
func ToolsWarn(format string, args ...interface{})  { Get(CategoryTools).Warn(format, args...) }

func Composer(format string, args ...interface{})      { Get(CategoryComposer).Info(format, args...) }
func ComposerDebug(format string, args ...interface{}) { Get(CategoryComposer).Debug(format, args...) }
func ComposerWarn(format string, args ...interface{})  { Get(CategoryComposer).Warn(format, args...) }
func ComposerError(format string, args ...interface{}) { Get(CategoryComposer).Error(format, args...) }

func Render(format string, args ...interface{})      { Get(CategoryRender).Info(format, args...) }
func RenderDebug(format string, args ...interface{}) { Get(CategoryRender).Debug(format, args...) }
func RenderWarn(format string, args ...interface{})  { Get(CategoryRender).Warn(format, args...) }

func Compile(format string, args ...interface{})      { Get(CategoryCompile).Info(format, args...) }
func CompileDebug(format string, args ...interface{}) { Get(CategoryCompile).Debug(format, args...) }
func CompileWarn(format string, args ...interface{})  { Get(CategoryCompile).Warn(format, args...) }

func Research(format string, args ...interface{})      { Get(CategoryResearch).Info(format, args...) }
func ResearchDebug(format string, args ...interface{}) { Get(CategoryResearch).Debug(format, args...) }
func ResearchWarn(format string, args ...interface{})  { Get(CategoryResearch).Warn(format, args...) }

func Store(format string, args ...interface{})      { Get(CategoryStore).Info(format, args...) }
func StoreDebug(format string, args ...interface{}) { Get(CategoryStore).Debug(format, args...) }
func StoreWarn(format string, args ...interface{})  { Get(CategoryStore).Warn(format, args...) }

func TactileDebug(format string, args ...interface{}) { Get(CategoryTactile).Debug(format, args...) }
func TactileWarn(format string, args ...interface{})  { Get(CategoryTactile).Warn(format, args...) }

// =============================================================================
// TIMING
// =============================================================================

// Timer measures an operation and logs its duration on Stop.
type Timer struct {
	category Category
	op       string
	start    time.Time
}

// StartTimer starts timing an operation.
func StartTimer(category Category, operation string) *Timer {
	return &Timer{category: category, op: operation, start: time.Now()}
}

// Stop ends the timer and logs the duration at debug level.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	return elapsed
}

// StopWithThreshold logs a warning if the duration exceeds threshold.
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		Get(t.category).Warn("%s slow: %v (threshold %v)", t.op, elapsed, threshold)
	} else {
		Get(t.category).Debug("%s completed in %v", t.op, elapsed)
	}
	return elapsed
}
