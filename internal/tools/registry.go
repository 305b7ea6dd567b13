package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"vibetex/internal/logging"
)

// Usage counts executions of one tool since boot.
type Usage struct {
	Calls      int   `json:"calls"`
	Failures   int   `json:"failures"`
	LastMillis int64 `json:"last_ms"`
}

type entry struct {
	tool  *Tool
	usage Usage
}

// Registry is the set of tools available to the composer.
// It is safe for concurrent use; renders execute tools in parallel.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a tool. Names are unique.
func (r *Registry) Register(tool *Tool) error {
	if err := tool.Validate(); err != nil {
		return fmt.Errorf("invalid tool: %w", err)
	}
	if tool.Category == "" {
		tool.Category = CategoryGeneral
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[tool.Name]; exists {
		return fmt.Errorf("%w: %s", ErrToolAlreadyRegistered, tool.Name)
	}
	r.entries[tool.Name] = &entry{tool: tool}

	logging.ToolsDebug("Registered tool: %s (%s)", tool.Name, tool.Category)
	return nil
}

// MustRegister is Register for boot-time wiring; it panics on error.
func (r *Registry) MustRegister(tool *Tool) {
	if err := r.Register(tool); err != nil {
		panic(fmt.Sprintf("register tool %s: %v", tool.Name, err))
	}
}

// Get returns a tool by name, or nil.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[name]; ok {
		return e.tool
	}
	return nil
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	return r.Get(name) != nil
}

// Names returns the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Usage returns the execution counters for name.
func (r *Registry) Usage(name string) (Usage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return Usage{}, false
	}
	return e.usage, true
}

// Specs describes every registered tool, sorted by name.
func (r *Registry) Specs() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	specs := make([]Spec, 0, len(r.entries))
	for _, e := range r.entries {
		specs = append(specs, Spec{
			Name:        e.tool.Name,
			Description: e.tool.Description,
			Category:    e.tool.Category,
			InputSchema: e.tool.Schema.JSONSchema(),
			Usage:       e.usage,
		})
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Execute runs the named tool. The tool's own error is returned unwrapped so
// callers can match it with errors.Is; argument and lookup failures wrap
// ErrMissingRequiredArg and ErrToolNotFound.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	tool := r.Get(name)
	if tool == nil {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	res := &ToolResult{ToolName: name}
	if err := checkRequired(tool, args); err != nil {
		res.Error = err
		return res, err
	}

	start := time.Now()
	res.Result, res.Error = tool.Execute(ctx, args)
	elapsed := time.Since(start)
	res.DurationMs = elapsed.Milliseconds()
	r.observe(name, elapsed, res.Error)

	if res.Error != nil {
		logging.ToolsWarn("Tool %s failed after %v: %v", name, elapsed, res.Error)
	} else {
		logging.ToolsDebug("Tool %s completed in %v", name, elapsed)
	}
	return res, res.Error
}

func (r *Registry) observe(name string, elapsed time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return
	}
	e.usage.Calls++
	if err != nil {
		e.usage.Failures++
	}
	e.usage.LastMillis = elapsed.Milliseconds()
}

// checkRequired rejects missing or nil required arguments.
func checkRequired(tool *Tool, args map[string]any) error {
	for _, key := range tool.Schema.Required {
		if v, ok := args[key]; !ok || v == nil {
			return fmt.Errorf("%w: %s", ErrMissingRequiredArg, key)
		}
	}
	return nil
}
