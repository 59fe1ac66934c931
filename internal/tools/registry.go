package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	apperrors "github.com/nomadai/concierge/internal/errors"
	"github.com/nomadai/concierge/internal/llmtypes"
	"github.com/nomadai/concierge/internal/logging"
)

// DefaultTimeout bounds a single tool call
const DefaultTimeout = 15 * time.Second

// Registry maps tool names to tools. Registration happens at startup;
// the first Catalog or Dispatch call freezes it.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	order   []string
	frozen  bool
	catalog []llmtypes.ToolDefinition

	timeout   time.Duration
	maxResult int
	logger    *logging.Logger
}

// RegistryOption configures a Registry
type RegistryOption func(*Registry)

// WithTimeout sets the per-call timeout
func WithTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithMaxResult caps the size of rendered results
func WithMaxResult(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.maxResult = n
		}
	}
}

// WithLogger sets the logger used for handler failures
func WithLogger(l *logging.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tools:     make(map[string]Tool),
		timeout:   DefaultTimeout,
		maxResult: MaxToolResponseSize,
		logger:    logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register inserts a tool when its name is not in use
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return apperrors.NewConfigurationError("tool is nil")
	}
	name := tool.Name()
	if name == "" {
		return apperrors.NewConfigurationError("tool name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return apperrors.NewConfigurationError(fmt.Sprintf("cannot register tool '%s': registry is frozen", name))
	}
	if _, exists := r.tools[name]; exists {
		return apperrors.NewDuplicateToolError(name)
	}

	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// Freeze closes the registry to further registration and fixes the catalog
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.freezeLocked()
}

func (r *Registry) freezeLocked() {
	if r.frozen {
		return
	}
	r.frozen = true
	r.catalog = make([]llmtypes.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		r.catalog = append(r.catalog, Advertise(r.tools[name]))
	}
}

// Catalog returns the advertised tool list in registration order. The
// returned slice is a copy; the catalog itself never changes once frozen.
func (r *Registry) Catalog() []llmtypes.ToolDefinition {
	r.mu.RLock()
	if r.frozen {
		defer r.mu.RUnlock()
		return append([]llmtypes.ToolDefinition(nil), r.catalog...)
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.freezeLocked()
	return append([]llmtypes.ToolDefinition(nil), r.catalog...)
}

// Get fetches a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns tool names in registration order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered tools
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

type outcome struct {
	value interface{}
	err   error
}

// Dispatch resolves and invokes a tool. An unknown name, invalid
// arguments, a handler error, a panic, and a timeout all come back as
// errors for the caller to report to the model; none escapes as a fault.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	r.Freeze()

	tool, ok := r.Get(name)
	if !ok {
		return "", apperrors.NewUnknownToolError(name)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	if err := Validate(args, tool.Parameters()); err != nil {
		return "", apperrors.NewToolArgumentsError(name, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("tool handler panicked",
					logging.String("tool", name),
					logging.Any("panic", p),
					logging.String("stack", string(debug.Stack())))
				done <- outcome{err: fmt.Errorf("panic: %v", p)}
			}
		}()
		value, err := tool.Execute(callCtx, Args(args))
		done <- outcome{value: value, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return "", apperrors.NewToolExecutionError(name, out.err)
		}
		return TruncateString(render(out.value), r.maxResult), nil
	case <-callCtx.Done():
		return "", apperrors.NewToolExecutionError(name, fmt.Errorf("timed out after %s: %w", r.timeout, callCtx.Err()))
	}
}

// render converts a handler result to text
func render(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
