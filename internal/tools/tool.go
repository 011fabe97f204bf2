// Package tools defines the terminal tools served over MCP and the REST API.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "mt5-bridge/internal/errors"
	"mt5-bridge/internal/logging"
)

// Tool is the interface that all tools must implement
type Tool interface {
	// Name returns the tool name (unique identifier)
	Name() string

	// Description returns the tool description shown to clients
	Description() string

	// InputSchema returns the JSON Schema for the tool input
	InputSchema() json.RawMessage

	// ReadOnly reports whether the tool leaves the account untouched
	ReadOnly() bool

	// Execute executes the tool with the given input
	Execute(ctx context.Context, input *Input) (*Output, error)

	// Validate validates the input before execution
	Validate(input *Input) error
}

// Input represents tool input
type Input struct {
	Name   string
	Params map[string]interface{}
}

// Format names the encoding of Output.Content.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Output represents tool output. Content is the text handed to MCP
// clients; Data is the same value before encoding.
type Output struct {
	Content string      `json:"content"`
	IsError bool        `json:"is_error,omitempty"`
	Format  Format      `json:"-"`
	Data    interface{} `json:"-"`
}

// ErrToolNotFound is returned for an unknown tool name.
var ErrToolNotFound = apperrors.New("tool not found")

// Registry is the tool registry
type Registry struct {
	tools   map[string]Tool
	aliases map[string]string
	log     zerolog.Logger

	mu sync.RWMutex
}

// NewRegistry creates a new tool registry
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		aliases: make(map[string]string),
		log:     logger.With().Str("component", "tools").Logger(),
	}
}

// Register registers a tool
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}

	r.tools[name] = tool
	return nil
}

// RegisterAlias registers an alias for a tool
func (r *Registry) RegisterAlias(alias, toolName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[alias] = toolName
}

// Get retrieves a tool by name or alias
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if actual, ok := r.aliases[name]; ok {
		name = actual
	}

	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return tool, nil
}

// List returns all tools sorted by name
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name() < tools[j].Name() })
	return tools
}

// Names returns all tool names, sorted
func (r *Registry) Names() []string {
	tools := r.List()
	names := make([]string, len(tools))
	for i, t := range tools {
		names[i] = t.Name()
	}
	return names
}

// Call validates params against the tool and executes it.
func (r *Registry) Call(ctx context.Context, name string, params map[string]interface{}) (*Output, error) {
	tool, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	if params == nil {
		params = map[string]interface{}{}
	}
	input := &Input{Name: tool.Name(), Params: params}

	log := logging.WithOperation(r.log, tool.Name())
	if id := logging.RequestID(ctx); id != "" {
		log = log.With().Str("request_id", id).Logger()
	}

	if err := tool.Validate(input); err != nil {
		log.Debug().Err(err).Msg("Tool input rejected")
		return nil, err
	}

	start := time.Now()
	out, err := tool.Execute(ctx, input)
	event := log.Debug()
	if err != nil {
		event = log.Warn().Err(err)
	} else if out.IsError {
		event = log.Info().Bool("is_error", true)
	}
	event.Dur("duration", time.Since(start)).Msg("Tool executed")
	return out, err
}
