package tools

import (
	"context"
	"encoding/json"

	"mt5-bridge/internal/client"
)

type handler func(ctx context.Context, p Params) (*Output, error)

// tool is a Tool backed by a handler function.
type tool struct {
	name        string
	description string
	schema      Schema
	readOnly    bool
	run         handler
}

func (t *tool) Name() string        { return t.name }
func (t *tool) Description() string { return t.description }
func (t *tool) ReadOnly() bool      { return t.readOnly }

func (t *tool) InputSchema() json.RawMessage {
	b, _ := json.Marshal(t.schema)
	return b
}

func (t *tool) Validate(input *Input) error {
	return t.schema.Check(input.Params)
}

func (t *tool) Execute(ctx context.Context, input *Input) (*Output, error) {
	return t.run(ctx, Params(input.Params))
}

func reader(name, description string, schema Schema, run handler) *tool {
	return &tool{name: name, description: description, schema: schema, readOnly: true, run: run}
}

func trader(name, description string, schema Schema, run handler) *tool {
	return &tool{name: name, description: description, schema: schema, run: run}
}

// New returns a registry holding every terminal tool bound to c.
func New(c *client.Client) (*Registry, error) {
	r := NewRegistry(c.Logger())

	var all []*tool
	all = append(all, accountTools(c)...)
	all = append(all, marketTools(c)...)
	all = append(all, historyTools(c)...)
	all = append(all, queryTools(c)...)
	all = append(all, calcTools(c)...)
	all = append(all, tradeTools(c)...)
	all = append(all, bulkTools(c)...)

	for _, t := range all {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	r.RegisterAlias("close_all_profittable_positions", "close_all_profitable_positions")
	return r, nil
}
