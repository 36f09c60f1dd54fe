// Package tool implements the six tool executors (Read, Write, Edit,
// Glob, Grep, Bash) and the Dispatcher that routes a model's tool_use
// calls to them by name.
package tool

import (
	"context"
	"encoding/json"

	"github.com/sacenox/kanata/internal/kerrors"
	"github.com/sacenox/kanata/internal/message"
)

// Executor is one tool's implementation: a stable Definition sent to the
// model, and Execute which runs one call against raw JSON input.
type Executor interface {
	Definition() message.Tool
	Execute(ctx context.Context, input json.RawMessage) (message.ToolResult, error)
}

// Dispatcher is a name -> Executor map, built once at agent construction.
type Dispatcher struct {
	executors map[string]Executor
	order     []string
}

// NewDispatcher builds an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{executors: make(map[string]Executor)}
}

// Register adds an executor under its own definition's name.
func (d *Dispatcher) Register(e Executor) {
	name := e.Definition().Name
	if _, exists := d.executors[name]; !exists {
		d.order = append(d.order, name)
	}
	d.executors[name] = e
}

// Definitions returns every registered tool's definition, in registration
// order, for inclusion in the provider request's tools list.
func (d *Dispatcher) Definitions() []message.Tool {
	defs := make([]message.Tool, 0, len(d.order))
	for _, name := range d.order {
		defs = append(defs, d.executors[name].Definition())
	}
	return defs
}

// Dispatch runs the named tool against input, or synthesizes an errored
// ToolResult "Unknown tool: <name>" if no executor is registered under
// that name. It never returns a Go error: user-induced tool failures are
// results the model sees and can react to, not exceptions.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, input json.RawMessage) message.ToolResult {
	e, ok := d.executors[name]
	if !ok {
		return message.ToolResult{Content: "Unknown tool: " + name, IsError: true}
	}
	result, err := e.Execute(ctx, input)
	if err != nil {
		if te, ok := err.(*kerrors.ToolError); ok {
			return message.ToolResult{Content: te.Reason, IsError: true}
		}
		return message.ToolResult{Content: err.Error(), IsError: true}
	}
	return result
}
