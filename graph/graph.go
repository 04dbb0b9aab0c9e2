// Package graph runs state graphs: named nodes connected by edges and
// conditional edges, executed one node at a time from START until END.
package graph

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/pkg/metricskey"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent", "graph")

const (
	// START is the virtual entry node.
	START = "__start__"
	// END is the virtual exit node.
	END = "__end__"

	// DefaultRecursionLimit is the number of node executions allowed per Invoke.
	DefaultRecursionLimit = 25
)

// ErrRecursionLimit is returned when Invoke runs more nodes than allowed.
var ErrRecursionLimit = errors.New("recursion limit reached without hitting END")

// NodeFunc returns the update of the state, merged by the Reducer.
type NodeFunc[S any] func(ctx context.Context, state S) (S, error)

// Router returns the name of the next node, or END.
type Router[S any] func(ctx context.Context, state S) (string, error)

// Reducer merges the node update into the state.
type Reducer[S any] func(state, update S) S

// Replace is the Reducer that returns the update as the new state.
func Replace[S any](_ S, update S) S {
	return update
}

type branch[S any] struct {
	router  Router[S]
	allowed []string
}

// StateGraph is the builder of a Graph. Builder errors are returned by Compile.
type StateGraph[S any] struct {
	name     string
	reducer  Reducer[S]
	nodes    map[string]NodeFunc[S]
	order    []string
	edges    map[string]string
	branches map[string]*branch[S]
	errs     []error
}

// NewStateGraph returns an empty graph. A nil reducer replaces the state.
func NewStateGraph[S any](name string, reducer Reducer[S]) *StateGraph[S] {
	if reducer == nil {
		reducer = Replace[S]
	}
	return &StateGraph[S]{
		name:     name,
		reducer:  reducer,
		nodes:    make(map[string]NodeFunc[S]),
		edges:    make(map[string]string),
		branches: make(map[string]*branch[S]),
	}
}

func (g *StateGraph[S]) fail(format string, args ...any) *StateGraph[S] {
	g.errs = append(g.errs, errors.Newf(format, args...))
	return g
}

// AddNode adds the node.
func (g *StateGraph[S]) AddNode(name string, fn NodeFunc[S]) *StateGraph[S] {
	switch {
	case name == "" || name == START || name == END:
		return g.fail("invalid node name %q", name)
	case fn == nil:
		return g.fail("node %q: function is required", name)
	case g.nodes[name] != nil:
		return g.fail("node %q already exists", name)
	}
	g.nodes[name] = fn
	g.order = append(g.order, name)
	return g
}

// AddEdge adds the edge. A node has a single outgoing edge or branch.
func (g *StateGraph[S]) AddEdge(from, to string) *StateGraph[S] {
	switch {
	case from == END:
		return g.fail("END can not have outgoing edges")
	case to == START:
		return g.fail("START can not be an edge target")
	case g.edges[from] != "" || g.branches[from] != nil:
		return g.fail("node %q already has an outgoing edge", from)
	}
	g.edges[from] = to
	return g
}

// AddConditionalEdges routes from the node to one of the allowed nodes
// chosen by the router. With no allowed nodes, any node or END is accepted.
func (g *StateGraph[S]) AddConditionalEdges(from string, router Router[S], allowed ...string) *StateGraph[S] {
	switch {
	case from == END:
		return g.fail("END can not have outgoing edges")
	case router == nil:
		return g.fail("node %q: router is required", from)
	case g.edges[from] != "" || g.branches[from] != nil:
		return g.fail("node %q already has an outgoing edge", from)
	}
	g.branches[from] = &branch[S]{router: router, allowed: slices.Clone(allowed)}
	return g
}

// Option configures the compiled Graph.
type Option func(*options)

type options struct {
	recursionLimit int
	onStep         func(step int, node string)
}

// WithRecursionLimit sets the number of node executions allowed per Invoke.
func WithRecursionLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.recursionLimit = n
		}
	}
}

// WithStepCallback sets the function called before each node execution.
func WithStepCallback(fn func(step int, node string)) Option {
	return func(o *options) {
		o.onStep = fn
	}
}

// Compile validates the graph.
func (g *StateGraph[S]) Compile(opts ...Option) (*Graph[S], error) {
	errs := slices.Clone(g.errs)
	addErr := func(format string, args ...any) {
		errs = append(errs, errors.Newf(format, args...))
	}

	if g.edges[START] == "" && g.branches[START] == nil {
		addErr("graph %s: START has no outgoing edge", g.name)
	}
	exists := func(name string) bool {
		return name == END || g.nodes[name] != nil
	}
	for from, to := range g.edges {
		if from != START && g.nodes[from] == nil {
			addErr("edge %s -> %s: unknown source node", from, to)
		}
		if !exists(to) {
			addErr("edge %s -> %s: unknown target node", from, to)
		}
	}
	for from, b := range g.branches {
		if from != START && g.nodes[from] == nil {
			addErr("conditional edge from %s: unknown source node", from)
		}
		for _, to := range b.allowed {
			if !exists(to) {
				addErr("conditional edge %s -> %s: unknown target node", from, to)
			}
		}
	}
	for _, name := range g.order {
		if g.edges[name] == "" && g.branches[name] == nil {
			addErr("node %s is a dead-end", name)
		}
	}

	if len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		slices.Sort(msgs)
		return nil, errors.Newf("invalid graph %s: %s", g.name, strings.Join(msgs, "; "))
	}

	o := options{recursionLimit: DefaultRecursionLimit}
	for _, opt := range opts {
		opt(&o)
	}
	return &Graph[S]{StateGraph: g, opts: o}, nil
}

// Graph is a compiled StateGraph.
type Graph[S any] struct {
	*StateGraph[S]
	opts options
}

// Name returns the graph name.
func (g *Graph[S]) Name() string {
	return g.name
}

// Nodes returns the node names in the order they were added.
func (g *Graph[S]) Nodes() []string {
	return slices.Clone(g.order)
}

// Invoke runs the graph from START with the state and returns the final state.
// On error the state reached so far is returned.
func (g *Graph[S]) Invoke(ctx context.Context, state S) (S, error) {
	started := time.Now()
	defer metricskey.PerfGraphRun.MeasureSince(started, g.name)

	current, err := g.next(ctx, START, state)
	if err != nil {
		return state, err
	}

	for step := 0; current != END; step++ {
		if step >= g.opts.recursionLimit {
			return state, errors.Wrapf(ErrRecursionLimit, "graph %s: limit %d", g.name, g.opts.recursionLimit)
		}
		if err := ctx.Err(); err != nil {
			return state, errors.WithStack(err)
		}
		if g.opts.onStep != nil {
			g.opts.onStep(step, current)
		}

		logger.ContextKV(ctx, xlog.DEBUG,
			"graph", g.name,
			"step", step,
			"node", current,
		)
		metricskey.StatsGraphSteps.IncrCounter(1, g.name, current)

		update, err := g.nodes[current](ctx, state)
		if err != nil {
			return state, errors.WithMessagef(err, "node %s", current)
		}
		state = g.reducer(state, update)

		current, err = g.next(ctx, current, state)
		if err != nil {
			return state, err
		}
	}
	return state, nil
}

func (g *Graph[S]) next(ctx context.Context, from string, state S) (string, error) {
	if to := g.edges[from]; to != "" {
		return to, nil
	}
	b := g.branches[from]
	to, err := b.router(ctx, state)
	if err != nil {
		return "", errors.WithMessagef(err, "route from %s", from)
	}
	if len(b.allowed) > 0 && !slices.Contains(b.allowed, to) {
		return "", errors.Newf("route from %s: %q is not allowed", from, to)
	}
	if to != END && g.nodes[to] == nil {
		return "", errors.Newf("route from %s: unknown node %q", from, to)
	}
	return to, nil
}
