// Package derive keeps derived fields consistent with their inputs.
//
// Fields are declared once, with the fields they read. The declarations form a
// directed acyclic graph that is ordered topologically when the graph is built;
// a cycle is reported then and never at recompute time. Changing an input
// recomputes every transitive dependent exactly once, in dependency order.
package derive

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrDependencyCycle = errors.New("derived field dependency cycle")
	ErrInvalidRule     = errors.New("invalid derived field rule")
)

// CycleError names the fields that form a cycle, first field repeated last.
type CycleError struct {
	Fields []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrDependencyCycle, strings.Join(e.Fields, " -> "))
}

func (e *CycleError) Unwrap() error {
	return ErrDependencyCycle
}

// Rule declares a derived field. Compute must be deterministic and only read
// the fields listed in DependsOn (plus the field's own identity data).
type Rule[T any] struct {
	Field     string
	DependsOn []string
	Compute   func(T)
}

type Graph[T any] struct {
	rules      map[string]Rule[T]
	order      []string
	rank       map[string]int
	dependents map[string][]string
}

// New validates the rules and orders them. Names that appear only in
// DependsOn are treated as inputs.
func New[T any](rules ...Rule[T]) (*Graph[T], error) {
	g := &Graph[T]{
		rules:      make(map[string]Rule[T], len(rules)),
		rank:       make(map[string]int, len(rules)),
		dependents: make(map[string][]string),
	}

	for _, rule := range rules {
		if strings.TrimSpace(rule.Field) == "" || rule.Compute == nil {
			return nil, fmt.Errorf("%w: field name and compute func are required", ErrInvalidRule)
		}
		if _, dup := g.rules[rule.Field]; dup {
			return nil, fmt.Errorf("%w: %s declared twice", ErrInvalidRule, rule.Field)
		}
		deps := append([]string(nil), rule.DependsOn...)
		slices.Sort(deps)
		rule.DependsOn = slices.Compact(deps)
		g.rules[rule.Field] = rule
		for _, dep := range rule.DependsOn {
			g.dependents[dep] = append(g.dependents[dep], rule.Field)
		}
	}
	for dep := range g.dependents {
		slices.Sort(g.dependents[dep])
	}

	order, err := g.sort()
	if err != nil {
		return nil, err
	}
	g.order = order
	for i, field := range order {
		g.rank[field] = i
	}
	return g, nil
}

const (
	unvisited = iota
	visiting
	done
)

// sort is a depth-first topological sort over derived fields, visiting names
// in lexical order so the result is stable across runs.
func (g *Graph[T]) sort() ([]string, error) {
	names := make([]string, 0, len(g.rules))
	for name := range g.rules {
		names = append(names, name)
	}
	slices.Sort(names)

	state := make(map[string]int, len(names))
	order := make([]string, 0, len(names))
	stack := make([]string, 0, 8)

	var visit func(name string) error
	visit = func(name string) error {
		rule, derived := g.rules[name]
		if !derived {
			return nil
		}
		switch state[name] {
		case done:
			return nil
		case visiting:
			start := slices.Index(stack, name)
			cycle := append(slices.Clone(stack[start:]), name)
			return &CycleError{Fields: cycle}
		}
		state[name] = visiting
		stack = append(stack, name)
		for _, dep := range rule.DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[name] = done
		order = append(order, name)
		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Order returns derived fields in recompute order.
func (g *Graph[T]) Order() []string {
	return slices.Clone(g.order)
}

// Dependents returns the fields that read field directly.
func (g *Graph[T]) Dependents(field string) []string {
	return slices.Clone(g.dependents[field])
}

func (g *Graph[T]) IsDerived(field string) bool {
	_, ok := g.rules[field]
	return ok
}

// Affected returns every derived field reachable from changed, in recompute
// order. A changed name that is itself derived is included.
func (g *Graph[T]) Affected(changed ...string) []string {
	seen := make(map[string]bool)
	queue := make([]string, 0, len(changed))
	for _, name := range changed {
		if g.IsDerived(name) && !seen[name] {
			seen[name] = true
		}
		queue = append(queue, name)
	}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		for _, dep := range g.dependents[name] {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			queue = append(queue, dep)
		}
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	slices.SortFunc(out, func(a, b string) int {
		return g.rank[a] - g.rank[b]
	})
	return out
}

// Propagate recomputes everything downstream of changed on target and returns
// the fields it ran, in order.
func (g *Graph[T]) Propagate(target T, changed ...string) []string {
	affected := g.Affected(changed...)
	for _, field := range affected {
		g.rules[field].Compute(target)
	}
	return affected
}

// RecomputeAll runs every rule in order.
func (g *Graph[T]) RecomputeAll(target T) {
	for _, field := range g.order {
		g.rules[field].Compute(target)
	}
}
