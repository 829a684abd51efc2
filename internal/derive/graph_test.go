package derive

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sheet struct {
	qty, price, discount int
	gross, net, label    int
	calls                []string
}

func sheetRules() []Rule[*sheet] {
	return []Rule[*sheet]{
		{Field: "net", DependsOn: []string{"gross", "discount"}, Compute: func(s *sheet) {
			s.calls = append(s.calls, "net")
			s.net = s.gross - s.discount
		}},
		{Field: "gross", DependsOn: []string{"qty", "price"}, Compute: func(s *sheet) {
			s.calls = append(s.calls, "gross")
			s.gross = s.qty * s.price
		}},
		{Field: "label", DependsOn: []string{"net"}, Compute: func(s *sheet) {
			s.calls = append(s.calls, "label")
			s.label = s.net * 10
		}},
	}
}

func TestGraphOrdersByDependency(t *testing.T) {
	g, err := New(sheetRules()...)
	require.NoError(t, err)

	assert.Equal(t, []string{"gross", "net", "label"}, g.Order())
	assert.Equal(t, []string{"gross"}, g.Dependents("qty"))
	assert.Equal(t, []string{"label"}, g.Dependents("net"))
	assert.True(t, g.IsDerived("net"))
	assert.False(t, g.IsDerived("qty"))
}

func TestPropagateRunsTransitiveDependentsInOrder(t *testing.T) {
	g, err := New(sheetRules()...)
	require.NoError(t, err)

	s := &sheet{qty: 3, price: 4, discount: 2}
	ran := g.Propagate(s, "qty")

	assert.Equal(t, []string{"gross", "net", "label"}, ran)
	assert.Equal(t, 12, s.gross)
	assert.Equal(t, 10, s.net)
	assert.Equal(t, 100, s.label)
}

func TestPropagateSkipsUnrelatedFields(t *testing.T) {
	g, err := New(sheetRules()...)
	require.NoError(t, err)

	s := &sheet{qty: 3, price: 4}
	g.RecomputeAll(s)
	s.calls = nil

	s.discount = 5
	ran := g.Propagate(s, "discount")
	assert.Equal(t, []string{"net", "label"}, ran)
	assert.Equal(t, 7, s.net)
	assert.Equal(t, []string{"net", "label"}, s.calls)
}

func TestPropagateUnknownFieldIsNoop(t *testing.T) {
	g, err := New(sheetRules()...)
	require.NoError(t, err)

	s := &sheet{}
	assert.Empty(t, g.Propagate(s, "nothing.reads.this"))
	assert.Empty(t, s.calls)
}

func TestRecomputeIsIdempotent(t *testing.T) {
	g, err := New(sheetRules()...)
	require.NoError(t, err)

	s := &sheet{qty: 2, price: 7, discount: 1}
	g.RecomputeAll(s)
	first := *s
	g.RecomputeAll(s)

	assert.Equal(t, first.gross, s.gross)
	assert.Equal(t, first.net, s.net)
	assert.Equal(t, first.label, s.label)
}

func TestNewRejectsCycle(t *testing.T) {
	noop := func(*sheet) {}
	_, err := New(
		Rule[*sheet]{Field: "a", DependsOn: []string{"c"}, Compute: noop},
		Rule[*sheet]{Field: "b", DependsOn: []string{"a", "input"}, Compute: noop},
		Rule[*sheet]{Field: "c", DependsOn: []string{"b"}, Compute: noop},
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDependencyCycle))

	var cycle *CycleError
	require.True(t, errors.As(err, &cycle))
	assert.Equal(t, []string{"a", "c", "b", "a"}, cycle.Fields)
}

func TestNewRejectsSelfDependency(t *testing.T) {
	_, err := New(Rule[*sheet]{Field: "a", DependsOn: []string{"a"}, Compute: func(*sheet) {}})
	require.ErrorIs(t, err, ErrDependencyCycle)
}

func TestNewRejectsInvalidRules(t *testing.T) {
	_, err := New(Rule[*sheet]{Field: "a"})
	require.ErrorIs(t, err, ErrInvalidRule)

	noop := func(*sheet) {}
	_, err = New(
		Rule[*sheet]{Field: "a", Compute: noop},
		Rule[*sheet]{Field: "a", Compute: noop},
	)
	require.ErrorIs(t, err, ErrInvalidRule)
}
