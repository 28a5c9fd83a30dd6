package compose

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/patternweave/internal/pattern"
)

func eventNames(p *pattern.Pattern) []string {
	out := make([]string, len(p.Events))
	for i, e := range p.Events {
		out[i] = e.Name
	}
	return out
}

func TestComposeEmptyInput(t *testing.T) {
	_, err := Compose(nil)
	require.Error(t, err)
	assert.True(t, pattern.IsKind(err, pattern.ErrEmptyInput))

	_, err = Compose([]*pattern.Pattern{})
	assert.True(t, pattern.IsKind(err, pattern.ErrEmptyInput))
}

func TestComposeName(t *testing.T) {
	tests := []struct {
		name   string
		models []*pattern.Pattern
		want   string
	}{
		{"first meaningful name", []*pattern.Pattern{{Name: "PSend"}, {Name: "PPacket"}}, "PSend_Composite"},
		{"skips default and blank", []*pattern.Pattern{nil, {Name: "pattern"}, {Name: "  "}, {Name: " PReceive "}}, "PReceive_Composite"},
		{"fallback", []*pattern.Pattern{{Name: "Pattern"}, {Name: ""}}, "PatternComposite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Compose(tt.models)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Name)
		})
	}
}

func TestComposeContexts(t *testing.T) {
	t.Run("union in first-seen order", func(t *testing.T) {
		out, err := Compose([]*pattern.Pattern{
			{Name: "A", Context: &pattern.Context{Sets: []string{"ND", "Dests"}, Axioms: []string{"ND ≠ ∅"}}},
			{Name: "B"},
			{Name: "C", Context: &pattern.Context{Sets: []string{"PKT", "ND"}, Constants: []string{"max"}, Axioms: []string{"ND ≠ ∅", "max > 0"}}},
		})
		require.NoError(t, err)
		require.NotNil(t, out.Context)
		assert.Equal(t, []string{"ND", "Dests", "PKT"}, out.Context.Sets)
		assert.Equal(t, []string{"max"}, out.Context.Constants)
		assert.Equal(t, []string{"ND ≠ ∅", "max > 0"}, out.Context.Axioms)
	})

	t.Run("nil when everything is empty", func(t *testing.T) {
		out, err := Compose([]*pattern.Pattern{{Name: "A", Context: &pattern.Context{}}, {Name: "B"}})
		require.NoError(t, err)
		assert.Nil(t, out.Context)
	})
}

func TestComposeVariables(t *testing.T) {
	t.Run("conflicting types fail", func(t *testing.T) {
		_, err := Compose([]*pattern.Pattern{
			{Name: "A", Variables: []pattern.Variable{{Name: "count", Type: "NAT"}}},
			{Name: "B", Variables: []pattern.Variable{{Name: "count", Type: "INT"}}},
		})
		require.Error(t, err)
		assert.True(t, pattern.IsKind(err, pattern.ErrVariableTypeConflict))
		assert.Contains(t, err.Error(), "count")
		assert.Contains(t, err.Error(), "NAT")
		assert.Contains(t, err.Error(), "INT")
	})

	t.Run("identical types merge", func(t *testing.T) {
		out, err := Compose([]*pattern.Pattern{
			{Name: "A", Variables: []pattern.Variable{{Name: "count", Type: "NAT"}, {Name: "buf", Type: "ℙ(PKT)"}}},
			{Name: "B", Variables: []pattern.Variable{{Name: " count ", Type: "NAT"}, {Name: " "}}},
		})
		require.NoError(t, err)
		assert.Equal(t, []pattern.Variable{{Name: "count", Type: "NAT"}, {Name: "buf", Type: "ℙ(PKT)"}}, out.Variables)
	})
}

func TestComposeInvariants(t *testing.T) {
	out, err := Compose([]*pattern.Pattern{
		{Name: "A", Invariants: []pattern.Invariant{{Expression: "buf ⊆ PKT"}, {Expression: " "}}},
		{Name: "B", Invariants: []pattern.Invariant{{Expression: "  buf ⊆ PKT  "}, {Expression: "count ≥ 0"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []pattern.Invariant{{Expression: "buf ⊆ PKT"}, {Expression: "count ≥ 0"}}, out.Invariants)
}

func TestComposeInitialisation(t *testing.T) {
	t.Run("merged into one synthetic event first", func(t *testing.T) {
		out, err := Compose([]*pattern.Pattern{
			{Name: "A", Events: []pattern.Event{
				{Name: "tick"},
				{Name: "Initialisation", Actions: []pattern.Action{{Assignment: "buf ≔ ∅"}, {Assignment: " "}}},
			}},
			{Name: "B", Events: []pattern.Event{
				{Name: "INITIALISATION", Actions: []pattern.Action{{Assignment: " buf ≔ ∅ "}, {Assignment: "count ≔ 0"}}},
			}},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"Initialisation", "tick"}, eventNames(out))
		assert.Equal(t, "Composite", out.Events[0].SourcePattern)
		assert.Equal(t, []pattern.Action{{Assignment: "buf ≔ ∅"}, {Assignment: "count ≔ 0"}}, out.Events[0].Actions)
	})

	t.Run("present without explicit events", func(t *testing.T) {
		out, err := Compose([]*pattern.Pattern{{Name: "A"}})
		require.NoError(t, err)
		require.Len(t, out.Events, 1)
		assert.Equal(t, "Initialisation", out.Events[0].Name)
		assert.Empty(t, out.Events[0].Actions)
	})
}

func TestComposeNameCollisionWithoutRule(t *testing.T) {
	out, err := Compose([]*pattern.Pattern{
		{Name: "PClockA", Events: []pattern.Event{{Name: "tick", Params: []pattern.Param{{Name: "t", Type: "ℕ"}}}}},
		{Name: "PClockB", Events: []pattern.Event{{Name: "tick", Params: []pattern.Param{{Name: "u", Type: "ℕ"}}}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Initialisation", "tick", "tick_2"}, eventNames(out))
	assert.Equal(t, "PClockA", out.Events[1].SourcePattern)
	assert.Equal(t, "PClockB", out.Events[2].SourcePattern)
}

func TestComposeIdenticalEventsCollapse(t *testing.T) {
	tick := pattern.Event{Name: "tick", Guards: []pattern.Guard{{Expr: "on = TRUE"}}}
	out, err := Compose([]*pattern.Pattern{
		{Name: "A", Events: []pattern.Event{tick}},
		{Name: "B", Events: []pattern.Event{{Name: " tick ", Guards: []pattern.Guard{{Expr: " on = TRUE "}}}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Initialisation", "tick"}, eventNames(out))
}

func TestComposeSuffixSkipsTakenNames(t *testing.T) {
	out, err := Compose([]*pattern.Pattern{
		{Name: "A", Events: []pattern.Event{
			{Name: "tick", Guards: []pattern.Guard{{Expr: "a"}}},
			{Name: "TICK_2", Guards: []pattern.Guard{{Expr: "b"}}},
			{Name: "tick", Guards: []pattern.Guard{{Expr: "c"}}},
			{Name: "Tick", Guards: []pattern.Guard{{Expr: "d"}}},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Initialisation", "tick", "TICK_2", "tick_3", "Tick_4"}, eventNames(out))
}

func TestComposeDefaultsSourcePattern(t *testing.T) {
	out, err := Compose([]*pattern.Pattern{
		{Name: "PClock", Events: []pattern.Event{{Name: "tick"}, {Name: "tock", SourcePattern: "Explicit"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "PClock", out.Events[1].SourcePattern)
	assert.Equal(t, "Explicit", out.Events[2].SourcePattern)
}

func TestComposeDropsBlankEventNames(t *testing.T) {
	out, err := Compose([]*pattern.Pattern{{Name: "A", Events: []pattern.Event{{Name: "  "}, {Name: "ok"}}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Initialisation", "ok"}, eventNames(out))
}

func TestComposeDoesNotMutateInputs(t *testing.T) {
	a := &pattern.Pattern{
		Name:      "PSend",
		Variables: []pattern.Variable{{Name: " sending ", Type: "ℙ(ND)"}},
		Events: []pattern.Event{{
			Name:   " start_tx ",
			Params: []pattern.Param{{Name: " n ", Type: " ND "}},
			Guards: []pattern.Guard{{Expr: " n ∉ sending "}},
		}},
	}
	before := a.Clone()

	_, err := Compose([]*pattern.Pattern{a, {Name: "PClock", Events: []pattern.Event{{Name: "start_tx"}}}})
	require.NoError(t, err)
	assert.Equal(t, before, a)
}

// Two documents whose events match the start_tx rule collapse into one event.
func TestComposeStartTxScenario(t *testing.T) {
	psend := &pattern.Pattern{
		Name:      "PSend",
		Variables: []pattern.Variable{{Name: "sending", Type: "ℙ(ND)"}},
		Events: []pattern.Event{{
			Name:    "start_tx",
			Params:  []pattern.Param{{Name: "n", Type: "ND"}},
			Guards:  []pattern.Guard{{Expr: "n ∉ sending"}, {Expr: "n ∈ active"}},
			Actions: []pattern.Action{{Assignment: "sending ≔ sending ∪ {n}"}},
		}},
	}
	pbuffer := &pattern.Pattern{
		Name:      "PNDBuffer",
		Variables: []pattern.Variable{{Name: "ndBuff", Type: "ND ↔ PKT"}},
		Events: []pattern.Event{
			{
				Name:          "remove_ndBuff",
				SourcePattern: "PNDBuffer",
				Params:        []pattern.Param{{Name: "n", Type: "ND"}, {Name: "p", Type: "PKT"}},
				Guards:        []pattern.Guard{{Expr: "n ↦ p ∈ ndBuff"}, {Expr: "n ∈ active"}},
				Actions:       []pattern.Action{{Assignment: "ndBuff ≔ ndBuff ∖ {n ↦ p}"}},
			},
			{
				Name:          "set_pktFwdr",
				SourcePattern: "PPacket",
				Params:        []pattern.Param{{Name: "p", Type: "PKT"}},
				Guards:        []pattern.Guard{{Expr: "p ∈ pkts"}},
				Actions:       []pattern.Action{{Assignment: "pktFwdr(p) ≔ n"}},
			},
		},
	}

	out, err := Compose([]*pattern.Pattern{psend, pbuffer})
	require.NoError(t, err)

	assert.Equal(t, "PSend_Composite", out.Name)
	assert.Equal(t, []string{"Initialisation", "start_tx"}, eventNames(out))

	startTx := out.Events[1]
	assert.Equal(t, "PSend+PNDBuffer+PPacket", startTx.SourcePattern)
	assert.Equal(t, []pattern.Param{{Name: "n", Type: "ND"}, {Name: "p", Type: "PKT"}}, startTx.Params)
	assert.Equal(t, []pattern.Guard{
		{Expr: "n ∉ sending"},
		{Expr: "n ∈ active"},
		{Expr: "n ↦ p ∈ ndBuff"},
		{Expr: "p ∈ pkts"},
	}, startTx.Guards)
	assert.Equal(t, []pattern.Action{
		{Assignment: "sending ≔ sending ∪ {n}"},
		{Assignment: "ndBuff ≔ ndBuff ∖ {n ↦ p}"},
		{Assignment: "pktFwdr(p) ≔ n"},
	}, startTx.Actions)
}

// Loaded models are shared between requests, so Compose runs on the same
// inputs from many goroutines at once. Run with -race.
func TestComposeConcurrentSharedModels(t *testing.T) {
	models := []*pattern.Pattern{
		{
			Name:      "PSend",
			Context:   &pattern.Context{Sets: []string{"ND"}},
			Variables: []pattern.Variable{{Name: "sending", Type: "ℙ(ND)"}},
			Events: []pattern.Event{
				{Name: "Initialisation", Actions: []pattern.Action{{Assignment: "sending ≔ ∅"}}},
				{
					Name:          "start_tx",
					SourcePattern: "PSend",
					Params:        []pattern.Param{{Name: "n", Type: "ND"}},
					Guards:        []pattern.Guard{{Expr: "n ∉ sending"}},
					Actions:       []pattern.Action{{Assignment: "sending ≔ sending ∪ {n}"}},
				},
			},
		},
		{
			Name:      "PNDBuffer",
			Variables: []pattern.Variable{{Name: "ndBuff", Type: "ℙ(PKT)"}},
			Events: []pattern.Event{
				{Name: "remove_ndBuff", SourcePattern: "PNDBuffer", Guards: []pattern.Guard{{Expr: "p ∈ ndBuff"}}},
				{Name: "tick", SourcePattern: "PNDBuffer"},
			},
		},
		{
			Name:    "PPacket",
			Context: &pattern.Context{Sets: []string{"PKT"}},
			Events: []pattern.Event{
				{Name: "set_pktFwdr", SourcePattern: "PPacket", Params: []pattern.Param{{Name: "p", Type: "PKT"}}},
				{Name: "tick", SourcePattern: "PPacket", Params: []pattern.Param{{Name: "x", Type: "ℕ"}}},
			},
		},
	}
	before := make([]*pattern.Pattern, len(models))
	for i, m := range models {
		before[i] = m.Clone()
	}

	want, err := Compose(models)
	require.NoError(t, err)

	const workers = 16
	results := make([]*pattern.Pattern, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := Compose(models)
			results[i], errs[i] = out, err
			if err == nil && len(out.Events) > 0 {
				// Outputs are private to the caller.
				out.Events[0].Name = "mutated"
				out.Variables[0].Type = "mutated"
			}
		}()
	}
	wg.Wait()

	for i := range workers {
		require.NoError(t, errs[i])
		assert.Equal(t, want.Context, results[i].Context)
		assert.Equal(t, want.Events[1:], results[i].Events[1:])
	}
	assert.Equal(t, before, models)
}
