package runtime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagecraft-dev/pagecraft/internal/core"
)

func TestGojaEvaluator(t *testing.T) {
	e := NewGojaEvaluator(0)

	tests := []struct {
		name  string
		code  string
		scope map[string]any
		want  any
	}{
		{"arithmetic", "1 + 1", nil, int64(2)},
		{"scope lookup", "a + b", map[string]any{"a": 1, "b": 2}, int64(3)},
		{"state prefix", "state.page.limit * 2", map[string]any{"page": map[string]any{"limit": 4}}, int64(8)},
		{"template literal", "`Hello ${state.user.name}`", map[string]any{"user": map[string]any{"name": "Ada"}}, "Hello Ada"},
		{"object result", "({ ok: true, items: [1, 2] })", nil, map[string]any{"ok": true, "items": []any{int64(1), int64(2)}}},
		{"undefined result", "undefined", nil, nil},
		{"functions are dropped", "typeof handler", map[string]any{"handler": func() {}}, "undefined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Eval(tt.code, tt.scope)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGojaEvaluatorErrors(t *testing.T) {
	e := NewGojaEvaluator(50 * time.Millisecond)

	_, err := e.Eval("missing.value", nil)
	var rt *core.RuntimeError
	require.ErrorAs(t, err, &rt)
	assert.Contains(t, rt.Message, "missing")

	_, err = e.Eval("(() => { throw new Error('nope'); })()", nil)
	require.ErrorAs(t, err, &rt)
	assert.Equal(t, "nope", rt.Message)

	_, err = e.Eval("(() => { while (true) {} })()", nil)
	assert.ErrorIs(t, err, ErrEvalTimeout)

	_, err = e.Eval("1 +", nil)
	assert.Error(t, err)
}

func TestGojaEvaluatorIsolatesCalls(t *testing.T) {
	e := NewGojaEvaluator(0)
	_, err := e.Eval("(globalThis.leak = 1)", nil)
	require.NoError(t, err)

	got, err := e.Eval("typeof leak", nil)
	require.NoError(t, err)
	assert.Equal(t, "undefined", got)
}
