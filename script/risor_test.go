package script

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRisorEngineEvaluatesExpressions(t *testing.T) {
	ctx := context.Background()
	engine := NewRisorEngine(DefaultGlobals())

	compiled, err := engine.Compile(ctx, "40 + 2")
	require.NoError(t, err)

	value, err := compiled.Evaluate(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, int64(42), value.Value())
	require.True(t, value.IsTruthy())
}

func TestRisorEngineCallTimeGlobals(t *testing.T) {
	ctx := context.Background()
	globals := DefaultGlobals()
	globals["event"] = nil
	engine := NewRisorEngine(globals)

	compiled, err := engine.Compile(ctx, `event["resource"]`)
	require.NoError(t, err)

	value, err := compiled.Evaluate(ctx, map[string]any{
		"event": map[string]any{"resource": "pool-1"},
	})
	require.NoError(t, err)
	require.Equal(t, "pool-1", value.Value())
	require.Equal(t, "pool-1", value.String())
}

func TestRisorEngineConvertsCollections(t *testing.T) {
	ctx := context.Background()
	engine := NewRisorEngine(DefaultGlobals())

	compiled, err := engine.Compile(ctx, `{"ids": ["a1", "a2"], "count": 2}`)
	require.NoError(t, err)

	value, err := compiled.Evaluate(ctx, nil)
	require.NoError(t, err)
	result, ok := value.Value().(map[string]any)
	require.True(t, ok)
	require.Equal(t, int64(2), result["count"])
	require.Equal(t, []any{"a1", "a2"}, result["ids"])
}

func TestRisorEngineParseError(t *testing.T) {
	engine := NewRisorEngine(DefaultGlobals())
	_, err := engine.Compile(context.Background(), "func (")
	require.Error(t, err)
}

func TestRisorEngineFalsyValues(t *testing.T) {
	ctx := context.Background()
	engine := NewRisorEngine(DefaultGlobals())

	compiled, err := engine.Compile(ctx, "1 > 2")
	require.NoError(t, err)
	value, err := compiled.Evaluate(ctx, nil)
	require.NoError(t, err)
	require.False(t, value.IsTruthy())
}
