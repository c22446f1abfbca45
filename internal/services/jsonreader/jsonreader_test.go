package jsonreader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/antigravity-dev/ragforge/internal/interfaces"
)

type fakeGateway struct {
	structured map[string]interface{}
	err        error
}

func (f *fakeGateway) GenerateText(ctx context.Context, prompt string, opts interfaces.GenerateOptions) (string, error) {
	return "", nil
}

func (f *fakeGateway) GenerateStructured(ctx context.Context, prompt string, schema map[string]interface{}, opts interfaces.GenerateOptions) (map[string]interface{}, error) {
	return f.structured, f.err
}

func (f *fakeGateway) DescribeImage(ctx context.Context, imageBytes []byte, surroundingText string, opts interfaces.GenerateOptions) (map[string]interface{}, error) {
	return nil, nil
}

func TestReadItems_StrictArray(t *testing.T) {
	r := New(nil, arbor.NewLogger())

	var items []interface{}
	report, err := r.ReadItems(context.Background(), []byte(`[{"a":1},{"a":2}]`), interfaces.JSONReadOptions{}, func(item interface{}) error {
		items = append(items, item)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, interfaces.RepairStrategyStrict, report.Strategy)
	assert.Len(t, items, 2)
}

func TestReadItems_StrictNonArrayRoot(t *testing.T) {
	r := New(nil, arbor.NewLogger())

	var items []interface{}
	report, err := r.ReadItems(context.Background(), []byte(`{"a":1}`), interfaces.JSONReadOptions{}, func(item interface{}) error {
		items = append(items, item)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, interfaces.RepairStrategyStrict, report.Strategy)
	assert.Len(t, items, 1)
}

func TestReadItems_StructuralRepairTrailingComma(t *testing.T) {
	r := New(nil, arbor.NewLogger())

	var items []interface{}
	report, err := r.ReadItems(context.Background(), []byte(`[{"a":1},{"a":2},]`), interfaces.JSONReadOptions{}, func(item interface{}) error {
		items = append(items, item)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, interfaces.RepairStrategyRepair, report.Strategy)
	assert.Contains(t, report.RepairsLogged, "trailing-comma-removed-array")
	assert.Len(t, items, 2)
}

func TestReadItems_StructuralRepairUnquotedKeys(t *testing.T) {
	r := New(nil, arbor.NewLogger())

	var items []interface{}
	_, err := r.ReadItems(context.Background(), []byte(`[{a: 1, b: "x"}]`), interfaces.JSONReadOptions{}, func(item interface{}) error {
		items = append(items, item)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	asMap := items[0].(map[string]interface{})
	assert.Equal(t, "x", asMap["b"])
}

func TestReadItems_LLMRepairUsedWhenEnabledAndGatewayPresent(t *testing.T) {
	gw := &fakeGateway{structured: map[string]interface{}{"a": float64(1)}}
	r := New(gw, arbor.NewLogger())

	var items []interface{}
	report, err := r.ReadItems(context.Background(), []byte(`{totally not json`), interfaces.JSONReadOptions{AllowLLMRepair: true}, func(item interface{}) error {
		items = append(items, item)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, interfaces.RepairStrategyLLM, report.Strategy)
	assert.Len(t, items, 1)
}

func TestReadItems_BestEffortReturnsPartialOffset(t *testing.T) {
	r := New(nil, arbor.NewLogger())

	var items []interface{}
	report, err := r.ReadItems(context.Background(), []byte(`[{"a":1},{"a":2`), interfaces.JSONReadOptions{BestEffort: true}, func(item interface{}) error {
		items = append(items, item)
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, report.PartialOffset)
	assert.Len(t, items, 1)
}

func TestReadItems_MalformedBeyondRepairErrors(t *testing.T) {
	r := New(nil, arbor.NewLogger())

	_, err := r.ReadItems(context.Background(), []byte(`not json at all {{{`), interfaces.JSONReadOptions{}, func(item interface{}) error {
		return nil
	})
	assert.Error(t, err)
}

func TestFindLastBalancedOffset(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want int
	}{
		{"complete array", `[{"a":1}]`, 9},
		{"truncated mid-object returns full length when no top-level close found", `[{"a":1},{"a":2`, 15},
		{"braces inside string ignored", `[{"a":"}]"}]`, 12},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, findLastBalancedOffset([]byte(tc.in)))
		})
	}
}
