package breakpoints

import (
	"testing"

	"github.com/fansqz/midas-dap/debugger"
	"github.com/fansqz/midas-dap/debugger/scripted_debugger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHitConditionEvaluator(t *testing.T) {
	h := NewHitConditionEvaluator()
	cases := []struct {
		condition string
		hits      int
		want      bool
	}{
		{"", 0, true},
		{"3", 2, false},
		{"3", 3, true},
		{"3", 4, true},
		{"== 3", 4, false},
		{"=3", 3, true},
		{"> 1", 2, true},
		{"<= 1", 2, false},
		{"!= 2", 2, false},
		{"% 2", 4, true},
		{"%2", 3, false},
		{"hits > 1 && hits < 5", 3, true},
	}
	for _, c := range cases {
		got, err := h.Evaluate(c.condition, c.hits)
		require.Nil(t, err, c.condition)
		assert.Equal(t, c.want, got, "%s with %d hits", c.condition, c.hits)
	}

	_, err := h.Evaluate("hits +", 1)
	assert.NotNil(t, err)
	assert.NotNil(t, h.Validate("count > 1"))
	assert.Nil(t, h.Validate("hits > 1"))

	before := h.CacheSize()
	_, err = h.Evaluate("> 1", 10)
	require.Nil(t, err)
	assert.Equal(t, before, h.CacheSize())
}

func TestInterpolate(t *testing.T) {
	d := scripted_debugger.NewScriptedDebugger(scripted_debugger.DefaultScenario())
	f, err := d.NewestFrame(debugger.Thread{ID: 1})
	require.Nil(t, err)

	assert.Equal(t, "n is 4", Interpolate(d, f, "n is {n}"))
	assert.Equal(t, "{literal} 42", Interpolate(d, f, "{{literal}} { total }"))
	assert.Equal(t, "unterminated {n", Interpolate(d, f, "unterminated {n"))
	assert.Contains(t, Interpolate(d, f, "x={missing}"), "<No symbol")
}
