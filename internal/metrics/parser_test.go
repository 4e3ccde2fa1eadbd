package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exposition = `# HELP node_roles The roles the node is running with
# TYPE node_roles gauge
node_roles 4
# random comment
substrate_block_height{status="best"} 12
substrate_block_height{status="finalized"} 10
substrate_sub_libp2p_peers_count 2
rpc_latency_bucket{le="+Inf"} 33
process_start_time_seconds 1.68e+09
`

func TestParse_Exposition(t *testing.T) {
	samples, err := Parse(exposition)
	require.NoError(t, err)
	require.Len(t, samples, 6)

	assert.Equal(t, "node_roles", samples[0].Name)
	assert.Equal(t, 4.0, samples[0].Value)
	assert.Empty(t, samples[0].Labels)

	assert.Equal(t, "substrate_block_height", samples[1].Name)
	assert.Equal(t, map[string]string{"status": "best"}, samples[1].Labels)
	assert.Equal(t, 12.0, samples[1].Value)

	assert.Equal(t, "+Inf", samples[4].Labels["le"])
	assert.Equal(t, 33.0, samples[4].Value)
	assert.Equal(t, 1.68e9, samples[5].Value)
}

func TestParse_SpecialValues(t *testing.T) {
	samples, err := Parse("a +Inf\nb -Inf\nc NaN\n")
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.True(t, math.IsInf(samples[0].Value, 1))
	assert.True(t, math.IsInf(samples[1].Value, -1))
	assert.True(t, math.IsNaN(samples[2].Value))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"malformed label", `metric{foo} 1`},
		{"unterminated string", `metric{foo="bar} 1`},
		{"numeric overflow", `metric 1e400`},
		{"missing value", `metric`},
		{"unknown type", `# TYPE foo widget`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.GreaterOrEqual(t, pe.Offset, 0)
		})
	}
}

func TestParse_ErrorOffset(t *testing.T) {
	// The bad line starts after "ok 1\n" (5 bytes).
	_, err := Parse("ok 1\nbad{x} 2\n")
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.GreaterOrEqual(t, pe.Offset, 5)
}

func TestRender_RoundTrip(t *testing.T) {
	samples, err := Parse(exposition)
	require.NoError(t, err)

	again, err := Parse(Render(samples))
	require.NoError(t, err)
	assert.Equal(t, samples, again)
}

func TestRender_EscapedLabels(t *testing.T) {
	in := []Sample{{
		Name:   "m",
		Labels: map[string]string{"msg": "a\"b\\c\nd"},
		Value:  1,
	}}
	out, err := Parse(Render(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestCompileExpr(t *testing.T) {
	expr, err := CompileExpr(`block_height{status="best"}`)
	require.NoError(t, err)
	assert.Equal(t, "block_height", expr.Name)
	assert.Equal(t, map[string]string{"status": "best"}, expr.Labels)

	samples, err := Parse(exposition)
	require.NoError(t, err)

	// Node metric names carry a chain prefix; the suffix match covers it.
	v, ok := expr.Eval(samples)
	require.True(t, ok)
	assert.Equal(t, 12.0, v)

	missing, err := CompileExpr(`block_height{status="missing"}`)
	require.NoError(t, err)
	_, ok = missing.Eval(samples)
	assert.False(t, ok)
}

func TestExpr_HasFinite(t *testing.T) {
	samples := []Sample{
		{Name: "node_roles", Labels: map[string]string{}, Value: math.Inf(1)},
	}
	expr, err := CompileExpr("node_roles")
	require.NoError(t, err)
	assert.False(t, expr.HasFinite(samples))

	samples[0].Value = 4
	assert.True(t, expr.HasFinite(samples))
}
