package formula

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalPrecedenceAndUnary(t *testing.T) {
	cases := map[string]float64{
		"1 + 2 * 3":       7,
		"(1 + 2) * 3":     9,
		"-2 * -3":         6,
		"10 / 4":          2.5,
		"8 - 3 - 2":       3,
		"+a - -b":         7,
		"a * (b + 1) / 2": 8,
		"0.5 * .5":        0.25,
	}
	vars := map[string]float64{"a": 4, "b": 3}
	for src, want := range cases {
		e, err := Parse(src)
		require.NoError(t, err, src)
		got, err := e.Eval(vars)
		require.NoError(t, err, src)
		assert.InDelta(t, want, got, 1e-12, src)
	}
}

func TestParseSyntaxErrors(t *testing.T) {
	for _, src := range []string{"", "1 +", "(1 + 2", "1 2", "a $ b", "1.2.3", ")"} {
		_, err := Parse(src)
		var se *SyntaxError
		assert.True(t, errors.As(err, &se), "Parse(%q) err=%v", src, err)
	}
}

func TestEvalErrors(t *testing.T) {
	e, err := Parse("CatA / CatB")
	require.NoError(t, err)

	_, err = e.Eval(map[string]float64{"CatA": 1, "CatB": 0})
	assert.ErrorIs(t, err, ErrDivisionByZero)

	_, err = e.Eval(map[string]float64{"CatA": 1})
	assert.ErrorIs(t, err, ErrUnknownIdentifier)
	assert.Contains(t, err.Error(), "CatB")

	assert.Equal(t, []string{"CatA", "CatB"}, e.Identifiers())
}

func TestBindLongestNameFirstAtWordBoundaries(t *testing.T) {
	src := "Revenue Net - Revenue + 1234-5678 - RevenueX"
	out, bindings := Bind(src, []string{"Revenue", "Revenue Net", "1234-5678", "Revenue"})
	require.Len(t, bindings, 3)
	assert.Equal(t, "Revenue Net", bindings[0].Name)

	ident := map[string]string{}
	for _, b := range bindings {
		ident[b.Name] = b.Ident
	}
	want := ident["Revenue Net"] + " - " + ident["Revenue"] + " + " + ident["1234-5678"] + " - RevenueX"
	assert.Equal(t, want, out)

	e, err := Parse(out)
	require.NoError(t, err)
	_, err = e.Eval(map[string]float64{ident["Revenue Net"]: 1, ident["Revenue"]: 2, ident["1234-5678"]: 3})
	assert.ErrorIs(t, err, ErrUnknownIdentifier, "RevenueX stays unbound")
}
