package filter

import (
	"encoding/json"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalAny(t *testing.T) {
	for _, pair := range [][2]string{{"", ""}, {"abc", "1"}, {"3.5", "garbage"}} {
		ok, err := Eval(Any, pair[0], pair[1])
		require.NoError(t, err)
		assert.True(t, ok, "Any(%q, %q)", pair[0], pair[1])
	}
}

func TestEvalEquality(t *testing.T) {
	tests := []struct {
		op   Operator
		l, r string
		want bool
	}{
		{Equal, "on", "on", true},
		{Equal, "on", "off", false},
		{Equal, "1.0", "1", false},
		{NotEqual, "on", "off", true},
		{NotEqual, "on", "on", false},
	}
	for _, tt := range tests {
		got, err := Eval(tt.op, tt.l, tt.r)
		require.NoError(t, err)
		if got != tt.want {
			t.Errorf("Eval(%v, %q, %q) = %v, want %v", tt.op, tt.l, tt.r, got, tt.want)
		}
	}
}

func TestEvalNumeric(t *testing.T) {
	values := []float64{-12.5, -1, 0, 0.25, 1, 3, 42, 1e6}
	for _, a := range values {
		for _, b := range values {
			ls := strconv.FormatFloat(a, 'f', -1, 64)
			rs := strconv.FormatFloat(b, 'f', -1, 64)

			lt, err := Eval(LessThan, ls, rs)
			require.NoError(t, err)
			assert.Equal(t, a < b, lt, "LessThan(%s, %s)", ls, rs)

			gt, err := Eval(GreaterThan, ls, rs)
			require.NoError(t, err)
			assert.Equal(t, a > b, gt, "GreaterThan(%s, %s)", ls, rs)
		}
	}
}

func TestEvalNotNumeric(t *testing.T) {
	_, err := Eval(LessThan, "wet", "10")
	assert.True(t, errors.Is(err, ErrNotNumeric))

	_, err = Eval(GreaterThan, "10", "")
	assert.True(t, errors.Is(err, ErrNotNumeric))
}

func TestEvalUnknownOperator(t *testing.T) {
	_, err := Eval(Operator(99), "1", "2")
	assert.ErrorIs(t, err, ErrUnknownOperator)
}

func TestParseOperator(t *testing.T) {
	tests := map[string]Operator{
		"Any":         Any,
		"*":           Any,
		"equal":       Equal,
		"==":          Equal,
		"NotEqual":    NotEqual,
		"!=":          NotEqual,
		"lt":          LessThan,
		"<":           LessThan,
		"GreaterThan": GreaterThan,
		">":           GreaterThan,
	}
	for in, want := range tests {
		got, err := ParseOperator(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseOperator("about")
	assert.ErrorIs(t, err, ErrUnknownOperator)
}

func TestFilterJSON(t *testing.T) {
	f := Filter{Op: GreaterThan, Value: "30"}
	b, err := json.Marshal(f)
	require.NoError(t, err)
	assert.JSONEq(t, `{"operator":"GreaterThan","value":"30"}`, string(b))

	var got Filter
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, f, got)

	ok, err := got.Match("31")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "GreaterThan 30", got.String())
	assert.Equal(t, "*", Filter{}.String())
}
