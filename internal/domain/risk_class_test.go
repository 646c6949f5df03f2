package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRiskClass_StringRoundTrip(t *testing.T) {
	for _, c := range AllRiskClasses {
		parsed, err := ParseRiskClass(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}

	_, err := ParseRiskClass("crypto")
	assert.True(t, IsValidation(err))
	assert.Equal(t, "RiskClass(9)", RiskClass(9).String())
}

func TestClassVector_Arithmetic(t *testing.T) {
	a := ClassVector{10000, 20000, 5000, 2000}
	b := ClassVector{360, 6840, 2128, 672}

	assert.InDelta(t, 37000, a.Total(), 1e-9)
	assert.Equal(t, ClassVector{10360, 26840, 7128, 2672}, a.Add(b))
	assert.Equal(t, ClassVector{9640, 13160, 2872, 1328}, a.Sub(b))
	assert.Equal(t, ClassVector{5000, 10000, 2500, 1000}, a.Scale(0.5))

	// operands are untouched
	assert.Equal(t, ClassVector{10000, 20000, 5000, 2000}, a)
}

func TestClassVector_Predicates(t *testing.T) {
	assert.True(t, ClassVector{}.IsZero())
	assert.False(t, ClassVector{0, 0, 0, 1}.IsZero())
	assert.True(t, ClassVector{1, 2, 3, 4}.IsFinite())
	assert.False(t, ClassVector{1, math.NaN(), 3, 4}.IsFinite())
	assert.False(t, ClassVector{math.Inf(1), 0, 0, 0}.IsFinite())
}

func TestClassVector_JSON(t *testing.T) {
	v := ClassVector{1.5, 2.5, 3, 4}

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"low_di":1.5,"low_credit":2.5,"moderate":3,"high":4}`, string(data))

	var decoded ClassVector
	require.NoError(t, json.Unmarshal([]byte(`{"moderate":7,"high":1}`), &decoded))
	assert.Equal(t, ClassVector{0, 0, 7, 1}, decoded)

	assert.Error(t, json.Unmarshal([]byte(`{"equities":7}`), &decoded))
}

func TestRiskClass_Text(t *testing.T) {
	b, err := json.Marshal(map[string]RiskClass{"class": Moderate})
	require.NoError(t, err)
	assert.JSONEq(t, `{"class":"moderate"}`, string(b))

	var decoded struct {
		Class RiskClass `json:"class"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"class":"low_credit"}`), &decoded))
	assert.Equal(t, LowRiskCreditSpread, decoded.Class)

	assert.Error(t, json.Unmarshal([]byte(`{"class":"crypto"}`), &decoded))
}
