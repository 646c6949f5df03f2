// Package domain holds the core types shared by the geld modules: risk classes,
// goals, holdings, ownership slices and the error taxonomy.
package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// RiskClass is one of the four buckets every unit of capital is classified into.
type RiskClass int

const (
	LowRiskFixedIncome RiskClass = iota
	LowRiskCreditSpread
	Moderate
	High
)

// NumRiskClasses is the size of every class-keyed vector.
const NumRiskClasses = 4

// AllRiskClasses lists the classes in canonical order.
var AllRiskClasses = [NumRiskClasses]RiskClass{
	LowRiskFixedIncome,
	LowRiskCreditSpread,
	Moderate,
	High,
}

var riskClassNames = [NumRiskClasses]string{
	"low_di",
	"low_credit",
	"moderate",
	"high",
}

// String returns the wire name of the class.
func (c RiskClass) String() string {
	if c < 0 || int(c) >= NumRiskClasses {
		return fmt.Sprintf("RiskClass(%d)", int(c))
	}
	return riskClassNames[c]
}

// ParseRiskClass parses a wire name back into a RiskClass.
func ParseRiskClass(s string) (RiskClass, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range riskClassNames {
		if n == name {
			return RiskClass(i), nil
		}
	}
	return 0, &ValidationError{Field: "risk_class", Message: fmt.Sprintf("unknown risk class %q", s)}
}

// MarshalText encodes the class by name.
func (c RiskClass) MarshalText() ([]byte, error) {
	if c < 0 || int(c) >= NumRiskClasses {
		return nil, fmt.Errorf("invalid risk class %d", int(c))
	}
	return []byte(riskClassNames[c]), nil
}

// UnmarshalText decodes a class name.
func (c *RiskClass) UnmarshalText(text []byte) error {
	parsed, err := ParseRiskClass(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ClassVector holds one value per risk class. Being a fixed array, every
// class is always present.
type ClassVector [NumRiskClasses]float64

// Get returns the value for a class.
func (v ClassVector) Get(c RiskClass) float64 {
	return v[c]
}

// Total sums all four classes.
func (v ClassVector) Total() float64 {
	return floats.Sum(v[:])
}

// Add returns v + o.
func (v ClassVector) Add(o ClassVector) ClassVector {
	out := v
	floats.Add(out[:], o[:])
	return out
}

// Sub returns v - o.
func (v ClassVector) Sub(o ClassVector) ClassVector {
	out := v
	floats.Sub(out[:], o[:])
	return out
}

// Scale returns v * f.
func (v ClassVector) Scale(f float64) ClassVector {
	out := v
	floats.Scale(f, out[:])
	return out
}

// IsZero reports whether every entry is exactly zero.
func (v ClassVector) IsZero() bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// IsFinite reports whether every entry is a finite number.
func (v ClassVector) IsFinite() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the vector as an object keyed by class name.
func (v ClassVector) MarshalJSON() ([]byte, error) {
	m := make(map[string]float64, NumRiskClasses)
	for _, c := range AllRiskClasses {
		m[c.String()] = v[c]
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes an object keyed by class name. Missing classes are zero.
func (v *ClassVector) UnmarshalJSON(data []byte) error {
	var m map[string]float64
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	var out ClassVector
	for name, value := range m {
		c, err := ParseRiskClass(name)
		if err != nil {
			return err
		}
		out[c] = value
	}
	*v = out
	return nil
}
