package kql

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/rysweet/yellowstone/parser"
)

func TestCheckBalanced(t *testing.T) {
	tests := []struct {
		name  string
		input string
		ok    bool
	}{
		{"balanced", `graph-match (u:User {A: "x"})-[e*1..3]->(v)`, true},
		{"paren inside string", `where u.Name == "a(b"`, true},
		{"escaped quote", `where u.Name == "a\"b(" and true`, true},
		{"unclosed paren", "graph-match (u:User", false},
		{"unmatched close", "graph-match u:User)", false},
		{"crossed pairs", "([)]", false},
		{"unterminated string", `where u.Name == "abc`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkBalanced(tt.input)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.True(t, errors.Is(err, ErrAssemblyValidation))
			}
		})
	}
}

func TestValidateAssemblyRecheck(t *testing.T) {
	tr := newTranslator(testMapping(t), Options{})

	// References the translator actually recorded pass.
	tr.recordTable("Users")
	tr.recordColumn("Users", "DisplayName")
	assert.NoError(t, tr.validateAssembly("Users\n| take 1"))

	// A recorded reference the schema does not back fails closed.
	tr.recordColumn("Users", "Ghost")
	err := tr.validateAssembly("Users\n| take 1")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrAssemblyValidation))
}

func TestValidateAssemblyRejectsEmptyOutput(t *testing.T) {
	tr := newTranslator(testMapping(t), Options{})
	err := tr.validateAssembly("   \n ")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrAssemblyValidation))
}

func TestConfidenceFormula(t *testing.T) {
	tr := newTranslator(testMapping(t), Options{})

	assert.Equal(t, 1.0, tr.confidence(parser.Complexity{Hops: 1}))
	assert.Equal(t, 0.95, tr.confidence(parser.Complexity{Hops: 2}))
	assert.Equal(t, 0.90, tr.confidence(parser.Complexity{Hops: 1, VariableLengthHops: 1}))
	assert.Equal(t, 0.95, tr.confidence(parser.Complexity{Hops: 1, HasAggregation: true}))
	assert.Equal(t, 0.90, tr.confidence(parser.Complexity{Hops: 1, HasOptionalMatch: true}))

	// The multi-table warning applies its penalty once, not per warning.
	tr.warnf(WarnMultiTablePattern, "first")
	tr.warnf(WarnMultiTablePattern, "second")
	assert.Equal(t, 0.90, tr.confidence(parser.Complexity{Hops: 1}))
}

func TestConfidenceFloor(t *testing.T) {
	tr := newTranslator(testMapping(t), Options{})

	score := tr.confidence(parser.Complexity{
		Hops:               30,
		VariableLengthHops: 10,
		HasAggregation:     true,
		HasOptionalMatch:   true,
	})
	assert.Equal(t, 0.1, score)
}
