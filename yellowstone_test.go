package yellowstone

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/rysweet/yellowstone/kql"
	"github.com/rysweet/yellowstone/parser"
	"github.com/rysweet/yellowstone/schema"
	"github.com/rysweet/yellowstone/tokenizer"
)

const testSchema = `
nodes:
  User:
    table: Users
    properties:
      - name: id
        column: Id
        type: string
        required: true
      - name: name
        column: DisplayName
        type: string
        required: false
      - name: age
        column: Age
        type: int
        required: false
edges:
  KNOWS:
    from: User
    to: User
    join: Users.Id == Users.ManagerId
    strength: strong
tables:
  Users:
    retention: 90d
    fields: [Id, DisplayName, Age, ManagerId]
`

func testMapping(t *testing.T) *schema.Mapping {
	t.Helper()
	m, err := schema.Parse([]byte(testSchema))
	assert.NoError(t, err)
	return m
}

func TestTranslateEndToEnd(t *testing.T) {
	result, err := Translate(
		"MATCH (u:User)-[:KNOWS]->(v:User) WHERE u.age > 30 RETURN u.name, v.name",
		testMapping(t))
	assert.NoError(t, err)

	assert.True(t, strings.HasPrefix(result.Query, "Users\n| make-graph Id --> Id"))
	assert.Equal(t, kql.StrategyGraphMatch, result.Strategy)
	assert.Equal(t, 1.0, result.Confidence)
	assert.True(t, result.EstimatedCost > 1.0)
}

func TestTranslateErrorClasses(t *testing.T) {
	m := testMapping(t)

	tests := []struct {
		name     string
		query    string
		expected error
	}{
		{"lexical", "MATCH (u:User @) RETURN u", tokenizer.ErrUnexpectedCharacter},
		{"syntax", "MATCH (u:User RETURN u", parser.ErrSyntax},
		{"unsupported clause", "CREATE (u:User) RETURN u", parser.ErrUnsupportedClause},
		{"schema resolution", "MATCH (u:Ghost) RETURN u", schema.ErrResolution},
		{"unsupported construct", "MATCH (u:User)-[:KNOWS*1..]->(v:User) RETURN v.name", kql.ErrUnsupportedConstruct},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Translate(tt.query, m)
			assert.Error(t, err)
			assert.True(t, errors.Is(err, tt.expected))
		})
	}
}

func TestTranslateOptionsFlowThrough(t *testing.T) {
	m := testMapping(t)
	query := "MATCH (u:User)-[:KNOWS*1..]->(v:User) RETURN v.name"

	_, err := Translate(query, m)
	assert.Error(t, err)

	result, err := Translate(query, m, WithUnboundedTraversal())
	assert.NoError(t, err)
	assert.Equal(t, 1, len(result.Warnings))

	_, err = Translate("MATCH (u:User)-[:KNOWS*1..9]->(v:User) RETURN v.name", m,
		WithMaxTraversalDepth(12))
	assert.NoError(t, err)
}

func TestTranslateNestingOption(t *testing.T) {
	m := testMapping(t)

	var b strings.Builder
	b.WriteString("MATCH (u:User) WHERE ")
	for range 20 {
		b.WriteString("(")
	}
	b.WriteString("u.age > 1")
	for range 20 {
		b.WriteString(")")
	}
	b.WriteString(" RETURN u.name")

	_, err := Translate(b.String(), m, WithMaxNestingDepth(8))
	assert.Error(t, err)
	assert.True(t, errors.Is(err, parser.ErrNestingTooDeep))

	_, err = Translate(b.String(), m)
	assert.NoError(t, err)
}

func TestTranslatePathConstraintEntry(t *testing.T) {
	c := &parser.PathConstraint{
		Kind:              parser.PathShortest,
		Sources:           []parser.NodeRef{{Variable: "a", Label: "User"}},
		Targets:           []parser.NodeRef{{Variable: "b", Label: "User"}},
		RelationshipTypes: []string{"KNOWS"},
		Direction:         parser.DirectionOut,
		MinLength:         1,
		MaxLength:         4,
	}

	result, err := TranslatePath(c, testMapping(t))
	assert.NoError(t, err)
	assert.Equal(t, kql.StrategyShortestPaths, result.Strategy)
	assert.True(t, strings.Contains(result.Query, "graph-shortest-paths output=any"))
	assert.True(t, result.EstimatedCost > 1.0)
}

func TestEstimateCostIsMonotone(t *testing.T) {
	base := EstimateCost(parser.Complexity{Hops: 1})
	assert.True(t, EstimateCost(parser.Complexity{Hops: 2}) > base)
	assert.True(t, EstimateCost(parser.Complexity{Hops: 1, VariableLengthHops: 1}) > base)
	assert.True(t, EstimateCost(parser.Complexity{Hops: 1, UnboundedHops: 1}) > base)
	assert.True(t, EstimateCost(parser.Complexity{Hops: 1, HasAggregation: true}) > base)
	assert.True(t, EstimateCost(parser.Complexity{Hops: 1, HasPathFunction: true}) > base)
	assert.True(t, EstimateCost(parser.Complexity{Hops: 1, HasOptionalMatch: true}) > base)
}

// Concurrent translations against one store snapshot while the schema is
// reloaded underneath. Each translation must see a coherent schema and the
// output for a fixed input must never vary.
func TestConcurrentTranslationWithReload(t *testing.T) {
	store := schema.NewStore(testMapping(t))
	query := "MATCH (u:User)-[:KNOWS]->(v:User) WHERE u.age > 30 RETURN u.name"

	reference, err := Translate(query, store.Load())
	assert.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				result, err := Translate(query, store.Load())
				assert.NoError(t, err)
				assert.Equal(t, reference.Query, result.Query)
			}
		}()
	}

	for range 20 {
		assert.NoError(t, store.Reload([]byte(testSchema)))
	}
	wg.Wait()
}
