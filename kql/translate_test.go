package kql

import (
	"errors"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/rysweet/yellowstone/parser"
	"github.com/rysweet/yellowstone/schema"
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
  Device:
    table: Devices
    properties:
      - name: hostname
        column: HostName
        type: string
        required: false
edges:
  KNOWS:
    from: User
    to: User
    join: Users.Id == Users.ManagerId
    strength: strong
    properties:
      - name: weight
        column: Cost
        type: float
        required: false
  WORKS_WITH:
    from: User
    to: User
    join: Users.Id == Users.TeamId
    strength: weak
    properties:
      - name: weight
        column: Cost
        type: float
        required: false
  OWNS:
    from: User
    to: Device
    join: Users.Id == Devices.OwnerId
    strength: strong
tables:
  Users:
    retention: 90d
    fields: [Id, DisplayName, Age, ManagerId, TeamId, Cost]
  Devices:
    retention: 30d
    fields: [DeviceId, HostName, OwnerId]
    identity: DeviceId
`

func testMapping(t *testing.T) *schema.Mapping {
	t.Helper()
	m, err := schema.Parse([]byte(testSchema))
	assert.NoError(t, err)
	return m
}

func translate(t *testing.T, query string, opts Options) (*Result, error) {
	t.Helper()
	q, err := parser.Parse(query)
	assert.NoError(t, err)
	return Translate(q, testMapping(t), opts)
}

func mustTranslate(t *testing.T, query string) *Result {
	t.Helper()
	result, err := translate(t, query, Options{})
	assert.NoError(t, err)
	return result
}

func TestTranslateSimpleMatch(t *testing.T) {
	result := mustTranslate(t, "MATCH (u:User)-[:KNOWS]->(v:User) WHERE u.age > 30 RETURN u.name, v.name")

	expected := "Users\n" +
		"| make-graph Id --> Id\n" +
		"| graph-match (u:User)-[:KNOWS]->(v:User)\n" +
		"  where u.Age > 30\n" +
		"  project u_name = u.DisplayName, v_name = v.DisplayName"
	assert.Equal(t, expected, result.Query)
	assert.Equal(t, StrategyGraphMatch, result.Strategy)
	assert.Equal(t, 1.0, result.Confidence)
	assert.Equal(t, 0, len(result.Warnings))
}

func TestTranslatePreservesVariableLengthBound(t *testing.T) {
	result := mustTranslate(t, "MATCH (u:User)-[:KNOWS*1..3]->(v:User) RETURN v.name")

	// The source bound survives verbatim: never widened, never clamped.
	assert.True(t, strings.Contains(result.Query, "-[:KNOWS*1..3]->"))
	assert.False(t, strings.Contains(result.Query, "*1..8"))
}

func TestTranslateUnknownRelationshipFails(t *testing.T) {
	_, err := translate(t, "MATCH (u:User)-[:BEFRIENDS]->(v:User) RETURN v.name", Options{})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, schema.ErrResolution))
	assert.True(t, strings.Contains(err.Error(), "BEFRIENDS"))
}

func TestTranslateUnknownLabelFails(t *testing.T) {
	_, err := translate(t, "MATCH (u:Ghost) RETURN u", Options{})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, schema.ErrResolution))
}

func TestTranslateUnknownPropertyFails(t *testing.T) {
	_, err := translate(t, "MATCH (u:User) WHERE u.ghost = 1 RETURN u.name", Options{})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, schema.ErrResolution))
}

func TestTranslateStagesInFixedOrder(t *testing.T) {
	result := mustTranslate(t,
		"MATCH (u:User)-[:KNOWS]->(v:User) RETURN u.name, count(v) AS friends ORDER BY friends DESC LIMIT 10")

	expected := "Users\n" +
		"| make-graph Id --> Id\n" +
		"| graph-match (u:User)-[:KNOWS]->(v:User)\n" +
		"  project u_name = u.DisplayName, v\n" +
		"| summarize friends = count() by u_name\n" +
		"| sort by friends desc\n" +
		"| take 10"
	assert.Equal(t, expected, result.Query)
}

func TestTranslateDistinctAndSkip(t *testing.T) {
	result := mustTranslate(t, "MATCH (u:User) RETURN DISTINCT u.name ORDER BY u.name SKIP 5 LIMIT 10")

	stages := strings.Split(result.Query, "\n| ")
	assert.Equal(t, []string{
		"Users",
		"make-graph Id --> Id",
		"graph-match (u:User)\n  project u_name = u.DisplayName",
		"distinct *",
		"sort by u_name asc",
		"serialize _rn = row_number()",
		"where _rn > 5",
		"project-away _rn",
		"take 10",
	}, stages)
}

func TestTranslateInlineProperties(t *testing.T) {
	result := mustTranslate(t, "MATCH (u:User {name: 'Alice', age: 30}) RETURN u.id")

	assert.True(t, strings.Contains(result.Query,
		`graph-match (u:User {DisplayName: "Alice", Age: 30})`))
}

func TestTranslateOrderByFunctionNameCaseInsensitive(t *testing.T) {
	result := mustTranslate(t, "MATCH (u:User) RETURN u.name, COUNT(u) ORDER BY count(u) DESC LIMIT 5")
	assert.True(t, strings.Contains(result.Query, "| sort by count_u desc"))
}

func TestConjoinGroupsTopLevelOr(t *testing.T) {
	// A disjunction joined into a conjunction must keep its grouping.
	assert.Equal(t, "(a.X == 1 or b.X == 2) and c.Y == 3",
		conjoin([]string{"a.X == 1 or b.X == 2", "c.Y == 3"}))

	assert.Equal(t, "a.X == 1 and b.X == 2",
		conjoin([]string{"a.X == 1", "b.X == 2"}))

	// Already-grouped disjunctions and `or` inside string literals stay
	// verbatim.
	assert.Equal(t, `((a.X == 1) or (a.X == 2)) and b.Name == "x or y"`,
		conjoin([]string{"((a.X == 1) or (a.X == 2))", `b.Name == "x or y"`}))

	// A sole operand needs no grouping.
	assert.Equal(t, "a.X == 1 or b.X == 2",
		conjoin([]string{"a.X == 1 or b.X == 2"}))
}

func TestTranslateMultiByteLiteralPassesThrough(t *testing.T) {
	result := mustTranslate(t, "MATCH (u:User) WHERE u.name = 'café' RETURN u.name")
	assert.True(t, strings.Contains(result.Query, `u.DisplayName == "café"`))
}

func TestTranslateFilterOperators(t *testing.T) {
	tests := []struct {
		name     string
		where    string
		expected string
	}{
		{"equal", "u.name = 'x'", `u.DisplayName == "x"`},
		{"not equal", "u.name <> 'x'", `u.DisplayName != "x"`},
		{"less", "u.age < 5", "u.Age < 5"},
		{"greater equal", "u.age >= 5", "u.Age >= 5"},
		{"contains", "u.name CONTAINS 'x'", `u.DisplayName contains "x"`},
		{"starts with", "u.name STARTS WITH 'x'", `u.DisplayName startswith "x"`},
		{"ends with", "u.name ENDS WITH 'x'", `u.DisplayName endswith "x"`},
		{"in list", "u.name IN ['a', 'b']", `u.DisplayName in ("a", "b")`},
		{"is null", "u.name IS NULL", "isnull(u.DisplayName)"},
		{"is not null", "u.name IS NOT NULL", "isnotnull(u.DisplayName)"},
		{"scalar function", "toLower(u.name) = 'x'", `tolower(u.DisplayName) == "x"`},
		{"not", "NOT u.age > 5", "not (u.Age > 5)"},
		{
			"grouping survives",
			"u.age > 5 AND (u.name = 'a' OR u.name = 'b')",
			`u.Age > 5 and (u.DisplayName == "a" or u.DisplayName == "b")`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := mustTranslate(t, "MATCH (u:User) WHERE "+tt.where+" RETURN u.id")
			assert.True(t, strings.Contains(result.Query, "  where "+tt.expected+"\n"),
				"query %q must contain filter %q", result.Query, tt.expected)
		})
	}
}

func TestTranslateUnknownFunctionFails(t *testing.T) {
	_, err := translate(t, "MATCH (u:User) WHERE frobnicate(u.name) = 'x' RETURN u.id", Options{})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedConstruct))
}

func TestTranslateAggregateInFilterFails(t *testing.T) {
	_, err := translate(t, "MATCH (u:User) WHERE count(u) > 5 RETURN u.id", Options{})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedConstruct))
}

func TestTranslateUnboundVariableFails(t *testing.T) {
	_, err := translate(t, "MATCH (u:User) WHERE x.name = 'a' RETURN u.id", Options{})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, schema.ErrResolution))
}

func TestTranslateOrderByUnreturnedExpressionFails(t *testing.T) {
	_, err := translate(t, "MATCH (u:User) RETURN u.name ORDER BY u.age", Options{})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedConstruct))
}

func TestTranslateCountOnly(t *testing.T) {
	result := mustTranslate(t, "MATCH (u:User) RETURN count(u)")

	assert.True(t, strings.Contains(result.Query, "  project u\n"))
	assert.True(t, strings.Contains(result.Query, "| summarize count_u = count()"))
}

func TestTranslateCountStar(t *testing.T) {
	result := mustTranslate(t, "MATCH (u:User) RETURN count(*)")

	assert.True(t, strings.Contains(result.Query, "  project one = 1\n"))
	assert.True(t, strings.Contains(result.Query, "| summarize count_all = count()"))
}

func TestTranslateAggregateWithArgument(t *testing.T) {
	result := mustTranslate(t, "MATCH (u:User) RETURN u.name, avg(u.age) AS mean_age")

	assert.True(t, strings.Contains(result.Query,
		"  project u_name = u.DisplayName, u_age = u.Age\n"))
	assert.True(t, strings.Contains(result.Query,
		"| summarize mean_age = avg(u_age) by u_name"))
}

func TestTranslateUnboundedDepthPolicy(t *testing.T) {
	query := "MATCH (u:User)-[:KNOWS*1..]->(v:User) RETURN v.name"

	_, err := translate(t, query, Options{})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedConstruct))

	result, err := translate(t, query, Options{AllowUnboundedTraversal: true})
	assert.NoError(t, err)
	assert.True(t, strings.Contains(result.Query, "-[:KNOWS*1..]->"))
	assert.Equal(t, 1, len(result.Warnings))
	assert.Equal(t, WarnUnboundedDepth, result.Warnings[0].Code)
}

func TestTranslateDepthCeiling(t *testing.T) {
	_, err := translate(t, "MATCH (u:User)-[:KNOWS*1..9]->(v:User) RETURN v.name", Options{})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedConstruct))

	// A higher configured ceiling admits the same query.
	result, err := translate(t, "MATCH (u:User)-[:KNOWS*1..9]->(v:User) RETURN v.name",
		Options{MaxTraversalDepth: 12})
	assert.NoError(t, err)
	assert.True(t, strings.Contains(result.Query, "*1..9"))
}

func TestTranslateMultiTablePolicy(t *testing.T) {
	query := "MATCH (u:User)-[:OWNS]->(d:Device) RETURN u.name, d.hostname"

	_, err := translate(t, query, Options{})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedConstruct))

	result, err := translate(t, query, Options{AllowMultiTablePatterns: true})
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.Query, "Users\n| make-graph Id --> Id"))

	found := false
	for _, w := range result.Warnings {
		if w.Code == WarnMultiTablePattern {
			found = true
		}
	}
	assert.True(t, found)
}

func TestTranslateOptionalMatchWarns(t *testing.T) {
	result := mustTranslate(t, "MATCH (u:User) OPTIONAL MATCH (u)-[:KNOWS]->(v:User) RETURN u.name")

	assert.Equal(t, 1, len(result.Warnings))
	assert.Equal(t, WarnOptionalMatch, result.Warnings[0].Code)
	assert.True(t, result.Confidence < 1.0)
}

func TestTranslateConflictingBindingFails(t *testing.T) {
	_, err := translate(t, "MATCH (x:User) OPTIONAL MATCH (x:Device) RETURN x", Options{})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedConstruct))
}

func TestTranslateShortestPath(t *testing.T) {
	result := mustTranslate(t,
		"MATCH p = shortestPath((a:User)-[:KNOWS*1..4]->(b:User)) WHERE b.name = 'Bob' RETURN p")

	expected := "Users\n" +
		"| make-graph Id --> Id\n" +
		"| graph-shortest-paths output=any (a:User)-[e:KNOWS*1..4]->(b:User)\n" +
		"  where b.DisplayName == \"Bob\"\n" +
		"  project p"
	assert.Equal(t, expected, result.Query)
	assert.Equal(t, StrategyShortestPaths, result.Strategy)
}

func TestTranslateAllShortestPaths(t *testing.T) {
	result := mustTranslate(t,
		"MATCH allShortestPaths((a:User)-[:KNOWS]->(b:User)) RETURN a.name, b.name")

	assert.True(t, strings.Contains(result.Query, "graph-shortest-paths output=all "))
}

func TestTranslatePathFunctionMixedWithPatternsFails(t *testing.T) {
	_, err := translate(t,
		"MATCH shortestPath((a:User)-[:KNOWS]->(b:User)), (c:User) RETURN a", Options{})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedConstruct))
}

func TestConfidenceIsMonotoneDecreasing(t *testing.T) {
	simple := mustTranslate(t, "MATCH (u:User) RETURN u.name")
	twoHops := mustTranslate(t, "MATCH (a:User)-[:KNOWS]->(b:User)-[:KNOWS]->(c:User) RETURN a.name")
	varLen := mustTranslate(t, "MATCH (a:User)-[:KNOWS*1..3]->(b:User) RETURN a.name")
	aggregated := mustTranslate(t, "MATCH (u:User) RETURN count(u)")
	optional := mustTranslate(t, "MATCH (u:User) OPTIONAL MATCH (u)-[:KNOWS]->(v:User) RETURN u.name")

	assert.Equal(t, 1.0, simple.Confidence)
	assert.True(t, twoHops.Confidence < simple.Confidence)
	assert.True(t, varLen.Confidence < simple.Confidence)
	assert.True(t, aggregated.Confidence < simple.Confidence)
	assert.True(t, optional.Confidence < simple.Confidence)
}

func TestConfidenceNeverBelowFloor(t *testing.T) {
	t.Parallel()

	// Pile up every penalty at once.
	result, err := translate(t,
		"MATCH (a:User)-[:KNOWS*1..3]->(b:User)-[:KNOWS*1..3]->(c:User)-[:KNOWS*1..3]->(d:User)-[:KNOWS*1..3]->(e:User)-[:KNOWS*1..3]->(f:User)-[:KNOWS*1..3]->(g:User)-[:KNOWS*1..3]->(h:User) "+
			"OPTIONAL MATCH (a)-[:KNOWS]->(z:User) RETURN count(a)", Options{})
	assert.NoError(t, err)
	assert.True(t, result.Confidence >= 0.1)
	assert.True(t, result.Confidence <= 1.0)
}

func TestTranslateIsDeterministic(t *testing.T) {
	query := "MATCH (u:User)-[:KNOWS*1..3]->(v:User) WHERE u.age > 30 AND v.name CONTAINS 'a' " +
		"RETURN DISTINCT u.name, v.name ORDER BY u.name DESC SKIP 2 LIMIT 7"

	first := mustTranslate(t, query)
	for range 5 {
		assert.Equal(t, first.Query, mustTranslate(t, query).Query)
	}
}

func TestTranslateOutputIsBalanced(t *testing.T) {
	queries := []string{
		"MATCH (u:User) RETURN u.name",
		"MATCH (u:User {name: 'a(b'}) RETURN u.name",
		"MATCH (u:User)-[:KNOWS*2..4]->(v:User) WHERE u.name IN ['x', 'y'] RETURN count(v)",
		"MATCH p = shortestPath((a:User)-[:KNOWS*1..4]->(b:User)) RETURN p",
	}

	for _, query := range queries {
		result := mustTranslate(t, query)
		assert.NoError(t, checkBalanced(result.Query))
	}
}

func TestTranslateMissingClausesFail(t *testing.T) {
	m := testMapping(t)

	_, err := Translate(nil, m, Options{})
	assert.Error(t, err)

	q, err := parser.Parse("MATCH (u:User) RETURN u")
	assert.NoError(t, err)
	q.Return = nil
	_, err = Translate(q, m, Options{})
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnsupportedConstruct))
}
