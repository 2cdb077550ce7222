package kql

import (
	"fmt"
	"strings"

	"github.com/rysweet/yellowstone/parser"
)

// fragments is the input to stage assembly: the graph preamble, the
// pattern-matching operator and its body, and the projected output.
type fragments struct {
	Preamble  string
	Operator  string // "graph-match" or "graph-shortest-paths output=..."
	Pattern   string
	Filter    string // boolean expression, empty when there is no filter
	Proj      *projection
	TakeLimit int // enumeration cap, 0 when none applies
}

// assemble joins the stages in their fixed order: graph construction,
// pattern matching (with its embedded where and project), summarize,
// distinct, sort, skip emulation, row limit. The assembled text is then
// structurally validated before it is returned.
func (t *translator) assemble(f fragments) (string, error) {
	var block strings.Builder
	block.WriteString(f.Operator)
	block.WriteByte(' ')
	block.WriteString(f.Pattern)
	if f.Filter != "" {
		block.WriteString("\n  where ")
		block.WriteString(f.Filter)
	}

	columns := make([]string, 0, len(f.Proj.ProjectColumns))
	for _, col := range f.Proj.ProjectColumns {
		if col.Name == col.Expr {
			columns = append(columns, col.Name)
		} else {
			columns = append(columns, col.Name+" = "+col.Expr)
		}
	}
	block.WriteString("\n  project ")
	block.WriteString(strings.Join(columns, ", "))

	stages := []string{f.Preamble, block.String()}

	if f.Proj.Summarize != "" {
		stages = append(stages, f.Proj.Summarize)
	}
	if f.Proj.Distinct {
		stages = append(stages, "distinct *")
	}
	if len(f.Proj.SortKeys) > 0 {
		stages = append(stages, "sort by "+strings.Join(f.Proj.SortKeys, ", "))
	}
	if f.Proj.Skip != nil {
		// No native row-offset operator exists; number the rows and drop
		// the prefix.
		stages = append(stages,
			"serialize _rn = row_number()",
			fmt.Sprintf("where _rn > %d", *f.Proj.Skip),
			"project-away _rn")
	}
	if f.Proj.Limit != nil {
		stages = append(stages, fmt.Sprintf("take %d", *f.Proj.Limit))
	}
	if f.Proj.Limit == nil && f.TakeLimit > 0 {
		stages = append(stages, fmt.Sprintf("take %d", f.TakeLimit))
	}

	output := strings.Join(stages, "\n| ")

	if err := t.validateAssembly(output); err != nil {
		return "", err
	}
	return output, nil
}

// validateAssembly is the final structural gate: balanced delimiters and a
// re-check of every physical table and column reference against the
// mapping. A failure here is a translator bug surfacing before the text
// reaches a backend.
func (t *translator) validateAssembly(output string) error {
	if strings.TrimSpace(output) == "" {
		return fmt.Errorf("%w: empty output", ErrAssemblyValidation)
	}
	if err := checkBalanced(output); err != nil {
		return err
	}

	for _, table := range t.tables {
		if _, err := t.mapping.TableMetadata(table); err != nil {
			return fmt.Errorf("%w: output references unknown table %q", ErrAssemblyValidation, table)
		}
	}
	for _, ref := range t.emitted {
		if !t.mapping.HasColumn(ref.Table, ref.Column) {
			return fmt.Errorf("%w: output references column %q not present in table %q",
				ErrAssemblyValidation, ref.Column, ref.Table)
		}
	}
	return nil
}

// checkBalanced verifies parentheses, brackets and braces pair up outside
// string literals.
func checkBalanced(s string) error {
	var stack []rune
	inString := false
	escaped := false

	for _, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}

		switch r {
		case '"':
			inString = true
		case '(', '[', '{':
			stack = append(stack, r)
		case ')', ']', '}':
			if len(stack) == 0 {
				return fmt.Errorf("%w: unmatched %q", ErrAssemblyValidation, r)
			}
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			ok := (open == '(' && r == ')') || (open == '[' && r == ']') || (open == '{' && r == '}')
			if !ok {
				return fmt.Errorf("%w: mismatched %q closed by %q", ErrAssemblyValidation, open, r)
			}
		}
	}

	if inString {
		return fmt.Errorf("%w: unterminated string literal", ErrAssemblyValidation)
	}
	if len(stack) > 0 {
		return fmt.Errorf("%w: unclosed %q", ErrAssemblyValidation, stack[len(stack)-1])
	}
	return nil
}

// Confidence penalties. The score starts at 1.0 and loses a fixed amount
// per feature whose translation is approximate or costly:
//
//	0.05 per fixed hop beyond the first
//	0.10 per variable-length segment
//	0.05 when the query aggregates
//	0.10 when an OPTIONAL MATCH was translated with inner semantics
//	0.10 when a multi-table pattern was reduced to its primary table
//
// The result is clamped to [0.1, 1.0]. Adding any feature never raises
// the score.
const (
	penaltyPerExtraHop   = 0.05
	penaltyPerVarLength  = 0.10
	penaltyAggregation   = 0.05
	penaltyOptionalMatch = 0.10
	penaltyMultiTable    = 0.10

	confidenceFloor = 0.1
)

func (t *translator) confidence(c parser.Complexity) float64 {
	score := 1.0

	if c.Hops > 1 {
		score -= penaltyPerExtraHop * float64(c.Hops-1)
	}
	score -= penaltyPerVarLength * float64(c.VariableLengthHops)
	if c.HasAggregation {
		score -= penaltyAggregation
	}
	if c.HasOptionalMatch {
		score -= penaltyOptionalMatch
	}
	for _, w := range t.warnings {
		if w.Code == WarnMultiTablePattern {
			score -= penaltyMultiTable
			break
		}
	}

	if score < confidenceFloor {
		return confidenceFloor
	}
	return score
}
