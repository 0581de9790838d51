// Package condition implements the logic.condition node: it evaluates one or
// more rules against the run data and selects the "true" or "false" output.
package condition

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dukex/stageflow/pkg/automation"
	"github.com/dukex/stageflow/pkg/models"
	"github.com/dukex/stageflow/pkg/nodes"
	"github.com/dukex/stageflow/pkg/template"
)

const (
	BranchTrue  = "true"
	BranchFalse = "false"

	MatchAll = "all"
	MatchAny = "any"
)

// Operators.
const (
	OpEquals      = "equals"
	OpNotEquals   = "not_equals"
	OpContains    = "contains"
	OpNotContains = "not_contains"
	OpEmpty       = "empty"
	OpNotEmpty    = "not_empty"
	OpGreater     = "gt"
	OpGreaterEq   = "gte"
	OpLess        = "lt"
	OpLessEq      = "lte"
	OpIn          = "in"
)

var ErrNoRules = errors.New("condition requires a field or a list of rules")

// Rule compares the value found at Field with Value.
type Rule struct {
	Field    string
	Operator string
	Value    any
}

type Node struct{}

func New() *Node {
	return &Node{}
}

// Run evaluates the configured rules. Fields are looked up in the template
// vocabulary first (contact.name, input.status...) and then as raw input keys.
func (n *Node) Run(_ context.Context, actx *automation.Context, config, input map[string]any) (models.NodeResult, error) {
	rules, match, err := parseRules(config)
	if err != nil {
		return models.NodeResult{}, err
	}

	data := actx.TemplateData(input)
	evaluated := make([]any, 0, len(rules))
	matched := match == MatchAll

	for _, rule := range rules {
		actual := lookup(rule.Field, data, input)
		expected := rule.Value

		if s, ok := expected.(string); ok {
			expected = template.Render(s, data)
		}

		ok, err := evaluate(rule.Operator, actual, expected)
		if err != nil {
			return models.NodeResult{}, err
		}

		evaluated = append(evaluated, map[string]any{
			"field":    rule.Field,
			"operator": rule.Operator,
			"expected": expected,
			"actual":   actual,
			"result":   ok,
		})

		if match == MatchAll {
			matched = matched && ok
		} else {
			matched = matched || ok
		}
	}

	branch := BranchFalse
	if matched {
		branch = BranchTrue
	}

	return models.Succeeded(map[string]any{
		"branch":    branch,
		"matched":   matched,
		"evaluated": evaluated,
	}), nil
}

func parseRules(config map[string]any) ([]Rule, string, error) {
	match := strings.ToLower(nodes.StringOr(config, "match", MatchAll))
	if match != MatchAll && match != MatchAny {
		return nil, "", fmt.Errorf("invalid match mode %q", match)
	}

	if raw, ok := config["rules"].([]any); ok && len(raw) > 0 {
		rules := make([]Rule, 0, len(raw))

		for i, item := range raw {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, "", fmt.Errorf("rule %d is not an object", i)
			}

			rule, err := parseRule(m)
			if err != nil {
				return nil, "", fmt.Errorf("rule %d: %w", i, err)
			}

			rules = append(rules, rule)
		}

		return rules, match, nil
	}

	if nodes.String(config, "field") == "" {
		return nil, "", ErrNoRules
	}

	rule, err := parseRule(config)
	if err != nil {
		return nil, "", err
	}

	return []Rule{rule}, MatchAll, nil
}

func parseRule(m map[string]any) (Rule, error) {
	rule := Rule{
		Field:    strings.TrimSpace(nodes.String(m, "field")),
		Operator: strings.ToLower(nodes.StringOr(m, "operator", OpEquals)),
		Value:    m["value"],
	}

	if rule.Field == "" {
		return Rule{}, errors.New("missing field")
	}

	switch rule.Operator {
	case OpEquals, OpNotEquals, OpContains, OpNotContains, OpEmpty, OpNotEmpty,
		OpGreater, OpGreaterEq, OpLess, OpLessEq, OpIn:
		return rule, nil
	default:
		return Rule{}, fmt.Errorf("unknown operator %q", rule.Operator)
	}
}

func lookup(field string, data map[string]string, input map[string]any) string {
	field = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(field), "{{"), "}}"))

	if v, ok := data[field]; ok {
		return v
	}

	if v, ok := input[field]; ok && v != nil {
		return fmt.Sprint(v)
	}

	return ""
}

func evaluate(operator, actual string, expected any) (bool, error) {
	want := toString(expected)

	switch operator {
	case OpEquals:
		return equal(actual, want), nil
	case OpNotEquals:
		return !equal(actual, want), nil
	case OpContains:
		return strings.Contains(strings.ToLower(actual), strings.ToLower(want)), nil
	case OpNotContains:
		return !strings.Contains(strings.ToLower(actual), strings.ToLower(want)), nil
	case OpEmpty:
		return strings.TrimSpace(actual) == "", nil
	case OpNotEmpty:
		return strings.TrimSpace(actual) != "", nil
	case OpGreater, OpGreaterEq, OpLess, OpLessEq:
		return compare(operator, actual, want), nil
	case OpIn:
		for _, candidate := range toList(expected) {
			if equal(actual, candidate) {
				return true, nil
			}
		}

		return false, nil
	default:
		return false, fmt.Errorf("unknown operator %q", operator)
	}
}

// equal compares numerically when both sides are numbers, textually otherwise.
func equal(a, b string) bool {
	fa, errA := strconv.ParseFloat(strings.TrimSpace(a), 64)
	fb, errB := strconv.ParseFloat(strings.TrimSpace(b), 64)

	if errA == nil && errB == nil {
		return fa == fb
	}

	return strings.TrimSpace(a) == strings.TrimSpace(b)
}

// compare is false when either side is not a number.
func compare(operator, a, b string) bool {
	fa, errA := strconv.ParseFloat(strings.TrimSpace(a), 64)
	fb, errB := strconv.ParseFloat(strings.TrimSpace(b), 64)

	if errA != nil || errB != nil {
		return false
	}

	switch operator {
	case OpGreater:
		return fa > fb
	case OpGreaterEq:
		return fa >= fb
	case OpLess:
		return fa < fb
	default:
		return fa <= fb
	}
}

func toString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

// toList accepts a JSON array or a comma separated string.
func toList(v any) []string {
	switch val := v.(type) {
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, toString(item))
		}

		return out
	case []string:
		return val
	case string:
		parts := strings.Split(val, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		return parts
	default:
		return nil
	}
}
