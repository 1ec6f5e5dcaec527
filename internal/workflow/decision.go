package workflow

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/gasable/hub/pkg/models"
)

// evalCondition applies a DecisionRule's operator to a field's string value,
// returning the branch label ("true"/"false") the rule selects.
func evalCondition(rule *models.DecisionRule, value string) string {
	if rule == nil {
		return "true"
	}

	var matched bool
	switch rule.Operator {
	case models.OpContains:
		matched = strings.Contains(value, rule.Value)
	case models.OpEquals:
		matched = value == rule.Value
	case models.OpRegex:
		re, err := regexp.Compile(rule.Value)
		matched = err == nil && re.MatchString(value)
	case models.OpGreater:
		matched = compareNumeric(value, rule.Value, func(a, b float64) bool { return a > b })
	case models.OpLess:
		matched = compareNumeric(value, rule.Value, func(a, b float64) bool { return a < b })
	default:
		matched = false
	}

	if matched {
		return "true"
	}
	return "false"
}

func compareNumeric(value, threshold string, cmp func(a, b float64) bool) bool {
	a, err1 := strconv.ParseFloat(strings.TrimSpace(value), 64)
	b, err2 := strconv.ParseFloat(strings.TrimSpace(threshold), 64)
	if err1 != nil || err2 != nil {
		return false
	}
	return cmp(a, b)
}

// selectEdge picks the outgoing edge whose SourceHandle matches branch,
// falling back to the single unlabeled edge if there's exactly one.
func selectEdge(edges []models.WorkflowEdge, branch string) (models.WorkflowEdge, bool) {
	for _, e := range edges {
		if e.SourceHandle == branch {
			return e, true
		}
	}
	if len(edges) == 1 && edges[0].SourceHandle == "" {
		return edges[0], true
	}
	return models.WorkflowEdge{}, false
}
