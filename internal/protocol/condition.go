package protocol

import "strings"

// Op is a clause comparison.
type Op string

const (
	OpYes     Op = "yes"      // yes/no question answered yes
	OpNo      Op = "no"       // yes/no question answered no
	OpEquals  Op = "equals"   // multiple choice response equals Value
	OpAtLeast Op = "at_least" // numeric response >= Threshold
)

// Clause tests one response.
type Clause struct {
	Question  string  `json:"question"`
	Is        Op      `json:"is"`
	Value     string  `json:"value,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
}

// Condition is satisfied when any clause in Any holds, or every clause in
// All holds. Both empty means always satisfied (the default transition).
type Condition struct {
	Any []Clause `json:"any,omitempty"`
	All []Clause `json:"all,omitempty"`
}

// Holds evaluates the condition against recorded responses.
func (c Condition) Holds(responses map[string]any) bool {
	if len(c.Any) == 0 && len(c.All) == 0 {
		return true
	}
	for _, cl := range c.Any {
		if cl.holds(responses) {
			return true
		}
	}
	if len(c.All) == 0 {
		return false
	}
	for _, cl := range c.All {
		if !cl.holds(responses) {
			return false
		}
	}
	return true
}

func (cl Clause) holds(responses map[string]any) bool {
	v, ok := responses[cl.Question]
	if !ok {
		return false
	}
	switch cl.Is {
	case OpYes:
		return isYes(v)
	case OpNo:
		return isNo(v)
	case OpEquals:
		s, ok := v.(string)
		return ok && strings.EqualFold(s, cl.Value)
	case OpAtLeast:
		n, ok := asNumber(v)
		return ok && n >= cl.Threshold
	}
	return false
}

func isYes(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(t, "yes")
	}
	return false
}

func isNo(v any) bool {
	switch t := v.(type) {
	case bool:
		return !t
	case string:
		return strings.EqualFold(t, "no")
	}
	return false
}

func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	}
	return 0, false
}
