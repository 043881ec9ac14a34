package policy

import (
	"strconv"
	"strings"
)

// Decision is the outcome of evaluating a subject against the policy set.
type Decision string

const (
	DecisionAllow      Decision = "allow"
	DecisionDeny       Decision = "deny"
	DecisionQuarantine Decision = "quarantine"
	DecisionLog        Decision = "log"
)

// Context carries the attributes a condition can match against.
type Context map[string]string

// Condition is a typed predicate over an evaluation context. Conditions are
// evaluated directly; rule logic is never an interpreted string.
type Condition interface {
	Matches(ctx Context) bool
}

type Equals struct {
	Key   string
	Value string
}

func (c Equals) Matches(ctx Context) bool {
	return ctx[c.Key] == c.Value
}

type NotEquals struct {
	Key   string
	Value string
}

func (c NotEquals) Matches(ctx Context) bool {
	return ctx[c.Key] != c.Value
}

type Contains struct {
	Key       string
	Substring string
}

func (c Contains) Matches(ctx Context) bool {
	return strings.Contains(ctx[c.Key], c.Substring)
}

type HasPrefix struct {
	Key    string
	Prefix string
}

func (c HasPrefix) Matches(ctx Context) bool {
	return strings.HasPrefix(ctx[c.Key], c.Prefix)
}

// GreaterThan compares lexically unless both sides parse as integers.
type GreaterThan struct {
	Key   string
	Value string
}

func (c GreaterThan) Matches(ctx Context) bool {
	got, ok := ctx[c.Key]
	if !ok {
		return false
	}
	return compare(got, c.Value) > 0
}

type LessThan struct {
	Key   string
	Value string
}

func (c LessThan) Matches(ctx Context) bool {
	got, ok := ctx[c.Key]
	if !ok {
		return false
	}
	return compare(got, c.Value) < 0
}

type In struct {
	Key    string
	Values []string
}

func (c In) Matches(ctx Context) bool {
	got := ctx[c.Key]
	for _, v := range c.Values {
		if got == v {
			return true
		}
	}
	return false
}

// Rule pairs an action with a condition list evaluated as a short-circuit
// AND. An empty condition list matches everything.
type Rule struct {
	Name       string
	Action     Decision
	Conditions []Condition
}

func (r Rule) Matches(ctx Context) bool {
	for _, c := range r.Conditions {
		if !c.Matches(ctx) {
			return false
		}
	}
	return true
}

// Policy groups rules under a priority. Higher priority policies are
// evaluated first; within a policy the first matching rule wins.
type Policy struct {
	ID       string
	Name     string
	Priority int
	Enabled  bool
	Rules    []Rule
}

func compare(a, b string) int {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	if aerr == nil && berr == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}
