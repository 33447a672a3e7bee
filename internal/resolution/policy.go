// Package resolution decides the winner between two staked cards. Policies are
// pure: the same pair of cards always yields the same Outcome.
package resolution

import (
	"fmt"

	"github.com/dom/cardclash/internal/domain"
)

type Winner string

const (
	WinnerA Winner = "a"
	WinnerB Winner = "b"
	Draw    Winner = "draw"
)

// Step records one comparison made while resolving, in order.
type Step struct {
	Rule string `json:"rule"`
	A    int    `json:"a"`
	B    int    `json:"b"`
}

type Outcome struct {
	Winner      Winner `json:"winner"`
	ScoreA      int    `json:"scoreA"`
	ScoreB      int    `json:"scoreB"`
	Explanation string `json:"explanation"`
	Steps       []Step `json:"steps"`
}

// Policy is the rule the orchestrator resolves battles with.
type Policy interface {
	Name() string
	Resolve(a, b domain.Card) Outcome
}

const (
	PolicyAttributeSum = "attribute_sum"
	PolicyTypeTriangle = "type_triangle"
)

// ByName returns the policy registered under name.
func ByName(name string) (Policy, error) {
	switch name {
	case PolicyAttributeSum, "":
		return AttributeSum{}, nil
	case PolicyTypeTriangle:
		return TypeTriangle{}, nil
	}
	return nil, fmt.Errorf("unknown resolution policy %q", name)
}

// outcome is a small builder shared by the policies.
type outcome struct {
	a, b  domain.Card
	steps []Step
}

func (o *outcome) record(rule string, a, b int) {
	o.steps = append(o.steps, Step{Rule: rule, A: a, B: b})
}

func (o *outcome) finish(w Winner, reason string) Outcome {
	out := Outcome{
		Winner: w,
		ScoreA: o.a.Attributes.Sum(),
		ScoreB: o.b.Attributes.Sum(),
		Steps:  o.steps,
	}
	switch w {
	case WinnerA:
		out.Explanation = fmt.Sprintf("%s defeats %s %s", o.a.Name, o.b.Name, reason)
	case WinnerB:
		out.Explanation = fmt.Sprintf("%s defeats %s %s", o.b.Name, o.a.Name, reason)
	default:
		out.Explanation = fmt.Sprintf("%s and %s draw %s", o.a.Name, o.b.Name, reason)
	}
	return out
}

func compare(a, b int) Winner {
	switch {
	case a > b:
		return WinnerA
	case b > a:
		return WinnerB
	}
	return Draw
}
