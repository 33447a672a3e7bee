package resolution

import (
	"fmt"

	"github.com/dom/cardclash/internal/domain"
)

// TypeTriangle puts the archetype advantage first: a countering archetype
// wins outright, and only matching archetypes fall back to totals and then
// the primary attribute. Anything still level is a draw.
type TypeTriangle struct{}

func (TypeTriangle) Name() string { return PolicyTypeTriangle }

func (TypeTriangle) Resolve(a, b domain.Card) Outcome {
	o := &outcome{a: a, b: b}

	switch {
	case a.Archetype.Beats(b.Archetype):
		o.record("archetype", 1, 0)
		return o.finish(WinnerA, fmt.Sprintf("because %s counters %s", a.Archetype, b.Archetype))
	case b.Archetype.Beats(a.Archetype):
		o.record("archetype", 0, 1)
		return o.finish(WinnerB, fmt.Sprintf("because %s counters %s", b.Archetype, a.Archetype))
	}

	sumA, sumB := a.Attributes.Sum(), b.Attributes.Sum()
	o.record("sum", sumA, sumB)
	if w := compare(sumA, sumB); w != Draw {
		return o.finish(w, fmt.Sprintf("on total attributes (%d vs %d)", sumA, sumB))
	}

	primA, primB := a.Archetype.Primary(a.Attributes), b.Archetype.Primary(b.Attributes)
	o.record("primary", primA, primB)
	if w := compare(primA, primB); w != Draw {
		return o.finish(w, fmt.Sprintf("by higher primary attribute (%d vs %d)", primA, primB))
	}

	return o.finish(Draw, fmt.Sprintf("with equal totals (%d vs %d)", sumA, sumB))
}
