package resolution

import (
	"fmt"
	"hash/fnv"

	"github.com/dom/cardclash/internal/domain"
)

// AttributeSum is the canonical policy. The card with the larger
// str+dex+int total wins. Ties are broken, in order, by the archetype
// triangle, the shared primary attribute, str, dex, int, and finally a coin
// flip seeded from both card ids so replays agree.
type AttributeSum struct{}

func (AttributeSum) Name() string { return PolicyAttributeSum }

func (AttributeSum) Resolve(a, b domain.Card) Outcome {
	o := &outcome{a: a, b: b}

	sumA, sumB := a.Attributes.Sum(), b.Attributes.Sum()
	o.record("sum", sumA, sumB)
	if w := compare(sumA, sumB); w != Draw {
		return o.finish(w, fmt.Sprintf("on total attributes (%d vs %d)", sumA, sumB))
	}

	if a.Archetype != b.Archetype {
		switch {
		case a.Archetype.Beats(b.Archetype):
			o.record("archetype", 1, 0)
			return o.finish(WinnerA, fmt.Sprintf("on a %d-%d tie: %s counters %s", sumA, sumB, a.Archetype, b.Archetype))
		case b.Archetype.Beats(a.Archetype):
			o.record("archetype", 0, 1)
			return o.finish(WinnerB, fmt.Sprintf("on a %d-%d tie: %s counters %s", sumA, sumB, b.Archetype, a.Archetype))
		}
	}

	primA, primB := a.Archetype.Primary(a.Attributes), b.Archetype.Primary(b.Attributes)
	o.record("primary", primA, primB)
	if w := compare(primA, primB); w != Draw {
		return o.finish(w, fmt.Sprintf("on a %d-%d tie by higher %s primary attribute (%d vs %d)", sumA, sumB, a.Archetype, primA, primB))
	}

	for _, attr := range []struct {
		name string
		a, b int
	}{
		{"str", a.Attributes.Str, b.Attributes.Str},
		{"dex", a.Attributes.Dex, b.Attributes.Dex},
		{"int", a.Attributes.Int, b.Attributes.Int},
	} {
		o.record(attr.name, attr.a, attr.b)
		if w := compare(attr.a, attr.b); w != Draw {
			return o.finish(w, fmt.Sprintf("on a %d-%d tie by higher %s (%d vs %d)", sumA, sumB, attr.name, attr.a, attr.b))
		}
	}

	w := coinFlip(a, b)
	if w == Draw {
		return o.finish(Draw, "with identical cards")
	}
	if w == WinnerA {
		o.record("coin_flip", 1, 0)
	} else {
		o.record("coin_flip", 0, 1)
	}
	return o.finish(w, "on a coin flip between identical attributes")
}

// coinFlip hashes both ids in a fixed order, so swapping a and b still
// picks the same card.
func coinFlip(a, b domain.Card) Winner {
	if a.ID == b.ID {
		return Draw
	}
	lo, hi := a.ID, b.ID
	if lo.String() > hi.String() {
		lo, hi = hi, lo
	}
	h := fnv.New64a()
	h.Write(lo[:])
	h.Write(hi[:])
	pick := lo
	if h.Sum64()%2 == 1 {
		pick = hi
	}
	if pick == a.ID {
		return WinnerA
	}
	return WinnerB
}
