package linkage

import "sort"

// ProblemSet deduplicates Problems by (kind, source class, symbol)
// identity, applying the super-class-symbol downgrade spec §3 and
// §9 require: a symbol that was a SuperClassSymbol on first sighting
// still collapses with a later ordinary ClassSymbol reference once a
// problem has been materialized against it, since symbol.Symbol.Equal
// already ignores ViaSuper.
type ProblemSet struct {
	problems []Problem
	seen     map[string]struct{}
}

// NewProblemSet returns an empty set.
func NewProblemSet() *ProblemSet {
	return &ProblemSet{seen: make(map[string]struct{})}
}

// Add inserts p if no equal problem has been recorded yet. The stored
// symbol always has ViaSuper cleared per the downgrade rule.
func (s *ProblemSet) Add(p Problem) {
	p.Symbol = p.Symbol.AsOrdinaryClass()
	key := dedupKey(p)
	if _, ok := s.seen[key]; ok {
		return
	}
	s.seen[key] = struct{}{}
	s.problems = append(s.problems, p)
}

// Problems returns the deduplicated problems, sorted for stable
// reporting (spec §5, "Determinism": only iteration order is
// undefined internally, so callers that need a stable report sort).
func (s *ProblemSet) Problems() []Problem {
	out := make([]Problem, len(s.problems))
	copy(out, s.problems)
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceClass != out[j].SourceClass {
			return out[i].SourceClass < out[j].SourceClass
		}
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Symbol.String() < out[j].Symbol.String()
	})
	return out
}

// Len reports the number of deduplicated problems.
func (s *ProblemSet) Len() int {
	return len(s.problems)
}

func dedupKey(p Problem) string {
	sym := p.Symbol
	return p.SourceClass + "\x00" + p.Kind.String() + "\x00" + sym.String() + "\x00" +
		boolChar(sym.Interface)
}

func boolChar(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
