package browser

import (
	"fmt"
	"strings"
)

// Strategy says how a SelectorSpec is matched against the DOM.
type Strategy int

const (
	// StrategyStructural matches a CSS query, usually data-testid based.
	StrategyStructural Strategy = iota
	// StrategyAccessibleName matches elements within a CSS scope whose
	// aria-label or visible text contains one of the alternatives.
	StrategyAccessibleName
)

func (s Strategy) String() string {
	if s == StrategyAccessibleName {
		return "name"
	}
	return "css"
}

// SelectorSpec is one candidate in an ordered resolution list.
type SelectorSpec struct {
	Strategy Strategy `json:"-"`
	Query    string   `json:"query"`
	Names    []string `json:"names,omitempty"`
}

// Structural builds a CSS based candidate.
func Structural(query string) SelectorSpec {
	return SelectorSpec{Strategy: StrategyStructural, Query: query}
}

// AccessibleName builds a candidate matching elements under scope by
// accessible name. Alternatives normally carry one entry per UI locale.
func AccessibleName(scope string, names ...string) SelectorSpec {
	return SelectorSpec{Strategy: StrategyAccessibleName, Query: scope, Names: names}
}

// Role is AccessibleName with the scope derived from an ARIA role, covering
// the native elements that carry it implicitly.
func Role(role string, names ...string) SelectorSpec {
	scope := fmt.Sprintf(`[role="%s"]`, role)
	switch role {
	case "button":
		scope = `button, [role="button"]`
	case "link":
		scope = `a[href], [role="link"]`
	case "textbox":
		scope = `input:not([type]), input[type="text"], textarea, [role="textbox"]`
	}
	return AccessibleName(scope, names...)
}

func (s SelectorSpec) String() string {
	if s.Strategy == StrategyAccessibleName {
		return fmt.Sprintf("%s{%s}[%s]", s.Strategy, s.Query, strings.Join(s.Names, "|"))
	}
	return fmt.Sprintf("%s{%s}", s.Strategy, s.Query)
}

// Candidates is an ordered list of SelectorSpecs; structural entries should
// come before name based ones.
type Candidates []SelectorSpec

// CSS turns plain queries into structural candidates.
func CSS(queries ...string) Candidates {
	out := make(Candidates, 0, len(queries))
	for _, q := range queries {
		out = append(out, Structural(q))
	}
	return out
}

// Then appends more candidates, returning a new list.
func (c Candidates) Then(more ...SelectorSpec) Candidates {
	out := make(Candidates, 0, len(c)+len(more))
	out = append(out, c...)
	return append(out, more...)
}

func (c Candidates) String() string {
	parts := make([]string, len(c))
	for i, s := range c {
		parts[i] = s.String()
	}
	return strings.Join(parts, ", ")
}

// Element is an opaque handle to a resolved node.
type Element struct {
	Handle string
	Spec   SelectorSpec
}
