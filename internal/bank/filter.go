package bank

import "github.com/joshuadr04/lms-sistema/internal/model"

// Attribute names a filterable question attribute.
type Attribute string

const (
	AttrSubject    Attribute = "subject"
	AttrYear       Attribute = "year"
	AttrDifficulty Attribute = "difficulty"
)

// Combinator joins the active predicates of a filter.
type Combinator int

const (
	// And keeps questions matching every active predicate ("strict").
	And Combinator = iota
	// Or keeps questions matching at least one active predicate ("flexible").
	Or
)

// Predicate is one membership test: the attribute's value must be in the
// selected set. A predicate with no selected values is inactive.
type Predicate struct {
	Attr   Attribute
	Values []string
}

func (p Predicate) active() bool { return len(p.Values) > 0 }

func (p Predicate) matches(v string) bool {
	for _, want := range p.Values {
		if v == want {
			return true
		}
	}
	return false
}

// Filter applies the predicates joined by the combinator and returns the
// matching questions in store order, plus warnings for predicates that
// could not be evaluated.
//
// With no active predicates, And returns the full set while Or returns
// nothing: a flexible match with no chosen values selects nothing rather
// than everything. A predicate over an attribute whose column is absent
// from the data is skipped with a warning instead of aborting the query.
func (b *Bank) Filter(preds []Predicate, c Combinator) ([]model.Question, []string) {
	type boundPred struct {
		pred Predicate
		get  func(model.Question) string
	}
	var active []boundPred
	var warnings []string

	for _, p := range preds {
		if !p.active() {
			continue
		}
		get := b.attrGetter(p.Attr)
		if get == nil {
			warnings = append(warnings, string(p.Attr))
			continue
		}
		active = append(active, boundPred{pred: p, get: get})
	}

	if len(active) == 0 {
		if c == Or {
			return nil, warnings
		}
		out := make([]model.Question, len(b.Questions))
		copy(out, b.Questions)
		return out, warnings
	}

	var out []model.Question
	for _, q := range b.Questions {
		keep := c == And
		for _, bp := range active {
			match := bp.pred.matches(bp.get(q))
			if c == And && !match {
				keep = false
				break
			}
			if c == Or && match {
				keep = true
				break
			}
		}
		if keep {
			out = append(out, q)
		}
	}
	return out, warnings
}
