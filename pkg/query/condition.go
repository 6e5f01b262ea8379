// Package query holds the abstract query the adapter executes and the translator
// from its condition tree into MongoDB filter documents.
package query

import (
	"github.com/docmapper/mongoadapter/pkg/models"
	"github.com/docmapper/mongoadapter/pkg/resource"
)

// Operator is a comparison operator of a condition leaf.
type Operator string

const (
	OpEq     Operator = "eq"
	OpNe     Operator = "ne"
	OpLt     Operator = "lt"
	OpLte    Operator = "lte"
	OpGt     Operator = "gt"
	OpGte    Operator = "gte"
	OpIn     Operator = "in"
	OpNin    Operator = "nin"
	OpLike   Operator = "like"
	OpRegexp Operator = "regexp"
)

// Condition is a node of a boolean condition tree:
// a Comparison, an And, an Or or a Not.
type Condition interface {
	condition()
}

// Comparison compares a property against an operand.
type Comparison struct {
	Property *models.Property
	Operator Operator
	Value    any
}

// And holds when every child holds. An empty And matches everything.
type And []Condition

// Or holds when any child holds. An empty Or matches nothing.
type Or []Condition

// Not negates its child.
type Not struct {
	Condition Condition
}

func (Comparison) condition() {}
func (And) condition()        {}
func (Or) condition()         {}
func (Not) condition()        {}

// Range is an operand for OpIn covering the values from From to To.
// From is always included; To is included unless Exclusive is set.
type Range struct {
	From, To  any
	Exclusive bool
}

func Eq(p *models.Property, v any) Comparison  { return Comparison{p, OpEq, v} }
func Ne(p *models.Property, v any) Comparison  { return Comparison{p, OpNe, v} }
func Lt(p *models.Property, v any) Comparison  { return Comparison{p, OpLt, v} }
func Lte(p *models.Property, v any) Comparison { return Comparison{p, OpLte, v} }
func Gt(p *models.Property, v any) Comparison  { return Comparison{p, OpGt, v} }
func Gte(p *models.Property, v any) Comparison { return Comparison{p, OpGte, v} }

// In matches values contained in vs, which must be a slice, an array or a Range.
func In(p *models.Property, vs any) Comparison { return Comparison{p, OpIn, vs} }

// Nin matches values not contained in vs.
func Nin(p *models.Property, vs any) Comparison { return Comparison{p, OpNin, vs} }

// Like matches a SQL LIKE pattern: % matches any run of characters, _ a single one.
func Like(p *models.Property, pattern string) Comparison { return Comparison{p, OpLike, pattern} }

// Regexp matches a regular expression given as a string, a *regexp.Regexp or a primitive.Regex.
func Regexp(p *models.Property, re any) Comparison { return Comparison{p, OpRegexp, re} }

// Negate returns the negation of c.
func Negate(c Condition) Not { return Not{Condition: c} }

// ForKey matches the resource identified by key.
func ForKey(key []resource.KeyValue) Condition {
	and := make(And, 0, len(key))
	for _, kv := range key {
		and = append(and, Eq(kv.Property, kv.Value))
	}
	return and
}
