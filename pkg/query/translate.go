package query

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/docmapper/mongoadapter/pkg/constants"
	"github.com/docmapper/mongoadapter/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var operatorSymbols = map[Operator]string{
	OpNe:  "$ne",
	OpLt:  "$lt",
	OpLte: "$lte",
	OpGt:  "$gt",
	OpGte: "$gte",
	OpIn:  "$in",
	OpNin: "$nin",
}

// entry is one top-level clause of a filter under construction.
// A field entry with nil ops is an implicit equality on value.
type entry struct {
	key     string
	value   any
	ops     bson.D
	logical bool
}

func (e entry) operators() bson.D {
	if e.ops != nil {
		return e.ops
	}
	return bson.D{{Key: "$eq", Value: e.value}}
}

type filter []entry

func (f filter) render() bson.D {
	d := make(bson.D, 0, len(f))
	for _, e := range f {
		if !e.logical && e.ops != nil {
			d = append(d, bson.E{Key: e.key, Value: e.ops})
			continue
		}
		d = append(d, bson.E{Key: e.key, Value: e.value})
	}
	return d
}

// Translate converts a condition tree into a filter document.
// A nil condition translates to the empty filter, which matches every document.
func Translate(c Condition) (bson.D, error) {
	f, err := translate(c)
	if err != nil {
		return nil, err
	}
	return f.render(), nil
}

func translate(c Condition) (filter, error) {
	switch c := c.(type) {
	case nil:
		return filter{}, nil
	case Comparison:
		return comparison(c)
	case *Comparison:
		return comparison(*c)
	case And:
		return conjunction(c)
	case Or:
		return disjunction(c)
	case Not:
		return negation(c)
	case *Not:
		return negation(*c)
	}
	return nil, fmt.Errorf("%w: condition %T", constants.ErrUnsupportedOperator, c)
}

// conjunction merges its children by field. Clauses on the same field share one
// operator map; a clause that would overwrite an operator already present is kept
// under a top-level $and instead.
func conjunction(children And) (filter, error) {
	var (
		out    filter
		extras bson.A
	)
	index := map[string]int{}

	for _, child := range children {
		f, err := translate(child)
		if err != nil {
			return nil, err
		}
		for _, e := range f {
			if e.logical && e.key == "$and" {
				extras = append(extras, e.value.(bson.A)...)
				continue
			}
			i, seen := index[e.key]
			if !seen {
				index[e.key] = len(out)
				out = append(out, e)
				continue
			}
			if merged, ok := merge(out[i], e); ok {
				out[i] = merged
				continue
			}
			extras = append(extras, filter{e}.render())
		}
	}
	if len(extras) > 0 {
		out = append(out, entry{key: "$and", value: extras, logical: true})
	}
	return out, nil
}

func merge(a, b entry) (entry, bool) {
	if a.logical || b.logical {
		return entry{}, false
	}
	left, right := a.operators(), b.operators()
	for _, l := range left {
		for _, r := range right {
			if l.Key == r.Key {
				return entry{}, false
			}
		}
	}
	ops := make(bson.D, 0, len(left)+len(right))
	ops = append(ops, left...)
	ops = append(ops, right...)
	return entry{key: a.key, ops: ops}, true
}

func disjunction(children Or) (filter, error) {
	if len(children) == 0 {
		return nothing(), nil
	}
	branches := make(bson.A, 0, len(children))
	for _, child := range children {
		f, err := translate(child)
		if err != nil {
			return nil, err
		}
		branches = append(branches, f.render())
	}
	return filter{{key: "$or", value: branches, logical: true}}, nil
}

// negation wraps a single-field clause in $not and anything else in $nor.
// Negations never cancel: NOT NOT c is not translated as c, because the two differ
// on documents missing the field.
func negation(n Not) (filter, error) {
	f, err := translate(n.Condition)
	if err != nil {
		return nil, err
	}
	_, doubled := n.Condition.(Not)
	if len(f) == 1 && !f[0].logical && !doubled && !hasKey(f[0].ops, "$not") {
		return filter{{key: f[0].key, ops: bson.D{{Key: "$not", Value: f[0].operators()}}}}, nil
	}
	return filter{{key: "$nor", value: bson.A{f.render()}, logical: true}}, nil
}

// nothing is the canonical filter matching no document.
func nothing() filter {
	return filter{{key: "$nor", value: bson.A{bson.D{}}, logical: true}}
}

func hasKey(d bson.D, key string) bool {
	for _, e := range d {
		if e.Key == key {
			return true
		}
	}
	return false
}

func comparison(c Comparison) (filter, error) {
	p := c.Property
	if p == nil {
		return nil, fmt.Errorf("%w: %s comparison without a property", constants.ErrInvalidValue, c.Operator)
	}
	field := p.FieldName()

	unsupported := func() error {
		return fmt.Errorf("%w: %s on %s property %q", constants.ErrUnsupportedOperator, c.Operator, p.Type, field)
	}
	operand := func(v any) (any, error) {
		enc, err := models.Encode(p, v)
		if err != nil {
			return nil, fmt.Errorf("operand of %s on %q: %w", c.Operator, field, err)
		}
		return enc, nil
	}

	switch c.Operator {
	case OpEq:
		v, err := operand(c.Value)
		if err != nil {
			return nil, err
		}
		return filter{{key: field, value: v}}, nil

	case OpNe, OpLt, OpLte, OpGt, OpGte:
		if c.Operator != OpNe && !p.Type.Orderable() {
			return nil, unsupported()
		}
		v, err := operand(c.Value)
		if err != nil {
			return nil, err
		}
		return filter{{key: field, ops: bson.D{{Key: operatorSymbols[c.Operator], Value: v}}}}, nil

	case OpIn, OpNin:
		if r, ok := c.Value.(Range); ok {
			if !p.Type.Orderable() {
				return nil, unsupported()
			}
			ops, err := rangeOps(r, operand)
			if err != nil {
				return nil, err
			}
			if c.Operator == OpNin {
				ops = bson.D{{Key: "$not", Value: ops}}
			}
			return filter{{key: field, ops: ops}}, nil
		}
		values, err := sequence(c.Value)
		if err != nil {
			return nil, fmt.Errorf("operand of %s on %q: %w", c.Operator, field, err)
		}
		list := make(bson.A, 0, len(values))
		for _, v := range values {
			enc, err := operand(v)
			if err != nil {
				return nil, err
			}
			list = append(list, enc)
		}
		return filter{{key: field, ops: bson.D{{Key: operatorSymbols[c.Operator], Value: list}}}}, nil

	case OpLike:
		if !p.Type.Textual() {
			return nil, unsupported()
		}
		pattern, ok := c.Value.(string)
		if !ok {
			return nil, fmt.Errorf("operand of like on %q: %w: %T is not a pattern", field, constants.ErrInvalidValue, c.Value)
		}
		return filter{{key: field, ops: bson.D{
			{Key: "$regex", Value: LikeToRegex(pattern)},
			{Key: "$options", Value: "s"},
		}}}, nil

	case OpRegexp:
		if !p.Type.Textual() {
			return nil, unsupported()
		}
		var ops bson.D
		switch re := c.Value.(type) {
		case string:
			ops = bson.D{{Key: "$regex", Value: re}}
		case *regexp.Regexp:
			ops = bson.D{{Key: "$regex", Value: re.String()}}
		case primitive.Regex:
			ops = bson.D{{Key: "$regex", Value: re.Pattern}}
			if re.Options != "" {
				ops = append(ops, bson.E{Key: "$options", Value: re.Options})
			}
		default:
			return nil, fmt.Errorf("operand of regexp on %q: %w: %T is not a regular expression", field, constants.ErrInvalidValue, c.Value)
		}
		return filter{{key: field, ops: ops}}, nil
	}

	return nil, unsupported()
}

func rangeOps(r Range, operand func(any) (any, error)) (bson.D, error) {
	from, err := operand(r.From)
	if err != nil {
		return nil, err
	}
	to, err := operand(r.To)
	if err != nil {
		return nil, err
	}
	upper := "$lte"
	if r.Exclusive {
		upper = "$lt"
	}
	return bson.D{{Key: "$gte", Value: from}, {Key: upper, Value: to}}, nil
}

// sequence spreads a slice or array operand into its elements.
func sequence(v any) ([]any, error) {
	switch vs := v.(type) {
	case nil:
		return nil, nil
	case []any:
		return vs, nil
	case bson.A:
		return vs, nil
	case []byte:
		return nil, fmt.Errorf("%w: []byte is not a sequence", constants.ErrInvalidValue)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("%w: %T is not a sequence", constants.ErrInvalidValue, v)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

// LikeToRegex converts a SQL LIKE pattern into an anchored regular expression.
// A backslash escapes the next character.
func LikeToRegex(pattern string) string {
	var b strings.Builder
	b.WriteByte('^')
	escaped := false
	for _, r := range pattern {
		switch {
		case escaped:
			b.WriteString(regexp.QuoteMeta(string(r)))
			escaped = false
		case r == '\\':
			escaped = true
		case r == '%':
			b.WriteString(".*")
		case r == '_':
			b.WriteByte('.')
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	if escaped {
		b.WriteString(`\\`)
	}
	b.WriteByte('$')
	return b.String()
}
