package memory

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/256dpi/lungo/bsonkit"
	"github.com/cockroachdb/apd/v3"
	"github.com/docmapper/mongoadapter/pkg/connection"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// decimalContext matches the precision of Decimal128.
var decimalContext = apd.BaseContext.WithPrecision(34)

func reduce(op connection.ReduceOp, values []any) any {
	switch op {
	case connection.Min, connection.Max:
		var best any
		for _, v := range values {
			if v == nil {
				continue
			}
			if best == nil {
				best = v
				continue
			}
			cmp := bsonkit.Compare(v, best)
			if (op == connection.Min && cmp < 0) || (op == connection.Max && cmp > 0) {
				best = v
			}
		}
		return best
	}

	var (
		sum     any = int64(0)
		numbers int
	)
	for _, v := range values {
		s, err := add(sum, v)
		if err != nil {
			continue
		}
		sum = s
		numbers++
	}
	if op == connection.Sum {
		return sum
	}
	if numbers == 0 {
		return nil
	}
	d, err := toDecimal(sum)
	if err != nil {
		return nil
	}
	avg := new(apd.Decimal)
	if _, err := decimalContext.Quo(avg, d, apd.New(int64(numbers), 0)); err != nil {
		return nil
	}
	if _, isDecimal := sum.(primitive.Decimal128); isDecimal {
		out, err := primitive.ParseDecimal128(avg.String())
		if err != nil {
			return nil
		}
		return out
	}
	f, _ := avg.Float64()
	return f
}

// add sums two numbers the way the server does: integers stay integral,
// doubles win over integers and decimals win over both.
func add(a, b any) (any, error) {
	if !isNumber(a) || !isNumber(b) {
		return nil, fmt.Errorf("cannot add %T and %T", a, b)
	}
	_, aDec := a.(primitive.Decimal128)
	_, bDec := b.(primitive.Decimal128)
	if aDec || bDec {
		x, err := toDecimal(a)
		if err != nil {
			return nil, err
		}
		y, err := toDecimal(b)
		if err != nil {
			return nil, err
		}
		out := new(apd.Decimal)
		if _, err := decimalContext.Add(out, x, y); err != nil {
			return nil, err
		}
		return primitive.ParseDecimal128(out.String())
	}
	_, aFloat := a.(float64)
	_, bFloat := b.(float64)
	if aFloat || bFloat {
		return toFloat(a) + toFloat(b), nil
	}
	return toInt(a) + toInt(b), nil
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int32, int64, float64, primitive.Decimal128:
		return true
	}
	return false
}

func toInt(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	}
	return 0
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int, int32, int64:
		return float64(toInt(n))
	}
	return 0
}

func toDecimal(v any) (*apd.Decimal, error) {
	switch n := v.(type) {
	case primitive.Decimal128:
		d, _, err := apd.NewFromString(n.String())
		return d, err
	case float64:
		return new(apd.Decimal).SetFloat64(n)
	case int, int32, int64:
		return apd.New(toInt(n), 0), nil
	}
	return nil, fmt.Errorf("%T is not a number", v)
}

// lookup resolves a dotted path. Numeric segments index arrays.
func lookup(d bson.D, path string) (any, bool) {
	var cur any = d
	for _, seg := range strings.Split(path, ".") {
		switch x := cur.(type) {
		case bson.D:
			found := false
			for _, e := range x {
				if e.Key == seg {
					cur, found = e.Value, true
					break
				}
			}
			if !found {
				return nil, false
			}
		case bson.A:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(x) {
				return nil, false
			}
			cur = x[i]
		default:
			return nil, false
		}
	}
	return cur, true
}
