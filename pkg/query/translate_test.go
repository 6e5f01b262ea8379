package query_test

import (
	"regexp"
	"testing"

	"github.com/docmapper/mongoadapter/internal/fixture"
	"github.com/docmapper/mongoadapter/pkg/constants"
	"github.com/docmapper/mongoadapter/pkg/query"
	"github.com/docmapper/mongoadapter/pkg/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestTranslate(t *testing.T) {
	person := fixture.Model("Person")
	age := person.Property("age")
	name := person.Property("name")
	score := person.Property("score")
	id := person.Property("id")
	oid := primitive.NewObjectID()

	testcases := []struct {
		name string
		cond query.Condition
		want bson.D
	}{
		{
			name: "match all",
			cond: nil,
			want: bson.D{},
		},
		{
			name: "equality has no operator wrapper",
			cond: query.Eq(age, 5),
			want: bson.D{{Key: "age", Value: int64(5)}},
		},
		{
			name: "greater than",
			cond: query.Gt(age, 5),
			want: bson.D{{Key: "age", Value: bson.D{{Key: "$gt", Value: int64(5)}}}},
		},
		{
			name: "identifier operand is encoded under the store field",
			cond: query.Eq(id, oid.Hex()),
			want: bson.D{{Key: "_id", Value: oid}},
		},
		{
			name: "same field conjuncts share one operator map",
			cond: query.And{query.Gt(age, 18), query.Lt(age, 65)},
			want: bson.D{{Key: "age", Value: bson.D{
				{Key: "$gt", Value: int64(18)},
				{Key: "$lt", Value: int64(65)},
			}}},
		},
		{
			name: "equality meeting an operator map is promoted",
			cond: query.And{query.Eq(age, 30), query.Ne(age, nil)},
			want: bson.D{{Key: "age", Value: bson.D{
				{Key: "$eq", Value: int64(30)},
				{Key: "$ne", Value: nil},
			}}},
		},
		{
			name: "conflicting operators are kept under $and",
			cond: query.And{query.Gt(age, 18), query.Gt(age, 21), query.Eq(name, "Ada")},
			want: bson.D{
				{Key: "age", Value: bson.D{{Key: "$gt", Value: int64(18)}}},
				{Key: "name", Value: "Ada"},
				{Key: "$and", Value: bson.A{
					bson.D{{Key: "age", Value: bson.D{{Key: "$gt", Value: int64(21)}}}},
				}},
			},
		},
		{
			name: "nested conjunctions flatten",
			cond: query.And{query.Eq(name, "Ada"), query.And{query.Gte(score, 1.5), query.Lte(score, 2.5)}},
			want: bson.D{
				{Key: "name", Value: "Ada"},
				{Key: "score", Value: bson.D{{Key: "$gte", Value: 1.5}, {Key: "$lte", Value: 2.5}}},
			},
		},
		{
			name: "empty in matches nothing",
			cond: query.In(name, []string{}),
			want: bson.D{{Key: "name", Value: bson.D{{Key: "$in", Value: bson.A{}}}}},
		},
		{
			name: "empty nin matches everything",
			cond: query.Nin(name, []string{}),
			want: bson.D{{Key: "name", Value: bson.D{{Key: "$nin", Value: bson.A{}}}}},
		},
		{
			name: "in encodes every element",
			cond: query.In(age, []int{1, 2}),
			want: bson.D{{Key: "age", Value: bson.D{{Key: "$in", Value: bson.A{int64(1), int64(2)}}}}},
		},
		{
			name: "range",
			cond: query.In(age, query.Range{From: 1, To: 10, Exclusive: true}),
			want: bson.D{{Key: "age", Value: bson.D{{Key: "$gte", Value: int64(1)}, {Key: "$lt", Value: int64(10)}}}},
		},
		{
			name: "negated leaf",
			cond: query.Negate(query.Gt(age, 5)),
			want: bson.D{{Key: "age", Value: bson.D{{Key: "$not", Value: bson.D{{Key: "$gt", Value: int64(5)}}}}}},
		},
		{
			name: "negated equality",
			cond: query.Negate(query.Eq(name, "Ada")),
			want: bson.D{{Key: "name", Value: bson.D{{Key: "$not", Value: bson.D{{Key: "$eq", Value: "Ada"}}}}}},
		},
		{
			name: "double negation is kept",
			cond: query.Negate(query.Negate(query.Eq(name, "Ada"))),
			want: bson.D{{Key: "$nor", Value: bson.A{
				bson.D{{Key: "name", Value: bson.D{{Key: "$not", Value: bson.D{{Key: "$eq", Value: "Ada"}}}}}},
			}}},
		},
		{
			name: "negated conjunction over two fields",
			cond: query.Negate(query.And{query.Eq(name, "Ada"), query.Eq(age, 36)}),
			want: bson.D{{Key: "$nor", Value: bson.A{
				bson.D{{Key: "name", Value: "Ada"}, {Key: "age", Value: int64(36)}},
			}}},
		},
		{
			name: "disjunction",
			cond: query.Or{query.Eq(name, "Ada"), query.Eq(name, "Grace")},
			want: bson.D{{Key: "$or", Value: bson.A{
				bson.D{{Key: "name", Value: "Ada"}},
				bson.D{{Key: "name", Value: "Grace"}},
			}}},
		},
		{
			name: "empty disjunction matches nothing",
			cond: query.Or{},
			want: bson.D{{Key: "$nor", Value: bson.A{bson.D{}}}},
		},
		{
			name: "like",
			cond: query.Like(name, "A_a%"),
			want: bson.D{{Key: "name", Value: bson.D{{Key: "$regex", Value: "^A.a.*$"}, {Key: "$options", Value: "s"}}}},
		},
		{
			name: "regexp",
			cond: query.Regexp(name, regexp.MustCompile(`^gr`)),
			want: bson.D{{Key: "name", Value: bson.D{{Key: "$regex", Value: "^gr"}}}},
		},
		{
			name: "regexp with options",
			cond: query.Regexp(name, primitive.Regex{Pattern: "^gr", Options: "i"}),
			want: bson.D{{Key: "name", Value: bson.D{{Key: "$regex", Value: "^gr"}, {Key: "$options", Value: "i"}}}},
		},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := query.Translate(tc.cond)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestTranslate_errors(t *testing.T) {
	person := fixture.Model("Person")
	age := person.Property("age")
	avatar := person.Property("avatar")
	id := person.Property("id")

	testcases := []struct {
		name string
		cond query.Condition
		want error
	}{
		{name: "like on an integer", cond: query.Like(age, "1%"), want: constants.ErrUnsupportedOperator},
		{name: "regexp on an integer", cond: query.Regexp(age, "^1"), want: constants.ErrUnsupportedOperator},
		{name: "ordering on binary", cond: query.Gt(avatar, []byte{1}), want: constants.ErrUnsupportedOperator},
		{name: "unknown operator", cond: query.Comparison{Property: age, Operator: "between", Value: 1}, want: constants.ErrUnsupportedOperator},
		{name: "invalid identifier operand", cond: query.Eq(id, "zz"), want: constants.ErrInvalidIdentifier},
		{name: "mistyped operand", cond: query.Gt(age, "five"), want: constants.ErrInvalidValue},
		{name: "scalar in operand", cond: query.In(age, 5), want: constants.ErrInvalidValue},
		{name: "mistyped element deep in the tree", cond: query.Or{query.Eq(age, 1), query.Negate(query.In(age, []any{2, "x"}))}, want: constants.ErrInvalidValue},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := query.Translate(tc.cond)
			require.ErrorIs(t, err, tc.want)
		})
	}

	_, err := query.Translate(query.Like(age, "1%"))
	assert.EqualError(t, err, `unsupported operator: like on integer property "age"`)
}

func TestLikeToRegex(t *testing.T) {
	testcases := map[string]string{
		"abc":     "^abc$",
		"a%":      "^a.*$",
		"_b_":     "^.b.$",
		"1.5+":    `^1\.5\+$`,
		`100\%`:   "^100%$",
		`a\_b`:    "^a_b$",
		"(x)|[y]": `^\(x\)\|\[y\]$`,
	}
	for in, want := range testcases {
		assert.Equal(t, want, query.LikeToRegex(in), in)
	}
}

func TestForKey(t *testing.T) {
	book := fixture.Model("Book")
	cond := query.ForKey([]resource.KeyValue{
		{Property: book.Property("isbn"), Value: "978-0"},
		{Property: book.Property("edition"), Value: 2},
	})
	got, err := query.Translate(cond)
	require.NoError(t, err)
	assert.Equal(t, bson.D{{Key: "isbn", Value: "978-0"}, {Key: "edition", Value: int64(2)}}, got)
}
