package models

import (
	"fmt"
	"math"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/docmapper/mongoadapter/pkg/constants"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	binarySubtypeGeneric byte = 0x00
	binarySubtypeUUID    byte = 0x04
)

// Discriminated is implemented by values that know their own discriminator tag,
// such as schema models.
type Discriminated interface {
	DiscriminatorTag() string
}

// Encode converts a language-level value into the store scalar for p's type.
// A nil value always encodes to nil.
func Encode(p *Property, v any) (any, error) {
	if isNil(v) {
		return nil, nil
	}

	switch p.Type {
	case String:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case Integer:
		if n, ok := toInt64(v); ok {
			return n, nil
		}
	case Float:
		if f, ok := toFloat64(v); ok {
			return f, nil
		}
	case Boolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case Time:
		return encodeTime(v)
	case Binary:
		switch b := v.(type) {
		case []byte:
			return primitive.Binary{Subtype: binarySubtypeGeneric, Data: append([]byte(nil), b...)}, nil
		case primitive.Binary:
			return b, nil
		}
	case ObjectID:
		return toObjectID(v)
	case RefType:
		return encodeReference(v)
	case Discriminator:
		return encodeDiscriminator(p, v)
	case Decimal:
		return encodeDecimal(v)
	case UUID:
		return encodeUUID(v)
	default:
		return nil, fmt.Errorf("%w: unknown property type %q", constants.ErrInvalidValue, p.Type)
	}

	return nil, mismatch(p.Type, v)
}

// Decode converts a store scalar back into the language-level value for p's type.
// For every valid value v, Decode(p, Encode(p, v)) equals v.
func Decode(p *Property, v any) (any, error) {
	if isNil(v) {
		return nil, nil
	}

	switch p.Type {
	case String:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case Integer:
		switch n := v.(type) {
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case float64:
			if n == math.Trunc(n) && !math.IsInf(n, 0) {
				return int64(n), nil
			}
		}
	case Float:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int32:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
	case Boolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case Time:
		switch t := v.(type) {
		case primitive.DateTime:
			return t.Time().UTC(), nil
		case time.Time:
			return t.UTC().Truncate(time.Millisecond), nil
		}
	case Binary:
		switch b := v.(type) {
		case primitive.Binary:
			return append([]byte(nil), b.Data...), nil
		case []byte:
			return append([]byte(nil), b...), nil
		}
	case ObjectID:
		return toObjectID(v)
	case RefType:
		return decodeReference(v)
	case Discriminator:
		tag, ok := v.(string)
		if !ok {
			break
		}
		if !p.HasTag(tag) {
			return nil, fmt.Errorf("%w: %q", constants.ErrUnknownDiscriminator, tag)
		}
		return tag, nil
	case Decimal:
		if d, ok := v.(primitive.Decimal128); ok {
			dec, _, err := apd.NewFromString(d.String())
			if err != nil {
				return nil, fmt.Errorf("%w: decimal %s: %v", constants.ErrInvalidValue, d.String(), err)
			}
			return dec, nil
		}
	case UUID:
		switch u := v.(type) {
		case primitive.Binary:
			if u.Subtype != binarySubtypeUUID || len(u.Data) != 16 {
				return nil, fmt.Errorf("%w: binary subtype %#x with %d bytes is not a UUID", constants.ErrInvalidValue, u.Subtype, len(u.Data))
			}
			return uuid.FromBytes(u.Data)
		case string:
			parsed, err := uuid.Parse(u)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", constants.ErrInvalidValue, err)
			}
			return parsed, nil
		}
	default:
		return nil, fmt.Errorf("%w: unknown property type %q", constants.ErrInvalidValue, p.Type)
	}

	return nil, mismatch(p.Type, v)
}

func mismatch(t Type, v any) error {
	return fmt.Errorf("%w: cannot use %T as %s", constants.ErrInvalidValue, v, t)
}

func isNil(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case *apd.Decimal:
		return x == nil
	case *Reference:
		return x == nil
	case *primitive.ObjectID:
		return x == nil
	case *time.Time:
		return x == nil
	case *uuid.UUID:
		return x == nil
	}
	return false
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint:
		if uint64(n) <= math.MaxInt64 {
			return int64(n), true
		}
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n), true
		}
	}
	return 0, false
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	if i, ok := toInt64(v); ok {
		return float64(i), true
	}
	return 0, false
}

func encodeTime(v any) (any, error) {
	switch t := v.(type) {
	case time.Time:
		return primitive.NewDateTimeFromTime(t), nil
	case *time.Time:
		return primitive.NewDateTimeFromTime(*t), nil
	case primitive.DateTime:
		return t, nil
	}
	return nil, mismatch(Time, v)
}

func toObjectID(v any) (primitive.ObjectID, error) {
	switch id := v.(type) {
	case primitive.ObjectID:
		return id, nil
	case *primitive.ObjectID:
		return *id, nil
	case string:
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			return primitive.NilObjectID, fmt.Errorf("%w: %q", constants.ErrInvalidIdentifier, id)
		}
		return oid, nil
	}
	return primitive.NilObjectID, fmt.Errorf("%w: cannot use %T as %s", constants.ErrInvalidIdentifier, v, ObjectID)
}

func encodeReference(v any) (any, error) {
	var ref Reference
	switch r := v.(type) {
	case Reference:
		ref = r
	case *Reference:
		ref = *r
	case string:
		parsed, err := ParseReference(r)
		if err != nil {
			return nil, err
		}
		ref = parsed
	default:
		return nil, mismatch(RefType, v)
	}
	if ref.Collection == "" {
		return nil, fmt.Errorf("%w: reference without collection", constants.ErrInvalidValue)
	}
	return ref.Document(), nil
}

func decodeReference(v any) (any, error) {
	switch doc := v.(type) {
	case bson.D:
		return referenceFromDocument(func(key string) (any, bool) {
			for _, e := range doc {
				if e.Key == key {
					return e.Value, true
				}
			}
			return nil, false
		})
	case bson.M:
		return referenceFromDocument(func(key string) (any, bool) {
			val, ok := doc[key]
			return val, ok
		})
	case map[string]any:
		return referenceFromDocument(func(key string) (any, bool) {
			val, ok := doc[key]
			return val, ok
		})
	case primitive.DBPointer:
		return Reference{Collection: doc.DB, ID: doc.Pointer}, nil
	case Reference:
		return doc, nil
	}
	return nil, mismatch(RefType, v)
}

func encodeDiscriminator(p *Property, v any) (any, error) {
	var tag string
	switch d := v.(type) {
	case string:
		tag = d
	case Discriminated:
		tag = d.DiscriminatorTag()
	default:
		return nil, mismatch(Discriminator, v)
	}
	if !p.HasTag(tag) {
		return nil, fmt.Errorf("%w: %q", constants.ErrUnknownDiscriminator, tag)
	}
	return tag, nil
}

func encodeDecimal(v any) (any, error) {
	var s string
	switch d := v.(type) {
	case *apd.Decimal:
		s = d.String()
	case apd.Decimal:
		s = d.String()
	case primitive.Decimal128:
		return d, nil
	case string:
		s = d
	default:
		return nil, mismatch(Decimal, v)
	}
	d128, err := primitive.ParseDecimal128(s)
	if err != nil {
		return nil, fmt.Errorf("%w: decimal %q: %v", constants.ErrInvalidValue, s, err)
	}
	return d128, nil
}

func encodeUUID(v any) (any, error) {
	var u uuid.UUID
	switch x := v.(type) {
	case uuid.UUID:
		u = x
	case *uuid.UUID:
		u = *x
	case [16]byte:
		u = x
	case string:
		parsed, err := uuid.Parse(x)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", constants.ErrInvalidValue, err)
		}
		u = parsed
	default:
		return nil, mismatch(UUID, v)
	}
	return primitive.Binary{Subtype: binarySubtypeUUID, Data: append([]byte(nil), u[:]...)}, nil
}
