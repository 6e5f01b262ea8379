package models

import (
	"fmt"
	"strings"

	"github.com/docmapper/mongoadapter/pkg/constants"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Reference is a loose pointer to a document in another collection.
// It is stored as a DBRef and never dereferenced by the adapter.
type Reference struct {
	Collection string
	ID         primitive.ObjectID
}

func NewReference(collection string, id primitive.ObjectID) Reference {
	return Reference{Collection: collection, ID: id}
}

// ParseReference parses the "collection:hexid" form produced by String.
func ParseReference(s string) (Reference, error) {
	collection, hex, ok := strings.Cut(s, ":")
	if !ok || collection == "" {
		return Reference{}, fmt.Errorf("%w: expected format is 'collection:identifier', got %q", constants.ErrInvalidValue, s)
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return Reference{}, fmt.Errorf("%w: %q", constants.ErrInvalidIdentifier, hex)
	}
	return Reference{Collection: collection, ID: id}, nil
}

func (r Reference) String() string {
	return fmt.Sprintf("%s:%s", r.Collection, r.ID.Hex())
}

// Document returns the DBRef form of the reference.
func (r Reference) Document() bson.D {
	return bson.D{
		{Key: "$ref", Value: r.Collection},
		{Key: "$id", Value: r.ID},
	}
}

func referenceFromDocument(get func(string) (any, bool)) (Reference, error) {
	rawCollection, ok := get("$ref")
	if !ok {
		return Reference{}, fmt.Errorf("%w: reference document has no $ref", constants.ErrInvalidValue)
	}
	collection, ok := rawCollection.(string)
	if !ok || collection == "" {
		return Reference{}, fmt.Errorf("%w: reference $ref must be a collection name, got %T", constants.ErrInvalidValue, rawCollection)
	}
	rawID, ok := get("$id")
	if !ok {
		return Reference{}, fmt.Errorf("%w: reference document has no $id", constants.ErrInvalidValue)
	}
	id, err := toObjectID(rawID)
	if err != nil {
		return Reference{}, err
	}
	return Reference{Collection: collection, ID: id}, nil
}
