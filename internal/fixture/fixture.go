// Package fixture builds the schema shared by the package tests.
package fixture

import (
	"github.com/docmapper/mongoadapter/pkg/models"
	"github.com/docmapper/mongoadapter/pkg/schema"
)

// Registry returns a freshly built registry with these models:
//
//	Person (people)   id, type, name, age, score, active, born, avatar, balance, token, manager, secret(private)
//	                  address -> Address (one to one), phones -> Phone (one to many)
//	Employee          extends Person with company
//	Address           embedded: street, city, zip (stored as postal_code)
//	Phone             embedded: kind, number
//	Book (books)      composite key isbn + edition, title
//	Node (nodes)      id, label, child -> Node (one to one)
func Registry() *schema.Registry {
	reg := schema.NewRegistry()
	reg.MustRegister(
		&schema.Model{
			Name:     "Address",
			Embedded: true,
			Properties: []*models.Property{
				{Name: "street", Type: models.String},
				{Name: "city", Type: models.String},
				{Name: "zip", Field: "postal_code", Type: models.String},
			},
		},
		&schema.Model{
			Name:     "Phone",
			Embedded: true,
			Properties: []*models.Property{
				{Name: "kind", Type: models.String},
				{Name: "number", Type: models.String},
			},
		},
		&schema.Model{
			Name:    "Person",
			Storage: "people",
			Properties: []*models.Property{
				{Name: "id", Field: "_id", Type: models.ObjectID, Key: true},
				{Name: "type", Field: "_type", Type: models.Discriminator},
				{Name: "name", Type: models.String},
				{Name: "age", Type: models.Integer, Nullable: true},
				{Name: "score", Type: models.Float, Nullable: true},
				{Name: "active", Type: models.Boolean},
				{Name: "born", Type: models.Time, Nullable: true},
				{Name: "avatar", Type: models.Binary, Nullable: true},
				{Name: "balance", Type: models.Decimal, Nullable: true},
				{Name: "token", Type: models.UUID, Nullable: true},
				{Name: "manager", Type: models.RefType, Nullable: true},
				{Name: "secret", Type: models.String, Visibility: models.Private},
			},
			Embedments: []*schema.Embedment{
				{Name: "address", Kind: schema.OneToOne, Target: "Address"},
				{Name: "phones", Kind: schema.OneToMany, Target: "Phone"},
			},
		},
		&schema.Model{
			Name:   "Employee",
			Parent: "Person",
			Properties: []*models.Property{
				{Name: "company", Type: models.String},
			},
		},
		&schema.Model{
			Name:    "Book",
			Storage: "books",
			Properties: []*models.Property{
				{Name: "isbn", Type: models.String, Key: true},
				{Name: "edition", Type: models.Integer, Key: true},
				{Name: "title", Type: models.String},
				{Name: "pages", Type: models.Integer},
			},
		},
		&schema.Model{
			Name:    "Node",
			Storage: "nodes",
			Properties: []*models.Property{
				{Name: "id", Field: "_id", Type: models.ObjectID, Key: true},
				{Name: "label", Type: models.String},
			},
			Embedments: []*schema.Embedment{
				{Name: "child", Kind: schema.OneToOne, Target: "Node"},
			},
		},
	)
	if err := reg.Build(); err != nil {
		panic(err)
	}
	return reg
}

// Model returns a model from a fresh registry.
func Model(name string) *schema.Model {
	m, err := Registry().Model(name)
	if err != nil {
		panic(err)
	}
	return m
}
