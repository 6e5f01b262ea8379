package mongoadapter_test

import (
	"context"
	"errors"
	"fmt"

	mongoadapter "github.com/docmapper/mongoadapter"
	"github.com/docmapper/mongoadapter/contrib/testenv"
	"github.com/docmapper/mongoadapter/internal/fixture"
	"github.com/docmapper/mongoadapter/pkg/connection"
	"github.com/docmapper/mongoadapter/pkg/constants"
	"github.com/docmapper/mongoadapter/pkg/logger"
	"github.com/docmapper/mongoadapter/pkg/query"
	"github.com/docmapper/mongoadapter/pkg/resource"
)

func ExampleAdapter_Create() {
	db := testenv.MustNew("examples", fixture.Registry())
	defer db.Close(context.Background())

	book, err := db.Model("Book")
	if err != nil {
		panic(err)
	}

	n, err := db.Create(context.Background(),
		resource.New(book, resource.Attributes{"isbn": "978-01", "edition": 1, "title": "Dune", "pages": 412}),
		resource.New(book, resource.Attributes{"isbn": "978-02", "edition": 1, "title": "Solaris", "pages": "many"}),
	)
	fmt.Println("created:", n)
	fmt.Println("marshal error:", errors.Is(err, constants.ErrMarshal))
	fmt.Println(err)

	count, err := db.Count(context.Background(), query.New(book))
	if err != nil {
		panic(err)
	}
	fmt.Println("stored:", count)

	// Output:
	// created: 1
	// marshal error: true
	// marshal error: Book.pages: invalid value for property type: cannot use string as integer
	// stored: 1
}

func ExampleAdapter_Read() {
	db := testenv.MustNew("examples", fixture.Registry())
	defer db.Close(context.Background())

	book, _ := db.Model("Book")
	for i, title := range []string{"Dune", "Solaris", "Neuromancer", "Hyperion"} {
		r := resource.New(book, resource.Attributes{"isbn": fmt.Sprintf("978-%02d", i), "edition": 1, "title": title, "pages": 100 * (i + 1)})
		if _, err := db.Create(context.Background(), r); err != nil {
			panic(err)
		}
	}

	pages := book.Property("pages")
	q := query.New(book).
		Where(query.Or{query.Gte(pages, 300), query.Like(book.Property("title"), "D%")}).
		OrderBy(query.Order{Property: pages, Direction: query.Desc}).
		Select(book.Property("title"))

	rows, err := db.Read(context.Background(), q)
	if err != nil {
		panic(err)
	}
	defer rows.Close()
	for rows.Next() {
		fmt.Println(rows.Attributes())
	}
	if err := rows.Err(); err != nil {
		panic(err)
	}

	// Output:
	// map[edition:1 isbn:978-03 title:Hyperion]
	// map[edition:1 isbn:978-02 title:Neuromancer]
	// map[edition:1 isbn:978-00 title:Dune]
}

func ExampleAdapter_Update() {
	db := testenv.MustNew("examples", fixture.Registry(),
		mongoadapter.WithLogger(logger.New(testenv.NewTestLogHandler(testenv.WithIgnoreDebug()))))
	defer db.Close(context.Background())

	book, _ := db.Model("Book")
	dune := resource.New(book, resource.Attributes{"isbn": "978-01", "edition": 1, "title": "Dune", "pages": 412})
	if _, err := db.Create(context.Background(), dune); err != nil {
		panic(err)
	}

	if _, err := db.Update(context.Background(), resource.Attributes{"edition": 2, "pages": 896}, dune); err != nil {
		panic(err)
	}
	fmt.Println(dune.Get("edition"), dune.Get("pages"))

	ghost := resource.New(book, resource.Attributes{"isbn": "978-99", "edition": 1})
	if _, err := db.Update(context.Background(), resource.Attributes{"title": "Lost"}, ghost); err != nil {
		panic(err)
	}

	rows, err := db.Read(context.Background(), query.New(book))
	if err != nil {
		panic(err)
	}
	all, err := rows.Collect()
	if err != nil {
		panic(err)
	}
	fmt.Println(all)

	// Output:
	// 2 896
	// [0] WARN: update matched no document collection=books, filter=[{isbn 978-99} {edition 1}]
	// [map[edition:2 isbn:978-01 pages:896 title:Dune]]
}

func ExampleAdapter_Aggregate() {
	db := testenv.MustNew("examples", fixture.Registry())
	defer db.Close(context.Background())

	book, _ := db.Model("Book")
	for i, p := range []int{120, 340, 95} {
		r := resource.New(book, resource.Attributes{"isbn": fmt.Sprintf("978-%02d", i), "edition": 1, "pages": p})
		if _, err := db.Create(context.Background(), r); err != nil {
			panic(err)
		}
	}

	pages := book.Property("pages")
	for _, op := range []connection.ReduceOp{connection.Sum, connection.Avg, connection.Min, connection.Max} {
		v, err := db.Aggregate(context.Background(), query.New(book), op, pages)
		if err != nil {
			panic(err)
		}
		fmt.Printf("%s: %v\n", op, v)
	}

	// Output:
	// sum: 555
	// avg: 185
	// min: 95
	// max: 340
}

func ExampleRows_All() {
	db := testenv.MustNew("examples", fixture.Registry())
	defer db.Close(context.Background())

	person, _ := db.Model("Person")
	employee, _ := db.Model("Employee")
	phone, _ := db.Model("Phone")

	grace := resource.New(employee, resource.Attributes{"name": "Grace", "company": "Navy"})
	grace.Append("phones",
		resource.New(phone, resource.Attributes{"kind": "work", "number": "555-0100"}),
		resource.New(phone, resource.Attributes{"kind": "home", "number": "555-0199"}),
	)
	if _, err := db.Create(context.Background(), resource.New(person, resource.Attributes{"name": "Ada"}), grace); err != nil {
		panic(err)
	}

	q := query.New(person).
		OrderBy(query.Order{Property: person.Property("name")}).
		Select(person.Property("name"), employee.Property("company"))
	rows, err := db.Read(context.Background(), q)
	if err != nil {
		panic(err)
	}
	for attrs, err := range rows.All() {
		if err != nil {
			panic(err)
		}
		fmt.Println(attrs["type"], attrs["name"], attrs["company"])
	}

	// Output:
	// Person Ada <nil>
	// Employee Grace Navy
}
