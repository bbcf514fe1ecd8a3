// cmd/seed loads catalog products from a JSON file into the storefront
// database. Existing products with the same ID are replaced.
//
// Usage:
//
//	go run ./cmd/seed/ \
//	  --driver sqlite \
//	  --dsn    storefront.db \
//	  --file   products.json
//
// products.json:
//
//	[{"id":"BI101","name":"Kupa","category":"Ev","item_type":"PHYSICAL","price":"49.90"}]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/0gfoundation/0g-storefront/internal/store"
)

type product struct {
	ID       string          `json:"id"        validate:"required,max=36"`
	Name     string          `json:"name"      validate:"required"`
	Category string          `json:"category"  validate:"required"`
	ItemType string          `json:"item_type" validate:"required,oneof=PHYSICAL VIRTUAL"`
	Price    decimal.Decimal `json:"price"`
	Inactive bool            `json:"inactive"`
}

func main() {
	driver := flag.String("driver", envOr("DATABASE_DRIVER", "sqlite"), "Database driver (sqlite or postgres)")
	dsn := flag.String("dsn", envOr("DATABASE_DSN", "storefront.db"), "Database DSN")
	file := flag.String("file", "products.json", "Product list (JSON array)")
	flag.Parse()

	f, err := os.Open(*file)
	if err != nil {
		fatalf("open %s: %v", *file, err)
	}
	defer f.Close()

	products, err := decode(f)
	if err != nil {
		fatalf("%v", err)
	}

	st, err := store.Open(*driver, *dsn)
	if err != nil {
		fatalf("open database: %v", err)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := seed(ctx, st, products)
	if err != nil {
		fatalf("%v", err)
	}
	fmt.Printf("seeded %d products into %s ✓\n", n, *driver)
}

// decode parses and validates the whole file before anything is written.
func decode(r io.Reader) ([]product, error) {
	var products []product
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	v := validator.New()
	seen := make(map[string]bool, len(products))
	for i, p := range products {
		if err := v.Struct(p); err != nil {
			return nil, fmt.Errorf("product %d (%s): %w", i, p.ID, err)
		}
		if !p.Price.IsPositive() {
			return nil, fmt.Errorf("product %d (%s): price must be positive", i, p.ID)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("product %d: duplicate id %s", i, p.ID)
		}
		seen[p.ID] = true
	}
	return products, nil
}

func seed(ctx context.Context, st *store.Store, products []product) (int, error) {
	for _, p := range products {
		err := st.SaveProduct(ctx, &store.Product{
			ID:       p.ID,
			Name:     p.Name,
			Category: p.Category,
			ItemType: p.ItemType,
			Price:    p.Price.Round(2),
			Active:   !p.Inactive,
		})
		if err != nil {
			return 0, fmt.Errorf("save %s: %w", p.ID, err)
		}
		fmt.Printf("  %-12s %-30s %s\n", p.ID, p.Name, p.Price.StringFixed(2))
	}
	return len(products), nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
