package main

import (
	"context"
	"strings"
	"testing"

	"github.com/0gfoundation/0g-storefront/internal/store"
)

func TestDecode_Rejects(t *testing.T) {
	cases := map[string]string{
		"not json":     `{`,
		"missing name": `[{"id":"A","category":"Ev","item_type":"PHYSICAL","price":"1.00"}]`,
		"bad type":     `[{"id":"A","name":"a","category":"Ev","item_type":"DIGITAL","price":"1.00"}]`,
		"zero price":   `[{"id":"A","name":"a","category":"Ev","item_type":"PHYSICAL","price":"0"}]`,
		"duplicate": `[{"id":"A","name":"a","category":"Ev","item_type":"PHYSICAL","price":"1"},
		               {"id":"A","name":"b","category":"Ev","item_type":"PHYSICAL","price":"2"}]`,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := decode(strings.NewReader(in)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestSeed(t *testing.T) {
	st, err := store.Open("sqlite", "file:seed_"+t.Name()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	products, err := decode(strings.NewReader(`[
		{"id":"BI101","name":"Kupa","category":"Ev","item_type":"PHYSICAL","price":"49.9"},
		{"id":"BI102","name":"E-kitap","category":"Kitap","item_type":"VIRTUAL","price":"15.00","inactive":true}
	]`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	n, err := seed(context.Background(), st, products)
	if err != nil || n != 2 {
		t.Fatalf("seed: n=%d err=%v", n, err)
	}

	got, err := st.Products(context.Background(), []string{"BI101", "BI102"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("expected only the active product, got %d", len(got))
	}
	if p := got["BI101"]; p.Price.StringFixed(2) != "49.90" || p.ItemType != "PHYSICAL" {
		t.Errorf("BI101: %+v", p)
	}
}
