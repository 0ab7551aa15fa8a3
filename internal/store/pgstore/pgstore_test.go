package pgstore

import (
	"reflect"
	"testing"
	"time"

	"storefront-backend/internal/catalog"
)

func TestOrderClause(t *testing.T) {
	t.Parallel()
	cases := []struct {
		q    catalog.Query
		want string
	}{
		{catalog.Query{}, "created_at ASC, id ASC"},
		{catalog.Query{SortField: catalog.FieldEffectivePrice}, "effective_price ASC, id ASC"},
		{catalog.Query{SortField: catalog.FieldRating, Desc: true}, "rating DESC, id DESC"},
		{catalog.Query{SortField: "1; drop table products", Desc: true}, "created_at DESC, id DESC"},
	}
	for _, tc := range cases {
		if got := OrderClause(tc.q); got != tc.want {
			t.Fatalf("OrderClause(%+v) = %q, want %q", tc.q, got, tc.want)
		}
	}
}

func TestRowConversionKeepsFields(t *testing.T) {
	t.Parallel()
	p := catalog.SeedCatalog()[0]
	p.CreatedAt = p.CreatedAt.In(time.UTC)
	back := toRow(p).model()
	if !reflect.DeepEqual(p, back) {
		t.Fatalf("conversion lost data\n in: %+v\nout: %+v", p, back)
	}
}
