package cart

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"storefront-backend/internal/kv"
	"storefront-backend/internal/models"
)

func product(id string, price, sale float64) models.Product {
	p := models.Product{ID: id, Name: "Product " + id, Price: price, Images: []string{"img-" + id}}
	if sale > 0 {
		p.SalePrice = &sale
	}
	return p
}

func signedIn(t *testing.T, slots kv.Store, uid string) *Holder {
	t.Helper()
	h := NewHolder(slots)
	if err := h.OnUserChange(context.Background(), &models.User{ID: uid}); err != nil {
		t.Fatalf("user change: %v", err)
	}
	return h
}

func TestAddAccumulatesSameLine(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := signedIn(t, kv.NewMemory(), "u1")
	p := product("p1", 1200, 999)

	if _, err := h.Add(ctx, p, 1, "M", "red"); err != nil {
		t.Fatalf("add: %v", err)
	}
	item, err := h.Add(ctx, p, 2, "M", "red")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if item.Quantity != 3 || item.ID != "p1_M_red" {
		t.Fatalf("unexpected line %+v", item)
	}
	if n := len(h.Items()); n != 1 {
		t.Fatalf("expected one line, got %d", n)
	}
	if _, err := h.Add(ctx, p, 1, "L", "red"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if n := len(h.Items()); n != 2 {
		t.Fatalf("expected two lines, got %d", n)
	}
}

func TestTotalsMatchLines(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := signedIn(t, kv.NewMemory(), "u1")
	_, _ = h.Add(ctx, product("p1", 1200, 999), 2, "M", "")
	_, _ = h.Add(ctx, product("p2", 800, 0), 3, "", "")
	_, _ = h.Add(ctx, product("p3", 19.99, 0), 1, "", "")

	items := h.Items()
	wantCount := 0
	wantTotal := decimal.Zero
	for _, it := range items {
		wantCount += it.Quantity
		wantTotal = wantTotal.Add(decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	if h.Count() != wantCount || wantCount != 6 {
		t.Fatalf("count = %d, want %d", h.Count(), wantCount)
	}
	if !h.Total().Equal(wantTotal) || !h.Total().Equal(decimal.RequireFromString("4417.99")) {
		t.Fatalf("total = %s, want %s", h.Total(), wantTotal)
	}
}

func TestSetQuantityZeroRemoves(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := signedIn(t, kv.NewMemory(), "u1")
	item, _ := h.Add(ctx, product("p1", 100, 0), 2, "", "")

	if err := h.SetQuantity(ctx, item.ID, 5); err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if h.Count() != 5 {
		t.Fatalf("count = %d, want 5", h.Count())
	}
	if err := h.SetQuantity(ctx, item.ID, 0); err != nil {
		t.Fatalf("set quantity 0: %v", err)
	}
	if len(h.Items()) != 0 || h.Contains("p1") {
		t.Fatalf("expected empty cart, got %+v", h.Items())
	}
	if err := h.SetQuantity(ctx, item.ID, -1); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestAddRejectsNonPositiveQuantity(t *testing.T) {
	t.Parallel()
	h := signedIn(t, kv.NewMemory(), "u1")
	if _, err := h.Add(context.Background(), product("p1", 100, 0), 0, "", ""); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestAddCapsLineQuantity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := signedIn(t, kv.NewMemory(), "u1")
	p := product("p1", 100, 0)

	if _, err := h.Add(ctx, p, math.MaxInt, "M", ""); !errors.Is(err, ErrQuantityLimit) {
		t.Fatalf("expected ErrQuantityLimit for MaxInt, got %v", err)
	}
	if _, err := h.Add(ctx, p, MaxLineQuantity, "M", ""); err != nil {
		t.Fatalf("add at limit: %v", err)
	}
	if _, err := h.Add(ctx, p, 1, "M", ""); !errors.Is(err, ErrQuantityLimit) {
		t.Fatalf("expected ErrQuantityLimit past limit, got %v", err)
	}
	if h.Count() != MaxLineQuantity {
		t.Fatalf("expected count %d, got %d", MaxLineQuantity, h.Count())
	}
	if !h.Total().Equal(decimal.NewFromInt(100 * MaxLineQuantity)) {
		t.Fatalf("unexpected total %s", h.Total())
	}
}

func TestSetQuantityCapsLineQuantity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	h := signedIn(t, kv.NewMemory(), "u1")
	item, err := h.Add(ctx, product("p1", 100, 0), 2, "", "")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := h.SetQuantity(ctx, item.ID, math.MaxInt); !errors.Is(err, ErrQuantityLimit) {
		t.Fatalf("expected ErrQuantityLimit, got %v", err)
	}
	if h.Count() != 2 {
		t.Fatalf("quantity changed on rejected update: %d", h.Count())
	}
}

func TestWriteThroughAndReload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	slots := kv.NewMemory()
	h := signedIn(t, slots, "u1")
	_, _ = h.Add(ctx, product("p1", 100, 0), 2, "S", "")

	raw, err := slots.Get(ctx, SlotKey("u1"))
	if err != nil {
		t.Fatalf("slot not written: %v", err)
	}
	var stored []models.CartItem
	if err := json.Unmarshal(raw, &stored); err != nil || len(stored) != 1 || stored[0].Quantity != 2 {
		t.Fatalf("unexpected slot contents %s (%v)", raw, err)
	}

	other := signedIn(t, slots, "u1")
	if other.Count() != 2 || !other.Contains("p1") {
		t.Fatalf("reload mismatch: %+v", other.Items())
	}

	if err := other.OnUserChange(ctx, &models.User{ID: "u2"}); err != nil {
		t.Fatalf("user change: %v", err)
	}
	if other.Count() != 0 {
		t.Fatalf("expected empty cart for u2, got %+v", other.Items())
	}
	if err := other.OnUserChange(ctx, nil); err != nil || other.Count() != 0 {
		t.Fatalf("expected cleared cart on sign out, err=%v", err)
	}
}

func TestClearDeletesSlot(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	slots := kv.NewMemory()
	h := signedIn(t, slots, "u1")
	_, _ = h.Add(ctx, product("p1", 100, 0), 1, "", "")

	if err := h.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := slots.Get(ctx, SlotKey("u1")); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expected slot deleted, got %v", err)
	}
}

type failingStore struct{ kv.Store }

func (failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("disk full")
}

func TestFailedWriteKeepsPreviousState(t *testing.T) {
	t.Parallel()
	h := signedIn(t, failingStore{kv.NewMemory()}, "u1")
	if _, err := h.Add(context.Background(), product("p1", 100, 0), 1, "", ""); err == nil {
		t.Fatal("expected write error")
	}
	if h.Count() != 0 {
		t.Fatalf("state changed despite failed write: %+v", h.Items())
	}
}

func TestAnonymousCartStaysInMemory(t *testing.T) {
	t.Parallel()
	h := NewHolder(failingStore{kv.NewMemory()})
	if _, err := h.Add(context.Background(), product("p1", 100, 0), 1, "", ""); err != nil {
		t.Fatalf("anonymous add should not touch slots: %v", err)
	}
	if h.Count() != 1 {
		t.Fatalf("count = %d, want 1", h.Count())
	}
}
