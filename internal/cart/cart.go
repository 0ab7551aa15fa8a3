// Package cart holds one shopper's cart and writes it through to a per-user slot.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"storefront-backend/internal/kv"
	"storefront-backend/internal/models"
)

// MaxLineQuantity caps the quantity held on a single cart line.
const MaxLineQuantity = 999

var (
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	ErrQuantityLimit   = fmt.Errorf("quantity must not exceed %d per item", MaxLineQuantity)
	ErrItemNotFound    = errors.New("cart item not found")
)

func SlotKey(userID string) string {
	return "cart_" + userID
}

type Holder struct {
	mu     sync.Mutex
	slots  kv.Store
	userID string
	items  []models.CartItem
	busy   atomic.Bool
	now    func() time.Time
}

func NewHolder(slots kv.Store) *Holder {
	return &Holder{slots: slots, now: time.Now}
}

// OnUserChange reloads the cart from the new user's slot, or empties it when
// user is nil. Nothing is written.
func (h *Holder) OnUserChange(ctx context.Context, user *models.User) error {
	h.busy.Store(true)
	defer h.busy.Store(false)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.items = nil
	h.userID = ""
	if user == nil {
		return nil
	}
	h.userID = user.ID

	raw, err := h.slots.Get(ctx, SlotKey(user.ID))
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load cart: %w", err)
	}
	var stored []models.CartItem
	if err := json.Unmarshal(raw, &stored); err != nil {
		return fmt.Errorf("decode cart: %w", err)
	}
	for _, it := range stored {
		if it.Quantity > 0 && it.Quantity <= MaxLineQuantity {
			h.items = append(h.items, it)
		}
	}
	return nil
}

// Add upserts a line keyed by product, size and color. An existing line has
// its quantity increased, up to MaxLineQuantity.
func (h *Holder) Add(ctx context.Context, p models.Product, quantity int, size, color string) (models.CartItem, error) {
	if quantity <= 0 {
		return models.CartItem{}, ErrInvalidQuantity
	}
	if quantity > MaxLineQuantity {
		return models.CartItem{}, ErrQuantityLimit
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	id := models.CartItemID(p.ID, size, color)
	next := h.snapshot()
	idx := indexOf(next, id)
	if idx >= 0 {
		if quantity > MaxLineQuantity-next[idx].Quantity {
			return models.CartItem{}, ErrQuantityLimit
		}
		next[idx].Quantity += quantity
	} else {
		next = append(next, models.CartItem{
			ID:            id,
			ProductID:     p.ID,
			Name:          p.Name,
			Price:         p.FinalPrice(),
			OriginalPrice: p.Price,
			Image:         p.PrimaryImage(),
			Quantity:      quantity,
			Size:          size,
			Color:         color,
			AddedAt:       h.now().UTC(),
		})
		idx = len(next) - 1
	}
	if err := h.commit(ctx, next); err != nil {
		return models.CartItem{}, err
	}
	return next[idx], nil
}

func (h *Holder) Remove(ctx context.Context, itemID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := h.snapshot()
	idx := indexOf(next, itemID)
	if idx < 0 {
		return ErrItemNotFound
	}
	next = append(next[:idx], next[idx+1:]...)
	return h.commit(ctx, next)
}

// SetQuantity replaces a line's quantity. Zero or below removes the line.
func (h *Holder) SetQuantity(ctx context.Context, itemID string, quantity int) error {
	if quantity <= 0 {
		return h.Remove(ctx, itemID)
	}
	if quantity > MaxLineQuantity {
		return ErrQuantityLimit
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	next := h.snapshot()
	idx := indexOf(next, itemID)
	if idx < 0 {
		return ErrItemNotFound
	}
	next[idx].Quantity = quantity
	return h.commit(ctx, next)
}

// Clear empties the cart and deletes the user's slot.
func (h *Holder) Clear(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.userID != "" {
		if err := h.slots.Delete(ctx, SlotKey(h.userID)); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
	}
	h.items = nil
	return nil
}

func (h *Holder) Items() []models.CartItem {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshot()
}

func (h *Holder) Busy() bool {
	return h.busy.Load()
}

// Total is the sum of price times quantity over all lines.
func (h *Holder) Total() decimal.Decimal {
	h.mu.Lock()
	defer h.mu.Unlock()
	total := decimal.Zero
	for _, it := range h.items {
		line := decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity)))
		total = total.Add(line)
	}
	return total
}

// Count is the total number of units across lines.
func (h *Holder) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, it := range h.items {
		n += it.Quantity
	}
	return n
}

func (h *Holder) Contains(productID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, it := range h.items {
		if it.ProductID == productID {
			return true
		}
	}
	return false
}

// commit persists next and only then makes it the current state. Without a
// user the cart lives in memory only.
func (h *Holder) commit(ctx context.Context, next []models.CartItem) error {
	if h.userID != "" {
		raw, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode cart: %w", err)
		}
		if err := h.slots.Set(ctx, SlotKey(h.userID), raw, 0); err != nil {
			return fmt.Errorf("save cart: %w", err)
		}
	}
	h.items = next
	return nil
}

func (h *Holder) snapshot() []models.CartItem {
	out := make([]models.CartItem, len(h.items))
	copy(out, h.items)
	return out
}

func indexOf(items []models.CartItem, id string) int {
	for i, it := range items {
		if it.ID == id {
			return i
		}
	}
	return -1
}
