// Package theme tracks a visitor's light/dark preference.
package theme

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"storefront-backend/internal/kv"
)

type Mode string

const (
	Light Mode = "light"
	Dark  Mode = "dark"
)

var ErrInvalidMode = errors.New("theme must be light or dark")

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Light, Dark:
		return Mode(s), nil
	}
	return "", ErrInvalidMode
}

func SlotKey(visitorID string) string {
	return "theme_" + visitorID
}

type Holder struct {
	mu    sync.Mutex
	slots kv.Store
	key   string
	mode  Mode
	ready bool
}

func NewHolder(slots kv.Store) *Holder {
	return &Holder{slots: slots, mode: Light}
}

// Init resolves the starting mode: the persisted choice, else the ambient
// preference reported by the client, else light. Pages render only after Init.
func (h *Holder) Init(ctx context.Context, visitorID string, ambient Mode) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.key = SlotKey(visitorID)
	h.mode = Light
	if ambient == Dark {
		h.mode = Dark
	}
	defer func() { h.ready = true }()

	raw, err := h.slots.Get(ctx, h.key)
	if errors.Is(err, kv.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load theme: %w", err)
	}
	var stored string
	if err := json.Unmarshal(raw, &stored); err != nil {
		return fmt.Errorf("decode theme: %w", err)
	}
	if m, err := ParseMode(stored); err == nil {
		h.mode = m
	}
	return nil
}

func (h *Holder) Mode() Mode {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mode
}

func (h *Holder) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ready
}

func (h *Holder) IsDark() bool {
	return h.Mode() == Dark
}

// RootClass is the class placed on the page root element.
func (h *Holder) RootClass() string {
	if h.IsDark() {
		return "dark"
	}
	return ""
}

func (h *Holder) Toggle(ctx context.Context) (Mode, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	next := Dark
	if h.mode == Dark {
		next = Light
	}
	return next, h.setLocked(ctx, next)
}

func (h *Holder) Set(ctx context.Context, m Mode) error {
	if _, err := ParseMode(string(m)); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.setLocked(ctx, m)
}

func (h *Holder) setLocked(ctx context.Context, m Mode) error {
	if h.key != "" {
		raw, _ := json.Marshal(string(m))
		if err := h.slots.Set(ctx, h.key, raw, 0); err != nil {
			return fmt.Errorf("save theme: %w", err)
		}
	}
	h.mode = m
	return nil
}
