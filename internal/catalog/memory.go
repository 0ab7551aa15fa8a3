package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"storefront-backend/internal/models"
)

// MemoryRepository keeps products in process memory.
type MemoryRepository struct {
	mu       sync.RWMutex
	products map[string]models.Product
}

func NewMemoryRepository(seed ...models.Product) *MemoryRepository {
	r := &MemoryRepository{products: make(map[string]models.Product, len(seed))}
	for _, p := range seed {
		r.products[p.ID] = clone(p)
	}
	return r
}

func (r *MemoryRepository) List(_ context.Context, q Query) ([]models.Product, error) {
	r.mu.RLock()
	out := make([]models.Product, 0, len(r.products))
	for _, p := range r.products {
		if q.Matches(p) {
			out = append(out, clone(p))
		}
	}
	r.mu.RUnlock()

	// map order is random; ties keep id order
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	SortProducts(out, q.SortField, q.Desc)
	return Page(out, q.Offset, q.Limit), nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (models.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	if !ok {
		return models.Product{}, ErrNotFound
	}
	return clone(p), nil
}

func (r *MemoryRepository) Create(_ context.Context, p models.Product) (models.Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	r.mu.Lock()
	r.products[p.ID] = clone(p)
	r.mu.Unlock()
	return p, nil
}

func (r *MemoryRepository) Update(_ context.Context, p models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[p.ID]; !ok {
		return ErrNotFound
	}
	r.products[p.ID] = clone(p)
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	delete(r.products, id)
	r.mu.Unlock()
	return nil
}

func clone(p models.Product) models.Product {
	p.Images = append([]string(nil), p.Images...)
	p.Sizes = append([]string(nil), p.Sizes...)
	p.Colors = append([]string(nil), p.Colors...)
	p.Tags = append([]string(nil), p.Tags...)
	p.SearchKeywords = append([]string(nil), p.SearchKeywords...)
	p.SEO.Keywords = append([]string(nil), p.SEO.Keywords...)
	if p.SalePrice != nil {
		v := *p.SalePrice
		p.SalePrice = &v
	}
	if p.Specifications != nil {
		specs := make(map[string]string, len(p.Specifications))
		for k, v := range p.Specifications {
			specs[k] = v
		}
		p.Specifications = specs
	}
	return p
}
