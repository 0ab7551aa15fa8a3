package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"

	"storefront-backend/internal/models"
)

var (
	ErrNotFound    = errors.New("product not found")
	ErrUnavailable = errors.New("product store is not configured")
)

// Query is the store-level listing request. Price bounds apply to the
// effective price. Keywords match when any of them is in the product's
// search keyword set.
type Query struct {
	Category    string
	Subcategory string
	MinPrice    *float64
	MaxPrice    *float64
	Keywords    []string
	Featured    *bool
	ActiveOnly  bool
	SortField   string
	Desc        bool
	Offset      int
	Limit       int
}

type Repository interface {
	List(ctx context.Context, q Query) ([]models.Product, error)
	Get(ctx context.Context, id string) (models.Product, error)
	// Create stores p and returns it with its assigned id.
	Create(ctx context.Context, p models.Product) (models.Product, error)
	// Update replaces the stored product; ErrNotFound when absent.
	Update(ctx context.Context, p models.Product) error
	// Delete removes the product. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error
}

// Matches reports whether p satisfies the filter part of q.
func (q Query) Matches(p models.Product) bool {
	if q.Category != "" && p.Category != q.Category {
		return false
	}
	if q.Subcategory != "" && p.Subcategory != q.Subcategory {
		return false
	}
	if q.MinPrice != nil && p.EffectivePrice < *q.MinPrice {
		return false
	}
	if q.MaxPrice != nil && p.EffectivePrice > *q.MaxPrice {
		return false
	}
	if q.Featured != nil && p.IsFeatured != *q.Featured {
		return false
	}
	if q.ActiveOnly && !p.IsActive {
		return false
	}
	if len(q.Keywords) > 0 && !anyKeyword(p.SearchKeywords, q.Keywords) {
		return false
	}
	return true
}

func anyKeyword(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

// SortProducts orders products in place by a whitelisted field name.
func SortProducts(products []models.Product, field string, desc bool) {
	less := func(a, b models.Product) bool {
		switch field {
		case FieldUpdatedAt:
			return a.UpdatedAt.Before(b.UpdatedAt)
		case FieldEffectivePrice:
			return a.EffectivePrice < b.EffectivePrice
		case FieldName:
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		case FieldRating:
			return a.Rating < b.Rating
		case FieldViews:
			return a.Views < b.Views
		case FieldSales:
			return a.Sales < b.Sales
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(products, func(i, j int) bool {
		if desc {
			return less(products[j], products[i])
		}
		return less(products[i], products[j])
	})
}

// Page applies offset and limit to an already sorted slice.
func Page(products []models.Product, offset, limit int) []models.Product {
	if offset >= len(products) {
		return []models.Product{}
	}
	if offset > 0 {
		products = products[offset:]
	}
	if limit > 0 && limit < len(products) {
		products = products[:limit]
	}
	return products
}

// Unavailable is wired when no product store is configured; every call fails.
type Unavailable struct{}

func (Unavailable) List(context.Context, Query) ([]models.Product, error) {
	return nil, ErrUnavailable
}

func (Unavailable) Get(context.Context, string) (models.Product, error) {
	return models.Product{}, ErrUnavailable
}

func (Unavailable) Create(context.Context, models.Product) (models.Product, error) {
	return models.Product{}, ErrUnavailable
}

func (Unavailable) Update(context.Context, models.Product) error { return ErrUnavailable }

func (Unavailable) Delete(context.Context, string) error { return ErrUnavailable }
