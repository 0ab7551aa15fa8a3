package catalog

import (
	"slices"
	"sort"
	"strings"

	"storefront-backend/internal/models"
)

const (
	SortNewest    = "newest"
	SortPriceLow  = "price-low"
	SortPriceHigh = "price-high"
	SortRating    = "rating"
)

const CategoryAll = "all"

// ShopFilter is the shop view's predicate set. Max <= 0 leaves the range open
// at the top.
type ShopFilter struct {
	Query    string
	Category string
	Min      float64
	Max      float64
	Sort     string
}

func DefaultShopFilter() ShopFilter {
	return ShopFilter{Category: CategoryAll, Min: 0, Max: 10000, Sort: SortNewest}
}

// Filter recomputes the shop view from scratch. The input slice is not modified.
func Filter(products []models.Product, f ShopFilter) []models.Product {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if q != "" &&
			!strings.Contains(strings.ToLower(p.Name), q) &&
			!strings.Contains(strings.ToLower(p.Category), q) {
			continue
		}
		if f.Category != "" && f.Category != CategoryAll && p.Category != f.Category {
			continue
		}
		price := p.FinalPrice()
		if price < f.Min {
			continue
		}
		if f.Max > 0 && price > f.Max {
			continue
		}
		out = append(out, p)
	}

	switch f.Sort {
	case SortPriceLow:
		sort.SliceStable(out, func(i, j int) bool { return out[i].FinalPrice() < out[j].FinalPrice() })
	case SortPriceHigh:
		sort.SliceStable(out, func(i, j int) bool { return out[i].FinalPrice() > out[j].FinalPrice() })
	case SortRating:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	default:
		sort.SliceStable(out, func(i, j int) bool { return newer(out[i], out[j]) })
	}
	return out
}

func newer(a, b models.Product) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// Categories lists the distinct categories in first-seen order.
func Categories(products []models.Product) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range products {
		if p.Category == "" || seen[p.Category] {
			continue
		}
		seen[p.Category] = true
		out = append(out, p.Category)
	}
	return out
}

// CategorySummary is one tile on the category browse page.
type CategorySummary struct {
	Name          string
	Count         int
	Image         string
	Subcategories []string
}

// SummarizeCategories groups the active products by category in first-seen
// order.
func SummarizeCategories(products []models.Product) []CategorySummary {
	index := map[string]int{}
	var out []CategorySummary
	for _, p := range products {
		if !p.IsActive || p.Category == "" {
			continue
		}
		i, ok := index[p.Category]
		if !ok {
			i = len(out)
			index[p.Category] = i
			out = append(out, CategorySummary{Name: p.Category, Image: p.PrimaryImage()})
		}
		s := &out[i]
		s.Count++
		if s.Image == "" {
			s.Image = p.PrimaryImage()
		}
		if p.Subcategory != "" && !slices.Contains(s.Subcategories, p.Subcategory) {
			s.Subcategories = append(s.Subcategories, p.Subcategory)
		}
	}
	return out
}
