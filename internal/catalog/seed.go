package catalog

import (
	"strconv"
	"time"

	"storefront-backend/internal/models"
)

var seedEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type seedProduct struct {
	name, description     string
	price, salePrice      float64
	category, subcategory string
	image                 string
	rating                float64
	reviews               int
	badge                 string
	featured              bool
}

var seedProducts = []seedProduct{
	{"Premium Cotton T-Shirt", "Soft breathable cotton tee for everyday wear", 1200, 999, "men", "t-shirts",
		"https://images.unsplash.com/photo-1521572163474-6864f9cf17ab?w=400&h=400&fit=crop&crop=center", 4.8, 124, "Best Seller", true},
	{"Denim Jacket", "Classic denim jacket with a modern fit", 3500, 2800, "men", "jackets",
		"https://images.unsplash.com/photo-1542272604-787c3835535d?w=400&h=400&fit=crop&crop=center", 4.6, 89, "Sale", true},
	{"Summer Dress", "Light floral dress for warm days", 2200, 1800, "women", "dresses",
		"https://images.unsplash.com/photo-1515372039744-b8f02a3ae446?w=400&h=400&fit=crop&crop=center", 4.9, 156, "Trending", true},
	{"Casual Sneakers", "Comfortable sneakers for daily wear", 4500, 3600, "accessories", "shoes",
		"https://images.unsplash.com/photo-1549298916-b41d501d3772?w=400&h=400&fit=crop&crop=center", 4.7, 203, "Popular", true},
	{"Elegant Blouse", "Silky blouse for office and evening", 1800, 1500, "women", "tops",
		"https://images.unsplash.com/photo-1594633312681-425c7b97ccd1?w=400&h=400&fit=crop&crop=center", 4.5, 78, "New", false},
	{"Kids T-Shirt", "Durable cotton tee for kids", 800, 650, "kids", "t-shirts",
		"https://images.unsplash.com/photo-1503944583220-79d8926ad5e2?w=400&h=400&fit=crop&crop=center", 4.4, 45, "Kids", false},
}

// SeedCatalog returns the shop's statically seeded products. Ids are "1".."6"
// and creation time increases with id.
func SeedCatalog() []models.Product {
	out := make([]models.Product, 0, len(seedProducts))
	for i, s := range seedProducts {
		sale := s.salePrice
		created := seedEpoch.Add(time.Duration(i) * 24 * time.Hour)
		p := models.Product{
			ID:             strconv.Itoa(i + 1),
			Name:           s.name,
			Description:    s.description,
			Price:          s.price,
			SalePrice:      &sale,
			Category:       s.category,
			Subcategory:    s.subcategory,
			Images:         []string{s.image},
			Sizes:          []string{"S", "M", "L", "XL"},
			Colors:         []string{},
			Tags:           []string{},
			Inventory:      50,
			Specifications: map[string]string{},
			Badge:          s.badge,
			IsActive:       true,
			IsFeatured:     s.featured,
			Rating:         s.rating,
			ReviewCount:    s.reviews,
			CreatedAt:      created,
			UpdatedAt:      created,
		}
		p.EffectivePrice = p.FinalPrice()
		p.SearchKeywords = Keywords(p.Name, p.Description, p.Category, p.Subcategory, p.Tags)
		p.SEO = models.SEO{Title: p.Name, Description: p.Description, Keywords: []string{}}
		out = append(out, p)
	}
	return out
}
