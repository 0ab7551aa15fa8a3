package models

import (
	"strings"
	"time"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleModerator:
		return true
	}
	return false
}

// Privileged reports whether the role may manage the catalog.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleModerator
}

const DefaultBadge = "Bronze"

type User struct {
	ID           string    `bson:"-" json:"id"`
	Name         string    `bson:"name" json:"name"`
	Email        string    `bson:"email" json:"email"`
	PasswordHash string    `bson:"passwordHash" json:"-"`
	Role         Role      `bson:"role" json:"role"`
	Badge        string    `bson:"badge" json:"badge"`
	Orders       int       `bson:"orders" json:"orders"`
	TotalSpent   float64   `bson:"totalSpent" json:"totalSpent"`
	IsActive     bool      `bson:"isActive" json:"isActive"`
	CreatedAt    time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt" json:"updatedAt"`
}

type SEO struct {
	Title       string   `bson:"title" json:"title"`
	Description string   `bson:"description" json:"description"`
	Keywords    []string `bson:"keywords" json:"keywords"`
}

type Product struct {
	ID             string            `bson:"-" json:"id"`
	Name           string            `bson:"name" json:"name"`
	Description    string            `bson:"description" json:"description"`
	Price          float64           `bson:"price" json:"price"`
	SalePrice      *float64          `bson:"salePrice" json:"salePrice"`
	EffectivePrice float64           `bson:"effectivePrice" json:"effectivePrice"`
	Category       string            `bson:"category" json:"category"`
	Subcategory    string            `bson:"subcategory" json:"subcategory"`
	Images         []string          `bson:"images" json:"images"`
	Sizes          []string          `bson:"sizes" json:"sizes"`
	Colors         []string          `bson:"colors" json:"colors"`
	Tags           []string          `bson:"tags" json:"tags"`
	Inventory      int               `bson:"inventory" json:"inventory"`
	Specifications map[string]string `bson:"specifications" json:"specifications"`
	SearchKeywords []string          `bson:"searchKeywords" json:"searchKeywords"`
	SEO            SEO               `bson:"seo" json:"seo"`
	Badge          string            `bson:"badge" json:"badge,omitempty"`
	IsActive       bool              `bson:"isActive" json:"isActive"`
	IsFeatured     bool              `bson:"isFeatured" json:"isFeatured"`
	Views          int               `bson:"views" json:"views"`
	Sales          int               `bson:"sales" json:"sales"`
	Rating         float64           `bson:"rating" json:"rating"`
	ReviewCount    int               `bson:"reviewCount" json:"reviewCount"`
	CreatedAt      time.Time         `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time         `bson:"updatedAt" json:"updatedAt"`
}

// FinalPrice is the sale price when one is set, else the list price.
func (p Product) FinalPrice() float64 {
	if p.SalePrice != nil && *p.SalePrice > 0 {
		return *p.SalePrice
	}
	return p.Price
}

// OnSale reports whether a meaningful discount applies.
func (p Product) OnSale() bool {
	return p.SalePrice != nil && *p.SalePrice > 0 && *p.SalePrice < p.Price
}

// DiscountPercent rounds the sale discount to the nearest whole percent.
func (p Product) DiscountPercent() int {
	if !p.OnSale() || p.Price <= 0 {
		return 0
	}
	pct := (p.Price - *p.SalePrice) / p.Price * 100
	return int(pct + 0.5)
}

// PrimaryImage returns the first image reference, or "" when the product has none.
func (p Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

type CartItem struct {
	ID            string    `json:"id"`
	ProductID     string    `json:"productId"`
	Name          string    `json:"name"`
	Price         float64   `json:"price"`
	OriginalPrice float64   `json:"originalPrice"`
	Image         string    `json:"image"`
	Quantity      int       `json:"quantity"`
	Size          string    `json:"size"`
	Color         string    `json:"color"`
	AddedAt       time.Time `json:"addedAt"`
}

// CartItemID builds the composite line key of product, size and color.
func CartItemID(productID, size, color string) string {
	return strings.Join([]string{productID, size, color}, "_")
}
