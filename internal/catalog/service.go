package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"storefront-backend/internal/events"
	"storefront-backend/internal/models"
)

const (
	DefaultLimit  = 12
	MaxLimit      = 100
	FeaturedLimit = 8
)

// Sortable fields as exposed on the list endpoint. "price" sorts by the
// effective price.
const (
	FieldCreatedAt      = "createdAt"
	FieldUpdatedAt      = "updatedAt"
	FieldPrice          = "price"
	FieldEffectivePrice = "effectivePrice"
	FieldName           = "name"
	FieldRating         = "rating"
	FieldViews          = "views"
	FieldSales          = "sales"
)

var sortFields = map[string]string{
	FieldCreatedAt: FieldCreatedAt,
	FieldUpdatedAt: FieldUpdatedAt,
	FieldPrice:     FieldEffectivePrice,
	FieldName:      FieldName,
	FieldRating:    FieldRating,
	FieldViews:     FieldViews,
	FieldSales:     FieldSales,
}

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

type ListParams struct {
	Category    string
	Subcategory string
	MinPrice    *float64
	MaxPrice    *float64
	SortBy      string
	Order       string
	Page        int
	Limit       int
	Search      string
}

// ListResult carries one page. Total is the number of products returned on
// this page, not the number matching.
type ListResult struct {
	Products []models.Product
	Page     int
	Limit    int
	Total    int
}

type ProductInput struct {
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Price          float64           `json:"price"`
	SalePrice      *float64          `json:"salePrice"`
	Category       string            `json:"category"`
	Subcategory    string            `json:"subcategory"`
	Images         []string          `json:"images"`
	Sizes          []string          `json:"sizes"`
	Colors         []string          `json:"colors"`
	Tags           []string          `json:"tags"`
	Inventory      int               `json:"inventory"`
	Specifications map[string]string `json:"specifications"`
	SEOTitle       string            `json:"seoTitle"`
	SEODescription string            `json:"seoDescription"`
	SEOKeywords    []string          `json:"seoKeywords"`
	Badge          string            `json:"badge"`
	IsFeatured     bool              `json:"isFeatured"`
}

// NullableFloat distinguishes an absent JSON field from an explicit null.
type NullableFloat struct {
	Set   bool
	Value *float64
}

func (n *NullableFloat) UnmarshalJSON(data []byte) error {
	n.Set = true
	if string(data) == "null" {
		n.Value = nil
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// ProductPatch lists the caller-editable fields. Server-managed fields (id,
// createdAt, views, sales, rating, reviewCount) have no slot here, so they are
// dropped when a request body is decoded into it.
type ProductPatch struct {
	Name           *string            `json:"name"`
	Description    *string            `json:"description"`
	Price          *float64           `json:"price"`
	SalePrice      NullableFloat      `json:"salePrice"`
	Category       *string            `json:"category"`
	Subcategory    *string            `json:"subcategory"`
	Images         *[]string          `json:"images"`
	Sizes          *[]string          `json:"sizes"`
	Colors         *[]string          `json:"colors"`
	Tags           *[]string          `json:"tags"`
	Inventory      *int               `json:"inventory"`
	Specifications *map[string]string `json:"specifications"`
	SEO            *models.SEO        `json:"seo"`
	Badge          *string            `json:"badge"`
	IsActive       *bool              `json:"isActive"`
	IsFeatured     *bool              `json:"isFeatured"`
}

type Service struct {
	repo      Repository
	publisher events.Publisher
	now       func() time.Time
}

func NewService(repo Repository, publisher events.Publisher) *Service {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Service{repo: repo, publisher: publisher, now: time.Now}
}

func (s *Service) List(ctx context.Context, params ListParams) (ListResult, error) {
	field, desc, err := resolveSort(params.SortBy, params.Order)
	if err != nil {
		return ListResult{}, err
	}
	if params.MinPrice != nil && params.MaxPrice != nil && *params.MinPrice > *params.MaxPrice {
		return ListResult{}, invalid("minPrice must not exceed maxPrice")
	}
	page, limit, err := normalizePage(params.Page, params.Limit)
	if err != nil {
		return ListResult{}, err
	}

	products, err := s.repo.List(ctx, Query{
		Category:    params.Category,
		Subcategory: params.Subcategory,
		MinPrice:    params.MinPrice,
		MaxPrice:    params.MaxPrice,
		Keywords:    SearchTerms(params.Search),
		SortField:   field,
		Desc:        desc,
		Offset:      (page - 1) * limit,
		Limit:       limit,
	})
	if err != nil {
		return ListResult{}, fmt.Errorf("list products: %w", err)
	}
	return ListResult{Products: products, Page: page, Limit: limit, Total: len(products)}, nil
}

func (s *Service) Get(ctx context.Context, id string) (models.Product, error) {
	if strings.TrimSpace(id) == "" {
		return models.Product{}, ErrNotFound
	}
	return s.repo.Get(ctx, id)
}

// All returns every product, newest first.
func (s *Service) All(ctx context.Context) ([]models.Product, error) {
	return s.repo.List(ctx, Query{SortField: FieldCreatedAt, Desc: true})
}

func (s *Service) Featured(ctx context.Context) ([]models.Product, error) {
	featured := true
	return s.repo.List(ctx, Query{
		Featured:   &featured,
		ActiveOnly: true,
		SortField:  FieldCreatedAt,
		Desc:       true,
		Limit:      FeaturedLimit,
	})
}

func (s *Service) ByCategory(ctx context.Context, category string, page, limit int) (ListResult, error) {
	page, limit, err := normalizePage(page, limit)
	if err != nil {
		return ListResult{}, err
	}
	products, err := s.repo.List(ctx, Query{
		Category:   category,
		ActiveOnly: true,
		SortField:  FieldCreatedAt,
		Desc:       true,
		Offset:     (page - 1) * limit,
		Limit:      limit,
	})
	if err != nil {
		return ListResult{}, fmt.Errorf("list category %s: %w", category, err)
	}
	return ListResult{Products: products, Page: page, Limit: limit, Total: len(products)}, nil
}

func (s *Service) Create(ctx context.Context, in ProductInput) (models.Product, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Description) == "" ||
		in.Price <= 0 || strings.TrimSpace(in.Category) == "" || len(in.Images) == 0 {
		return models.Product{}, invalid("Missing required fields")
	}
	salePrice, err := checkSalePrice(in.SalePrice, in.Price)
	if err != nil {
		return models.Product{}, err
	}
	if in.Inventory < 0 {
		return models.Product{}, invalid("inventory must not be negative")
	}

	now := s.now().UTC()
	p := models.Product{
		Name:           in.Name,
		Description:    in.Description,
		Price:          in.Price,
		SalePrice:      salePrice,
		Category:       in.Category,
		Subcategory:    in.Subcategory,
		Images:         in.Images,
		Sizes:          orEmpty(in.Sizes),
		Colors:         orEmpty(in.Colors),
		Tags:           orEmpty(in.Tags),
		Inventory:      in.Inventory,
		Specifications: in.Specifications,
		Badge:          in.Badge,
		IsActive:       true,
		IsFeatured:     in.IsFeatured,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if p.Specifications == nil {
		p.Specifications = map[string]string{}
	}
	p.SEO = models.SEO{
		Title:       firstNonEmpty(in.SEOTitle, in.Name),
		Description: firstNonEmpty(in.SEODescription, in.Description),
		Keywords:    in.SEOKeywords,
	}
	if len(p.SEO.Keywords) == 0 {
		p.SEO.Keywords = p.Tags
	}
	p.SearchKeywords = Keywords(p.Name, p.Description, p.Category, p.Subcategory, p.Tags)
	p.EffectivePrice = p.FinalPrice()

	created, err := s.repo.Create(ctx, p)
	if err != nil {
		return models.Product{}, fmt.Errorf("create product: %w", err)
	}
	s.publish(ctx, events.ProductCreated, created.ID, &created)
	return created, nil
}

func (s *Service) Update(ctx context.Context, id string, patch ProductPatch) (models.Product, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return models.Product{}, err
	}

	reindex := false
	if patch.Name != nil {
		if strings.TrimSpace(*patch.Name) == "" {
			return models.Product{}, invalid("name must not be empty")
		}
		p.Name = *patch.Name
		reindex = true
	}
	if patch.Description != nil {
		p.Description = *patch.Description
		reindex = true
	}
	if patch.Category != nil {
		if strings.TrimSpace(*patch.Category) == "" {
			return models.Product{}, invalid("category must not be empty")
		}
		p.Category = *patch.Category
		reindex = true
	}
	if patch.Subcategory != nil {
		p.Subcategory = *patch.Subcategory
		reindex = true
	}
	if patch.Tags != nil {
		p.Tags = orEmpty(*patch.Tags)
		reindex = true
	}
	if patch.Price != nil {
		if *patch.Price <= 0 {
			return models.Product{}, invalid("price must be greater than zero")
		}
		p.Price = *patch.Price
	}
	if patch.SalePrice.Set {
		p.SalePrice = patch.SalePrice.Value
	}
	if p.SalePrice, err = checkSalePrice(p.SalePrice, p.Price); err != nil {
		return models.Product{}, err
	}
	if patch.Images != nil {
		if len(*patch.Images) == 0 {
			return models.Product{}, invalid("images must not be empty")
		}
		p.Images = *patch.Images
	}
	if patch.Sizes != nil {
		p.Sizes = orEmpty(*patch.Sizes)
	}
	if patch.Colors != nil {
		p.Colors = orEmpty(*patch.Colors)
	}
	if patch.Inventory != nil {
		if *patch.Inventory < 0 {
			return models.Product{}, invalid("inventory must not be negative")
		}
		p.Inventory = *patch.Inventory
	}
	if patch.Specifications != nil {
		p.Specifications = *patch.Specifications
	}
	if patch.SEO != nil {
		p.SEO = *patch.SEO
	}
	if patch.Badge != nil {
		p.Badge = *patch.Badge
	}
	if patch.IsActive != nil {
		p.IsActive = *patch.IsActive
	}
	if patch.IsFeatured != nil {
		p.IsFeatured = *patch.IsFeatured
	}

	if reindex {
		p.SearchKeywords = Keywords(p.Name, p.Description, p.Category, p.Subcategory, p.Tags)
	}
	p.EffectivePrice = p.FinalPrice()
	p.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, p); err != nil {
		return models.Product{}, fmt.Errorf("update product %s: %w", id, err)
	}
	s.publish(ctx, events.ProductUpdated, p.ID, &p)
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	s.publish(ctx, events.ProductDeleted, id, nil)
	return nil
}

// AddImage appends an uploaded image reference to the product.
func (s *Service) AddImage(ctx context.Context, id, url string) (models.Product, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return models.Product{}, err
	}
	p.Images = append(p.Images, url)
	p.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, p); err != nil {
		return models.Product{}, fmt.Errorf("add image to %s: %w", id, err)
	}
	s.publish(ctx, events.ProductUpdated, p.ID, &p)
	return p, nil
}

// SeedIfEmpty writes the seed catalog when the store holds no products.
func (s *Service) SeedIfEmpty(ctx context.Context) (int, error) {
	existing, err := s.repo.List(ctx, Query{Limit: 1})
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	n := 0
	for _, p := range SeedCatalog() {
		p.ID = ""
		if _, err := s.repo.Create(ctx, p); err != nil {
			return n, fmt.Errorf("seed %q: %w", p.Name, err)
		}
		n++
	}
	return n, nil
}

func (s *Service) publish(ctx context.Context, typ, id string, p *models.Product) {
	err := s.publisher.Publish(ctx, events.Event{Type: typ, ProductID: id, Product: p, OccurredAt: s.now().UTC()})
	if err != nil {
		slog.Warn("Failed to publish product event", "type", typ, "product_id", id, "error", err)
	}
}

// IsValidation reports whether err is a caller input failure.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func resolveSort(sortBy, order string) (string, bool, error) {
	switch sortBy {
	case SortNewest:
		return FieldCreatedAt, true, nil
	case SortPriceLow:
		return FieldEffectivePrice, false, nil
	case SortPriceHigh:
		return FieldEffectivePrice, true, nil
	case SortRating:
		return FieldRating, true, nil
	}
	if sortBy == "" {
		sortBy = FieldCreatedAt
	}
	field, ok := sortFields[sortBy]
	if !ok {
		return "", false, invalid("unsupported sortBy %q", sortBy)
	}
	switch strings.ToLower(order) {
	case "", "desc":
		return field, true, nil
	case "asc":
		return field, false, nil
	}
	return "", false, invalid("order must be asc or desc")
}

// normalizePage clamps limit into [1, MaxLimit] and page to at least 1. A
// page whose offset would overflow int is rejected.
func normalizePage(page, limit int) (int, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if page-1 > math.MaxInt/limit {
		return 0, 0, invalid("page is out of range")
	}
	return page, limit, nil
}

func checkSalePrice(sale *float64, price float64) (*float64, error) {
	if sale == nil || *sale == 0 {
		return nil, nil
	}
	if *sale < 0 || *sale >= price {
		return nil, invalid("salePrice must be greater than zero and less than price")
	}
	v := *sale
	return &v, nil
}

func orEmpty(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
