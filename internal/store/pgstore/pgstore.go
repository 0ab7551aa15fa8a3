// Package pgstore keeps products in PostgreSQL through gorm.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"storefront-backend/internal/catalog"
	"storefront-backend/internal/models"
)

func Connect(ctx context.Context, databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		PrepareStmt:    true,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("gorm sql db: %w", err)
	}
	sqlDB.SetConnMaxIdleTime(15 * time.Minute)
	sqlDB.SetConnMaxLifetime(time.Hour)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

type productRow struct {
	ID             string  `gorm:"primaryKey;type:uuid"`
	Name           string  `gorm:"not null"`
	Description    string  `gorm:"not null"`
	Price          float64 `gorm:"not null"`
	SalePrice      *float64
	EffectivePrice float64 `gorm:"index"`
	Category       string  `gorm:"index"`
	Subcategory    string
	Images         []string          `gorm:"type:jsonb;serializer:json"`
	Sizes          []string          `gorm:"type:jsonb;serializer:json"`
	Colors         []string          `gorm:"type:jsonb;serializer:json"`
	Tags           []string          `gorm:"type:jsonb;serializer:json"`
	Inventory      int               `gorm:"not null;default:0"`
	Specifications map[string]string `gorm:"type:jsonb;serializer:json"`
	SearchKeywords []string          `gorm:"type:jsonb;serializer:json"`
	SEO            models.SEO        `gorm:"column:seo;type:jsonb;serializer:json"`
	Badge          string
	IsActive       bool `gorm:"index"`
	IsFeatured     bool
	Views          int
	Sales          int
	Rating         float64
	ReviewCount    int
	CreatedAt      time.Time `gorm:"index"`
	UpdatedAt      time.Time
}

func (productRow) TableName() string { return "products" }

var sortColumns = map[string]string{
	catalog.FieldCreatedAt:      "created_at",
	catalog.FieldUpdatedAt:      "updated_at",
	catalog.FieldEffectivePrice: "effective_price",
	catalog.FieldName:           "name",
	catalog.FieldRating:         "rating",
	catalog.FieldViews:          "views",
	catalog.FieldSales:          "sales",
}

type Products struct {
	db *gorm.DB
}

func NewProducts(db *gorm.DB) *Products {
	return &Products{db: db}
}

func (r *Products) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&productRow{}); err != nil {
		return fmt.Errorf("migrate products: %w", err)
	}
	return nil
}

func (r *Products) List(ctx context.Context, q catalog.Query) ([]models.Product, error) {
	tx := r.db.WithContext(ctx).Model(&productRow{})
	if q.Category != "" {
		tx = tx.Where("category = ?", q.Category)
	}
	if q.Subcategory != "" {
		tx = tx.Where("subcategory = ?", q.Subcategory)
	}
	if q.MinPrice != nil {
		tx = tx.Where("effective_price >= ?", *q.MinPrice)
	}
	if q.MaxPrice != nil {
		tx = tx.Where("effective_price <= ?", *q.MaxPrice)
	}
	if q.Featured != nil {
		tx = tx.Where("is_featured = ?", *q.Featured)
	}
	if q.ActiveOnly {
		tx = tx.Where("is_active = ?", true)
	}
	if len(q.Keywords) > 0 {
		tx = tx.Where("jsonb_exists_any(search_keywords, ?)", pq.Array(q.Keywords))
	}
	tx = tx.Order(OrderClause(q))
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var rows []productRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	out := make([]models.Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.model())
	}
	return out, nil
}

// OrderClause builds the ORDER BY for a query from the column whitelist.
func OrderClause(q catalog.Query) string {
	col, ok := sortColumns[q.SortField]
	if !ok {
		col = "created_at"
	}
	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	return col + " " + dir + ", id " + dir
}

func (r *Products) Get(ctx context.Context, id string) (models.Product, error) {
	if _, err := uuid.Parse(id); err != nil {
		return models.Product{}, catalog.ErrNotFound
	}
	var row productRow
	err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Product{}, catalog.ErrNotFound
	}
	if err != nil {
		return models.Product{}, fmt.Errorf("get product: %w", err)
	}
	return row.model(), nil
}

func (r *Products) Create(ctx context.Context, p models.Product) (models.Product, error) {
	p.ID = uuid.NewString()
	row := toRow(p)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return models.Product{}, fmt.Errorf("create product: %w", err)
	}
	return row.model(), nil
}

func (r *Products) Update(ctx context.Context, p models.Product) error {
	if _, err := uuid.Parse(p.ID); err != nil {
		return catalog.ErrNotFound
	}
	row := toRow(p)
	res := r.db.WithContext(ctx).Model(&productRow{ID: p.ID}).Select("*").Omit("id").Updates(&row)
	if res.Error != nil {
		return fmt.Errorf("update product: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func (r *Products) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return nil
	}
	if err := r.db.WithContext(ctx).Delete(&productRow{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

func toRow(p models.Product) productRow {
	return productRow{
		ID:             p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Price:          p.Price,
		SalePrice:      p.SalePrice,
		EffectivePrice: p.EffectivePrice,
		Category:       p.Category,
		Subcategory:    p.Subcategory,
		Images:         p.Images,
		Sizes:          p.Sizes,
		Colors:         p.Colors,
		Tags:           p.Tags,
		Inventory:      p.Inventory,
		Specifications: p.Specifications,
		SearchKeywords: p.SearchKeywords,
		SEO:            p.SEO,
		Badge:          p.Badge,
		IsActive:       p.IsActive,
		IsFeatured:     p.IsFeatured,
		Views:          p.Views,
		Sales:          p.Sales,
		Rating:         p.Rating,
		ReviewCount:    p.ReviewCount,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func (row productRow) model() models.Product {
	return models.Product{
		ID:             row.ID,
		Name:           row.Name,
		Description:    row.Description,
		Price:          row.Price,
		SalePrice:      row.SalePrice,
		EffectivePrice: row.EffectivePrice,
		Category:       row.Category,
		Subcategory:    row.Subcategory,
		Images:         row.Images,
		Sizes:          row.Sizes,
		Colors:         row.Colors,
		Tags:           row.Tags,
		Inventory:      row.Inventory,
		Specifications: row.Specifications,
		SearchKeywords: row.SearchKeywords,
		SEO:            row.SEO,
		Badge:          row.Badge,
		IsActive:       row.IsActive,
		IsFeatured:     row.IsFeatured,
		Views:          row.Views,
		Sales:          row.Sales,
		Rating:         row.Rating,
		ReviewCount:    row.ReviewCount,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}
