// Package export renders the catalog as a spreadsheet.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/tealeg/xlsx"

	"storefront-backend/internal/models"
)

var Headers = []string{
	"ID", "Name", "Category", "Subcategory", "Price", "SalePrice", "EffectivePrice",
	"Inventory", "Tags", "Active", "Featured", "Rating", "Reviews", "CreatedAt", "UpdatedAt",
}

// WriteProducts writes a "Products" sheet with a header row and one row per product.
func WriteProducts(w io.Writer, products []models.Product) error {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Products")
	if err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	headerRow := sheet.AddRow()
	for _, h := range Headers {
		headerRow.AddCell().SetValue(h)
	}

	for _, p := range products {
		row := sheet.AddRow()
		row.AddCell().SetValue(p.ID)
		row.AddCell().SetValue(p.Name)
		row.AddCell().SetValue(p.Category)
		row.AddCell().SetValue(p.Subcategory)
		row.AddCell().SetValue(p.Price)
		if p.SalePrice != nil {
			row.AddCell().SetValue(*p.SalePrice)
		} else {
			row.AddCell().SetValue("")
		}
		row.AddCell().SetValue(p.EffectivePrice)
		row.AddCell().SetValue(p.Inventory)
		row.AddCell().SetValue(strings.Join(p.Tags, ","))
		row.AddCell().SetValue(p.IsActive)
		row.AddCell().SetValue(p.IsFeatured)
		row.AddCell().SetValue(p.Rating)
		row.AddCell().SetValue(p.ReviewCount)
		row.AddCell().SetValue(p.CreatedAt.Format("2006-01-02 15:04:05"))
		row.AddCell().SetValue(p.UpdatedAt.Format("2006-01-02 15:04:05"))
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
