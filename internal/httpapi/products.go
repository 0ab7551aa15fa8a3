package httpapi

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"storefront-backend/internal/catalog"
	"storefront-backend/internal/export"
	"storefront-backend/internal/media"
)

type ProductHandler struct {
	Catalog *catalog.Service
	Images  *media.ImageStore
}

func (h *ProductHandler) List(c *gin.Context) {
	params := catalog.ListParams{
		Category:    c.Query("category"),
		Subcategory: c.Query("subcategory"),
		SortBy:      c.Query("sortBy"),
		Order:       c.Query("order"),
		Search:      c.Query("search"),
	}
	var err error
	if params.MinPrice, err = optionalFloat(c, "minPrice"); err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid minPrice value")
		return
	}
	if params.MaxPrice, err = optionalFloat(c, "maxPrice"); err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid maxPrice value")
		return
	}
	if params.Page, err = optionalInt(c, "page"); err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid page value")
		return
	}
	if params.Limit, err = optionalInt(c, "limit"); err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid limit value")
		return
	}

	res, err := h.Catalog.List(c.Request.Context(), params)
	if err != nil {
		h.fail(c, "list products", "Failed to fetch products", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       res.Products,
		"pagination": pagination{Page: res.Page, Limit: res.Limit, Total: res.Total},
	})
}

func (h *ProductHandler) Get(c *gin.Context) {
	p, err := h.Catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "get product", "Failed to fetch product", err)
		return
	}
	respondData(c, http.StatusOK, p)
}

func (h *ProductHandler) Featured(c *gin.Context) {
	products, err := h.Catalog.Featured(c.Request.Context())
	if err != nil {
		h.fail(c, "featured products", "Failed to fetch featured products", err)
		return
	}
	respondData(c, http.StatusOK, products)
}

func (h *ProductHandler) ByCategory(c *gin.Context) {
	page, err := optionalInt(c, "page")
	if err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid page value")
		return
	}
	limit, err := optionalInt(c, "limit")
	if err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid limit value")
		return
	}
	category := c.Param("category")
	res, err := h.Catalog.ByCategory(c.Request.Context(), category, page, limit)
	if err != nil {
		h.fail(c, "products by category", "Failed to fetch products by category", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       res.Products,
		"category":   category,
		"pagination": pagination{Page: res.Page, Limit: res.Limit, Total: res.Total},
	})
}

func (h *ProductHandler) Create(c *gin.Context) {
	var in catalog.ProductInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	p, err := h.Catalog.Create(c.Request.Context(), in)
	if err != nil {
		h.fail(c, "create product", "Failed to create product", err)
		return
	}
	respondMessage(c, http.StatusCreated, "Product created successfully", p)
}

func (h *ProductHandler) Update(c *gin.Context) {
	var patch catalog.ProductPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	p, err := h.Catalog.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.fail(c, "update product", "Failed to update product", err)
		return
	}
	respondMessage(c, http.StatusOK, "Product updated successfully", p)
}

func (h *ProductHandler) Delete(c *gin.Context) {
	if err := h.Catalog.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, "delete product", "Failed to delete product", err)
		return
	}
	respondMessage(c, http.StatusOK, "Product deleted successfully", nil)
}

// multipart framing on top of the image bytes
const uploadOverhead = 1 << 20

func (h *ProductHandler) UploadImage(c *gin.Context) {
	if h.Images.MaxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Images.MaxBytes+uploadOverhead)
	}
	fileHeader, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondFail(c, http.StatusRequestEntityTooLarge, media.ErrImageTooLarge.Error())
			return
		}
		respondFail(c, http.StatusBadRequest, "Image file is required")
		return
	}
	// fail fast on unknown ids before decoding the upload
	if _, err := h.Catalog.Get(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, "upload image", "Failed to upload image", err)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respondFail(c, http.StatusBadRequest, "Unable to read image file")
		return
	}
	defer file.Close()

	url, err := h.Images.Save(fileHeader.Filename, file)
	switch {
	case errors.Is(err, media.ErrImageTooLarge):
		respondFail(c, http.StatusRequestEntityTooLarge, media.ErrImageTooLarge.Error())
		return
	case errors.Is(err, media.ErrUnsupportedFormat), errors.Is(err, media.ErrInvalidImage):
		respondFail(c, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		respondError(c, "save image", "Failed to upload image", err)
		return
	}
	p, err := h.Catalog.AddImage(c.Request.Context(), c.Param("id"), url)
	if err != nil {
		if rmErr := h.Images.Remove(url); rmErr != nil {
			slog.Warn("Failed to remove orphaned image", "url", url, "error", rmErr)
		}
		h.fail(c, "attach image", "Failed to upload image", err)
		return
	}
	respondMessage(c, http.StatusCreated, "Image uploaded successfully", p)
}

func (h *ProductHandler) Export(c *gin.Context) {
	products, err := h.Catalog.All(c.Request.Context())
	if err != nil {
		h.fail(c, "export products", "Failed to export products", err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteProducts(&buf, products); err != nil {
		respondError(c, "export products", "Failed to write Excel file", err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=products.xlsx")
	c.Header("Content-Transfer-Encoding", "binary")
	c.Header("Expires", "0")
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

func (h *ProductHandler) fail(c *gin.Context, op, message string, err error) {
	var verr *catalog.ValidationError
	switch {
	case errors.As(err, &verr):
		respondFail(c, http.StatusBadRequest, verr.Message)
	case errors.Is(err, catalog.ErrNotFound):
		respondFail(c, http.StatusNotFound, "Product not found")
	default:
		respondError(c, op, message, err)
	}
}

func optionalFloat(c *gin.Context, key string) (*float64, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func optionalInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
