package web

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"path"
	"sync"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutFile = "layout.html"

// TemplateCache holds each page parsed together with the shared layout.
type TemplateCache struct {
	cache map[string]*template.Template
	mu    sync.RWMutex
	funcs template.FuncMap
}

func NewTemplateCache() *TemplateCache {
	return &TemplateCache{
		cache: make(map[string]*template.Template),
		funcs: template.FuncMap{
			"formatCurrency": FormatCurrency,
			"formatDate":     formatDate,
			"add":            func(a, b int) int { return a + b },
			"sub":            func(a, b int) int { return a - b },
		},
	}
}

// Load parses every embedded page.
func (tc *TemplateCache) Load() error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return err
	}
	for _, file := range files {
		name := path.Base(file)
		if name == layoutFile {
			continue
		}
		tmpl, err := template.New(name).Funcs(tc.funcs).ParseFS(templateFS, "templates/"+layoutFile, file)
		if err != nil {
			slog.Error("Failed to parse template", "file", file, "error", err)
			return fmt.Errorf("parse %s: %w", name, err)
		}
		tc.cache[name] = tmpl
		slog.Debug("Cached template", "name", name)
	}
	return nil
}

func (tc *TemplateCache) Get(name string) *template.Template {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.cache[name]
}

var currencyPrinter = message.NewPrinter(language.English)

// FormatCurrency renders an amount in taka with grouped thousands.
func FormatCurrency(amount float64) string {
	return "৳" + currencyPrinter.Sprintf("%v", number.Decimal(amount, number.MaxFractionDigits(2)))
}

func formatDate(t time.Time) string {
	return t.Format("January 2, 2006")
}
