package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"

	"storefront-backend/internal/auth"
	"storefront-backend/internal/catalog"
	"storefront-backend/internal/kv"
	"storefront-backend/internal/models"
	"storefront-backend/internal/scope"
)

var csrfFieldPattern = regexp.MustCompile(`name="gorilla.csrf.Token" value="([^"]+)"`)

type client struct {
	t       *testing.T
	router  http.Handler
	cookies map[string]*http.Cookie
}

func newClient(t *testing.T) (*client, *auth.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	slots := kv.NewMemory()
	authSvc := auth.NewService(auth.NewMemoryUsers(), slots, auth.Options{
		Secret: []byte("0123456789abcdef0123456789abcdef"),
	})
	scopes := &scope.Builder{Auth: authSvc, Slots: slots}
	templates := NewTemplateCache()
	if err := templates.Load(); err != nil {
		t.Fatalf("load templates: %v", err)
	}
	pages := &Pages{
		Catalog:   catalog.NewService(catalog.NewMemoryRepository(catalog.SeedCatalog()...), nil),
		Auth:      authSvc,
		Scopes:    scopes,
		Sessions:  sessions.NewCookieStore([]byte("fedcba9876543210fedcba9876543210")),
		Templates: templates,
	}

	r := gin.New()
	r.Use(scopes.Middleware())
	pages.Routes(r, CSRF([]byte("abcdefghijklmnopqrstuvwxyz012345"), false, nil))

	return &client{t: t, router: r, cookies: map[string]*http.Cookie{}}, authSvc
}

func (c *client) send(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return w
}

func (c *client) get(path string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	return c.send(req)
}

func (c *client) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.send(req)
}

// token fetches a page and returns the CSRF token embedded in its forms.
func (c *client) token(path string) string {
	c.t.Helper()
	w := c.get(path)
	m := csrfFieldPattern.FindStringSubmatch(w.Body.String())
	if m == nil {
		c.t.Fatalf("no csrf field on %s", path)
	}
	return m[1]
}

func TestHomeShowsFeaturedProducts(t *testing.T) {
	c, _ := newClient(t)

	w := c.get("/")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	body := w.Body.String()
	for _, name := range []string{"Premium Cotton T-Shirt", "Casual Sneakers"} {
		if !strings.Contains(body, name) {
			t.Fatalf("home page missing %q", name)
		}
	}
	if strings.Contains(body, "Kids T-Shirt") {
		t.Fatal("home page lists a product that is not featured")
	}
}

func TestShopFiltersAndSorts(t *testing.T) {
	c, _ := newClient(t)

	body := c.get("/shop?category=women&sort=price-low").Body.String()
	blouse := strings.Index(body, "Elegant Blouse")
	dress := strings.Index(body, "Summer Dress")
	if blouse < 0 || dress < 0 || blouse > dress {
		t.Fatalf("expected blouse before dress, got %d and %d", blouse, dress)
	}
	if strings.Contains(body, "Denim Jacket") {
		t.Fatal("category filter let a men's product through")
	}

	body = c.get("/shop?q=JACKET").Body.String()
	if !strings.Contains(body, "Denim Jacket") || !strings.Contains(body, "1 products") {
		t.Fatal("search should match the jacket only")
	}
}

func TestUnknownProductRendersNotFound(t *testing.T) {
	c, _ := newClient(t)
	if w := c.get("/products/nope"); w.Code != http.StatusNotFound {
		t.Fatalf("status %d", w.Code)
	}
}

func TestThemeFollowsAmbientPreference(t *testing.T) {
	c, _ := newClient(t)
	w := c.get("/", "Sec-CH-Prefers-Color-Scheme", "dark")
	if !strings.Contains(w.Body.String(), `<html lang="en" class="dark">`) {
		t.Fatal("expected dark root class")
	}
}

func TestDashboardRequiresSignIn(t *testing.T) {
	c, _ := newClient(t)
	w := c.get("/dashboard")
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "/auth/login?redirect=%2Fdashboard" {
		t.Fatalf("unexpected redirect %q", loc)
	}
}

func TestFormPostWithoutTokenIsRejected(t *testing.T) {
	c, _ := newClient(t)
	w := c.post("/auth/login", url.Values{"email": {"a@b.co"}, "password": {"secret1"}})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status %d", w.Code)
	}
}

func TestLoginFlow(t *testing.T) {
	c, authSvc := newClient(t)
	if _, err := authSvc.CreateStaff(context.Background(), "Nadia", "nadia@shop.io", "secret1", models.RoleUser); err != nil {
		t.Fatal(err)
	}

	w := c.post("/auth/login", url.Values{
		"gorilla.csrf.Token": {c.token("/auth/login")},
		"email":              {"nadia@shop.io"},
		"password":           {"wrong-pass"},
	})
	if w.Code != http.StatusSeeOther || !strings.HasPrefix(w.Header().Get("Location"), "/auth/login") {
		t.Fatalf("wrong password: status %d location %q", w.Code, w.Header().Get("Location"))
	}
	if !strings.Contains(c.get("/auth/login").Body.String(), "Incorrect password. Please try again.") {
		t.Fatal("expected wrong password flash")
	}

	w = c.post("/auth/login", url.Values{
		"gorilla.csrf.Token": {c.token("/auth/login")},
		"email":              {"nadia@shop.io"},
		"password":           {"secret1"},
		"redirect":           {"/dashboard"},
	})
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/dashboard" {
		t.Fatalf("login: status %d location %q", w.Code, w.Header().Get("Location"))
	}
	if _, ok := c.cookies[scope.TokenCookie]; !ok {
		t.Fatal("session token cookie not set")
	}

	body := c.get("/dashboard").Body.String()
	if !strings.Contains(body, "Hello, Nadia") || !strings.Contains(body, "Welcome back, Nadia!") {
		t.Fatal("dashboard should greet the user")
	}

	w = c.post("/cart/add", url.Values{
		"gorilla.csrf.Token": {c.token("/products/2")},
		"productId":          {"2"},
		"quantity":           {"2"},
		"size":               {"L"},
	})
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/cart" {
		t.Fatalf("add to cart: status %d location %q", w.Code, w.Header().Get("Location"))
	}
	body = c.get("/cart").Body.String()
	if !strings.Contains(body, "Denim Jacket") || !strings.Contains(body, "৳5,600") {
		t.Fatal("cart page should list the jacket with its total")
	}
}

func TestCategoriesPage(t *testing.T) {
	c, _ := newClient(t)
	w := c.get("/categories")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{`data-category="men"`, `data-category="kids"`, "/shop?category=women", "t-shirts, jackets"} {
		if !strings.Contains(body, want) {
			t.Fatalf("categories page missing %q", want)
		}
	}
}

func TestModeratorLoginRequiresStaff(t *testing.T) {
	c, authSvc := newClient(t)
	ctx := context.Background()
	if _, err := authSvc.CreateStaff(ctx, "Nadia", "nadia@shop.io", "secret1", models.RoleUser); err != nil {
		t.Fatal(err)
	}
	if _, err := authSvc.CreateStaff(ctx, "Rafi", "rafi@shop.io", "secret1", models.RoleModerator); err != nil {
		t.Fatal(err)
	}

	w := c.post("/auth/moderator-login", url.Values{
		"gorilla.csrf.Token": {c.token("/auth/moderator-login")},
		"email":              {"nadia@shop.io"},
		"password":           {"secret1"},
	})
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/auth/moderator-login" {
		t.Fatalf("customer login: status %d location %q", w.Code, w.Header().Get("Location"))
	}
	if _, ok := c.cookies[scope.TokenCookie]; ok {
		t.Fatal("customer should not get a session token")
	}
	if !strings.Contains(c.get("/auth/moderator-login").Body.String(), "does not have moderator access") {
		t.Fatal("expected refusal flash")
	}

	w = c.post("/auth/moderator-login", url.Values{
		"gorilla.csrf.Token": {c.token("/auth/moderator-login")},
		"email":              {"rafi@shop.io"},
		"password":           {"secret1"},
	})
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/dashboard" {
		t.Fatalf("moderator login: status %d location %q", w.Code, w.Header().Get("Location"))
	}
	if _, ok := c.cookies[scope.TokenCookie]; !ok {
		t.Fatal("session token cookie not set")
	}
}

func TestSafeRedirect(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"/cart":              "/cart",
		"":                   "/",
		"https://evil.test":  "/",
		"//evil.test/path":   "/",
		"/\\evil.test":       "/",
		"/shop?category=men": "/shop?category=men",
	}
	for in, want := range cases {
		if got := safeRedirect(in, "/"); got != want {
			t.Fatalf("safeRedirect(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormatCurrency(t *testing.T) {
	t.Parallel()
	if got := FormatCurrency(1200); got != "৳1,200" {
		t.Fatalf("got %q", got)
	}
	if got := FormatCurrency(999); got != "৳999" {
		t.Fatalf("got %q", got)
	}
}
