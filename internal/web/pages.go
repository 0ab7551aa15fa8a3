// Package web serves the server-rendered storefront.
package web

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/csrf"
	"github.com/gorilla/sessions"

	"storefront-backend/internal/auth"
	"storefront-backend/internal/cart"
	"storefront-backend/internal/catalog"
	"storefront-backend/internal/models"
	"storefront-backend/internal/scope"
)

type Pages struct {
	Catalog   *catalog.Service
	Auth      *auth.Service
	Scopes    *scope.Builder
	Sessions  sessions.Store
	Templates *TemplateCache
}

var shopSorts = []struct{ Value, Label string }{
	{catalog.SortNewest, "Newest"},
	{catalog.SortPriceLow, "Price: Low to High"},
	{catalog.SortPriceHigh, "Price: High to Low"},
	{catalog.SortRating, "Highest Rated"},
}

// Routes mounts the pages behind protect, the CSRF middleware.
func (p *Pages) Routes(r gin.IRouter, protect gin.HandlerFunc) {
	g := r.Group("/", protect)

	g.GET("/", p.Home)
	g.GET("/shop", p.Shop)
	g.GET("/categories", p.Categories)
	g.GET("/products/:id", p.ProductDetail)

	g.GET("/cart", p.CartPage)
	g.POST("/cart/add", p.requireUser, p.CartAdd)
	g.POST("/cart/update", p.requireUser, p.CartUpdate)
	g.POST("/cart/remove", p.requireUser, p.CartRemove)
	g.POST("/cart/clear", p.requireUser, p.CartClear)

	g.GET("/auth/login", p.LoginPage)
	g.POST("/auth/login", p.LoginSubmit)
	g.GET("/auth/moderator-login", p.ModeratorLoginPage)
	g.POST("/auth/moderator-login", p.ModeratorLoginSubmit)
	g.GET("/auth/register", p.RegisterPage)
	g.POST("/auth/register", p.RegisterSubmit)
	g.GET("/auth/admin-register", p.AdminRegisterPage)
	g.POST("/auth/admin-register", p.AdminRegisterSubmit)
	g.POST("/auth/logout", p.Logout)

	g.GET("/dashboard", p.requireUser, p.Dashboard)
	g.POST("/theme/toggle", p.ToggleTheme)
}

func (p *Pages) Home(c *gin.Context) {
	featured, err := p.Catalog.Featured(c.Request.Context())
	if err != nil {
		p.fail(c, "featured products", err)
		return
	}
	p.render(c, http.StatusOK, "home.html", gin.H{"Featured": featured})
}

func (p *Pages) Shop(c *gin.Context) {
	f := catalog.DefaultShopFilter()
	f.Query = c.Query("q")
	if v := c.Query("category"); v != "" {
		f.Category = v
	}
	if v, err := strconv.ParseFloat(c.Query("min"), 64); err == nil {
		f.Min = v
	}
	if v, err := strconv.ParseFloat(c.Query("max"), 64); err == nil {
		f.Max = v
	}
	if v := c.Query("sort"); v != "" {
		f.Sort = v
	}

	all, err := p.Catalog.All(c.Request.Context())
	if err != nil {
		p.fail(c, "shop products", err)
		return
	}
	products := catalog.Filter(all, f)
	p.render(c, http.StatusOK, "shop.html", gin.H{
		"Products":   products,
		"Filter":     f,
		"Categories": catalog.Categories(all),
		"Sorts":      shopSorts,
	})
}

func (p *Pages) Categories(c *gin.Context) {
	all, err := p.Catalog.All(c.Request.Context())
	if err != nil {
		p.fail(c, "categories", err)
		return
	}
	p.render(c, http.StatusOK, "categories.html", gin.H{"Categories": catalog.SummarizeCategories(all)})
}

func (p *Pages) ProductDetail(c *gin.Context) {
	product, err := p.Catalog.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		p.fail(c, "get product", err)
		return
	}
	p.render(c, http.StatusOK, "product.html", gin.H{
		"Product": product,
		"InCart":  scope.From(c).Cart.Contains(product.ID),
	})
}

func (p *Pages) CartPage(c *gin.Context) {
	h := scope.From(c).Cart
	p.render(c, http.StatusOK, "cart.html", gin.H{
		"Items": h.Items(),
		"Total": h.Total().InexactFloat64(),
	})
}

func (p *Pages) CartAdd(c *gin.Context) {
	ctx := c.Request.Context()
	quantity := 1
	if v := c.PostForm("quantity"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			p.redirect(c, "/products/"+url.PathEscape(c.PostForm("productId")), failure("Invalid quantity"))
			return
		}
		quantity = n
	}
	product, err := p.Catalog.Get(ctx, c.PostForm("productId"))
	if errors.Is(err, catalog.ErrNotFound) {
		p.redirect(c, "/shop", failure("Product not found"))
		return
	}
	if err != nil {
		p.fail(c, "add to cart", err)
		return
	}
	if !product.IsActive {
		p.redirect(c, "/products/"+url.PathEscape(product.ID), failure("Product is not available"))
		return
	}
	if _, err := scope.From(c).Cart.Add(ctx, product, quantity, c.PostForm("size"), c.PostForm("color")); err != nil {
		p.cartFailed(c, "add to cart", err)
		return
	}
	p.redirect(c, "/cart", success(product.Name+" added to cart"))
}

func (p *Pages) CartUpdate(c *gin.Context) {
	quantity, err := strconv.Atoi(c.PostForm("quantity"))
	if err != nil {
		p.redirect(c, "/cart", failure("Invalid quantity"))
		return
	}
	if err := scope.From(c).Cart.SetQuantity(c.Request.Context(), c.PostForm("itemId"), quantity); err != nil {
		p.cartFailed(c, "update cart", err)
		return
	}
	p.redirect(c, "/cart")
}

func (p *Pages) CartRemove(c *gin.Context) {
	if err := scope.From(c).Cart.Remove(c.Request.Context(), c.PostForm("itemId")); err != nil {
		p.cartFailed(c, "remove cart item", err)
		return
	}
	p.redirect(c, "/cart", success("Item removed"))
}

func (p *Pages) CartClear(c *gin.Context) {
	if err := scope.From(c).Cart.Clear(c.Request.Context()); err != nil {
		p.cartFailed(c, "clear cart", err)
		return
	}
	p.redirect(c, "/cart", success("Cart cleared"))
}

func (p *Pages) cartFailed(c *gin.Context, op string, err error) {
	if errors.Is(err, cart.ErrInvalidQuantity) || errors.Is(err, cart.ErrQuantityLimit) {
		p.redirect(c, "/cart", failure(err.Error()))
		return
	}
	slog.Warn("Cart update failed", "op", op, "error", err)
	p.redirect(c, "/cart", failure("Could not update your cart. Please try again."))
}

func (p *Pages) LoginPage(c *gin.Context) {
	p.render(c, http.StatusOK, "login.html", gin.H{"Redirect": c.Query("redirect")})
}

func (p *Pages) LoginSubmit(c *gin.Context) {
	sc := scope.From(c)
	target := c.PostForm("redirect")
	u, token, err := p.Auth.SignIn(c.Request.Context(), sc.Session, c.PostForm("email"), c.PostForm("password"))
	if err != nil {
		p.authFailed(c, "login", "/auth/login?redirect="+url.QueryEscape(target), "Login failed. Please try again.", err)
		return
	}
	p.Scopes.SetToken(c, token)
	p.redirect(c, safeRedirect(target, "/dashboard"), success("Welcome back, "+u.Name+"!"))
}

func (p *Pages) ModeratorLoginPage(c *gin.Context) {
	p.render(c, http.StatusOK, "moderator_login.html", gin.H{})
}

// ModeratorLoginSubmit signs in staff only. A customer account is signed
// straight back out.
func (p *Pages) ModeratorLoginSubmit(c *gin.Context) {
	sc := scope.From(c)
	u, token, err := p.Auth.SignIn(c.Request.Context(), sc.Session, c.PostForm("email"), c.PostForm("password"))
	if err != nil {
		p.authFailed(c, "moderator login", "/auth/moderator-login", "Moderator login failed. Please check your credentials and try again.", err)
		return
	}
	if !u.Role.Privileged() {
		if err := p.Auth.SignOut(c.Request.Context(), sc.Session, token); err != nil {
			slog.Error("Sign out after refused moderator login failed", "error", err)
		}
		p.redirect(c, "/auth/moderator-login", failure("This account does not have moderator access."))
		return
	}
	p.Scopes.SetToken(c, token)
	p.redirect(c, "/dashboard", success("Welcome back, "+u.Name+"!"))
}

func (p *Pages) RegisterPage(c *gin.Context) {
	p.render(c, http.StatusOK, "register.html", gin.H{})
}

func (p *Pages) RegisterSubmit(c *gin.Context) {
	if c.PostForm("password") != c.PostForm("confirmPassword") {
		p.redirect(c, "/auth/register", failure("Passwords do not match."))
		return
	}
	in := auth.RegisterInput{
		Name:     c.PostForm("name"),
		Email:    c.PostForm("email"),
		Password: c.PostForm("password"),
	}
	u, token, err := p.Auth.Register(c.Request.Context(), scope.From(c).Session, in)
	if err != nil {
		p.authFailed(c, "register", "/auth/register", "Registration failed. Please try again.", err)
		return
	}
	p.Scopes.SetToken(c, token)
	p.redirect(c, "/dashboard", success("Welcome, "+u.Name+"!"))
}

func (p *Pages) AdminRegisterPage(c *gin.Context) {
	p.render(c, http.StatusOK, "admin_register.html", gin.H{
		"AdminEnabled":     p.Auth.ElevationEnabled(models.RoleAdmin),
		"ModeratorEnabled": p.Auth.ElevationEnabled(models.RoleModerator),
	})
}

func (p *Pages) AdminRegisterSubmit(c *gin.Context) {
	role := models.Role(c.PostForm("role"))
	if !role.Privileged() {
		p.redirect(c, "/auth/admin-register", failure("Please choose an account type."))
		return
	}
	switch {
	case strings.TrimSpace(c.PostForm("name")) == "":
		p.redirect(c, "/auth/admin-register", failure("Please enter your full name."))
		return
	case c.PostForm("password") != c.PostForm("confirmPassword"):
		p.redirect(c, "/auth/admin-register", failure("Passwords do not match."))
		return
	case c.PostForm("accessKey") == "":
		p.redirect(c, "/auth/admin-register", failure("Please enter the "+string(role)+" access key."))
		return
	case c.PostForm("terms") == "":
		p.redirect(c, "/auth/admin-register", failure("Please agree to the terms and conditions."))
		return
	}

	in := auth.RegisterInput{
		Name:      c.PostForm("name"),
		Email:     c.PostForm("email"),
		Password:  c.PostForm("password"),
		Role:      role,
		AccessKey: c.PostForm("accessKey"),
	}
	u, token, err := p.Auth.Register(c.Request.Context(), scope.From(c).Session, in)
	if errors.Is(err, auth.ErrInvalidAccessKey) {
		p.redirect(c, "/auth/admin-register",
			failure("Invalid "+string(role)+" access key. Please contact the system administrator."))
		return
	}
	if err != nil {
		p.authFailed(c, "admin register", "/auth/admin-register", "Registration failed. Please try again.", err)
		return
	}
	p.Scopes.SetToken(c, token)
	p.redirect(c, "/dashboard", success("Welcome, "+u.Name+"! Your "+string(u.Role)+" account is ready."))
}

func (p *Pages) Logout(c *gin.Context) {
	sc := scope.From(c)
	if err := p.Auth.SignOut(c.Request.Context(), sc.Session, sc.Token); err != nil {
		slog.Error("Logout failed", "error", err)
	}
	p.Scopes.ClearToken(c)
	p.redirect(c, "/", success("Logged out successfully!"))
}

func (p *Pages) Dashboard(c *gin.Context) {
	sc := scope.From(c)
	p.render(c, http.StatusOK, "dashboard.html", gin.H{
		"Profile": sc.User(),
		"IsStaff": sc.Session.HasRole(models.RoleAdmin, models.RoleModerator),
		"IsAdmin": sc.Session.HasRole(models.RoleAdmin),
	})
}

func (p *Pages) ToggleTheme(c *gin.Context) {
	if _, err := scope.From(c).Theme.Toggle(c.Request.Context()); err != nil {
		slog.Warn("Failed to save theme", "error", err)
	}
	p.redirect(c, safeRedirect(c.PostForm("redirect"), "/"))
}

func (p *Pages) requireUser(c *gin.Context) {
	if scope.From(c).User() != nil {
		c.Next()
		return
	}
	target := c.Request.URL.Path
	if c.Request.Method != http.MethodGet {
		target = safeRedirect(c.PostForm("redirect"), "/cart")
	}
	p.redirect(c, "/auth/login?redirect="+url.QueryEscape(target), failure("Please sign in to continue."))
	c.Abort()
}

func (p *Pages) authFailed(c *gin.Context, op, back, fallback string, err error) {
	if auth.Code(err) == "" {
		slog.Error("Authentication request failed", "op", op, "error", err)
	}
	p.redirect(c, back, failure(auth.MessageFor(err, fallback)))
}

// fail renders the error page, using 404 for unknown products.
func (p *Pages) fail(c *gin.Context, op string, err error) {
	if errors.Is(err, catalog.ErrNotFound) {
		p.render(c, http.StatusNotFound, "error.html", gin.H{
			"Status":  http.StatusNotFound,
			"Message": "We couldn't find that product.",
		})
		return
	}
	slog.Error("Page request failed", "op", op, "path", c.Request.URL.Path, "error", err)
	p.render(c, http.StatusInternalServerError, "error.html", gin.H{
		"Status":  http.StatusInternalServerError,
		"Message": "Something went wrong. Please try again later.",
	})
}

func (p *Pages) render(c *gin.Context, status int, name string, data gin.H) {
	tmpl := p.Templates.Get(name)
	if tmpl == nil {
		slog.Error("Template not found", "name", name)
		c.String(http.StatusInternalServerError, "Template not found")
		return
	}

	sc := scope.From(c)
	session, _ := p.Sessions.Get(c.Request, flashSession)
	data["User"] = sc.User()
	data["RootClass"] = sc.Theme.RootClass()
	data["CartCount"] = sc.Cart.Count()
	data["Flashes"] = GetFlash(session)
	data["CsrfField"] = csrf.TemplateField(c.Request)
	data["Path"] = c.Request.URL.RequestURI()
	if err := session.Save(c.Request, c.Writer); err != nil {
		slog.Warn("Failed to save session", "error", err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("Failed to render template", "name", name, "error", err)
		c.String(http.StatusInternalServerError, "Failed to render page")
		return
	}
	c.Data(status, "text/html; charset=utf-8", buf.Bytes())
}

func (p *Pages) redirect(c *gin.Context, to string, flashes ...FlashMessage) {
	if len(flashes) > 0 {
		session, _ := p.Sessions.Get(c.Request, flashSession)
		for _, f := range flashes {
			session.AddFlash(f)
		}
		if err := session.Save(c.Request, c.Writer); err != nil {
			slog.Warn("Failed to save session", "error", err)
		}
	}
	c.Redirect(http.StatusSeeOther, to)
}

// safeRedirect only follows local paths.
func safeRedirect(target, fallback string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return fallback
	}
	return target
}
