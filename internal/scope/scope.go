// Package scope builds the per-request state: the caller's auth session, a
// cart bound to that session and the visitor's theme.
package scope

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storefront-backend/internal/auth"
	"storefront-backend/internal/cart"
	"storefront-backend/internal/kv"
	"storefront-backend/internal/models"
	"storefront-backend/internal/theme"
)

const (
	TokenCookie   = "token"
	VisitorCookie = "visitor_id"

	contextKey = "scope"
)

type Scope struct {
	Session   *auth.Session
	Cart      *cart.Holder
	Theme     *theme.Holder
	Token     string
	VisitorID string
}

func (s *Scope) User() *models.User {
	return s.Session.User()
}

type Builder struct {
	Auth         *auth.Service
	Slots        kv.Store
	CookieSecure bool
}

// Middleware attaches a Scope to every request. The cart follows the session
// for the lifetime of the request and is detached afterwards.
func (b *Builder) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		sc := &Scope{
			Session:   auth.NewSession(),
			Cart:      cart.NewHolder(b.Slots),
			Theme:     theme.NewHolder(b.Slots),
			Token:     TokenFrom(c),
			VisitorID: b.visitorID(c),
		}
		unsubscribe := sc.Session.Subscribe(func(lctx context.Context, u *models.User) {
			if err := sc.Cart.OnUserChange(lctx, u); err != nil {
				slog.Warn("Failed to load cart", "error", err)
			}
		})
		defer unsubscribe()

		if err := sc.Theme.Init(ctx, sc.VisitorID, Ambient(c.GetHeader("Sec-CH-Prefers-Color-Scheme"))); err != nil {
			slog.Warn("Failed to load theme", "visitor_id", sc.VisitorID, "error", err)
		}

		if _, err := b.Auth.Resume(ctx, sc.Session, sc.Token); err != nil {
			var ae *auth.Error
			if errors.As(err, &ae) {
				sc.Token = ""
				b.ClearToken(c)
			} else {
				slog.Error("Failed to resume session", "error", err)
			}
		}

		c.Set(contextKey, sc)
		c.Next()
	}
}

// From returns the request's Scope. It panics when the middleware is missing.
func From(c *gin.Context) *Scope {
	return c.MustGet(contextKey).(*Scope)
}

// TokenFrom reads a bearer token, falling back to the session cookie.
func TokenFrom(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if v, err := c.Cookie(TokenCookie); err == nil {
		return v
	}
	return ""
}

func (b *Builder) SetToken(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(TokenCookie, token, int(b.Auth.TokenTTL()/time.Second), "/", "", b.CookieSecure, true)
}

func (b *Builder) ClearToken(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(TokenCookie, "", -1, "/", "", b.CookieSecure, true)
}

func (b *Builder) visitorID(c *gin.Context) string {
	if v, err := c.Cookie(VisitorCookie); err == nil {
		if _, perr := uuid.Parse(v); perr == nil {
			return v
		}
	}
	id := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(VisitorCookie, id, 365*24*60*60, "/", "", b.CookieSecure, true)
	return id
}

// Ambient maps the client hint value to a theme mode.
func Ambient(hint string) theme.Mode {
	if strings.EqualFold(strings.Trim(hint, `" `), "dark") {
		return theme.Dark
	}
	return theme.Light
}
