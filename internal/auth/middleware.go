package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/millworks/backoffice/internal/config"
	"github.com/millworks/backoffice/internal/httpapi"
)

const refreshCookieMaxAge = 30 * 24 * time.Hour

// GateConfig holds the cookie and routing settings of the session gate.
type GateConfig struct {
	IDTokenCookie string
	AccessCookie  string
	RefreshCookie string
	RefreshWindow time.Duration
	LoginPath     string
	APIPrefix     string
	CookieDomain  string
	CookieSecure  bool
}

// GateConfigFrom maps the session configuration onto the gate's settings.
func GateConfigFrom(cfg config.SessionConfig, apiPrefix string) GateConfig {
	return GateConfig{
		IDTokenCookie: cfg.IDTokenCookie,
		AccessCookie:  cfg.AccessCookie,
		RefreshCookie: cfg.RefreshCookie,
		RefreshWindow: cfg.RefreshWindow,
		LoginPath:     cfg.LoginPath,
		APIPrefix:     apiPrefix,
		CookieDomain:  cfg.CookieDomain,
		CookieSecure:  cfg.CookieSecure,
	}
}

// SessionGate authenticates requests from their session cookies, refreshes tokens
// close to expiry and enforces the role policy.
//
// Page requests are redirected (to the login page, or to the role's home route when
// the role may not visit the path); API requests get 401/403 JSON instead.
type SessionGate struct {
	verifier  Verifier
	refresher Refresher
	policy    *RolePolicy
	cfg       GateConfig
	now       func() time.Time
}

func NewSessionGate(verifier Verifier, refresher Refresher, policy *RolePolicy, cfg GateConfig) *SessionGate {
	if cfg.RefreshWindow <= 0 {
		cfg.RefreshWindow = 5 * time.Minute
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	return &SessionGate{
		verifier:  verifier,
		refresher: refresher,
		policy:    policy,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Middleware returns the gin handler guarding a route group.
func (g *SessionGate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		path := c.Request.URL.Path

		idToken, _ := c.Cookie(g.cfg.IDTokenCookie)
		if idToken == "" {
			g.unauthenticated(c, false)
			return
		}

		authCtx, err := g.verifier.Verify(idToken)
		expired := errors.Is(err, ErrTokenExpired)
		if err != nil && !expired {
			slog.WarnContext(ctx, "rejected session token", "path", path, "error", err)
			g.unauthenticated(c, true)
			return
		}

		if expired || authCtx.ExpiresWithin(g.now(), g.cfg.RefreshWindow) {
			refreshToken, _ := c.Cookie(g.cfg.RefreshCookie)
			switch {
			case refreshToken != "" && g.refresher != nil:
				refreshed, ok := g.refresh(c, refreshToken)
				if !ok {
					g.unauthenticated(c, true)
					return
				}
				authCtx = refreshed
			case expired:
				g.unauthenticated(c, true)
				return
			}
		}

		if _, known := g.policy.Home(authCtx.Role); !known {
			slog.WarnContext(ctx, "session role has no policy", "role", authCtx.Role, "subject", authCtx.Subject)
			g.unauthenticated(c, true)
			return
		}
		if !g.policy.Allowed(authCtx.Role, path) {
			g.forbidden(c, authCtx.Role)
			return
		}

		c.Request = c.Request.WithContext(WithAuthContext(ctx, authCtx))
		c.Next()
	}
}

// refresh exchanges the refresh token, verifies the new id token and rewrites the cookies.
func (g *SessionGate) refresh(c *gin.Context, refreshToken string) (*AuthContext, bool) {
	ctx := c.Request.Context()
	tokens, err := g.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		slog.WarnContext(ctx, "session refresh failed", "error", err)
		return nil, false
	}
	authCtx, err := g.verifier.Verify(tokens.IDToken)
	if err != nil {
		slog.WarnContext(ctx, "refreshed token failed verification", "error", err)
		return nil, false
	}

	maxAge := authCtx.ExpiresAt.Sub(g.now())
	g.setCookie(c, g.cfg.IDTokenCookie, tokens.IDToken, maxAge)
	if tokens.AccessToken != "" {
		g.setCookie(c, g.cfg.AccessCookie, tokens.AccessToken, maxAge)
	}
	g.setCookie(c, g.cfg.RefreshCookie, tokens.RefreshToken, refreshCookieMaxAge)

	slog.InfoContext(ctx, "session refreshed", "subject", authCtx.Subject, "expires_at", authCtx.ExpiresAt)
	return authCtx, true
}

func (g *SessionGate) isAPI(path string) bool {
	return g.cfg.APIPrefix != "" && strings.HasPrefix(path, g.cfg.APIPrefix)
}

func (g *SessionGate) unauthenticated(c *gin.Context, clearCookies bool) {
	if clearCookies {
		g.clearCookies(c)
	}
	if g.isAPI(c.Request.URL.Path) {
		httpapi.Abort(c, http.StatusUnauthorized, httpapi.CodeUnauthorized, "authentication required", nil)
		return
	}
	target := g.cfg.LoginPath + "?next=" + url.QueryEscape(c.Request.URL.RequestURI())
	c.Redirect(http.StatusFound, target)
	c.Abort()
}

func (g *SessionGate) forbidden(c *gin.Context, role string) {
	if g.isAPI(c.Request.URL.Path) {
		httpapi.Abort(c, http.StatusForbidden, httpapi.CodeForbidden, "role "+role+" may not access this resource", nil)
		return
	}
	home, _ := g.policy.Home(role)
	c.Redirect(http.StatusFound, home)
	c.Abort()
}

func (g *SessionGate) setCookie(c *gin.Context, name, value string, maxAge time.Duration) {
	if maxAge < time.Second {
		maxAge = time.Second
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   g.cfg.CookieDomain,
		MaxAge:   int(maxAge.Seconds()),
		Secure:   g.cfg.CookieSecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (g *SessionGate) clearCookies(c *gin.Context) {
	for _, name := range []string{g.cfg.IDTokenCookie, g.cfg.AccessCookie, g.cfg.RefreshCookie} {
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Domain:   g.cfg.CookieDomain,
			MaxAge:   -1,
			Secure:   g.cfg.CookieSecure,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
