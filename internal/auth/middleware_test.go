package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRefresher struct {
	mock.Mock
}

func (m *MockRefresher) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Tokens), args.Error(1)
}

var gateCfg = GateConfig{
	IDTokenCookie: "id_token",
	AccessCookie:  "access_token",
	RefreshCookie: "refresh_token",
	RefreshWindow: 5 * time.Minute,
	LoginPath:     "/login",
	APIPrefix:     "/api/v1",
	CookieSecure:  true,
}

func newGateRouter(t *testing.T, refresher Refresher) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	gate := NewSessionGate(NewHMACVerifier([]byte(testSecret), testOpts), refresher, DefaultRolePolicy(), gateCfg)

	r := gin.New()
	r.Use(gate.Middleware())
	handler := func(c *gin.Context) {
		authCtx := GetAuthContext(c.Request.Context())
		require.NotNil(t, authCtx)
		c.JSON(http.StatusOK, gin.H{"email": authCtx.Email, "role": authCtx.Role})
	}
	r.GET("/quotes", handler)
	r.GET("/customers/:id", handler)
	r.GET("/api/v1/customer-files", handler)
	r.GET("/api/v1/shipping-weight-presets", handler)
	r.GET("/shipping", handler)
	return r
}

func doRequest(r *gin.Engine, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func responseCookies(w *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range w.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func idCookie(t *testing.T, role string, exp time.Time) *http.Cookie {
	return &http.Cookie{Name: "id_token", Value: signHMAC(t, testSecret, baseClaims(role, exp))}
}

func TestSessionGate_ValidSession(t *testing.T) {
	r := newGateRouter(t, nil)

	w := doRequest(r, "/api/v1/customer-files", idCookie(t, "sales", time.Now().Add(time.Hour)))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"email":"ana@millworks.test","role":"sales"}`, w.Body.String())
	assert.Empty(t, w.Result().Cookies())
}

func TestSessionGate_MissingCookie(t *testing.T) {
	r := newGateRouter(t, nil)

	w := doRequest(r, "/api/v1/customer-files")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(r, "/customers/12?tab=files")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?next=%2Fcustomers%2F12%3Ftab%3Dfiles", w.Header().Get("Location"))
}

func TestSessionGate_InvalidTokenClearsCookies(t *testing.T) {
	r := newGateRouter(t, nil)
	forged := &http.Cookie{Name: "id_token", Value: signHMAC(t, "attacker", baseClaims("admin", time.Now().Add(time.Hour)))}

	w := doRequest(r, "/quotes", forged)
	assert.Equal(t, http.StatusFound, w.Code)

	cookies := responseCookies(w)
	for _, name := range []string{"id_token", "access_token", "refresh_token"} {
		require.Contains(t, cookies, name)
		assert.Equal(t, -1, cookies[name].MaxAge)
	}
}

func TestSessionGate_RefreshNearExpiry(t *testing.T) {
	refresher := new(MockRefresher)
	newExp := time.Now().Add(time.Hour)
	refresher.On("Refresh", mock.Anything, "rt-1").Return(&Tokens{
		IDToken:      signHMAC(t, testSecret, baseClaims("sales", newExp)),
		AccessToken:  "at-2",
		RefreshToken: "rt-2",
	}, nil).Once()
	r := newGateRouter(t, refresher)

	w := doRequest(r, "/quotes",
		idCookie(t, "sales", time.Now().Add(2*time.Minute)),
		&http.Cookie{Name: "refresh_token", Value: "rt-1"},
	)
	assert.Equal(t, http.StatusOK, w.Code)

	cookies := responseCookies(w)
	require.Contains(t, cookies, "id_token")
	assert.NotEmpty(t, cookies["id_token"].Value)
	assert.True(t, cookies["id_token"].HttpOnly)
	assert.True(t, cookies["id_token"].Secure)
	assert.Equal(t, "at-2", cookies["access_token"].Value)
	assert.Equal(t, "rt-2", cookies["refresh_token"].Value)
	refresher.AssertExpectations(t)
}

func TestSessionGate_RefreshExpiredToken(t *testing.T) {
	refresher := new(MockRefresher)
	refresher.On("Refresh", mock.Anything, "rt-1").Return(&Tokens{
		IDToken:      signHMAC(t, testSecret, baseClaims("sales", time.Now().Add(time.Hour))),
		RefreshToken: "rt-1",
	}, nil).Once()
	r := newGateRouter(t, refresher)

	w := doRequest(r, "/api/v1/customer-files",
		idCookie(t, "sales", time.Now().Add(-time.Minute)),
		&http.Cookie{Name: "refresh_token", Value: "rt-1"},
	)
	assert.Equal(t, http.StatusOK, w.Code)
	refresher.AssertExpectations(t)
}

func TestSessionGate_RefreshFailure(t *testing.T) {
	refresher := new(MockRefresher)
	refresher.On("Refresh", mock.Anything, "rt-1").Return(nil, errors.New("idp down")).Once()
	r := newGateRouter(t, refresher)

	w := doRequest(r, "/quotes",
		idCookie(t, "sales", time.Now().Add(time.Minute)),
		&http.Cookie{Name: "refresh_token", Value: "rt-1"},
	)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "/login")
	assert.Equal(t, -1, responseCookies(w)["id_token"].MaxAge)
	refresher.AssertExpectations(t)
}

func TestSessionGate_ExpiredWithoutRefreshToken(t *testing.T) {
	r := newGateRouter(t, new(MockRefresher))

	w := doRequest(r, "/api/v1/customer-files", idCookie(t, "sales", time.Now().Add(-time.Minute)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionGate_NearExpiryWithoutRefreshTokenContinues(t *testing.T) {
	refresher := new(MockRefresher)
	r := newGateRouter(t, refresher)

	w := doRequest(r, "/quotes", idCookie(t, "sales", time.Now().Add(time.Minute)))
	assert.Equal(t, http.StatusOK, w.Code)
	refresher.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
}

func TestSessionGate_RoleNotAllowed(t *testing.T) {
	r := newGateRouter(t, nil)

	w := doRequest(r, "/api/v1/shipping-weight-presets", idCookie(t, "sales", time.Now().Add(time.Hour)))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doRequest(r, "/shipping", idCookie(t, "sales", time.Now().Add(time.Hour)))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/quotes", w.Header().Get("Location"))
}

func TestSessionGate_UnknownRole(t *testing.T) {
	r := newGateRouter(t, nil)

	w := doRequest(r, "/api/v1/customer-files", idCookie(t, "contractor", time.Now().Add(time.Hour)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
