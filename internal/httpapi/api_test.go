package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"storefront-backend/internal/auth"
	"storefront-backend/internal/cart"
	"storefront-backend/internal/catalog"
	"storefront-backend/internal/kv"
	"storefront-backend/internal/media"
	"storefront-backend/internal/models"
	"storefront-backend/internal/scope"
)

type testServer struct {
	router  *gin.Engine
	auth    *auth.Service
	catalog *catalog.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	slots := kv.NewMemory()
	authSvc := auth.NewService(auth.NewMemoryUsers(), slots, auth.Options{
		Secret:         []byte("0123456789abcdef0123456789abcdef"),
		AdminAccessKey: "admin-key",
	})
	catalogSvc := catalog.NewService(catalog.NewMemoryRepository(catalog.SeedCatalog()...), nil)
	scopes := &scope.Builder{Auth: authSvc, Slots: slots}

	r := gin.New()
	r.Use(scopes.Middleware())
	(&Handlers{
		Products: &ProductHandler{Catalog: catalogSvc, Images: media.NewImageStore(t.TempDir(), "/uploads")},
		Auth:     &AuthHandler{Auth: authSvc, Scopes: scopes},
		Cart:     &CartHandler{Catalog: catalogSvc},
	}).Register(r)

	return &testServer{router: r, auth: authSvc, catalog: catalogSvc}
}

func (s *testServer) tokenFor(t *testing.T, email string, role models.Role) string {
	t.Helper()
	ctx := context.Background()
	if _, err := s.auth.CreateStaff(ctx, "Test "+string(role), email, "secret1", role); err != nil {
		t.Fatalf("create %s: %v", role, err)
	}
	_, token, err := s.auth.SignIn(ctx, auth.NewSession(), email, "secret1")
	if err != nil {
		t.Fatalf("sign in %s: %v", role, err)
	}
	return token
}

type envelope struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message"`
	Error      string          `json:"error"`
	Data       json.RawMessage `json:"data"`
	Pagination *pagination     `json:"pagination"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestListProducts(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(t, http.MethodGet, "/api/products?category=men&minPrice=1000&maxPrice=3000", "", nil)
	if w.Code != http.StatusOK || !env.Success {
		t.Fatalf("status %d body %s", w.Code, w.Body)
	}
	var products []models.Product
	_ = json.Unmarshal(env.Data, &products)
	if len(products) != 1 || products[0].Name != "Denim Jacket" {
		t.Fatalf("unexpected products %+v", products)
	}
	if env.Pagination == nil || env.Pagination.Page != 1 || env.Pagination.Limit != 12 || env.Pagination.Total != 1 {
		t.Fatalf("unexpected pagination %+v", env.Pagination)
	}

	w, env = s.do(t, http.MethodGet, "/api/products?sortBy=price-low&limit=2", "", nil)
	_ = json.Unmarshal(env.Data, &products)
	if w.Code != http.StatusOK || len(products) != 2 || products[0].Name != "Kids T-Shirt" || products[1].ID != "1" {
		t.Fatalf("unexpected price-low page %d %+v", w.Code, products)
	}
}

func TestListProductsRejectsBadParams(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{
		"/api/products?page=abc",
		"/api/products?minPrice=cheap",
		"/api/products?sortBy=secret",
		"/api/products?page=9223372036854775807&limit=50",
		"/api/products/category/women?page=9223372036854775807",
	} {
		if w, env := s.do(t, http.MethodGet, path, "", nil); w.Code != http.StatusBadRequest || env.Success {
			t.Fatalf("%s: status %d body %s", path, w.Code, w.Body)
		}
	}
}

func TestGetProductAndFeatured(t *testing.T) {
	s := newTestServer(t)

	if w, env := s.do(t, http.MethodGet, "/api/products/404", "", nil); w.Code != http.StatusNotFound || env.Message != "Product not found" {
		t.Fatalf("status %d body %s", w.Code, w.Body)
	}
	if w, _ := s.do(t, http.MethodGet, "/api/products/3", "", nil); w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}

	_, env := s.do(t, http.MethodGet, "/api/products/featured", "", nil)
	var featured []models.Product
	_ = json.Unmarshal(env.Data, &featured)
	if len(featured) != 4 || featured[0].ID != "4" {
		t.Fatalf("unexpected featured %+v", featured)
	}

	_, env = s.do(t, http.MethodGet, "/api/products/category/kids", "", nil)
	var kids []models.Product
	_ = json.Unmarshal(env.Data, &kids)
	if len(kids) != 1 || kids[0].ID != "6" {
		t.Fatalf("unexpected category listing %+v", kids)
	}
}

func TestProductWritesAreRoleGated(t *testing.T) {
	s := newTestServer(t)
	userToken := s.tokenFor(t, "user@shop.io", models.RoleUser)
	modToken := s.tokenFor(t, "mod@shop.io", models.RoleModerator)
	adminToken := s.tokenFor(t, "admin@shop.io", models.RoleAdmin)

	input := map[string]any{
		"name": "Linen Shirt", "description": "Breathable", "price": 1500,
		"category": "men", "images": []string{"https://example.com/a.jpg"},
	}

	if w, _ := s.do(t, http.MethodPost, "/api/products", "", input); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous create: status %d", w.Code)
	}
	if w, _ := s.do(t, http.MethodPost, "/api/products", userToken, input); w.Code != http.StatusForbidden {
		t.Fatalf("user create: status %d", w.Code)
	}
	if w, env := s.do(t, http.MethodPost, "/api/products", modToken, map[string]any{"price": 10}); w.Code != http.StatusBadRequest || env.Message != "Missing required fields" {
		t.Fatalf("invalid create: status %d body %s", w.Code, w.Body)
	}

	w, env := s.do(t, http.MethodPost, "/api/products", modToken, input)
	if w.Code != http.StatusCreated {
		t.Fatalf("moderator create: status %d body %s", w.Code, w.Body)
	}
	var created models.Product
	_ = json.Unmarshal(env.Data, &created)

	patch := map[string]any{"name": "Linen Camp Shirt", "views": 9999}
	w, env = s.do(t, http.MethodPut, "/api/products/"+created.ID, modToken, patch)
	var updated models.Product
	_ = json.Unmarshal(env.Data, &updated)
	if w.Code != http.StatusOK || updated.Name != "Linen Camp Shirt" || updated.Views != 0 {
		t.Fatalf("update: status %d product %+v", w.Code, updated)
	}

	if w, _ := s.do(t, http.MethodDelete, "/api/products/"+created.ID, modToken, nil); w.Code != http.StatusForbidden {
		t.Fatalf("moderator delete: status %d", w.Code)
	}
	if w, _ := s.do(t, http.MethodDelete, "/api/products/"+created.ID, adminToken, nil); w.Code != http.StatusOK {
		t.Fatalf("admin delete: status %d", w.Code)
	}
	if w, _ := s.do(t, http.MethodGet, "/api/products/"+created.ID, "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("get after delete: status %d", w.Code)
	}
}

func (s *testServer) upload(t *testing.T, path, token, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = part.Write(content)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestUploadImage(t *testing.T) {
	s := newTestServer(t)
	modToken := s.tokenFor(t, "mod@shop.io", models.RoleModerator)

	img := &bytes.Buffer{}
	_ = png.Encode(img, image.NewRGBA(image.Rect(0, 0, 40, 20)))

	if w := s.upload(t, "/api/products/1/images", modToken, "photo.png", []byte("not an image")); w.Code != http.StatusBadRequest {
		t.Fatalf("undecodable upload: status %d body %s", w.Code, w.Body)
	}
	if w := s.upload(t, "/api/products/1/images", modToken, "photo.gif", img.Bytes()); w.Code != http.StatusBadRequest {
		t.Fatalf("gif upload: status %d", w.Code)
	}
	if w := s.upload(t, "/api/products/missing/images", modToken, "photo.png", img.Bytes()); w.Code != http.StatusNotFound {
		t.Fatalf("unknown product: status %d", w.Code)
	}

	w := s.upload(t, "/api/products/1/images", modToken, "photo.png", img.Bytes())
	if w.Code != http.StatusCreated {
		t.Fatalf("upload: status %d body %s", w.Code, w.Body)
	}
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	var p models.Product
	_ = json.Unmarshal(env.Data, &p)
	if len(p.Images) == 0 || !bytes.HasPrefix([]byte(p.Images[len(p.Images)-1]), []byte("/uploads/")) {
		t.Fatalf("image not attached: %+v", p.Images)
	}
}

func TestExportRequiresAdmin(t *testing.T) {
	s := newTestServer(t)
	modToken := s.tokenFor(t, "mod@shop.io", models.RoleModerator)
	adminToken := s.tokenFor(t, "admin@shop.io", models.RoleAdmin)

	if w, _ := s.do(t, http.MethodGet, "/api/admin/products/export", modToken, nil); w.Code != http.StatusForbidden {
		t.Fatalf("moderator export: status %d", w.Code)
	}
	w, _ := s.do(t, http.MethodGet, "/api/admin/products/export", adminToken, nil)
	if w.Code != http.StatusOK || w.Body.Len() == 0 {
		t.Fatalf("admin export: status %d len %d", w.Code, w.Body.Len())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	reg := map[string]any{"name": "Rahim", "email": "rahim@shop.io", "password": "secret1"}
	w, env := s.do(t, http.MethodPost, "/api/auth/register", "", reg)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: status %d body %s", w.Code, w.Body)
	}
	var out struct {
		User  models.User `json:"user"`
		Token string      `json:"token"`
	}
	_ = json.Unmarshal(env.Data, &out)
	if out.Token == "" || out.User.Role != models.RoleUser {
		t.Fatalf("unexpected register payload %s", env.Data)
	}
	if bytes.Contains(env.Data, []byte("passwordHash")) {
		t.Fatal("password hash leaked")
	}

	if w, env := s.do(t, http.MethodPost, "/api/auth/register", "", reg); w.Code != http.StatusBadRequest || env.Error != "auth/email-already-in-use" {
		t.Fatalf("duplicate register: status %d body %s", w.Code, w.Body)
	}

	elevated := map[string]any{"name": "Boss", "email": "boss@shop.io", "password": "secret1", "role": "admin", "accessKey": "ADMIN_MASTER_KEY_2024"}
	if w, env := s.do(t, http.MethodPost, "/api/auth/register", "", elevated); w.Code != http.StatusForbidden || env.Error != "auth/invalid-access-key" {
		t.Fatalf("elevated register: status %d body %s", w.Code, w.Body)
	}

	w, env = s.do(t, http.MethodGet, "/api/auth/me", out.Token, nil)
	var me models.User
	_ = json.Unmarshal(env.Data, &me)
	if w.Code != http.StatusOK || me.Email != "rahim@shop.io" {
		t.Fatalf("me: status %d body %s", w.Code, w.Body)
	}

	if w, _ := s.do(t, http.MethodGet, "/api/users/"+me.ID, out.Token, nil); w.Code != http.StatusOK {
		t.Fatalf("own profile: status %d", w.Code)
	}
	if w, _ := s.do(t, http.MethodGet, "/api/users/someone-else", out.Token, nil); w.Code != http.StatusForbidden {
		t.Fatalf("other profile: status %d", w.Code)
	}

	if w, _ := s.do(t, http.MethodPost, "/api/auth/logout", out.Token, nil); w.Code != http.StatusOK {
		t.Fatalf("logout: status %d", w.Code)
	}
	if w, _ := s.do(t, http.MethodGet, "/api/auth/me", out.Token, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("me after logout: status %d", w.Code)
	}
}

func TestLoginErrors(t *testing.T) {
	s := newTestServer(t)
	s.tokenFor(t, "user@shop.io", models.RoleUser)

	if w, env := s.do(t, http.MethodPost, "/api/auth/login", "", credentials{Email: "nobody@shop.io", Password: "x"}); w.Code != http.StatusUnauthorized || env.Error != "auth/user-not-found" {
		t.Fatalf("unknown user: status %d body %s", w.Code, w.Body)
	}
	for i := 0; i < auth.MaxAttempts; i++ {
		w, env := s.do(t, http.MethodPost, "/api/auth/login", "", credentials{Email: "user@shop.io", Password: "wrong-pass"})
		if w.Code != http.StatusUnauthorized || env.Message != "Incorrect password. Please try again." {
			t.Fatalf("attempt %d: status %d body %s", i, w.Code, w.Body)
		}
	}
	if w, _ := s.do(t, http.MethodPost, "/api/auth/login", "", credentials{Email: "user@shop.io", Password: "secret1"}); w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected lockout, got %d", w.Code)
	}
}

func TestRequestBodiesRequireFields(t *testing.T) {
	s := newTestServer(t)
	token := s.tokenFor(t, "user@shop.io", models.RoleUser)

	cases := []struct {
		method, path, token string
		body                any
	}{
		{http.MethodPost, "/api/auth/login", "", map[string]any{"email": "user@shop.io"}},
		{http.MethodPost, "/api/auth/firebase", "", map[string]any{}},
		{http.MethodPost, "/api/cart", token, map[string]any{"quantity": 1}},
		{http.MethodPut, "/api/cart/items/1--", token, map[string]any{}},
	}
	for _, tc := range cases {
		w, env := s.do(t, tc.method, tc.path, tc.token, tc.body)
		if w.Code != http.StatusBadRequest || env.Success {
			t.Fatalf("%s %s: status %d body %s", tc.method, tc.path, w.Code, w.Body)
		}
	}
}

func TestCartFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.tokenFor(t, "user@shop.io", models.RoleUser)

	if w, _ := s.do(t, http.MethodGet, "/api/cart", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous cart: status %d", w.Code)
	}

	add := map[string]any{"productId": "1", "quantity": 2, "size": "M", "color": "white"}
	if w, _ := s.do(t, http.MethodPost, "/api/cart", token, add); w.Code != http.StatusCreated {
		t.Fatalf("add: status %d", w.Code)
	}
	if w, _ := s.do(t, http.MethodPost, "/api/cart", token, add); w.Code != http.StatusCreated {
		t.Fatalf("add again: status %d", w.Code)
	}
	if w, _ := s.do(t, http.MethodPost, "/api/cart", token, map[string]any{"productId": "missing"}); w.Code != http.StatusNotFound {
		t.Fatalf("add missing: status %d", w.Code)
	}
	if w, _ := s.do(t, http.MethodPost, "/api/cart", token, map[string]any{"productId": "2", "quantity": -1}); w.Code != http.StatusBadRequest {
		t.Fatalf("add negative: status %d", w.Code)
	}

	// the cart survives across requests through the user's slot
	_, env := s.do(t, http.MethodGet, "/api/cart", token, nil)
	var got struct {
		Items []models.CartItem `json:"items"`
		Count int               `json:"count"`
		Total string            `json:"total"`
	}
	_ = json.Unmarshal(env.Data, &got)
	if len(got.Items) != 1 || got.Count != 4 || got.Total != "3996" {
		t.Fatalf("unexpected cart %s", env.Data)
	}

	itemID := got.Items[0].ID
	_, env = s.do(t, http.MethodGet, "/api/cart/contains/1", token, nil)
	if !bytes.Contains(env.Data, []byte(`"inCart":true`)) {
		t.Fatalf("contains: %s", env.Data)
	}

	if w, _ := s.do(t, http.MethodPut, "/api/cart/items/"+itemID, token, map[string]any{"quantity": 0}); w.Code != http.StatusOK {
		t.Fatalf("set quantity: status %d", w.Code)
	}
	_, env = s.do(t, http.MethodGet, "/api/cart", token, nil)
	_ = json.Unmarshal(env.Data, &got)
	if len(got.Items) != 0 || got.Count != 0 {
		t.Fatalf("expected empty cart, got %s", env.Data)
	}
	if w, _ := s.do(t, http.MethodDelete, "/api/cart/items/"+itemID, token, nil); w.Code != http.StatusNotFound {
		t.Fatalf("remove missing: status %d", w.Code)
	}
}

func TestCartRejectsOversizedQuantity(t *testing.T) {
	s := newTestServer(t)
	token := s.tokenFor(t, "user@shop.io", models.RoleUser)

	huge := map[string]any{"productId": "1", "quantity": math.MaxInt}
	if w, env := s.do(t, http.MethodPost, "/api/cart", token, huge); w.Code != http.StatusBadRequest || env.Message != cart.ErrQuantityLimit.Error() {
		t.Fatalf("huge add: status %d body %s", w.Code, w.Body)
	}
	add := map[string]any{"productId": "1", "quantity": cart.MaxLineQuantity}
	if w, _ := s.do(t, http.MethodPost, "/api/cart", token, add); w.Code != http.StatusCreated {
		t.Fatalf("add at limit: status %d", w.Code)
	}
	if w, _ := s.do(t, http.MethodPost, "/api/cart", token, map[string]any{"productId": "1"}); w.Code != http.StatusBadRequest {
		t.Fatalf("add past limit: status %d", w.Code)
	}

	_, env := s.do(t, http.MethodGet, "/api/cart", token, nil)
	var got struct {
		Count int `json:"count"`
	}
	_ = json.Unmarshal(env.Data, &got)
	if got.Count != cart.MaxLineQuantity {
		t.Fatalf("unexpected count %d", got.Count)
	}
}

func TestThemeToggle(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/theme", nil)
	req.Header.Set("Sec-CH-Prefers-Color-Scheme", "dark")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if !bytes.Contains(w.Body.Bytes(), []byte(`"mode":"dark"`)) {
		t.Fatalf("expected ambient dark, got %s", w.Body)
	}

	var visitor *http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == scope.VisitorCookie {
			visitor = ck
		}
	}
	if visitor == nil {
		t.Fatal("visitor cookie not set")
	}

	req = httptest.NewRequest(http.MethodPost, "/api/theme/toggle", nil)
	req.AddCookie(visitor)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if !bytes.Contains(w.Body.Bytes(), []byte(`"mode":"light"`)) {
		t.Fatalf("expected light after toggle, got %s", w.Body)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/theme", nil)
	req.Header.Set("Sec-CH-Prefers-Color-Scheme", "dark")
	req.AddCookie(visitor)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if !bytes.Contains(w.Body.Bytes(), []byte(`"mode":"light"`)) {
		t.Fatalf("persisted choice should win over ambient, got %s", w.Body)
	}
}
