package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/levels-catalog/internal/domain/auth"
	"github.com/xenking/levels-catalog/internal/domain/catalog"
	"github.com/xenking/levels-catalog/internal/domain/product"
)

const testToken = "0123456789abcdef0123456789abcdef01234567"

var (
	testAccount = &auth.Account{ID: 7, Username: "seller", Email: "seller@example.com"}
	testTime    = time.Date(2025, 3, 1, 12, 30, 0, 123456000, time.UTC)
)

type fakeProducts struct {
	product *product.Product
	err     error

	created *product.CreateInput
	updated *product.UpdateInput
	partial bool
	deleted uuid.UUID
	image   uuid.UUID
}

func (f *fakeProducts) Get(_ context.Context, id uuid.UUID) (*product.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.product == nil || f.product.ID != id {
		return nil, product.ErrNotFound
	}
	return f.product, nil
}

func (f *fakeProducts) Create(_ context.Context, in product.CreateInput) (*product.Product, error) {
	f.created = &in
	if f.err != nil {
		return nil, f.err
	}
	return f.product, nil
}

func (f *fakeProducts) Update(_ context.Context, _ uuid.UUID, in product.UpdateInput, partial bool) (*product.Product, error) {
	f.updated = &in
	f.partial = partial
	if f.err != nil {
		return nil, f.err
	}
	return f.product, nil
}

func (f *fakeProducts) Delete(_ context.Context, id uuid.UUID) error {
	f.deleted = id
	return f.err
}

func (f *fakeProducts) DeleteImage(_ context.Context, _, imageID uuid.UUID) error {
	f.image = imageID
	return f.err
}

type fakeCatalog struct {
	page    *catalog.Page
	err     error
	params  catalog.Params
	creator int64
}

func (f *fakeCatalog) List(_ context.Context, p catalog.Params) (*catalog.Page, error) {
	f.params = p
	return f.page, f.err
}

func (f *fakeCatalog) Dashboard(_ context.Context, creatorID int64, p catalog.Params) (*catalog.Page, error) {
	f.creator = creatorID
	f.params = p
	return f.page, f.err
}

type fakeAuth struct {
	loginErr error
}

func (f *fakeAuth) Login(_ context.Context, username, password string) (*auth.Session, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	if username == "" || password == "" {
		return nil, auth.ErrMissingCredentials
	}
	if username != testAccount.Username || password != "secret" {
		return nil, auth.ErrInvalidCredentials
	}
	return &auth.Session{Token: testToken, Account: testAccount}, nil
}

func (f *fakeAuth) Authenticate(_ context.Context, key string) (*auth.Account, error) {
	if key != testToken {
		return nil, auth.ErrInvalidToken
	}
	return testAccount, nil
}

type liveness bool

func (l liveness) IsLive() bool { return bool(l) }

type testServer struct {
	mux      *http.ServeMux
	products *fakeProducts
	catalog  *fakeCatalog
}

func newTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()

	creator := testAccount.ID
	p := &product.Product{
		ID:        uuid.MustParse("6f1c2a4e-9d3b-4c55-8f0e-1a2b3c4d5e6f"),
		Name:      "ThinkPad X1",
		Category:  "Laptops",
		Price:     "2,500,000 TZS",
		Specs:     []string{"16GB RAM", "1TB SSD"},
		Warranty:  "1 Year",
		CreatorID: &creator,
		Trending:  true,
		Images: []product.Image{{
			ID:        uuid.MustParse("0a0b0c0d-0e0f-4a1b-8c2d-3e4f5a6b7c8d"),
			Path:      "products/x1.png",
			CreatedAt: testTime,
		}},
		CreatedAt: testTime,
		UpdatedAt: testTime,
	}

	s := &testServer{
		mux:      http.NewServeMux(),
		products: &fakeProducts{product: p},
		catalog: &fakeCatalog{page: &catalog.Page{
			Items:      []product.Product{*p},
			Total:      1,
			Limit:      catalog.DefaultLimit,
			TotalPages: 1,
		}},
	}
	h := New(cfg, s.products, s.catalog, &fakeAuth{}, liveness(true))
	h.Register(s.mux, "/api")
	return s
}

func (s *testServer) do(t *testing.T, method, target string, body io.Reader, header http.Header) (*httptest.ResponseRecorder, *jx.Decoder) {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"), rec.Body.String())
	return rec, jx.DecodeBytes(rec.Body.Bytes())
}

func authed(extra ...string) http.Header {
	h := http.Header{"Authorization": {"Token " + testToken}}
	for i := 0; i+1 < len(extra); i += 2 {
		h.Set(extra[i], extra[i+1])
	}
	return h
}

func jsonHeader() http.Header {
	return authed("Content-Type", "application/json")
}

// envelope collects the top-level envelope fields, keeping data raw.
type envelope struct {
	Success bool
	Data    jx.Raw
	Message string
	Error   string
	Details string
}

func decodeEnvelope(t *testing.T, d *jx.Decoder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "success":
			env.Success, err = d.Bool()
		case "data":
			env.Data, err = d.Raw()
		case "message":
			env.Message, err = d.Str()
		case "error":
			env.Error, err = d.Str()
		case "details":
			env.Details, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	}))
	return env
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, Config{})
	for _, target := range []string{"/api/health", "/api/health/"} {
		rec, d := s.do(t, http.MethodGet, target, nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		env := decodeEnvelope(t, d)
		assert.True(t, env.Success)
		assert.Equal(t, "API is running successfully", env.Message)
		assert.JSONEq(t, `{"status":"healthy"}`, env.Data.String())
	}
}

func TestHealth_NotLive(t *testing.T) {
	mux := http.NewServeMux()
	New(Config{}, &fakeProducts{}, &fakeCatalog{}, &fakeAuth{}, liveness(false)).Register(mux, "/api")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"success":false,"error":"API is not healthy"}`, rec.Body.String())
}

func TestListProducts(t *testing.T) {
	s := newTestServer(t, Config{MediaURL: func(key string) string { return "http://cdn.test/media/" + key }})

	rec, d := s.do(t, http.MethodGet, "/api/products/?category=Laptops&search=pad&trending=yes&sort=-price&limit=5&offset=2", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	env := decodeEnvelope(t, d)
	assert.True(t, env.Success)
	assert.Equal(t, "Products retrieved successfully", env.Message)
	assert.JSONEq(t, `{
		"products": [{
			"id": "6f1c2a4e-9d3b-4c55-8f0e-1a2b3c4d5e6f",
			"name": "ThinkPad X1",
			"category": "Laptops",
			"price": "2,500,000 TZS",
			"specs": ["16GB RAM", "1TB SSD"],
			"warranty": "1 Year",
			"images": [{
				"id": "0a0b0c0d-0e0f-4a1b-8c2d-3e4f5a6b7c8d",
				"image": "products/x1.png",
				"image_url": "http://cdn.test/media/products/x1.png",
				"created_at": "2025-03-01T12:30:00.123456Z"
			}],
			"image_urls": ["http://cdn.test/media/products/x1.png"],
			"created_at": "2025-03-01T12:30:00.123456Z",
			"updated_at": "2025-03-01T12:30:00.123456Z",
			"creator": 7,
			"trending": true
		}],
		"count": 1,
		"limit": 20,
		"offset": 0,
		"total_pages": 1
	}`, env.Data.String())

	trending := true
	assert.Equal(t, catalog.Params{
		Category: "Laptops",
		Search:   "pad",
		Trending: &trending,
		Sort:     catalog.SortPriceDesc,
		Limit:    5,
		Offset:   2,
	}, s.catalog.params)
}

func TestListProducts_Error(t *testing.T) {
	tests := []struct {
		name    string
		debug   bool
		details string
	}{
		{name: "production"},
		{name: "debug", debug: true, details: "query products: connection refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, Config{Debug: tt.debug})
			s.catalog.err = errors.Wrap(errors.New("connection refused"), "query products")

			rec, d := s.do(t, http.MethodGet, "/api/products", nil, nil)
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			env := decodeEnvelope(t, d)
			assert.False(t, env.Success)
			assert.Equal(t, "Failed to retrieve products", env.Error)
			assert.Equal(t, tt.details, env.Details)
		})
	}
}

func TestGetProduct(t *testing.T) {
	s := newTestServer(t, Config{})

	rec, d := s.do(t, http.MethodGet, "/api/products/6f1c2a4e-9d3b-4c55-8f0e-1a2b3c4d5e6f/", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, d)
	assert.Equal(t, "Product retrieved successfully", env.Message)
	assert.Contains(t, env.Data.String(), `"name":"ThinkPad X1"`)
}

func TestGetProduct_NotFound(t *testing.T) {
	s := newTestServer(t, Config{})

	for _, id := range []string{uuid.NewString(), "not-a-uuid"} {
		rec, d := s.do(t, http.MethodGet, "/api/products/"+id, nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		env := decodeEnvelope(t, d)
		assert.False(t, env.Success)
		assert.Equal(t, "Product not found", env.Error)
	}
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t, Config{})

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "missing", want: "Authentication credentials were not provided."},
		{name: "unknown scheme", header: "Basic dXNlcjpwYXNz", want: "Authentication credentials were not provided."},
		{name: "no key", header: "Token", want: "Invalid token."},
		{name: "wrong key", header: "Token nope", want: "Invalid token."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.header != "" {
				h.Set("Authorization", tt.header)
			}
			rec, d := s.do(t, http.MethodPost, "/api/products", strings.NewReader(`{}`), h)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, `Token realm="api"`, rec.Header().Get("WWW-Authenticate"))
			assert.Equal(t, tt.want, decodeEnvelope(t, d).Error)
			assert.Nil(t, s.products.created)
		})
	}
}

func TestAuthSchemes(t *testing.T) {
	s := newTestServer(t, Config{})
	for _, scheme := range []string{"Token", "token", "Bearer", "BEARER"} {
		h := http.Header{"Authorization": {scheme + " " + testToken}}
		rec, _ := s.do(t, http.MethodGet, "/api/dashboard", nil, h)
		assert.Equal(t, http.StatusOK, rec.Code, scheme)
	}
}

func TestCreateProduct_JSON(t *testing.T) {
	s := newTestServer(t, Config{})

	body := `{
		"name": "ThinkPad X1",
		"category": "Laptops",
		"price": 2500000,
		"specs": ["16GB RAM"],
		"warranty": null,
		"trending": "true",
		"images_data": ["aGVsbG8=", ""],
		"unknown": {"nested": [1, 2]}
	}`
	rec, d := s.do(t, http.MethodPost, "/api/products/", strings.NewReader(body), jsonHeader())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Product created successfully", decodeEnvelope(t, d).Message)

	in := s.products.created
	require.NotNil(t, in)
	assert.Equal(t, "ThinkPad X1", in.Name)
	assert.Equal(t, "Laptops", in.Category)
	assert.Equal(t, product.Price{Text: "2500000", Number: true}, in.Price)
	assert.Equal(t, []string{"16GB RAM"}, in.Specs)
	assert.Nil(t, in.Warranty)
	assert.True(t, in.Trending)
	assert.Equal(t, []string{"aGVsbG8=", ""}, in.ImagesData)
	require.NotNil(t, in.CreatorID)
	assert.Equal(t, testAccount.ID, *in.CreatorID)
}

func TestCreateProduct_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "missing name", body: `{"category":"Laptops","price":"1,000"}`, want: "name: This field is required."},
		{name: "missing price", body: `{"name":"abc","category":"Laptops"}`, want: "price: This field is required."},
		{name: "specs not array", body: `{"name":"abc","category":"Laptops","price":"1,000","specs":"x"}`, want: "specs: Specs must be an array."},
		{name: "spec not string", body: `{"name":"abc","category":"Laptops","price":"1,000","specs":[1]}`, want: "specs: Each spec must be a string."},
		{name: "bad price type", body: `{"name":"abc","category":"Laptops","price":[]}`, want: "price: Price must be a number or in format: '720,000' or '720,000 TZS'"},
		{name: "not an object", body: `[]`, want: "Request body must be a JSON object."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, Config{})
			rec, d := s.do(t, http.MethodPost, "/api/products", strings.NewReader(tt.body), jsonHeader())
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			env := decodeEnvelope(t, d)
			assert.False(t, env.Success)
			assert.Equal(t, tt.want, env.Error)
			assert.Nil(t, s.products.created)
		})
	}
}

func TestCreateProduct_ServiceValidation(t *testing.T) {
	s := newTestServer(t, Config{})
	s.products.err = &product.ValidationError{Message: "At least one image is required."}

	body := `{"name":"abc","category":"Laptops","price":"1,000"}`
	rec, d := s.do(t, http.MethodPost, "/api/products", strings.NewReader(body), jsonHeader())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "At least one image is required.", decodeEnvelope(t, d).Error)
}

func TestCreateProduct_Multipart(t *testing.T) {
	s := newTestServer(t, Config{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("name", "Gaming Rig"))
	require.NoError(t, mw.WriteField("category", "Gaming PCs"))
	require.NoError(t, mw.WriteField("price", "3,000,000 TZS"))
	require.NoError(t, mw.WriteField("specs", `["RTX 4090","64GB RAM"]`))
	require.NoError(t, mw.WriteField("trending", "on"))

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="images"; filename="rig.png"`)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(png)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	rec, _ := s.do(t, http.MethodPost, "/api/products", &buf, authed("Content-Type", mw.FormDataContentType()))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	in := s.products.created
	require.NotNil(t, in)
	assert.Equal(t, "Gaming Rig", in.Name)
	assert.Equal(t, product.Price{Text: "3,000,000 TZS"}, in.Price)
	assert.Equal(t, []string{"RTX 4090", "64GB RAM"}, in.Specs)
	assert.True(t, in.Trending)
	require.Len(t, in.Uploads, 1)
	assert.Equal(t, "rig.png", in.Uploads[0].Name)
	assert.Equal(t, "image/png", in.Uploads[0].ContentType)
	assert.Equal(t, png, in.Uploads[0].Data)
}

func TestCreateProduct_TooLarge(t *testing.T) {
	s := newTestServer(t, Config{MaxBodyBytes: 16})

	body := `{"name":"a long enough product name","category":"Laptops"}`
	rec, d := s.do(t, http.MethodPost, "/api/products", strings.NewReader(body), jsonHeader())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Request body too large", decodeEnvelope(t, d).Error)
}

func TestUpdateProduct(t *testing.T) {
	tests := []struct {
		method  string
		partial bool
	}{
		{method: http.MethodPut},
		{method: http.MethodPatch, partial: true},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			s := newTestServer(t, Config{})
			target := "/api/products/" + s.products.product.ID.String()

			rec, d := s.do(t, tt.method, target, strings.NewReader(`{"price":"900,000","specs":[]}`), jsonHeader())
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, "Product updated successfully", decodeEnvelope(t, d).Message)

			in := s.products.updated
			require.NotNil(t, in)
			assert.Equal(t, tt.partial, s.products.partial)
			assert.Nil(t, in.Name)
			require.NotNil(t, in.Price)
			assert.Equal(t, "900,000", in.Price.Text)
			require.NotNil(t, in.Specs)
			assert.Empty(t, *in.Specs)
		})
	}
}

func TestUpdateProduct_NotFound(t *testing.T) {
	s := newTestServer(t, Config{})
	s.products.err = errors.Wrap(product.ErrNotFound, "update")

	rec, d := s.do(t, http.MethodPatch, "/api/products/"+uuid.NewString(), strings.NewReader(`{}`), jsonHeader())
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Product not found", decodeEnvelope(t, d).Error)
}

func TestDeleteProduct(t *testing.T) {
	s := newTestServer(t, Config{})
	id := s.products.product.ID

	rec, d := s.do(t, http.MethodDelete, "/api/products/"+id.String()+"/", nil, authed())
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, d)
	assert.True(t, env.Success)
	assert.Equal(t, "Product deleted successfully", env.Message)
	assert.Equal(t, "null", env.Data.String())
	assert.Equal(t, id, s.products.deleted)
}

func TestDeleteImage(t *testing.T) {
	imageID := uuid.New()

	tests := []struct {
		name   string
		image  string
		err    error
		status int
		want   string
	}{
		{name: "ok", image: imageID.String(), status: http.StatusOK, want: "Image deleted successfully"},
		{name: "last image", image: imageID.String(), err: product.ErrLastImage, status: http.StatusBadRequest,
			want: "Cannot delete the last image. At least one image is required."},
		{name: "unknown image", image: imageID.String(), err: product.ErrImageNotFound, status: http.StatusNotFound, want: "Image not found"},
		{name: "malformed image id", image: "42", status: http.StatusNotFound, want: "Image not found"},
		{name: "failure", image: imageID.String(), err: errors.New("disk full"), status: http.StatusInternalServerError,
			want: "Failed to delete image"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, Config{})
			s.products.err = tt.err

			target := "/api/products/" + s.products.product.ID.String() + "/images/" + tt.image
			rec, d := s.do(t, http.MethodDelete, target, nil, authed())
			assert.Equal(t, tt.status, rec.Code)

			env := decodeEnvelope(t, d)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.want, env.Message)
				assert.Equal(t, imageID, s.products.image)
				return
			}
			assert.Equal(t, tt.want, env.Error)
		})
	}
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		status      int
		want        string
	}{
		{name: "json", contentType: "application/json", body: `{"username":"seller","password":"secret"}`, status: http.StatusOK},
		{name: "form", contentType: "application/x-www-form-urlencoded", body: "username=seller&password=secret", status: http.StatusOK},
		{name: "wrong password", contentType: "application/json", body: `{"username":"seller","password":"nope"}`,
			status: http.StatusUnauthorized, want: "Invalid username or password"},
		{name: "missing password", contentType: "application/json", body: `{"username":"seller"}`,
			status: http.StatusBadRequest, want: "Username and password are required"},
		{name: "empty body", contentType: "application/json", status: http.StatusBadRequest,
			want: "Username and password are required"},
		{name: "non-string password", contentType: "application/json", body: `{"username":"seller","password":123}`,
			status: http.StatusBadRequest, want: "Username and password are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, Config{})
			h := http.Header{"Content-Type": {tt.contentType}}

			rec, d := s.do(t, http.MethodPost, "/api/login/", strings.NewReader(tt.body), h)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			env := decodeEnvelope(t, d)
			if tt.status != http.StatusOK {
				assert.False(t, env.Success)
				assert.Equal(t, tt.want, env.Error)
				assert.Empty(t, rec.Header().Get("WWW-Authenticate"))
				return
			}
			assert.Equal(t, "Login successful", env.Message)
			assert.JSONEq(t, `{
				"token": "`+testToken+`",
				"user_id": 7,
				"username": "seller",
				"email": "seller@example.com"
			}`, env.Data.String())
		})
	}
}

func TestDashboard(t *testing.T) {
	s := newTestServer(t, Config{})

	rec, d := s.do(t, http.MethodGet, "/api/dashboard?sort=name&limit=500", nil, authed())
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, d)
	assert.Equal(t, "Dashboard data retrieved successfully", env.Message)

	var creator jx.Raw
	require.NoError(t, jx.DecodeBytes(env.Data).Obj(func(d *jx.Decoder, key string) error {
		if key != "creator" {
			return d.Skip()
		}
		var err error
		creator, err = d.Raw()
		return err
	}))
	assert.JSONEq(t, `{"id":7,"username":"seller","email":"seller@example.com"}`, creator.String())

	assert.Equal(t, testAccount.ID, s.catalog.creator)
	assert.Equal(t, catalog.SortNameAsc, s.catalog.params.Sort)
	assert.Equal(t, catalog.DefaultLimit, s.catalog.params.Limit)
}

func TestDashboard_Error(t *testing.T) {
	s := newTestServer(t, Config{})
	s.catalog.err = errors.New("boom")

	rec, d := s.do(t, http.MethodGet, "/api/dashboard", nil, authed())
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to retrieve dashboard data", decodeEnvelope(t, d).Error)
}

func TestTokenFromHeader(t *testing.T) {
	tests := []struct {
		header string
		key    string
		err    error
	}{
		{header: "", err: auth.ErrNoToken},
		{header: "Token abc", key: "abc"},
		{header: "  bearer   abc  ", key: "abc"},
		{header: "Token a b", err: auth.ErrInvalidToken},
		{header: "Token", err: auth.ErrInvalidToken},
		{header: "Digest abc", err: auth.ErrNoToken},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			key, err := tokenFromHeader(tt.header)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.key, key)
		})
	}
}

func TestHandlers_LeaveOutcomeLogsToServices(t *testing.T) {
	s := newTestServer(t, Config{})
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := zctx.Base(context.Background(), zap.New(core))

	create := httptest.NewRequest(http.MethodPost, "/api/products/",
		strings.NewReader(`{"name":"ThinkPad X1","category":"Laptops","price":"1,000","images_data":["aGVsbG8="]}`))
	create.Header = jsonHeader()
	login := httptest.NewRequest(http.MethodPost, "/api/login/",
		strings.NewReader(`{"username":"seller","password":"wrong"}`))
	login.Header.Set("Content-Type", "application/json")

	for _, req := range []*http.Request{create, login} {
		rec := httptest.NewRecorder()
		s.mux.ServeHTTP(rec, req.WithContext(ctx))
		assert.Less(t, rec.Code, http.StatusInternalServerError, rec.Body.String())
	}
	assert.Zero(t, logs.Len(), "handlers must not repeat service logs: %v", logs.All())
}
