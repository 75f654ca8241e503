package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kencha-a11/pos-terminal/domain/catalog"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(server.URL, 5*time.Second)
	client.sleep = func(time.Duration) {} // no real retry delay in tests
	return client, server
}

type stubTokenSource struct {
	token   string
	cleared bool
}

func (s *stubTokenSource) Token() string { return s.token }
func (s *stubTokenSource) ClearToken()  { s.cleared = true; s.token = "" }

func TestClient_RequestHeaders(t *testing.T) {
	var got http.Header
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte(`{"data":[]}`))
	}))
	client.SetTokenSource(&stubTokenSource{token: "tok-1"})

	_, err := client.ListProducts(context.Background(), ProductQuery{})
	require.NoError(t, err)

	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.Equal(t, "Bearer tok-1", got.Get("Authorization"))
	assert.NotEmpty(t, got.Get("X-Device-Timezone"))
	assert.NotEmpty(t, got.Get("X-Device-ID"))
}

func TestDeviceTimezone_PrefersTZName(t *testing.T) {
	t.Setenv("TZ", "Asia/Manila")
	assert.Equal(t, "Asia/Manila", deviceTimezone())
}

func TestClient_NoAuthHeaderWithoutToken(t *testing.T) {
	var got http.Header
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte(`{"data":[]}`))
	}))

	_, err := client.ListProducts(context.Background(), ProductQuery{})
	require.NoError(t, err)
	assert.Empty(t, got.Get("Authorization"))
}

func TestClient_RetriesOnceOnGatewayError(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"data":[{"id":1,"name":"Coffee","price":"10.00"}]}`))
	}))

	page, err := client.ListProducts(context.Background(), ProductQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "Coffee", page.Data[0].Name)
}

func TestClient_RetriesOnlyOnce(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.ListProducts(context.Background(), ProductQuery{})
	require.Error(t, err)
	assert.Equal(t, 2, calls)

	apiErr, ok := err.(*APIError)
	require.True(t, ok, "error should be *APIError, got %T", err)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
}

func TestClient_NoRetryOnClientError(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"Validation failed"}`))
	}))

	_, err := client.ListProducts(context.Background(), ProductQuery{})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestClient_UnauthorizedPurgesToken(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Unauthenticated."}`))
	}))
	ts := &stubTokenSource{token: "stale"}
	client.SetTokenSource(ts)

	_, err := client.ListProducts(context.Background(), ProductQuery{})
	require.Error(t, err)
	assert.True(t, ts.cleared, "401 should purge the stored token")
}

func TestProductQuery_Encode(t *testing.T) {
	var query string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Write([]byte(`{"data":[]}`))
	}))

	_, err := client.ListProducts(context.Background(), ProductQuery{
		Page:    3,
		PerPage: 50,
		Filters: catalog.Filters{Search: "milk", Category: "all", Status: ""},
	})
	require.NoError(t, err)

	values := parseQuery(t, query)
	assert.Equal(t, "3", values.Get("page"))
	assert.Equal(t, "50", values.Get("perPage"))
	assert.Equal(t, "milk", values.Get("search"))
	assert.False(t, values.Has("category"), "category=all must be dropped")
	assert.False(t, values.Has("status"), "empty status must be dropped")
}

func TestProductQuery_EncodeDefaults(t *testing.T) {
	var query string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Write([]byte(`{"data":[]}`))
	}))

	_, err := client.ListProducts(context.Background(), ProductQuery{})
	require.NoError(t, err)

	values := parseQuery(t, query)
	assert.Equal(t, "1", values.Get("page"))
	assert.Equal(t, "50", values.Get("perPage"))
	assert.True(t, values.Has("search"), "search is always sent, even empty")
}

func TestClient_ListProductsCoercesPagination(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// No pagination fields at all
		w.Write([]byte(`{"data":[{"id":1,"price":12.5},{"id":2,"price":"3.25"}]}`))
	}))

	page, err := client.ListProducts(context.Background(), ProductQuery{})
	require.NoError(t, err)

	assert.Equal(t, 1, page.CurrentPage)
	assert.Equal(t, 1, page.LastPage)
	assert.Equal(t, 2, page.Total)
	assert.False(t, page.HasMore)
	// Price arrives as number on one row and string on the other
	assert.Equal(t, "12.5", page.Data[0].Price.String())
	assert.Equal(t, "3.25", page.Data[1].Price.String())
}

func TestClient_SellProductsEndpoint(t *testing.T) {
	var path string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Write([]byte(`{"data":[]}`))
	}))

	_, err := client.ListSellProducts(context.Background(), ProductQuery{})
	require.NoError(t, err)
	assert.Equal(t, "/sell/products", path)
}

func TestClient_GetProductByBarcode_Miss(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"data":null}`))
	}))

	product, err := client.GetProductByBarcode(context.Background(), "000111")
	require.NoError(t, err)
	assert.Nil(t, product)
}

func TestClient_GetProductByBarcode_Hit(t *testing.T) {
	var path string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Write([]byte(`{"success":true,"data":{"id":9,"name":"Soap","barcode":"000111","price":"4.00"}}`))
	}))

	product, err := client.GetProductByBarcode(context.Background(), "000111")
	require.NoError(t, err)
	require.NotNil(t, product)
	assert.Equal(t, 9, product.ID)
	assert.Equal(t, "/products/barcode/000111", path)
}

func TestClient_CreateProduct_MultipartLayout(t *testing.T) {
	var (
		fields map[string][]string
		image  []byte
	)
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		fields = r.MultipartForm.Value
		file, _, err := r.FormFile("image_path")
		require.NoError(t, err)
		defer file.Close()
		buf := make([]byte, 16)
		n, _ := file.Read(buf)
		image = buf[:n]
		w.Write([]byte(`{"product":{"id":5,"name":"Tea"}}`))
	}))

	price := decimal.RequireFromString("7.25")
	stock := 40
	form := catalog.ProductForm{
		Name:          "Tea",
		Price:         &price,
		StockQuantity: &stock,
		Barcode:       "555",
		CategoryIDs:   []int{2, 9},
		ImageName:     "tea.jpg",
		Image:         []byte("jpegdata"),
	}

	product, err := client.CreateProduct(context.Background(), form)
	require.NoError(t, err)
	assert.Equal(t, 5, product.ID)

	assert.Equal(t, []string{"Tea"}, fields["name"])
	assert.Equal(t, []string{"7.25"}, fields["price"])
	assert.Equal(t, []string{"40"}, fields["stock_quantity"])
	assert.Equal(t, []string{"555"}, fields["barcode"])
	assert.Equal(t, []string{"2"}, fields["category_ids[0]"])
	assert.Equal(t, []string{"9"}, fields["category_ids[1]"])
	assert.Equal(t, "jpegdata", string(image))
	// Unset pointer fields stay out of the body
	_, hasThreshold := fields["low_stock_threshold"]
	assert.False(t, hasThreshold)
}

func TestClient_UpdateProduct_UsesMethodOverride(t *testing.T) {
	var method, rawQuery, path string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		path = r.URL.Path
		rawQuery = r.URL.RawQuery
		w.Write([]byte(`{"product":{"id":5}}`))
	}))

	_, err := client.UpdateProduct(context.Background(), 5, catalog.ProductForm{Name: "Tea"})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "/products/5", path)
	assert.Equal(t, "_method=PUT", rawQuery)
}

func TestClient_DeleteProducts_Body(t *testing.T) {
	var body map[string][]int
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"success":true}`))
	}))

	err := client.DeleteProducts(context.Background(), []int{4, 8})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 8}, body["products"])
}

func TestClient_CreateSale_Payload(t *testing.T) {
	var raw string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		raw = string(body)
		w.Write([]byte(`{"message":"Sale recorded","sale_id":42}`))
	}))

	items := []SaleItem{{ProductID: 1, Quantity: 3}}
	resp, err := client.CreateSale(context.Background(), items, decimal.RequireFromString("71.00"))
	require.NoError(t, err)
	assert.Equal(t, 42, resp.SaleID)

	// total_amount goes over the wire as a bare number, not a quoted string
	assert.Contains(t, raw, `"total_amount":71.00`)
	assert.Contains(t, raw, `"product_id":1`)

	var decoded struct {
		DeviceDatetime string `json:"device_datetime"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	parsed, err := time.Parse(time.RFC3339, decoded.DeviceDatetime)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), parsed, time.Minute)
}

func parseQuery(t *testing.T, raw string) url.Values {
	t.Helper()
	values, err := url.ParseQuery(raw)
	require.NoError(t, err)
	return values
}

func TestAPIError_DisplayMessage(t *testing.T) {
	tests := []struct {
		name string
		err  APIError
		want string
	}{
		{
			name: "field message preferred over general",
			err: APIError{
				Message: "Validation failed",
				Errors:  map[string][]string{"price": {"The price must be positive."}},
			},
			want: "The price must be positive.",
		},
		{
			name: "general message when no field errors",
			err:  APIError{Message: "Server exploded"},
			want: "Server exploded",
		},
		{
			name: "first field by sorted name",
			err: APIError{
				Message: "Validation failed",
				Errors: map[string][]string{
					"name":    {"Name taken."},
					"barcode": {"Barcode taken."},
				},
			},
			want: "Barcode taken.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.DisplayMessage())
		})
	}
}

func TestParseAPIError_FallsBackToStatusText(t *testing.T) {
	err := parseAPIError(http.StatusBadGateway, []byte("<html>nginx</html>"))
	assert.Equal(t, http.StatusBadGateway, err.Status)
	assert.Equal(t, "Bad Gateway", err.Message)
}
