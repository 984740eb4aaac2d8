package order_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/offset-orders/internal/order"
)

type orderResponse struct {
	Data order.Order `json:"data"`
}

type ordersResponse struct {
	Data []order.Order `json:"data"`
}

type summaryResponse struct {
	Data order.Summary `json:"data"`
}

type quoteResponse struct {
	Data struct {
		Supply int64  `json:"supply_price"`
		VAT    int64  `json:"vat_price"`
		Total  int64  `json:"total_price"`
		Mode   string `json:"pricing_mode"`
	} `json:"data"`
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	handler := order.NewHandler(order.HandlerConfig{Repository: newTestRepository(t), Logger: zerolog.Nop()})
	r := chi.NewRouter()
	handler.Routes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestOrderHandlers(t *testing.T) {
	router := newTestRouter(t)

	t.Run("create unit price order", func(t *testing.T) {
		rec := do(t, router, http.MethodPost, "/books/5/orders", `{"qty": 1000, "unit_price": "5000", "date": "2024-02-01", "vendor": "Hanul"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var resp orderResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, int64(5), resp.Data.BookID)
		require.Equal(t, int64(5_500_000), resp.Data.Total)
	})

	t.Run("create itemized order", func(t *testing.T) {
		rec := do(t, router, http.MethodPost, "/books/5/orders", `{"qty": 500, "cover_ctp_cost": 100000, "cover_print_cost": 200000, "binding_cost": 50000}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var resp orderResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, int64(385_000), resp.Data.Total)
		require.Equal(t, "2024-03-09", resp.Data.Date)
	})

	t.Run("validation", func(t *testing.T) {
		require.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPost, "/books/5/orders", `{"qty": 0}`).Code)
		require.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPost, "/books/5/orders", `{"qty": "many"}`).Code)
		require.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPost, "/books/5/orders", `{"qty": 10, "date": "09/03/2024"}`).Code)
		require.Equal(t, http.StatusBadRequest, do(t, router, http.MethodPost, "/books/x/orders", `{"qty": 10}`).Code)
	})

	t.Run("list with filter", func(t *testing.T) {
		rec := do(t, router, http.MethodGet, "/books/5/orders", "")
		var all ordersResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
		require.Len(t, all.Data, 2)
		require.Equal(t, int64(500), all.Data[0].Qty)

		rec = do(t, router, http.MethodGet, "/books/5/orders?qty=1000", "")
		var filtered ordersResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &filtered))
		require.Len(t, filtered.Data, 1)

		rec = do(t, router, http.MethodGet, "/books/5/orders?qty=abc", "")
		var ignored ordersResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ignored))
		require.Len(t, ignored.Data, 2)
	})

	t.Run("override invoice and summary", func(t *testing.T) {
		require.Equal(t, http.StatusNoContent, do(t, router, http.MethodPatch, "/orders/2/override", `{"total_override": "400000", "memo": " agreed "}`).Code)
		require.Equal(t, http.StatusNoContent, do(t, router, http.MethodPatch, "/orders/2/invoice", `{"issued": true}`).Code)

		rec := do(t, router, http.MethodGet, "/orders/2", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var raw map[string]map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
		require.Equal(t, float64(400_000), raw["data"]["effective_total"])
		require.Equal(t, "agreed", raw["data"]["memo"])
		require.Equal(t, true, raw["data"]["invoice_issued"])

		rec = do(t, router, http.MethodGet, "/books/5/orders/summary", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var summary summaryResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
		require.Equal(t, 2, summary.Data.Count)
		require.Equal(t, int64(5_900_000), summary.Data.EffectiveTotal)
		require.Equal(t, int64(400_000), summary.Data.InvoicedTotal)

		require.Equal(t, http.StatusNoContent, do(t, router, http.MethodPatch, "/orders/2/override", `{"total_override": 0}`).Code)
		rec = do(t, router, http.MethodGet, "/orders/2", "")
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
		require.Equal(t, float64(385_000), raw["data"]["effective_total"])
		require.Equal(t, "", raw["data"]["memo"])
	})

	t.Run("missing order", func(t *testing.T) {
		require.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/orders/999", "").Code)
		require.Equal(t, http.StatusNoContent, do(t, router, http.MethodDelete, "/orders/999", "").Code)
		require.Equal(t, http.StatusNoContent, do(t, router, http.MethodPatch, "/orders/999/invoice", `{"issued": true}`).Code)
	})

	t.Run("quote", func(t *testing.T) {
		rec := do(t, router, http.MethodPost, "/quotes", `{"qty": 1000, "unit_price": 5000}`)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp quoteResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, int64(5_000_000), resp.Data.Supply)
		require.Equal(t, "unit_price", resp.Data.Mode)

		rec = do(t, router, http.MethodGet, "/books/5/orders", "")
		var all ordersResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
		require.Len(t, all.Data, 2)
	})

	t.Run("delete", func(t *testing.T) {
		require.Equal(t, http.StatusNoContent, do(t, router, http.MethodDelete, "/orders/1", "").Code)
		require.Equal(t, http.StatusNotFound, do(t, router, http.MethodGet, "/orders/1", "").Code)
	})
}
