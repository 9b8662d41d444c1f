package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"order-tracker-api/internal/metrics"
	"order-tracker-api/internal/models"
	"order-tracker-api/internal/ordercache"
	"order-tracker-api/internal/realtime"
	"order-tracker-api/internal/testutil"
	"order-tracker-api/internal/upstream"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"
)

type fakeOrders struct {
	batch   upstream.OrderBatch
	err     error
	cookies []string
}

func (f *fakeOrders) FetchOrders(_ context.Context, cookie string) (upstream.OrderBatch, error) {
	f.cookies = append(f.cookies, cookie)
	return f.batch, f.err
}

type fakeTracker struct {
	info   models.TrackingInfo
	err    error
	status map[string]string
	at     time.Time
}

func (f *fakeTracker) Track(_ context.Context, code string) (models.TrackingInfo, error) {
	return f.info, f.err
}

func (f *fakeTracker) LatestStatus(_ context.Context, code string) (string, time.Time) {
	if s, ok := f.status[code]; ok {
		return s, f.at
	}
	return "—", time.Time{}
}

type recordingClient struct {
	messages [][]byte
}

func (c *recordingClient) Send(message []byte) bool {
	c.messages = append(c.messages, message)
	return true
}

func (c *recordingClient) Close() {}

func setupHandler(t *testing.T) (*Handler, *fakeOrders, *fakeTracker) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	orders := &fakeOrders{}
	tracker := &fakeTracker{}
	h := &Handler{
		Cache:    ordercache.New(testutil.NewStore(t), metrics.NewIsolated(), testutil.Logger()),
		Orders:   orders,
		Tracking: tracker,
		Hub:      realtime.NewHub(),
		Logger:   testutil.Logger(),
	}
	return h, orders, tracker
}

func newRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.POST("/api/orders", h.IngestOrders)
	r.GET("/api/tracking", h.ListRecentTracking)
	r.GET("/api/tracking/:code", h.GetTracking)
	return r
}

func perform(r http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func sampleOrder() models.Order {
	return models.Order{
		OrderID:        "2410150001",
		TrackingNumber: "SPXVN041234567890",
		OrderTime:      "15/10/2024",
		Address: models.Address{
			ShippingName:    "Nguyen Van A",
			ShippingPhone:   "84901234567",
			ShippingAddress: "12 Le Loi, Quan 1, TP HCM",
		},
		ProductInfo: []models.ProductItem{
			{Name: "Ao thun", ModelName: "L", Amount: 2, OrderPrice: 15_000_000, ItemID: 7, ShopID: 9},
		},
	}
}
