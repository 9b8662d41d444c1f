package handlers

import (
	"net/http"
	"strings"

	"order-tracker-api/internal/models"
	"order-tracker-api/internal/realtime"
	"order-tracker-api/internal/upstream"

	"github.com/gin-gonic/gin"
)

// bannedTrackingNumber is what the order API reports instead of a tracking
// number for banned accounts.
const bannedTrackingNumber = "Đang chờ"

const (
	defaultOrderStatus    = "Đơn hàng đang trong quá trình vận chuyển"
	defaultShippingMethod = "Nhanh (Thanh toán khi nhận hàng)"
)

// IngestOrdersRequest carries the user's session cookie
type IngestOrdersRequest struct {
	Cookie string `json:"cookie" binding:"required"`
}

// OrderSummary describes the first order of an ingested batch
type OrderSummary struct {
	Status         string        `json:"status"`
	OrderID        string        `json:"orderId"`
	OrderTime      string        `json:"orderTime"`
	Recipient      RecipientView `json:"recipient"`
	Product        *ProductView  `json:"product,omitempty"`
	ShippingMethod string        `json:"shippingMethod"`
	Carrier        string        `json:"carrier"`
	TrackingNumber string        `json:"trackingNumber"`
	TotalDue       int64         `json:"totalDue"`
	TotalDueText   string        `json:"totalDueText"`
}

func newOrderSummary(od models.Order) OrderSummary {
	s := OrderSummary{
		Status:         orDefault(od.TrackingInfoDescription, defaultOrderStatus),
		OrderID:        orDefault(od.OrderID, "N/A"),
		OrderTime:      orDefault(od.OrderTime, "—"),
		ShippingMethod: orDefault(od.ShippingMethod, defaultShippingMethod),
		Carrier:        "N/A",
		TrackingNumber: orDefault(od.TrackingNumber, "N/A"),
		Recipient: RecipientView{
			Who:   strings.Join([]string{orDefault(od.Address.ShippingName, "N/A"), orDefault(od.Address.DisplayPhone(), "N/A")}, " • "),
			Where: orDefault(od.Address.ShippingAddress, "N/A"),
		},
	}
	if strings.HasPrefix(od.TrackingNumber, upstream.TrackingPrefix) {
		s.Carrier = "SPX Express"
	}
	if len(od.ProductInfo) > 0 {
		p := od.ProductInfo[0]
		v := newProductView(p)
		s.Product = &v
		s.TotalDue = p.UnitPrice() * int64(p.Quantity())
	}
	s.TotalDueText = formatVND(s.TotalDue)
	return s
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

/*
*
IngestOrders handles POST /api/orders
Fetches the orders behind a session cookie, caches their products and
addresses, and returns a summary of the first order.
*/
func (h *Handler) IngestOrders(c *gin.Context) {
	var req IngestOrdersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request. cookie is required.",
		})
		return
	}
	if !upstream.ValidCookie(req.Cookie) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cookie (must start with SPC or contain ; or =)",
		})
		return
	}

	ctx := c.Request.Context()
	batch, err := h.Orders.FetchOrders(ctx, req.Cookie)
	if err != nil {
		h.Logger.Error("order api failed", "err", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": upstreamMessage(err)})
		return
	}

	cached := 0
	for _, od := range batch.Orders {
		if err := h.Cache.StoreFromFetch(ctx, od); err != nil {
			h.Logger.Warn("cache store failed", "orderId", od.OrderID, "trackingNumber", od.TrackingNumber, "err", err)
			continue
		}
		if len(od.ProductInfo) == 0 {
			continue
		}
		cached++
		if _, err := h.Hub.Publish(realtime.Event{
			Type:           realtime.EventOrderCached,
			OrderID:        od.OrderID,
			TrackingNumber: od.TrackingNumber,
			Items:          len(od.ProductInfo),
		}); err != nil {
			h.Logger.Warn("publish event failed", "err", err)
		}
	}

	// the first account decides the reply; live orders of later accounts
	// are cached above but not shown
	if batch.DeadFirst {
		c.JSON(http.StatusGone, gin.H{"error": "DeadCookie - cookie expired"})
		return
	}
	if len(batch.Orders) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No order details from API. Try another cookie."})
		return
	}

	od := batch.Orders[0]
	if od.TrackingNumber == bannedTrackingNumber {
		c.JSON(http.StatusForbidden, gin.H{"error": "Account is banned or cookie expired"})
		return
	}

	if _, err := h.Cache.PurgeExpired(ctx); err != nil {
		h.Logger.Warn("purge failed", "err", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"order":  newOrderSummary(od),
		"count":  len(batch.Orders),
		"cached": cached,
	})
}
