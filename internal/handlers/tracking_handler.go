package handlers

import (
	"net/http"
	"strings"
	"time"

	"order-tracker-api/internal/ordercache"
	"order-tracker-api/internal/upstream"

	"github.com/gin-gonic/gin"
)

const (
	timelineSize    = 8
	productsShown   = 3
	recentLimit     = 50
	recentRowsShown = 20
)

// TimelineEntry is one shipment status update
type TimelineEntry struct {
	Time        string `json:"time"`
	Timestamp   int64  `json:"timestamp"`
	Description string `json:"description"`
	Location    string `json:"location,omitempty"`
}

// RecentShipment is one row of the recent tracking list
type RecentShipment struct {
	TrackingNumber string         `json:"trackingNumber"`
	Product        string         `json:"product"`
	Status         string         `json:"status"`
	StatusTime     string         `json:"statusTime,omitempty"`
	Recipient      *RecipientView `json:"recipient,omitempty"`
}

/*
*
GetTracking handles GET /api/tracking/:code
Returns the shipment timeline, enriched with cached products and recipient
when the originating order was ingested before.
*/
func (h *Handler) GetTracking(c *gin.Context) {
	code, ok := upstream.ExtractTrackingCode(c.Param("code"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid tracking number (expected SPXVN...)"})
		return
	}

	ctx := c.Request.Context()
	info, err := h.Tracking.Track(ctx, code)
	if err != nil {
		h.Logger.Error("tracking api failed", "code", code, "err", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": upstreamMessage(err)})
		return
	}

	records := info.Timeline()
	if len(records) > timelineSize {
		records = records[:timelineSize]
	}
	timeline := make([]TimelineEntry, 0, len(records))
	for _, r := range records {
		timeline = append(timeline, TimelineEntry{
			Time:        formatVNTime(time.Unix(r.ActualTime, 0)),
			Timestamp:   r.ActualTime,
			Description: r.Text(),
			Location:    r.CurrentLocation.LocationName,
		})
	}

	cached, err := h.Cache.LookupFirst(ctx, info.ClientOrderID, info.TrackingNumber, code)
	if err != nil {
		// degrade to an unenriched reply
		h.Logger.Warn("cache lookup failed", "code", code, "err", err)
		cached = ordercache.Result{}
	}

	items := cached.Items
	if len(items) > productsShown {
		items = items[:productsShown]
	}
	products := make([]ProductView, 0, len(items))
	for _, p := range items {
		products = append(products, newProductView(p))
	}

	resp := gin.H{
		"trackingNumber": info.TrackingNumber,
		"clientOrderId":  info.ClientOrderID,
		"timeline":       timeline,
		"products":       products,
		"cached":         cached.Found(),
	}
	if cached.Found() {
		if r := newRecipientView(cached.Address()); r != nil {
			resp["recipient"] = r
		}
	} else {
		resp["hint"] = "No cached products for this shipment yet. Submit the order cookie first."
	}
	c.JSON(http.StatusOK, resp)
}

/*
*
ListRecentTracking handles GET /api/tracking
Lists recently cached tracking numbers with their first product,
recipient and latest shipment status.
*/
func (h *Handler) ListRecentTracking(c *gin.Context) {
	ctx := c.Request.Context()
	keys, err := h.Cache.RecentKeys(ctx, upstream.TrackingPrefix, recentLimit)
	if err != nil {
		h.Logger.Error("list recent tracking failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list tracking numbers"})
		return
	}

	shown := keys
	if len(shown) > recentRowsShown {
		shown = shown[:recentRowsShown]
	}

	rows := make([]RecentShipment, 0, len(shown))
	for _, code := range shown {
		cached, err := h.Cache.Lookup(ctx, code)
		if err != nil {
			h.Logger.Warn("cache lookup failed", "code", code, "err", err)
		}

		row := RecentShipment{TrackingNumber: code, Product: "N/A"}
		if cached.Found() {
			if name := strings.TrimSpace(cached.Items[0].Name); name != "" {
				row.Product = name
			}
			row.Recipient = newRecipientView(cached.Address())
		}

		status, at := h.Tracking.LatestStatus(ctx, code)
		row.Status = status
		if !at.IsZero() {
			row.StatusTime = formatVNTime(at)
		}
		rows = append(rows, row)
	}

	c.JSON(http.StatusOK, gin.H{
		"items": rows,
		"count": len(keys),
		"more":  len(keys) - len(shown),
	})
}
