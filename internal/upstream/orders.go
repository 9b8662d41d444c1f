package upstream

import (
	"bytes"
	"context"
	"net/http"
	"strings"
	"time"

	"order-tracker-api/internal/metrics"
	"order-tracker-api/internal/models"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
)

// deadCookie is the per-account error the order API reports for expired cookies.
const deadCookie = "DeadCookie"

// ValidCookie reports whether s looks like an order-site session cookie.
func ValidCookie(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "SPC") || strings.ContainsAny(s, ";=")
}

// OrderBatch is the decoded response of one order lookup.
type OrderBatch struct {
	Orders []models.Order

	// DeadCookies counts account entries rejected as expired.
	DeadCookies int

	// DeadFirst is set when the first account that contributed anything to
	// the response was rejected as expired. Its answer wins over orders of
	// later accounts.
	DeadFirst bool

	// Skipped counts order details that could not be decoded.
	Skipped int
}

type orderDetailsRequest struct {
	Cookies []string `json:"cookies"`
}

type orderDetailsResponse struct {
	AllOrderDetails *[]accountOrders `json:"allOrderDetails"`
}

type accountOrders struct {
	Cookie string `json:"cookie"`
	Data   *struct {
		Error string `json:"error"`
	} `json:"data"`
	OrderDetails []json.RawMessage `json:"orderDetails"`
}

// OrderClient fetches order details for a session cookie.
type OrderClient struct {
	client
	url string
}

// NewOrderClient creates a client for the order API at url.
func NewOrderClient(url string, timeout time.Duration, m *metrics.Metrics, logger *log.Logger) *OrderClient {
	return &OrderClient{
		client: newClient("orders", timeout, m, logger),
		url:    url,
	}
}

// FetchOrders returns every order detail visible with cookie.
func (c *OrderClient) FetchOrders(ctx context.Context, cookie string) (OrderBatch, error) {
	if !ValidCookie(cookie) {
		return OrderBatch{}, &Error{API: c.api, Message: "invalid cookie (must start with SPC or contain ; or =)"}
	}

	payload, err := json.Marshal(orderDetailsRequest{Cookies: []string{strings.TrimSpace(cookie)}})
	if err != nil {
		return OrderBatch{}, err
	}
	req, err := newRequest(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return OrderBatch{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	status, body, err := c.do(req)
	if err != nil {
		return OrderBatch{}, err
	}
	if status != http.StatusOK {
		return OrderBatch{}, c.statusError(status, body, 200)
	}

	var resp orderDetailsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return OrderBatch{}, &Error{API: c.api, Message: "response is not JSON", Err: err}
	}
	if resp.AllOrderDetails == nil {
		return OrderBatch{}, &Error{API: c.api, Message: "missing allOrderDetails in response"}
	}

	var batch OrderBatch
	contributed := false
	for _, acct := range *resp.AllOrderDetails {
		if acct.Data != nil && acct.Data.Error == deadCookie {
			batch.DeadCookies++
			if !contributed {
				batch.DeadFirst = true
			}
			contributed = true
			continue
		}
		for _, raw := range acct.OrderDetails {
			contributed = true
			// one malformed order must not drop the rest of the batch
			var od models.Order
			if err := json.Unmarshal(raw, &od); err != nil {
				batch.Skipped++
				c.logger.Warn("skipping undecodable order", "err", err, "order", truncate(string(raw), 200))
				continue
			}
			od.Cookie = acct.Cookie
			batch.Orders = append(batch.Orders, od)
		}
	}
	return batch, nil
}
