package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"order-tracker-api/internal/metrics"
	"order-tracker-api/internal/models"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
)

// TrackingPrefix starts every SPX tracking number.
const TrackingPrefix = "SPXVN"

var trackingCodeRe = regexp.MustCompile(`(?i)\bSPXVN[A-Z0-9]{8,}\b`)

// ExtractTrackingCode finds a tracking number in free text and upper-cases it.
func ExtractTrackingCode(text string) (string, bool) {
	m := trackingCodeRe.FindString(text)
	if m == "" {
		return "", false
	}
	return strings.ToUpper(m), true
}

type trackingResponse struct {
	Retcode int    `json:"retcode"`
	Message string `json:"message"`
	Data    struct {
		SLSTrackingInfo models.TrackingInfo `json:"sls_tracking_info"`
	} `json:"data"`
}

// TrackingClient queries shipment status by tracking number.
type TrackingClient struct {
	client
	url string
}

// NewTrackingClient creates a client for the tracking API at url.
func NewTrackingClient(url string, timeout time.Duration, m *metrics.Metrics, logger *log.Logger) *TrackingClient {
	return &TrackingClient{
		client: newClient("tracking", timeout, m, logger),
		url:    url,
	}
}

// Track returns the tracking info of code.
func (c *TrackingClient) Track(ctx context.Context, code string) (models.TrackingInfo, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return models.TrackingInfo{}, fmt.Errorf("parse tracking url: %w", err)
	}
	q := u.Query()
	q.Set("spx_tn", code)
	q.Set("language_code", "vi")
	u.RawQuery = q.Encode()

	req, err := newRequest(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return models.TrackingInfo{}, err
	}

	status, body, err := c.do(req)
	if err != nil {
		return models.TrackingInfo{}, err
	}
	if status != http.StatusOK {
		return models.TrackingInfo{}, c.statusError(status, body, 120)
	}

	var resp trackingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.TrackingInfo{}, &Error{API: c.api, Message: "response is not JSON", Err: err}
	}
	if resp.Retcode != 0 {
		return models.TrackingInfo{}, &Error{API: c.api, Message: fmt.Sprintf("retcode %d: %s", resp.Retcode, resp.Message)}
	}
	return resp.Data.SLSTrackingInfo, nil
}

// LatestStatus returns the newest status text and its time, or "—" when
// the shipment cannot be tracked.
func (c *TrackingClient) LatestStatus(ctx context.Context, code string) (string, time.Time) {
	info, err := c.Track(ctx, code)
	if err != nil {
		c.logger.Warn("latest status unavailable", "code", code, "err", err)
		return "—", time.Time{}
	}
	rec, ok := info.Latest()
	if !ok {
		return "—", time.Time{}
	}
	text := rec.Text()
	if text == "" {
		text = "—"
	}
	return text, time.Unix(rec.ActualTime, 0)
}
