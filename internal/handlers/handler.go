package handlers

import (
	"context"
	"errors"
	"time"

	"order-tracker-api/internal/models"
	"order-tracker-api/internal/ordercache"
	"order-tracker-api/internal/realtime"
	"order-tracker-api/internal/upstream"

	"github.com/charmbracelet/log"
)

// OrderFetcher looks up orders by session cookie.
type OrderFetcher interface {
	FetchOrders(ctx context.Context, cookie string) (upstream.OrderBatch, error)
}

// Tracker looks up shipments by tracking number.
type Tracker interface {
	Track(ctx context.Context, code string) (models.TrackingInfo, error)
	LatestStatus(ctx context.Context, code string) (string, time.Time)
}

// Handler serves the HTTP API. Its dependencies are injected once at startup.
type Handler struct {
	Cache    *ordercache.Service
	Orders   OrderFetcher
	Tracking Tracker
	Hub      *realtime.Hub
	Logger   *log.Logger
}

// upstreamMessage returns the user facing text of an upstream failure.
func upstreamMessage(err error) string {
	var upErr *upstream.Error
	if errors.As(err, &upErr) {
		return upErr.Message
	}
	return "Upstream request failed"
}
