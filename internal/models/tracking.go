package models

import (
	"sort"
	"strings"
)

// TrackingRecord is one status update of a shipment.
type TrackingRecord struct {
	ActualTime       int64  `json:"actual_time"`
	BuyerDescription string `json:"buyer_description"`
	Description      string `json:"description"`
	CurrentLocation  struct {
		LocationName string `json:"location_name"`
	} `json:"current_location"`
}

// Text prefers the buyer facing description.
func (r TrackingRecord) Text() string {
	if s := strings.TrimSpace(r.BuyerDescription); s != "" {
		return s
	}
	return strings.TrimSpace(r.Description)
}

// TrackingInfo is the shipment part of a tracking API response.
type TrackingInfo struct {
	TrackingNumber string           `json:"sls_tn"`
	ClientOrderID  string           `json:"client_order_id"`
	Records        []TrackingRecord `json:"records"`
}

// Timeline returns the records newest first.
func (t TrackingInfo) Timeline() []TrackingRecord {
	recs := make([]TrackingRecord, len(t.Records))
	copy(recs, t.Records)
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].ActualTime > recs[j].ActualTime
	})
	return recs
}

// Latest returns the most recent record.
func (t TrackingInfo) Latest() (TrackingRecord, bool) {
	recs := t.Timeline()
	if len(recs) == 0 {
		return TrackingRecord{}, false
	}
	return recs[0], true
}
