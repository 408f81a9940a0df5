package models

import "time"

// Event types published to the presentation layer.
const (
	EventLoadingStarted  = "loading-started"
	EventLoadingFinished = "loading-finished"
	EventDelistedRemoved = "delisted-removed"
	EventCatalogLoading  = "catalog-loading"
	EventCatalogUpdated  = "catalog-updated"
)

// RefreshEvent is a status notification for the presentation layer.
// Success and Error are set on finish events; Delisted on delisted-removed.
type RefreshEvent struct {
	Type      string           `json:"type"`
	BatchID   string           `json:"batch_id,omitempty"`
	Success   *bool            `json:"success,omitempty"`
	Error     string           `json:"error,omitempty"`
	Delisted  []DelistedTicker `json:"delisted,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// FinishedEvent builds a loading-finished (or catalog-updated) event.
func FinishedEvent(eventType, batchID string, err error, ts time.Time) RefreshEvent {
	ok := err == nil
	ev := RefreshEvent{Type: eventType, BatchID: batchID, Success: &ok, Timestamp: ts}
	if err != nil {
		ev.Error = err.Error()
	}
	return ev
}
