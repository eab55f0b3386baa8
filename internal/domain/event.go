package domain

import "time"

// SyncEventTopic is the bus topic every workflow publishes on
const SyncEventTopic = "catalog:sync"

const (
	ActionCreate     = "create"
	ActionUpdate     = "update"
	ActionDelete     = "delete"
	ActionBulkUpload = "bulk_upload"
	ActionWipeRemote = "wipe_remote"
	ActionDiscard    = "discard"
)

// SyncEvent describes the outcome of one workflow run
type SyncEvent struct {
	Action      string    `json:"action"`
	SKU         string    `json:"sku,omitempty"`
	RemoteID    int64     `json:"remote_id,omitempty"`
	Count       int       `json:"count,omitempty"`
	LocalError  string    `json:"local_error,omitempty"`
	RemoteError string    `json:"remote_error,omitempty"`
	ExecutedAt  time.Time `json:"executed_at"`
}

// Failed reports whether any side of the workflow failed
func (e SyncEvent) Failed() bool {
	return e.LocalError != "" || e.RemoteError != ""
}
