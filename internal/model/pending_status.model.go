package model

// PendingStatusUpdate holds a status change that arrived before its target
// message existed. At most one is kept per meta_msg_id; later arrivals for
// the same still-missing message overwrite the value (last write wins).
type PendingStatusUpdate struct {
	MetaMsgID string        `json:"meta_msg_id"`
	Status    MessageStatus `json:"status"`
}
