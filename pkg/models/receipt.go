package models

// Receipt records one user's delivery/read acknowledgment of one message.
// Its id is derived deterministically from (user, message) so retried
// acknowledgments land on the same record. Timestamps (ns) only advance:
// once set they are never cleared.
type Receipt struct {
	ID          string `json:"id"`
	User        string `json:"user"`
	Message     string `json:"message"`
	DeliveredTS int64  `json:"delivered_ts,omitempty"`
	ReadTS      int64  `json:"read_ts,omitempty"`
}

func (r *Receipt) RecordType() string { return TypeReceipt }
func (r *Receipt) RecordID() string   { return r.ID }
func (r *Receipt) OwnerID() string    { return r.User }

func (r *Receipt) IsDelivered() bool { return r.DeliveredTS != 0 }
func (r *Receipt) IsRead() bool      { return r.ReadTS != 0 }

// MarkDelivered stamps the delivery time if not already delivered and
// reports whether the receipt changed.
func (r *Receipt) MarkDelivered(ts int64) bool {
	if r.IsDelivered() {
		return false
	}
	r.DeliveredTS = ts
	return true
}

// MarkRead stamps the read time if not already read and reports whether
// the receipt changed. Reading implies delivery.
func (r *Receipt) MarkRead(ts int64) bool {
	if r.IsRead() {
		return false
	}
	r.ReadTS = ts
	if !r.IsDelivered() {
		r.DeliveredTS = ts
	}
	return true
}
