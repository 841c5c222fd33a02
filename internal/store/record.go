package store

import "time"

// Record is one persisted lamp transition. IDs are assigned by the
// persistence service and monotonically increase; records are never
// mutated after creation.
type Record struct {
	ID     int64     `json:"id"`
	Status bool      `json:"status"`
	Time   time.Time `json:"time"`
}

// StateToken renders a status as the wire token the persistence service
// accepts.
func StateToken(status bool) string {
	if status {
		return "on"
	}
	return "off"
}
