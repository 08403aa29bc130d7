package types

// TagReadEvent is the payload of a tag_read event on GET /events.
type TagReadEvent struct {
	// Normalized EPC, hex without separators.
	// example: E2001122334455667788AABB
	EPC string `json:"epc" example:"E2001122334455667788AABB"`
	// Raw TID slot as reported by the reader.
	// example: 200
	TID string `json:"tid" example:"200"`
	// Signal strength.
	// example: 71
	RSSI int `json:"rssi" example:"71"`
}

// ConnectionEvent is the payload of connection_changed.
type ConnectionEvent struct {
	// example: true
	Connected bool `json:"connected" example:"true"`
}

// ScanningEvent is the payload of scanning_changed.
type ScanningEvent struct {
	// example: true
	Scanning bool `json:"scanning" example:"true"`
}
