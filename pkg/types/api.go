package types

// OKResponse is returned by command endpoints that report success as a flag.
type OKResponse struct {
	// Whether the reader accepted the command.
	// example: true
	OK bool `json:"ok" example:"true"`
}

// PowerRequest is the body of POST /power.
type PowerRequest struct {
	// Output power in dBm. Defaults to 30 when omitted.
	// example: 30
	Power *int `json:"power,omitempty" example:"30"`
}

// ReadMemoryRequest is the body of POST /memory/read.
type ReadMemoryRequest struct {
	// EPC of the tag to address, hex, whitespace tolerated.
	// example: E2001122334455667788AABB
	EPC string `json:"epc" example:"E2001122334455667788AABB"`
	// Memory bank: 0 reserved, 1 EPC, 2 TID, 3 user. Defaults to 1.
	// example: 1
	MemBank *int `json:"mem_bank,omitempty" example:"1"`
	// Start address in 16-bit words. Defaults to 2.
	// example: 2
	StartAddr *int `json:"start_addr,omitempty" example:"2"`
	// Number of words. Defaults to 6.
	// example: 6
	Length *int `json:"length,omitempty" example:"6"`
	// Access password, 4 bytes hex. Missing or short input is zero-padded.
	// example: 00000000
	Password string `json:"password,omitempty" example:"00000000"`
}

// ReadMemoryResponse carries the tag data, or null when the read failed.
type ReadMemoryResponse struct {
	// Hex payload without separators.
	// example: E2001122334455667788AABB
	Data *string `json:"data" example:"E2001122334455667788AABB"`
}

// WriteMemoryRequest is the body of POST /memory/write. Data is zero-padded
// or truncated to Length words.
type WriteMemoryRequest struct {
	// example: E2001122334455667788AABB
	EPC string `json:"epc" example:"E2001122334455667788AABB"`
	// example: 3
	MemBank *int `json:"mem_bank,omitempty" example:"3"`
	// example: 0
	StartAddr *int `json:"start_addr,omitempty" example:"0"`
	// example: 2
	Length *int `json:"length,omitempty" example:"2"`
	// Hex data to write.
	// example: DEADBEEF
	Data string `json:"data" example:"DEADBEEF"`
	// example: 00000000
	Password string `json:"password,omitempty" example:"00000000"`
}

// WriteEpcRequest is the body of POST /epc/write.
type WriteEpcRequest struct {
	// Current EPC of the tag.
	// example: E2001122334455667788AABB
	TargetEPC string `json:"target_epc" example:"E2001122334455667788AABB"`
	// EPC to write from word 2 of the EPC bank.
	// example: 300833B2DDD9014000000000
	NewEPC string `json:"new_epc" example:"300833B2DDD9014000000000"`
	// example: 00000000
	Password string `json:"password,omitempty" example:"00000000"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
