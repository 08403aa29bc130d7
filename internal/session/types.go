package session

import (
	"time"

	"github.com/google/uuid"
)

// State is the externally visible session state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateIdle         State = "idle"
	StateScanning     State = "scanning"
)

// link tracks the driver connection only; scanning is kept separately.
type link int

const (
	linkDown link = iota
	linkConnecting
	linkUp
)

// OpKind is the kind of a tag access operation.
type OpKind string

const (
	OpRead  OpKind = "read"
	OpWrite OpKind = "write"
)

// Defaults for memory reads when the host leaves fields unset.
const (
	DefaultBank      = 1
	DefaultStartWord = 2
	DefaultWordCount = 6
)

// epcStartWord is where the EPC begins in the EPC bank (after CRC and PC).
const epcStartWord = 2

// maxWords is the largest word count one access command can carry.
const maxWords = 0xFF

// Outcome resolves an access request. The zero value is the neutral
// failure: no data for a read, false for a write.
type Outcome struct {
	// Data is the read payload, upper or lower case as reported, no spaces.
	Data string
	OK   bool
}

// Reply receives the outcome of an asynchronous access request exactly once.
type Reply func(Outcome, error)

// ReadRequest reads Length words of Bank starting at word Start from the tag
// whose EPC matches. Bank, Start and Length must fit in a byte; anything else
// resolves as malformed input.
type ReadRequest struct {
	EPC      string
	Bank     int
	Start    int
	Length   int
	Password string
}

// WriteRequest writes Data (fit to Length words) into Bank at word Start.
type WriteRequest struct {
	EPC      string
	Bank     int
	Start    int
	Length   int
	Data     string
	Password string
}

// EpcWriteRequest rewrites the EPC of the tag currently carrying TargetEPC.
type EpcWriteRequest struct {
	TargetEPC string
	NewEPC    string
	Password  string
}

// pendingOp is the single in-flight access operation.
type pendingOp struct {
	id          uuid.UUID
	kind        OpKind
	reply       Reply
	wasScanning bool
	startedAt   time.Time
}

// Result labels used for metrics and operation_end events.
const (
	resultOK           = "ok"
	resultTimeout      = "timeout"
	resultRejected     = "rejected"
	resultMalformed    = "malformed"
	resultBusy         = "busy"
	resultAbandoned    = "abandoned"
	resultDisconnected = "not_connected"
)
