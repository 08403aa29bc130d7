package session

import (
	"context"
	"time"

	"rfidd/internal/tuning"
)

// PendingStatus describes the in-flight access operation.
type PendingStatus struct {
	ID          string    `json:"id"`
	Kind        OpKind    `json:"kind"`
	WasScanning bool      `json:"was_scanning"`
	WriteArmed  bool      `json:"write_armed"`
	StartedAt   time.Time `json:"started_at"`
}

// Status is a read-only projection of the session.
type Status struct {
	State            State            `json:"state"`
	Connected        bool             `json:"connected"`
	Scanning         bool             `json:"scanning"`
	Handle           byte             `json:"handle"`
	Pending          *PendingStatus   `json:"pending,omitempty"`
	TuningIndex      int              `json:"tuning_index"`
	SpaceSize        int              `json:"space_size"`
	Candidate        tuning.Candidate `json:"candidate"`
	LastTagSeen      time.Time        `json:"last_tag_seen"`
	LastConfigChange time.Time        `json:"last_config_change"`
	TagsRead         uint64           `json:"tags_read"`
	TuningSteps      uint64           `json:"tuning_steps"`
	InventoryStarts  uint64           `json:"inventory_starts"`
}

// Status snapshots the session on the queue.
func (s *Session) Status(ctx context.Context) (Status, error) {
	var st Status
	err := s.call(ctx, func() { st = s.snapshot() })
	return st, err
}

func (s *Session) snapshot() Status {
	st := Status{
		State:            s.state(),
		Connected:        s.link == linkUp,
		Scanning:         s.hostScanning(),
		Handle:           byte(s.handle),
		TuningIndex:      s.cursor,
		SpaceSize:        s.space.Len(),
		Candidate:        s.space.At(s.cursor),
		LastTagSeen:      s.lastTagSeen,
		LastConfigChange: s.lastConfigChange,
		TagsRead:         s.tagsRead,
		TuningSteps:      s.tuningSteps,
		InventoryStarts:  s.inventoryStarts,
	}
	if op := s.pending; op != nil {
		st.Pending = &PendingStatus{
			ID:          op.id.String(),
			Kind:        op.kind,
			WasScanning: op.wasScanning,
			WriteArmed:  s.writeArmed,
			StartedAt:   op.startedAt,
		}
	}
	return st
}
