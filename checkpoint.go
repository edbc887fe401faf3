package streaming

import (
	"encoding/json"
	"time"
)

// Checkpoint is a durable snapshot of every registered observer's baseline
// at the end of one cycle. States maps observer key to that observer's
// exported state blob.
type Checkpoint struct {
	Pipeline string                     `json:"pipeline"`
	Cycle    int                        `json:"cycle"`
	States   map[string]json.RawMessage `json:"states"`
	SavedAt  time.Time                  `json:"saved_at"`
}
