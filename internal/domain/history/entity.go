package history

import (
	"time"

	"github.com/google/uuid"
)

// RecordID identifier type
type RecordID string

// NewRecordID generates a globally unique record identifier
func NewRecordID() RecordID {
	return RecordID(uuid.New().String())
}

// Record is one persisted analysis outcome, owned by exactly one username.
// Records are immutable after creation.
type Record struct {
	ID         RecordID  `json:"id"`
	Username   string    `json:"username"`
	ImageCount int       `json:"imageCount"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}

// DefaultRetention is the per-username record cap. Inserting beyond it
// evicts the owner's oldest records only.
const DefaultRetention = 50
