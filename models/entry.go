package models

import (
	"fmt"
	"time"
)

// EntryTargetKind identifies what an entry belongs to
type EntryTargetKind string

const (
	EntryTargetCompetition EntryTargetKind = "competition"
	EntryTargetInstance    EntryTargetKind = "instance"
)

// EntryTarget is what an entry belongs to: either a pool competition or a
// head-to-head instance, never both. Build it with CompetitionTarget or InstanceTarget.
type EntryTarget struct {
	kind EntryTargetKind
	id   int64
}

// CompetitionTarget targets a pool competition
func CompetitionTarget(competitionID int64) EntryTarget {
	return EntryTarget{kind: EntryTargetCompetition, id: competitionID}
}

// InstanceTarget targets a head-to-head instance
func InstanceTarget(instanceID int64) EntryTarget {
	return EntryTarget{kind: EntryTargetInstance, id: instanceID}
}

// ParseEntryTarget rebuilds a target from its stored kind and id
func ParseEntryTarget(kind string, id int64) (EntryTarget, error) {
	switch EntryTargetKind(kind) {
	case EntryTargetCompetition:
		return CompetitionTarget(id), nil
	case EntryTargetInstance:
		return InstanceTarget(id), nil
	}
	return EntryTarget{}, fmt.Errorf("unknown entry target kind %q", kind)
}

func (t EntryTarget) Kind() EntryTargetKind { return t.kind }
func (t EntryTarget) ID() int64             { return t.id }

// CompetitionID returns the competition id when the target is a competition
func (t EntryTarget) CompetitionID() (int64, bool) {
	return t.id, t.kind == EntryTargetCompetition
}

// InstanceID returns the instance id when the target is a head-to-head instance
func (t EntryTarget) InstanceID() (int64, bool) {
	return t.id, t.kind == EntryTargetInstance
}

func (t EntryTarget) String() string {
	return fmt.Sprintf("%s:%d", t.kind, t.id)
}

// EntryStatus is the state of an entry
type EntryStatus string

const (
	EntryStatusPendingLineup EntryStatus = "pending_lineup"
	EntryStatusSubmitted     EntryStatus = "submitted"
	EntryStatusCancelled     EntryStatus = "cancelled"
)

// Entry is a user's paid participation in a competition or head-to-head instance
type Entry struct {
	ID                 int64       `db:"id"`
	UserID             int64       `db:"user_id"`
	Target             EntryTarget `db:"-"`
	EntryFeePaid       int64       `db:"entry_fee_paid"`
	Status             EntryStatus `db:"status"`
	DebitTransactionID *int64      `db:"debit_transaction_id"`
	Selections         []int64     `db:"-"`
	CreatedAt          time.Time   `db:"created_at"`
	UpdatedAt          time.Time   `db:"updated_at"`
}

// IsActive reports whether the entry still holds its paid place
func (e *Entry) IsActive() bool {
	return e.Status != EntryStatusCancelled
}

// ValidateSelections checks the shape of a golfer lineup before anything is written
func ValidateSelections(selections []int64, picksRequired int) error {
	if len(selections) != picksRequired {
		return NewValidationError("golferSelections", fmt.Sprintf("exactly %d golfers must be selected, got %d", picksRequired, len(selections)))
	}
	seen := make(map[int64]struct{}, len(selections))
	for _, golferID := range selections {
		if golferID <= 0 {
			return NewValidationError("golferSelections", fmt.Sprintf("invalid golfer id %d", golferID))
		}
		if _, dup := seen[golferID]; dup {
			return NewValidationError("golferSelections", fmt.Sprintf("golfer %d selected more than once", golferID))
		}
		seen[golferID] = struct{}{}
	}
	return nil
}
