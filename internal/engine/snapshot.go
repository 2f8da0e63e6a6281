package engine

import (
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// SnapshotState holds the serializable in-memory state for warm restart.
// This mirrors persistence.SnapshotData but uses typed fields.
type SnapshotState struct {
	Sequence  int64
	StateHash [32]byte // chain tip: the hash of the event at Sequence

	Collateral map[uuid.UUID]map[string]*uint256.Int
	Debts      map[uuid.UUID]*uint256.Int
}

// CreateSnapshotState captures the current in-memory state for persistence.
func (e *Engine) CreateSnapshotState() *SnapshotState {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return &SnapshotState{
		Sequence:   e.sequence - 1, // Last assigned sequence
		StateHash:  e.hasher.GetPrevHash(),
		Collateral: e.collateral.Snapshot(),
		Debts:      e.debts.Snapshot(),
	}
}

// RestoreFromSnapshot rehydrates the engine from a snapshot. On warm
// restart the caller loads the latest snapshot, restores, then replays
// events after snap.Sequence from the log.
func (e *Engine) RestoreFromSnapshot(snap *SnapshotState) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sequence = snap.Sequence + 1 // Next sequence to assign
	e.hasher.SetPrevHash(snap.StateHash)
	e.collateral.Restore(snap.Collateral)
	e.debts.Restore(snap.Debts)
}
