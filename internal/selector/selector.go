// Package selector reconciles the manifest and the progress ledger to pick
// exactly one next task per iteration.
package selector

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"grindstone/internal/ledger"
	"grindstone/internal/manifest"
)

// ErrBacklogExhausted is returned by Next when every manifest record is completed.
var ErrBacklogExhausted = errors.New("no tasks remain in the backlog")

// IntegrityError reports a disagreement between the manifest's completed flags
// and the progress ledger. The harness halts on this: guessing which side is
// correct risks silent data loss or duplicate work.
type IntegrityError struct {
	MissingFromLedger []string // Completed in manifest, absent from ledger
	MissingFromStore  []string // Present in ledger, not completed in manifest
}

// Error returns a description naming the divergent task ids on each side.
func (e *IntegrityError) Error() string {
	var parts []string
	if len(e.MissingFromLedger) > 0 {
		parts = append(parts, fmt.Sprintf("completed in manifest but missing from ledger: %s",
			strings.Join(e.MissingFromLedger, ", ")))
	}
	if len(e.MissingFromStore) > 0 {
		parts = append(parts, fmt.Sprintf("in ledger but not completed in manifest: %s",
			strings.Join(e.MissingFromStore, ", ")))
	}
	return "manifest/ledger integrity violation: " + strings.Join(parts, "; ")
}

// CheckIntegrity verifies the cross-consistency invariant: the set of ledger
// task ids must equal the set of manifest records with completed = true.
func CheckIntegrity(store *manifest.Store, lgr *ledger.Ledger) error {
	completed := store.CompletedIDs()
	ledgered := lgr.IDs()

	var integrityErr IntegrityError
	for id := range completed {
		if !ledgered[id] {
			integrityErr.MissingFromLedger = append(integrityErr.MissingFromLedger, id)
		}
	}
	for id := range ledgered {
		if !completed[id] {
			integrityErr.MissingFromStore = append(integrityErr.MissingFromStore, id)
		}
	}

	if len(integrityErr.MissingFromLedger) > 0 || len(integrityErr.MissingFromStore) > 0 {
		sort.Strings(integrityErr.MissingFromLedger)
		sort.Strings(integrityErr.MissingFromStore)
		return &integrityErr
	}
	return nil
}

// Next returns the pending record with the lowest id, after validating
// manifest/ledger consistency. Returns ErrBacklogExhausted when nothing is
// pending. Selection is deterministic: a total order by id means the same
// state always yields the same task, which makes crash re-runs reproducible.
func Next(store *manifest.Store, lgr *ledger.Ledger) (*manifest.Record, error) {
	if err := CheckIntegrity(store, lgr); err != nil {
		return nil, err
	}

	var pick *manifest.Record
	for _, rec := range store.Remaining() {
		if pick == nil || rec.ID < pick.ID {
			pick = rec
		}
	}

	if pick == nil {
		return nil, ErrBacklogExhausted
	}
	return pick, nil
}
