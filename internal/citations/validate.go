package citations

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/inkwellhq/inkwell-backend/internal/apperr"
	"github.com/inkwellhq/inkwell-backend/internal/types"
)

const (
	CodeMissingLedgerEntry = "MISSING_LEDGER_ENTRY"
	CodeUnverifiedLocator  = "UNVERIFIED_LOCATOR"
)

// Ref identifies one citation to check: the citation's own id (key within the
// section) and the ledger entry it claims to resolve to.
type Ref struct {
	CitationID    string    `json:"citation_id"`
	LedgerEntryID uuid.UUID `json:"ledger_entry_id"`
}

// Error is one machine-readable validation failure.
type Error struct {
	Code          string    `json:"code"`
	CitationID    string    `json:"citation_id"`
	LedgerEntryID uuid.UUID `json:"ledger_entry_id"`
}

// Result aggregates validation over a citation set. Errors preserve input
// order.
type Result struct {
	Valid  bool    `json:"valid"`
	Errors []Error `json:"errors"`
}

// ValidateCitations checks each reference against the given ledger records.
// An empty citation sequence is trivially valid. A citation is valid iff its
// ledger entry exists, is human-verified, and carries a non-empty locator
// sequence.
func ValidateCitations(refs []Ref, records []*types.LedgerEntry) Result {
	byID := make(map[uuid.UUID]*types.LedgerEntry, len(records))
	for _, rec := range records {
		if rec != nil {
			byID[rec.ID] = rec
		}
	}

	res := Result{Valid: true, Errors: []Error{}}
	for _, ref := range refs {
		rec, ok := byID[ref.LedgerEntryID]
		if !ok {
			res.Errors = append(res.Errors, Error{
				Code:          CodeMissingLedgerEntry,
				CitationID:    ref.CitationID,
				LedgerEntryID: ref.LedgerEntryID,
			})
			continue
		}
		locators, err := rec.DecodedLocators()
		if err != nil {
			locators = nil
		}
		if !Evaluate(locators, rec.VerifiedByHuman).Meets(PolicyCompose) {
			res.Errors = append(res.Errors, Error{
				Code:          CodeUnverifiedLocator,
				CitationID:    ref.CitationID,
				LedgerEntryID: ref.LedgerEntryID,
			})
		}
	}
	res.Valid = len(res.Errors) == 0
	return res
}

// AssertCitationsValid returns an aggregated validation error naming every
// failing code and ledger entry, or nil. The compose processor uses this as
// the hard gate before generation.
func AssertCitationsValid(refs []Ref, records []*types.LedgerEntry) error {
	res := ValidateCitations(refs, records)
	if res.Valid {
		return nil
	}
	parts := make([]string, 0, len(res.Errors))
	for _, e := range res.Errors {
		parts = append(parts, fmt.Sprintf("%s:%s", e.Code, e.LedgerEntryID))
	}
	return apperr.Validation("citation validation failed: " + strings.Join(parts, ", "))
}
