// Package citations holds the pure readiness and validation predicates for
// ledger evidence. Everything here is synchronous and side-effect free.
package citations

import (
	"strings"

	"github.com/inkwellhq/inkwell-backend/internal/types"
)

// Policy names a readiness level. Compose-time validation and export-time
// validation share one evaluator so the two can't drift.
type Policy int

const (
	// PolicyCompose gates generation: verified entry with at least one locator.
	PolicyCompose Policy = iota
	// PolicyExport is stricter: pointer + context + verified.
	PolicyExport
)

// Readiness is the evaluated evidence completeness of one ledger entry.
type Readiness struct {
	HasLocator      bool `json:"has_locator"`
	HasPointer      bool `json:"has_pointer"`
	HasContext      bool `json:"has_context"`
	VerifiedByHuman bool `json:"verified_by_human"`
}

// Evaluate computes readiness from a locator sequence and the human
// verification flag.
func Evaluate(locators []types.Locator, verifiedByHuman bool) Readiness {
	r := Readiness{
		HasLocator:      len(locators) > 0,
		VerifiedByHuman: verifiedByHuman,
	}
	for _, loc := range locators {
		if hasPositivePointer(loc) {
			r.HasPointer = true
		}
		if hasContext(loc) {
			r.HasContext = true
		}
		if r.HasPointer && r.HasContext {
			break
		}
	}
	return r
}

func hasPositivePointer(loc types.Locator) bool {
	return (loc.Page != nil && *loc.Page > 0) ||
		(loc.Paragraph != nil && *loc.Paragraph > 0) ||
		(loc.Sentence != nil && *loc.Sentence > 0)
}

func hasContext(loc types.Locator) bool {
	return strings.TrimSpace(loc.Note) != "" ||
		strings.TrimSpace(loc.Quote) != "" ||
		strings.TrimSpace(loc.Source) != ""
}

// Meets reports whether the readiness satisfies the named policy.
func (r Readiness) Meets(p Policy) bool {
	switch p {
	case PolicyCompose:
		return r.HasLocator && r.VerifiedByHuman
	default:
		return r.MeetsRequirements()
	}
}

// MeetsRequirements is the full predicate: locator present, some positive
// pointer, some non-empty context, and human verification.
func (r Readiness) MeetsRequirements() bool {
	return r.HasLocator && r.HasPointer && r.HasContext && r.VerifiedByHuman
}

// ChecklistItem is one labeled readiness requirement with its satisfied flag.
type ChecklistItem struct {
	Label     string `json:"label"`
	Satisfied bool   `json:"satisfied"`
}

// Checklist returns the four labeled requirements in a stable order.
func (r Readiness) Checklist() []ChecklistItem {
	return []ChecklistItem{
		{Label: "at least one locator recorded", Satisfied: r.HasLocator},
		{Label: "a locator has a page, paragraph, or sentence pointer", Satisfied: r.HasPointer},
		{Label: "a locator has a note, quote, or source", Satisfied: r.HasContext},
		{Label: "verified by a human reviewer", Satisfied: r.VerifiedByHuman},
	}
}

// BlockingMessage renders a human-readable explanation of what is missing.
// Missing evidence items are reported as prerequisites for verification;
// a verified-flag gap alone is reported against the full requirements.
func (r Readiness) BlockingMessage() string {
	items := r.Checklist()
	var prereqs []string
	for _, it := range items[:3] {
		if !it.Satisfied {
			prereqs = append(prereqs, it.Label)
		}
	}
	if len(prereqs) > 0 {
		return "missing prerequisites for verification: " + strings.Join(prereqs, "; ")
	}
	if !r.VerifiedByHuman {
		return "missing full requirements: " + items[3].Label
	}
	return ""
}
