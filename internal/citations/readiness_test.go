package citations

import (
	"strings"
	"testing"

	"github.com/inkwellhq/inkwell-backend/internal/types"
)

func intp(v int) *int { return &v }

func TestEvaluateMeetsRequirements(t *testing.T) {
	cases := []struct {
		name     string
		locators []types.Locator
		verified bool
		want     bool
	}{
		{
			name:     "empty_locators",
			locators: nil,
			verified: true,
			want:     false,
		},
		{
			name:     "pointer_only",
			locators: []types.Locator{{Page: intp(3)}},
			verified: true,
			want:     false,
		},
		{
			name:     "context_only",
			locators: []types.Locator{{Quote: "as shown in fig 2"}},
			verified: true,
			want:     false,
		},
		{
			name:     "pointer_and_context_unverified",
			locators: []types.Locator{{Page: intp(3), Note: "key claim"}},
			verified: false,
			want:     false,
		},
		{
			name:     "pointer_and_context_verified",
			locators: []types.Locator{{Page: intp(3), Note: "key claim"}},
			verified: true,
			want:     true,
		},
		{
			name: "pointer_and_context_on_different_locators",
			locators: []types.Locator{
				{Paragraph: intp(2)},
				{Source: "appendix B"},
			},
			verified: true,
			want:     true,
		},
		{
			name:     "zero_pointer_does_not_count",
			locators: []types.Locator{{Page: intp(0), Note: "n"}},
			verified: true,
			want:     false,
		},
		{
			name:     "whitespace_context_does_not_count",
			locators: []types.Locator{{Sentence: intp(1), Note: "   "}},
			verified: true,
			want:     false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Evaluate(tc.locators, tc.verified).MeetsRequirements()
			if got != tc.want {
				t.Fatalf("MeetsRequirements()=%v, want %v", got, tc.want)
			}
		})
	}
}

func TestPolicyLevels(t *testing.T) {
	// Verified with a locator but no pointer/context: composable, not exportable.
	r := Evaluate([]types.Locator{{}}, true)
	if !r.Meets(PolicyCompose) {
		t.Fatalf("expected compose policy to pass")
	}
	if r.Meets(PolicyExport) {
		t.Fatalf("expected export policy to fail")
	}
}

func TestChecklistAndBlockingMessage(t *testing.T) {
	r := Evaluate(nil, false)
	items := r.Checklist()
	if len(items) != 4 {
		t.Fatalf("expected 4 checklist items, got %d", len(items))
	}
	for _, it := range items {
		if it.Satisfied {
			t.Fatalf("expected all items unsatisfied, %q was satisfied", it.Label)
		}
	}
	if msg := r.BlockingMessage(); !strings.HasPrefix(msg, "missing prerequisites for verification") {
		t.Fatalf("unexpected blocking message: %q", msg)
	}

	// Full evidence, only the verified flag missing.
	r = Evaluate([]types.Locator{{Page: intp(1), Quote: "q"}}, false)
	if msg := r.BlockingMessage(); !strings.HasPrefix(msg, "missing full requirements") {
		t.Fatalf("unexpected blocking message: %q", msg)
	}

	r = Evaluate([]types.Locator{{Page: intp(1), Quote: "q"}}, true)
	if msg := r.BlockingMessage(); msg != "" {
		t.Fatalf("expected empty blocking message, got %q", msg)
	}
}
