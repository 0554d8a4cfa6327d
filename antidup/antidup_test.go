package antidup

import "testing"

// TestS2EntityRelaxation reproduces spec scenario S2. D carries A's title
// tokens in another order, so Jaccard(A,D) is 1.0; C shares 3 of 4 tokens
// with A (0.75), which stays below the 0.80 entity-relaxed threshold.
func TestS2EntityRelaxation(t *testing.T) {
	a := Article{ID: 1, TitleSig: "zenit|spartak|win", EntitySig: "team:zenit|team:spartak"}
	b := Article{ID: 2, TitleSig: "zenit|spartak|victory", EntitySig: "team:zenit|team:spartak"}
	c := Article{ID: 3, TitleSig: "zenit|spartak|victor|win", EntitySig: "team:zenit|team:spartak"}
	d := Article{ID: 4, TitleSig: "spartak|win|zenit", EntitySig: "team:zenit|team:spartak"}

	visible, hidden := FilterNearDuplicates([]Article{a, b, c, d})

	if len(hidden) != 1 || hidden[0].Article.ID != 4 {
		t.Fatalf("expected only D (id=4) hidden, got hidden=%v", hidden)
	}
	if hidden[0].DuplicateOf != 1 {
		t.Errorf("DuplicateOf = %d, want 1 (A)", hidden[0].DuplicateOf)
	}
	if hidden[0].Jaccard != 1.0 {
		t.Errorf("Jaccard = %v, want 1.0", hidden[0].Jaccard)
	}

	wantVisible := map[int64]bool{1: true, 2: true, 3: true}
	if len(visible) != 3 {
		t.Fatalf("expected 3 visible, got %d: %v", len(visible), visible)
	}
	for _, v := range visible {
		if !wantVisible[v.ID] {
			t.Errorf("unexpected visible article id=%d", v.ID)
		}
	}
}

func TestIsNearDuplicateABNotDup(t *testing.T) {
	a := Article{ID: 1, TitleSig: "zenit|spartak|win", EntitySig: "team:zenit|team:spartak"}
	b := Article{ID: 2, TitleSig: "zenit|spartak|victory", EntitySig: "team:zenit|team:spartak"}
	isDup, jac, entityMatch := IsNearDuplicate(b, a)
	if isDup {
		t.Error("expected A,B not to be near-duplicates")
	}
	if jac != 0.5 {
		t.Errorf("Jaccard = %v, want 0.5", jac)
	}
	if !entityMatch {
		t.Error("expected entityMatch=true")
	}
}

func TestFilterNearDuplicatesPreservesOrderFirstWins(t *testing.T) {
	a := Article{ID: 1, TitleSig: "a|b|c", EntitySig: ""}
	b := Article{ID: 2, TitleSig: "a|b|c", EntitySig: ""}
	visible, hidden := FilterNearDuplicates([]Article{a, b})
	if len(visible) != 1 || visible[0].ID != 1 {
		t.Fatalf("expected only first kept, got %v", visible)
	}
	if len(hidden) != 1 || hidden[0].DuplicateOf != 1 {
		t.Fatalf("expected second hidden as duplicate of first, got %v", hidden)
	}
}

func TestFilterNearDuplicatesEmptyInput(t *testing.T) {
	visible, hidden := FilterNearDuplicates(nil)
	if visible != nil || hidden != nil {
		t.Errorf("expected nil/nil for empty input, got visible=%v hidden=%v", visible, hidden)
	}
}
