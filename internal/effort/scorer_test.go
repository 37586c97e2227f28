package effort

import (
	"math"
	"testing"
	"time"

	"github.com/watson-developer-cloud/assistant-effort/internal/conversation"
	"github.com/watson-developer-cloud/assistant-effort/internal/flatten"
)

func menu(ids ...string) []flatten.Option {
	options := make([]flatten.Option, len(ids))
	for i, id := range ids {
		options[i] = flatten.Option{
			SuggestionID: id,
			Label:        "label " + id,
			DialogNode:   "node_" + id,
			Intents:      []flatten.Intent{{Intent: "intent_" + id, Confidence: 0.9}},
		}
	}
	return options
}

func event(selected string, suggestions, moreOptions []flatten.Option) conversation.Event {
	if moreOptions == nil {
		moreOptions = []flatten.Option{}
	}
	return conversation.Event{
		LogID:                "log-1",
		ConversationID:       "conv-1",
		Timestamp:            time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		SelectedSuggestionID: selected,
		Suggestions:          suggestions,
		MoreOptions:          moreOptions,
	}
}

func previewOf(intents ...string) []flatten.PreviewSuggestion {
	previews := make([]flatten.PreviewSuggestion, len(intents))
	for i, in := range intents {
		previews[i] = flatten.PreviewSuggestion{Intent: in, Confidence: 0.8}
	}
	return previews
}

func approx(t *testing.T, got, want float64, label string) {
	t.Helper()
	if math.Abs(got-want) > 0.0001 {
		t.Errorf("%s = %f, want %f", label, got, want)
	}
}

func TestScore_FirstOfThree(t *testing.T) {
	// Menu of 3, first item picked: 10 + 20*0.5 + 20*0 = 20.
	scored, err := Score(event("a", menu("a", "b", "c"), nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	approx(t, scored.EffortScore, 20.0, "EffortScore")
	if scored.SuggestionRank == nil || *scored.SuggestionRank != 0 {
		t.Errorf("SuggestionRank = %v", scored.SuggestionRank)
	}
	if scored.MoreOptionRank != nil {
		t.Errorf("MoreOptionRank should be nil, got %v", scored.MoreOptionRank)
	}
	if scored.SelectedDialogNode != "node_a" {
		t.Errorf("SelectedDialogNode = %q", scored.SelectedDialogNode)
	}
}

func TestScore_DisambiguationFormula(t *testing.T) {
	tests := []struct {
		name     string
		length   int
		selected string
		want     float64
	}{
		{"length 1 rank 0", 1, "s0", 10.0},
		{"length 5 rank 0", 5, "s0", 30.0},
		{"length 5 rank 4", 5, "s4", 50.0},
		{"length 3 rank 1", 3, "s1", 25.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := make([]string, tt.length)
			for i := range ids {
				ids[i] = "s" + string(rune('0'+i))
			}
			scored, err := Score(event(tt.selected, menu(ids...), nil))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			approx(t, scored.EffortScore, tt.want, "EffortScore")
		})
	}
}

func TestScore_MoreOptionsFormula(t *testing.T) {
	tests := []struct {
		name     string
		length   int
		selected string
		want     float64
	}{
		{"length 1 rank 0", 1, "m0", 70.0},
		{"length 5 rank 4", 5, "m4", 100.0},
		{"length 3 rank 1", 3, "m1", 81.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := make([]string, tt.length)
			for i := range ids {
				ids[i] = "m" + string(rune('0'+i))
			}
			scored, err := Score(event(tt.selected, menu("a", "b"), menu(ids...)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			approx(t, scored.EffortScore, tt.want, "EffortScore")
			if scored.SuggestionRank != nil {
				t.Errorf("SuggestionRank should be nil for more-options pick")
			}
		})
	}
}

func TestScore_NoneOfTheAbove(t *testing.T) {
	suggestions := menu("a", "b", "c")
	suggestions[2].NoneOfTheAbove = true
	suggestions[2].DialogNode = flatten.NoneOfTheAboveLabel

	scored, err := Score(event("c", suggestions, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	approx(t, scored.EffortScore, NoneOfTheAboveScore, "EffortScore")
	if !scored.NoneOfTheAbove {
		t.Error("NoneOfTheAbove flag not set")
	}
}

func TestScore_NoneOfTheAboveFromMoreOptions(t *testing.T) {
	moreOptions := menu("m1", "m2", "m3")
	moreOptions[2].NoneOfTheAbove = true

	scored, err := Score(event("m3", menu("a"), moreOptions))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	approx(t, scored.EffortScore, NoneOfTheAboveScore, "EffortScore")
	if scored.MoreOptionRank == nil || *scored.MoreOptionRank != NoneOfTheAboveRank {
		t.Errorf("MoreOptionRank = %v, want %d sentinel", scored.MoreOptionRank, NoneOfTheAboveRank)
	}
}

func TestScore_PrimaryWinsOverSecondary(t *testing.T) {
	// Same id in both menus: the disambiguation match must win.
	scored, err := Score(event("dup", menu("dup", "b"), menu("dup")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scored.SuggestionRank == nil || scored.MoreOptionRank != nil {
		t.Errorf("primary should win: %v / %v", scored.SuggestionRank, scored.MoreOptionRank)
	}
}

func TestScore_NoSelection(t *testing.T) {
	scored, err := Score(event("", menu("a", "b"), nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	approx(t, scored.EffortScore, 0.0, "EffortScore")
	if scored.SuggestionRank != nil || scored.MoreOptionRank != nil {
		t.Error("ranks should be nil without a selection")
	}
}

func TestScore_BrokenChain(t *testing.T) {
	// Non-empty selection that matches neither menu.
	scored, err := Score(event("ghost", menu("a", "b"), menu("m1")))
	if err != nil {
		t.Fatalf("broken chain must not raise: %v", err)
	}
	approx(t, scored.EffortScore, 0.0, "EffortScore")
	if scored.SuggestionRank != nil || scored.MoreOptionRank != nil {
		t.Error("ranks should be nil for unmatched selection")
	}
	if scored.SelectedDialogNode != "" {
		t.Errorf("SelectedDialogNode = %q, want empty", scored.SelectedDialogNode)
	}
}

func TestScore_MissingPrimaryMenu(t *testing.T) {
	_, err := Score(event("a", nil, menu("m1")))
	if err == nil {
		t.Fatal("expected ScoringError for missing disambiguation menu")
	}
	if _, ok := err.(*ScoringError); !ok {
		t.Errorf("expected *ScoringError, got %T", err)
	}
}

func TestPreviewScore_ShortCircuitsAtLengthOne(t *testing.T) {
	ev := event("a", menu("a"), nil)
	ev.Preview = &flatten.Preview{Disambiguation: previewOf("intent_a")}

	scored, err := Score(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	approx(t, scored.PreviewEffortScore, 0.0, "PreviewEffortScore")
}

func TestPreviewScore_Formula(t *testing.T) {
	// Candidate menu of 3 with the chosen intent at rank 1:
	// 10 + 20*0.5 + 20*0.25 = 25.
	ev := event("a", menu("a", "b", "c"), nil)
	ev.Preview = &flatten.Preview{Disambiguation: previewOf("other", "intent_a", "another")}

	scored, err := Score(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	approx(t, scored.PreviewEffortScore, 25.0, "PreviewEffortScore")
}

func TestPreviewScore_FallsBackToLabelMatch(t *testing.T) {
	suggestions := []flatten.Option{{
		SuggestionID: "a",
		Label:        "Open an account",
		DialogNode:   "Open an account",
	}}
	ev := event("a", suggestions, nil)
	ev.Preview = &flatten.Preview{Disambiguation: []flatten.PreviewSuggestion{
		{Label: "Something"},
		{Label: "Open an account"},
		{Label: "Else"},
	}}

	scored, err := Score(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Intent-less option matched by label at rank 1 of 3.
	approx(t, scored.PreviewEffortScore, 25.0, "PreviewEffortScore")
}

func TestPreviewScore_UnfamiliarSelectionScoresPenalty(t *testing.T) {
	ev := event("a", menu("a", "b"), nil)
	ev.Preview = &flatten.Preview{Disambiguation: previewOf("totally", "different")}

	scored, err := Score(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	approx(t, scored.PreviewEffortScore, NoneOfTheAboveScore, "PreviewEffortScore")
}

func TestPreviewScore_MoreOptionsChannel(t *testing.T) {
	// Secondary pick scored against the candidate more-options menu:
	// 70 + 15*0.25 + 15*0 = 73.75.
	ev := event("m1", menu("a"), menu("m1", "m2"))
	ev.Preview = &flatten.Preview{
		Disambiguation: previewOf("unrelated"),
		MoreOptions:    previewOf("intent_m1", "intent_m2"),
	}

	scored, err := Score(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	approx(t, scored.PreviewEffortScore, 73.75, "PreviewEffortScore")
}

func TestPreviewScore_NoneOfTheAboveSource(t *testing.T) {
	suggestions := menu("a", "n")
	suggestions[1].NoneOfTheAbove = true
	ev := event("n", suggestions, nil)
	ev.Preview = &flatten.Preview{Disambiguation: previewOf("intent_n")}

	scored, err := Score(ev)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	approx(t, scored.PreviewEffortScore, NoneOfTheAboveScore, "PreviewEffortScore")
}

func TestScoreAll_BackfillsMissingPreview(t *testing.T) {
	withPreview := event("a", menu("a", "b", "c"), nil)
	withPreview.Preview = &flatten.Preview{Disambiguation: previewOf("intent_a", "x")}

	withoutPreview := event("b", menu("a", "b", "c"), nil)
	withoutPreview.LogID = "log-2"

	scored, warnings := ScoreAll([]conversation.Event{withPreview, withoutPreview}, nil)
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if len(scored) != 2 {
		t.Fatalf("expected 2 scored events, got %d", len(scored))
	}

	// First event has a real preview opinion.
	approx(t, scored[0].PreviewEffortScore, 15.0, "preview with data")
	// Second degrades to the observed effort score exactly.
	if scored[1].PreviewEffortScore != scored[1].EffortScore {
		t.Errorf("backfill mismatch: preview %f, effort %f",
			scored[1].PreviewEffortScore, scored[1].EffortScore)
	}
}

func TestScoreAll_DropsUnscorableWithWarning(t *testing.T) {
	good := event("a", menu("a"), nil)
	bad := event("a", nil, nil)
	bad.LogID = "log-bad"

	scored, warnings := ScoreAll([]conversation.Event{good, bad}, nil)
	if len(scored) != 1 {
		t.Fatalf("expected 1 scored event, got %d", len(scored))
	}
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", warnings)
	}
}

func TestScoreAll_ScoreBands(t *testing.T) {
	nota := menu("a", "b", "n")
	nota[2].NoneOfTheAbove = true

	events := []conversation.Event{
		event("a", menu("a"), nil),
		event("b", menu("a", "b", "c", "d", "e"), nil),
		event("m2", menu("x"), menu("m1", "m2", "m3")),
		event("n", nota, nil),
		event("", menu("a", "b"), nil),
		event("ghost", menu("a", "b"), nil),
	}

	scored, _ := ScoreAll(events, nil)
	for _, s := range scored {
		for label, score := range map[string]float64{
			"effort":  s.EffortScore,
			"preview": s.PreviewEffortScore,
		} {
			inBand := score == 0.0 ||
				(score >= 10.0 && score <= 125.0) ||
				score == NoneOfTheAboveScore
			if !inBand {
				t.Errorf("event %s: %s score %f outside allowed bands", s.LogID, label, score)
			}
		}
	}
}

func TestRank_PreviewMathMatchesScenarioTable(t *testing.T) {
	// 15.0 = 10 + 20*((2-1)/4) + 20*0, the value asserted in the backfill
	// test above; keep the arithmetic pinned down explicitly.
	approx(t, disambiguationScore(2, 0), 15.0, "disambiguationScore(2, 0)")
	approx(t, moreOptionsScore(2, 1), 77.5, "moreOptionsScore(2, 1)")
}
