// Package effort computes the heuristic customer-effort score for resolved
// disambiguation events. Scoring is a pure function of each event under a
// fixed set of business-rule weights; no state is shared across events.
package effort

import (
	"fmt"
	"log/slog"

	"github.com/watson-developer-cloud/assistant-effort/internal/conversation"
	"github.com/watson-developer-cloud/assistant-effort/internal/flatten"
)

// Fixed business-rule weights. The score bands they produce: 0 for no
// selection, [10, 50] for disambiguation selections, [70, 100] for
// more-options selections, 200 for none-of-the-above.
const (
	MaxDisambiguationLength = 5
	MaxMoreOptionsLength    = 5

	DisambiguationOccurredWeight = 10.0
	DisambiguationLengthWeight   = 20.0
	DisambiguationRankWeight     = 20.0

	MoreOptionsOccurredWeight = 70.0
	MoreOptionsLengthWeight   = 15.0
	MoreOptionsRankWeight     = 15.0

	NoneOfTheAboveScore = 200.0
)

// previewNoData marks an event the candidate model had no opinion on; it is
// backfilled with the observed effort score after all events are scored.
const previewNoData = -1.0

// NoneOfTheAboveRank is the sentinel rank reported when the user picked the
// none-of-the-above entry from the more-options menu.
const NoneOfTheAboveRank = -1

// ScoredEvent is a disambiguation event enriched with the derived score
// fields.
type ScoredEvent struct {
	conversation.Event

	// SuggestionRank is the zero-based position of the selection within the
	// disambiguation menu, nil when the selection was not found there.
	SuggestionRank *int
	// MoreOptionRank is the position within the more-options menu, with
	// NoneOfTheAboveRank substituted for the opt-out entry. Nil when the
	// selection was not found there either.
	MoreOptionRank *int

	SelectedDialogNode string
	NoneOfTheAbove     bool

	EffortScore        float64
	PreviewEffortScore float64
}

// ScoringError reports an event that reached the scorer without the
// structurally required disambiguation menu.
type ScoringError struct {
	LogID string
}

func (e *ScoringError) Error() string {
	return fmt.Sprintf("scoring: event %s has no disambiguation menu", e.LogID)
}

// Rank locates the selected suggestion id, searching the disambiguation menu
// first and the more-options menu second. Primary matches win. A
// none-of-the-above pick from the more-options menu reports
// NoneOfTheAboveRank instead of its literal position.
func Rank(ev conversation.Event) (suggestionRank, moreOptionRank *int, dialogNode string, noneOfTheAbove bool) {
	for i, opt := range ev.Suggestions {
		if opt.SuggestionID == ev.SelectedSuggestionID {
			rank := i
			return &rank, nil, opt.DialogNode, opt.NoneOfTheAbove
		}
	}
	for i, opt := range ev.MoreOptions {
		if opt.SuggestionID == ev.SelectedSuggestionID {
			rank := i
			if opt.NoneOfTheAbove {
				rank = NoneOfTheAboveRank
			}
			return nil, &rank, opt.DialogNode, opt.NoneOfTheAbove
		}
	}
	return nil, nil, "", false
}

// Score computes the derived fields for one event. It never fails on
// data-shape anomalies within the event; only a structurally absent
// disambiguation menu is an error.
func Score(ev conversation.Event) (ScoredEvent, error) {
	if len(ev.Suggestions) == 0 {
		return ScoredEvent{}, &ScoringError{LogID: ev.LogID}
	}

	scored := ScoredEvent{Event: ev}

	if ev.SelectedSuggestionID == "" {
		scored.PreviewEffortScore = previewNoData
		return scored, nil
	}

	suggestionRank, moreOptionRank, dialogNode, noneAbove := Rank(ev)
	scored.SuggestionRank = suggestionRank
	scored.MoreOptionRank = moreOptionRank
	scored.SelectedDialogNode = dialogNode
	scored.NoneOfTheAbove = noneAbove

	switch {
	case suggestionRank != nil:
		if noneAbove {
			scored.EffortScore = NoneOfTheAboveScore
		} else {
			scored.EffortScore = disambiguationScore(len(ev.Suggestions), *suggestionRank)
		}
	case moreOptionRank != nil:
		if noneAbove {
			scored.EffortScore = NoneOfTheAboveScore
		} else {
			scored.EffortScore = moreOptionsScore(len(ev.MoreOptions), *moreOptionRank)
		}
	default:
		// Broken chain: a selection id that matches neither menu scores as
		// no effort observed.
		scored.EffortScore = 0.0
	}

	scored.PreviewEffortScore = previewScore(ev)
	return scored, nil
}

// ScoreAll scores every event and backfills the preview sentinel with the
// observed effort score. Events missing their disambiguation menu are
// dropped with a warning; all others proceed.
func ScoreAll(events []conversation.Event, logger *slog.Logger) ([]ScoredEvent, []string) {
	if logger == nil {
		logger = slog.Default()
	}

	scored := make([]ScoredEvent, 0, len(events))
	var warnings []string

	for _, ev := range events {
		s, err := Score(ev)
		if err != nil {
			warnings = append(warnings, err.Error())
			logger.Warn("dropping unscorable event", "log_id", ev.LogID, "error", err)
			continue
		}
		scored = append(scored, s)
	}

	// No proposed-model opinion degrades to observed effort.
	for i := range scored {
		if scored[i].PreviewEffortScore == previewNoData {
			scored[i].PreviewEffortScore = scored[i].EffortScore
		}
	}

	return scored, warnings
}

func disambiguationScore(menuLength, rank int) float64 {
	lengthMult := float64(menuLength-1) / float64(MaxDisambiguationLength-1)
	rankMult := float64(rank) / float64(MaxDisambiguationLength-1)
	return DisambiguationOccurredWeight + DisambiguationLengthWeight*lengthMult + DisambiguationRankWeight*rankMult
}

func moreOptionsScore(menuLength, rank int) float64 {
	lengthMult := float64(menuLength-1) / float64(MaxMoreOptionsLength-1)
	rankMult := float64(rank) / float64(MaxMoreOptionsLength-1)
	return MoreOptionsOccurredWeight + MoreOptionsLengthWeight*lengthMult + MoreOptionsRankWeight*rankMult
}

// previewScore estimates the effort the candidate model's menus would have
// caused for the user's actual selection. It returns previewNoData when the
// event has no preview payload or the selection maps into neither offered
// menu.
func previewScore(ev conversation.Event) float64 {
	if ev.Preview == nil {
		return previewNoData
	}

	if opt, ok := findOption(ev.Suggestions, ev.SelectedSuggestionID); ok {
		return previewChannelScore(opt, ev.Preview.Disambiguation, disambiguationScore)
	}
	if opt, ok := findOption(ev.MoreOptions, ev.SelectedSuggestionID); ok {
		return previewChannelScore(opt, ev.Preview.MoreOptions, moreOptionsScore)
	}
	return previewNoData
}

// previewChannelScore scores one selection against the candidate model's
// menu for the same channel. An unfamiliar selection (absent from the
// candidate menu) or a none-of-the-above source option scores the full
// penalty; a single-entry candidate menu means the disambiguation would not
// have happened at all.
func previewChannelScore(opt flatten.Option, previews []flatten.PreviewSuggestion, formula func(int, int) float64) float64 {
	if opt.NoneOfTheAbove {
		return NoneOfTheAboveScore
	}

	rank := -1
	for i, p := range previews {
		if p.IntentOrLabel() == opt.IntentOrLabel() {
			rank = i
			break
		}
	}
	if rank < 0 {
		return NoneOfTheAboveScore
	}
	if len(previews) == 1 {
		return 0
	}
	return formula(len(previews), rank)
}

func findOption(options []flatten.Option, suggestionID string) (flatten.Option, bool) {
	for _, opt := range options {
		if opt.SuggestionID == suggestionID {
			return opt, true
		}
	}
	return flatten.Option{}, false
}
