// Package conversation reconstructs disambiguation events from flattened
// log turns. Each conversation is walked independently with a single-pass
// pending-offer state machine; the turn that answers an offer is paired with
// the turn that made it.
package conversation

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/watson-developer-cloud/assistant-effort/internal/flatten"
)

// Event is one resolved disambiguation: an offered menu paired with the turn
// where the user answered it. Derived score fields are added later by the
// effort scorer.
type Event struct {
	LogID                string
	ConversationID       string
	Timestamp            time.Time
	InputText            string
	SelectedSuggestionID string

	// Offer data carried over from the offering turn.
	Suggestions []flatten.Option
	MoreOptions []flatten.Option
	Preview     *flatten.Preview
	Applied     *flatten.AppliedModels
}

// Stats reports disambiguation traffic for the reporting layer.
type Stats struct {
	Turns         int
	Conversations int

	// Turn-level counts. DisambiguationTurns counts every turn that offered
	// a disambiguation menu, including those counted in BothTurns.
	DisambiguationTurns int
	MoreOptionTurns     int
	BothTurns           int

	// Conversation-level counts, mutually exclusive.
	DisambiguationConversations int
	MoreOptionConversations     int
	BothConversations           int

	// SkippedTurns counts turns dropped for missing a conversation id;
	// SkippedConversations counts whole conversations dropped for a missing
	// timestamp.
	SkippedTurns         int
	SkippedConversations int
	Errors               []string
}

// ReconstructionError reports a turn missing one of the required grouping or
// ordering keys. It is fatal for the affected conversation only.
type ReconstructionError struct {
	ConversationID string
	Reason         string
}

func (e *ReconstructionError) Error() string {
	if e.ConversationID == "" {
		return fmt.Sprintf("reconstruction: %s", e.Reason)
	}
	return fmt.Sprintf("reconstruction: conversation %s: %s", e.ConversationID, e.Reason)
}

// pendingOffer is the state carried across a conversation walk: the most
// recently offered, still-unresolved menu pair and its auto-learn payloads.
type pendingOffer struct {
	suggestions []flatten.Option
	moreOptions []flatten.Option
	preview     *flatten.Preview
	applied     *flatten.AppliedModels
}

// Reconstruct groups turns by conversation, orders each by timestamp, and
// emits one Event per resolved offer. Conversations with missing required
// keys are skipped and counted; the rest proceed. The returned events are
// sorted by timestamp ascending across all conversations.
func Reconstruct(turns []flatten.Turn, logger *slog.Logger) ([]Event, Stats) {
	if logger == nil {
		logger = slog.Default()
	}

	stats := Stats{Turns: len(turns)}

	// Group by conversation id, preserving first-seen order so ties stay
	// stable.
	grouped := make(map[string][]flatten.Turn)
	var order []string
	for _, turn := range turns {
		if turn.ConversationID == "" {
			err := &ReconstructionError{Reason: fmt.Sprintf("turn %s has no conversation_id", turn.LogID)}
			stats.SkippedTurns++
			stats.Errors = append(stats.Errors, err.Error())
			logger.Warn("skipping turn without conversation id", "log_id", turn.LogID)
			continue
		}
		if _, seen := grouped[turn.ConversationID]; !seen {
			order = append(order, turn.ConversationID)
		}
		grouped[turn.ConversationID] = append(grouped[turn.ConversationID], turn)
	}
	stats.Conversations = len(order)

	var events []Event
	for _, convID := range order {
		convEvents, flags, err := reconstructConversation(convID, grouped[convID])
		if err != nil {
			stats.SkippedConversations++
			stats.Errors = append(stats.Errors, err.Error())
			logger.Warn("skipping conversation", "conversation_id", convID, "error", err)
			continue
		}

		events = append(events, convEvents...)
		stats.DisambiguationTurns += flags.disambiguationTurns
		stats.MoreOptionTurns += flags.moreOptionTurns
		stats.BothTurns += flags.bothTurns
		switch {
		case flags.hadDisambiguation && flags.hadMoreOptions:
			stats.BothConversations++
		case flags.hadDisambiguation:
			stats.DisambiguationConversations++
		case flags.hadMoreOptions:
			stats.MoreOptionConversations++
		}
	}

	// Conversations interleave in time, so the combined sequence needs a
	// final stable sort.
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	return events, stats
}

type conversationFlags struct {
	hadDisambiguation   bool
	hadMoreOptions      bool
	disambiguationTurns int
	moreOptionTurns     int
	bothTurns           int
}

func reconstructConversation(convID string, turns []flatten.Turn) ([]Event, conversationFlags, error) {
	var flags conversationFlags

	for _, turn := range turns {
		if turn.Timestamp.IsZero() {
			return nil, flags, &ReconstructionError{
				ConversationID: convID,
				Reason:         fmt.Sprintf("turn %s has no timestamp", turn.LogID),
			}
		}
	}

	sorted := make([]flatten.Turn, len(turns))
	copy(sorted, turns)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var events []Event
	var pending *pendingOffer

	for _, turn := range sorted {
		if pending != nil {
			if turn.InputSuggestionID != "" {
				events = append(events, Event{
					LogID:                turn.LogID,
					ConversationID:       turn.ConversationID,
					Timestamp:            turn.Timestamp,
					InputText:            turn.InputText,
					SelectedSuggestionID: turn.InputSuggestionID,
					Suggestions:          pending.suggestions,
					MoreOptions:          pending.moreOptions,
					Preview:              pending.preview,
					Applied:              pending.applied,
				})
			}
			// Either way the offer is no longer open: answered, or lapsed
			// because the user typed something else.
			pending = nil
		}

		offeredDisambiguation := len(turn.Suggestions) > 0
		offeredMoreOptions := len(turn.MoreOptions) > 0

		if offeredDisambiguation {
			flags.hadDisambiguation = true
			flags.disambiguationTurns++
		}
		if offeredMoreOptions {
			flags.hadMoreOptions = true
			if offeredDisambiguation {
				flags.bothTurns++
			} else {
				flags.moreOptionTurns++
			}
		}

		// A turn can resolve the previous offer and open a new one.
		if offeredDisambiguation {
			pending = &pendingOffer{
				suggestions: turn.Suggestions,
				moreOptions: turn.MoreOptions,
				preview:     turn.Preview,
				applied:     turn.Applied,
			}
		}
	}

	return events, flags, nil
}
