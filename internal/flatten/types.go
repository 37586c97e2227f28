package flatten

import "time"

// NoneOfTheAboveLabel is the literal caption Watson Assistant uses for the
// opt-out entry of a disambiguation menu.
const NoneOfTheAboveLabel = "None of the above"

// Intent is a single classifier hit attached to a suggestion option.
type Intent struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// Option is one entry of an offered suggestion menu, either from the
// disambiguation channel or the more-options channel.
type Option struct {
	SuggestionID   string   `json:"suggestion_id"`
	Intents        []Intent `json:"intents"`
	Label          string   `json:"label"`
	DialogNode     string   `json:"dialog_node"`
	NoneOfTheAbove bool     `json:"none_of_the_above"`
}

// IntentOrLabel returns the option's top intent name, falling back to the
// display label for options that carry no intents.
func (o Option) IntentOrLabel() string {
	if len(o.Intents) > 0 {
		return o.Intents[0].Intent
	}
	return o.Label
}

// PreviewSuggestion is one entry of a candidate model's hypothetical menu,
// extracted from the auto-learn debug payload.
type PreviewSuggestion struct {
	Label        string  `json:"label,omitempty"`
	Intent       string  `json:"intent,omitempty"`
	Confidence   float64 `json:"confidence,omitempty"`
	SuggestionID string  `json:"suggestion_id,omitempty"`
	Text         string  `json:"text,omitempty"`
}

// IntentOrLabel mirrors Option.IntentOrLabel for preview entries.
func (p PreviewSuggestion) IntentOrLabel() string {
	if p.Intent != "" {
		return p.Intent
	}
	return p.Label
}

// Preview holds the suggestion sets a candidate model would have offered.
type Preview struct {
	Disambiguation []PreviewSuggestion `json:"disambiguation"`
	MoreOptions    []PreviewSuggestion `json:"more_option"`
}

// ModelInfo identifies a trained auto-learn model.
type ModelInfo struct {
	ModelID   string `json:"model_id,omitempty"`
	ModelType string `json:"model_type,omitempty"`
}

// AppliedModels records which auto-learn models were live when a turn was
// served. Its presence over a time range marks the applied interval.
type AppliedModels struct {
	Disambiguation ModelInfo `json:"disambiguation"`
	MoreOptions    ModelInfo `json:"more_option"`
}

// Turn is one flattened request/response exchange. It is immutable once
// produced by the flattener.
type Turn struct {
	LogID             string
	ConversationID    string
	Timestamp         time.Time
	InputText         string
	InputSuggestionID string

	// Suggestions is the disambiguation menu offered in this turn's
	// response; empty when the turn offered none. Never nil.
	Suggestions []Option
	// MoreOptions is the alternate-responses menu; empty when absent.
	// Never nil.
	MoreOptions []Option

	Preview *Preview
	Applied *AppliedModels
}
