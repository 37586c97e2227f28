package flatten

import (
	"fmt"
	"log/slog"
	"time"
)

// Report summarises a flattening pass.
type Report struct {
	Processed int
	Skipped   int
	Warnings  []string
}

// Flatten converts a decoded JSON array of raw log records into one Turn per
// usable record, preserving input order. Records that are not objects are
// skipped and counted; everything else degrades field by field.
func Flatten(records []any, logger *slog.Logger) ([]Turn, Report) {
	if logger == nil {
		logger = slog.Default()
	}

	turns := make([]Turn, 0, len(records))
	report := Report{}

	for i, rec := range records {
		raw, ok := rec.(map[string]any)
		if !ok {
			err := &SchemaError{Index: i, Reason: fmt.Sprintf("record is %T, not an object", rec)}
			report.Skipped++
			report.Warnings = append(report.Warnings, err.Error())
			logger.Warn("skipping unusable log record", "index", i, "error", err)
			continue
		}

		turn, warnings := FlattenRecord(raw)
		for _, w := range warnings {
			report.Warnings = append(report.Warnings, fmt.Sprintf("record %d: %s", i, w))
			logger.Warn("log record anomaly", "index", i, "log_id", turn.LogID, "detail", w)
		}
		turns = append(turns, turn)
		report.Processed++
	}

	return turns, report
}

// FlattenRecord flattens a single raw log record. Missing optional fields
// become zero values; menus normalize to empty (never nil) slices. Soft
// anomalies are returned as warnings.
func FlattenRecord(raw map[string]any) (Turn, []string) {
	var warnings []string

	turn := Turn{
		LogID:       asString(raw["log_id"]),
		Suggestions: []Option{},
		MoreOptions: []Option{},
	}

	if ts := asString(raw["request_timestamp"]); ts != "" {
		parsed, err := parseTimestamp(ts)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("cannot parse request_timestamp %q", ts))
		} else {
			turn.Timestamp = parsed
		}
	}

	request := asMap(raw["request"])
	input := asMap(request["input"])
	turn.InputText = asString(input["text"])
	turn.InputSuggestionID = asString(input["suggestion_id"])

	response := asMap(raw["response"])
	turn.ConversationID = asString(asMap(response["context"])["conversation_id"])

	output := asMap(response["output"])

	if generic := firstMap(output["generic"]); generic != nil {
		opts, w := extractOptions(asSlice(generic["suggestions"]))
		turn.Suggestions = opts
		warnings = append(warnings, w...)
	}

	if alternate := firstMap(output["alternate_responses"]); alternate != nil {
		opts, w := extractOptions(asSlice(alternate["suggestions"]))
		turn.MoreOptions = opts
		warnings = append(warnings, w...)
	}

	if autoLearn := asMap(asMap(output["debug"])["auto_learn"]); autoLearn != nil {
		preview, applied, w := extractAutoLearn(autoLearn)
		turn.Preview = preview
		turn.Applied = applied
		warnings = append(warnings, w...)
	}

	return turn, warnings
}

// extractOptions builds the typed option list from a raw suggestions array.
//
// None-of-the-above detection: an option is flagged when its label is the
// literal opt-out caption, or when it carries no intents and its own response
// is not a search-skill fallback. Options without intents resolve to their
// label instead of a dialog node.
func extractOptions(items []any) ([]Option, []string) {
	options := make([]Option, 0, len(items))
	var warnings []string

	for _, it := range items {
		item := asMap(it)
		if item == nil {
			warnings = append(warnings, "suggestion entry is not an object")
			continue
		}

		value := asMap(item["value"])
		rawIntents, ok := value["intents"]
		if !ok {
			rawIntents, ok = asMap(value["input"])["intents"]
		}
		if !ok {
			warnings = append(warnings, fmt.Sprintf("suggestion %q has no recognizable value shape", asString(item["label"])))
			continue
		}

		opt := Option{
			SuggestionID: asString(asMap(value["input"])["suggestion_id"]),
			Label:        asString(item["label"]),
			Intents:      extractIntents(asSlice(rawIntents)),
		}

		if len(opt.Intents) > 0 {
			opt.DialogNode = asString(item["dialog_node"])
		} else {
			opt.DialogNode = opt.Label
			opt.NoneOfTheAbove = !isSearchSkillOption(item)
		}
		if opt.Label == NoneOfTheAboveLabel {
			opt.DialogNode = opt.Label
			opt.NoneOfTheAbove = true
		}

		options = append(options, opt)
	}

	return options, warnings
}

func extractIntents(items []any) []Intent {
	intents := make([]Intent, 0, len(items))
	for _, it := range items {
		m := asMap(it)
		if m == nil {
			continue
		}
		intents = append(intents, Intent{
			Intent:     asString(m["intent"]),
			Confidence: asFloat(m["confidence"]),
		})
	}
	return intents
}

// isSearchSkillOption reports whether the option's own response is a
// search-skill result, which exempts an intent-less option from the
// none-of-the-above flag.
func isSearchSkillOption(item map[string]any) bool {
	generic := firstMap(asMap(item["output"])["generic"])
	return generic != nil && asString(generic["response_type"]) == "search_skill"
}

// extractAutoLearn splits the auto-learn debug payload into the preview
// (candidate model) suggestion sets and the applied model markers. A payload
// carries one or the other, keyed by the presence of "preview".
func extractAutoLearn(autoLearn map[string]any) (*Preview, *AppliedModels, []string) {
	var warnings []string

	if preview, ok := autoLearn["preview"]; ok {
		p := &Preview{
			Disambiguation: []PreviewSuggestion{},
			MoreOptions:    []PreviewSuggestion{},
		}
		pm := asMap(preview)
		for _, channel := range []struct {
			key  string
			dest *[]PreviewSuggestion
		}{
			{"disambiguation", &p.Disambiguation},
			{"alternate_responses", &p.MoreOptions},
		} {
			suggestions := asSlice(asMap(pm[channel.key])["suggestions"])
			for _, s := range suggestions {
				entry, w := extractPreviewSuggestion(asMap(s))
				warnings = append(warnings, w...)
				*channel.dest = append(*channel.dest, entry)
			}
		}
		return p, nil, warnings
	}

	applied := &AppliedModels{}
	if d := asMap(autoLearn["disambiguation"]); d != nil {
		applied.Disambiguation = ModelInfo{
			ModelID:   asString(d["model_id"]),
			ModelType: asString(d["model_type"]),
		}
	}
	if a := asMap(autoLearn["alternate_responses"]); a != nil {
		applied.MoreOptions = ModelInfo{
			ModelID:   asString(a["model_id"]),
			ModelType: asString(a["model_type"]),
		}
	}
	return nil, applied, warnings
}

func extractPreviewSuggestion(s map[string]any) (PreviewSuggestion, []string) {
	var warnings []string
	entry := PreviewSuggestion{Label: asString(s["label"])}

	value := asMap(s["value"])
	if intents := asSlice(value["intents"]); len(intents) > 0 {
		if len(intents) > 1 {
			warnings = append(warnings, "multiple intents found in preview suggestion, taking the first")
		}
		first := asMap(intents[0])
		entry.Intent = asString(first["intent"])
		entry.Confidence = asFloat(first["confidence"])
	}
	if input := asMap(value["input"]); input != nil {
		entry.SuggestionID = asString(input["suggestion_id"])
		entry.Text = asString(input["text"])
	}

	return entry, warnings
}

var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
}

func parseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, format := range timestampFormats {
		t, err := time.Parse(format, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}

func firstMap(v any) map[string]any {
	s := asSlice(v)
	if len(s) == 0 {
		return nil
	}
	return asMap(s[0])
}
