package pipeline

import (
	"time"

	"github.com/watson-developer-cloud/assistant-effort/internal/analysis"
	"github.com/watson-developer-cloud/assistant-effort/internal/export"
)

// Tables renders the report as workbook tables: one row per scored event
// plus time-bucketed aggregates at the given granularity.
func (r Report) Tables(g analysis.Granularity) []export.Table {
	events := export.Table{
		Name: "Events",
		Columns: []string{
			"log_id", "conversation_id", "timestamp", "utterance",
			"selected_dialog_node", "none_of_the_above", "effort", "preview_effort",
		},
	}
	for _, ev := range r.Events {
		events.Rows = append(events.Rows, []any{
			ev.LogID, ev.ConversationID, ev.Timestamp.Format(time.RFC3339),
			ev.InputText, ev.SelectedDialogNode, ev.NoneOfTheAbove,
			ev.EffortScore, ev.PreviewEffortScore,
		})
	}

	buckets := export.Table{
		Name:    "Buckets",
		Columns: []string{"bucket_start", "events", "mean_effort", "mean_preview_effort"},
	}
	for _, b := range analysis.BucketEvents(r.Events, g) {
		buckets.Rows = append(buckets.Rows, []any{
			b.Start.Format(time.RFC3339), b.Events, b.MeanEffort, b.MeanPreviewEffort,
		})
	}

	return []export.Table{events, buckets}
}

// Utterances lists the user inputs that triggered the report's events, in
// event order, for the intent-recommendation CSV export.
func (r Report) Utterances() []string {
	out := make([]string, 0, len(r.Events))
	for _, ev := range r.Events {
		out = append(out, ev.InputText)
	}
	return out
}
