package analysis

import (
	"log/slog"
	"sort"

	"github.com/watson-developer-cloud/assistant-effort/internal/conversation"
)

// Cooccurrence counts how often pairs of dialog nodes were offered together
// in one disambiguation menu. The matrix is symmetric.
type Cooccurrence struct {
	// Nodes lists the display labels in sorted order.
	Nodes []string
	// Counts maps node label pairs to the number of menus offering both.
	Counts map[string]map[string]int
}

// Count returns the co-occurrence count for a pair of node labels.
func (c Cooccurrence) Count(a, b string) int {
	return c.Counts[a][b]
}

// CooccurrenceMatrix builds the node co-occurrence matrix over the
// disambiguation menus of the given events. None-of-the-above entries are
// excluded. When titles maps a dialog node id to a display title, the title
// is used as the label. More than one distinct none-of-the-above node name
// across the dataset is an anomaly and logged as a warning.
func CooccurrenceMatrix(events []conversation.Event, titles map[string]string, logger *slog.Logger) Cooccurrence {
	if logger == nil {
		logger = slog.Default()
	}

	counts := make(map[string]map[string]int)
	noneNames := make(map[string]struct{})

	bump := func(a, b string) {
		if counts[a] == nil {
			counts[a] = make(map[string]int)
		}
		counts[a][b]++
	}

	for _, ev := range events {
		var nodes []string
		for _, opt := range ev.Suggestions {
			if opt.NoneOfTheAbove {
				noneNames[opt.DialogNode] = struct{}{}
				continue
			}
			label := opt.DialogNode
			if title, ok := titles[opt.DialogNode]; ok {
				label = title
			}
			nodes = append(nodes, label)
		}
		for i := 0; i < len(nodes); i++ {
			for j := i + 1; j < len(nodes); j++ {
				bump(nodes[i], nodes[j])
				bump(nodes[j], nodes[i])
			}
		}
	}

	if len(noneNames) > 1 {
		names := make([]string, 0, len(noneNames))
		for n := range noneNames {
			names = append(names, n)
		}
		sort.Strings(names)
		logger.Warn("multiple none-of-the-above node names detected", "names", names)
	}

	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	return Cooccurrence{Nodes: labels, Counts: counts}
}
