// Package export renders scored result tables for human review: styled
// Excel workbooks and deduplicated utterance CSVs.
package export

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed styles/*.yaml
var styleFiles embed.FS

// Flavor selects one of the packaged workbook styles.
type Flavor string

const (
	FlavorMeasure       Flavor = "measure"
	FlavorEffectiveness Flavor = "effectiveness"
)

// sheetStyle is the packaged layout for one workbook flavor.
type sheetStyle struct {
	HeaderFill   string    `yaml:"header_fill"`
	HeaderFont   string    `yaml:"header_font"`
	BandFill     string    `yaml:"band_fill"`
	ColumnWidths []float64 `yaml:"column_widths"`
	DefaultWidth float64   `yaml:"default_width"`
	FreezeHeader bool      `yaml:"freeze_header"`
}

func loadStyle(f Flavor) (sheetStyle, error) {
	data, err := styleFiles.ReadFile(fmt.Sprintf("styles/%s.yaml", f))
	if err != nil {
		return sheetStyle{}, fmt.Errorf("unknown workbook flavor %q", f)
	}
	var style sheetStyle
	if err := yaml.Unmarshal(data, &style); err != nil {
		return sheetStyle{}, fmt.Errorf("parse style %s: %w", f, err)
	}
	return style, nil
}
