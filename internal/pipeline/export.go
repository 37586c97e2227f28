package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/watson-developer-cloud/assistant-effort/internal/analysis"
	"github.com/watson-developer-cloud/assistant-effort/internal/export"
	"github.com/watson-developer-cloud/assistant-effort/internal/signing"
)

// Exporter writes run artifacts (styled workbook, utterance CSV) to a
// directory after each run, and presigns a workbook download link when
// object-storage credentials are configured.
type Exporter struct {
	Dir         string
	Flavor      export.Flavor
	Granularity analysis.Granularity
	Link        *LinkConfig
}

// LinkConfig enables presigned download links. Links address the workbook
// under Bucket by filename, so the export directory is expected to be
// synced to that bucket.
type LinkConfig struct {
	Endpoint    string
	Bucket      string
	Region      string
	Credentials signing.Credentials
	Expiry      time.Duration
}

// export writes the run's artifacts and records their locations on the
// report.
func (e *Exporter) export(report *Report, logger *slog.Logger) error {
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}

	flavor := e.Flavor
	if flavor == "" {
		flavor = export.FlavorMeasure
	}
	granularity := e.Granularity
	if granularity == "" {
		granularity = analysis.Hour
	}

	base := report.RunID.String()
	workbookName := base + ".xlsx"
	workbookPath := filepath.Join(e.Dir, workbookName)
	if err := export.WriteWorkbook(workbookPath, report.Tables(granularity), flavor); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	report.WorkbookPath = workbookPath

	utterancesPath := filepath.Join(e.Dir, base+"_utterances.csv")
	kept, err := export.WriteUtterances(utterancesPath, report.Utterances(), 0, 0)
	if err != nil {
		return fmt.Errorf("write utterances: %w", err)
	}
	report.UtterancesPath = utterancesPath

	if e.Link != nil {
		url, err := signing.PresignGET(e.Link.Endpoint, e.Link.Bucket, workbookName,
			e.Link.Region, e.Link.Credentials, e.Link.Expiry, time.Now())
		if err != nil {
			return fmt.Errorf("presign workbook link: %w", err)
		}
		report.WorkbookURL = url
	}

	logger.Info("run exported",
		"run_id", report.RunID,
		"workbook", workbookPath,
		"utterances_kept", kept,
	)
	return nil
}
