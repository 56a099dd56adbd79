package straincrawler

import "fmt"

func (r *EnrichReport) SummaryRows() [][2]interface{} {
	return [][2]interface{}{
		{"strains", r.Total},
		{"processed", r.Processed},
		{"enriched", r.Enriched},
		{"resumed", r.Resumed},
		{"failed", r.Failed},
		{"duration", formatDuration(r.Duration)},
	}
}

func (r *ReconcileReport) SummaryRows() [][2]interface{} {
	return [][2]interface{}{
		{"checked", r.Checked},
		{"missing data", r.Missing},
		{"updated", r.Updated},
		{"failed", r.Failed},
		{"orphans", len(r.Orphans)},
		{"duration", formatDuration(r.Duration)},
	}
}

func (r *UploadReport) SummaryRows() [][2]interface{} {
	rate := 0.0
	if r.Processed > 0 {
		rate = float64(r.Uploaded+r.Skipped) / float64(r.Processed) * 100
	}
	return [][2]interface{}{
		{"strains", r.Total},
		{"with image", r.Processed},
		{"uploaded", r.Uploaded},
		{"already present", r.Skipped},
		{"without image", r.NoImage},
		{"errors", r.Errors},
		{"success rate", fmt.Sprintf("%.1f%%", rate)},
		{"duration", formatDuration(r.Duration)},
	}
}

func (r *PurgeReport) SummaryRows() [][2]interface{} {
	return [][2]interface{}{
		{"found", r.Found},
		{"deleted", r.Deleted},
		{"errors", r.Errors},
		{"duration", formatDuration(r.Duration)},
	}
}
