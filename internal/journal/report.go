package journal

import (
	"encoding/json"
	"fmt"
	"time"
)

// Reporter generates focus-activity reports from the journal
type Reporter struct {
	repo *Repository
}

// NewReporter creates a new reporter
func NewReporter(repo *Repository) *Reporter {
	return &Reporter{repo: repo}
}

// Generate builds a report for the specified period
func (r *Reporter) Generate(periodType string) (*Report, error) {
	period, err := PeriodFor(periodType, time.Now())
	if err != nil {
		return nil, err
	}

	// SQL does the counting; derived fields are computed here
	summaries, err := r.repo.SummaryByAppSince(period.Start)
	if err != nil {
		return nil, fmt.Errorf("failed to get app summary: %w", err)
	}

	var totalEvents int64
	for i := range summaries {
		totalEvents += int64(summaries[i].EventCount)
	}

	if totalEvents > 0 {
		for i := range summaries {
			summaries[i].Percentage = (float64(summaries[i].EventCount) / float64(totalEvents)) * 100.0
		}
	}

	report := &Report{
		Period:      *period,
		Apps:        summaries,
		TotalEvents: totalEvents,
		GeneratedAt: time.Now(),
	}

	return report, nil
}

// PeriodFor calculates the time range for a report period name
func PeriodFor(periodType string, now time.Time) (*ReportPeriod, error) {
	var start, end time.Time

	switch periodType {
	case "day", "today":
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		end = start.Add(24 * time.Hour)

	case "week":
		// Start of week (Monday)
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7 // Sunday = 7
		}
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -(weekday - 1))
		end = start.AddDate(0, 0, 7)

	case "month":
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		end = start.AddDate(0, 1, 0)

	default:
		return nil, fmt.Errorf("invalid period type: %s (valid: day, week, month)", periodType)
	}

	return &ReportPeriod{
		Start: start,
		End:   end,
		Type:  periodType,
	}, nil
}

// FormatText formats the report as human-readable text
func (r *Reporter) FormatText(report *Report) string {
	output := fmt.Sprintf("Focus Report - %s\n", report.Period.Type)
	output += fmt.Sprintf("Period: %s to %s\n",
		report.Period.Start.Format("2006-01-02 15:04"),
		report.Period.End.Format("2006-01-02 15:04"))
	output += fmt.Sprintf("Focus Changes: %d\n\n", report.TotalEvents)

	if len(report.Apps) == 0 {
		output += "No focus activity recorded for this period.\n"
		return output
	}

	output += fmt.Sprintf("%-30s %8s %9s %17s\n", "Application Class", "Changes", "Percent", "Last Seen")
	output += fmt.Sprintf("%s\n", "--------------------------------------------------------------------")

	for _, app := range report.Apps {
		output += fmt.Sprintf("%-30s %8d %8.1f%% %17s\n",
			truncate(app.AppClass, 30),
			app.EventCount,
			app.Percentage,
			app.LastSeen.Format("2006-01-02 15:04"))
	}

	return output
}

// FormatJSON formats the report as JSON
func (r *Reporter) FormatJSON(report *Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// truncate truncates a string to the specified length
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
