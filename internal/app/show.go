package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/okorie22/Okorie-AI-sub005/internal/storage"
)

// Show prints recent alerts from the local audit trail.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	db, closeDB, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	defer closeDB()

	alerts, err := storage.NewAlertAuditStore(db).ListRecentAlerts(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(os.Stdout, "no alerts found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time (UTC)\tAgent\tSymbol\tType\tSeverity\tConfidence")
	for _, alert := range alerts {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%.2f\n",
			alert.EventTime.UTC().Format(time.RFC3339),
			alert.SourceAgent,
			sanitizeInline(alert.Symbol),
			alert.EventType,
			alert.Severity,
			alert.Confidence,
		)
	}
	writer.Flush()
	return nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
