package kml

import (
	"fmt"
	"strings"

	"field-route-service/internal/domain"
)

// Report renders a validation result as plain text for logs and the CLI.
func Report(name string, res domain.ValidationResult) string {
	var b strings.Builder

	status := "VALID"
	if !res.IsValid {
		status = "INVALID"
	}
	fmt.Fprintf(&b, "KML validation report: %s\n", name)
	fmt.Fprintf(&b, "Status: %s\n", status)
	fmt.Fprintf(&b, "Routes: %d (%d valid)\n", res.Stats.RouteCount, res.Stats.ValidRoutes)
	fmt.Fprintf(&b, "Points: %d (avg %d per route)\n", res.Stats.TotalPoints, res.Stats.AveragePointsPerRoute)
	fmt.Fprintf(&b, "Stops: %d\n", res.Stats.StopCount)

	writeList(&b, "Errors", res.Errors)
	writeList(&b, "Warnings", res.Warnings)

	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s (%d):\n", title, len(items))
	for _, it := range items {
		fmt.Fprintf(b, "  - %s\n", it)
	}
}
