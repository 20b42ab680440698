package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"vidsource/internal/catalog"
	"vidsource/internal/media"
)

var (
	accent = lipgloss.Color("12")

	okStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	failStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	labelStyle = lipgloss.NewStyle().Foreground(accent).Width(10)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

var providerNames = map[media.ProviderID]string{
	media.ProviderBrowse:     "A (browse)",
	media.ProviderEmbed:      "B (embed)",
	media.ProviderServerList: "C (server list)",
	media.ProviderAll:        "all providers",
}

func providerName(id media.ProviderID) string {
	if n, ok := providerNames[id]; ok {
		return n
	}
	return string(id)
}

func row(label, value string) string {
	return labelStyle.Render(label) + value
}

// RenderResult formats a resolution for the terminal.
func RenderResult(res *media.Result) string {
	var b strings.Builder
	if !res.Found() {
		b.WriteString(failStyle.Render("No source found") + "\n")
		b.WriteString(row("Tried", providerName(res.AttemptedProvider)) + "\n")
		return b.String()
	}

	b.WriteString(okStyle.Render("Source found") + "\n")
	b.WriteString(row("URL", res.URL) + "\n")
	b.WriteString(row("Type", string(res.MediaType)) + "\n")
	b.WriteString(row("Provider", providerName(res.ProviderID)) + "\n")
	cached := "no"
	if res.FromCache {
		cached = "yes"
	}
	b.WriteString(row("Cached", cached) + "\n")
	return b.String()
}

// RenderReport formats a catalog import summary.
func RenderReport(r *catalog.Report) string {
	var b strings.Builder
	title := okStyle.Render("Import finished")
	if r.Errors > 0 {
		title = failStyle.Render(fmt.Sprintf("Import finished with %d errors", r.Errors))
	}
	b.WriteString(title + "\n")
	if r.TotalPages > 0 {
		b.WriteString(row("Pages", fmt.Sprintf("%d of %d", r.PagesScraped, r.TotalPages)) + "\n")
	}
	b.WriteString(row("Scraped", fmt.Sprint(r.Scraped)) + "\n")
	b.WriteString(row("Imported", fmt.Sprint(r.Imported)) + "\n")
	b.WriteString(row("Skipped", fmt.Sprint(r.Skipped)) + "\n")
	for _, f := range r.Failures {
		b.WriteString(dimStyle.Render("  "+f) + "\n")
	}
	return b.String()
}
