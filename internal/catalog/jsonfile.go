package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"vidsource/internal/media"
)

// jsonItem is one entry of a catalog export.
type jsonItem struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	OriginalName string `json:"original_name"`
	Link         string `json:"link"`
}

// ReadItems decodes a catalog export: either a bare array of items or an
// object with an "items" array. Items without a positive id or with an
// unknown type are dropped and reported as failures in the returned report.
func ReadItems(r io.Reader) ([]media.Content, *Report, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("reading catalog export: %w", err)
	}

	var items []jsonItem
	if trimmed := strings.TrimSpace(string(data)); strings.HasPrefix(trimmed, "{") {
		var wrapped struct {
			Items []jsonItem `json:"items"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, nil, fmt.Errorf("decoding catalog export: %w", err)
		}
		items = wrapped.Items
	} else if err := json.Unmarshal(data, &items); err != nil {
		return nil, nil, fmt.Errorf("decoding catalog export: %w", err)
	}

	report := &Report{}
	seen := make(map[string]bool)
	var rows []media.Content
	for i, it := range items {
		if it.ID <= 0 {
			report.fail("item %d: invalid id %d", i, it.ID)
			continue
		}
		kind, err := media.ParseKind(it.Type)
		if err != nil {
			report.fail("item %d (%d): %v", i, it.ID, err)
			continue
		}
		key := fmt.Sprintf("%d-%s", it.ID, kind)
		if seen[key] {
			continue
		}
		seen[key] = true
		rows = append(rows, media.Content{
			ContentID:     it.ID,
			Kind:          kind,
			Title:         strings.TrimSpace(it.Name),
			OriginalTitle: strings.TrimSpace(it.OriginalName),
		})
	}
	report.Scraped = len(rows)
	return rows, report, nil
}

// ImportItems inserts rows read by ReadItems, enriching them first when
// enrich is set. Existing rows are never modified. report may be the one
// ReadItems returned; nil starts a fresh one.
func (im *Importer) ImportItems(ctx context.Context, rows []media.Content, enrich bool, report *Report) (*Report, error) {
	if report == nil {
		report = &Report{Scraped: len(rows)}
	}
	im.log.Info("importing catalog export", "items", len(rows), "enrich", enrich)

	if enrich {
		im.enrich(ctx, rows)
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	im.insert(ctx, rows, report)

	im.log.Info("import finished",
		"items", report.Scraped, "imported", report.Imported,
		"skipped", report.Skipped, "errors", report.Errors)
	return report, nil
}
