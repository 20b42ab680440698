package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"slices"

	"github.com/spf13/cobra"

	"vidsource/internal/catalog"
	"vidsource/internal/media"
	"vidsource/internal/ui"
)

var (
	flagImportKind string
	flagStartPage  int
	flagMaxPages   int
	flagNoEnrich   bool
	flagFromJSON   string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import the browse provider's listing into the catalog",
	Long: `Scrape listing pages from the browse provider and add every title not
already in the catalog. Existing rows are left untouched.

With --from-json, read items ({id, name, type, original_name, link}) from a
catalog export instead of scraping. Original names become the alternate
title the browse provider tries.`,
	Args: cobra.NoArgs,
	RunE: importRun,
}

func init() {
	f := importCmd.Flags()
	f.StringVarP(&flagImportKind, "kind", "k", "", "Content kind: movie | series (prompts on a terminal when empty)")
	f.IntVar(&flagStartPage, "start-page", 1, "First listing page")
	f.IntVar(&flagMaxPages, "max-pages", 0, "Pages to scrape (default from config)")
	f.BoolVar(&flagNoEnrich, "no-enrich", false, "Skip TMDB enrichment")
	f.StringVar(&flagFromJSON, "from-json", "", "Import items from a JSON catalog export instead of the listing")
}

func importKind() (media.Kind, error) {
	if flagImportKind != "" {
		return media.ParseKind(flagImportKind)
	}
	if !ui.IsTerminal(os.Stdin) {
		return media.Movie, nil
	}
	kinds := []media.Kind{media.Movie, media.Series}
	idx, err := ui.Select("Import which catalog", []string{"Movies", "Series"})
	if err != nil {
		return "", err
	}
	return kinds[idx], nil
}

func importRun(cmd *cobra.Command, args []string) error {
	if flagFromJSON != "" {
		return importJSONRun(cmd)
	}
	kind, err := importKind()
	if err != nil {
		return err
	}
	maxPages := flagMaxPages
	if maxPages <= 0 {
		maxPages = cfg.Import.MaxPages
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	var details catalog.Details
	if a.tmdb.Configured() {
		details = a.tmdb
	}
	importer := catalog.NewImporter(a.listing, details, a.store, cfg.Import.Workers, logger.Logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var report *catalog.Report
	title := fmt.Sprintf("Importing %s pages %d-%d", kind, flagStartPage, flagStartPage+maxPages-1)
	err = ui.Run(os.Stderr, ui.IsTerminal(os.Stderr), title, func() error {
		var err error
		report, err = importer.Import(ctx, catalog.Options{
			Kind:      kind,
			StartPage: flagStartPage,
			MaxPages:  maxPages,
			Enrich:    !flagNoEnrich,
		})
		return err
	})
	if report != nil {
		fmt.Fprint(cmd.OutOrStdout(), ui.RenderReport(report))
	}
	return err
}

func importJSONRun(cmd *cobra.Command) error {
	f, err := os.Open(flagFromJSON)
	if err != nil {
		return fmt.Errorf("opening catalog export: %w", err)
	}
	rows, report, err := catalog.ReadItems(f)
	f.Close()
	if err != nil {
		return err
	}
	if flagImportKind != "" {
		kind, err := media.ParseKind(flagImportKind)
		if err != nil {
			return err
		}
		rows = slices.DeleteFunc(rows, func(c media.Content) bool { return c.Kind != kind })
		report.Scraped = len(rows)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	var details catalog.Details
	if a.tmdb.Configured() {
		details = a.tmdb
	}
	importer := catalog.NewImporter(nil, details, a.store, cfg.Import.Workers, logger.Logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	title := fmt.Sprintf("Importing %d items from %s", len(rows), flagFromJSON)
	err = ui.Run(os.Stderr, ui.IsTerminal(os.Stderr), title, func() error {
		var err error
		report, err = importer.ImportItems(ctx, rows, !flagNoEnrich, report)
		return err
	})
	fmt.Fprint(cmd.OutOrStdout(), ui.RenderReport(report))
	return err
}
