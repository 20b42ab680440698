package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"vidsource/internal/media"
	"vidsource/internal/ui"
)

var (
	flagID         int64
	flagExternalID string
	flagKind       string
	flagVariant    string
	flagSeason     int
	flagEpisode    int
	flagProvider   string
	flagJSON       bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve a content id to a stream URL",
	Example: `  vidsource resolve --id 42 --kind movie
  vidsource resolve --id 1399 --kind series --season 1 --episode 3 --json
  vidsource resolve --id 42 --kind movie --provider B`,
	Args: cobra.NoArgs,
	RunE: resolveRun,
}

func init() {
	f := resolveCmd.Flags()
	f.Int64Var(&flagID, "id", 0, "Catalog content id (required)")
	f.StringVar(&flagExternalID, "external-id", "", "External id (e.g. IMDb) for id-addressed providers")
	f.StringVarP(&flagKind, "kind", "k", "movie", "Content kind: movie | series")
	f.StringVar(&flagVariant, "variant", "", "Audio/track variant (default from config)")
	f.IntVarP(&flagSeason, "season", "s", -1, "Season number (series)")
	f.IntVarP(&flagEpisode, "episode", "e", -1, "Episode number (series)")
	f.StringVarP(&flagProvider, "provider", "p", "", "Force one provider: A | B | C (skips the cache)")
	f.BoolVarP(&flagJSON, "json", "j", false, "Print the result as JSON")
	_ = resolveCmd.MarkFlagRequired("id")
}

func buildRequest(cmd *cobra.Command) (media.Request, error) {
	kind, err := media.ParseKind(flagKind)
	if err != nil {
		return media.Request{}, err
	}
	req := media.Request{
		ContentID:  flagID,
		ExternalID: flagExternalID,
		Kind:       kind,
		Variant:    flagVariant,
	}
	if cmd.Flags().Changed("season") {
		s := flagSeason
		req.Season = &s
	}
	if cmd.Flags().Changed("episode") {
		e := flagEpisode
		req.Episode = &e
	}
	if flagProvider != "" {
		id, err := media.ParseProviderID(flagProvider)
		if err != nil {
			return media.Request{}, err
		}
		req.ForcedProvider = &id
	}
	return req, nil
}

func resolveRun(cmd *cobra.Command, args []string) error {
	req, err := buildRequest(cmd)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	r := a.resolver()
	var res *media.Result
	interactive := !flagJSON && ui.IsTerminal(os.Stderr)
	err = ui.Run(os.Stderr, interactive, fmt.Sprintf("Resolving %s %d", req.Kind, req.ContentID), func() error {
		var err error
		res, err = r.Resolve(ctx, req)
		return err
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprint(out, ui.RenderResult(res))
	return nil
}
