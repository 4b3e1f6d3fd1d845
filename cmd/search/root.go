package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lk2023060901/ai-search-dispatcher/internal/conf"
	"github.com/lk2023060901/ai-search-dispatcher/internal/pkg/injector"
	"github.com/lk2023060901/ai-search-dispatcher/internal/pkg/logger"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/backend"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/biz"
	"github.com/lk2023060901/ai-search-dispatcher/internal/search/types"
)

type flags struct {
	configFile string
	preset     string
	mode       string
	bestEffort bool
	academic   bool
	pro        bool
	jsonOutput bool
	verbose    bool

	searchMode  string
	searchType  string
	contextSize string
	recency     string
	after       string
	before      string
	domains     []string
	stream      bool
	maxTokens   int
	temperature float64
	files       []string
}

// newRootCmd builds the search command. Only flags given on the command
// line become explicit overrides; everything else falls back to the preset.
func newRootCmd(creds backend.CredentialSource) *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "search [flags] QUERY",
		Short: "Run one web-grounded search query",
		Long: `Resolves the query options (preset, then shortcuts, then explicit flags),
selects a backend and prints the answer with its citations.

Credentials are read from PERPLEXITY_API_KEY (direct) and OPENROUTER_API_KEY (relay).`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f, creds, args[0])
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.configFile, "config", "", "config file path")
	fs.StringVarP(&f.preset, "preset", "p", "", "named preset (academic, news, technical, research, quick, finance)")
	fs.StringVar(&f.mode, "mode", "", "backend mode: auto, direct or relay")
	fs.BoolVar(&f.bestEffort, "best-effort", false, "drop options the backend does not support instead of failing")
	fs.BoolVar(&f.academic, "academic", false, "shortcut for --search-mode academic")
	fs.BoolVar(&f.pro, "pro", false, "shortcut for --search-type pro (forces streaming)")
	fs.BoolVar(&f.jsonOutput, "json", false, "print the full result as JSON")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "log dispatch details to stderr")

	fs.StringVar(&f.searchMode, "search-mode", "", "web, academic or sec")
	fs.StringVar(&f.searchType, "search-type", "", "fast, pro or auto")
	fs.StringVar(&f.contextSize, "context-size", "", "low, medium or high")
	fs.StringVar(&f.recency, "recency", "", "hour, day, week, month or year")
	fs.StringVar(&f.after, "after", "", "only results after this date (MM/DD/YYYY, YYYY-MM-DD, today, yesterday)")
	fs.StringVar(&f.before, "before", "", "only results before this date")
	fs.StringSliceVar(&f.domains, "domain", nil, "domain filter entry, prefix with - to exclude (repeatable)")
	fs.BoolVar(&f.stream, "stream", false, "stream the answer from the backend")
	fs.IntVar(&f.maxTokens, "max-tokens", 0, "maximum answer tokens")
	fs.Float64Var(&f.temperature, "temperature", 0, "sampling temperature in [0, 2)")
	fs.StringArrayVarP(&f.files, "file", "f", nil, "attach a file (repeatable)")

	return cmd
}

func run(cmd *cobra.Command, f *flags, creds backend.CredentialSource, query string) error {
	config, err := conf.LoadConfig(f.configFile)
	if err != nil {
		return err
	}

	log := logger.NewNop()
	if f.verbose {
		config.Log.Level = "debug"
		config.Log.Format = "console"
		config.Log.Output = "stderr"
		if log, err = logger.New(&config.Log); err != nil {
			return err
		}
		defer log.Sync()
	}

	dispatcher, err := injector.NewDispatcher(config, log, creds)
	if err != nil {
		return err
	}

	result := dispatcher.Search(cmd.Context(), f.request(cmd, query))

	if f.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
	} else {
		printResult(cmd.OutOrStdout(), cmd.ErrOrStderr(), result)
	}

	if !result.Success {
		return fmt.Errorf("search failed (%s)", result.Error.Kind)
	}
	return nil
}

func (f *flags) request(cmd *cobra.Command, query string) *biz.SearchRequest {
	changed := cmd.Flags().Changed

	req := &biz.SearchRequest{
		Query:     types.SearchQuery{Text: query, Files: f.files},
		Preset:    f.preset,
		Shortcuts: types.Shortcuts{Academic: f.academic, Pro: f.pro},
		Mode:      f.mode,
	}
	if f.bestEffort {
		req.Policy = types.PolicyBestEffort
	}
	if changed("max-tokens") {
		req.Query.MaxTokens = types.Some(f.maxTokens)
	}
	if changed("temperature") {
		req.Query.Temperature = types.Some(f.temperature)
	}

	o := &req.Options
	if changed("search-mode") {
		o.SearchMode = types.Some(f.searchMode)
	}
	if changed("search-type") {
		o.SearchType = types.Some(f.searchType)
	}
	if changed("context-size") {
		o.ContextSize = types.Some(f.contextSize)
	}
	if changed("recency") {
		o.RecencyFilter = types.Some(f.recency)
	}
	if changed("after") {
		o.AfterDate = types.Some(f.after)
	}
	if changed("before") {
		o.BeforeDate = types.Some(f.before)
	}
	if changed("domain") {
		o.Domains = types.Some(f.domains)
	}
	if changed("stream") {
		o.Stream = types.Some(f.stream)
	}
	return req
}

func printResult(out, errOut io.Writer, r *types.SearchResult) {
	for _, w := range r.Warnings {
		fmt.Fprintf(errOut, "warning: %s\n", w)
	}

	if !r.Success {
		fmt.Fprintf(errOut, "error: %s\n", r.Error.Message)
		return
	}

	fmt.Fprintln(out, r.Answer)
	if len(r.Citations) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Sources:")
		for _, c := range r.Citations {
			if c.Title != "" {
				fmt.Fprintf(out, "  [%d] %s - %s\n", c.Ordinal, c.Title, c.URL)
			} else {
				fmt.Fprintf(out, "  [%d] %s\n", c.Ordinal, c.URL)
			}
		}
	}
	if r.Degraded {
		fmt.Fprintf(errOut, "note: %d malformed stream frames were skipped\n", r.MalformedChunks)
	}
}
