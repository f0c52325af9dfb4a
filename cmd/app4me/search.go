package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dp9910/app4me-sub001/plugin/ai/rag"
	"github.com/dp9910/app4me-sub001/server/retrieval"
)

// requestOptions are the search flags shared by search and export.
type requestOptions struct {
	topK          int
	filter        string
	noRerank      bool
	lifestyleTags []string
	useCases      []string
	complexity    string
	usageContext  string
}

func (o *requestOptions) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.IntVarP(&o.topK, "top-k", "k", 0, "number of results, 0 uses the configured default")
	flags.StringVar(&o.filter, "filter", "", `CEL filter over app, e.g. 'app.rating >= 4.0'`)
	flags.BoolVar(&o.noRerank, "no-rerank", false, "skip LLM re-ranking")
	flags.StringSliceVar(&o.lifestyleTags, "lifestyle", nil, "lifestyle tags used to personalize re-ranking")
	flags.StringSliceVar(&o.useCases, "use-case", nil, "preferred use cases used to personalize re-ranking")
	flags.StringVar(&o.complexity, "complexity", "", "complexity preference, e.g. simple or advanced")
	flags.StringVar(&o.usageContext, "usage-context", "", "where or how the apps will be used")
}

func (o *requestOptions) request(query string) *retrieval.SearchRequest {
	req := &retrieval.SearchRequest{
		Query:         query,
		TopK:          o.topK,
		DisableRerank: o.noRerank,
		AppFilter:     o.filter,
	}
	if len(o.lifestyleTags) > 0 || len(o.useCases) > 0 || o.complexity != "" || o.usageContext != "" {
		req.UserContext = &rag.UserContext{
			LifestyleTags:        o.lifestyleTags,
			PreferredUseCases:    o.useCases,
			ComplexityPreference: o.complexity,
			UsageContext:         o.usageContext,
		}
	}
	return req
}

func newSearchCmd() *cobra.Command {
	opts := &requestOptions{}
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the app catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prof, err := loadProfile(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			st, pipeline, err := openPipeline(ctx, prof)
			if err != nil {
				return err
			}
			defer st.Close()

			resp, err := pipeline.Search(ctx, opts.request(strings.Join(args, " ")))
			if err != nil {
				return err
			}
			if asJSON {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(resp)
			}
			printResults(cmd.OutOrStdout(), resp)
			return nil
		},
	}
	opts.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw response as JSON")
	return cmd
}

var (
	titleColor   = color.New(color.FgGreen, color.Bold).SprintFunc()
	detailColor  = color.New(color.FgCyan).SprintFunc()
	warningColor = color.New(color.FgYellow).SprintFunc()
	dimColor     = color.New(color.Faint).SprintFunc()
)

// printResults writes the ranked results in a human readable form.
func printResults(w io.Writer, resp *retrieval.SearchResponse) {
	if resp.Intent != nil {
		fmt.Fprintf(w, "%s %s (%s, %s)\n", dimColor("intent:"), resp.Intent.MainTopic, resp.Intent.IntentType, resp.Intent.Source)
	}
	if len(resp.Degraded) > 0 {
		fmt.Fprintln(w, warningColor("degraded: "+strings.Join(resp.Degraded, ", ")))
	}
	if len(resp.Results) == 0 {
		fmt.Fprintln(w, "No apps found.")
		return
	}

	for _, r := range resp.Results {
		c := r.Candidate
		fmt.Fprintf(w, "%2d. %s\n", r.Rank, titleColor(r.App.Title))

		rating := "n/a"
		if r.App.Rating != nil {
			rating = fmt.Sprintf("%.1f", *r.App.Rating)
		}
		fmt.Fprintf(w, "    %s | Rating: %s | Score: %.4f\n", detailColor(r.App.Category), rating, c.FinalScore)
		if len(c.MatchedKeywords) > 0 {
			fmt.Fprintf(w, "    Keywords: %s\n", strings.Join(c.MatchedKeywords, ", "))
		}
		if c.PersonalizedPitch != "" {
			fmt.Fprintf(w, "    %s\n", c.PersonalizedPitch)
		}
		if c.MatchExplanation != "" {
			fmt.Fprintf(w, "    %s\n", dimColor(c.MatchExplanation))
		}
	}
	fmt.Fprintf(w, "%s\n", dimColor(fmt.Sprintf("%d results in %s (semantic %d, keyword %d, reranked %t)",
		len(resp.Results), resp.Duration.Round(time.Millisecond), resp.SemanticCount, resp.KeywordCount, resp.Reranked)))
}
