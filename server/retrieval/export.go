package retrieval

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dp9910/app4me-sub001/server/internal/errors"
	"github.com/dp9910/app4me-sub001/store"
)

// ExportColumns is the CSV header written by ExportCSV.
var ExportColumns = []string{
	"app_id", "app_name", "category", "rating", "in_top_n",
	"matched_keywords", "relevance_score", "match_reason", "description_preview",
}

const descriptionPreviewLength = 200

// ExportCSV writes one row per app in apps, marking the apps present in the
// search results. Result rows come first; within each group rows are sorted
// by rating descending, then app id.
func ExportCSV(w io.Writer, apps []*store.App, resp *SearchResponse) error {
	results := make(map[string]*Result)
	if resp != nil {
		for _, r := range resp.Results {
			results[r.App.ID] = r
		}
	}

	rows := make([]*store.App, 0, len(apps)+len(results))
	seen := make(map[string]bool, len(apps))
	for _, app := range apps {
		if app == nil || seen[app.ID] {
			continue
		}
		seen[app.ID] = true
		rows = append(rows, app)
	}
	// Results outside the exported universe still get a row.
	if resp != nil {
		for _, r := range resp.Results {
			if !seen[r.App.ID] {
				seen[r.App.ID] = true
				rows = append(rows, r.App)
			}
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		_, inI := results[rows[i].ID]
		_, inJ := results[rows[j].ID]
		if inI != inJ {
			return inI
		}
		if ri, rj := rows[i].RatingOrZero(), rows[j].RatingOrZero(); ri != rj {
			return ri > rj
		}
		return rows[i].ID < rows[j].ID
	})

	writer := csv.NewWriter(w)
	if err := writer.Write(ExportColumns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, app := range rows {
		if err := writer.Write(exportRow(app, results[app.ID])); err != nil {
			return fmt.Errorf("write row %s: %w", app.ID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// Export runs the search and writes every app matching req.AppFilter to w,
// marking the ranked results.
func (p *Pipeline) Export(ctx context.Context, w io.Writer, req *SearchRequest) (*SearchResponse, error) {
	resp, err := p.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	apps, err := p.store.ListApps(ctx, &store.FindApp{Filter: req.AppFilter})
	if err != nil {
		return nil, errors.StoreUnavailable("failed to list apps for export", err)
	}
	if err := ExportCSV(w, apps, resp); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to write export")
	}
	return resp, nil
}

func exportRow(app *store.App, result *Result) []string {
	rating := ""
	if app.Rating != nil {
		rating = strconv.FormatFloat(*app.Rating, 'f', -1, 64)
	}

	inTop := "NO"
	var keywords, score, reason string
	if result != nil {
		inTop = "YES"
		c := result.Candidate
		keywords = strings.Join(c.MatchedKeywords, ", ")
		score = strconv.FormatFloat(c.FinalScore, 'f', 4, 64)
		reason = matchReason(c.MatchExplanation, c.Methods)
	}

	return []string{
		app.ID,
		app.Title,
		app.Category,
		rating,
		inTop,
		keywords,
		score,
		reason,
		preview(app.Description),
	}
}

func matchReason(explanation string, methods []string) string {
	if explanation != "" {
		return explanation
	}
	if len(methods) == 0 {
		return ""
	}
	return "matched by " + strings.Join(methods, " and ") + " retrieval"
}

func preview(description string) string {
	if utf8.RuneCountInString(description) <= descriptionPreviewLength {
		return description
	}
	return string([]rune(description)[:descriptionPreviewLength]) + "..."
}
