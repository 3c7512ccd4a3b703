package keywords

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roundtable-labs/backend/internal/analytics"
)

// slugToEndpoint maps whitelist slugs to the analytics routes the frontend
// can call directly. Slugs without a route produce no suggestions.
var slugToEndpoint = map[string]string{
	"area/polygon":        "/api/analytics/areas",
	"stores/count":        "/api/analytics/store-counts",
	"sales/by-industry":   "/api/analytics/industry-metrics",
	"market/change-index": "/api/analytics/change-index",
	"stores/closure-rate": "/api/analytics/closures",
}

// Suggestion is one ready-to-call analytics request derived from the
// extracted keywords.
type Suggestion struct {
	Slug     string         `json:"slug"`
	Endpoint string         `json:"endpoint"`
	Params   map[string]any `json:"params"`
	Label    string         `json:"label"`
}

// Linker turns extracted entities and api hints into analytics request
// suggestions backed by the imported trading-area datasets.
type Linker struct {
	analytics *analytics.Service
}

// NewLinker constructs a linker over the analytics store.
func NewLinker(service *analytics.Service) *Linker {
	return &Linker{analytics: service}
}

// BuildSuggestions assembles the suggestion list for the hinted slugs. A
// failing builder drops its slug, never the whole list.
func (l *Linker) BuildSuggestions(ctx context.Context, entities, apiHints []string) []Suggestion {
	if l == nil || l.analytics == nil {
		return nil
	}

	var suggestions []Suggestion
	for _, slug := range apiHints {
		var items []Suggestion
		var err error
		switch slug {
		case "area/polygon":
			items, err = l.suggestAreaPolygon(ctx, entities)
		case "stores/count":
			items, err = l.suggestStoreCounts(ctx, entities)
		case "sales/by-industry":
			items, err = l.suggestSalesByIndustry(ctx, entities)
		case "market/change-index":
			items, err = l.suggestChangeIndex(ctx, entities)
		case "stores/closure-rate":
			items, err = l.suggestClosures(ctx, entities)
		default:
			continue
		}
		if err != nil {
			continue
		}
		suggestions = append(suggestions, items...)
	}
	return dedupeSuggestions(suggestions)
}

func (l *Linker) suggestAreaPolygon(ctx context.Context, entities []string) ([]Suggestion, error) {
	refs, err := l.analytics.FindTradingAreas(ctx, entities, 5)
	if err != nil {
		return nil, err
	}
	var items []Suggestion
	for _, ref := range refs {
		items = append(items, Suggestion{
			Slug:     "area/polygon",
			Endpoint: slugToEndpoint["area/polygon"],
			Params:   map[string]any{"trdar": ref.TrdarCD},
			Label:    fmt.Sprintf("%s (상권 영역)", ref.TrdarCDNm),
		})
	}
	return items, nil
}

func (l *Linker) suggestStoreCounts(ctx context.Context, entities []string) ([]Suggestion, error) {
	refs, err := l.analytics.FindTradingAreas(ctx, entities, 5)
	if err != nil {
		return nil, err
	}
	var items []Suggestion
	for _, ref := range refs {
		items = append(items, Suggestion{
			Slug:     "stores/count",
			Endpoint: slugToEndpoint["stores/count"],
			Params:   map[string]any{"trdar": ref.TrdarCD, "radius": 2000},
			Label:    fmt.Sprintf("%s 업종 포화도(점포 수)", ref.TrdarCDNm),
		})
	}
	return items, nil
}

func (l *Linker) suggestSalesByIndustry(ctx context.Context, entities []string) ([]Suggestion, error) {
	refs, err := l.analytics.FindTradingAreas(ctx, entities, 5)
	if err != nil {
		return nil, err
	}
	var items []Suggestion
	for _, ref := range refs {
		names := l.analytics.IndustryNames(ctx, ref.TrdarCD, 5)
		if len(names) == 0 {
			items = append(items, Suggestion{
				Slug:     "sales/by-industry",
				Endpoint: slugToEndpoint["sales/by-industry"],
				Params:   map[string]any{"trdar": ref.TrdarCD},
				Label:    fmt.Sprintf("%s 업종별 매출", ref.TrdarCDNm),
			})
			continue
		}
		for _, name := range names {
			items = append(items, Suggestion{
				Slug:     "sales/by-industry",
				Endpoint: slugToEndpoint["sales/by-industry"],
				Params:   map[string]any{"trdar": ref.TrdarCD, "industry_name": name},
				Label:    fmt.Sprintf("%s – %s 업종별 매출", ref.TrdarCDNm, name),
			})
		}
	}
	return items, nil
}

func (l *Linker) suggestChangeIndex(ctx context.Context, entities []string) ([]Suggestion, error) {
	refs, err := l.analytics.FindTradingAreas(ctx, entities, 5)
	if err != nil {
		return nil, err
	}
	var items []Suggestion
	for _, ref := range refs {
		params := map[string]any{"trdar": ref.TrdarCD}
		if latest := l.analytics.LatestChangeYYQ(ctx, ref.TrdarCD); latest != "" {
			params["yyq"] = latest
		}
		items = append(items, Suggestion{
			Slug:     "market/change-index",
			Endpoint: slugToEndpoint["market/change-index"],
			Params:   params,
			Label:    fmt.Sprintf("%s 상권변화지표", ref.TrdarCDNm),
		})
	}
	return items, nil
}

func (l *Linker) suggestClosures(ctx context.Context, entities []string) ([]Suggestion, error) {
	refs, err := l.analytics.FindTradingAreas(ctx, entities, 5)
	if err != nil {
		return nil, err
	}
	latestYear := l.analytics.LatestClosureYear(ctx)

	var items []Suggestion
	for _, ref := range refs {
		area, err := l.analytics.TradingAreaByCode(ctx, ref.TrdarCD)
		if err != nil {
			continue
		}
		switch {
		case area.SignguCD != "":
			items = append(items, Suggestion{
				Slug:     "stores/closure-rate",
				Endpoint: slugToEndpoint["stores/closure-rate"],
				Params:   map[string]any{"signgu_cd": area.SignguCD, "year": latestYear},
				Label:    fmt.Sprintf("%s – %s 폐업 통계", ref.TrdarCDNm, area.SignguCDNm),
			})
		case area.AdstrdCD != "":
			items = append(items, Suggestion{
				Slug:     "stores/closure-rate",
				Endpoint: slugToEndpoint["stores/closure-rate"],
				Params:   map[string]any{"adstrd_cd": area.AdstrdCD, "year": latestYear},
				Label:    fmt.Sprintf("%s – %s 폐업 통계", ref.TrdarCDNm, area.AdstrdCDNm),
			})
		}
	}
	return items, nil
}

// dedupeSuggestions drops repeats of the same slug, endpoint, and parameter
// combination while keeping first-seen order.
func dedupeSuggestions(suggestions []Suggestion) []Suggestion {
	seen := map[string]struct{}{}
	var out []Suggestion
	for _, suggestion := range suggestions {
		keys := make([]string, 0, len(suggestion.Params))
		for key := range suggestion.Params {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		var builder strings.Builder
		builder.WriteString(suggestion.Slug)
		builder.WriteByte('|')
		builder.WriteString(suggestion.Endpoint)
		for _, key := range keys {
			fmt.Fprintf(&builder, "|%s=%v", key, suggestion.Params[key])
		}
		fingerprint := builder.String()
		if _, ok := seen[fingerprint]; ok {
			continue
		}
		seen[fingerprint] = struct{}{}
		out = append(out, suggestion)
	}
	return out
}
