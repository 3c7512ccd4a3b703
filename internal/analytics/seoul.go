package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultSeoulBaseURL is the Seoul open-data gateway.
	DefaultSeoulBaseURL = "http://openapi.seoul.go.kr:8088"

	serviceTradingAreas = "TbgisTrdarRelm"
	serviceStoreRadius  = "storeListInRadius"

	defaultPageSize = 1000
)

// ErrMissingSeoulAPIKey is returned when the client is constructed without
// a key.
var ErrMissingSeoulAPIKey = errors.New("analytics: seoul api key is not set")

// ErrSeoulUpstream marks failures of the open API itself, as opposed to
// bad caller input.
var ErrSeoulUpstream = errors.New("open_api_error")

// SeoulClientConfig wires the open-API client.
type SeoulClientConfig struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	PageSize   int
}

// SeoulClient is a paging client for the Seoul commercial-district open
// API. Responses follow the common envelope of one service-named block
// holding list_total_count and a row array.
type SeoulClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	pageSize   int
}

// NewSeoulClient constructs the open-API client.
func NewSeoulClient(cfg SeoulClientConfig) (*SeoulClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingSeoulAPIKey
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultSeoulBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &SeoulClient{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		pageSize:   pageSize,
	}, nil
}

type seoulPage struct {
	Total int
	Rows  []map[string]any
}

func (c *SeoulClient) fetchPage(ctx context.Context, service string, start, end int, params url.Values) (*seoulPage, error) {
	endpoint := fmt.Sprintf("%s/%s/json/%s/%d/%d/", c.baseURL, c.apiKey, service, start, end)
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("analytics: build request: %w", err)
	}
	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: %s request: %v", ErrSeoulUpstream, service, err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s response: %v", ErrSeoulUpstream, service, err)
	}
	if response.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: %s returned %s", ErrSeoulUpstream, service, response.Status)
	}
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "{") {
		return nil, fmt.Errorf("%w: non-JSON response from %s", ErrSeoulUpstream, service)
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode %s response: %v", ErrSeoulUpstream, service, err)
	}

	// the block key sometimes differs in case from the requested service
	blockRaw, ok := payload[service]
	if !ok {
		prefix := strings.ToLower(service[:min(5, len(service))])
		for key, value := range payload {
			if strings.HasPrefix(strings.ToLower(key), prefix) {
				blockRaw = value
				ok = true
				break
			}
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s response missing service block", ErrSeoulUpstream, service)
	}

	var block struct {
		Total json.Number      `json:"list_total_count"`
		Rows  []map[string]any `json:"row"`
	}
	if err := json.Unmarshal(blockRaw, &block); err != nil {
		return nil, fmt.Errorf("%w: decode %s block: %v", ErrSeoulUpstream, service, err)
	}
	total, _ := strconv.Atoi(block.Total.String())
	return &seoulPage{Total: total, Rows: block.Rows}, nil
}

func (c *SeoulClient) fetchAll(ctx context.Context, service string, params url.Values) ([]map[string]any, int, error) {
	start, end := 1, c.pageSize
	first, err := c.fetchPage(ctx, service, start, end, params)
	if err != nil {
		return nil, 0, err
	}
	rows := first.Rows
	total := first.Total
	for end < total {
		start = end + 1
		end += c.pageSize
		if end > total {
			end = total
		}
		page, err := c.fetchPage(ctx, service, start, end, params)
		if err != nil {
			return nil, 0, err
		}
		rows = append(rows, page.Rows...)
	}
	return rows, total, nil
}

// TradingAreaRows fetches every trading-area master row.
func (c *SeoulClient) TradingAreaRows(ctx context.Context) ([]map[string]any, error) {
	rows, _, err := c.fetchAll(ctx, serviceTradingAreas, nil)
	return rows, err
}

// StoreRowsInRadius fetches all store records within radius meters of the
// given center and the reported total.
func (c *SeoulClient) StoreRowsInRadius(ctx context.Context, cx, cy float64, radius int) ([]map[string]any, int, error) {
	params := url.Values{}
	params.Set("cx", strconv.FormatFloat(cx, 'f', -1, 64))
	params.Set("cy", strconv.FormatFloat(cy, 'f', -1, 64))
	params.Set("radius", strconv.Itoa(radius))
	return c.fetchAll(ctx, serviceStoreRadius, params)
}

// AggregateStoreCounts groups store rows into large/medium/small industry
// category counts, preferring the category name over the bare code.
func AggregateStoreCounts(rows []map[string]any) (large, medium, small map[string]int) {
	large = map[string]int{}
	medium = map[string]int{}
	small = map[string]int{}
	for _, row := range rows {
		if name := rowString(row, "indsLclsNm", "indsLclsCd"); name != "" {
			large[name]++
		}
		if name := rowString(row, "indsMclsNm", "indsMclsCd"); name != "" {
			medium[name]++
		}
		if name := rowString(row, "indsSclsNm", "indsSclsCd"); name != "" {
			small[name]++
		}
	}
	return large, medium, small
}

// rowString returns the first usable string among the candidate keys.
func rowString(row map[string]any, keys ...string) string {
	for _, key := range keys {
		value, ok := row[key]
		if !ok || value == nil {
			continue
		}
		text := strings.TrimSpace(fmt.Sprintf("%v", value))
		if text == "" || text == "NULL" || text == "NaN" {
			continue
		}
		return text
	}
	return ""
}

// rowFloat returns the first parseable number among the candidate keys.
func rowFloat(row map[string]any, keys ...string) *float64 {
	for _, key := range keys {
		value, ok := row[key]
		if !ok || value == nil {
			continue
		}
		switch typed := value.(type) {
		case float64:
			parsed := typed
			return &parsed
		case string:
			if parsed := ParseFloat(typed); parsed != nil {
				return parsed
			}
		case json.Number:
			if parsed, err := typed.Float64(); err == nil {
				return &parsed
			}
		}
	}
	return nil
}
