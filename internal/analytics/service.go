package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Domain failures mapped to 4xx responses by the HTTP layer.
var (
	ErrMissingRegionFilter = errors.New("region_filter_required")
	ErrInvalidRadius       = errors.New("radius_must_be_positive")
	ErrInvalidGroupBy      = errors.New("invalid_group_by")
	ErrTradingAreaNotFound = errors.New("trading_area_not_found")
	ErrNoData              = errors.New("no_data")
	ErrClientUnavailable   = errors.New("open_api_unavailable")

	errMissingDatabase = errors.New("database handle is required")
	noOpLogger         = zap.NewNop()
)

// totalCategoryKeys marks closure rows that carry a pre-summed total
// instead of one category.
var totalCategoryKeys = map[string]struct{}{
	"전체": {}, "합계": {}, "전체계": {}, "Total": {}, "전체합계": {},
}

// ServiceConfig wires the analytics store. Client may be nil; operations
// that reach the open API then report ErrClientUnavailable.
type ServiceConfig struct {
	Database *gorm.DB
	Client   *SeoulClient
	Logger   *zap.Logger
}

// Service owns the Seoul trading-area datasets: CSV importers, the open-API
// sync jobs, and the query endpoints the meeting workspace links to.
type Service struct {
	db     *gorm.DB
	client *SeoulClient
	logger *zap.Logger
}

// NewService constructs the analytics service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("analytics.service.new: %w", errMissingDatabase)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{db: cfg.Database, client: cfg.Client, logger: logger}, nil
}

// ImportStats summarizes one dataset load.
type ImportStats struct {
	Created int
	Updated int
	Skipped int
}

// ImportTradingAreas upserts the trading-area master from a CSV export.
func (s *Service) ImportTradingAreas(ctx context.Context, path, encoding string) (ImportStats, error) {
	var stats ImportStats
	err := ReadCSVRows(path, encoding, func(row map[string]string) error {
		code := firstValue(row, "TRDAR_CD", "trdar_cd")
		if code == "" {
			stats.Skipped++
			return nil
		}
		area := TradingArea{
			TrdarCD:     code,
			TrdarCDNm:   firstValue(row, "TRDAR_CD_NM", "name"),
			TrdarSeCD:   row["TRDAR_SE_CD"],
			TrdarSeCDNm: row["TRDAR_SE_CD_NM"],
			X:           ParseFloat(row["XCNTS_VALUE"]),
			Y:           ParseFloat(row["YDNTS_VALUE"]),
			SignguCD:    row["SIGNGU_CD"],
			SignguCDNm:  row["SIGNGU_CD_NM"],
			AdstrdCD:    row["ADSTRD_CD"],
			AdstrdCDNm:  row["ADSTRD_CD_NM"],
			AreaM2:      ParseFloat(row["RELM_AR"]),
		}
		return s.upsertTradingArea(ctx, area, &stats)
	})
	return stats, err
}

func (s *Service) upsertTradingArea(ctx context.Context, area TradingArea, stats *ImportStats) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&TradingArea{}).
		Where("trdar_cd = ?", area.TrdarCD).
		Count(&count).Error; err != nil {
		return fmt.Errorf("analytics.import_trading_areas: %w", err)
	}
	if count > 0 {
		if err := s.db.WithContext(ctx).Model(&TradingArea{}).
			Where("trdar_cd = ?", area.TrdarCD).
			Updates(&area).Error; err != nil {
			return fmt.Errorf("analytics.import_trading_areas: %w", err)
		}
		stats.Updated++
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&area).Error; err != nil {
		return fmt.Errorf("analytics.import_trading_areas: %w", err)
	}
	stats.Created++
	return nil
}

// SyncTradingAreas refreshes the trading-area master from the TbgisTrdarRelm
// open API.
func (s *Service) SyncTradingAreas(ctx context.Context) (ImportStats, error) {
	var stats ImportStats
	if s.client == nil {
		return stats, ErrClientUnavailable
	}
	rows, err := s.client.TradingAreaRows(ctx)
	if err != nil {
		return stats, err
	}
	for _, row := range rows {
		code := rowString(row, "TRDAR_CD")
		if code == "" {
			stats.Skipped++
			continue
		}
		area := TradingArea{
			TrdarCD:     code,
			TrdarCDNm:   rowString(row, "TRDAR_CD_NM"),
			TrdarSeCD:   rowString(row, "TRDAR_SE_CD"),
			TrdarSeCDNm: rowString(row, "TRDAR_SE_CD_NM"),
			X:           rowFloat(row, "XCNTS_VALUE"),
			Y:           rowFloat(row, "YDNTS_VALUE"),
			SignguCD:    rowString(row, "SIGNGU_CD"),
			SignguCDNm:  rowString(row, "SIGNGU_CD_NM"),
			AdstrdCD:    rowString(row, "ADSTRD_CD"),
			AdstrdCDNm:  rowString(row, "ADSTRD_CD_NM"),
			AreaM2:      rowFloat(row, "RELM_AR"),
		}
		if err := s.upsertTradingArea(ctx, area, &stats); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// ImportIndustryMetrics loads the quarterly industry sales CSV
// (VwsmTrdarSelngQq exports).
func (s *Service) ImportIndustryMetrics(ctx context.Context, path, encoding string) (ImportStats, error) {
	var stats ImportStats
	err := ReadCSVRows(path, encoding, func(row map[string]string) error {
		trdar := firstValue(row, "TRDAR_CD", "상권_코드")
		yyq := firstValue(row, "STDR_YYQU_CD", "기준_년분기_코드")
		if trdar == "" || yyq == "" {
			stats.Skipped++
			return nil
		}
		raw, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("analytics.import_industry_metrics: encode raw row: %w", err)
		}
		metric := IndustryMetric{
			TrdarCD:       trdar,
			YYQ:           yyq,
			SvcIndutyCD:   firstValue(row, "SVC_INDUTY_CD", "서비스_업종_코드"),
			SvcIndutyCDNm: firstValue(row, "SVC_INDUTY_CD_NM", "서비스_업종_코드_명"),
			MonthSalesAmt: ParseFloat(firstValue(row, "THSMON_SELNG_AMT", "당월_매출_금액")),
			MonthSalesCnt: ParseFloat(firstValue(row, "THSMON_SELNG_CO", "당월_매출_건수")),
			WeekdaySales:  ParseFloat(row["MDWK_SELNG_AMT"]),
			WeekendSales:  ParseFloat(row["WKEND_SELNG_AMT"]),
			RawData:       string(raw),
		}

		var existing IndustryMetric
		lookupErr := s.db.WithContext(ctx).
			Where("trdar_cd = ? AND yyq = ? AND svc_induty_cd = ?", metric.TrdarCD, metric.YYQ, metric.SvcIndutyCD).
			Take(&existing).Error
		if errors.Is(lookupErr, gorm.ErrRecordNotFound) {
			if err := s.db.WithContext(ctx).Create(&metric).Error; err != nil {
				return fmt.Errorf("analytics.import_industry_metrics: %w", err)
			}
			stats.Created++
			return nil
		}
		if lookupErr != nil {
			return fmt.Errorf("analytics.import_industry_metrics: %w", lookupErr)
		}
		metric.ID = existing.ID
		if err := s.db.WithContext(ctx).Save(&metric).Error; err != nil {
			return fmt.Errorf("analytics.import_industry_metrics: %w", err)
		}
		stats.Updated++
		return nil
	})
	return stats, err
}

// ImportChangeIndex loads the quarterly market change indicator CSV.
func (s *Service) ImportChangeIndex(ctx context.Context, path, encoding string) (ImportStats, error) {
	var stats ImportStats
	err := ReadCSVRows(path, encoding, func(row map[string]string) error {
		yyq := firstValue(row, "기준_년분기_코드", "STDR_YYQU_CD")
		trdar := firstValue(row, "상권_코드", "TRDAR_CD")
		if yyq == "" || trdar == "" {
			stats.Skipped++
			return nil
		}
		raw, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("analytics.import_change_index: encode raw row: %w", err)
		}
		record := ChangeIndex{
			TrdarCD:     trdar,
			YYQ:         yyq,
			ChangeIndex: ParseFloat(firstValue(row, "상권_변화_지표", "CHG_IDX")),
			ChangeLevel: firstValue(row, "상권_변화_지표_등급", "CHG_LVL"),
			RawData:     string(raw),
		}

		var existing ChangeIndex
		lookupErr := s.db.WithContext(ctx).
			Where("trdar_cd = ? AND yyq = ?", record.TrdarCD, record.YYQ).
			Take(&existing).Error
		if errors.Is(lookupErr, gorm.ErrRecordNotFound) {
			if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
				return fmt.Errorf("analytics.import_change_index: %w", err)
			}
			stats.Created++
			return nil
		}
		if lookupErr != nil {
			return fmt.Errorf("analytics.import_change_index: %w", lookupErr)
		}
		record.ID = existing.ID
		if err := s.db.WithContext(ctx).Save(&record).Error; err != nil {
			return fmt.Errorf("analytics.import_change_index: %w", err)
		}
		stats.Updated++
		return nil
	})
	return stats, err
}

// ClosureImportOptions selects the closure CSV layout. Wide files carry one
// district per row with one column per category; tall files carry one
// category per row.
type ClosureImportOptions struct {
	Encoding         string
	SignguNameColumn string

	// tall layout
	Year           int
	YearColumn     string
	CategoryColumn string
	CountColumn    string

	// wide layout
	WideYear    int
	MeltColumns []string

	SkipTotalRow bool
}

// ImportClosures loads a yearly closure-count CSV in either layout.
func (s *Service) ImportClosures(ctx context.Context, path string, opts ClosureImportOptions) (ImportStats, error) {
	var stats ImportStats
	if opts.SignguNameColumn == "" {
		return stats, fmt.Errorf("analytics.import_closures: signgu name column is required")
	}

	err := ReadCSVRows(path, opts.Encoding, func(row map[string]string) error {
		name := strings.Trim(row[opts.SignguNameColumn], `"'`)
		if name == "" {
			stats.Skipped++
			return nil
		}
		if opts.SkipTotalRow && name == "서울시" {
			stats.Skipped++
			return nil
		}
		raw, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("analytics.import_closures: encode raw row: %w", err)
		}

		if opts.WideYear != 0 {
			for _, category := range opts.MeltColumns {
				value, ok := row[category]
				if !ok {
					continue
				}
				if err := s.upsertClosure(ctx, ClosureStat{
					Year:       opts.WideYear,
					SignguCD:   SignguNameToCode(name),
					SignguCDNm: name,
					Category:   category,
					Closures:   ParseInt(value),
					RawData:    string(raw),
				}, &stats); err != nil {
					return err
				}
			}
			return nil
		}

		year := opts.Year
		if year == 0 && opts.YearColumn != "" {
			if parsed := ParseInt(row[opts.YearColumn]); parsed != nil {
				year = *parsed
			}
		}
		if year == 0 {
			stats.Skipped++
			return nil
		}
		category := strings.Trim(row[opts.CategoryColumn], `"'`)
		if category == "" {
			category = "전체"
		}
		return s.upsertClosure(ctx, ClosureStat{
			Year:       year,
			SignguCD:   SignguNameToCode(name),
			SignguCDNm: name,
			Category:   category,
			Closures:   ParseInt(row[opts.CountColumn]),
			RawData:    string(raw),
		}, &stats)
	})
	return stats, err
}

func (s *Service) upsertClosure(ctx context.Context, stat ClosureStat, stats *ImportStats) error {
	var existing ClosureStat
	lookupErr := s.db.WithContext(ctx).
		Where("year = ? AND signgu_cd_nm = ? AND category = ?", stat.Year, stat.SignguCDNm, stat.Category).
		Take(&existing).Error
	if errors.Is(lookupErr, gorm.ErrRecordNotFound) {
		if err := s.db.WithContext(ctx).Create(&stat).Error; err != nil {
			return fmt.Errorf("analytics.import_closures: %w", err)
		}
		stats.Created++
		return nil
	}
	if lookupErr != nil {
		return fmt.Errorf("analytics.import_closures: %w", lookupErr)
	}
	stat.ID = existing.ID
	if err := s.db.WithContext(ctx).Save(&stat).Error; err != nil {
		return fmt.Errorf("analytics.import_closures: %w", err)
	}
	stats.Updated++
	return nil
}

// TrdarCenter resolves a trading area's center coordinates: the imported
// master first, then the open API as a fallback.
func (s *Service) TrdarCenter(ctx context.Context, trdarCD string) (float64, float64, error) {
	target := strings.TrimSpace(trdarCD)
	if target == "" {
		return 0, 0, ErrTradingAreaNotFound
	}

	var area TradingArea
	err := s.db.WithContext(ctx).Where("trdar_cd = ?", target).Take(&area).Error
	if err == nil && area.X != nil && area.Y != nil {
		return *area.X, *area.Y, nil
	}
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, 0, fmt.Errorf("analytics.trdar_center: %w", err)
	}

	if s.client == nil {
		return 0, 0, ErrTradingAreaNotFound
	}
	rows, err := s.client.TradingAreaRows(ctx)
	if err != nil {
		s.logger.Warn("trading area open-api fallback failed", zap.Error(err))
		return 0, 0, ErrTradingAreaNotFound
	}
	for _, row := range rows {
		if rowString(row, "TRDAR_CD") != target {
			continue
		}
		cx := rowFloat(row, "X_CRDNT", "TRDAR_X_CRDNT", "XCNTS_VALUE", "LON", "LNG", "X")
		cy := rowFloat(row, "Y_CRDNT", "TRDAR_Y_CRDNT", "YDNTS_VALUE", "LAT", "Y")
		if cx != nil && cy != nil {
			return *cx, *cy, nil
		}
	}
	return 0, 0, ErrTradingAreaNotFound
}

// CategoryCount is one category bucket of a store-count breakdown.
type CategoryCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// StoreCountsQuery selects the center and grouping for a radius census.
type StoreCountsQuery struct {
	TrdarCD string
	CX      *float64
	CY      *float64
	Radius  int
	GroupBy string
	Limit   int
}

// StoreCountsResult is the radius census: total store count, the optional
// grouped breakdown sorted by size, and the resolved center.
type StoreCountsResult struct {
	Total int             `json:"total"`
	Top   []CategoryCount `json:"top,omitempty"`
	CX    float64         `json:"cx"`
	CY    float64         `json:"cy"`
}

// StoreCounts runs the live radius census against the store open API.
func (s *Service) StoreCounts(ctx context.Context, query StoreCountsQuery) (*StoreCountsResult, error) {
	if query.Radius <= 0 {
		return nil, ErrInvalidRadius
	}
	switch query.GroupBy {
	case "", "lcls", "mcls", "scls":
	default:
		return nil, ErrInvalidGroupBy
	}

	var cx, cy float64
	if query.CX != nil && query.CY != nil {
		cx, cy = *query.CX, *query.CY
	} else {
		if query.TrdarCD == "" {
			return nil, ErrMissingRegionFilter
		}
		var err error
		cx, cy, err = s.TrdarCenter(ctx, query.TrdarCD)
		if err != nil {
			return nil, err
		}
	}

	if s.client == nil {
		return nil, ErrClientUnavailable
	}
	rows, total, err := s.client.StoreRowsInRadius(ctx, cx, cy, query.Radius)
	if err != nil {
		return nil, err
	}

	result := &StoreCountsResult{Total: total, CX: cx, CY: cy}
	if query.GroupBy != "" {
		large, medium, small := AggregateStoreCounts(rows)
		base := map[string]map[string]int{"lcls": large, "mcls": medium, "scls": small}[query.GroupBy]
		for name, count := range base {
			result.Top = append(result.Top, CategoryCount{Name: name, Count: count})
		}
		sort.Slice(result.Top, func(i, j int) bool {
			if result.Top[i].Count != result.Top[j].Count {
				return result.Top[i].Count > result.Top[j].Count
			}
			return result.Top[i].Name < result.Top[j].Name
		})
		if query.Limit > 0 && len(result.Top) > query.Limit {
			result.Top = result.Top[:query.Limit]
		}
	}
	return result, nil
}

// RegionQuery narrows a dataset to one trading area, administrative dong,
// or district, optionally pinned to a quarter.
type RegionQuery struct {
	TrdarCD  string
	SignguCD string
	AdstrdCD string
	YYQ      string
}

func (q RegionQuery) empty() bool {
	return q.TrdarCD == "" && q.SignguCD == "" && q.AdstrdCD == ""
}

// trdarSet expands a district or dong filter into its trading-area codes.
func (s *Service) trdarSet(ctx context.Context, query RegionQuery) ([]string, error) {
	if query.TrdarCD != "" {
		return []string{query.TrdarCD}, nil
	}
	scope := s.db.WithContext(ctx).Model(&TradingArea{})
	if query.AdstrdCD != "" {
		scope = scope.Where("adstrd_cd = ?", query.AdstrdCD)
	} else {
		scope = scope.Where("signgu_cd = ?", query.SignguCD)
	}
	var codes []string
	if err := scope.Pluck("trdar_cd", &codes).Error; err != nil {
		return nil, fmt.Errorf("analytics.trdar_set: %w", err)
	}
	if len(codes) == 0 {
		return nil, ErrNoData
	}
	return codes, nil
}

// ChangeIndexResult carries the matching indicator rows and their average.
type ChangeIndexResult struct {
	Items       []ChangeIndex `json:"items"`
	Average     *float64      `json:"change_index_avg"`
	TrdarsCount int           `json:"trdars_count"`
}

// ChangeIndexQuery returns the market change indicators of a region.
func (s *Service) ChangeIndexQuery(ctx context.Context, query RegionQuery) (*ChangeIndexResult, error) {
	if query.empty() {
		return nil, ErrMissingRegionFilter
	}
	codes, err := s.trdarSet(ctx, query)
	if err != nil {
		return nil, err
	}

	scope := s.db.WithContext(ctx).Where("trdar_cd IN ?", codes)
	if query.YYQ != "" {
		scope = scope.Where("yyq = ?", query.YYQ)
	}
	var items []ChangeIndex
	if err := scope.Order("trdar_cd ASC, yyq ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("analytics.change_index: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrNoData
	}

	trdars := map[string]struct{}{}
	var sum float64
	var counted int
	for _, item := range items {
		trdars[item.TrdarCD] = struct{}{}
		if item.ChangeIndex != nil {
			sum += *item.ChangeIndex
			counted++
		}
	}
	result := &ChangeIndexResult{Items: items, TrdarsCount: len(trdars)}
	if counted > 0 {
		avg := sum / float64(counted)
		result.Average = &avg
	}
	return result, nil
}

// SignguNameFromCode resolves a district code to its name via the imported
// trading-area master. Five-digit codes match as a prefix of the stored
// longer codes.
func (s *Service) SignguNameFromCode(ctx context.Context, code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	scope := s.db.WithContext(ctx).Model(&TradingArea{}).
		Where("signgu_cd_nm <> ''")
	if len(code) == 5 {
		scope = scope.Where("signgu_cd LIKE ?", code+"%")
	} else {
		scope = scope.Where("signgu_cd = ?", code)
	}
	var name string
	if err := scope.Limit(1).Pluck("signgu_cd_nm", &name).Error; err != nil {
		return ""
	}
	return name
}

// ClosuresQuery selects a region and optional year for closure statistics.
type ClosuresQuery struct {
	SignguCD   string
	SignguCDNm string
	AdstrdCD   string
	Year       int
}

// ClosuresResult carries the matching closure rows with their aggregates.
// When a pre-summed total row exists its value wins over summing the
// category rows.
type ClosuresResult struct {
	Items       []ClosureStat  `json:"items"`
	ClosuresSum int            `json:"closures_sum"`
	ByCategory  map[string]int `json:"by_category"`
	SignguCDNm  string         `json:"signgu_cd_nm,omitempty"`
}

// Closures returns the yearly closure statistics of a district or dong.
func (s *Service) Closures(ctx context.Context, query ClosuresQuery) (*ClosuresResult, error) {
	if query.SignguCD == "" && query.SignguCDNm == "" && query.AdstrdCD == "" {
		return nil, ErrMissingRegionFilter
	}

	scope := s.db.WithContext(ctx).Model(&ClosureStat{})
	resolvedName := query.SignguCDNm
	switch {
	case query.AdstrdCD != "":
		scope = scope.Where("adstrd_cd = ?", query.AdstrdCD)
	case query.SignguCD != "":
		// data rows sometimes carry the name only, so a resolved name
		// widens the code match
		resolvedName = s.SignguNameFromCode(ctx, query.SignguCD)
		if resolvedName != "" {
			scope = scope.Where("(signgu_cd = ? OR signgu_cd_nm = ?)", query.SignguCD, resolvedName)
		} else {
			scope = scope.Where("signgu_cd = ?", query.SignguCD)
		}
	default:
		scope = scope.Where("signgu_cd_nm = ?", query.SignguCDNm)
	}
	if query.Year != 0 {
		scope = scope.Where("year = ?", query.Year)
	}

	var items []ClosureStat
	if err := scope.Order("year ASC, category ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("analytics.closures: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrNoData
	}

	result := &ClosuresResult{Items: items, ByCategory: map[string]int{}, SignguCDNm: resolvedName}
	var totalRow *ClosureStat
	var sum int
	for i, item := range items {
		count := 0
		if item.Closures != nil {
			count = *item.Closures
		}
		if _, isTotal := totalCategoryKeys[item.Category]; isTotal {
			if totalRow == nil {
				totalRow = &items[i]
			}
			continue
		}
		category := item.Category
		if category == "" {
			category = "기타"
		}
		result.ByCategory[category] += count
		sum += count
	}
	if totalRow != nil && totalRow.Closures != nil {
		result.ClosuresSum = *totalRow.Closures
	} else {
		result.ClosuresSum = sum
	}
	return result, nil
}

// IndustryMetricsResult carries the matching quarterly sales rows with
// their region-wide sums.
type IndustryMetricsResult struct {
	Items            []IndustryMetric `json:"items"`
	Trdars           []string         `json:"trdars"`
	MonthSalesAmtSum float64          `json:"thsmon_selng_amt_sum"`
	MonthSalesCntSum float64          `json:"thsmon_selng_co_sum"`
	WeekdaySalesSum  float64          `json:"mdwk_selng_amt_sum"`
	WeekendSalesSum  float64          `json:"wkend_selng_amt_sum"`
}

// IndustryMetricsQuery returns the quarterly industry sales of a region.
func (s *Service) IndustryMetricsQuery(ctx context.Context, query RegionQuery) (*IndustryMetricsResult, error) {
	if query.empty() {
		return nil, ErrMissingRegionFilter
	}
	codes, err := s.trdarSet(ctx, query)
	if err != nil {
		return nil, err
	}

	scope := s.db.WithContext(ctx).Where("trdar_cd IN ?", codes)
	if query.YYQ != "" {
		scope = scope.Where("yyq = ?", query.YYQ)
	}
	var items []IndustryMetric
	if err := scope.Order("trdar_cd ASC, yyq ASC, svc_induty_cd ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("analytics.industry_metrics: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrNoData
	}

	result := &IndustryMetricsResult{Items: items}
	trdars := map[string]struct{}{}
	for _, item := range items {
		trdars[item.TrdarCD] = struct{}{}
		if item.MonthSalesAmt != nil {
			result.MonthSalesAmtSum += *item.MonthSalesAmt
		}
		if item.MonthSalesCnt != nil {
			result.MonthSalesCntSum += *item.MonthSalesCnt
		}
		if item.WeekdaySales != nil {
			result.WeekdaySalesSum += *item.WeekdaySales
		}
		if item.WeekendSales != nil {
			result.WeekendSalesSum += *item.WeekendSales
		}
	}
	for code := range trdars {
		result.Trdars = append(result.Trdars, code)
	}
	sort.Strings(result.Trdars)
	return result, nil
}

// FetchStoreCounts refreshes the cached radius census for every trading
// area with known coordinates, or one area when trdarOnly is set.
func (s *Service) FetchStoreCounts(ctx context.Context, radius int, trdarOnly string) (ImportStats, error) {
	var stats ImportStats
	if radius <= 0 {
		return stats, ErrInvalidRadius
	}
	if s.client == nil {
		return stats, ErrClientUnavailable
	}

	scope := s.db.WithContext(ctx).Model(&TradingArea{})
	if trdarOnly != "" {
		scope = scope.Where("trdar_cd = ?", trdarOnly)
	}
	var areas []TradingArea
	if err := scope.Find(&areas).Error; err != nil {
		return stats, fmt.Errorf("analytics.fetch_store_counts: %w", err)
	}

	for _, area := range areas {
		if area.X == nil || area.Y == nil {
			stats.Skipped++
			continue
		}
		rows, total, err := s.client.StoreRowsInRadius(ctx, *area.X, *area.Y, radius)
		if err != nil {
			s.logger.Warn("store census fetch failed",
				zap.String("trdar_cd", area.TrdarCD), zap.Error(err))
			stats.Skipped++
			continue
		}
		large, medium, small := AggregateStoreCounts(rows)
		countsL, _ := json.Marshal(large)
		countsM, _ := json.Marshal(medium)
		countsS, _ := json.Marshal(small)
		record := StoreCount{
			TrdarCD: area.TrdarCD,
			Radius:  radius,
			Total:   total,
			CX:      area.X,
			CY:      area.Y,
			CountsL: string(countsL),
			CountsM: string(countsM),
			CountsS: string(countsS),
		}

		var existing StoreCount
		lookupErr := s.db.WithContext(ctx).
			Where("trdar_cd = ? AND radius = ?", record.TrdarCD, record.Radius).
			Take(&existing).Error
		if errors.Is(lookupErr, gorm.ErrRecordNotFound) {
			if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
				return stats, fmt.Errorf("analytics.fetch_store_counts: %w", err)
			}
			stats.Created++
			continue
		}
		if lookupErr != nil {
			return stats, fmt.Errorf("analytics.fetch_store_counts: %w", lookupErr)
		}
		record.ID = existing.ID
		if err := s.db.WithContext(ctx).Save(&record).Error; err != nil {
			return stats, fmt.Errorf("analytics.fetch_store_counts: %w", err)
		}
		stats.Updated++
	}
	return stats, nil
}

// TradingAreaRef is the compact form used by keyword-driven suggestions.
type TradingAreaRef struct {
	TrdarCD   string `json:"trdar_cd"`
	TrdarCDNm string `json:"trdar_cd_nm"`
}

// FindTradingAreas matches free-text entities ("신촌", "강남구") against
// trading area, district, and dong names.
func (s *Service) FindTradingAreas(ctx context.Context, entities []string, limit int) ([]TradingAreaRef, error) {
	if len(entities) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	seen := map[string]struct{}{}
	var refs []TradingAreaRef
	for _, entity := range entities {
		entity = strings.TrimSpace(entity)
		if entity == "" {
			continue
		}
		pattern := "%" + entity + "%"
		var matches []TradingArea
		if err := s.db.WithContext(ctx).
			Where("trdar_cd_nm LIKE ? OR signgu_cd_nm LIKE ? OR adstrd_cd_nm LIKE ?", pattern, pattern, pattern).
			Limit(limit).
			Find(&matches).Error; err != nil {
			return nil, fmt.Errorf("analytics.find_trading_areas: %w", err)
		}
		for _, match := range matches {
			if _, ok := seen[match.TrdarCD]; ok {
				continue
			}
			seen[match.TrdarCD] = struct{}{}
			refs = append(refs, TradingAreaRef{TrdarCD: match.TrdarCD, TrdarCDNm: match.TrdarCDNm})
			if len(refs) >= limit {
				return refs, nil
			}
		}
	}
	return refs, nil
}

// TradingAreaByCode loads one trading area row.
func (s *Service) TradingAreaByCode(ctx context.Context, code string) (*TradingArea, error) {
	var area TradingArea
	err := s.db.WithContext(ctx).Where("trdar_cd = ?", code).Take(&area).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTradingAreaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("analytics.trading_area: %w", err)
	}
	return &area, nil
}

// LatestClosureYear returns the newest imported closure year, 2023 when the
// table is empty.
func (s *Service) LatestClosureYear(ctx context.Context) int {
	var year int
	err := s.db.WithContext(ctx).Model(&ClosureStat{}).
		Select("COALESCE(MAX(year), 2023)").
		Scan(&year).Error
	if err != nil || year == 0 {
		return 2023
	}
	return year
}

// LatestChangeYYQ returns the newest indicator quarter of one trading area,
// empty when none exists.
func (s *Service) LatestChangeYYQ(ctx context.Context, trdarCD string) string {
	var yyq string
	s.db.WithContext(ctx).Model(&ChangeIndex{}).
		Where("trdar_cd = ?", trdarCD).
		Order("yyq DESC").
		Limit(1).
		Pluck("yyq", &yyq)
	return yyq
}

// IndustryNames returns the distinct service industries recorded for one
// trading area, at most limit entries.
func (s *Service) IndustryNames(ctx context.Context, trdarCD string, limit int) []string {
	if limit <= 0 {
		limit = 5
	}
	var names []string
	s.db.WithContext(ctx).Model(&IndustryMetric{}).
		Where("trdar_cd = ? AND svc_induty_cd <> ''", trdarCD).
		Distinct().
		Order("svc_induty_cd_nm ASC").
		Limit(limit).
		Pluck("svc_induty_cd_nm", &names)
	return names
}
