package analytics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T, client *SeoulClient) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:analytics_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("raw database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&TradingArea{}, &IndustryMetric{}, &ChangeIndex{}, &ClosureStat{}, &StoreCount{}); err != nil {
		t.Fatalf("migrate schema: %v", err)
	}

	service, err := NewService(ServiceConfig{Database: db, Client: client})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return service
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

func seedTradingAreas(t *testing.T, service *Service) {
	t.Helper()
	areas := []TradingArea{
		{
			TrdarCD: "2110001", TrdarCDNm: "신촌역", SignguCD: "11410", SignguCDNm: "서대문구",
			AdstrdCD: "1141052", AdstrdCDNm: "신촌동", X: floatPtr(126.94), Y: floatPtr(37.56),
		},
		{
			TrdarCD: "2110002", TrdarCDNm: "강남역 남부", SignguCD: "11680", SignguCDNm: "강남구",
			AdstrdCD: "1168064", AdstrdCDNm: "역삼1동", X: floatPtr(127.03), Y: floatPtr(37.49),
		},
		{
			TrdarCD: "2110003", TrdarCDNm: "강남역 북부", SignguCD: "11680", SignguCDNm: "강남구",
			AdstrdCD: "1168064", AdstrdCDNm: "역삼1동",
		},
	}
	for i := range areas {
		if err := service.db.Create(&areas[i]).Error; err != nil {
			t.Fatalf("seed trading area: %v", err)
		}
	}
}

func TestImportTradingAreasUpserts(t *testing.T) {
	service := newTestService(t, nil)
	content := "TRDAR_CD,TRDAR_CD_NM,XCNTS_VALUE,YDNTS_VALUE,SIGNGU_CD,SIGNGU_CD_NM,RELM_AR\n" +
		"2110001,신촌역,126.94,37.56,11410,서대문구,\"12,345.6\"\n" +
		"2110002,강남역,127.03,37.49,11680,강남구,NULL\n" +
		",이름없는행,1,2,3,4,5\n"
	path := writeTempFile(t, "areas.csv", []byte(content))

	stats, err := service.ImportTradingAreas(context.Background(), path, EncodingUTF8)
	if err != nil {
		t.Fatalf("import trading areas: %v", err)
	}
	if stats.Created != 2 || stats.Updated != 0 || stats.Skipped != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	var area TradingArea
	if err := service.db.Where("trdar_cd = ?", "2110001").Take(&area).Error; err != nil {
		t.Fatalf("load imported area: %v", err)
	}
	if area.AreaM2 == nil || *area.AreaM2 != 12345.6 {
		t.Fatalf("comma-grouped area not parsed: %v", area.AreaM2)
	}
	if area.X == nil || *area.X != 126.94 {
		t.Fatalf("x = %v", area.X)
	}

	stats, err = service.ImportTradingAreas(context.Background(), path, EncodingUTF8)
	if err != nil {
		t.Fatalf("re-import trading areas: %v", err)
	}
	if stats.Created != 0 || stats.Updated != 2 {
		t.Fatalf("re-import stats = %+v", stats)
	}
}

func TestImportClosuresWideFormMeltsCategories(t *testing.T) {
	service := newTestService(t, nil)
	content := "자치구,한식음식점,커피-음료\n서울시,50000,20000\n강남구,1200,800\n마포구,900,600\n"
	path := writeTempFile(t, "closures.csv", []byte(content))

	stats, err := service.ImportClosures(context.Background(), path, ClosureImportOptions{
		Encoding:         EncodingUTF8,
		SignguNameColumn: "자치구",
		WideYear:         2023,
		MeltColumns:      []string{"한식음식점", "커피-음료"},
		SkipTotalRow:     true,
	})
	if err != nil {
		t.Fatalf("import closures: %v", err)
	}
	if stats.Created != 4 || stats.Skipped != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	var stat ClosureStat
	if err := service.db.Where("signgu_cd_nm = ? AND category = ?", "강남구", "커피-음료").Take(&stat).Error; err != nil {
		t.Fatalf("load melted row: %v", err)
	}
	if stat.Year != 2023 || stat.SignguCD != "11680" || stat.Closures == nil || *stat.Closures != 800 {
		t.Fatalf("melted row = %+v", stat)
	}

	stats, err = service.ImportClosures(context.Background(), path, ClosureImportOptions{
		Encoding:         EncodingUTF8,
		SignguNameColumn: "자치구",
		WideYear:         2023,
		MeltColumns:      []string{"한식음식점", "커피-음료"},
		SkipTotalRow:     true,
	})
	if err != nil {
		t.Fatalf("re-import closures: %v", err)
	}
	if stats.Created != 0 || stats.Updated != 4 {
		t.Fatalf("re-import stats = %+v", stats)
	}
}

func TestImportClosuresTallForm(t *testing.T) {
	service := newTestService(t, nil)
	content := "연도,자치구,업종,폐업수\n2022,강남구,카페,300\n2023,강남구,카페,350\n2023,강남구,,400\n"
	path := writeTempFile(t, "closures_tall.csv", []byte(content))

	stats, err := service.ImportClosures(context.Background(), path, ClosureImportOptions{
		Encoding:         EncodingUTF8,
		SignguNameColumn: "자치구",
		YearColumn:       "연도",
		CategoryColumn:   "업종",
		CountColumn:      "폐업수",
	})
	if err != nil {
		t.Fatalf("import closures: %v", err)
	}
	if stats.Created != 3 {
		t.Fatalf("stats = %+v", stats)
	}

	var stat ClosureStat
	if err := service.db.Where("year = ? AND category = ?", 2023, "전체").Take(&stat).Error; err != nil {
		t.Fatalf("blank category should default to 전체: %v", err)
	}
	if stat.Closures == nil || *stat.Closures != 400 {
		t.Fatalf("total row = %+v", stat)
	}
}

func TestImportChangeIndexUpserts(t *testing.T) {
	service := newTestService(t, nil)
	content := "기준_년분기_코드,상권_코드,상권_변화_지표,상권_변화_지표_등급\n20234,2110001,1.25,다이나믹\n20234,2110002,,정체\n"
	path := writeTempFile(t, "change.csv", []byte(content))

	stats, err := service.ImportChangeIndex(context.Background(), path, EncodingUTF8)
	if err != nil {
		t.Fatalf("import change index: %v", err)
	}
	if stats.Created != 2 {
		t.Fatalf("stats = %+v", stats)
	}

	var record ChangeIndex
	if err := service.db.Where("trdar_cd = ?", "2110001").Take(&record).Error; err != nil {
		t.Fatalf("load change row: %v", err)
	}
	if record.ChangeIndex == nil || *record.ChangeIndex != 1.25 || record.ChangeLevel != "다이나믹" {
		t.Fatalf("change row = %+v", record)
	}

	stats, err = service.ImportChangeIndex(context.Background(), path, EncodingUTF8)
	if err != nil {
		t.Fatalf("re-import change index: %v", err)
	}
	if stats.Created != 0 || stats.Updated != 2 {
		t.Fatalf("re-import stats = %+v", stats)
	}
}

func TestImportIndustryMetrics(t *testing.T) {
	service := newTestService(t, nil)
	content := "STDR_YYQU_CD,TRDAR_CD,SVC_INDUTY_CD,SVC_INDUTY_CD_NM,THSMON_SELNG_AMT,THSMON_SELNG_CO\n" +
		"20234,2110001,CS100001,한식음식점,\"1,000,000\",500\n" +
		"20234,2110001,CS100010,커피-음료,2000000,800\n"
	path := writeTempFile(t, "sales.csv", []byte(content))

	stats, err := service.ImportIndustryMetrics(context.Background(), path, EncodingUTF8)
	if err != nil {
		t.Fatalf("import industry metrics: %v", err)
	}
	if stats.Created != 2 {
		t.Fatalf("stats = %+v", stats)
	}

	var metric IndustryMetric
	if err := service.db.Where("svc_induty_cd = ?", "CS100001").Take(&metric).Error; err != nil {
		t.Fatalf("load metric: %v", err)
	}
	if metric.MonthSalesAmt == nil || *metric.MonthSalesAmt != 1_000_000 {
		t.Fatalf("sales amount = %v", metric.MonthSalesAmt)
	}
	if metric.YYQ != "20234" {
		t.Fatalf("yyq = %q", metric.YYQ)
	}
}

func TestChangeIndexQueryAggregatesRegion(t *testing.T) {
	service := newTestService(t, nil)
	seedTradingAreas(t, service)
	rows := []ChangeIndex{
		{TrdarCD: "2110002", YYQ: "20233", ChangeIndex: floatPtr(1.0)},
		{TrdarCD: "2110002", YYQ: "20234", ChangeIndex: floatPtr(2.0)},
		{TrdarCD: "2110003", YYQ: "20234", ChangeIndex: floatPtr(4.0)},
		{TrdarCD: "2110003", YYQ: "20241", ChangeIndex: nil, ChangeLevel: "정체"},
	}
	for i := range rows {
		if err := service.db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("seed change index: %v", err)
		}
	}

	result, err := service.ChangeIndexQuery(context.Background(), RegionQuery{SignguCD: "11680"})
	if err != nil {
		t.Fatalf("query by district: %v", err)
	}
	if len(result.Items) != 4 || result.TrdarsCount != 2 {
		t.Fatalf("items = %d trdars = %d", len(result.Items), result.TrdarsCount)
	}
	if result.Average == nil || *result.Average != (1.0+2.0+4.0)/3 {
		t.Fatalf("average = %v", result.Average)
	}

	result, err = service.ChangeIndexQuery(context.Background(), RegionQuery{TrdarCD: "2110003", YYQ: "20234"})
	if err != nil {
		t.Fatalf("query by trdar and quarter: %v", err)
	}
	if len(result.Items) != 1 || result.Average == nil || *result.Average != 4.0 {
		t.Fatalf("pinned quarter result = %+v", result)
	}

	if _, err := service.ChangeIndexQuery(context.Background(), RegionQuery{}); !errors.Is(err, ErrMissingRegionFilter) {
		t.Fatalf("empty filter err = %v", err)
	}
	if _, err := service.ChangeIndexQuery(context.Background(), RegionQuery{SignguCD: "11999"}); !errors.Is(err, ErrNoData) {
		t.Fatalf("unknown district err = %v", err)
	}
}

func TestClosuresTotalRowWinsOverSum(t *testing.T) {
	service := newTestService(t, nil)
	seedTradingAreas(t, service)
	rows := []ClosureStat{
		{Year: 2023, SignguCDNm: "강남구", Category: "한식음식점", Closures: intPtr(400)},
		{Year: 2023, SignguCDNm: "강남구", Category: "커피-음료", Closures: intPtr(300)},
		{Year: 2023, SignguCDNm: "강남구", Category: "전체", Closures: intPtr(1200)},
		{Year: 2022, SignguCDNm: "강남구", Category: "한식음식점", Closures: intPtr(380)},
	}
	for i := range rows {
		if err := service.db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("seed closures: %v", err)
		}
	}

	// district codes resolve to names through the trading-area master
	result, err := service.Closures(context.Background(), ClosuresQuery{SignguCD: "11680", Year: 2023})
	if err != nil {
		t.Fatalf("query closures: %v", err)
	}
	if result.SignguCDNm != "강남구" {
		t.Fatalf("resolved name = %q", result.SignguCDNm)
	}
	if result.ClosuresSum != 1200 {
		t.Fatalf("total row should win: sum = %d", result.ClosuresSum)
	}
	if len(result.ByCategory) != 2 || result.ByCategory["한식음식점"] != 400 {
		t.Fatalf("by_category = %v", result.ByCategory)
	}
	if _, ok := result.ByCategory["전체"]; ok {
		t.Fatalf("total key leaked into by_category: %v", result.ByCategory)
	}

	result, err = service.Closures(context.Background(), ClosuresQuery{SignguCDNm: "강남구", Year: 2022})
	if err != nil {
		t.Fatalf("query without total row: %v", err)
	}
	if result.ClosuresSum != 380 {
		t.Fatalf("category sum fallback = %d", result.ClosuresSum)
	}

	if _, err := service.Closures(context.Background(), ClosuresQuery{}); !errors.Is(err, ErrMissingRegionFilter) {
		t.Fatalf("empty filter err = %v", err)
	}
	if _, err := service.Closures(context.Background(), ClosuresQuery{SignguCDNm: "부산진구"}); !errors.Is(err, ErrNoData) {
		t.Fatalf("non-Seoul district err = %v", err)
	}
}

func TestIndustryMetricsQuerySumsRegion(t *testing.T) {
	service := newTestService(t, nil)
	seedTradingAreas(t, service)
	rows := []IndustryMetric{
		{TrdarCD: "2110002", YYQ: "20234", SvcIndutyCD: "CS100001", SvcIndutyCDNm: "한식음식점",
			MonthSalesAmt: floatPtr(1_000_000), MonthSalesCnt: floatPtr(500), WeekdaySales: floatPtr(700_000), WeekendSales: floatPtr(300_000)},
		{TrdarCD: "2110003", YYQ: "20234", SvcIndutyCD: "CS100001", SvcIndutyCDNm: "한식음식점",
			MonthSalesAmt: floatPtr(2_000_000), MonthSalesCnt: floatPtr(900)},
		{TrdarCD: "2110001", YYQ: "20234", SvcIndutyCD: "CS100001", SvcIndutyCDNm: "한식음식점",
			MonthSalesAmt: floatPtr(9_000_000)},
	}
	for i := range rows {
		if err := service.db.Create(&rows[i]).Error; err != nil {
			t.Fatalf("seed metrics: %v", err)
		}
	}

	result, err := service.IndustryMetricsQuery(context.Background(), RegionQuery{AdstrdCD: "1168064"})
	if err != nil {
		t.Fatalf("query by dong: %v", err)
	}
	if len(result.Items) != 2 {
		t.Fatalf("items = %d, want the 역삼1동 rows only", len(result.Items))
	}
	if result.MonthSalesAmtSum != 3_000_000 || result.MonthSalesCntSum != 1400 {
		t.Fatalf("sums = %v / %v", result.MonthSalesAmtSum, result.MonthSalesCntSum)
	}
	if result.WeekdaySalesSum != 700_000 || result.WeekendSalesSum != 300_000 {
		t.Fatalf("weekday/weekend sums = %v / %v", result.WeekdaySalesSum, result.WeekendSalesSum)
	}
	if len(result.Trdars) != 2 || result.Trdars[0] != "2110002" {
		t.Fatalf("trdars = %v", result.Trdars)
	}

	if _, err := service.IndustryMetricsQuery(context.Background(), RegionQuery{TrdarCD: "2110002", YYQ: "20191"}); !errors.Is(err, ErrNoData) {
		t.Fatalf("empty quarter err = %v", err)
	}
}

func TestStoreCountsValidatesAndAggregates(t *testing.T) {
	rows := []map[string]any{
		{"indsLclsNm": "음식", "indsMclsNm": "커피점/카페"},
		{"indsLclsNm": "음식", "indsMclsNm": "분식"},
		{"indsLclsNm": "소매", "indsMclsNm": "편의점"},
	}
	server := seoulFixture(t, "storeListInRadius", rows)
	defer server.Close()
	client, err := NewSeoulClient(SeoulClientConfig{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("construct client: %v", err)
	}
	service := newTestService(t, client)
	seedTradingAreas(t, service)

	if _, err := service.StoreCounts(context.Background(), StoreCountsQuery{Radius: 0}); !errors.Is(err, ErrInvalidRadius) {
		t.Fatalf("radius err = %v", err)
	}
	if _, err := service.StoreCounts(context.Background(), StoreCountsQuery{Radius: 500, GroupBy: "huge"}); !errors.Is(err, ErrInvalidGroupBy) {
		t.Fatalf("group_by err = %v", err)
	}
	if _, err := service.StoreCounts(context.Background(), StoreCountsQuery{Radius: 500}); !errors.Is(err, ErrMissingRegionFilter) {
		t.Fatalf("missing center err = %v", err)
	}
	if _, err := service.StoreCounts(context.Background(), StoreCountsQuery{Radius: 500, TrdarCD: "9999999"}); !errors.Is(err, ErrTradingAreaNotFound) {
		t.Fatalf("unknown trdar err = %v", err)
	}

	result, err := service.StoreCounts(context.Background(), StoreCountsQuery{
		TrdarCD: "2110002",
		Radius:  500,
		GroupBy: "lcls",
		Limit:   1,
	})
	if err != nil {
		t.Fatalf("store counts: %v", err)
	}
	if result.Total != 3 {
		t.Fatalf("total = %d", result.Total)
	}
	if result.CX != 127.03 || result.CY != 37.49 {
		t.Fatalf("center = %v/%v, want the trading-area coordinates", result.CX, result.CY)
	}
	if len(result.Top) != 1 || result.Top[0].Name != "음식" || result.Top[0].Count != 2 {
		t.Fatalf("top = %v", result.Top)
	}
}

func TestFetchStoreCountsCachesPerArea(t *testing.T) {
	rows := []map[string]any{
		{"indsLclsNm": "음식", "indsMclsNm": "커피점/카페", "indsSclsNm": "카페"},
	}
	server := seoulFixture(t, "storeListInRadius", rows)
	defer server.Close()
	client, err := NewSeoulClient(SeoulClientConfig{APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("construct client: %v", err)
	}
	service := newTestService(t, client)
	seedTradingAreas(t, service)

	stats, err := service.FetchStoreCounts(context.Background(), 500, "")
	if err != nil {
		t.Fatalf("fetch store counts: %v", err)
	}
	// 2110003 has no coordinates and is skipped
	if stats.Created != 2 || stats.Skipped != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	var cached StoreCount
	if err := service.db.Where("trdar_cd = ? AND radius = ?", "2110002", 500).Take(&cached).Error; err != nil {
		t.Fatalf("load cached census: %v", err)
	}
	if cached.Total != 1 || cached.CountsL == "" {
		t.Fatalf("cached census = %+v", cached)
	}

	stats, err = service.FetchStoreCounts(context.Background(), 500, "2110002")
	if err != nil {
		t.Fatalf("refresh one area: %v", err)
	}
	if stats.Created != 0 || stats.Updated != 1 {
		t.Fatalf("refresh stats = %+v", stats)
	}
}

func TestFindTradingAreasMatchesEntities(t *testing.T) {
	service := newTestService(t, nil)
	seedTradingAreas(t, service)

	refs, err := service.FindTradingAreas(context.Background(), []string{"강남", "신촌"}, 5)
	if err != nil {
		t.Fatalf("find trading areas: %v", err)
	}
	if len(refs) != 3 {
		t.Fatalf("refs = %v", refs)
	}
	seen := map[string]bool{}
	for _, ref := range refs {
		if seen[ref.TrdarCD] {
			t.Fatalf("duplicate code %s", ref.TrdarCD)
		}
		seen[ref.TrdarCD] = true
	}

	refs, err = service.FindTradingAreas(context.Background(), []string{"강남구"}, 1)
	if err != nil {
		t.Fatalf("find with limit: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("limited refs = %v", refs)
	}

	refs, err = service.FindTradingAreas(context.Background(), nil, 5)
	if err != nil || refs != nil {
		t.Fatalf("empty entities = %v, %v", refs, err)
	}
}

func TestLinkerHelperDefaults(t *testing.T) {
	service := newTestService(t, nil)

	if year := service.LatestClosureYear(context.Background()); year != 2023 {
		t.Fatalf("default closure year = %d", year)
	}
	if err := service.db.Create(&ClosureStat{Year: 2024, SignguCDNm: "강남구", Category: "전체", Closures: intPtr(10)}).Error; err != nil {
		t.Fatalf("seed closure: %v", err)
	}
	if year := service.LatestClosureYear(context.Background()); year != 2024 {
		t.Fatalf("latest closure year = %d", year)
	}

	if yyq := service.LatestChangeYYQ(context.Background(), "2110001"); yyq != "" {
		t.Fatalf("empty change table yyq = %q", yyq)
	}
	for _, quarter := range []string{"20233", "20241", "20234"} {
		if err := service.db.Create(&ChangeIndex{TrdarCD: "2110001", YYQ: quarter}).Error; err != nil {
			t.Fatalf("seed change row: %v", err)
		}
	}
	if yyq := service.LatestChangeYYQ(context.Background(), "2110001"); yyq != "20241" {
		t.Fatalf("latest yyq = %q", yyq)
	}

	metrics := []IndustryMetric{
		{TrdarCD: "2110001", YYQ: "20233", SvcIndutyCD: "CS100001", SvcIndutyCDNm: "한식음식점"},
		{TrdarCD: "2110001", YYQ: "20234", SvcIndutyCD: "CS100001", SvcIndutyCDNm: "한식음식점"},
		{TrdarCD: "2110001", YYQ: "20234", SvcIndutyCD: "CS100010", SvcIndutyCDNm: "커피-음료"},
		{TrdarCD: "2110009", YYQ: "20234", SvcIndutyCD: "CS100020", SvcIndutyCDNm: "분식전문점"},
	}
	for i := range metrics {
		if err := service.db.Create(&metrics[i]).Error; err != nil {
			t.Fatalf("seed industry metric: %v", err)
		}
	}
	names := service.IndustryNames(context.Background(), "2110001", 5)
	if len(names) != 2 || names[0] != "커피-음료" || names[1] != "한식음식점" {
		t.Fatalf("industry names = %v", names)
	}
}

func TestSyncTradingAreasFromOpenAPI(t *testing.T) {
	server := seoulFixture(t, "TbgisTrdarRelm", fixtureRows(3))
	defer server.Close()
	client, err := NewSeoulClient(SeoulClientConfig{APIKey: "test-key", BaseURL: server.URL, PageSize: 2})
	if err != nil {
		t.Fatalf("construct client: %v", err)
	}
	service := newTestService(t, client)

	stats, err := service.SyncTradingAreas(context.Background())
	if err != nil {
		t.Fatalf("sync trading areas: %v", err)
	}
	if stats.Created != 3 {
		t.Fatalf("stats = %+v", stats)
	}

	var area TradingArea
	if err := service.db.Where("trdar_cd = ?", "2110002").Take(&area).Error; err != nil {
		t.Fatalf("load synced area: %v", err)
	}
	if area.SignguCDNm != "강남구" || area.X == nil || *area.X != 127.0 {
		t.Fatalf("synced area = %+v", area)
	}

	offline := newTestService(t, nil)
	if _, err := offline.SyncTradingAreas(context.Background()); !errors.Is(err, ErrClientUnavailable) {
		t.Fatalf("offline sync err = %v", err)
	}
}
