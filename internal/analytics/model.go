package analytics

import "time"

// TradingArea is the master record of one Seoul commercial district
// (trading area), keyed by the city's TRDAR code. Rows arrive either from a
// CSV export or from the TbgisTrdarRelm open-API sync.
type TradingArea struct {
	TrdarCD     string   `gorm:"column:trdar_cd;size:20;primaryKey"`
	TrdarCDNm   string   `gorm:"column:trdar_cd_nm;size:255"`
	TrdarSeCD   string   `gorm:"column:trdar_se_cd;size:10"`
	TrdarSeCDNm string   `gorm:"column:trdar_se_cd_nm;size:50"`
	X           *float64 `gorm:"column:x"`
	Y           *float64 `gorm:"column:y"`
	SignguCD    string   `gorm:"column:signgu_cd;size:10;index"`
	SignguCDNm  string   `gorm:"column:signgu_cd_nm;size:50"`
	AdstrdCD    string   `gorm:"column:adstrd_cd;size:20"`
	AdstrdCDNm  string   `gorm:"column:adstrd_cd_nm;size:50"`
	AreaM2      *float64 `gorm:"column:area_m2"`
}

// TableName provides the explicit table binding for GORM.
func (TradingArea) TableName() string {
	return "analytics_trading_areas"
}

// IndustryMetric is one quarterly sales row per trading area and service
// industry. YYQ uses the "2023Q4" form.
type IndustryMetric struct {
	ID            int64    `gorm:"column:id;primaryKey;autoIncrement"`
	TrdarCD       string   `gorm:"column:trdar_cd;size:20;not null;index;uniqueIndex:idx_metric_key"`
	YYQ           string   `gorm:"column:yyq;size:7;not null;index;uniqueIndex:idx_metric_key"`
	SvcIndutyCD   string   `gorm:"column:svc_induty_cd;size:10;uniqueIndex:idx_metric_key"`
	SvcIndutyCDNm string   `gorm:"column:svc_induty_cd_nm;size:100"`
	MonthSalesAmt *float64 `gorm:"column:thsmon_selng_amt"`
	MonthSalesCnt *float64 `gorm:"column:thsmon_selng_co"`
	WeekdaySales  *float64 `gorm:"column:mdwk_selng_amt"`
	WeekendSales  *float64 `gorm:"column:wkend_selng_amt"`
	RawData       string   `gorm:"column:raw_data;type:text"`
}

// TableName provides the explicit table binding for GORM.
func (IndustryMetric) TableName() string {
	return "analytics_industry_metrics"
}

// ChangeIndex is the quarterly market change indicator of one trading area.
type ChangeIndex struct {
	ID          int64    `gorm:"column:id;primaryKey;autoIncrement"`
	TrdarCD     string   `gorm:"column:trdar_cd;size:20;not null;index;uniqueIndex:idx_change_key"`
	YYQ         string   `gorm:"column:yyq;size:7;not null;index;uniqueIndex:idx_change_key"`
	ChangeIndex *float64 `gorm:"column:change_index"`
	ChangeLevel string   `gorm:"column:change_level;size:32"`
	RawData     string   `gorm:"column:raw_data;type:text"`
}

// TableName provides the explicit table binding for GORM.
func (ChangeIndex) TableName() string {
	return "analytics_change_indexes"
}

// ClosureStat is a yearly business-closure count, stored per district
// (signgu) or administrative dong (adstrd) depending on the source CSV.
type ClosureStat struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Year       int    `gorm:"column:year;not null;index:idx_closure_signgu;index:idx_closure_adstrd"`
	SignguCD   string `gorm:"column:signgu_cd;size:10;index:idx_closure_signgu"`
	SignguCDNm string `gorm:"column:signgu_cd_nm;size:50"`
	AdstrdCD   string `gorm:"column:adstrd_cd;size:10;index:idx_closure_adstrd"`
	AdstrdCDNm string `gorm:"column:adstrd_cd_nm;size:50"`
	Category   string `gorm:"column:category;size:50;not null"`
	Closures   *int   `gorm:"column:closures"`
	RawData    string `gorm:"column:raw_data;type:text"`
}

// TableName provides the explicit table binding for GORM.
func (ClosureStat) TableName() string {
	return "analytics_closure_stats"
}

// StoreCount caches the store census around a trading area center: total
// store count within the radius plus per-category breakdowns, stored as
// JSON maps of category name to count.
type StoreCount struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	TrdarCD    string    `gorm:"column:trdar_cd;size:10;not null;uniqueIndex:idx_store_count_key"`
	Radius     int       `gorm:"column:radius;not null;default:2000;uniqueIndex:idx_store_count_key"`
	Total      int       `gorm:"column:total;not null;default:0"`
	CX         *float64  `gorm:"column:cx"`
	CY         *float64  `gorm:"column:cy"`
	CountsL    string    `gorm:"column:counts_lcls;type:text"`
	CountsM    string    `gorm:"column:counts_mcls;type:text"`
	CountsS    string    `gorm:"column:counts_scls;type:text"`
	FetchedAt  time.Time `gorm:"column:fetched_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (StoreCount) TableName() string {
	return "analytics_store_counts"
}
