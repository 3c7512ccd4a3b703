package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/roundtable-labs/backend/internal/analytics"
)

const defaultStoreRadius = 2000

func (h *httpHandler) handleFindAreas(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "q_required"})
		return
	}
	limit, _, ok := queryInt(c, "limit")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid_limit"})
		return
	}
	refs, err := h.analytics.FindTradingAreas(c.Request.Context(), strings.Fields(query), limit)
	if err != nil {
		h.writeDomainError(c, "analytics.areas", err)
		return
	}
	if refs == nil {
		refs = []analytics.TradingAreaRef{}
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "items": refs})
}

// queryTrdar reads the trading area code filter. The canonical parameter
// is trdar_cd; trdar is accepted as a short alias.
func queryTrdar(c *gin.Context) string {
	if value := strings.TrimSpace(c.Query("trdar_cd")); value != "" {
		return value
	}
	return strings.TrimSpace(c.Query("trdar"))
}

func (h *httpHandler) handleRegionCenter(c *gin.Context) {
	trdarCD := queryTrdar(c)
	if trdarCD == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "trdar_required"})
		return
	}
	cx, cy, err := h.analytics.TrdarCenter(c.Request.Context(), trdarCD)
	if err != nil {
		h.writeDomainError(c, "analytics.center", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "trdar_cd": trdarCD, "cx": cx, "cy": cy})
}

func (h *httpHandler) handleStoreCounts(c *gin.Context) {
	query := analytics.StoreCountsQuery{
		TrdarCD: queryTrdar(c),
		GroupBy: strings.TrimSpace(c.Query("group_by")),
		Radius:  defaultStoreRadius,
	}
	if radius, present, ok := queryInt(c, "radius"); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid_radius"})
		return
	} else if present {
		query.Radius = radius
	}
	if limit, _, ok := queryInt(c, "limit"); ok {
		query.Limit = limit
	} else {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid_limit"})
		return
	}
	cx, okX := queryFloat(c, "cx")
	cy, okY := queryFloat(c, "cy")
	if !okX || !okY {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid_center"})
		return
	}
	query.CX = cx
	query.CY = cy

	result, err := h.analytics.StoreCounts(c.Request.Context(), query)
	if err != nil {
		h.writeDomainError(c, "analytics.store_counts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  http.StatusOK,
		"success": true,
		"message": "ok",
		"params": gin.H{
			"trdar_cd": query.TrdarCD,
			"radius":   query.Radius,
			"group_by": query.GroupBy,
			"cx":       result.CX,
			"cy":       result.CY,
		},
		"data": gin.H{
			"total": result.Total,
			"top":   result.Top,
		},
	})
}

func (h *httpHandler) handleChangeIndex(c *gin.Context) {
	result, err := h.analytics.ChangeIndexQuery(c.Request.Context(), analytics.RegionQuery{
		TrdarCD:  queryTrdar(c),
		SignguCD: strings.TrimSpace(c.Query("signgu_cd")),
		AdstrdCD: strings.TrimSpace(c.Query("adstrd_cd")),
		YYQ:      strings.TrimSpace(c.Query("yyq")),
	})
	if err != nil {
		h.writeDomainError(c, "analytics.change_index", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":               true,
		"items":            result.Items,
		"change_index_avg": result.Average,
		"trdars_count":     result.TrdarsCount,
	})
}

func (h *httpHandler) handleClosures(c *gin.Context) {
	query := analytics.ClosuresQuery{
		SignguCD:   strings.TrimSpace(c.Query("signgu_cd")),
		SignguCDNm: strings.TrimSpace(c.Query("signgu_cd_nm")),
		AdstrdCD:   strings.TrimSpace(c.Query("adstrd_cd")),
	}
	if year, present, ok := queryInt(c, "year"); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "invalid_year"})
		return
	} else if present {
		query.Year = year
	}
	result, err := h.analytics.Closures(c.Request.Context(), query)
	if err != nil {
		h.writeDomainError(c, "analytics.closures", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":           true,
		"items":        result.Items,
		"closures_sum": result.ClosuresSum,
		"by_category":  result.ByCategory,
		"signgu_cd_nm": result.SignguCDNm,
	})
}

func (h *httpHandler) handleIndustryMetrics(c *gin.Context) {
	result, err := h.analytics.IndustryMetricsQuery(c.Request.Context(), analytics.RegionQuery{
		TrdarCD:  queryTrdar(c),
		SignguCD: strings.TrimSpace(c.Query("signgu_cd")),
		AdstrdCD: strings.TrimSpace(c.Query("adstrd_cd")),
		YYQ:      strings.TrimSpace(c.Query("yyq")),
	})
	if err != nil {
		h.writeDomainError(c, "analytics.industry_metrics", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":                   true,
		"items":                result.Items,
		"trdars":               result.Trdars,
		"thsmon_selng_amt_sum": result.MonthSalesAmtSum,
		"thsmon_selng_co_sum":  result.MonthSalesCntSum,
		"mdwk_selng_amt_sum":   result.WeekdaySalesSum,
		"wkend_selng_amt_sum":  result.WeekendSalesSum,
	})
}

// queryFloat parses an optional float query parameter into a pointer; nil
// when absent, not-ok when malformed.
func queryFloat(c *gin.Context, name string) (*float64, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, false
	}
	return &parsed, true
}
