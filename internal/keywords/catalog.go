package keywords

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Metric is one whitelisted business metric: the canonical label shown to
// clients, the API route slug, and the synonyms that promote to it.
type Metric struct {
	Canonical string
	Slug      string
	Synonyms  []string
}

// Rule dictionaries supplementing the model's entity output.
var (
	locationWords = []string{"신촌", "홍대", "강남", "건대", "잠실"}
	industryWords = []string{"카페", "분식", "치킨", "편의점", "독서실", "피트니스"}
)

// metricCatalog is the whitelist: only these metrics and their listed
// synonyms ever match, exact token matches only.
var metricCatalog = []Metric{
	{
		Canonical: "상권 영역",
		Slug:      "area/polygon",
		Synonyms:  []string{"상권폴리곤", "상권 경계", "상권 경계선", "폴리곤", "지도 경계"},
	},
	{
		Canonical: "유동인구",
		Slug:      "mobility/foot-traffic",
		Synonyms:  []string{"생활인구", "유입인구", "유동량", "유동량지수", "유입량"},
	},
	{
		Canonical: "업종별 매출",
		Slug:      "sales/by-industry",
		Synonyms:  []string{"업종 매출", "카테고리 매출", "업종 매출액", "업종별 매출액"},
	},
	{
		Canonical: "점포 정보",
		Slug:      "stores/info",
		Synonyms:  []string{"점포현황", "상점 정보", "가게 정보", "점포 리스트", "상점 리스트"},
	},
	{
		Canonical: "업종 포화도(점포 수)",
		Slug:      "stores/count",
		Synonyms:  []string{"업종 포화도", "점포 수", "매장 수", "숍 카운트", "상점 수"},
	},
	{
		Canonical: "평균 임대료",
		Slug:      "rent/avg",
		Synonyms:  []string{"임대료", "월세", "보증금", "임차료", "임대비용", "평균월세"},
	},
	{
		Canonical: "도로상황",
		Slug:      "road/conditions",
		Synonyms:  []string{"도로 상황", "교통상황", "도로혼잡도", "교통량"},
	},
	{
		Canonical: "주차장",
		Slug:      "parking/lots",
		Synonyms:  []string{"주차", "주차 가능", "공영주차장", "민영주차장", "주차장 위치"},
	},
	{
		Canonical: "버스/지하철",
		Slug:      "transit/bus-subway",
		Synonyms:  []string{"대중교통", "지하철", "버스", "환승", "역세권", "정류장"},
	},
	{
		Canonical: "연세권 여부",
		Slug:      "poi/university-zone",
		Synonyms:  []string{"대학가", "대학 인접", "대학권", "캠퍼스 인접", "연세대 인접", "연세대 근처"},
	},
	{
		Canonical: "주변 시설(학교)·학생수",
		Slug:      "poi/schools-students",
		Synonyms:  []string{"학교 수", "학생 수", "초중고", "교육시설", "학령인구"},
	},
	{
		Canonical: "직장인 인구수(배후지)",
		Slug:      "population/office-workers",
		Synonyms:  []string{"직장인 수", "근로자 수", "직장인 인구", "배후지 인구", "오피스 인구"},
	},
	{
		Canonical: "공실률",
		Slug:      "vacancy/rate",
		Synonyms:  []string{"빈점포율", "공가율", "공실 비율"},
	},
	{
		Canonical: "평균 매출/성장률",
		Slug:      "sales/avg-growth",
		Synonyms:  []string{"매출 성장률", "평균 매출", "성장률", "전년대비 매출"},
	},
	{
		Canonical: "폐업률",
		Slug:      "stores/closure-rate",
		Synonyms:  []string{"폐업 비율", "업종 감소", "폐점률", "폐업 통계"},
	},
	{
		Canonical: "상권변화지표",
		Slug:      "market/change-index",
		Synonyms:  []string{"상권 변화", "상권 변화 지수", "상권 지표 변화", "상권추세"},
	},
	{
		Canonical: "네이버 검색 트렌드",
		Slug:      "trends/naver-search",
		Synonyms:  []string{"검색 트렌드", "네이버 트렌드", "검색량 추이", "키워드 트렌드"},
	},
}

var (
	synonymToCanonical = map[string]string{}
	canonicalToSlug    = map[string]string{}
)

func init() {
	for _, metric := range metricCatalog {
		canonicalToSlug[metric.Canonical] = metric.Slug
		for _, synonym := range metric.Synonyms {
			synonymToCanonical[synonym] = metric.Canonical
		}
	}
}

// wordRune reports whether r extends a token: Hangul syllables, digits, and
// latin letters all bind to their neighbors. Korean text is not reliably
// space-segmented, so token boundaries are approximated this way instead of
// splitting on whitespace.
func wordRune(r rune) bool {
	switch {
	case r >= '가' && r <= '힣':
		return true
	case r >= '0' && r <= '9':
		return true
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		return true
	}
	return false
}

// containsToken reports whether token occurs in text on its own, with no
// adjacent word rune on either side. Substring hits inside a longer word do
// not count.
func containsToken(text, token string) bool {
	if token == "" {
		return false
	}
	for offset := 0; ; {
		index := strings.Index(text[offset:], token)
		if index < 0 {
			return false
		}
		start := offset + index
		end := start + len(token)

		before, _ := utf8.DecodeLastRuneInString(text[:start])
		after, _ := utf8.DecodeRuneInString(text[end:])
		if !wordRune(before) && !wordRune(after) {
			return true
		}
		offset = start + 1
	}
}

// MetricsFromText extracts whitelisted metrics from raw text: canonical
// labels match directly, listed synonyms promote to their canonical. Both
// result lists come back sorted.
func MetricsFromText(text string) (metrics, apiHints []string) {
	found := map[string]struct{}{}
	for _, metric := range metricCatalog {
		if containsToken(text, metric.Canonical) {
			found[metric.Canonical] = struct{}{}
		}
	}
	for synonym, canonical := range synonymToCanonical {
		if containsToken(text, synonym) {
			found[canonical] = struct{}{}
		}
	}

	metrics = make([]string, 0, len(found))
	for canonical := range found {
		metrics = append(metrics, canonical)
	}
	sort.Strings(metrics)
	apiHints = make([]string, 0, len(metrics))
	for _, canonical := range metrics {
		apiHints = append(apiHints, canonicalToSlug[canonical])
	}
	sort.Strings(apiHints)
	return metrics, apiHints
}

// ruleEntities returns the dictionary locations and industries present in
// the text.
func ruleEntities(text string) []string {
	var found []string
	for _, word := range locationWords {
		if containsToken(text, word) {
			found = append(found, word)
		}
	}
	for _, word := range industryWords {
		if containsToken(text, word) {
			found = append(found, word)
		}
	}
	return found
}
