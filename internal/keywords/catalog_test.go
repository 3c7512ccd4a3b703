package keywords

import (
	"reflect"
	"testing"
)

func TestContainsTokenUsesWordBoundaries(t *testing.T) {
	cases := []struct {
		text  string
		token string
		want  bool
	}{
		{"신촌 카페 창업 이야기", "신촌", true},
		{"신촌 카페 창업 이야기", "카페", true},
		{"신촌역 근처", "신촌", false},
		{"임대료 얼마나 해요?", "임대료", true},
		{"평균임대료율 비교", "임대료", false},
		{"(유동인구) 데이터", "유동인구", true},
		{"radius 2000", "2000", true},
		{"radius2000", "2000", false},
		{"상권 변화 지수 확인", "상권 변화 지수", true},
		{"", "신촌", false},
	}
	for _, tc := range cases {
		if got := containsToken(tc.text, tc.token); got != tc.want {
			t.Errorf("containsToken(%q, %q) = %v, want %v", tc.text, tc.token, got, tc.want)
		}
	}
}

func TestMetricsFromTextWhitelistOnly(t *testing.T) {
	metrics, hints := MetricsFromText("신촌 상권의 임대료 수준이랑 유동인구 추이 좀 볼까요")
	wantMetrics := []string{"유동인구", "평균 임대료"}
	if !reflect.DeepEqual(metrics, wantMetrics) {
		t.Fatalf("metrics = %v, want %v", metrics, wantMetrics)
	}
	wantHints := []string{"mobility/foot-traffic", "rent/avg"}
	if !reflect.DeepEqual(hints, wantHints) {
		t.Fatalf("api hints = %v, want %v", hints, wantHints)
	}
}

func TestMetricsFromTextSynonymPromotesToCanonical(t *testing.T) {
	metrics, hints := MetricsFromText("작년 폐업 통계 좀 확인해 주세요")
	if !reflect.DeepEqual(metrics, []string{"폐업률"}) {
		t.Fatalf("metrics = %v", metrics)
	}
	if !reflect.DeepEqual(hints, []string{"stores/closure-rate"}) {
		t.Fatalf("api hints = %v", hints)
	}
}

func TestMetricsFromTextIgnoresUnlistedTerms(t *testing.T) {
	metrics, hints := MetricsFromText("오늘 점심 메뉴와 회의실 예약 이야기")
	if len(metrics) != 0 || len(hints) != 0 {
		t.Fatalf("unlisted text produced metrics = %v hints = %v", metrics, hints)
	}
}

func TestRuleEntitiesFromDictionaries(t *testing.T) {
	found := ruleEntities("강남 쪽에 치킨집이랑 편의점 상권 봐줘")
	want := map[string]bool{"강남": true, "편의점": true}
	for _, entity := range found {
		if !want[entity] {
			t.Fatalf("unexpected entity %q in %v", entity, found)
		}
		delete(want, entity)
	}
	if len(want) != 0 {
		t.Fatalf("missing entities %v from %v", want, found)
	}
}
