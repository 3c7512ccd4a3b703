package minutes

import (
	"fmt"
	"strings"
)

// SummaryText renders a minutes document as plain text for sharing and for
// feeding the keyword extractor.
func SummaryText(doc Minutes) string {
	var lines []string

	var header []string
	for _, value := range []string{doc.Meta.Date, doc.Meta.Time, doc.Meta.Location} {
		if value != "" {
			header = append(header, value)
		}
	}
	if len(header) > 0 {
		lines = append(lines, strings.Join(header, " / "))
	}
	if doc.Meta.Project != "" {
		lines = append(lines, fmt.Sprintf("[프로젝트] %s", doc.Meta.Project))
	}
	if doc.Meta.MarketArea != "" {
		lines = append(lines, fmt.Sprintf("[상권] %s", doc.Meta.MarketArea))
	}

	if doc.OverallSummary != "" {
		lines = append(lines, "", "■ 전체 요약", doc.OverallSummary)
	}

	if len(doc.Topics) > 0 {
		lines = append(lines, "", "■ 주요 토픽")
		for _, topic := range doc.Topics {
			owner := ""
			if topic.Owner != "" {
				owner = fmt.Sprintf(" (%s)", topic.Owner)
			}
			lines = append(lines, fmt.Sprintf("- %s%s: %s", topic.Topic, owner, topic.Summary))
		}
	}

	if len(doc.Decisions) > 0 {
		lines = append(lines, "", "■ 결정 사항")
		for _, decision := range doc.Decisions {
			rationale := ""
			if decision.Rationale != "" {
				rationale = fmt.Sprintf(" (이유: %s)", decision.Rationale)
			}
			lines = append(lines, fmt.Sprintf("- %s%s", decision.Decision, rationale))
		}
	}

	if len(doc.ActionItems) > 0 {
		lines = append(lines, "", "■ 액션 아이템")
		for _, item := range doc.ActionItems {
			owner := item.Owner
			if owner == "" {
				owner = "TBD"
			}
			due := item.Due
			if due == "" {
				due = "TBD"
			}
			status := item.Status
			if status == "" {
				status = StatusOpen
			}
			priority := ""
			if item.Priority != "" {
				priority = fmt.Sprintf(" [%s]", item.Priority)
			}
			lines = append(lines, fmt.Sprintf("- %s: %s (due: %s, status: %s)%s",
				owner, item.Task, due, status, priority))
		}
	}

	if len(doc.NextTopics) > 0 {
		lines = append(lines, "", "■ 다음 회의 안건")
		for _, topic := range doc.NextTopics {
			lines = append(lines, fmt.Sprintf("- %s", topic))
		}
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}
