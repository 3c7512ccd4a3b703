package minutes

import "strings"

// Merge folds an updated minutes document into the accumulated one. Header
// and overall summary follow the update; list sections grow append-only with
// duplicates dropped; action items are reconciled per owner and task so a
// later mention can fill in a due date, advance a status, or raise priority
// without losing the earlier fields.
func Merge(old, update Minutes) Minutes {
	out := old

	if !metaIsZero(update.Meta) {
		out.Meta = update.Meta
	}
	if update.OverallSummary != "" {
		out.OverallSummary = update.OverallSummary
	}

	out.Topics = mergeTopics(old.Topics, update.Topics)
	out.Decisions = mergeDecisions(old.Decisions, update.Decisions)
	out.NextTopics = mergeStrings(old.NextTopics, update.NextTopics)
	out.Risks = mergeRisks(old.Risks, update.Risks)
	out.Dependencies = mergeStrings(old.Dependencies, update.Dependencies)
	out.ActionItems = mergeActionItems(old.ActionItems, update.ActionItems)
	return out
}

func metaIsZero(meta Meta) bool {
	return meta.Date == "" && meta.Time == "" && meta.Location == "" &&
		len(meta.Attendees) == 0 && meta.Project == "" && meta.MarketArea == ""
}

func mergeStrings(old, update []string) []string {
	seen := make(map[string]struct{}, len(old))
	merged := make([]string, 0, len(old)+len(update))
	for _, value := range old {
		seen[value] = struct{}{}
		merged = append(merged, value)
	}
	for _, value := range update {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		merged = append(merged, value)
	}
	return merged
}

func mergeTopics(old, update []Topic) []Topic {
	seen := make(map[string]struct{}, len(old))
	merged := append([]Topic(nil), old...)
	for _, topic := range old {
		seen[topic.Summary] = struct{}{}
	}
	for _, topic := range update {
		if _, ok := seen[topic.Summary]; ok {
			continue
		}
		seen[topic.Summary] = struct{}{}
		merged = append(merged, topic)
	}
	return merged
}

func mergeDecisions(old, update []Decision) []Decision {
	seen := make(map[string]struct{}, len(old))
	merged := append([]Decision(nil), old...)
	for _, decision := range old {
		seen[decision.Decision] = struct{}{}
	}
	for _, decision := range update {
		if _, ok := seen[decision.Decision]; ok {
			continue
		}
		seen[decision.Decision] = struct{}{}
		merged = append(merged, decision)
	}
	return merged
}

func mergeRisks(old, update []Risk) []Risk {
	seen := make(map[string]struct{}, len(old))
	merged := append([]Risk(nil), old...)
	for _, risk := range old {
		seen[risk.Risk] = struct{}{}
	}
	for _, risk := range update {
		if _, ok := seen[risk.Risk]; ok {
			continue
		}
		seen[risk.Risk] = struct{}{}
		merged = append(merged, risk)
	}
	return merged
}

type actionKey struct {
	owner string
	task  string
}

func normalizeKeyPart(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(value))), " ")
}

func keyOf(item ActionItem) actionKey {
	return actionKey{owner: normalizeKeyPart(item.Owner), task: normalizeKeyPart(item.Task)}
}

var statusRank = map[string]int{StatusDone: 3, StatusBlocked: 2, StatusOpen: 1}

var priorityRank = map[string]int{PriorityHigh: 3, PriorityMedium: 2, PriorityLow: 1}

// reconcileActionItems keeps the more informative value per field: a real
// due date beats TBD, the further-along status wins, priority only ever
// rises.
func reconcileActionItems(old, update ActionItem) ActionItem {
	out := update

	newDue, oldDue := update.Due, old.Due
	if newDue == "" {
		newDue = "TBD"
	}
	if oldDue == "" {
		oldDue = "TBD"
	}
	if newDue != "TBD" && (oldDue == "TBD" || len(newDue) >= len(oldDue)) {
		out.Due = newDue
	} else {
		out.Due = oldDue
	}

	newStatus, oldStatus := update.Status, old.Status
	if newStatus == "" {
		newStatus = StatusOpen
	}
	if oldStatus == "" {
		oldStatus = StatusOpen
	}
	if statusRank[newStatus] >= statusRank[oldStatus] {
		out.Status = newStatus
	} else {
		out.Status = oldStatus
	}

	if update.Priority != "" && priorityRank[update.Priority] >= priorityRank[old.Priority] {
		out.Priority = update.Priority
	} else if old.Priority != "" {
		out.Priority = old.Priority
	}
	return out
}

func mergeActionItems(old, update []ActionItem) []ActionItem {
	merged := append([]ActionItem(nil), old...)
	index := make(map[actionKey]int, len(old))
	for i, item := range old {
		index[keyOf(item)] = i
	}
	for _, item := range update {
		key := keyOf(item)
		if i, ok := index[key]; ok {
			merged[i] = reconcileActionItems(merged[i], item)
			continue
		}
		index[key] = len(merged)
		merged = append(merged, item)
	}
	return merged
}
