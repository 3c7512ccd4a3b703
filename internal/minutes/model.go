package minutes

import "time"

// MinutesSnapshot is one stored revision of a meeting's minutes document.
// Live snapshots accumulate while the meeting runs; at most one final
// snapshot survives per meeting.
type MinutesSnapshot struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	MeetingID int64     `gorm:"column:meeting_id;not null;index"`
	IsFinal   bool      `gorm:"column:is_final;not null;default:false"`
	Payload   string    `gorm:"column:payload;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (MinutesSnapshot) TableName() string {
	return "minutes_snapshots"
}

// Meta carries the header fields of a minutes document. Unknown values stay
// "TBD" until the transcript reveals them.
type Meta struct {
	Date       string   `json:"date"`
	Time       string   `json:"time"`
	Location   string   `json:"location"`
	Attendees  []string `json:"attendees"`
	Project    string   `json:"project,omitempty"`
	MarketArea string   `json:"market_area,omitempty"`
}

// Topic is one discussed subject.
type Topic struct {
	Topic   string `json:"topic"`
	Summary string `json:"summary"`
	Owner   string `json:"owner,omitempty"`
}

// Decision is one agreed outcome.
type Decision struct {
	Decision  string `json:"decision"`
	Rationale string `json:"rationale,omitempty"`
}

// Action item status and priority values the summarizer is allowed to emit.
const (
	StatusOpen    = "Open"
	StatusBlocked = "Blocked"
	StatusDone    = "Done"

	PriorityHigh   = "High"
	PriorityMedium = "Medium"
	PriorityLow    = "Low"
)

// ActionItem is one assigned follow-up task.
type ActionItem struct {
	Owner    string `json:"owner"`
	Task     string `json:"task"`
	Due      string `json:"due"`
	Status   string `json:"status"`
	Priority string `json:"priority,omitempty"`
}

// Risk is one identified risk with its optional mitigation.
type Risk struct {
	Risk       string `json:"risk"`
	Mitigation string `json:"mitigation,omitempty"`
}

// Minutes is the structured meeting-minutes document.
type Minutes struct {
	Meta           Meta         `json:"meta"`
	OverallSummary string       `json:"overall_summary"`
	Topics         []Topic      `json:"topics"`
	Decisions      []Decision   `json:"decisions"`
	ActionItems    []ActionItem `json:"action_items"`
	NextTopics     []string     `json:"next_topics"`
	Risks          []Risk       `json:"risks"`
	Dependencies   []string     `json:"dependencies"`
}

// EmptyMinutes seeds a blank document for a meeting that has produced no
// summary yet.
func EmptyMinutes(project, marketArea string) Minutes {
	return Minutes{
		Meta: Meta{
			Date:       "TBD",
			Time:       "TBD",
			Location:   "TBD",
			Attendees:  []string{},
			Project:    project,
			MarketArea: marketArea,
		},
		Topics:       []Topic{},
		Decisions:    []Decision{},
		ActionItems:  []ActionItem{},
		NextTopics:   []string{},
		Risks:        []Risk{},
		Dependencies: []string{},
	}
}
