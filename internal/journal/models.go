package journal

import (
	"time"

	"gorm.io/gorm"
)

// ContextEvent is one observed focus change: which window took focus,
// as reported by which adapter.
type ContextEvent struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Timestamp time.Time      `gorm:"not null;index" json:"timestamp"`
	Adapter   string         `gorm:"not null;index" json:"adapter"`
	AppID     string         `gorm:"not null;index" json:"app_id"`
	AppClass  string         `gorm:"not null;index" json:"app_class"`
	Title     string         `gorm:"not null" json:"window_title"`
	CreatedAt time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// LifecycleEvent is one adapter state transition.
type LifecycleEvent struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Timestamp time.Time      `gorm:"not null;index" json:"timestamp"`
	Adapter   string         `gorm:"not null;index" json:"adapter"`
	FromState string         `gorm:"not null" json:"from_state"`
	ToState   string         `gorm:"not null;index" json:"to_state"`
	Detail    string         `json:"detail"`
	CreatedAt time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// AppSummary aggregates focus changes per application class.
type AppSummary struct {
	AppClass   string    `json:"app_class"`
	EventCount int       `json:"event_count"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
	Percentage float64   `json:"percentage,omitempty"`
}

type ReportPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Type  string    `json:"type"` // "day", "week", "month"
}

type Report struct {
	Period      ReportPeriod `json:"period"`
	Apps        []AppSummary `json:"apps"`
	TotalEvents int64        `json:"total_events"`
	GeneratedAt time.Time    `json:"generated_at"`
}
