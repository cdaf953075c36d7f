package journal

import (
	"time"

	"github.com/pkg/errors"

	"gorm.io/gorm"
)

// Repository handles all journal database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository instance
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// RecordContext inserts a new context event
func (r *Repository) RecordContext(event *ContextEvent) error {
	result := r.db.Create(event)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert context event")
	}
	return nil
}

// RecordLifecycle inserts a new lifecycle transition
func (r *Repository) RecordLifecycle(event *LifecycleEvent) error {
	result := r.db.Create(event)
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert lifecycle event")
	}
	return nil
}

// ContextsSince retrieves all context events since a given time
func (r *Repository) ContextsSince(since time.Time) ([]*ContextEvent, error) {
	var events []*ContextEvent
	result := r.db.Where("timestamp >= ?", since).Order("timestamp ASC").Find(&events)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query context events")
	}

	return events, nil
}

// RecentContexts retrieves the newest context events, newest first
func (r *Repository) RecentContexts(limit int) ([]*ContextEvent, error) {
	var events []*ContextEvent
	result := r.db.Order("timestamp DESC").Limit(limit).Find(&events)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query recent context events")
	}

	return events, nil
}

// LatestContext retrieves the most recent context event, or nil when
// the journal is empty
func (r *Repository) LatestContext() (*ContextEvent, error) {
	var event ContextEvent
	result := r.db.Order("timestamp DESC").First(&event)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, errors.Wrap(result.Error, "failed to get latest context event")
	}
	return &event, nil
}

// LifecycleSince retrieves adapter transitions since a given time
func (r *Repository) LifecycleSince(since time.Time) ([]*LifecycleEvent, error) {
	var events []*LifecycleEvent
	result := r.db.Where("timestamp >= ?", since).Order("timestamp ASC").Find(&events)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query lifecycle events")
	}

	return events, nil
}

// SummaryByAppSince returns per-application focus-change aggregates
// since a given time. SQL does the counting; derived fields are
// computed by the reporter.
func (r *Repository) SummaryByAppSince(since time.Time) ([]AppSummary, error) {
	var summaries []AppSummary

	result := r.db.Model(&ContextEvent{}).
		Select("app_class, COUNT(*) as event_count, MIN(timestamp) as first_seen, MAX(timestamp) as last_seen").
		Where("timestamp >= ?", since).
		Group("app_class").
		Order("event_count DESC").
		Scan(&summaries)

	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "failed to query app summary")
	}

	return summaries, nil
}

// Prune deletes journal rows older than a specified date (soft delete)
func (r *Repository) Prune(before time.Time) (int64, error) {
	result := r.db.Where("timestamp < ?", before).Delete(&ContextEvent{})
	if result.Error != nil {
		return 0, errors.Wrap(result.Error, "failed to prune context events")
	}
	deleted := result.RowsAffected

	result = r.db.Where("timestamp < ?", before).Delete(&LifecycleEvent{})
	if result.Error != nil {
		return deleted, errors.Wrap(result.Error, "failed to prune lifecycle events")
	}

	return deleted + result.RowsAffected, nil
}
