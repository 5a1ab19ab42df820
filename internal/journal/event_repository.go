package journal

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// EventRepository provides database operations for link events
type EventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new repository instance
func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Insert stores a single event
func (r *EventRepository) Insert(event *LinkEvent) error {
	if event == nil {
		return fmt.Errorf("event cannot be nil")
	}
	if !event.IsValid() {
		return fmt.Errorf("event is not valid: kind=%q", event.Kind)
	}
	return r.db.Create(event).Error
}

// InsertBatch stores events in one transaction, skipping invalid ones
func (r *EventRepository) InsertBatch(events []LinkEvent) error {
	valid := make([]LinkEvent, 0, len(events))
	for _, e := range events {
		if e.IsValid() {
			valid = append(valid, e)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(&valid, 100).Error; err != nil {
			return fmt.Errorf("failed to insert %d events: %w", len(valid), err)
		}
		return nil
	})
}

// Recent returns up to limit events, newest first
func (r *EventRepository) Recent(limit int) ([]LinkEvent, error) {
	var events []LinkEvent
	err := r.db.Order("id desc").Limit(limit).Find(&events).Error
	return events, err
}

// Transitions returns every transition since the given time, oldest first
func (r *EventRepository) Transitions(since time.Time) ([]LinkEvent, error) {
	var events []LinkEvent
	err := r.db.Where("kind = ? AND at >= ?", KindTransition, since).Order("id").Find(&events).Error
	return events, err
}

// OutcomeCounts counts outcome events by outcome
func (r *EventRepository) OutcomeCounts() (map[string]int64, error) {
	var rows []struct {
		Outcome string
		Count   int64
	}
	err := r.db.Model(&LinkEvent{}).
		Select("outcome, count(*) as count").
		Where("kind = ?", KindOutcome).
		Group("outcome").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Outcome] = row.Count
	}
	return counts, nil
}

// ForRun returns the events of one run, oldest first
func (r *EventRepository) ForRun(run string) ([]LinkEvent, error) {
	var events []LinkEvent
	err := r.db.Where("run = ?", run).Order("id").Find(&events).Error
	return events, err
}

// Count returns the total number of events
func (r *EventRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&LinkEvent{}).Count(&count).Error
	return count, err
}

// Prune deletes events older than before and returns how many were removed
func (r *EventRepository) Prune(before time.Time) (int64, error) {
	result := r.db.Where("at < ?", before).Delete(&LinkEvent{})
	return result.RowsAffected, result.Error
}
