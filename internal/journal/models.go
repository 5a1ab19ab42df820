package journal

import (
	"fmt"
	"time"
)

// Event kinds
const (
	KindTransition = "transition"
	KindOutcome    = "outcome"
)

// LinkEvent is one journal row: a link state transition or a notable cycle outcome
type LinkEvent struct {
	ID      uint      `gorm:"primarykey" json:"id"`
	Run     string    `gorm:"size:36;index" json:"run"`
	At      time.Time `gorm:"index;not null" json:"at"`
	Kind    string    `gorm:"size:16;index;not null" json:"kind"`
	From    string    `gorm:"column:from_state;size:16" json:"from,omitempty"`
	To      string    `gorm:"column:to_state;size:16" json:"to,omitempty"`
	Outcome string    `gorm:"size:24" json:"outcome,omitempty"`
}

// TableName specifies the table name for GORM
func (LinkEvent) TableName() string {
	return "link_events"
}

// String returns a formatted string representation
func (e LinkEvent) String() string {
	at := e.At.Format("15:04:05.000")
	if e.Kind == KindTransition {
		return fmt.Sprintf("%s %s -> %s", at, e.From, e.To)
	}
	return fmt.Sprintf("%s %s", at, e.Outcome)
}

// IsValid checks the fields required for its kind
func (e LinkEvent) IsValid() bool {
	switch e.Kind {
	case KindTransition:
		return e.From != "" && e.To != ""
	case KindOutcome:
		return e.Outcome != ""
	default:
		return false
	}
}
