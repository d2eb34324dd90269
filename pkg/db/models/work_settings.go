package models

import (
	"time"

	"github.com/lib/pq"
)

// WorkSettingsRowID is the primary key of the single work settings row.
const WorkSettingsRowID = 1

// WorkSettings is the global business calendar. Times are "HH:MM" in Timezone;
// WorkDays holds weekday indexes with Sunday = 0.
type WorkSettings struct {
	ID         int           `gorm:"column:id;primaryKey"`
	WorkStart  string        `gorm:"column:work_start;not null"`
	WorkEnd    string        `gorm:"column:work_end;not null"`
	WorkDays   pq.Int64Array `gorm:"column:work_days;type:integer[];not null"`
	BreakStart *string       `gorm:"column:break_start"`
	BreakEnd   *string       `gorm:"column:break_end"`
	Timezone   string        `gorm:"column:timezone;not null;default:'UTC'"`
	UpdatedAt  time.Time     `gorm:"column:updated_at;autoUpdateTime"`
}

func (WorkSettings) TableName() string { return "work_settings" }
