package settings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/orderdesk/orderdesk-backend/internal/worktime"
	"github.com/orderdesk/orderdesk-backend/pkg/config"
	"github.com/orderdesk/orderdesk-backend/pkg/db"
	"github.com/orderdesk/orderdesk-backend/pkg/db/models"
	pkgerrors "github.com/orderdesk/orderdesk-backend/pkg/errors"
)

// Repository stores the single business calendar row.
type Repository struct {
	db       *gorm.DB
	defaults worktime.Settings
}

// NewRepository builds a settings repo that falls back to defaults while no
// row is stored.
func NewRepository(conn *gorm.DB, defaults worktime.Settings) *Repository {
	return &Repository{db: conn, defaults: defaults}
}

// Load returns the stored calendar, or the defaults when none is stored.
func (r *Repository) Load(ctx context.Context) (worktime.Settings, error) {
	var row models.WorkSettings
	err := r.db.WithContext(ctx).First(&row, "id = ?", models.WorkSettingsRowID).Error
	if db.IsNotFound(err) {
		return r.defaults, nil
	}
	if err != nil {
		return worktime.Settings{}, pkgerrors.WrapDependency(err, "load work settings")
	}
	s, err := FromModel(row)
	if err != nil {
		return worktime.Settings{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stored work settings are invalid")
	}
	return s, nil
}

// Save validates and upserts the calendar.
func (r *Repository) Save(ctx context.Context, s worktime.Settings) error {
	if err := s.Validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid work settings")
	}
	row := ToModel(s)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"work_start", "work_end", "work_days", "break_start", "break_end", "timezone", "updated_at"}),
		}).
		Create(&row).Error
	if err != nil {
		return pkgerrors.WrapDependency(err, "save work settings")
	}
	return nil
}

// ToModel converts a calendar into its stored row.
func ToModel(s worktime.Settings) models.WorkSettings {
	days := make(pq.Int64Array, 0, len(s.WorkDays))
	for _, d := range s.WorkDays {
		days = append(days, int64(d))
	}
	row := models.WorkSettings{
		ID:        models.WorkSettingsRowID,
		WorkStart: s.WorkStart.String(),
		WorkEnd:   s.WorkEnd.String(),
		WorkDays:  days,
		Timezone:  "UTC",
	}
	if s.Location != nil {
		row.Timezone = s.Location.String()
	}
	if s.HasBreak() {
		bs, be := s.BreakStart.String(), s.BreakEnd.String()
		row.BreakStart, row.BreakEnd = &bs, &be
	}
	return row
}

// FromModel parses a stored row into a validated calendar.
func FromModel(row models.WorkSettings) (worktime.Settings, error) {
	days := make([]int, 0, len(row.WorkDays))
	for _, d := range row.WorkDays {
		days = append(days, int(d))
	}
	return build(row.WorkStart, row.WorkEnd, deref(row.BreakStart), deref(row.BreakEnd), row.Timezone, days)
}

// Input is the external representation of the calendar.
type Input struct {
	WorkStart  string `json:"workStart" validate:"required,datetime=15:04"`
	WorkEnd    string `json:"workEnd" validate:"required,datetime=15:04"`
	WorkDays   []int  `json:"workDays" validate:"dive,min=0,max=6"`
	BreakStart string `json:"breakStart,omitempty" validate:"omitempty,datetime=15:04"`
	BreakEnd   string `json:"breakEnd,omitempty" validate:"omitempty,datetime=15:04"`
	Timezone   string `json:"timezone" validate:"max=64"`
}

// Settings parses and validates the input.
func (in Input) Settings() (worktime.Settings, error) {
	s, err := build(in.WorkStart, in.WorkEnd, in.BreakStart, in.BreakEnd, in.Timezone, in.WorkDays)
	if err != nil {
		return worktime.Settings{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	return s, nil
}

// ToInput renders a calendar for API responses.
func ToInput(s worktime.Settings) Input {
	row := ToModel(s)
	days := make([]int, 0, len(row.WorkDays))
	for _, d := range row.WorkDays {
		days = append(days, int(d))
	}
	return Input{
		WorkStart:  row.WorkStart,
		WorkEnd:    row.WorkEnd,
		WorkDays:   days,
		BreakStart: deref(row.BreakStart),
		BreakEnd:   deref(row.BreakEnd),
		Timezone:   row.Timezone,
	}
}

// DefaultsFromConfig builds the fallback calendar from the environment.
func DefaultsFromConfig(cfg config.WorkHoursConfig) (worktime.Settings, error) {
	return build(cfg.Start, cfg.End, cfg.BreakStart, cfg.BreakEnd, cfg.Timezone, cfg.Days)
}

func build(start, end, breakStart, breakEnd, timezone string, days []int) (worktime.Settings, error) {
	var s worktime.Settings
	var err error
	if s.WorkStart, err = worktime.ParseClock(start); err != nil {
		return worktime.Settings{}, fmt.Errorf("work start: %w", err)
	}
	if s.WorkEnd, err = worktime.ParseClock(end); err != nil {
		return worktime.Settings{}, fmt.Errorf("work end: %w", err)
	}
	if strings.TrimSpace(breakStart) != "" || strings.TrimSpace(breakEnd) != "" {
		bs, err := worktime.ParseClock(breakStart)
		if err != nil {
			return worktime.Settings{}, fmt.Errorf("break start: %w", err)
		}
		be, err := worktime.ParseClock(breakEnd)
		if err != nil {
			return worktime.Settings{}, fmt.Errorf("break end: %w", err)
		}
		s.BreakStart, s.BreakEnd = &bs, &be
	}
	for _, d := range days {
		s.WorkDays = append(s.WorkDays, time.Weekday(d))
	}
	tz := strings.TrimSpace(timezone)
	if tz == "" {
		tz = "UTC"
	}
	if s.Location, err = time.LoadLocation(tz); err != nil {
		return worktime.Settings{}, fmt.Errorf("timezone: %w", err)
	}
	if err := s.Validate(); err != nil {
		return worktime.Settings{}, err
	}
	return s, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
