package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/orderdesk/orderdesk-backend/api/responses"
	"github.com/orderdesk/orderdesk-backend/api/validators"
	"github.com/orderdesk/orderdesk-backend/internal/settings"
	"github.com/orderdesk/orderdesk-backend/internal/worktime"
	pkgerrors "github.com/orderdesk/orderdesk-backend/pkg/errors"
	"github.com/orderdesk/orderdesk-backend/pkg/logger"
)

const maxRecallMinutes = 60 * 24 * 365

// SettingsStore loads and saves the business calendar.
type SettingsStore interface {
	Load(ctx context.Context) (worktime.Settings, error)
	Save(ctx context.Context, s worktime.Settings) error
}

type netMinutesResponse struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	NetMinutes int       `json:"netMinutes"`
}

type recallResponse struct {
	From     time.Time `json:"from"`
	Minutes  int       `json:"minutes"`
	RecallAt time.Time `json:"recallAt"`
}

// WorktimeNet returns the working minutes between start and end.
func WorktimeNet(store SettingsStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, err := validators.ParseQueryTime(r, "start")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		end, err := validators.ParseQueryTime(r, "end")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cal, err := store.Load(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, netMinutesResponse{
			Start:      start,
			End:        end,
			NetMinutes: worktime.NetMinutes(start, end, cal),
		})
	}
}

// WorktimeRecall returns the instant reached after minutes of working time.
func WorktimeRecall(store SettingsStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, err := validators.ParseQueryTime(r, "from")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		minutes, err := validators.ParseQueryInt(r, "minutes", 0, 0, maxRecallMinutes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cal, err := store.Load(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		at := worktime.AddWorkingMinutes(from, minutes, cal)
		if at.IsZero() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeConflict, "work settings have no working time"))
			return
		}
		responses.WriteSuccess(w, recallResponse{From: from, Minutes: minutes, RecallAt: at})
	}
}

// GetWorkSettings returns the active calendar.
func GetWorkSettings(store SettingsStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cal, err := store.Load(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, settings.ToInput(cal))
	}
}

// PutWorkSettings replaces the calendar.
func PutWorkSettings(store SettingsStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req settings.Input
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cal, err := req.Settings()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := store.Save(r.Context(), cal); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		logg.Info(logg.WithField(r.Context(), "timezone", req.Timezone), "work settings updated")
		responses.WriteSuccess(w, settings.ToInput(cal))
	}
}
