package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"coffeetea/internal/core"
	"coffeetea/internal/log"
	"coffeetea/internal/services"
)

// BeverageService is what the handlers need from the record owner.
type BeverageService interface {
	AddRecord(ctx context.Context, req services.AddRequest) (core.Record, error)
	DeleteRecord(ctx context.Context, id string) error
	RecordsForDay(ctx context.Context, day time.Time) ([]core.Record, error)
	Stats(ctx context.Context, p core.Period, ref time.Time) (services.StatsReport, error)
	Navigate(p core.Period, ref time.Time, dir core.Direction) (time.Time, error)
	MonthCalendar(ctx context.Context, month time.Time) ([]core.DaySummary, error)
	ConsumedToday(ctx context.Context) (consumed, threshold int, err error)
	Calendar() core.Calendar
	Now() time.Time
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			ServiceUnavailableError("backend not ready").Write(w)
			return
		}
	}
	NewJSONResponse().JSON(map[string]string{"status": "ready"}).Write(w)
}

func (s *Server) handleBeverages(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(beverageViews()).Write(w)
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cal := s.svc.Calendar()

	parser := NewRequestBodyParser(w, r)
	if err := parser.Parse(); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	typeID := parser.Get("type")
	if typeID == "" {
		UnprocessableEntityError("type is required").Write(w)
		return
	}
	bt, ok := core.LookupBeverageType(typeID)
	if !ok {
		UnprocessableEntityError("unknown beverage type " + typeID).Write(w)
		return
	}
	qty, err := core.ParseQuantity(parser.Get("quantity"))
	if err != nil {
		UnprocessableEntityError("quantity must be a whole number between 1 and 10").Write(w)
		return
	}
	ts, err := core.ParseTimestamp(parser.Get("timestamp"), cal.Location)
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}

	rec, err := s.svc.AddRecord(ctx, services.AddRequest{
		Type:      bt,
		Quantity:  qty,
		Timestamp: ts,
		Confirm:   parseBool(parser.Get("confirm")),
	})
	if err != nil {
		s.writeServiceError(w, r, err, log.OpCreate)
		return
	}

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/records/"+rec.ID).
		JSON(newRecordView(cal, rec)).
		Write(w)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	id := sanitizeInput(r.PathValue("id"))
	if err := s.svc.DeleteRecord(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err, log.OpDelete)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	cal := s.svc.Calendar()
	day, err := core.ParseDate(r.URL.Query().Get("date"), cal.Location, s.svc.Now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	recs, err := s.svc.RecordsForDay(r.Context(), day)
	if err != nil {
		s.writeServiceError(w, r, err, log.OpList)
		return
	}
	NewJSONResponse().JSON(newDayView(cal, day, recs)).Write(w)
}

func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	consumed, threshold, err := s.svc.ConsumedToday(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err, log.OpRead)
		return
	}
	NewJSONResponse().JSON(todayView{
		Date:      s.svc.Now().Format(time.DateOnly),
		Consumed:  consumed,
		Threshold: threshold,
		Warning:   threshold > 0 && consumed >= threshold,
	}).Write(w)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, err := core.ParsePeriodOrWeek(q.Get("period"))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	ref, err := core.ParseDate(q.Get("date"), s.svc.Calendar().Location, s.svc.Now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	report, err := s.svc.Stats(r.Context(), p, ref)
	if err != nil {
		s.writeServiceError(w, r, err, log.OpStats)
		return
	}
	NewJSONResponse().JSON(newStatsView(report)).Write(w)
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p, err := core.ParsePeriodOrWeek(q.Get("period"))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	ref, err := core.ParseDate(q.Get("date"), s.svc.Calendar().Location, s.svc.Now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	dir, err := core.ParseDirection(q.Get("direction"))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	next, err := s.svc.Navigate(p, ref, dir)
	if err != nil {
		s.writeServiceError(w, r, err, log.OpNavigate)
		return
	}
	NewJSONResponse().JSON(navigateView{Period: p, Date: next.Format(time.DateOnly)}).Write(w)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	cal := s.svc.Calendar()
	params, err := ParseMonthParams(r.URL.Query(), s.svc.Now())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	month := time.Date(params.Year, params.Month, 1, 0, 0, 0, 0, cal.Location)
	days, err := s.svc.MonthCalendar(r.Context(), month)
	if err != nil {
		s.writeServiceError(w, r, err, log.OpList)
		return
	}
	NewJSONResponse().JSON(newCalendarView(cal, month, days)).Write(w)
}

// writeServiceError maps service and domain errors to status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	var warning *services.WarningError
	switch {
	case errors.As(err, &warning):
		ConflictError(CodeDrinkWarning, warning.Error(), map[string]any{
			"consumed":  warning.Consumed,
			"threshold": warning.Threshold,
			"type":      warning.Type.String(),
		}).Write(w)
	case errors.Is(err, services.ErrFutureNavigation):
		ConflictError(CodeFutureNavigation, err.Error(), nil).Write(w)
	case errors.Is(err, core.ErrRecordNotFound):
		NotFoundError(err.Error()).Write(w)
	case errors.Is(err, core.ErrInvalidQuantity),
		errors.Is(err, core.ErrUnknownBeverage),
		errors.Is(err, core.ErrZeroTimestamp),
		errors.Is(err, core.ErrEmptyID):
		UnprocessableEntityError(err.Error()).Write(w)
	default:
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op, nil)
		InternalServerError("internal error").Write(w)
	}
}
