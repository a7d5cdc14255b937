package alertapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"github.com/linnemanlabs/lifelink/internal/alert"
	"github.com/linnemanlabs/lifelink/internal/triage"
)

// AlertService defines the business operations alertapi needs.
type AlertService interface {
	Ingest(ctx context.Context, sub *alert.Submission) (int64, error)
	List(ctx context.Context, status alert.Status) ([]alert.Alert, error)
	Get(ctx context.Context, id int64) (*alert.Alert, bool, error)
	UpdateStatus(ctx context.Context, id int64, status alert.Status) (*triage.StatusChange, error)
	UpdatePriority(ctx context.Context, id int64, priority alert.Priority) error
	UpdateNotes(ctx context.Context, id int64, notes string) error
	Summary(ctx context.Context) (triage.Counts, error)
	Locations(ctx context.Context) ([]alert.Location, error)
	ResponseTimes(ctx context.Context) (triage.ResponseTimes, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    AlertService
}

// New creates a new API handler.
func New(logger log.Logger, svc AlertService) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("alert service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/alert", a.handleIngestAlert)
		r.Get("/alerts", a.handleListAlerts)
		r.Get("/alert/{id}", a.handleGetAlert)
		r.Put("/alert/{id}", a.handleUpdateStatus)
		r.Put("/alert/priority/{id}", a.handleUpdatePriority)
		r.Put("/alert/notes/{id}", a.handleUpdateNotes)

		r.Get("/analytics/locations", a.handleLocations)
		r.Get("/analytics/responsetimes", a.handleResponseTimes)
		r.Get("/analytics/summary", a.handleSummary)

		r.Get("/export/csv", a.handleExportCSV)
	})
}

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// nothing to do with errors here
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps service errors to status codes. Persistence failures are
// logged and their detail is not echoed to the client.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, message string, err error) {
	var verr *alert.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorBody{Message: message, Error: verr.Error()})
	case errors.Is(err, triage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Message: message, Error: err.Error()})
	default:
		a.logger.Error(r.Context(), err, message, "path", r.URL.Path)
		trace.SpanFromContext(r.Context()).RecordError(err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Message: message, Error: "internal error"})
	}
}

// alertID parses the {id} route parameter. A non-numeric id cannot name an
// alert, so it is reported as not found.
func alertID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, triage.ErrNotFound
	}
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.Int64("lifelink.alert.id", id))
	return id, nil
}

// decodeBody decodes a JSON request body into v. A malformed body is a
// validation failure on the whole payload.
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &alert.ValidationError{Fields: []alert.FieldError{{Field: "body", Reason: "invalid JSON payload"}}}
	}
	return nil
}
