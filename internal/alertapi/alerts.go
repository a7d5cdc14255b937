package alertapi

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/lifelink/internal/alert"
)

type ingestResponse struct {
	Message    string `json:"message"`
	InsertedID int64  `json:"insertedId"`
}

func (a *API) handleIngestAlert(w http.ResponseWriter, r *http.Request) {
	var sub alert.Submission
	if err := decodeBody(r, &sub); err != nil {
		a.writeError(w, r, "Error receiving alert", err)
		return
	}

	id, err := a.svc.Ingest(r.Context(), &sub)
	if err != nil {
		a.writeError(w, r, "Error receiving alert", err)
		return
	}

	trace.SpanFromContext(r.Context()).SetAttributes(attribute.Int64("lifelink.alert.id", id))
	writeJSON(w, http.StatusCreated, ingestResponse{Message: "Alert received successfully!", InsertedID: id})
}

func (a *API) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	status := alert.Status(r.URL.Query().Get("status"))

	alerts, err := a.svc.List(r.Context(), status)
	if err != nil {
		a.writeError(w, r, "Error fetching alerts", err)
		return
	}
	if alerts == nil {
		alerts = []alert.Alert{}
	}

	trace.SpanFromContext(r.Context()).SetAttributes(attribute.Int("lifelink.alerts.count", len(alerts)))
	writeJSON(w, http.StatusOK, alerts)
}

func (a *API) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	id, err := alertID(r)
	if err != nil {
		a.writeError(w, r, "Error fetching alert", err)
		return
	}

	al, ok, err := a.svc.Get(r.Context(), id)
	if err != nil {
		a.writeError(w, r, "Error fetching alert", err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Message: "Error fetching alert", Error: "alert not found"})
		return
	}

	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("lifelink.alert.status", string(al.Status)))
	writeJSON(w, http.StatusOK, al)
}

type statusRequest struct {
	Status alert.Status `json:"status"`
}

func (a *API) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := alertID(r)
	if err != nil {
		a.writeError(w, r, "Error updating status", err)
		return
	}
	var req statusRequest
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, r, "Error updating status", err)
		return
	}

	ch, err := a.svc.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		a.writeError(w, r, "Error updating status", err)
		return
	}

	trace.SpanFromContext(r.Context()).SetAttributes(
		attribute.String("lifelink.alert.status", string(ch.Current)),
		attribute.Bool("lifelink.alert.solved_now", ch.SolvedNow),
	)
	writeJSON(w, http.StatusOK, messageBody{Message: "Status updated!"})
}

type priorityRequest struct {
	Priority alert.Priority `json:"priority"`
}

func (a *API) handleUpdatePriority(w http.ResponseWriter, r *http.Request) {
	id, err := alertID(r)
	if err != nil {
		a.writeError(w, r, "Error updating priority", err)
		return
	}
	var req priorityRequest
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, r, "Error updating priority", err)
		return
	}

	if err := a.svc.UpdatePriority(r.Context(), id, req.Priority); err != nil {
		a.writeError(w, r, "Error updating priority", err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Priority updated!"})
}

type notesRequest struct {
	Notes string `json:"notes"`
}

func (a *API) handleUpdateNotes(w http.ResponseWriter, r *http.Request) {
	id, err := alertID(r)
	if err != nil {
		a.writeError(w, r, "Error updating notes", err)
		return
	}
	var req notesRequest
	if err := decodeBody(r, &req); err != nil {
		a.writeError(w, r, "Error updating notes", err)
		return
	}

	if err := a.svc.UpdateNotes(r.Context(), id, req.Notes); err != nil {
		a.writeError(w, r, "Error updating notes", err)
		return
	}
	writeJSON(w, http.StatusOK, messageBody{Message: "Notes updated!"})
}
