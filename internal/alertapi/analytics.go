package alertapi

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/linnemanlabs/lifelink/internal/alert"
)

func (a *API) handleLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := a.svc.Locations(r.Context())
	if err != nil {
		a.writeError(w, r, "Error fetching locations", err)
		return
	}
	if locs == nil {
		locs = []alert.Location{}
	}
	writeJSON(w, http.StatusOK, locs)
}

func (a *API) handleResponseTimes(w http.ResponseWriter, r *http.Request) {
	rt, err := a.svc.ResponseTimes(r.Context())
	if err != nil {
		a.writeError(w, r, "Error calculating response times", err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

func (a *API) handleSummary(w http.ResponseWriter, r *http.Request) {
	c, err := a.svc.Summary(r.Context())
	if err != nil {
		a.writeError(w, r, "Error fetching summary", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// csvHeader lists the raw alert columns in export order.
var csvHeader = []string{
	"id", "name", "age", "phone", "bloodGroup", "phoneBattery", "latitude", "longitude",
	"message", "status", "timestamp", "currentMedicalIssue", "priority", "notes", "solvedTimestamp",
}

func (a *API) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	alerts, err := a.svc.List(r.Context(), "")
	if err != nil {
		a.writeError(w, r, "Error exporting data", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="lifelink-report.csv"`)
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write(csvHeader)
	for i := range alerts {
		_ = cw.Write(csvRow(&alerts[i]))
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		// headers are already sent, all we can do is log
		a.logger.Error(r.Context(), err, "csv export write failed", "rows", len(alerts))
	}
}

func csvRow(al *alert.Alert) []string {
	return []string{
		strconv.FormatInt(al.ID, 10),
		al.Name,
		optInt(al.Age),
		al.Phone,
		al.BloodGroup,
		optInt(al.PhoneBattery),
		strconv.FormatFloat(al.Latitude, 'f', -1, 64),
		strconv.FormatFloat(al.Longitude, 'f', -1, 64),
		al.Message,
		string(al.Status),
		al.CreatedAt.UTC().Format(time.RFC3339),
		al.CurrentMedicalIssue,
		string(al.Priority),
		al.Notes,
		optTime(al.SolvedAt),
	}
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func optTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
