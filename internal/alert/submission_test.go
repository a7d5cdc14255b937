package alert

import (
	"encoding/json"
	"errors"
	"testing"
)

func decodeSubmission(t *testing.T, body string) *Submission {
	t.Helper()
	var s Submission
	if err := json.Unmarshal([]byte(body), &s); err != nil {
		t.Fatalf("unmarshal %s: %v", body, err)
	}
	return &s
}

func fieldNames(err error) []string {
	var verr *ValidationError
	if !errors.As(err, &verr) {
		return nil
	}
	names := make([]string, 0, len(verr.Fields))
	for _, f := range verr.Fields {
		names = append(names, f.Field)
	}
	return names
}

func TestValidate_FlatCoordinates(t *testing.T) {
	t.Parallel()

	s := decodeSubmission(t, `{"name":"X","latitude":10,"longitude":20,"age":31,"phoneBattery":42,"bloodGroup":"O+"}`)
	a, err := s.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if a.Name != "X" {
		t.Errorf("Name = %q, want %q", a.Name, "X")
	}
	if a.Latitude != 10 || a.Longitude != 20 {
		t.Errorf("coords = (%v, %v), want (10, 20)", a.Latitude, a.Longitude)
	}
	if a.Status != StatusPending {
		t.Errorf("Status = %q, want %q", a.Status, StatusPending)
	}
	if a.Priority != PriorityMedium {
		t.Errorf("Priority = %q, want %q", a.Priority, PriorityMedium)
	}
	if a.SolvedAt != nil {
		t.Errorf("SolvedAt = %v, want nil", a.SolvedAt)
	}
	if a.Age == nil || *a.Age != 31 {
		t.Errorf("Age = %v, want 31", a.Age)
	}
}

func TestValidate_NestedLocation(t *testing.T) {
	t.Parallel()

	s := decodeSubmission(t, `{"name":"Y","location":{"latitude":-33.9,"longitude":18.4}}`)
	a, err := s.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if a.Latitude != -33.9 || a.Longitude != 18.4 {
		t.Errorf("coords = (%v, %v), want (-33.9, 18.4)", a.Latitude, a.Longitude)
	}
}

func TestValidate_FlatWinsOverNested(t *testing.T) {
	t.Parallel()

	s := decodeSubmission(t, `{"name":"Z","latitude":1,"longitude":2,"location":{"latitude":50,"longitude":60}}`)
	a, err := s.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if a.Latitude != 1 || a.Longitude != 2 {
		t.Errorf("coords = (%v, %v), want (1, 2)", a.Latitude, a.Longitude)
	}
}

func TestValidate_NumericStringCoordinates(t *testing.T) {
	t.Parallel()

	s := decodeSubmission(t, `{"name":"S","latitude":"12.5","longitude":" 77.25 "}`)
	a, err := s.Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if a.Latitude != 12.5 || a.Longitude != 77.25 {
		t.Errorf("coords = (%v, %v), want (12.5, 77.25)", a.Latitude, a.Longitude)
	}
}

func TestValidate_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		wantFields []string
	}{
		{"missing everything", `{}`, []string{"name", "latitude", "longitude"}},
		{"missing latitude", `{"name":"X","longitude":20}`, []string{"latitude"}},
		{"null longitude", `{"name":"X","latitude":1,"longitude":null}`, []string{"longitude"}},
		{"blank name", `{"name":"   ","latitude":1,"longitude":2}`, []string{"name"}},
		{"non-numeric latitude", `{"name":"X","latitude":"north","longitude":2}`, []string{"latitude"}},
		{"boolean longitude", `{"name":"X","latitude":1,"longitude":true}`, []string{"longitude"}},
		{"latitude out of range", `{"name":"X","latitude":91,"longitude":2}`, []string{"latitude"}},
		{"longitude out of range", `{"name":"X","latitude":1,"longitude":-180.5}`, []string{"longitude"}},
		{"battery over 100", `{"name":"X","latitude":1,"longitude":2,"phoneBattery":101}`, []string{"phoneBattery"}},
		{"negative age", `{"name":"X","latitude":1,"longitude":2,"age":-1}`, []string{"age"}},
		{"unknown priority", `{"name":"X","latitude":1,"longitude":2,"priority":"Urgent"}`, []string{"priority"}},
		{"nested missing longitude", `{"name":"X","location":{"latitude":1}}`, []string{"longitude"}},
		{"fractional battery", `{"name":"X","latitude":1,"longitude":2,"phoneBattery":85.5}`, []string{"phoneBattery"}},
		{"word battery", `{"name":"X","latitude":1,"longitude":2,"phoneBattery":"full"}`, []string{"phoneBattery"}},
		{"object age", `{"name":"X","latitude":1,"longitude":2,"age":{"years":3}}`, []string{"age"}},
		{"string battery over 100", `{"name":"X","latitude":1,"longitude":2,"phoneBattery":"150"}`, []string{"phoneBattery"}},
		{"bad age and battery", `{"name":"X","latitude":1,"longitude":2,"age":"old","phoneBattery":true}`, []string{"age", "phoneBattery"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			a, err := decodeSubmission(t, tt.body).Validate()
			if err == nil {
				t.Fatalf("Validate() = %+v, want error", a)
			}
			got := fieldNames(err)
			if len(got) != len(tt.wantFields) {
				t.Fatalf("fields = %v, want %v", got, tt.wantFields)
			}
			for i := range got {
				if got[i] != tt.wantFields[i] {
					t.Errorf("fields[%d] = %q, want %q", i, got[i], tt.wantFields[i])
				}
			}
		})
	}
}

func TestValidate_LenientCounts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		body        string
		wantAge     *int
		wantBattery *int
	}{
		{"integers", `{"age":34,"phoneBattery":85}`, intPtr(34), intPtr(85)},
		{"integral floats", `{"age":34.0,"phoneBattery":85.0}`, intPtr(34), intPtr(85)},
		{"numeric strings", `{"age":"34","phoneBattery":" 85 "}`, intPtr(34), intPtr(85)},
		{"nulls", `{"age":null,"phoneBattery":null}`, nil, nil},
		{"absent", `{}`, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := decodeSubmission(t, tt.body)
			s.Name = "X"
			s.Latitude = Coordinate{Value: 1, Set: true}
			s.Longitude = Coordinate{Value: 2, Set: true}

			a, err := s.Validate()
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if !sameInt(a.Age, tt.wantAge) {
				t.Errorf("Age = %v, want %v", a.Age, tt.wantAge)
			}
			if !sameInt(a.PhoneBattery, tt.wantBattery) {
				t.Errorf("PhoneBattery = %v, want %v", a.PhoneBattery, tt.wantBattery)
			}
		})
	}
}

func intPtr(v int) *int { return &v }

func sameInt(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func TestValidate_Reasons(t *testing.T) {
	t.Parallel()

	tests := []struct {
		body string
		want string
	}{
		{`{"name":"X","latitude":-91,"longitude":2}`, "latitude: must be between -90 and 90"},
		{`{"name":"X","latitude":1,"longitude":181}`, "longitude: must be between -180 and 180"},
		{`{"name":"X","latitude":1,"longitude":2,"age":-3}`, "age: must not be negative"},
		{`{"name":"X","latitude":1,"longitude":2,"phoneBattery":"101"}`, "phoneBattery: must be between 0 and 100"},
		{`{"name":"X","latitude":1,"longitude":2,"phoneBattery":12.5}`, "phoneBattery: must be a whole number"},
		{`{"name":"X","latitude":1,"longitude":2,"priority":"Urgent"}`, `priority: unknown priority "Urgent"`},
		{`{"name":"X","latitude":"north","longitude":2}`, "latitude: must be numeric"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			_, err := decodeSubmission(t, tt.body).Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if got := err.Error(); got != "invalid alert: "+tt.want {
				t.Errorf("error = %q, want %q", got, "invalid alert: "+tt.want)
			}
		})
	}
}

func TestValidate_ExplicitPriority(t *testing.T) {
	t.Parallel()

	a, err := decodeSubmission(t, `{"name":"X","latitude":1,"longitude":2,"priority":"Critical"}`).Validate()
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if a.Priority != PriorityCritical {
		t.Errorf("Priority = %q, want %q", a.Priority, PriorityCritical)
	}
}

func TestValidationError_Message(t *testing.T) {
	t.Parallel()

	_, err := decodeSubmission(t, `{"latitude":1,"longitude":2}`).Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if got, want := err.Error(), "invalid alert: name: required"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestAlert_JSONShape(t *testing.T) {
	t.Parallel()

	a := Alert{ID: 7, Name: "X", Latitude: 10, Longitude: 20, Status: StatusPending, Priority: PriorityMedium}
	b, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m["_id"] != float64(7) {
		t.Errorf("_id = %v, want 7", m["_id"])
	}
	if m["solvedTimestamp"] != nil {
		t.Errorf("solvedTimestamp = %v, want null", m["solvedTimestamp"])
	}
	loc, ok := m["location"].(map[string]any)
	if !ok {
		t.Fatalf("location = %v, want object", m["location"])
	}
	if loc["latitude"] != float64(10) || loc["longitude"] != float64(20) {
		t.Errorf("location = %v, want {10 20}", loc)
	}

	var back Alert
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal Alert: %v", err)
	}
	if back.ID != 7 || back.Status != StatusPending || back.Latitude != 10 {
		t.Errorf("decoded = %+v", back)
	}
}

func TestStatusAndPriority_Valid(t *testing.T) {
	t.Parallel()

	for _, s := range []Status{StatusPending, StatusProcessing, StatusSolved} {
		if !s.Valid() {
			t.Errorf("%q.Valid() = false", s)
		}
	}
	if Status("Closed").Valid() {
		t.Error(`"Closed".Valid() = true`)
	}
	if Priority("").Valid() {
		t.Error(`"".Valid() = true`)
	}
}
