package alert

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError describes one rejected submission field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError is returned when a submission is missing required fields or
// carries malformed values. Nothing is persisted for such a submission.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Reason)
	}
	return "invalid alert: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, reason string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Reason: reason})
}

// Coordinate is a latitude or longitude as sent by a device. Devices send
// either JSON numbers or numeric strings.
type Coordinate struct {
	Value float64
	Set   bool
	Bad   bool
}

// UnmarshalJSON implements json.Unmarshaler. Malformed input is recorded on
// the Coordinate instead of failing the whole body so validation can report
// it per field.
func (c *Coordinate) UnmarshalJSON(b []byte) error {
	v, set, ok := parseNumber(b)
	*c = Coordinate{Value: v, Set: set, Bad: set && !ok}
	return nil
}

// Count is a whole-number field such as age or battery percentage. It
// accepts the same shapes as Coordinate as long as the value is integral,
// so 85, 85.0 and "85" all decode to 85.
type Count struct {
	Value int
	Set   bool
	Bad   bool
}

// UnmarshalJSON implements json.Unmarshaler. Like Coordinate it never fails
// the body.
func (c *Count) UnmarshalJSON(b []byte) error {
	v, set, ok := parseNumber(b)
	if ok && (v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32) {
		ok = false
	}
	*c = Count{Set: set, Bad: set && !ok}
	if set && ok {
		c.Value = int(v)
	}
	return nil
}

// Ptr returns nil when the field was absent or malformed.
func (c Count) Ptr() *int {
	if !c.Set || c.Bad {
		return nil
	}
	v := c.Value
	return &v
}

// parseNumber reads a JSON number or numeric string. set is false for null.
func parseNumber(b []byte) (v float64, set, ok bool) {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return 0, false, true
	}

	raw := string(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return 0, true, false
		}
		raw = strings.TrimSpace(s)
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, true, false
	}
	return v, true, true
}

// NestedLocation is the older device payload shape, location.{latitude,longitude}.
type NestedLocation struct {
	Latitude  Coordinate `json:"latitude"`
	Longitude Coordinate `json:"longitude"`
}

// Submission is the request body a field device posts to create an alert.
//
// Required: name, latitude, longitude (flat or nested under location).
// Everything else is optional.
type Submission struct {
	Name                string          `json:"name"`
	Age                 Count           `json:"age"`
	Phone               string          `json:"phone,omitempty"`
	BloodGroup          string          `json:"bloodGroup,omitempty"`
	PhoneBattery        Count           `json:"phoneBattery"`
	Latitude            Coordinate      `json:"latitude"`
	Longitude           Coordinate      `json:"longitude"`
	Location            *NestedLocation `json:"location,omitempty"`
	Message             string          `json:"message,omitempty"`
	CurrentMedicalIssue string          `json:"currentMedicalIssue,omitempty"`
	Priority            Priority        `json:"priority,omitempty"`
}

// rules holds the value checks that run once the lenient decoding has
// settled which fields are present and well formed.
type rules struct {
	Name         string   `json:"name" validate:"required"`
	Latitude     float64  `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude    float64  `json:"longitude" validate:"gte=-180,lte=180"`
	Age          *int     `json:"age" validate:"omitempty,gte=0"`
	PhoneBattery *int     `json:"phoneBattery" validate:"omitempty,gte=0,lte=100"`
	Priority     Priority `json:"priority" validate:"oneof=Low Medium High Critical"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	})
	return v
}

// report order, matching the request body
var fieldOrder = map[string]int{
	"body": 0, "name": 1, "latitude": 2, "longitude": 3, "age": 4, "phoneBattery": 5, "priority": 6,
}

var ruleReasons = map[string]string{
	"latitude":     "must be between -90 and 90",
	"longitude":    "must be between -180 and 180",
	"age":          "must not be negative",
	"phoneBattery": "must be between 0 and 100",
}

// Validate checks the submission and returns the Alert it describes with
// default triage fields. The returned error is always a *ValidationError.
func (s *Submission) Validate() (*Alert, error) {
	verr := &ValidationError{}

	lat := pickCoordinate(s.Latitude, s.Location, func(l *NestedLocation) Coordinate { return l.Latitude })
	lng := pickCoordinate(s.Longitude, s.Location, func(l *NestedLocation) Coordinate { return l.Longitude })
	checkPresent(verr, "latitude", lat.Set, lat.Bad, "must be numeric")
	checkPresent(verr, "longitude", lng.Set, lng.Bad, "must be numeric")
	if s.Age.Bad {
		verr.add("age", "must be a whole number")
	}
	if s.PhoneBattery.Bad {
		verr.add("phoneBattery", "must be a whole number")
	}

	r := rules{
		Name:         strings.TrimSpace(s.Name),
		Latitude:     lat.Value,
		Longitude:    lng.Value,
		Age:          s.Age.Ptr(),
		PhoneBattery: s.PhoneBattery.Ptr(),
		Priority:     s.Priority,
	}
	if r.Priority == "" {
		r.Priority = DefaultPriority
	}

	if err := validate.Struct(&r); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			verr.add("body", err.Error())
		}
		for _, fe := range fieldErrs {
			verr.add(fe.Field(), ruleReason(fe))
		}
	}

	if len(verr.Fields) > 0 {
		sort.SliceStable(verr.Fields, func(i, j int) bool {
			return fieldOrder[verr.Fields[i].Field] < fieldOrder[verr.Fields[j].Field]
		})
		return nil, verr
	}

	return &Alert{
		Name:                r.Name,
		Age:                 r.Age,
		Phone:               s.Phone,
		BloodGroup:          s.BloodGroup,
		PhoneBattery:        r.PhoneBattery,
		Latitude:            r.Latitude,
		Longitude:           r.Longitude,
		Message:             s.Message,
		CurrentMedicalIssue: s.CurrentMedicalIssue,
		Status:              StatusPending,
		Priority:            r.Priority,
	}, nil
}

func ruleReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "oneof":
		return fmt.Sprintf("unknown priority %q", fmt.Sprint(fe.Value()))
	}
	if reason, ok := ruleReasons[fe.Field()]; ok {
		return reason
	}
	return "failed " + fe.Tag()
}

// pickCoordinate prefers the flat field and falls back to the nested location.
func pickCoordinate(flat Coordinate, nested *NestedLocation, get func(*NestedLocation) Coordinate) Coordinate {
	if flat.Set || nested == nil {
		return flat
	}
	return get(nested)
}

func checkPresent(verr *ValidationError, field string, set, bad bool, badReason string) {
	switch {
	case !set:
		verr.add(field, "required")
	case bad:
		verr.add(field, badReason)
	}
}
