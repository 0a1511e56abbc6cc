// Package validate checks request bodies of the persistence API.
package validate

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xeipuuv/gojsonschema"

	"pandemus/internal/model"
)

const (
	rootContext   = "(root)"
	minNameLength = 3
	maxNameLength = 255
)

const simulationSchema = `{
  "type": "object",
  "required": ["days", "infected", "dead", "recovered"],
  "properties": {
    "name": { "type": "string" },
    "createdAt": { "type": "string", "pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$" },
    "days": { "type": "integer", "minimum": 1 },
    "infected": { "type": "array", "minItems": 1, "items": { "type": "number" } },
    "dead": { "type": "array", "minItems": 1, "items": { "type": "number" } },
    "recovered": { "type": "array", "minItems": 1, "items": { "type": "number" } }
  }
}`

var fieldMessages = map[string]string{
	"name":      fmt.Sprintf("Name must have between %d and %d characters", minNameLength, maxNameLength),
	"createdAt": "Date format must be YYYY-MM-DD",
	"days":      "Days must be an int >= 1",
	"infected":  `The field "infected" must be an array with at least one element.`,
	"dead":      `The field "dead" must be an array with at least one element.`,
	"recovered": `The field "recovered" must be an array with at least one element.`,
}

// SimulationValidator validates create requests against the record schema and
// the cross-field rules the schema cannot express.
type SimulationValidator struct {
	schema *gojsonschema.Schema
}

// NewSimulationValidator compiles the record schema.
func NewSimulationValidator() (*SimulationValidator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(simulationSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	return &SimulationValidator{schema: schema}, nil
}

// Validate checks body and returns the unsaved record it describes, with the
// name trimmed and createdAt parsed. A non-empty error list means the body was
// rejected; err is reserved for undecodable input.
func (v *SimulationValidator) Validate(body []byte) (*model.Simulation, []model.FieldError, error) {
	if !json.Valid(body) {
		return nil, nil, fmt.Errorf("invalid JSON in request body")
	}

	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to validate body: %w", err)
	}

	var errs []model.FieldError
	reported := make(map[string]bool)
	for _, re := range result.Errors() {
		path := fieldPath(re)
		if reported[path] {
			continue
		}
		reported[path] = true
		errs = append(errs, fieldError(path, re.Description()))
	}
	if len(errs) > 0 {
		return nil, errs, nil
	}

	var req model.CreateSimulationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, nil, fmt.Errorf("failed to decode body: %w", err)
	}

	sim := &model.Simulation{
		Days:      req.Days,
		Infected:  req.Infected,
		Dead:      req.Dead,
		Recovered: req.Recovered,
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if n := utf8.RuneCountInString(name); n < minNameLength || n > maxNameLength {
			errs = append(errs, fieldError("name", ""))
		}
		sim.Name = &name
	}
	if req.CreatedAt != nil {
		createdAt, err := time.Parse(time.DateOnly, *req.CreatedAt)
		if err != nil {
			errs = append(errs, fieldError("createdAt", ""))
		}
		sim.CreatedAt = createdAt
	}
	for _, series := range []struct {
		path   string
		values []float64
	}{
		{"infected", req.Infected},
		{"dead", req.Dead},
		{"recovered", req.Recovered},
	} {
		if len(series.values) != req.Days {
			errs = append(errs, model.FieldError{
				Type:     "field",
				Msg:      "Array length must match days",
				Path:     series.path,
				Location: "body",
			})
		}
	}
	if len(errs) > 0 {
		return nil, errs, nil
	}
	return sim, nil, nil
}

// fieldPath maps a schema error onto the request field it concerns.
func fieldPath(re gojsonschema.ResultError) string {
	field := re.Field()
	if field == rootContext || field == "" {
		if prop, ok := re.Details()["property"].(string); ok {
			return prop
		}
		return "body"
	}
	return strings.TrimPrefix(field, rootContext+".")
}

func fieldError(path, fallback string) model.FieldError {
	msg, ok := fieldMessages[path]
	if !ok {
		msg = itemMessage(path, fallback)
	}
	return model.FieldError{
		Type:     "field",
		Msg:      msg,
		Path:     path,
		Location: "body",
	}
}

// itemMessage builds the message for an element such as "infected.3".
func itemMessage(path, fallback string) string {
	parts := strings.SplitN(path, ".", 2)
	if len(parts) == 2 {
		if _, err := strconv.Atoi(parts[1]); err == nil {
			return fmt.Sprintf("All elements of the array %q must be floats", parts[0])
		}
	}
	return fallback
}

// ParseID validates a path id and returns it as an integer.
func ParseID(raw string) (int64, []model.FieldError) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if raw == "" || err != nil {
		return 0, []model.FieldError{{
			Type:     "field",
			Msg:      "id must be a non-empty integer",
			Path:     "id",
			Location: "params",
		}}
	}
	return id, nil
}
