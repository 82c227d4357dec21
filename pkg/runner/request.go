package runner

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/aretw0/langrun/pkg/domain"
	"github.com/go-playground/validator/v10"
)

// ErrInvalidRequest is returned when a Request fails validation.
var ErrInvalidRequest = errors.New("invalid run request")

// Request is a run as submitted by a remote caller (HTTP, MCP, queue).
// Exactly one of Flow (a name known to the loader) and FlowJSON (an inline
// document) must be set.
type Request struct {
	Flow              string          `json:"flow,omitempty" validate:"omitempty,max=255"`
	FlowJSON          json.RawMessage `json:"flow_json,omitempty"`
	InputValue        string          `json:"input_value"`
	InputType         string          `json:"input_type,omitempty" validate:"omitempty,oneof=chat text any"`
	OutputType        string          `json:"output_type,omitempty" validate:"omitempty,oneof=chat text any debug"`
	OutputComponent   string          `json:"output_component,omitempty" validate:"omitempty,max=255"`
	SessionID         string          `json:"session_id,omitempty" validate:"omitempty,max=128,excludesall=/\\"`
	FallbackToEnvVars bool            `json:"fallback_to_env_vars,omitempty"`
	Tweaks            domain.Tweaks   `json:"tweaks,omitempty"`
	Presets           []string        `json:"presets,omitempty" validate:"omitempty,dive,required,max=255"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks the request shape.
func (r Request) Validate() error {
	hasName := strings.TrimSpace(r.Flow) != ""
	hasDoc := len(r.FlowJSON) > 0
	switch {
	case !hasName && !hasDoc:
		return fmt.Errorf("%w: one of flow or flow_json is required", ErrInvalidRequest)
	case hasName && hasDoc:
		return fmt.Errorf("%w: flow and flow_json are mutually exclusive", ErrInvalidRequest)
	}

	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describe(fe))
			}
			return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	case "excludesall":
		return fmt.Sprintf("%s contains forbidden characters", fe.Field())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}
