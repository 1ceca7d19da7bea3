package advisor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidInput wraps request validation failures.
var ErrInvalidInput = errors.New("invalid input")

var validate = validator.New(validator.WithRequiredStructEnabled())

// MLRequest asks for a model-based recommendation. Features are keyed by the
// training schema's column names; State and District, when both set, restrict
// the ranking to the district's crop history.
type MLRequest struct {
	ID       string             `json:"id,omitempty" validate:"omitempty,max=128"`
	Features map[string]float64 `json:"features" validate:"required,min=1,dive,keys,required,endkeys,gte=0"`
	Soil     string             `json:"soil,omitempty" validate:"omitempty,max=64"`
	State    string             `json:"state,omitempty" validate:"required_with=District,max=128"`
	District string             `json:"district,omitempty" validate:"required_with=State,max=128"`
	K        int                `json:"k,omitempty" validate:"gte=0,lte=100"`
}

// Filtered reports whether the request carries a region.
func (r MLRequest) Filtered() bool {
	return r.State != "" && r.District != ""
}

// Validate checks the request shape and that every measurement is
// non-negative. Schema agreement is checked later against the model.
func (r MLRequest) Validate() error {
	return Validate(r)
}

// Validate runs struct-tag validation on v and wraps failures in
// ErrInvalidInput with a readable field list.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "required_with":
		return fmt.Sprintf("%s is required with %s", field, strings.ToLower(fe.Param()))
	case "gte":
		return fmt.Sprintf("%s must be >= %s", fe.Namespace(), fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s must be <= %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", field, fe.Tag())
	}
}
