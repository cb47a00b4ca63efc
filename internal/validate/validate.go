// Package validate is the shared declarative validator for add/edit
// payloads. Rules live as struct tags on the domain types; every screen
// operation goes through the same checks and gets back a structured
// list of per-field errors instead of one message at a time.
package validate

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"medistock/m/domain"
)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	// "medicinetype" restricts the medicine type field to the known set.
	_ = val.RegisterValidation("medicinetype", func(fl validator.FieldLevel) bool {
		return lo.Contains(domain.MedicineTypes, fl.Field().String())
	})
	return val
}

// FieldError describes one failed rule on one field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Struct validates s against its tags. A nil return means valid.
func Struct(s any) []FieldError {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: strings.ToLower(fe.Field()), Message: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "numeric":
		return "must be a number"
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "medicinetype":
		return "must be one of " + strings.Join(domain.MedicineTypes, ", ")
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	default:
		return "is invalid"
	}
}
