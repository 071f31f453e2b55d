package validation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"funnelgrid/internal/ingest"
)

var v *validator.Validate

// Validator returns a singleton validator with custom rules registered.
func Validator() *validator.Validate {
	if v == nil {
		v = validator.New()
		// Custom: report path must carry a supported workbook extension
		_ = v.RegisterValidation("report_ext", func(fl validator.FieldLevel) bool {
			s := strings.ToLower(strings.TrimSpace(fl.Field().String()))
			if s == "" {
				return false
			}
			return strings.HasSuffix(s, ".xlsx") || strings.HasSuffix(s, ".xlsm")
		})
		// Custom: date filter bounds must normalize to a calendar date
		_ = v.RegisterValidation("mdy_date", func(fl validator.FieldLevel) bool {
			s := strings.TrimSpace(fl.Field().String())
			if s == "" {
				return true // empty is allowed; use omitempty with this tag
			}
			_, ok := ingest.NormalizeDate(s)
			return ok
		})
	}
	return v
}

// ValidateStruct validates a struct and returns a user-friendly error string
// suitable for tool errors. Returns empty string when valid.
func ValidateStruct(s any) string {
	if err := Validator().Struct(s); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok && len(ve) > 0 {
			fe := ve[0]
			field := strings.ToLower(fe.Field())
			switch fe.Tag() {
			case "required":
				return fmt.Sprintf("VALIDATION: %s is required", field)
			case "report_ext":
				return fmt.Sprintf("VALIDATION: %s must be a workbook file (.xlsx, .xlsm)", field)
			case "mdy_date":
				return fmt.Sprintf("VALIDATION: %s must be a date such as 1/31/2024 or 2024-01-31", field)
			case "min", "max", "gte", "lte":
				return fmt.Sprintf("VALIDATION: %s must satisfy %s=%s", field, fe.Tag(), fe.Param())
			}
			return fmt.Sprintf("VALIDATION: invalid %s", field)
		}
		return "VALIDATION: invalid inputs"
	}
	return ""
}
