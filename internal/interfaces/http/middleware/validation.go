package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"

	"github.com/ledgerly/invoicing/internal/interfaces/http/dto"
)

var registerOnce sync.Once

// SetupValidator teaches gin's validator to report JSON field names and
// the iso_country and currency_code tags. Repeated calls are no-ops.
func SetupValidator() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(wireName)
		_ = v.RegisterValidation("iso_country", func(fl validator.FieldLevel) bool {
			return countryCode(fl.Field().String())
		})
		_ = v.RegisterValidation("currency_code", func(fl validator.FieldLevel) bool {
			return currencyCode(fl.Field().String())
		})
	})
}

// wireName is the json name of a field, else its form name.
func wireName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
		switch name {
		case "-":
			return ""
		case "":
			continue
		default:
			return name
		}
	}
	return ""
}

// countryCode accepts ISO 3166-1 alpha-2 codes and the Greek VIES prefix EL.
func countryCode(s string) bool {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "EL" {
		return true
	}
	if len(s) != 2 {
		return false
	}
	region, err := language.ParseRegion(s)
	return err == nil && region.IsCountry()
}

func currencyCode(s string) bool {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 3 {
		return false
	}
	_, err := currency.ParseISO(s)
	return err == nil
}

// HandleValidationError answers a failed bind: 422 with per-field details
// for rule violations, 400 for a body that could not be decoded.
func HandleValidationError(c *gin.Context, err error) {
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		c.AbortWithStatusJSON(http.StatusBadRequest,
			dto.NewErrorResponse(dto.ErrCodeBadRequest, "Malformed request: "+err.Error(), GetRequestID(c)))
		return
	}
	details := make([]dto.ValidationDetail, 0, len(fields))
	for _, fe := range fields {
		details = append(details, dto.ValidationDetail{Field: fe.Field(), Message: explain(fe)})
	}
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity,
		dto.NewValidationErrorResponse("Request validation failed", GetRequestID(c), details))
}

// ruleMessages hold one %s for the rule parameter where the rule takes one.
var ruleMessages = map[string]string{
	"required":      "This field is required",
	"email":         "Invalid email format",
	"uuid":          "Invalid UUID format",
	"len":           "Must be exactly %s characters",
	"oneof":         "Must be one of: %s",
	"datetime":      "Must be a date in the form %s",
	"gte":           "Must be greater than or equal to %s",
	"lte":           "Must be less than or equal to %s",
	"iso_country":   "Must be a two-letter ISO 3166 country code",
	"currency_code": "Must be a three-letter ISO 4217 currency code",
}

func explain(fe validator.FieldError) string {
	switch tag := fe.Tag(); tag {
	case "min", "max":
		bound := map[string]string{"min": "at least", "max": "at most"}[tag]
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Must be %s %s characters", bound, fe.Param())
		}
		return fmt.Sprintf("Must be %s %s", bound, fe.Param())
	default:
		msg, ok := ruleMessages[tag]
		if !ok {
			return "Invalid value"
		}
		if strings.Contains(msg, "%s") {
			return fmt.Sprintf(msg, fe.Param())
		}
		return msg
	}
}
