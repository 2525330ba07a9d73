package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = validator.New()

// ReadAndValidateRequest binds path, query and body into req, fills tag
// defaults and validates it. A non-nil result is a []ValidationError ready
// to be rendered.
func ReadAndValidateRequest(c echo.Context, req any) []ValidationError {
	if err := c.Bind(req); err != nil {
		return validatorDefaultRules(err)
	}
	if err := defaults.Set(req); err != nil {
		return validatorDefaultRules(err)
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		return validatorDefaultRules(err)
	}
	return nil
}

func validatorDefaultRules(err error) []ValidationError {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		out := make([]ValidationError, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msg, params := describe(fe)
			out = append(out, ValidationError{
				Code:    "ERR_" + strings.ToUpper(fe.Tag()),
				Field:   fe.Field(),
				Message: msg,
				Params:  params,
			})
		}
		return out
	}

	msg := err.Error()
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg = fmt.Sprint(he.Message)
	}
	return []ValidationError{{Code: "ERR_UNKNOWN", Message: msg}}
}

// bounds maps comparison tags to the phrase and the params key they report.
var bounds = map[string][2]string{
	"min": {"at least", "min"},
	"gte": {"greater than or equal to", "min"},
	"max": {"at most", "max"},
	"lte": {"less than or equal to", "max"},
	"gt":  {"greater than", "value"},
	"lt":  {"less than", "value"},
}

func describe(fe validator.FieldError) (string, map[string]any) {
	field, tag, param := fe.Field(), fe.Tag(), fe.Param()
	switch tag {
	case "required":
		return field + " is required", nil
	case "oneof":
		opts := strings.Fields(param)
		return fmt.Sprintf("%s must be one of: %s", field, strings.Join(opts, ", ")), map[string]any{"options": opts}
	}
	b, ok := bounds[tag]
	if !ok {
		return fmt.Sprintf("%s failed validation: %s", field, tag), nil
	}
	unit := ""
	if (tag == "min" || tag == "max") && fe.Type().Kind() == reflect.String {
		unit = " characters"
	}
	return fmt.Sprintf("%s must be %s %s%s", field, b[0], param, unit), map[string]any{b[1]: param}
}
