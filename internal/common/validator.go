package common

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// RequestValidator plugs struct tag validation into echo's Validate step.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

// Validate returns a 400 naming each failed field and rule.
func (rv *RequestValidator) Validate(i interface{}) error {
	err := rv.validate.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
	}
	failed := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			failed = append(failed, fmt.Sprintf("%s (%s=%s)", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			failed = append(failed, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
	}
	return echo.NewHTTPError(http.StatusBadRequest, "invalid request: "+strings.Join(failed, ", "))
}
