package common

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
)

// GenericEchoValidator validates bound API requests and answers failures
// with 400, naming each rejected field and the rule it broke.
type GenericEchoValidator struct {
	Validator *validator.Validate
}

func (gv *GenericEchoValidator) Validate(i interface{}) error {
	if gv.Validator == nil {
		gv.Validator = validator.New()
	}
	err := gv.Validator.Struct(i)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
	}
	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return echo.NewHTTPError(http.StatusBadRequest, "invalid request: "+strings.Join(problems, ", "))
}
