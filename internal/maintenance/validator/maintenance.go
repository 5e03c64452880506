package validator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "makerdesk/pkg/errors"
	"makerdesk/pkg/logger"
	"makerdesk/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type MaintenanceValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewMaintenanceValidator(log *logger.Logger) *MaintenanceValidator {
	return &MaintenanceValidator{
		validate: validator.New(),
		logger:   log,
	}
}

func (v *MaintenanceValidator) Validate(log *model.MaintenanceLog) error {
	if err := v.validate.Struct(log); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *MaintenanceValidator) ValidateInterval(interval model.Interval) error {
	if interval.Start.IsZero() || interval.End.IsZero() {
		return apperrors.InvalidInterval("start_time and end_time are required")
	}
	if !interval.IsValid() {
		return apperrors.InvalidInterval(fmt.Sprintf(
			"end_time %s must be after start_time %s",
			interval.End.Format(time.RFC3339),
			interval.Start.Format(time.RFC3339),
		))
	}
	return nil
}

func translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "gtfield":
			message = fmt.Sprintf("%s must be after %s", err.Field(), err.Param())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
