package validator

import (
	"errors"
	"fmt"
	"strings"

	"classbook/pkg/logger"
	"classbook/pkg/model"

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

type ClassroomValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewClassroomValidator(log *logger.Logger) *ClassroomValidator {
	log.Info("Classroom validator initialized successfully")
	return &ClassroomValidator{
		validate: validator.New(),
		logger:   log,
	}
}

func (v *ClassroomValidator) Validate(classroom *model.Classroom) error {
	if err := v.validate.Struct(classroom); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if classroom.HoursLeft > classroom.TotalHours {
		return ValidationErrors{
			ValidationError{
				Field:   "HoursLeft",
				Message: fmt.Sprintf("hours_left (%.2f) cannot exceed total_hours (%.2f)", classroom.HoursLeft, classroom.TotalHours),
			},
		}
	}

	return nil
}

func (v *ClassroomValidator) ValidateUpdate(update *model.ClassroomUpdate) error {
	if err := v.validate.Struct(update); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}

	if update.RoomNumber == "" && update.Name == "" && update.Capacity == nil && update.TotalHours == nil {
		return ValidationErrors{
			ValidationError{
				Field:   "RoomNumber",
				Message: "at least one field is required",
			},
		}
	}

	return nil
}

func (v *ClassroomValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
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
		case "gte":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
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
