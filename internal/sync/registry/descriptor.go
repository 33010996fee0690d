// Package registry defines the run contract between the dispatcher and the
// per-platform job handlers, and routes job types to handlers.
package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/angelmondragon/channelsync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/channelsync-backend/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// RunDescriptor is the dispatcher's invocation payload for one sync run.
type RunDescriptor struct {
	RunID         uuid.UUID        `json:"run_id" validate:"required"`
	IntegrationID uuid.UUID        `json:"integration_id" validate:"required"`
	JobType       enums.JobType    `json:"job_type" validate:"required"`
	Trigger       enums.RunTrigger `json:"trigger"`
	RetryCount    int              `json:"retry_count" validate:"gte=0"`
}

// DecodeRunDescriptor parses and validates a run descriptor message.
func DecodeRunDescriptor(data []byte) (RunDescriptor, error) {
	var desc RunDescriptor
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&desc); err != nil {
		return RunDescriptor{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid run descriptor")
	}
	if err := desc.Validate(); err != nil {
		return RunDescriptor{}, err
	}
	return desc, nil
}

// Validate checks required fields and enum membership.
func (d RunDescriptor) Validate() error {
	if err := validate.Struct(d); err != nil {
		return formatValidationErrors(err)
	}
	if !d.JobType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown job type %q", d.JobType))
	}
	if d.Trigger != "" && !d.Trigger.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown trigger %q", d.Trigger))
	}
	return nil
}

// NormalizedTrigger defaults an absent trigger to schedule.
func (d RunDescriptor) NormalizedTrigger() enums.RunTrigger {
	if d.Trigger == "" {
		return enums.TriggerSchedule
	}
	return d.Trigger
}

func formatValidationErrors(err error) *pkgerrors.Error {
	if errs, ok := err.(validator.ValidationErrors); ok {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = validationMessage(fieldErr)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "run descriptor validation failed").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "run descriptor validation failed")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	}
	return "is invalid"
}
