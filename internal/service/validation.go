package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Marga-Ghale/aurora-pm-backend/internal/types"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report json names so errors match request fields.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "task_status", func(fl validator.FieldLevel) bool {
		return types.IsValidTaskStatus(fl.Field().String())
	})
	mustRegister(v, "project_status", func(fl validator.FieldLevel) bool {
		return types.IsValidProjectStatus(fl.Field().String())
	})
	mustRegister(v, "priority", func(fl validator.FieldLevel) bool {
		return types.IsValidPriority(fl.Field().String())
	})
	mustRegister(v, "hexcolor6", func(fl validator.FieldLevel) bool {
		return types.IsValidColor(fl.Field().String())
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s: %v", tag, err))
	}
}

// validateStruct returns the first failing field as a ValidationError.
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return invalid("", err.Error())
	}

	fe := verrs[0]
	return invalid(fieldPath(fe), describe(fe))
}

// fieldPath drops the struct name: "CreateTaskRequest.tags[0]" -> "tags[0]".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return "must be one of: " + fe.Param()
	case "task_status":
		return "must be one of: " + strings.Join(types.ValidTaskStatuses, ", ")
	case "project_status":
		return "must be one of: " + strings.Join(types.ValidProjectStatuses, ", ")
	case "priority":
		return "must be one of: " + strings.Join(types.ValidPriorities, ", ")
	case "hexcolor6":
		return "must be a hex color like #3B82F6"
	default:
		return "is invalid"
	}
}
