package validators

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/vendkiosk/kiosk-backend/pkg/errors"
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

type bodyMode struct {
	strict     bool
	allowEmpty bool
}

var (
	adminBody  = bodyMode{strict: true}
	deviceBody = bodyMode{allowEmpty: true}
)

// DecodeJSONBody decodes the admin and pairing payloads strictly.
func DecodeJSONBody(r *http.Request, dest any) error {
	return decode(r, dest, adminBody)
}

// DecodeDeviceBody tolerates unknown fields and an empty body; deployed
// firmware sends extra keys and some calls carry no payload at all.
func DecodeDeviceBody(r *http.Request, dest any) error {
	return decode(r, dest, deviceBody)
}

func decode(r *http.Request, dest any, mode bodyMode) error {
	defer io.Copy(io.Discard, r.Body)

	dec := json.NewDecoder(r.Body)
	if mode.strict {
		dec.DisallowUnknownFields()
	}
	err := dec.Decode(dest)
	if mode.allowEmpty && errors.Is(err, io.EOF) {
		err = nil
	}
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body").
			WithDetails(map[string]any{"error": err.Error()})
	}
	if err := validate.Struct(dest); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

func formatValidationErrors(err error) *pkgerrors.Error {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = validationMessage(fieldErr)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "url":
		return "must be a valid url"
	case "numeric", "len":
		return "has an invalid format"
	}
	return "is invalid"
}
