package booking

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Request is a booking attempt as submitted by a requester. Date and Time
// are the business-local wall clock of a slot returned by the slot listing.
type Request struct {
	AppointmentTypeID string `json:"appointment_type_id" validate:"required,max=64"`
	Date              string `json:"date" validate:"required,datetime=2006-01-02"`
	Time              string `json:"time" validate:"required,datetime=15:04"`
	Name              string `json:"name" validate:"required,max=200"`
	Email             string `json:"email" validate:"required,email,max=254"`
	Notes             string `json:"notes" validate:"max=2000"`
}

var validationMessages = map[string]string{
	"required": "is required",
	"email":    "must be a valid email address",
	"max":      "is too long",
	"datetime": "has an invalid format",
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func formatValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid booking request"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := validationMessages[fe.Tag()]
		if !ok {
			msg = "is invalid"
		}
		msgs = append(msgs, fe.Field()+" "+msg)
	}
	return strings.Join(msgs, ", ")
}
