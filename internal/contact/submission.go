package contact

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Submission is a validated contact form payload.
type Submission struct {
	Name    string `json:"name" validate:"min=2"`
	Email   string `json:"email" validate:"email"`
	Phone   string `json:"phone,omitempty"`
	Company string `json:"company,omitempty"`
	Service string `json:"service,omitempty"`
	Message string `json:"message" validate:"min=10"`
}

// FieldErrors maps an input field name to human-readable reasons.
type FieldErrors map[string][]string

// Add appends a reason for field.
func (e FieldErrors) Add(field, reason string) {
	e[field] = append(e[field], reason)
}

// Fields returns the failing field names in sorted order.
func (e FieldErrors) Fields() []string {
	out := make([]string, 0, len(e))
	for field := range e {
		out = append(out, field)
	}
	sort.Strings(out)
	return out
}

// BodyTooLarge reports a payload rejected before it was decoded.
func BodyTooLarge() FieldErrors {
	return FieldErrors{bodyField: {reasonBodyTooLarge}}
}

func (e FieldErrors) Error() string {
	parts := make([]string, 0, len(e))
	for _, field := range e.Fields() {
		parts = append(parts, field+": "+strings.Join(e[field], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

const (
	bodyField = "body"

	reasonRequired        = "Required"
	reasonExpectedString  = "Expected string"
	reasonInvalidJSON     = "Invalid JSON"
	reasonExpectedObject  = "Expected object"
	reasonNameTooShort    = "Name must be at least 2 characters"
	reasonInvalidEmail    = "Please enter a valid email"
	reasonMessageTooShort = "Message must be at least 10 characters"
	reasonBodyTooLarge    = "Request body too large"
)

// messages maps field and failed tag to the reason shown to the caller.
var messages = map[string]string{
	"name.min":    reasonNameTooShort,
	"email.email": reasonInvalidEmail,
	"message.min": reasonMessageTooShort,
}

var requiredFields = []string{"name", "email", "message"}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func engine() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate decodes a raw JSON body and checks it. Unknown fields are ignored.
// The returned FieldErrors is nil when the submission is valid.
func Validate(raw []byte) (Submission, FieldErrors) {
	var fields map[string]json.RawMessage
	if errUnmarshal := json.Unmarshal(raw, &fields); errUnmarshal != nil || fields == nil {
		reason := reasonInvalidJSON
		if json.Valid(raw) {
			reason = reasonExpectedObject
		}
		return Submission{}, FieldErrors{bodyField: {reason}}
	}

	errs := FieldErrors{}
	var sub Submission
	targets := map[string]*string{
		"name":    &sub.Name,
		"email":   &sub.Email,
		"phone":   &sub.Phone,
		"company": &sub.Company,
		"service": &sub.Service,
		"message": &sub.Message,
	}
	for field, target := range targets {
		value, present := fields[field]
		if !present || string(value) == "null" {
			continue
		}
		if errField := json.Unmarshal(value, target); errField != nil {
			errs.Add(field, reasonExpectedString)
		}
	}
	for _, field := range requiredFields {
		if value, present := fields[field]; !present || string(value) == "null" {
			errs.Add(field, reasonRequired)
		}
	}

	for field, reasons := range ValidateSubmission(sub) {
		if _, reported := errs[field]; reported {
			continue
		}
		errs[field] = reasons
	}
	if len(errs) > 0 {
		return Submission{}, errs
	}
	return sub, nil
}

// ValidateSubmission checks field constraints on an already decoded submission.
func ValidateSubmission(sub Submission) FieldErrors {
	errValidate := engine().Struct(sub)
	if errValidate == nil {
		return nil
	}
	validationErrs, ok := errValidate.(validator.ValidationErrors)
	if !ok {
		return FieldErrors{bodyField: {errValidate.Error()}}
	}
	errs := FieldErrors{}
	for _, fe := range validationErrs {
		key := fe.Field() + "." + fe.Tag()
		reason, known := messages[key]
		if !known {
			reason = fmt.Sprintf("failed %s validation", fe.Tag())
		}
		errs.Add(fe.Field(), reason)
	}
	return errs
}
