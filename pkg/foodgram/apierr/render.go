package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/mikepea/foodgram/pkg/foodgram/logging"
	"gorm.io/gorm"
)

const errorsKey = "errors"

// Respond renders err as a JSON error response and aborts the request.
// Domain errors keep their message; anything else is logged and rendered
// as a generic internal error.
func Respond(c *gin.Context, err error) {
	var e *Error
	if !errors.As(err, &e) {
		e = classify(err)
	}

	if e.Kind == KindInternal {
		logging.Error().
			Err(err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("request failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{errorsKey: "Internal server error."})
		return
	}

	body := gin.H{errorsKey: e.Message}
	if e.Field != "" {
		body[e.Field] = []string{e.Message}
	}
	c.AbortWithStatusJSON(e.Status(), body)
}

// classify maps well-known foreign errors onto the taxonomy.
func classify(err error) *Error {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		return fromValidationErrors(verrs)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		// A constraint violation here means the validation layer missed it.
		return Internal("unique constraint violated", err)
	default:
		return Internal("unexpected error", err)
	}
}

// Bind renders a request binding error. JSON syntax errors and validator
// failures are both reported as 400; a body over the size limit is 413.
func Bind(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		Respond(c, fromValidationErrors(verrs))
		return
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		Respond(c, ErrBodyTooLarge)
		return
	}
	Respond(c, &Error{Kind: KindValidation, Message: "Malformed request body.", Err: err})
}

// fromValidationErrors reports the first failed field.
func fromValidationErrors(verrs validator.ValidationErrors) *Error {
	if len(verrs) == 0 {
		return ErrValidation
	}
	first := verrs[0]
	return &Error{
		Kind:    KindValidation,
		Code:    first.Tag(),
		Field:   jsonField(first),
		Message: fieldMessage(first),
		Err:     verrs,
	}
}

// jsonField turns "RecipeWriteRequest.Ingredients[0].Amount" into
// "ingredients[0].amount"-style names using the json field names gin
// registers with the validator.
func jsonField(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		ns = ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "min", "gte":
		switch fe.Kind().String() {
		case "slice":
			return fmt.Sprintf("Ensure this field has at least %s elements.", fe.Param())
		case "string":
			return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
		}
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	case "max", "lte":
		if fe.Kind().String() == "string" {
			return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
		}
		return fmt.Sprintf("Ensure this value is less than or equal to %s.", fe.Param())
	case "email":
		return "Enter a valid email address."
	case "username":
		return "Enter a valid username. It may contain only letters, numbers, and @/./+/-/_ characters."
	case "slug":
		return "Enter a valid slug consisting of letters, numbers, underscores or hyphens."
	default:
		return fmt.Sprintf("Invalid value (%s).", fe.Tag())
	}
}
