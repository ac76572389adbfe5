// Package validation checks request DTOs and reports every offending field.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/tricket/tricket-integrations/internal/pkg/apperror"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// report json names so clients see the keys they sent
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// Struct validates v. A failure is a validation error listing every field
// that broke a rule. Only "required" failures are reported with the
// default "is required" message.
func Struct(v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperror.Internal("validation failed", err)
	}

	fields := make([]string, 0, len(verrs))
	onlyRequired := true
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
		if fe.Tag() != "required" {
			onlyRequired = false
		}
	}
	if onlyRequired {
		return apperror.Validation("", fields...)
	}
	return apperror.Validation("Invalid fields: "+strings.Join(fields, ", "), fields...)
}

// BindJSON parses the request body into out and validates it. An empty
// body is treated as an empty object.
func BindJSON(c *fiber.Ctx, out any) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(out); err != nil {
			return apperror.Validation("Invalid JSON body")
		}
	}
	return Struct(out)
}
