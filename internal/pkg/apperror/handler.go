package apperror

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

// Respond writes err as a JSON error body. Unclassified errors are redacted
// and tagged with a correlation id that is also logged.
func Respond(c *fiber.Ctx, err error) error {
	if appErr, ok := As(err); ok {
		body := fiber.Map{"error": string(appErr.Kind), "message": appErr.Message}
		switch appErr.Kind {
		case KindValidation:
			if len(appErr.Fields) > 0 {
				body["fields"] = appErr.Fields
			}
		case KindUpstream:
			if appErr.Details != nil {
				body["details"] = appErr.Details
			}
		case KindConfiguration:
			// Key names stay in the log; clients only learn the server is misconfigured.
			log.Errorf("[API] %s %s: %v", c.Method(), c.Path(), appErr)
			body["message"] = "Server configuration error"
		case KindInternal:
			return respondInternal(c, appErr)
		}
		return c.Status(appErr.HTTPStatus()).JSON(body)
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{"error": errorCodeForStatus(fiberErr.Code), "message": fiberErr.Message})
	}

	return respondInternal(c, err)
}

// ErrorHandler plugs Respond into fiber.Config.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return Respond(c, err)
}

func respondInternal(c *fiber.Ctx, err error) error {
	correlationID := uuid.New().String()
	log.Errorf("[API] %s %s failed (correlation_id=%s): %v", c.Method(), c.Path(), correlationID, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":          string(KindInternal),
		"message":        "Internal server error",
		"correlation_id": correlationID,
	})
}

func errorCodeForStatus(status int) string {
	switch status {
	case fiber.StatusUnauthorized:
		return string(KindAuthentication)
	case fiber.StatusForbidden:
		return string(KindAuthorization)
	case fiber.StatusNotFound:
		return string(KindNotFound)
	case fiber.StatusTooManyRequests:
		return "too_many_requests"
	}
	if status >= 500 {
		return string(KindInternal)
	}
	return "bad_request"
}
