// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/amirphl/Orochi-Audience-Sync/app/dto"
	businessflow "github.com/amirphl/Orochi-Audience-Sync/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "min":
		return err.Field() + " must contain at least " + err.Param() + " items"
	case "max":
		if err.Kind() == reflect.Slice {
			return err.Field() + " must contain at most " + err.Param() + " items"
		}
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "numeric":
		return err.Field() + " must contain only numbers"
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}

func validationMessages(err error) []string {
	var messages []string
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			messages = append(messages, getValidationErrorMessage(fe))
		}
		return messages
	}
	return []string{err.Error()}
}

// errorResponse writes the standard failure envelope
func errorResponse(c fiber.Ctx, statusCode int, message, code string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    code,
			Details: details,
		},
	})
}

func successResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// requestContext detaches the flow from the fasthttp request and carries caller metadata.
// The returned cancel must be called once the flow returns.
func requestContext(c fiber.Ctx, timeout time.Duration) (context.Context, context.CancelFunc) {
	md := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	md.SetRequestID(requestid.FromContext(c))
	if subject, ok := c.Locals("subject").(string); ok {
		md.Producer = subject
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	return businessflow.WithClientMetadata(ctx, md), cancel
}
