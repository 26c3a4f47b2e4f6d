package controller

import (
	"errors"
	"strings"

	"leadboard/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const (
	msgLeadRequired     = "Name, role, and company are required fields"
	msgLeadBlank        = "Name, role, and company cannot be empty"
	msgInvalidLinkedIn  = "Invalid LinkedIn URL format"
	msgInvalidStatus    = "Invalid status. Must be draft, approved, or sent"
	msgNoFieldsToUpdate = "No valid fields to update"
	msgLeadNotFound     = "Lead not found"
	msgMessageNotFound  = "Message not found"
)

// internalError reports err and answers with a generic 500.
func internalError(c *fiber.Ctx, message string, err error) error {
	utils.LogError("dependency_error", err, map[string]interface{}{
		"method": c.Method(),
		"path":   c.Path(),
	})
	return utils.ErrorResponse(c, fiber.StatusInternalServerError, message, nil)
}

// leadValidationError maps validator failures on a lead payload to client messages.
func leadValidationError(c *fiber.Ctx, err error) error {
	var verr *utils.ValidationError
	if errors.As(err, &verr) {
		for _, field := range []string{"name", "role", "company"} {
			if verr.Failed(field, "required") {
				return utils.ErrorResponse(c, fiber.StatusBadRequest, msgLeadRequired, nil)
			}
		}
		if verr.Failed("linkedin_url", "linkedin") {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, msgInvalidLinkedIn, nil)
		}
	}
	return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
}

func blank(s *string) bool {
	return s != nil && strings.TrimSpace(*s) == ""
}

func componentLogger(logger *logrus.Entry, component string) *logrus.Entry {
	if logger != nil {
		return logger
	}
	return utils.ComponentLogger(component)
}
