package utils

import (
	"strconv"
	"strings"

	"leadboard/models"

	"github.com/gofiber/fiber/v2"
)

// ErrorResponse creates a standardized error response
func ErrorResponse(c *fiber.Ctx, status int, message string, err error) error {
	response := fiber.Map{
		"success": false,
		"error":   message,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	return c.Status(status).JSON(response)
}

// SuccessResponse creates a standardized success response
func SuccessResponse(data interface{}) fiber.Map {
	return fiber.Map{
		"success": true,
		"data":    data,
	}
}

// MessageResponse is a success response that also carries a human readable message
func MessageResponse(data interface{}, message string) fiber.Map {
	response := SuccessResponse(data)
	response["message"] = message
	return response
}

// PaginatedResponse wraps a page of results with its pagination block
func PaginatedResponse(data interface{}, page, pageSize int, total int64) fiber.Map {
	response := SuccessResponse(data)
	response["pagination"] = NewPagination(page, pageSize, total)
	return response
}

func NewPagination(page, pageSize int, total int64) models.Pagination {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return models.Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	}
}

// QueryInt reads a positive integer query parameter, falling back on bad input
func QueryInt(c *fiber.Ctx, key string, fallback int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

// Pointer returns a pointer to the given value
func Pointer[T any](v T) *T {
	return &v
}

// TrimPtr trims the pointed-to string, keeping nil as nil
func TrimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
