package controller

import (
	"errors"
	"strings"

	"leadboard/models"
	"leadboard/store"
	"leadboard/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type MessageController struct {
	Messages store.MessageStore
	Logger   *logrus.Entry
}

func NewMessageController(messages store.MessageStore, logger *logrus.Entry) *MessageController {
	return &MessageController{
		Messages: messages,
		Logger:   componentLogger(logger, "messages"),
	}
}

// GetMessages returns a page of messages with their leads, newest first
func (mc *MessageController) GetMessages(c *fiber.Ctx) error {
	status := c.Query("status")
	if status != "" && status != "all" && !models.MessageStatus(status).Valid() {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, msgInvalidStatus, nil)
	}

	page, pageSize := store.Normalize(
		utils.QueryInt(c, "page", 1),
		utils.QueryInt(c, "page_size", store.DefaultMessagePageSize),
		store.DefaultMessagePageSize,
	)

	messages, total, err := mc.Messages.List(c.UserContext(), store.MessageFilter{
		LeadID:   c.Query("lead_id"),
		Status:   status,
		Search:   c.Query("search"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return internalError(c, "Failed to fetch messages", err)
	}

	return c.JSON(utils.PaginatedResponse(messages, page, pageSize, total))
}

func (mc *MessageController) GetMessage(c *fiber.Ctx) error {
	msg, err := mc.Messages.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, msgMessageNotFound, nil)
		}
		return internalError(c, "Failed to fetch message", err)
	}
	return c.JSON(utils.SuccessResponse(msg))
}

// GetMessageStats counts messages per status
func (mc *MessageController) GetMessageStats(c *fiber.Ctx) error {
	stats, err := mc.Messages.Stats(c.UserContext())
	if err != nil {
		return internalError(c, "Failed to fetch message stats", err)
	}
	return c.JSON(utils.SuccessResponse(stats))
}

// CreateMessage stores a message for an existing lead; status defaults to draft
func (mc *MessageController) CreateMessage(c *fiber.Ctx) error {
	var input models.CreateMessageInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	input.LeadID = strings.TrimSpace(input.LeadID)
	input.Content = strings.TrimSpace(input.Content)
	if input.LeadID == "" || input.Content == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Lead ID and content are required", nil)
	}
	if input.Status == "" {
		input.Status = models.MessageStatusDraft
	}
	if !input.Status.Valid() {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, msgInvalidStatus, nil)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	msg := models.Message{
		LeadID:  input.LeadID,
		Content: input.Content,
		Status:  input.Status,
	}
	if err := mc.Messages.Create(c.UserContext(), &msg); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, msgLeadNotFound, nil)
		}
		return internalError(c, "Failed to create message", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.MessageResponse(msg, "Message created successfully"))
}

// UpdateMessage changes content and/or status
func (mc *MessageController) UpdateMessage(c *fiber.Ctx) error {
	var input models.UpdateMessageInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if input.Content == nil && input.Status == nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, msgNoFieldsToUpdate, nil)
	}
	return mc.applyUpdate(c, input)
}

// ReplaceMessage is the PUT form of UpdateMessage; both fields are required
func (mc *MessageController) ReplaceMessage(c *fiber.Ctx) error {
	var input models.UpdateMessageInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if input.Content == nil || input.Status == nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Content and status are required", nil)
	}
	return mc.applyUpdate(c, input)
}

func (mc *MessageController) applyUpdate(c *fiber.Ctx, input models.UpdateMessageInput) error {
	if blank(input.Content) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Content cannot be empty", nil)
	}
	if input.Status != nil && !input.Status.Valid() {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, msgInvalidStatus, nil)
	}
	input.Content = utils.TrimPtr(input.Content)
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	msg, err := mc.Messages.Update(c.UserContext(), c.Params("id"), store.MessageChanges{
		Content: input.Content,
		Status:  input.Status,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, msgMessageNotFound, nil)
		}
		return internalError(c, "Failed to update message", err)
	}

	return c.JSON(utils.MessageResponse(msg, "Message updated successfully"))
}

func (mc *MessageController) DeleteMessage(c *fiber.Ctx) error {
	messageID := c.Params("id")

	if err := mc.Messages.Delete(c.UserContext(), messageID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, msgMessageNotFound, nil)
		}
		return internalError(c, "Failed to delete message", err)
	}

	return c.JSON(utils.MessageResponse(fiber.Map{"id": messageID}, "Message deleted successfully"))
}
