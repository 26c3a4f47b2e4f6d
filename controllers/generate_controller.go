package controller

import (
	"context"
	"strings"

	"leadboard/middleware"
	"leadboard/models"
	"leadboard/store"
	"leadboard/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type GenerateController struct {
	Generator utils.MessageGenerator
	Messages  store.MessageStore
	Logger    *logrus.Entry
}

func NewGenerateController(generator utils.MessageGenerator, messages store.MessageStore, logger *logrus.Entry) *GenerateController {
	return &GenerateController{
		Generator: generator,
		Messages:  messages,
		Logger:    componentLogger(logger, "generate"),
	}
}

// GenerateMessage produces an outreach draft and, unless saveToDb is false,
// stores it against leadId. A failed save still answers 200 with savedToDb=false.
func (gc *GenerateController) GenerateMessage(c *fiber.Ctx) error {
	var input models.GenerateMessageInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	input.Name = strings.TrimSpace(input.Name)
	input.Role = strings.TrimSpace(input.Role)
	input.Company = strings.TrimSpace(input.Company)
	input.LinkedInURL = strings.TrimSpace(input.LinkedInURL)
	input.LeadID = strings.TrimSpace(input.LeadID)
	if input.Name == "" || input.Role == "" || input.Company == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Missing required fields: name, role, company", nil)
	}

	result, err := gc.Generate(c.UserContext(), input)
	if err != nil {
		utils.LogError("generation_failed", err, map[string]interface{}{
			"lead_id": input.LeadID,
		})
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate message", nil)
	}

	return c.JSON(utils.SuccessResponse(result))
}

// Generate runs the generator and persists the result when requested.
func (gc *GenerateController) Generate(ctx context.Context, input models.GenerateMessageInput) (*models.GenerateMessageResult, error) {
	out, err := gc.Generator.Generate(ctx, utils.GenerateParams{
		Name:        input.Name,
		Role:        input.Role,
		Company:     input.Company,
		LinkedInURL: input.LinkedInURL,
	})
	if err != nil {
		middleware.RecordGeneration("failed", 0)
		return nil, err
	}

	result := &models.GenerateMessageResult{
		Message:    out.Message,
		TokensUsed: out.TokensUsed,
		Model:      out.Model,
	}

	if input.ShouldSave() && input.LeadID != "" {
		msg := models.Message{
			LeadID:  input.LeadID,
			Content: out.Message,
			Status:  models.MessageStatusDraft,
		}
		if err := gc.Messages.Create(ctx, &msg); err != nil {
			gc.Logger.WithError(err).WithField("lead_id", input.LeadID).Warn("Generated message could not be saved")
		} else {
			result.SavedToDB = true
			result.MessageID = msg.ID
		}
	}

	outcome := "unsaved"
	if result.SavedToDB {
		outcome = "saved"
	}
	middleware.RecordGeneration(outcome, out.TokensUsed)
	return result, nil
}

// GenerateForLead generates and saves a draft for a stored lead.
func (gc *GenerateController) GenerateForLead(ctx context.Context, lead models.Lead) (*models.GenerateMessageResult, error) {
	return gc.Generate(ctx, models.GenerateMessageInput{
		LeadID:      lead.ID,
		Name:        lead.Name,
		Role:        lead.Role,
		Company:     lead.Company,
		LinkedInURL: lead.LinkedIn(),
	})
}
