package controller

import (
	"errors"
	"strings"
	"time"

	"leadboard/models"
	"leadboard/store"
	"leadboard/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type LeadController struct {
	Leads    store.LeadStore
	Messages store.MessageStore
	Logger   *logrus.Entry
}

func NewLeadController(leads store.LeadStore, messages store.MessageStore, logger *logrus.Entry) *LeadController {
	return &LeadController{
		Leads:    leads,
		Messages: messages,
		Logger:   componentLogger(logger, "leads"),
	}
}

// GetLeads returns a page of leads, newest first, optionally filtered by a search term
func (lc *LeadController) GetLeads(c *fiber.Ctx) error {
	page, pageSize := store.Normalize(
		utils.QueryInt(c, "page", 1),
		utils.QueryInt(c, "page_size", store.DefaultLeadPageSize),
		store.DefaultLeadPageSize,
	)

	leads, total, err := lc.Leads.List(c.UserContext(), store.LeadFilter{
		Search:   c.Query("search"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return internalError(c, "Failed to fetch leads", err)
	}

	return c.JSON(utils.PaginatedResponse(leads, page, pageSize, total))
}

// GetLead returns a single lead by ID
func (lc *LeadController) GetLead(c *fiber.Ctx) error {
	lead, err := lc.Leads.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, msgLeadNotFound, nil)
		}
		return internalError(c, "Failed to fetch lead", err)
	}
	return c.JSON(utils.SuccessResponse(lead))
}

// CreateLead validates and stores a new lead
func (lc *LeadController) CreateLead(c *fiber.Ctx) error {
	var input models.CreateLeadInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	input.Name = strings.TrimSpace(input.Name)
	input.Role = strings.TrimSpace(input.Role)
	input.Company = strings.TrimSpace(input.Company)
	input.LinkedInURL = utils.TrimPtr(input.LinkedInURL)
	if input.LinkedInURL != nil && *input.LinkedInURL == "" {
		input.LinkedInURL = nil
	}

	if err := utils.ValidateStruct(input); err != nil {
		return leadValidationError(c, err)
	}

	lead := models.Lead{
		Name:        input.Name,
		Role:        input.Role,
		Company:     input.Company,
		LinkedInURL: input.LinkedInURL,
	}
	if err := lc.Leads.Create(c.UserContext(), &lead); err != nil {
		return internalError(c, "Failed to create lead", err)
	}

	lc.Logger.WithField("lead_id", lead.ID).Info("Lead created")
	return c.Status(fiber.StatusCreated).JSON(utils.MessageResponse(lead, "Lead created successfully"))
}

// UpdateLead applies a partial update. PUT and PATCH both route here.
func (lc *LeadController) UpdateLead(c *fiber.Ctx) error {
	var input models.UpdateLeadInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	if blank(input.Name) || blank(input.Role) || blank(input.Company) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, msgLeadBlank, nil)
	}
	input.Name = utils.TrimPtr(input.Name)
	input.Role = utils.TrimPtr(input.Role)
	input.Company = utils.TrimPtr(input.Company)
	input.LinkedInURL = utils.TrimPtr(input.LinkedInURL)

	// An empty linkedin_url clears the URL, so only a non-empty one is checked.
	check := input
	if check.LinkedInURL != nil && *check.LinkedInURL == "" {
		check.LinkedInURL = nil
	}
	if err := utils.ValidateStruct(check); err != nil {
		return leadValidationError(c, err)
	}

	lead, err := lc.Leads.Update(c.UserContext(), c.Params("id"), store.LeadChanges{
		Name:        input.Name,
		Role:        input.Role,
		Company:     input.Company,
		LinkedInURL: input.LinkedInURL,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, msgLeadNotFound, nil)
		}
		return internalError(c, "Failed to update lead", err)
	}

	return c.JSON(utils.MessageResponse(lead, "Lead updated successfully"))
}

// DeleteLead removes a lead together with its messages
func (lc *LeadController) DeleteLead(c *fiber.Ctx) error {
	leadID := c.Params("id")

	if err := lc.Leads.Delete(c.UserContext(), leadID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, msgLeadNotFound, nil)
		}
		return internalError(c, "Failed to delete lead", err)
	}

	lc.Logger.WithField("lead_id", leadID).Info("Lead deleted")
	return c.JSON(utils.MessageResponse(fiber.Map{"id": leadID}, "Lead deleted successfully"))
}

// ExportLeads streams the selected leads and their messages as CSV
func (lc *LeadController) ExportLeads(c *fiber.Ctx) error {
	var input models.ExportLeadsInput
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if len(input.LeadIDs) == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Please select at least one lead to export", nil)
	}

	leads, err := lc.Leads.ListByIDs(c.UserContext(), input.LeadIDs)
	if err != nil {
		return internalError(c, "Failed to fetch leads", err)
	}
	if len(leads) == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "None of the selected leads exist", nil)
	}

	ids := make([]string, len(leads))
	for i, l := range leads {
		ids[i] = l.ID
	}
	messages, err := lc.Messages.ListForLeads(c.UserContext(), ids)
	if err != nil {
		return internalError(c, "Failed to fetch messages", err)
	}

	c.Attachment(utils.ExportFileName(time.Now()))
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")

	if err := utils.WriteLeadsCSV(c, leads, messages); err != nil {
		return internalError(c, "Failed to generate CSV", err)
	}
	return nil
}
