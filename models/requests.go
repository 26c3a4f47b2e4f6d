package models

import "encoding/json"

type CreateLeadInput struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Role        string  `json:"role" validate:"required,max=255"`
	Company     string  `json:"company" validate:"required,max=255"`
	LinkedInURL *string `json:"linkedin_url" validate:"omitempty,linkedin"`
}

// UpdateLeadInput carries a partial lead update. Nil fields are left alone;
// an empty linkedin_url clears the stored URL.
type UpdateLeadInput struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,max=255"`
	Role        *string `json:"role,omitempty" validate:"omitempty,max=255"`
	Company     *string `json:"company,omitempty" validate:"omitempty,max=255"`
	LinkedInURL *string `json:"linkedin_url,omitempty" validate:"omitempty,linkedin"`
}

type CreateMessageInput struct {
	LeadID  string        `json:"lead_id" validate:"required"`
	Content string        `json:"content" validate:"required,max=2000"`
	Status  MessageStatus `json:"status,omitempty"`
}

type UpdateMessageInput struct {
	Content *string        `json:"content,omitempty" validate:"omitempty,max=2000"`
	Status  *MessageStatus `json:"status,omitempty"`
}

type GenerateMessageInput struct {
	LeadID      string `json:"leadId,omitempty"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	Company     string `json:"company"`
	LinkedInURL string `json:"linkedinUrl,omitempty"`
	SaveToDB    *bool  `json:"saveToDb,omitempty"`
}

// ShouldSave applies the saveToDb default of true.
func (in GenerateMessageInput) ShouldSave() bool {
	return in.SaveToDB == nil || *in.SaveToDB
}

type GenerateMessageResult struct {
	Message    string `json:"message"`
	TokensUsed int    `json:"tokensUsed,omitempty"`
	Model      string `json:"model,omitempty"`
	SavedToDB  bool   `json:"savedToDb"`
	MessageID  string `json:"messageId,omitempty"`
}

type ExportLeadsInput struct {
	LeadIDs []string `json:"lead_ids"`
}

type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// Envelope is the response shape shared by every API endpoint.
type Envelope struct {
	Success    bool            `json:"success"`
	Data       json.RawMessage `json:"data,omitempty"`
	Error      string          `json:"error,omitempty"`
	Details    string          `json:"details,omitempty"`
	Message    string          `json:"message,omitempty"`
	Pagination *Pagination     `json:"pagination,omitempty"`
}
