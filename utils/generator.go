package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"leadboard/config"

	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

const (
	generationMaxTokens   = 150
	generationTemperature = 0.7

	// FallbackModel is reported as the model of template-generated messages.
	FallbackModel = "fallback-template"
)

var ErrEmptyGeneration = errors.New("no message generated from OpenAI")

const systemPrompt = "You are a professional business development expert who creates personalized, effective LinkedIn connection messages."

const userPromptTemplate = `You are a professional business development expert. Create a personalized LinkedIn connection request message for the following lead:

Name: %s
Role: %s
Company: %s
%s
Requirements:
1. Keep the message under 300 characters (LinkedIn limit)
2. Be professional but friendly
3. Mention something specific about their role or company
4. Include a clear reason for connecting
5. End with a call to action
6. Do not use overly salesy language
7. Make it sound natural and genuine

Generate only the message content, without any additional text or formatting.`

var fallbackTemplates = []string{
	"Hi {name}, I noticed your work at {company} as {role}. I'd love to connect and learn more about your experience in the industry. Looking forward to connecting!",
	"Hello {name}, Your role as {role} at {company} caught my attention. I'd be interested in connecting to discuss industry trends and potential collaboration opportunities.",
	"Hi {name}, I came across your profile and was impressed by your work at {company}. As someone in the {role} space, I'd value connecting with you to share insights.",
}

type GenerateParams struct {
	Name        string
	Role        string
	Company     string
	LinkedInURL string
}

type GenerateOutput struct {
	Message    string
	TokensUsed int
	Model      string
}

// MessageGenerator produces outreach text for a lead.
type MessageGenerator interface {
	Generate(ctx context.Context, params GenerateParams) (*GenerateOutput, error)
}

// BuildPrompt renders the instruction sent to the language model.
func BuildPrompt(p GenerateParams) string {
	profile := ""
	if p.LinkedInURL != "" {
		profile = "LinkedIn Profile: " + p.LinkedInURL + "\n"
	}
	return fmt.Sprintf(userPromptTemplate, p.Name, p.Role, p.Company, profile)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// OpenAIGenerator calls an OpenAI compatible chat completions endpoint.
type OpenAIGenerator struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	Client  *fasthttp.Client
}

func NewOpenAIGenerator(cfg config.OpenAIConfig) *OpenAIGenerator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIGenerator{
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		Timeout: timeout,
		Client: &fasthttp.Client{
			Name:                "leadboard",
			MaxIdleConnDuration: time.Minute,
		},
	}
}

func (g *OpenAIGenerator) Generate(ctx context.Context, params GenerateParams) (*GenerateOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body, err := json.Marshal(chatRequest{
		Model: g.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: BuildPrompt(params)},
		},
		MaxTokens:   generationMaxTokens,
		Temperature: generationTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode generation request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(g.BaseURL + "/chat/completions")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+g.APIKey)
	req.SetBody(body)

	deadline := time.Now().Add(g.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := g.Client.DoDeadline(req, resp, deadline); err != nil {
		return nil, fmt.Errorf("failed to generate message: %w", err)
	}

	var out chatResponse
	decodeErr := json.Unmarshal(resp.Body(), &out)

	if status := resp.StatusCode(); status < 200 || status >= 300 {
		msg := fmt.Sprintf("provider returned status %d", status)
		if decodeErr == nil && out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return nil, fmt.Errorf("failed to generate message: %s", msg)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to generate message: %w", decodeErr)
	}

	content := ""
	if len(out.Choices) > 0 {
		content = strings.TrimSpace(out.Choices[0].Message.Content)
	}
	if content == "" {
		return nil, fmt.Errorf("failed to generate message: %w", ErrEmptyGeneration)
	}

	model := out.Model
	if model == "" {
		model = g.Model
	}
	return &GenerateOutput{
		Message:    content,
		TokensUsed: out.Usage.TotalTokens,
		Model:      model,
	}, nil
}

// FallbackGenerator fills one of the fixed templates. It never fails.
type FallbackGenerator struct {
	Intn func(n int) int
}

func NewFallbackGenerator() *FallbackGenerator {
	return &FallbackGenerator{Intn: rand.Intn}
}

func (f *FallbackGenerator) Generate(_ context.Context, params GenerateParams) (*GenerateOutput, error) {
	return &GenerateOutput{
		Message: FallbackMessage(params, f.Intn(len(fallbackTemplates))),
		Model:   FallbackModel,
	}, nil
}

// FallbackMessage renders template i with the lead's details.
func FallbackMessage(params GenerateParams, i int) string {
	r := strings.NewReplacer("{name}", params.Name, "{role}", params.Role, "{company}", params.Company)
	return r.Replace(fallbackTemplates[i%len(fallbackTemplates)])
}

// FallbackPolicy uses Fallback whenever Primary fails.
type FallbackPolicy struct {
	Primary  MessageGenerator
	Fallback MessageGenerator
	Logger   *logrus.Entry
}

func (p *FallbackPolicy) Generate(ctx context.Context, params GenerateParams) (*GenerateOutput, error) {
	out, err := p.Primary.Generate(ctx, params)
	if err == nil {
		return out, nil
	}
	if p.Logger != nil {
		p.Logger.WithError(err).WithField("lead", params.Name).Warn("Primary generation failed, using template")
	}
	return p.Fallback.Generate(ctx, params)
}

// SelectGenerator wraps primary according to the configured generation policy.
func SelectGenerator(policy string, primary MessageGenerator, logger *logrus.Entry) MessageGenerator {
	if policy == config.PolicyPrimaryWithFallback {
		return &FallbackPolicy{
			Primary:  primary,
			Fallback: NewFallbackGenerator(),
			Logger:   logger,
		}
	}
	return primary
}
