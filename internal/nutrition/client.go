// Package nutrition calls the Gemini API to identify foods in a meal photo
// and estimate macro content. Responses are structured JSON constrained by a
// response schema, and their shape is verified before anything downstream
// trusts them.
package nutrition

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrBadResponse is returned when the model's reply does not match the
// requested JSON shape.
var ErrBadResponse = errors.New("AI response did not match the expected shape")

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Nutrition is the estimated macro breakdown for a whole meal.
type Nutrition struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// Client is a Gemini REST API client
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Gemini client for the given model
func NewClient(apiKey, model string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Request/response wire types for the generateContent endpoint.

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseMIMEType string  `json:"response_mime_type,omitempty"`
	ResponseSchema   *schema `json:"response_schema,omitempty"`
}

type schema struct {
	Type       string             `json:"type"`
	Items      *schema            `json:"items,omitempty"`
	Properties map[string]*schema `json:"properties,omitempty"`
	Required   []string           `json:"required,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

var foodListSchema = &schema{
	Type:  "ARRAY",
	Items: &schema{Type: "STRING"},
}

var nutritionSchema = &schema{
	Type: "OBJECT",
	Properties: map[string]*schema{
		"calories": {Type: "NUMBER"},
		"protein":  {Type: "NUMBER"},
		"carbs":    {Type: "NUMBER"},
		"fat":      {Type: "NUMBER"},
	},
	Required: []string{"calories", "protein", "carbs", "fat"},
}

// IdentifyFoods asks the model to list the distinct foods visible in the
// image. The optional description gives the model extra context from the
// user.
func (c *Client) IdentifyFoods(ctx context.Context, imageData []byte, mimeType, description string) ([]string, error) {
	prompt := "Identify every distinct food in this image. Do not include condiments or garnishes unless they are a significant part of the dish. Respond with a JSON array of strings."
	if description != "" {
		prompt += fmt.Sprintf("\n\nAdditional context from the user: %q", description)
	}

	text, err := c.generate(ctx, imageData, mimeType, prompt, foodListSchema)
	if err != nil {
		return nil, err
	}

	var foods []string
	if err := json.Unmarshal([]byte(stripFences(text)), &foods); err != nil {
		c.logger.Error("failed to parse food identification response", "body", text)
		return nil, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}

	return foods, nil
}

// AnalyzeNutrition asks the model for an approximate macro breakdown of the
// whole meal, given the image and the previously identified food list.
func (c *Client) AnalyzeNutrition(ctx context.Context, imageData []byte, mimeType string, foods []string, description string) (Nutrition, error) {
	prompt := fmt.Sprintf("Based on the provided image and this list of identified foods: %s,", strings.Join(foods, ", "))
	if description != "" {
		prompt += fmt.Sprintf(" and the following description from the user: %q,", description)
	}
	prompt += ` provide an approximate nutritional analysis for the complete meal. Estimate total calories, protein in grams, carbohydrates in grams and fat in grams. Respond only with a JSON object with the keys "calories", "protein", "carbs" and "fat", with numeric values.`

	text, err := c.generate(ctx, imageData, mimeType, prompt, nutritionSchema)
	if err != nil {
		return Nutrition{}, err
	}

	// Pointer fields distinguish a missing key from a zero value; all four
	// macros are required before the result is trusted.
	var raw struct {
		Calories *float64 `json:"calories"`
		Protein  *float64 `json:"protein"`
		Carbs    *float64 `json:"carbs"`
		Fat      *float64 `json:"fat"`
	}
	if err := json.Unmarshal([]byte(stripFences(text)), &raw); err != nil {
		c.logger.Error("failed to parse nutrition response", "body", text)
		return Nutrition{}, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if raw.Calories == nil || raw.Protein == nil || raw.Carbs == nil || raw.Fat == nil {
		c.logger.Error("nutrition response missing required fields", "body", text)
		return Nutrition{}, ErrBadResponse
	}

	return Nutrition{
		Calories: *raw.Calories,
		Protein:  *raw.Protein,
		Carbs:    *raw.Carbs,
		Fat:      *raw.Fat,
	}, nil
}

// generate performs one generateContent call with an image part and a text
// part, constrained to JSON output by the given schema.
func (c *Client) generate(ctx context.Context, imageData []byte, mimeType, prompt string, responseSchema *schema) (string, error) {
	reqBody := generateRequest{
		Contents: []content{
			{
				Parts: []part{
					{
						InlineData: &inlineData{
							MimeType: mimeType,
							Data:     base64.StdEncoding.EncodeToString(imageData),
						},
					},
					{Text: prompt},
				},
			},
		},
		GenerationConfig: &generationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   responseSchema,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call Gemini API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("Gemini API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var response generateResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(response.Candidates) == 0 || len(response.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no candidates in response", ErrBadResponse)
	}

	return strings.TrimSpace(response.Candidates[0].Content.Parts[0].Text), nil
}

// stripFences removes markdown code fences some model replies wrap around
// their JSON payload.
func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
