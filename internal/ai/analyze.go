package ai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// BodyAnalysis is the structured estimate extracted from a body photo. The
// values are model guesses the onboarding form pre-fills with; the user
// confirms or corrects them before anything is persisted.
type BodyAnalysis struct {
	EstimatedWeightKg       float64 `json:"estimated_weight_kg"`
	EstimatedHeightCm       float64 `json:"estimated_height_cm"`
	EstimatedAgeYears       int     `json:"estimated_age_years"`
	Sex                     string  `json:"sex"`
	BodyType                string  `json:"body_type"`
	BodyFatPercent          float64 `json:"body_fat_percent"`
	FitnessLevel            string  `json:"fitness_level"`
	RecommendedGoal         string  `json:"recommended_goal"`
	RecommendedTrainingDays int     `json:"recommended_training_days"`
	RecommendedEquipment    string  `json:"recommended_equipment"`
	SuggestedWeeklyBudget   float64 `json:"suggested_weekly_budget"`
	Notes                   string  `json:"notes"`
}

const analysisSystemPrompt = `Voce e um especialista em analise corporal e fitness. Analise a imagem fornecida e estime as caracteristicas fisicas da pessoa.

Retorne APENAS um JSON valido com exatamente estes campos:
{
  "estimated_weight_kg": 0,
  "estimated_height_cm": 0,
  "estimated_age_years": 0,
  "sex": "male|female",
  "body_type": "ectomorfo|mesomorfo|endomorfo",
  "body_fat_percent": 0,
  "fitness_level": "iniciante|intermediario|avancado",
  "recommended_goal": "hypertrophy|definition|fat_loss",
  "recommended_training_days": 0,
  "recommended_equipment": "gym|home|bands|bodyweight",
  "suggested_weekly_budget": 0,
  "notes": "observacoes relevantes"
}`

// AnalyzeBodyImage sends the photo through the vision model and decodes the
// structured estimate.
func (c *Client) AnalyzeBodyImage(ctx context.Context, imageURL string) (*BodyAnalysis, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: analysisSystemPrompt,
			},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: "Analise esta imagem e preencha todos os campos do JSON.",
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    imageURL,
							Detail: openai.ImageURLDetailHigh,
						},
					},
				},
			},
		},
		MaxTokens: 2000,
		// Low temperature keeps the estimates stable between retries.
		Temperature: 0.3,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from model")
	}

	var analysis BodyAnalysis
	if err := decodeResponse(resp.Choices[0].Message.Content, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}
