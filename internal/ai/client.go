// Package ai wraps the OpenAI API for the three model-driven features: meal
// plan generation, workout plan generation, and body-photo analysis. The
// model output is untrusted free text; every call goes through a fallible
// decode step and never returns a partially parsed result.
package ai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

type Client struct {
	client *openai.Client
	model  string
}

func NewClient(apiKey string) *Client {
	return &Client{
		client: openai.NewClient(apiKey),
		model:  openai.GPT4o,
	}
}

func (c *Client) WithModel(model string) *Client {
	c.model = model
	return c
}

// Meal is one meal of one generated day.
type Meal struct {
	Name     string `json:"name"`
	Foods    string `json:"foods"`
	Protein  int    `json:"protein"`
	Carbs    int    `json:"carbs"`
	Fats     int    `json:"fats"`
	Calories int    `json:"calories"`
}

type MealDay struct {
	Day   int    `json:"day"`
	Meals []Meal `json:"meals"`
}

type Exercise struct {
	Name  string `json:"name"`
	Sets  int    `json:"sets"`
	Reps  string `json:"reps"`
	Rest  int    `json:"rest"`
	Notes string `json:"notes"`
}

type WorkoutDay struct {
	Day       int        `json:"day"`
	Name      string     `json:"name"`
	Exercises []Exercise `json:"exercises"`
}

// MealPlanParams carries the recomputed macro targets and profile context
// the prompt is built from. Days is pre-gated by the caller.
type MealPlanParams struct {
	Calories     int
	ProteinG     int
	CarbsG       int
	FatsG        int
	Goal         string
	WeeklyBudget float64
	Days         int
}

// GenerateMealPlan asks the model for a structured meal plan and decodes it.
func (c *Client) GenerateMealPlan(ctx context.Context, p MealPlanParams) ([]MealDay, error) {
	prompt := fmt.Sprintf(
		"Voce e um nutricionista especializado. Crie um plano alimentar de %d dias.\n\n"+
			"Meta diaria:\n"+
			"- Calorias: %d kcal\n"+
			"- Proteinas: %dg\n"+
			"- Carboidratos: %dg\n"+
			"- Gorduras: %dg\n\n"+
			"Objetivo: %s\n"+
			"Orcamento semanal: R$ %.2f\n\n"+
			"Regras:\n"+
			"1. Crie 5 refeicoes por dia (cafe, lanche manha, almoco, lanche tarde, jantar)\n"+
			"2. Use alimentos acessiveis e disponiveis no Brasil\n"+
			"3. Respeite o orcamento fornecido\n"+
			"4. Seja pratico e realista\n\n"+
			`Retorne APENAS um JSON valido no formato {"days": [{"day": 1, "meals": [{"name": "...", "foods": "...", "protein": 0, "carbs": 0, "fats": 0, "calories": 0}]}]}`,
		p.Days, p.Calories, p.ProteinG, p.CarbsG, p.FatsG, p.Goal, p.WeeklyBudget,
	)

	content, err := c.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var out struct {
		Days []MealDay `json:"days"`
	}
	if err := decodeResponse(content, &out); err != nil {
		return nil, err
	}
	return out.Days, nil
}

type WorkoutPlanParams struct {
	Goal         string
	TrainingDays int
	Equipment    string
	Days         int
}

var equipmentDescriptions = map[string]string{
	"gym":        "academia completa com maquinas e pesos livres",
	"home":       "equipamentos basicos de casa (halteres, barras)",
	"bands":      "elasticos de resistencia",
	"bodyweight": "apenas peso corporal (calistenia)",
}

// GenerateWorkoutPlan asks the model for a structured workout plan.
func (c *Client) GenerateWorkoutPlan(ctx context.Context, p WorkoutPlanParams) ([]WorkoutDay, error) {
	equipment, ok := equipmentDescriptions[p.Equipment]
	if !ok {
		equipment = p.Equipment
	}

	prompt := fmt.Sprintf(
		"Voce e um personal trainer especializado. Crie um plano de treino de %d dias.\n\n"+
			"Objetivo: %s\n"+
			"Equipamentos disponiveis: %s\n"+
			"Dias de treino por semana: %d\n\n"+
			"Regras:\n"+
			"1. Crie treinos completos e balanceados\n"+
			"2. Especifique series, repeticoes e tempo de descanso em segundos\n"+
			"3. Adapte os exercicios ao equipamento disponivel\n"+
			"4. Progressao adequada ao objetivo\n\n"+
			`Retorne APENAS um JSON valido no formato {"days": [{"day": 1, "name": "...", "exercises": [{"name": "...", "sets": 0, "reps": "8-12", "rest": 90, "notes": "..."}]}]}`,
		p.Days, p.Goal, equipment, p.TrainingDays,
	)

	content, err := c.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var out struct {
		Days []WorkoutDay `json:"days"`
	}
	if err := decodeResponse(content, &out); err != nil {
		return nil, err
	}
	return out.Days, nil
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		MaxTokens:   2500,
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from model")
	}
	return resp.Choices[0].Message.Content, nil
}
