// internal/gpt/client.go
package gpt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"plannerrun/internal/apperr"
	"plannerrun/internal/config"
	"plannerrun/internal/models"
)

const systemPrompt = "Você é um treinador de corrida experiente. Sua tarefa é montar um plano de treino de corrida personalizado a partir do perfil do aluno."

type Client struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func NewClient(cfg config.GPT) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key is not configured")
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		timeout: timeout,
	}, nil
}

// Prompt renders the user message for a customer's plan.
func Prompt(c *models.Customer) string {
	return fmt.Sprintf(
		"Crie um plano de treino de corrida personalizado para um aluno com o seguinte perfil:\n"+
			"- Altura: %s cm\n"+
			"- Peso: %s kg\n"+
			"- Idade: %d anos\n"+
			"- Nível atual: %s\n"+
			"- Dias disponíveis por semana: %d\n"+
			"- Duração do acompanhamento: %d meses\n"+
			"- Objetivo: %s\n\n"+
			"O plano deve incluir:\n"+
			"1. Estrutura semanal respeitando os dias disponíveis\n"+
			"2. Progressão mês a mês até o fim do acompanhamento\n"+
			"3. Ritmos ou zonas de esforço para cada tipo de treino\n"+
			"4. Orientações de aquecimento, desaquecimento e descanso\n"+
			"5. Cuidados para prevenir lesões\n",
		strconv.FormatFloat(c.Altura, 'f', -1, 64),
		strconv.FormatFloat(c.Peso, 'f', -1, 64),
		c.Idade, c.Nivel, c.Dias, c.Meses, c.Objetivo,
	)
}

func (c *Client) GeneratePlan(ctx context.Context, customer *models.Customer) (string, error) {
	const op = "gpt.GeneratePlan"

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: Prompt(customer),
			},
		},
		MaxTokens:   2500,
		Temperature: 0.7,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", apperr.FromContext(apperr.KindProvider, op, err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", apperr.New(apperr.KindProvider, op, "no response from GPT API")
	}

	return resp.Choices[0].Message.Content, nil
}
