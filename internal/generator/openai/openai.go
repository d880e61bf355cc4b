// Package openai generates answers through an OpenAI-compatible chat endpoint.
package openai

import (
	"context"
	"errors"
	"math"

	goopenai "github.com/sashabaranov/go-openai"

	"eventbot/internal/provider"
)

// Config configures the chat client.
type Config struct {
	Model       string
	Temperature *float32
}

// Client implements domain.Generator with a single user message per prompt.
type Client struct {
	provider *provider.Client
	cfg      Config
}

func NewClient(p *provider.Client, cfg Config) (*Client, error) {
	if cfg.Model == "" {
		return nil, errors.New("generator model must be set")
	}
	return &Client{provider: p, cfg: cfg}, nil
}

// Model returns the pinned generative model identifier.
func (c *Client) Model() string { return c.cfg.Model }

// Generate returns the model's raw reply to prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := c.provider.WithTimeout(ctx)
	defer cancel()
	req := goopenai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if t := c.cfg.Temperature; t != nil {
		req.Temperature = *t
		// go-openai omits a zero temperature from the request
		if *t == 0 {
			req.Temperature = math.SmallestNonzeroFloat32
		}
	}
	resp, err := c.provider.API.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", provider.Classify("generation", err)
	}
	if len(resp.Choices) == 0 {
		return "", provider.Classify("generation", errors.New("no choices returned"))
	}
	return resp.Choices[0].Message.Content, nil
}
