// Copyright Textchunk Authors
// SPDX-License-Identifier: Apache-2.0

// Package embedding turns chunks into vectors. It sits downstream of the
// chunker: chunks whose token sequence exceeds the embedding model's input
// limit are windowed, embedded per window and merged back into one vector.
package embedding

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Client generates vector embeddings from text inputs.
type Client interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// OpenAIClient implements Client using the OpenAI SDK against any
// OpenAI-compatible endpoint.
type OpenAIClient struct {
	client     openai.Client
	model      string
	dimensions int
}

// NewOpenAIClient creates an embedding client with its own base URL and API key.
func NewOpenAIClient(baseURL, apiKey, model string, dimensions int) *OpenAIClient {
	opts := []option.RequestOption{}

	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	} else {
		opts = append(opts, option.WithAPIKey("dummy"))
	}

	return &OpenAIClient{
		client:     openai.NewClient(opts...),
		model:      model,
		dimensions: dimensions,
	}
}

// Model returns the embedding model name.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Embed generates embeddings for the given text inputs.
func (c *OpenAIClient) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	// Build the input union: for a single string use OfString, otherwise OfArrayOfStrings
	var input openai.EmbeddingNewParamsInputUnion
	if len(inputs) == 1 {
		input = openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(inputs[0]),
		}
	} else {
		input = openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: inputs,
		}
	}

	params := openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.model),
		Input: input,
	}
	if c.dimensions > 0 {
		params.Dimensions = openai.Int(int64(c.dimensions))
	}

	resp, err := c.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}

	results := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		results[i] = vec
	}

	return results, nil
}
