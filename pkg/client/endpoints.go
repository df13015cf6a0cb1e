package client

import (
	"context"

	"github.com/lingyun-ai/lingyun-go/pkg/api"
	"github.com/lingyun-ai/lingyun-go/pkg/ratelimit"
	"github.com/lingyun-ai/lingyun-go/pkg/sse"
)

// ChatCompletion sends a chat request and returns the full response.
// An empty model selects DefaultChatModel.
func (c *Client) ChatCompletion(ctx context.Context, model string, req *api.ChatRequest) (*api.ChatResponse, error) {
	if model == "" {
		model = DefaultChatModel
	}
	req.Stream = false
	return call[api.ChatResponse](ctx, c, OpChat, model, req, chatCost(req))
}

// ChatCompletionStream sends a chat request and returns the incremental
// response stream. The caller must drain or Close the stream to release
// the connection.
func (c *Client) ChatCompletionStream(ctx context.Context, model string, req *api.ChatRequest) (*sse.Stream[api.ChatResponse], error) {
	if model == "" {
		model = DefaultChatModel
	}
	req.Stream = true
	return callStream[api.ChatResponse](ctx, c, OpChat, model, req, chatCost(req))
}

// Completion sends a plain text completion request.
func (c *Client) Completion(ctx context.Context, model string, req *api.CompletionRequest) (*api.ChatResponse, error) {
	req.Stream = false
	return call[api.ChatResponse](ctx, c, OpCompletion, model, req, ratelimit.EstimateTokens(req.Prompt))
}

// CompletionStream sends a plain text completion request and returns
// the incremental response stream.
func (c *Client) CompletionStream(ctx context.Context, model string, req *api.CompletionRequest) (*sse.Stream[api.ChatResponse], error) {
	req.Stream = true
	return callStream[api.ChatResponse](ctx, c, OpCompletion, model, req, ratelimit.EstimateTokens(req.Prompt))
}

// Embedding computes embedding vectors for the request inputs.
func (c *Client) Embedding(ctx context.Context, model string, req *api.EmbeddingRequest) (*api.EmbeddingResponse, error) {
	var cost float64
	for _, in := range req.Input {
		cost += ratelimit.EstimateTokens(in)
	}
	return call[api.EmbeddingResponse](ctx, c, OpEmbedding, model, req, cost)
}

// Rerank scores the request documents against the query.
func (c *Client) Rerank(ctx context.Context, model string, req *api.RerankRequest) (*api.RerankResponse, error) {
	cost := ratelimit.EstimateTokens(req.Query)
	for _, doc := range req.Documents {
		cost += ratelimit.EstimateTokens(doc)
	}
	return call[api.RerankResponse](ctx, c, OpRerank, model, req, cost)
}

// Text2Image generates images from the request prompt.
func (c *Client) Text2Image(ctx context.Context, model string, req *api.Text2ImageRequest) (*api.Text2ImageResponse, error) {
	return call[api.Text2ImageResponse](ctx, c, OpText2Image, model, req, ratelimit.EstimateTokens(req.Prompt))
}

// Plugin calls a plugin application by its endpoint slug.
func (c *Client) Plugin(ctx context.Context, slug string, req *api.PluginRequest) (*api.ChatResponse, error) {
	req.Stream = false
	return call[api.ChatResponse](ctx, c, OpPlugin, slug, req, ratelimit.EstimateTokens(req.Query))
}

// PluginStream calls a plugin application and returns the incremental
// response stream.
func (c *Client) PluginStream(ctx context.Context, slug string, req *api.PluginRequest) (*sse.Stream[api.ChatResponse], error) {
	req.Stream = true
	return callStream[api.ChatResponse](ctx, c, OpPlugin, slug, req, ratelimit.EstimateTokens(req.Query))
}

// chatCost estimates the token cost of a chat request for size-weighted
// rate limiting: the system prompt plus every message body.
func chatCost(req *api.ChatRequest) float64 {
	cost := ratelimit.EstimateTokens(req.System)
	for _, m := range req.Messages {
		cost += ratelimit.EstimateTokens(m.Content)
	}
	return cost
}
