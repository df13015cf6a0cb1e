package client

import (
	"fmt"

	"github.com/lingyun-ai/lingyun-go/pkg/api"
)

// Operation is one endpoint family on the platform. The request path
// is /v1/{operation}/{endpoint slug}.
type Operation string

const (
	OpChat       Operation = "chat"
	OpCompletion Operation = "completions"
	OpEmbedding  Operation = "embeddings"
	OpRerank     Operation = "rerankers"
	OpText2Image Operation = "text2image"
	OpPlugin     Operation = "plugin"
)

// builtinEndpoints maps a public model name to its endpoint slug per
// operation. Models added to the platform after this SDK release are
// reachable through WithModelEndpoint overrides.
var builtinEndpoints = map[Operation]map[string]string{
	OpChat: {
		"lingyun-4":       "lingyun-4",
		"lingyun-4-turbo": "lingyun-4-turbo",
		"lingyun-lite":    "lingyun-lite-8k",
		"lingyun-speed":   "lingyun-speed-128k",
	},
	OpCompletion: {
		"lingyun-text": "lingyun-text",
	},
	OpEmbedding: {
		"embedding-v1": "embedding-v1",
	},
	OpRerank: {
		"reranker-base": "reranker-base",
	},
	OpText2Image: {
		"image-v1": "image-v1",
	},
	OpPlugin: {
		// Plugin applications are addressed by their own slug; any
		// name passes through unchanged.
	},
}

// DefaultChatModel is used when a chat call names no model.
const DefaultChatModel = "lingyun-lite"

// resolveEndpoint maps (operation, model) to a request path. Client
// overrides win over the built-in registry; plugin slugs pass through.
func (c *Client) resolveEndpoint(op Operation, model string) (string, error) {
	if slug, ok := c.endpointOverrides[endpointKey{op, model}]; ok {
		return fmt.Sprintf("/v1/%s/%s", op, slug), nil
	}
	if op == OpPlugin {
		return fmt.Sprintf("/v1/%s/%s", op, model), nil
	}
	if slug, ok := builtinEndpoints[op][model]; ok {
		return fmt.Sprintf("/v1/%s/%s", op, slug), nil
	}
	return "", api.NewFatalError(api.CodeUnsupportedModel,
		fmt.Sprintf("no %s endpoint registered for model %q", op, model))
}

type endpointKey struct {
	op    Operation
	model string
}
