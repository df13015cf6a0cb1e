package api

// Message is a single turn in a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Role constants for chat messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleFunction  = "function"
)

// ChatRequest is the body for a chat endpoint call.
type ChatRequest struct {
	Messages        []Message      `json:"messages"`
	Stream          bool           `json:"stream,omitempty"`
	Temperature     float64        `json:"temperature,omitempty"`
	TopP            float64        `json:"top_p,omitempty"`
	PenaltyScore    float64        `json:"penalty_score,omitempty"`
	System          string         `json:"system,omitempty"`
	MaxOutputTokens int            `json:"max_output_tokens,omitempty"`
	UserID          string         `json:"user_id,omitempty"`
	Extra           map[string]any `json:"extra_parameters,omitempty"`
}

// CompletionRequest is the body for a plain text completion call.
type CompletionRequest struct {
	Prompt      string  `json:"prompt"`
	Stream      bool    `json:"stream,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	UserID      string  `json:"user_id,omitempty"`
}

// EmbeddingRequest is the body for an embedding call.
type EmbeddingRequest struct {
	Input  []string `json:"input"`
	UserID string   `json:"user_id,omitempty"`
}

// RerankRequest is the body for a rerank call.
type RerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n,omitempty"`
	UserID    string   `json:"user_id,omitempty"`
}

// Text2ImageRequest is the body for a text-to-image call.
type Text2ImageRequest struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Size           string `json:"size,omitempty"`
	N              int    `json:"n,omitempty"`
	UserID         string `json:"user_id,omitempty"`
}

// PluginRequest is the body for a plugin application call.
type PluginRequest struct {
	Query    string         `json:"query"`
	Plugins  []string       `json:"plugins,omitempty"`
	Stream   bool           `json:"stream,omitempty"`
	Verbose  bool           `json:"verbose,omitempty"`
	Extra    map[string]any `json:"extra_parameters,omitempty"`
	UserID   string         `json:"user_id,omitempty"`
}

// Usage reports token consumption for one response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is one chat result: the whole answer for a non-streaming
// call, or one incremental chunk of it for a streaming call.
type ChatResponse struct {
	ID               string `json:"id"`
	Object           string `json:"object"`
	Created          int64  `json:"created"`
	SentenceID       int    `json:"sentence_id,omitempty"`
	IsEnd            bool   `json:"is_end,omitempty"`
	IsTruncated      bool   `json:"is_truncated,omitempty"`
	Result           string `json:"result"`
	NeedClearHistory bool   `json:"need_clear_history,omitempty"`
	FinishReason     string `json:"finish_reason,omitempty"`
	Usage            *Usage `json:"usage,omitempty"`

	// Error fields are set when the platform reports an application
	// error inside an otherwise-200 body.
	ErrorCode int    `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`
}

// EmbeddingData is one embedding vector in an EmbeddingResponse.
type EmbeddingData struct {
	Object    string    `json:"object"`
	Embedding []float64 `json:"embedding"`
	Index     int       `json:"index"`
}

// EmbeddingResponse is the result of an embedding call.
type EmbeddingResponse struct {
	ID        string          `json:"id"`
	Object    string          `json:"object"`
	Created   int64           `json:"created"`
	Data      []EmbeddingData `json:"data"`
	Usage     *Usage          `json:"usage,omitempty"`
	ErrorCode int             `json:"error_code,omitempty"`
	ErrorMsg  string          `json:"error_msg,omitempty"`
}

// RerankResult is one scored document in a RerankResponse.
type RerankResult struct {
	Document       string  `json:"document"`
	RelevanceScore float64 `json:"relevance_score"`
	Index          int     `json:"index"`
}

// RerankResponse is the result of a rerank call.
type RerankResponse struct {
	ID        string         `json:"id"`
	Object    string         `json:"object"`
	Created   int64          `json:"created"`
	Results   []RerankResult `json:"results"`
	Usage     *Usage         `json:"usage,omitempty"`
	ErrorCode int            `json:"error_code,omitempty"`
	ErrorMsg  string         `json:"error_msg,omitempty"`
}

// ImageData is one generated image in a Text2ImageResponse.
type ImageData struct {
	Object string `json:"object"`
	B64    string `json:"b64_image"`
	Index  int    `json:"index"`
}

// Text2ImageResponse is the result of a text-to-image call.
type Text2ImageResponse struct {
	ID        string      `json:"id"`
	Object    string      `json:"object"`
	Created   int64       `json:"created"`
	Data      []ImageData `json:"data"`
	Usage     *Usage      `json:"usage,omitempty"`
	ErrorCode int         `json:"error_code,omitempty"`
	ErrorMsg  string      `json:"error_msg,omitempty"`
}

// TokenResponse is the identity endpoint's reply to a client_credentials
// grant.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	Error       string `json:"error,omitempty"`
	ErrorDesc   string `json:"error_description,omitempty"`
}
