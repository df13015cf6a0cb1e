package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"

	"github.com/lingyun-ai/lingyun-go/pkg/api"
	"github.com/lingyun-ai/lingyun-go/pkg/client"
	"github.com/lingyun-ai/lingyun-go/pkg/config"
	"github.com/lingyun-ai/lingyun-go/pkg/ratelimit"
)

// The demo runs the full client pipeline against an in-process mock of
// the platform, so it needs no credentials or network.
func main() {
	fmt.Println("=== lingyun client demo ===")
	fmt.Println()

	mock := startMockPlatform()
	defer mock.Close()

	cfg := config.Defaults()
	cfg.Endpoint.BaseURL = mock.URL
	cfg.Credentials.APIKey = "demo-key"
	cfg.Credentials.APISecret = "demo-secret"
	cfg.Endpoint.IdentityURL = mock.URL
	cfg.Retry.BackoffFactor = 0.05

	c, err := client.New(&cfg)
	if err != nil {
		fmt.Printf("building client FAILED: %v\n", err)
		return
	}
	fmt.Println("[1] Client built: bearer-token credentials, default retry policy")

	ctx := context.Background()

	// 2. Non-streaming chat
	resp, err := c.ChatCompletion(ctx, "", &api.ChatRequest{
		Messages: []api.Message{{Role: api.RoleUser, Content: "What is the capital of France?"}},
	})
	if err != nil {
		fmt.Printf("chat FAILED: %v\n", err)
		return
	}
	fmt.Printf("\n[2] Chat result: %q (%d total tokens)\n", resp.Result, resp.Usage.TotalTokens)

	// 3. Streaming chat
	fmt.Println("\n[3] Streaming chat chunks:")
	stream, err := c.ChatCompletionStream(ctx, "lingyun-4", &api.ChatRequest{
		Messages: []api.Message{{Role: api.RoleUser, Content: "Count to three"}},
	})
	if err != nil {
		fmt.Printf("stream FAILED: %v\n", err)
		return
	}
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fmt.Printf("    stream error: %v\n", err)
			break
		}
		fmt.Printf("    chunk %d: %q (is_end=%v)\n", chunk.SentenceID, chunk.Result, chunk.IsEnd)
	}
	stream.Close()

	// 4. Transparent retry on a transient platform error
	fmt.Println("\n[4] Retry demo: the mock fails twice with 336100, then recovers")
	resp, err = c.Plugin(ctx, "flaky-app", &api.PluginRequest{Query: "retry me"})
	if err != nil {
		fmt.Printf("    FAILED: %v\n", err)
		return
	}
	fmt.Printf("    recovered result: %q\n", resp.Result)

	// 5. Error classification
	fmt.Println("\n[5] Error classification:")
	_, err = c.ChatCompletion(ctx, "no-such-model", &api.ChatRequest{})
	if apiErr, ok := api.AsAPIError(err); ok {
		fmt.Printf("    unknown model -> type=%s code=%d\n", apiErr.Type, apiErr.Code)
	}

	// 6. Token estimation used for tokens-per-minute limiting
	fmt.Println("\n[6] Token estimates:")
	for _, text := range []string{
		"hello world",
		"你好，世界",
		"mixed 中文 and English",
	} {
		fmt.Printf("    %-26q -> %.2f tokens\n", text, ratelimit.EstimateTokens(text))
	}

	fmt.Println("\n=== demo complete ===")
}

// startMockPlatform serves just enough of the platform API for the
// demo: the token grant, a chat endpoint, its streaming variant, and a
// flaky plugin endpoint that recovers on the third attempt.
func startMockPlatform() *httptest.Server {
	var pluginCalls atomic.Int32
	mux := http.NewServeMux()

	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(api.TokenResponse{AccessToken: "demo-token", ExpiresIn: 3600})
	})

	mux.HandleFunc("/v1/chat/", func(w http.ResponseWriter, r *http.Request) {
		var req api.ChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Stream {
			w.Header().Set("Content-Type", "text/event-stream")
			fl := w.(http.Flusher)
			for i, chunk := range []string{"one, ", "two, ", "three."} {
				data, _ := json.Marshal(api.ChatResponse{
					Result: chunk, SentenceID: i, IsEnd: i == 2,
				})
				fmt.Fprintf(w, "data: %s\n\n", data)
				fl.Flush()
			}
			fmt.Fprint(w, "data: [DONE]\n\n")
			return
		}
		json.NewEncoder(w).Encode(api.ChatResponse{
			ID:     "as-demo-1",
			Result: "The capital of France is Paris.",
			Usage:  &api.Usage{PromptTokens: 7, CompletionTokens: 7, TotalTokens: 14},
		})
	})

	mux.HandleFunc("/v1/plugin/flaky-app", func(w http.ResponseWriter, r *http.Request) {
		if pluginCalls.Add(1) <= 2 {
			json.NewEncoder(w).Encode(api.ErrorPayload{
				ErrorCode: api.CodeServerHighLoad,
				ErrorMsg:  "server is under high load",
			})
			return
		}
		json.NewEncoder(w).Encode(api.ChatResponse{Result: "third time lucky"})
	})

	return httptest.NewServer(mux)
}
