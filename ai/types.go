package ai

import "context"

// CompletionRequest is one question for the completion service, addressed to
// a specific backend/engine pair, with the chat's prior turns attached.
type CompletionRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	Backend   string `json:"backend"`
	Engine    string `json:"engine"`
	History   []Turn `json:"history,omitempty"`
}

// Turn is one prior message in the conversation, already decrypted.
type Turn struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// Completer generates a response for a question. Implemented by
// CompletionClient; callers depend on the interface so tests can stub it.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ModelInfo describes one selectable model in the catalog
type ModelInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Backend string `json:"backend"`
}

// Models is the catalog of selectable completion models. The first entry is
// the default when a send request names no engine.
var Models = []ModelInfo{
	{ID: "llama-3.3-70b-versatile", Name: "LLAMA 3.3", Backend: "Groq"},
	{ID: "gemma2-9b-it", Name: "GOOGLE GEMMA 2", Backend: "Groq"},
	{ID: "deepseek-r1-distill-llama-70b", Name: "DEEPSEEK R1(REASONING)", Backend: "Groq"},
	{ID: "llama-3.2-90b-vision-preview", Name: "LLAMA 3.2", Backend: "Groq"},
}

// DefaultModel returns the catalog's default model
func DefaultModel() ModelInfo {
	return Models[0]
}
