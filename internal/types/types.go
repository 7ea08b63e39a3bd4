package types

// Context is the server-owned conversation state. Clients echo it back
// verbatim and never inspect it.
type Context map[string]any

// InitMessage opens a conversation; it is always sent with an empty context.
const InitMessage = "init"

type ChatRequest struct {
	Message string  `json:"message"`
	Context Context `json:"context"`
}

type ChatResponse struct {
	Message string   `json:"message,omitempty"`
	Options []string `json:"options,omitempty"`
	Context Context  `json:"context"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// HistoryMessage is one stored transcript line as served by /chat/history.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type HistoryResponse struct {
	SessionID string           `json:"sessionId"`
	Messages  []HistoryMessage `json:"messages"`
}
