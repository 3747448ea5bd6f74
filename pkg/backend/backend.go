// Package backend dispatches chat and speech-synthesis requests to the
// language-model backends.
//
// Two chat providers are supported: a cloud provider speaking the standard
// chat-completion envelope with bearer-token auth against a fixed endpoint,
// and a local provider speaking the companion model server's own shape
// against a caller-configured endpoint. SynthesizeSpeech posts text to the
// synthesis server and decodes the binary reply through pkg/wav.
//
// The dispatcher never retries; retry policy belongs to the caller.
package backend

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in the conversation history, sent verbatim to the
// backend in chronological order.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Provider selects the chat backend variant.
type Provider string

const (
	// ProviderCloud is the hosted chat-completion API (bearer auth, fixed
	// endpoint).
	ProviderCloud Provider = "cloud"

	// ProviderLocal is the self-hosted companion model server
	// (caller-supplied endpoint, no auth).
	ProviderLocal Provider = "local"
)

// ChatRequest carries one chat dispatch. Endpoint is required for the local
// provider and ignored for the cloud provider.
type ChatRequest struct {
	Provider Provider
	Model    string
	Endpoint string
	Messages []Message
}

// Sampling parameters the local provider includes with every request.
// They mirror the model server's own defaults.
const (
	localMaxNewTokens = 128
	localTemperature  = 0.7
	localTopP         = 0.9
)

// speechLanguage is the fixed language tag sent with synthesis requests.
const speechLanguage = "zh"
