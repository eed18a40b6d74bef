// Package gemini implements [model.Backend] for the Google Gemini API.
//
// It wraps the google.golang.org/genai SDK, translating between the chat
// domain types and the Gemini API types. Streaming uses the SDK's iter.Seq2
// iterator, wrapped into the pull-based [model.Stream] interface.
package gemini

const (
	defaultModel     = "gemini-2.0-flash"
	defaultMaxTokens = 8192
)
