// Package model defines the provider-agnostic request/response types the
// Arbiter uses to talk to its LLM oracle. A Client is a strict
// text-in/text-out boundary: one prompt produces one completion, optionally
// streamed as chunks. It intentionally does not model multimodal parts,
// provider tool-calling, or prompt caching — the Arbiter never delegates
// tool execution to the model itself, it only ever asks for a single block
// of RTFS or JSON text back.
package model

import (
	"context"
	"errors"
)

type (
	// Message is a single turn in the prompt transcript handed to the model.
	Message struct {
		Role ConversationRole
		Text string
	}

	// ConversationRole identifies the speaker of a Message.
	ConversationRole string

	// Request captures a single completion request.
	Request struct {
		// Model selects a concrete provider model identifier. Empty defers to
		// the client's configured default.
		Model string
		// Messages is the ordered prompt transcript.
		Messages []Message
		// Temperature controls sampling when the provider supports it.
		Temperature float32
		// MaxTokens caps the number of output tokens when supported.
		MaxTokens int
	}

	// TokenUsage reports token accounting for a completion.
	TokenUsage struct {
		InputTokens  int
		OutputTokens int
		TotalTokens  int
	}

	// Response is the result of a non-streaming completion.
	Response struct {
		// Text is the model's full completion text.
		Text string
		// Usage reports token consumption for the request.
		Usage TokenUsage
		// StopReason records why generation stopped (provider-specific).
		StopReason string
	}

	// Chunk is one incremental event from a streaming completion.
	Chunk struct {
		// Text carries an incremental text fragment when non-empty.
		Text string
		// Done reports whether this is the terminal chunk.
		Done bool
		// StopReason is set on the terminal chunk.
		StopReason string
	}

	// Streamer delivers incremental completion output.
	//
	// Callers must drain Recv until it returns io.EOF or another terminal
	// error, then call Close.
	Streamer interface {
		Recv() (Chunk, error)
		Close() error
	}

	// Client is the provider-agnostic model oracle the Arbiter prompts.
	//
	// Implementations translate Requests into provider calls; operators may
	// register any Client, vendor-specific or otherwise.
	Client interface {
		// Complete performs a non-streaming model invocation.
		Complete(ctx context.Context, req Request) (Response, error)
		// Stream performs a streaming model invocation when supported.
		Stream(ctx context.Context, req Request) (Streamer, error)
	}
)

const (
	ConversationRoleSystem    ConversationRole = "system"
	ConversationRoleUser      ConversationRole = "user"
	ConversationRoleAssistant ConversationRole = "assistant"
)

// ErrStreamingUnsupported indicates the provider does not support streaming.
var ErrStreamingUnsupported = errors.New("model: streaming not supported")
