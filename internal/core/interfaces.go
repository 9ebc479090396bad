package core

import "context"

// TextGenerator abstracts the text-generation collaborator (OpenRouter, local
// LLM, etc). Both calls may fail; callers decide what a failure means.
type TextGenerator interface {
	// GenerateText sends a system prompt and user prompt, returns raw text.
	GenerateText(ctx context.Context, systemPrompt, prompt string) (string, error)
	// GenerateStructured asks for output conforming to the given JSON schema
	// and unmarshals the result into out.
	GenerateStructured(ctx context.Context, systemPrompt, prompt string, schema map[string]interface{}, out interface{}) error
}

// Executor runs a job's input and produces its output text. The actual
// execution engine (sandboxed code, agent loop, ...) lives outside this core.
type Executor interface {
	Execute(ctx context.Context, job Job) (string, error)
}

// Notifier pushes a completed job result back to its originating chat.
// The channel protocol lives outside this core.
type Notifier interface {
	Notify(ctx context.Context, job Job) error
}
