// Package inference defines the Provider interface for text-inference
// backends used by the Lumina session pipeline.
//
// A provider wraps a remote completion API (Google Gemini, OpenAI, or any
// backend reachable through any-llm-go) and exposes a uniform interface for
// classification, answer extraction, analytical reports, and long-running
// media transcription without coupling callers to any specific SDK.
//
// Implementations must be safe for concurrent use. Channels returned by
// GenerateStream must be closed by the implementation when the stream ends
// or when the supplied context is cancelled.
package inference

import "context"

// Attachment is an inline binary payload sent alongside a prompt, typically
// a short audio chunk captured from a live source.
type Attachment struct {
	// Data is the raw payload bytes.
	Data []byte

	// MIMEType identifies the payload format (e.g., "audio/wav", "video/mp4").
	MIMEType string
}

// FileHandle references a media file previously registered with the
// provider via [FileStore.RegisterFile]. The zero value is not a valid handle.
type FileHandle struct {
	// Name is the provider-assigned resource name used for status polling
	// and deletion.
	Name string

	// URI is the provider-assigned content URI referenced in generation
	// requests.
	URI string

	// MIMEType is the detected or declared media type of the file.
	MIMEType string
}

// FileState is the processing state of a registered file.
type FileState string

const (
	// FileProcessing means the provider is still ingesting the file.
	FileProcessing FileState = "processing"

	// FileActive means the file is ready to be referenced in requests.
	FileActive FileState = "active"

	// FileFailed means the provider could not process the file. The handle
	// is unusable and should be unregistered.
	FileFailed FileState = "failed"
)

// Request carries everything a provider needs to produce a response.
// Prompt must be non-empty; Attachment and File are optional and mutually
// exclusive.
type Request struct {
	// Prompt is the instruction text.
	Prompt string

	// Attachment is an optional inline binary part. Providers without
	// multimodal support return [ErrMediaUnsupported].
	Attachment *Attachment

	// File optionally references a registered media file. Providers that do
	// not implement [FileStore] return [ErrMediaUnsupported].
	File *FileHandle

	// JSONOutput requests a strict-JSON response. Providers with native
	// structured-output support set the response MIME type; others enforce
	// it via instruction.
	JSONOutput bool
}

// Chunk is a single fragment emitted by a streaming generation.
// A terminal failure is delivered on the final chunk via Err; consumers must
// check it after draining the channel.
type Chunk struct {
	// Text is the incremental text content. May be empty on the final chunk
	// when it only carries Err.
	Text string

	// Err is non-nil on the final chunk when the stream ended abnormally.
	Err error
}

// Provider is the abstraction over any text-inference backend.
//
// Implementations must be safe for concurrent use. Generate and
// GenerateStream classify failures using the error types in this package:
// quota and network problems surface as [*TransientError] (after the
// provider's internal retry/rotation budget is exhausted), everything else
// as [*PermanentError].
type Provider interface {
	// Name reports the provider implementation name (e.g., "gemini").
	Name() string

	// Generate performs a blocking completion and returns the full response
	// text, trimmed.
	Generate(ctx context.Context, req Request) (string, error)

	// GenerateStream performs a completion whose output is delivered as a
	// lazy, finite, non-restartable sequence of text fragments. The returned
	// channel is closed when the stream ends; the last chunk carries any
	// terminal error.
	GenerateStream(ctx context.Context, req Request) (<-chan Chunk, error)
}

// FileStore is implemented by providers that support registering large
// media files for asynchronous processing. Callers obtain it via a type
// assertion on a [Provider].
type FileStore interface {
	// RegisterFile uploads the file at path and returns a handle for status
	// polling and generation requests. Network-class failures are retried
	// internally with fixed short backoff before surfacing as permanent.
	RegisterFile(ctx context.Context, path string) (FileHandle, error)

	// FileStatus reports the current processing state of a registered file.
	FileStatus(ctx context.Context, handle FileHandle) (FileState, error)

	// UnregisterFile deletes a registered file. Callers treat failures as
	// best-effort; see [CleanupOutcome].
	UnregisterFile(ctx context.Context, handle FileHandle) error
}

// CleanupOutcome records the result of a best-effort file cleanup so the
// suppression is explicit rather than silent. Callers log it and move on.
type CleanupOutcome struct {
	// Handle is the file the cleanup targeted.
	Handle FileHandle

	// Err is nil when the file was deleted (or was already gone).
	Err error
}

// OK reports whether the cleanup succeeded.
func (c CleanupOutcome) OK() bool { return c.Err == nil }
