package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"github.com/lumina-live/lumina/pkg/provider/inference"
)

const (
	// uploadRetries bounds how often a network-glitched upload is retried.
	uploadRetries = 3

	// uploadBackoff is the fixed delay between upload retries.
	uploadBackoff = 2 * time.Second
)

// RegisterFile implements inference.FileStore. Network-class failures
// during the upload handshake are retried with fixed short backoff; once
// the retry budget is spent the failure surfaces as permanent. Quota-class
// failures go through credential rotation like any other call.
func (p *Provider) RegisterFile(ctx context.Context, path string) (inference.FileHandle, error) {
	var handle inference.FileHandle

	err := p.withRotation(func(client *genai.Client) error {
		var lastErr error
		for attempt := 1; attempt <= uploadRetries; attempt++ {
			file, err := client.Files.UploadFromPath(ctx, path, nil)
			if err == nil {
				handle = inference.FileHandle{
					Name:     file.Name,
					URI:      file.URI,
					MIMEType: file.MIMEType,
				}
				return nil
			}
			lastErr = err
			if !isNetworkErr(err) {
				return err
			}
			slog.Warn("gemini upload network glitch, retrying",
				"path", path, "attempt", attempt, "max", uploadRetries)
			select {
			case <-time.After(uploadBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return &inference.PermanentError{
			Err: fmt.Errorf("upload %q failed after %d attempts: %w", path, uploadRetries, lastErr),
		}
	})
	if err != nil {
		return inference.FileHandle{}, err
	}

	slog.Debug("registered file", "path", path, "name", handle.Name)
	return handle, nil
}

// FileStatus implements inference.FileStore.
func (p *Provider) FileStatus(ctx context.Context, handle inference.FileHandle) (inference.FileState, error) {
	var state inference.FileState
	err := p.withRotation(func(client *genai.Client) error {
		file, err := client.Files.Get(ctx, handle.Name, nil)
		if err != nil {
			return err
		}
		switch file.State {
		case genai.FileStateActive:
			state = inference.FileActive
		case genai.FileStateFailed:
			state = inference.FileFailed
		default:
			state = inference.FileProcessing
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return state, nil
}

// UnregisterFile implements inference.FileStore.
func (p *Provider) UnregisterFile(ctx context.Context, handle inference.FileHandle) error {
	return p.withRotation(func(client *genai.Client) error {
		_, err := client.Files.Delete(ctx, handle.Name, nil)
		return err
	})
}
