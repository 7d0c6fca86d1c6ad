// Package model provides the backend interface and the provider router.
package model

import (
	"context"

	"github.com/flynn-ai/llmgate/pkg/protocol"
)

// Backend is a chat completion provider.
type Backend interface {
	// Chat sends the conversation and returns the assistant reply.
	Chat(ctx context.Context, req *Request) (*Response, error)

	// Models lists the model identifiers this backend advertises.
	Models() []string

	// Name returns the provider name.
	Name() string
}

// Info describes a backend for the providers listing.
func Info(b Backend, available bool) protocol.ProviderInfo {
	return protocol.ProviderInfo{
		Name:      b.Name(),
		Available: available,
		Models:    append([]string(nil), b.Models()...),
	}
}
