// Package backend adapts prompt payloads to concrete model providers.
package backend

import (
	"context"

	"github.com/datasen-project/datasen/internal/prompt"
)

// Invoker is the model-invocation collaborator. Implementations serialize
// the payload for their provider and must honor ctx cancellation.
type Invoker interface {
	Invoke(ctx context.Context, p *prompt.Payload) (string, error)
}
