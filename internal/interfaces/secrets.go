package interfaces

import (
	"context"
)

// SecretResolver reads one field of a JSON secret referenced by id or ARN.
type SecretResolver interface {
	Resolve(ctx context.Context, secretID, field string) (string, error)
}
