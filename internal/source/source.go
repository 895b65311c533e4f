package source

import (
	"context"
)

// Provider fetches raw log records from wherever they live. Records are
// untyped maps; the normalizer owns turning them into events.
type Provider interface {
	Fetch(ctx context.Context) ([]map[string]interface{}, error)
}
