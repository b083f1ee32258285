package fetcher

import (
	"context"
	"encoding/json"
)

// StatusFetcher retrieves homework statuses updated since the given unix timestamp.
type StatusFetcher interface {
	FetchStatuses(ctx context.Context, since int64) (json.RawMessage, error)
}
