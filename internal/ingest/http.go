package ingest

import (
	"context"
	"errors"

	"github.com/AngelCh415/campaign-health/internal/utils"
)

// GetJSONWithRetry retries transport errors, 5xx and 429. Other non-2xx
// answers fail at once.
func GetJSONWithRetry(ctx context.Context, c HTTPClient, b utils.Backoff, url, token string, dst any) error {
	return b.Do(ctx, func(int) error {
		err := getJSON(ctx, c, url, token, dst)
		if err == nil {
			return nil
		}
		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return utils.Permanent(err)
		}
		if ctx.Err() != nil {
			return utils.Permanent(err)
		}
		return err
	})
}
