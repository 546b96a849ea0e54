package seed

import (
	"context"
	"fmt"
	"net/http"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/pkg/logger"
)

// fetchTotal reads the unfiltered report total from GET /stats.
func fetchTotal(ctx context.Context, client *httpClient) (int, error) {
	var resp statsResponse
	status, err := client.get(ctx, "/stats", &resp)
	if err != nil {
		return 0, err
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("GET /stats returned status %d", status)
	}
	return resp.Total, nil
}

// verifyResults checks that the total grew by at least the accepted count.
// Other writers may add reports concurrently, so growth beyond it is fine.
func verifyResults(ctx context.Context, client *httpClient, before int, stats *Stats) error {
	after, err := fetchTotal(ctx, client)
	if err != nil {
		return fmt.Errorf("final statistics: %w", err)
	}
	stats.StoredTotal = after

	if grown := after - before; grown < stats.Successful {
		logger.Get().Error(ctx, "verification failed",
			logger.Int("before", before),
			logger.Int("after", after),
			logger.Int("accepted", stats.Successful))
		return fmt.Errorf("%w: accepted %d, total grew by %d", ErrVerification, stats.Successful, grown)
	}

	logger.Get().Info(ctx, "verification passed", logger.Int("before", before), logger.Int("after", after))
	return nil
}
