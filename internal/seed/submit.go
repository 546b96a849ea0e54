package seed

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/pkg/logger"
)

// submitReports posts reports concurrently using a worker pool.
func submitReports(ctx context.Context, config *Config, client *httpClient, reports []Report, stats *Stats) {
	log := logger.Get()
	log.Info(ctx, "submitting reports", logger.Int("count", len(reports)), logger.Int("workers", config.Workers))

	var limiter *rate.Limiter
	if config.RatePerMinute > 0 {
		limiter = rate.NewLimiter(rate.Limit(float64(config.RatePerMinute)/60), 1)
	}

	var counts [resultFailed + 1]int64
	var submitted int64
	var lastReport atomic.Int64

	reportChan := make(chan Report, config.Workers*workerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range reportChan {
				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						return
					}
				}
				res := submitSingleReport(ctx, client, r)
				if res != resultSuccess && config.Verbose {
					log.Warn(ctx, "report submission not accepted", logger.Int("result", int(res)), logger.String("reporter", r.ReporterName))
				}
				atomic.AddInt64(&counts[res], 1)
				total := atomic.AddInt64(&submitted, 1)

				now := time.Now().UnixNano()
				last := lastReport.Load()
				if now-last >= int64(progressInterval) && lastReport.CompareAndSwap(last, now) {
					log.Info(ctx, "progress",
						logger.Int("submitted", int(total)),
						logger.Int("of", len(reports)),
						logger.Int("successful", int(atomic.LoadInt64(&counts[resultSuccess]))))
				}
			}
		}()
	}

	go func() {
		defer close(reportChan)
		for _, r := range reports {
			select {
			case <-ctx.Done():
				return
			case reportChan <- r:
			}
		}
	}()

	wg.Wait()

	stats.Submitted = int(atomic.LoadInt64(&submitted))
	stats.Successful = int(counts[resultSuccess])
	stats.Rejected = int(counts[resultRejected])
	stats.Throttled = int(counts[resultThrottled])
	stats.Failed = int(counts[resultFailed])

	log.Info(ctx, "report submission completed",
		logger.Int("successful", stats.Successful),
		logger.Int("rejected", stats.Rejected),
		logger.Int("throttled", stats.Throttled),
		logger.Int("failed", stats.Failed))
}

// submitSingleReport posts one report and buckets the reply.
func submitSingleReport(ctx context.Context, client *httpClient, r Report) submitResult {
	status, err := client.post(ctx, "/reports", r, nil)
	switch {
	case err != nil:
		return resultFailed
	case status == http.StatusCreated:
		return resultSuccess
	case status == http.StatusTooManyRequests:
		return resultThrottled
	case status >= http.StatusBadRequest && status < http.StatusInternalServerError:
		return resultRejected
	default:
		return resultFailed
	}
}
