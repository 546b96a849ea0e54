package seed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/pkg/logger"
)

// Errors returned by Run.
var (
	ErrUnhealthy    = errors.New("service is not healthy")
	ErrVerification = errors.New("seeded reports not visible in statistics")
)

// Run executes a complete seeding run and returns its statistics.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	applyDefaults(config)
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()

	log.Info(ctx, "starting report seeding",
		logger.String("baseURL", config.BaseURL),
		logger.Int("reports", config.NumReports),
		logger.Int("workers", config.Workers),
		logger.Int("ratePerMinute", config.RatePerMinute),
		logger.String("timeout", config.Timeout.String()))

	client := newHTTPClient(config.BaseURL, config.Timeout)

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, client); err != nil {
		return stats, err
	}

	// Step 2: Read the baseline so verification ignores existing data
	before, err := fetchTotal(ctx, client)
	if err != nil {
		return stats, fmt.Errorf("baseline statistics: %w", err)
	}

	// Step 3: Generate reports against the service's facility list
	facilities := config.Facilities
	if len(facilities) == 0 {
		if _, err := client.get(ctx, "/facilities", &facilities); err != nil {
			log.Warn(ctx, "failed to read facilities; using defaults", logger.Error(err))
		}
	}
	reports, err := NewGenerator(config.Seed, facilities, config.Days, nil).Generate(ctx, config.NumReports)
	if err != nil {
		return stats, fmt.Errorf("report generation failed: %w", err)
	}
	stats.Generated = len(reports)

	// Step 4: Submit reports concurrently
	submitReports(ctx, config, client, reports, stats)

	// Step 5: Verify the statistics picked up every accepted report
	if err := verifyResults(ctx, client, before, stats); err != nil {
		return stats, err
	}

	// Step 6: Save reports to file
	if config.OutputFile != "" {
		if err := saveReportsToFile(ctx, config.OutputFile, reports); err != nil {
			log.Warn(ctx, "failed to save reports to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

func applyDefaults(config *Config) {
	if config.Workers < 1 {
		config.Workers = defaultWorkers
	}
	if config.Days < 1 {
		config.Days = defaultDays
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, client *httpClient) error {
	status, err := client.get(ctx, "/healthz", nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, status)
	}
	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// saveReportsToFile writes the generated reports as a JSON array.
func saveReportsToFile(ctx context.Context, filename string, reports []Report) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal reports: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	logger.Get().Info(ctx, "reports saved to file", logger.String("filename", filename))
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var successRate, reportsPerSecond float64
	if stats.Submitted > 0 {
		successRate = float64(stats.Successful) / float64(stats.Submitted) * percentageMultiplier
	}
	if stats.Duration > 0 {
		reportsPerSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("successful", stats.Successful),
		logger.Int("rejected", stats.Rejected),
		logger.Int("throttled", stats.Throttled),
		logger.Int("failed", stats.Failed),
		logger.Int("storedTotal", stats.StoredTotal),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("reportsPerSecond", reportsPerSecond))
}
