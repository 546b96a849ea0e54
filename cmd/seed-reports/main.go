package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/internal/seed"
	"github.com/farpkdpasirmas-lang/MedSafetyPro/pkg/logger"
)

// Default configuration constants.
const (
	defaultNumReports = 500
	defaultWorkers    = 2 // multiplier for runtime.NumCPU()
	defaultTimeout    = 30 * time.Second
	defaultDays       = 30
	defaultRunTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		numReports = flag.Int("reports", defaultNumReports, "Number of reports to generate and submit")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		rpm        = flag.Int("rate", 0, "Client-side submissions per minute, 0 for unlimited")
		days       = flag.Int("days", defaultDays, "Spread event dates over this many past days")
		facilities = flag.String("facilities", "", "Comma separated facilities (default: ask the service)")
		seedValue  = flag.Uint64("seed", 0, "Generator seed (default: derived from the clock)")
		outputFile = flag.String("output", "", "Write the generated reports to this JSON file")
		verbose    = flag.Bool("verbose", false, "Log every rejected submission")
	)
	flag.Parse()

	if err := logger.Init(logger.WithFormat("console"), logger.WithServiceName("medsafety-seed")); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	config := &seed.Config{
		BaseURL:       strings.TrimRight(*baseURL, "/"),
		NumReports:    *numReports,
		Workers:       *workers,
		Timeout:       *timeout,
		RatePerMinute: *rpm,
		Days:          *days,
		Facilities:    splitList(*facilities),
		Seed:          *seedValue,
		OutputFile:    *outputFile,
		Verbose:       *verbose,
	}

	if _, err := seed.Run(ctx, config); err != nil {
		logger.Get().Error(ctx, "seeding failed", logger.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
