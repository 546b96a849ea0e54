// Package seed generates synthetic medication-error reports and submits them
// to a running service, for demos and load checks.
package seed

import "time"

// Config holds configuration for a seeding run.
type Config struct {
	BaseURL       string        // Base URL of the service
	NumReports    int           // Number of reports to generate
	Workers       int           // Number of concurrent submitters
	Timeout       time.Duration // HTTP request timeout
	RatePerMinute int           // Client-side submit budget, 0 for unlimited
	Days          int           // Event dates are spread over this many past days
	Facilities    []string      // Facility names to draw from; empty asks the service
	Seed          uint64        // Generator seed, 0 picks one from the clock
	OutputFile    string        // Optional JSON dump of the generated reports
	Verbose       bool          // Log every failed submission
}

// Report is the submit payload for POST /reports.
type Report struct {
	Facility       string   `json:"facility"`
	Setting        string   `json:"setting"`
	Detection      string   `json:"detection"`
	Outcome        string   `json:"outcome"`
	StaffCategory  string   `json:"staffCategory"`
	StaffName      string   `json:"staffName"`
	StaffEmail     string   `json:"staffEmail,omitempty"`
	ReporterName   string   `json:"reporterName"`
	Description    string   `json:"description"`
	Date           string   `json:"date"`
	Time           string   `json:"time"`
	ClinicErrors   []string `json:"clinicErrors"`
	PharmacyErrors []string `json:"pharmacyErrors"`
}

// Stats holds run statistics.
type Stats struct {
	Generated   int
	Submitted   int
	Successful  int
	Rejected    int // 4xx other than 429
	Throttled   int // 429
	Failed      int // transport errors and 5xx
	StoredTotal int // total reported by GET /stats after the run
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
}

// submitResult buckets a single submission outcome.
type submitResult int

const (
	resultSuccess submitResult = iota
	resultRejected
	resultThrottled
	resultFailed
)

// statsResponse is the subset of GET /stats the verifier reads.
type statsResponse struct {
	Total    int            `json:"total"`
	Severity map[string]int `json:"severity"`
}
