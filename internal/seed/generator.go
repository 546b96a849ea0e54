package seed

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/farpkdpasirmas-lang/MedSafetyPro/pkg/logger"
)

// Vocabularies the generator draws from. Outcomes are weighted towards
// near misses the way real incident logs are.
var (
	settings   = []string{"ae", "outpatient", "pharmacy"}
	detections = []string{"Pharmacist", "Nurse", "Doctor", "Patient", "Self-detected"}
	outcomes   = []struct {
		label  string
		weight int
	}{
		{"Category A: No error, circumstances with capacity to cause error", 20},
		{"Category B: Error, no harm, did not reach patient", 45},
		{"Category C: Error reached patient, no harm", 25},
		{"Category E: Error, temporary harm requiring intervention", 8},
		{"Category G: Error, permanent harm", 2},
	}
	staffCategories = []string{"Medical Officer", "Pharmacist", "Assistant Medical Officer", "Staff Nurse", "Pharmacy Assistant"}
	clinicErrors    = []string{"Wrong dose", "Wrong drug", "Wrong patient", "Incomplete prescription", "Illegible prescription", "Wrong frequency"}
	pharmacyErrors  = []string{"Wrong quantity dispensed", "Wrong label", "Wrong strength", "Expired drug", "Wrong formulation"}
	staffNames      = []string{"Aisyah", "Farid", "Mei Ling", "Ravi", "Nurul", "Hafiz", "Siti", "Kumar"}
)

// Generator builds plausible reports from a seeded source so runs repeat.
type Generator struct {
	rng        *rand.Rand
	facilities []string
	days       int
	now        func() time.Time
}

// NewGenerator creates a Generator. A zero seed is replaced by the clock.
func NewGenerator(seed uint64, facilities []string, days int, now func() time.Time) *Generator {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	if days < 1 {
		days = defaultDays
	}
	if now == nil {
		now = time.Now
	}
	if len(facilities) == 0 {
		facilities = []string{"Demo Facility"}
	}
	return &Generator{
		rng:        rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		facilities: facilities,
		days:       days,
		now:        now,
	}
}

// Generate returns n reports. It checks ctx between reports.
func (g *Generator) Generate(ctx context.Context, n int) ([]Report, error) {
	logger.Get().Info(ctx, "generating reports", logger.Int("numReports", n))

	out := make([]Report, 0, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during report generation: %w", err)
		}
		out = append(out, g.one(i))
	}

	logger.Get().Info(ctx, "generated reports successfully", logger.Int("count", len(out)))
	return out, nil
}

func (g *Generator) one(index int) Report {
	setting := pick(g.rng, settings)
	at := g.now().Add(-time.Duration(g.rng.IntN(g.days*24*60)) * time.Minute)
	name := pick(g.rng, staffNames)

	r := Report{
		Facility:      pick(g.rng, g.facilities),
		Setting:       setting,
		Detection:     pick(g.rng, detections),
		Outcome:       g.outcome(),
		StaffCategory: pick(g.rng, staffCategories),
		StaffName:     name,
		ReporterName:  "seed-" + strconv.Itoa(index),
		Description:   "Synthetic report " + uuid.NewString(),
		Date:          at.Format("2006-01-02"),
		Time:          at.Format("15:04"),
	}
	// Pharmacy reports carry dispensing errors; the other units carry
	// prescribing errors and occasionally both.
	if setting == "pharmacy" {
		r.PharmacyErrors = pickSome(g.rng, pharmacyErrors)
	} else {
		r.ClinicErrors = pickSome(g.rng, clinicErrors)
		if g.rng.IntN(4) == 0 {
			r.PharmacyErrors = pickSome(g.rng, pharmacyErrors)
		}
	}
	return r
}

func (g *Generator) outcome() string {
	total := 0
	for _, o := range outcomes {
		total += o.weight
	}
	n := g.rng.IntN(total)
	for _, o := range outcomes {
		if n < o.weight {
			return o.label
		}
		n -= o.weight
	}
	return outcomes[len(outcomes)-1].label
}

func pick(rng *rand.Rand, from []string) string {
	return from[rng.IntN(len(from))]
}

// pickSome returns one to three distinct entries.
func pickSome(rng *rand.Rand, from []string) []string {
	n := 1 + rng.IntN(minInt(3, len(from)))
	idx := rng.Perm(len(from))[:n]
	out := make([]string, n)
	for i, j := range idx {
		out[i] = from[j]
	}
	return out
}

// minInt returns the minimum of two integers.
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
