package loadtest

import (
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Amount ranges, picked uniformly: average, high, low, elite, very low,
// mid-high, mid-low and anything.
var amountBands = [][2]float64{
	{3, 7},
	{7, 9},
	{0.1, 3},
	{9, 10},
	{0.1, 1},
	{6, 8},
	{2, 4},
	{0.1, 10},
}

const (
	maxAge = 7 * 24 * time.Hour
	// Amounts are multiples of a quarter so totals sum exactly.
	minAmount = 0.25
)

// generate creates cfg.Contributions contributions spread over cfg.Subjects
// subjects. Subject ids carry a per-run prefix so runs never collide.
func generate(cfg Config, now time.Time) []Contribution {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(now.UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed>>1|1))

	run := uuid.NewString()[:8]
	subjects := make([]string, cfg.Subjects)
	for i := range subjects {
		subjects[i] = run + "-subject-" + strconv.Itoa(i)
	}

	out := make([]Contribution, cfg.Contributions)
	for i := range out {
		band := amountBands[rng.IntN(len(amountBands))]
		amount := band[0] + rng.Float64()*(band[1]-band[0])
		age := time.Duration(rng.Int64N(int64(maxAge)))
		out[i] = Contribution{
			ID:        uuid.NewString(),
			SubjectID: subjects[rng.IntN(len(subjects))],
			Amount:    math.Max(minAmount, math.Round(amount*4)/4),
			CreatedAt: now.Add(-age).UTC().Format(time.RFC3339),
		}
	}
	return out
}
