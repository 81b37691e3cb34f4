// Package rating implements the pairwise skill-update math used for league
// ladders: Gaussian ratings, two-player and two-team updates, win
// probabilities and match quality. Pure functions only; persistence and match
// semantics live with the callers.
package rating

import (
	"fmt"
	"math"
)

// League-wide system constants.
const (
	DefaultMu    = 25.0
	DefaultSigma = 8.333
	DefaultBeta  = 4.1667
	DefaultTau   = 0.083333
)

// Rating is one player's skill distribution on a single track.
type Rating struct {
	Mu    float64
	Sigma float64
}

// ConfidentMu is the conservative display value (mean minus three
// uncertainties). Not used by the update math.
func (r Rating) ConfidentMu() float64 {
	return r.Mu - 3*r.Sigma
}

// Outcome declares the result of a rated comparison from the first
// player's/team's perspective.
type Outcome int

const (
	Win Outcome = iota
	Loss
	Draw
)

// Env fixes the system constants for a batch of updates. DrawProbability is a
// per-batch decision, not a global: callers construct one Env per document
// and per track family.
type Env struct {
	Mu              float64
	Sigma           float64
	Beta            float64
	Tau             float64
	DrawProbability float64
}

// NewEnv returns an Env with the league defaults and the given draw
// probability.
func NewEnv(drawProbability float64) Env {
	return Env{
		Mu:              DefaultMu,
		Sigma:           DefaultSigma,
		Beta:            DefaultBeta,
		Tau:             DefaultTau,
		DrawProbability: drawProbability,
	}
}

// NewRating returns the default distribution for an unrated player.
func (e Env) NewRating() Rating {
	return Rating{Mu: e.Mu, Sigma: e.Sigma}
}

// Rate1v1 rates a singles comparison. The outcome is given from a's
// perspective.
func (e Env) Rate1v1(a, b Rating, outcome Outcome) (Rating, Rating, error) {
	updatedA, updatedB, err := e.rateTeams([]Rating{a}, []Rating{b}, outcome)
	if err != nil {
		return Rating{}, Rating{}, err
	}
	return updatedA[0], updatedB[0], nil
}

// Rate2v2 rates a doubles comparison between two two-player teams. The
// outcome is given from the first team's perspective.
func (e Env) Rate2v2(team1, team2 [2]Rating, outcome Outcome) ([2]Rating, [2]Rating, error) {
	updated1, updated2, err := e.rateTeams(team1[:], team2[:], outcome)
	if err != nil {
		return [2]Rating{}, [2]Rating{}, err
	}
	return [2]Rating{updated1[0], updated1[1]}, [2]Rating{updated2[0], updated2[1]}, nil
}

// rateTeams applies the two-team update. For two teams the factor-graph
// schedule collapses to closed-form v/w truncation corrections.
func (e Env) rateTeams(team1, team2 []Rating, outcome Outcome) ([]Rating, []Rating, error) {
	if len(team1) == 0 || len(team2) == 0 {
		return nil, nil, fmt.Errorf("both teams need at least one rating")
	}
	if outcome == Loss {
		updated2, updated1, err := e.rateTeams(team2, team1, Win)
		return updated1, updated2, err
	}

	// Dynamics: inflate every sigma before the update so ratings stay mobile.
	tauSq := e.Tau * e.Tau
	inflated1 := inflate(team1, tauSq)
	inflated2 := inflate(team2, tauSq)

	totalPlayers := len(inflated1) + len(inflated2)
	cSq := float64(totalPlayers) * e.Beta * e.Beta
	for _, r := range inflated1 {
		cSq += r.Sigma * r.Sigma
	}
	for _, r := range inflated2 {
		cSq += r.Sigma * r.Sigma
	}
	c := math.Sqrt(cSq)

	margin := drawMargin(e.DrawProbability, e.Beta, totalPlayers) / c
	diff := (sumMu(inflated1) - sumMu(inflated2)) / c

	var v, w float64
	if outcome == Draw {
		v = vWithinMargin(diff, margin)
		w = wWithinMargin(diff, margin)
	} else {
		v = vExceedsMargin(diff, margin)
		w = wExceedsMargin(diff, margin)
	}

	updated1 := apply(inflated1, c, cSq, v, w, +1)
	updated2 := apply(inflated2, c, cSq, v, w, -1)
	return updated1, updated2, nil
}

// WinProbability is the chance that team1 beats team2, from the pre-match
// distributions alone.
func (e Env) WinProbability(team1, team2 []Rating) float64 {
	deltaMu := sumMu(team1) - sumMu(team2)
	sumSigmaSq := 0.0
	for _, r := range team1 {
		sumSigmaSq += r.Sigma * r.Sigma
	}
	for _, r := range team2 {
		sumSigmaSq += r.Sigma * r.Sigma
	}
	size := float64(len(team1) + len(team2))
	denom := math.Sqrt(size*e.Beta*e.Beta + sumSigmaSq)
	return cdf(deltaMu / denom)
}

// Quality is the draw likelihood of the pairing: 1.0 means perfectly even.
func (e Env) Quality(team1, team2 []Rating) float64 {
	deltaMu := sumMu(team1) - sumMu(team2)
	sumSigmaSq := 0.0
	for _, r := range team1 {
		sumSigmaSq += r.Sigma * r.Sigma
	}
	for _, r := range team2 {
		sumSigmaSq += r.Sigma * r.Sigma
	}
	n := float64(len(team1) + len(team2))
	betaSq := e.Beta * e.Beta
	denom := n*betaSq + sumSigmaSq
	return math.Sqrt(n*betaSq/denom) * math.Exp(-deltaMu*deltaMu/(2*denom))
}

func inflate(team []Rating, tauSq float64) []Rating {
	out := make([]Rating, len(team))
	for i, r := range team {
		out[i] = Rating{Mu: r.Mu, Sigma: math.Sqrt(r.Sigma*r.Sigma + tauSq)}
	}
	return out
}

func apply(team []Rating, c, cSq, v, w, sign float64) []Rating {
	out := make([]Rating, len(team))
	for i, r := range team {
		sigmaSq := r.Sigma * r.Sigma
		mu := r.Mu + sign*(sigmaSq/c)*v
		sigma := math.Sqrt(sigmaSq * (1 - (sigmaSq/cSq)*w))
		out[i] = Rating{Mu: mu, Sigma: sigma}
	}
	return out
}

func sumMu(team []Rating) float64 {
	total := 0.0
	for _, r := range team {
		total += r.Mu
	}
	return total
}

// drawMargin converts the declared draw probability into the half-width of
// the performance interval read as a draw.
func drawMargin(drawProbability, beta float64, totalPlayers int) float64 {
	if drawProbability <= 0 {
		return 0
	}
	return ppf((drawProbability+1)/2) * math.Sqrt(float64(totalPlayers)) * beta
}

// denomFloor guards the truncation corrections where the normalizing mass
// underflows.
const denomFloor = 1e-300

func vExceedsMargin(diff, margin float64) float64 {
	x := diff - margin
	denom := cdf(x)
	if denom < denomFloor {
		return -x
	}
	return pdf(x) / denom
}

func wExceedsMargin(diff, margin float64) float64 {
	x := diff - margin
	denom := cdf(x)
	if denom < denomFloor {
		if x < 0 {
			return 1
		}
		return 0
	}
	v := pdf(x) / denom
	return v * (v + x)
}

func vWithinMargin(diff, margin float64) float64 {
	absDiff := math.Abs(diff)
	a := margin - absDiff
	b := -margin - absDiff
	denom := cdf(a) - cdf(b)
	if denom < denomFloor {
		if diff < 0 {
			return -a
		}
		return a
	}
	v := (pdf(b) - pdf(a)) / denom
	if diff < 0 {
		return -v
	}
	return v
}

func wWithinMargin(diff, margin float64) float64 {
	absDiff := math.Abs(diff)
	a := margin - absDiff
	b := -margin - absDiff
	denom := cdf(a) - cdf(b)
	if denom < denomFloor {
		return 1
	}
	v := vWithinMargin(absDiff, margin)
	return v*v + (a*pdf(a)-b*pdf(b))/denom
}

func pdf(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}

func cdf(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}

// ppf is the standard normal inverse CDF.
func ppf(p float64) float64 {
	return math.Sqrt2 * math.Erfinv(2*p-1)
}
