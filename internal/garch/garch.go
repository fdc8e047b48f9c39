// Package garch fits GARCH-family volatility models by quasi-maximum
// likelihood and produces conditional volatility, standardised residuals
// and multi-step variance forecasts.
package garch

import (
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/quantfold/analytics/internal/timeseries"
	"github.com/quantfold/analytics/pkg/errs"
)

// ModelType selects the conditional variance recursion.
type ModelType int

const (
	GARCH ModelType = iota
	EGARCH
	GJRGARCH
)

func (t ModelType) String() string {
	switch t {
	case GARCH:
		return "GARCH"
	case EGARCH:
		return "EGARCH"
	case GJRGARCH:
		return "GJR-GARCH"
	}
	return "unknown"
}

// Innovation selects the likelihood distribution.
type Innovation int

const (
	Normal Innovation = iota
	StudentT
)

// Parameters holds a fitted model. For plain GARCH the stationarity
// invariant persistence < 1 always holds on a successful fit; EGARCH uses
// the log-variance parameterisation and relaxes non-negativity.
type Parameters struct {
	Omega         float64   `json:"omega"`
	Alpha         []float64 `json:"alpha"`
	Beta          []float64 `json:"beta"`
	Gamma         []float64 `json:"gamma,omitempty"` // asymmetry (GJR, EGARCH)
	Nu            float64   `json:"nu,omitempty"`    // Student-t dof
	LogLikelihood float64   `json:"log_likelihood"`
	AIC           float64   `json:"aic"`
	BIC           float64   `json:"bic"`
	Persistence   float64   `json:"persistence"`
}

// Model is a GARCH(p, q) family model. Queries before Fit return
// ErrNotInitialized.
type Model struct {
	typ   ModelType
	p, q  int
	innov Innovation

	fitted  bool
	mean    float64
	params  Parameters
	resid   []float64 // de-meaned input
	condVar []float64 // h_t
	times   []timeseries.Timestamp
	name    string
}

const (
	minSamples    = 30
	maxOrder      = 5
	maxIterations = 500
	convergeTol   = 1e-8

	// Soft stationarity ceiling used by the optimiser penalty.
	persistenceCap = 0.999

	// E|z| for standard normal innovations, used by the EGARCH recursion.
	absMomentNormal = 0.7978845608028654 // sqrt(2/pi)
)

// New creates an unfitted model. p and q must lie in [1, 5].
func New(typ ModelType, p, q int) (*Model, error) {
	if p < 1 || p > maxOrder || q < 1 || q > maxOrder {
		return nil, errs.InvalidInput("garch: orders p=%d q=%d outside [1, %d]", p, q, maxOrder)
	}
	return &Model{typ: typ, p: p, q: q}, nil
}

// Type returns the model type.
func (m *Model) Type() ModelType { return m.typ }

// Orders returns (p, q).
func (m *Model) Orders() (int, int) { return m.p, m.q }

// Parameters returns the fitted parameters.
func (m *Model) Parameters() (Parameters, error) {
	if !m.fitted {
		return Parameters{}, errs.NotInitialized("garch: parameters requested before fit")
	}
	return m.params, nil
}

// Fit estimates the model on a return series by quasi-maximum likelihood
// with a BFGS optimiser over transformed parameters. Non-stationary fits
// are rejected rather than returned with a warning.
func (m *Model) Fit(s *timeseries.TimeSeries, innov Innovation) error {
	if s.Len() < minSamples {
		return errs.InsufficientData("garch: need at least %d samples, got %d", minSamples, s.Len())
	}

	values := s.Values()
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	resid := make([]float64, len(values))
	var variance float64
	for i, v := range values {
		resid[i] = v - mean
		variance += resid[i] * resid[i]
	}
	variance /= float64(len(resid) - 1)
	if variance <= 0 || !isFinite(variance) {
		return errs.Numerical("garch: degenerate input variance %g", variance)
	}

	spec := modelSpec{typ: m.typ, p: m.p, q: m.q, innov: innov, sampleVar: variance}
	x0 := spec.initialTheta()

	objective := func(theta []float64) float64 {
		return spec.negLogLikelihood(theta, resid)
	}
	problem := optimize.Problem{
		Func: objective,
		// BFGS needs a gradient; the likelihood has no closed form one.
		Grad: func(grad, theta []float64) {
			fd.Gradient(grad, objective, theta, nil)
		},
	}
	settings := &optimize.Settings{
		MajorIterations: maxIterations,
		Converger: &optimize.FunctionConverge{
			Absolute:   convergeTol,
			Iterations: 25,
		},
	}

	result, err := optimize.Minimize(problem, x0, settings, &optimize.BFGS{})
	if err != nil || result == nil || !isFinite(result.F) {
		// BFGS line searches can fail on flat likelihood surfaces.
		// Retry derivative-free before giving up.
		result, err = optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
		if err != nil || result == nil || !isFinite(result.F) {
			return errs.Numerical("garch: optimiser failed to converge within %d iterations", maxIterations)
		}
	}

	params := spec.unpack(result.X)
	if m.typ != EGARCH && params.Persistence >= 1 {
		return errs.Numerical("garch: non-stationary fit, persistence %.4f", params.Persistence)
	}

	condVar := spec.recursion(paramsOf(params), resid)
	ll := -result.F
	if !isFinite(ll) {
		return errs.Numerical("garch: non-finite likelihood")
	}

	k := float64(len(result.X))
	params.LogLikelihood = ll
	params.AIC = -2*ll + 2*k
	params.BIC = -2*ll + k*math.Log(float64(len(resid)))

	m.innov = innov
	m.mean = mean
	m.params = params
	m.resid = resid
	m.condVar = condVar
	m.times = s.Times()
	m.name = s.Name()
	m.fitted = true
	return nil
}

// ConditionalVolatility returns the sqrt(h_t) series over the input dates.
func (m *Model) ConditionalVolatility() (*timeseries.TimeSeries, error) {
	if !m.fitted {
		return nil, errs.NotInitialized("garch: conditional volatility requested before fit")
	}
	out := make([]float64, len(m.condVar))
	for i, h := range m.condVar {
		out[i] = math.Sqrt(h)
	}
	return timeseries.New(m.name+"_cond_vol", m.times, out)
}

// StandardizedResiduals returns eps_t / sqrt(h_t); approximately unit
// variance for a well specified model.
func (m *Model) StandardizedResiduals() (*timeseries.TimeSeries, error) {
	if !m.fitted {
		return nil, errs.NotInitialized("garch: residuals requested before fit")
	}
	out := make([]float64, len(m.resid))
	for i, e := range m.resid {
		out[i] = e / math.Sqrt(m.condVar[i])
	}
	return timeseries.New(m.name+"_std_resid", m.times, out)
}

// Forecast returns sqrt(h_{t+s}) for s = 1..steps under the
// unconditional-variance-reversion formula
// h_{t+s} = w* + pers^(s-1) (h_{t+1} - w*) with w* = omega / (1 - pers).
func (m *Model) Forecast(steps int) ([]float64, error) {
	if !m.fitted {
		return nil, errs.NotInitialized("garch: forecast requested before fit")
	}
	if steps < 1 {
		return nil, errs.InvalidInput("garch: forecast steps must be >= 1, got %d", steps)
	}

	h1 := m.oneStepVariance()
	pers := m.params.Persistence
	out := make([]float64, steps)

	if m.typ == EGARCH {
		// Log-variance recursion mean-reverts in ln h with the beta sum.
		var betaSum float64
		for _, b := range m.params.Beta {
			betaSum += b
		}
		lnH1 := math.Log(h1)
		var lnMean float64
		if math.Abs(betaSum) < 1 {
			lnMean = m.params.Omega / (1 - betaSum)
		} else {
			lnMean = lnH1
		}
		for s := 0; s < steps; s++ {
			lnH := lnMean + math.Pow(betaSum, float64(s))*(lnH1-lnMean)
			out[s] = math.Sqrt(math.Exp(lnH))
		}
		return out, nil
	}

	var uncond float64
	if pers < 1 {
		uncond = m.params.Omega / (1 - pers)
	} else {
		uncond = h1
	}
	for s := 0; s < steps; s++ {
		h := uncond + math.Pow(pers, float64(s))*(h1-uncond)
		out[s] = math.Sqrt(h)
	}
	return out, nil
}

// oneStepVariance runs the recursion one step past the sample.
func (m *Model) oneStepVariance() float64 {
	n := len(m.resid)
	switch m.typ {
	case EGARCH:
		lnH := m.params.Omega
		for i := 0; i < m.p; i++ {
			e := m.resid[n-1-i]
			h := m.condVar[n-1-i]
			z := e / math.Sqrt(h)
			lnH += m.params.Alpha[i] * (math.Abs(z) - absMomentNormal)
			lnH += m.params.Gamma[i] * z
		}
		for j := 0; j < m.q; j++ {
			lnH += m.params.Beta[j] * math.Log(m.condVar[n-1-j])
		}
		return math.Exp(lnH)
	case GJRGARCH:
		h := m.params.Omega
		for i := 0; i < m.p; i++ {
			e := m.resid[n-1-i]
			a := m.params.Alpha[i]
			if e < 0 {
				a += m.params.Gamma[i]
			}
			h += a * e * e
		}
		for j := 0; j < m.q; j++ {
			h += m.params.Beta[j] * m.condVar[n-1-j]
		}
		return h
	default:
		h := m.params.Omega
		for i := 0; i < m.p; i++ {
			e := m.resid[n-1-i]
			h += m.params.Alpha[i] * e * e
		}
		for j := 0; j < m.q; j++ {
			h += m.params.Beta[j] * m.condVar[n-1-j]
		}
		return h
	}
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ---------------------------------------------------------------------------
// Likelihood machinery
// ---------------------------------------------------------------------------

// modelSpec carries everything the objective needs; it is free of Model
// state so the optimiser works on local buffers only.
type modelSpec struct {
	typ       ModelType
	p, q      int
	innov     Innovation
	sampleVar float64
}

// rawParams is the untransformed parameter set fed to the recursion.
type rawParams struct {
	omega float64
	alpha []float64
	beta  []float64
	gamma []float64
	nu    float64
}

func paramsOf(p Parameters) rawParams {
	return rawParams{omega: p.Omega, alpha: p.Alpha, beta: p.Beta, gamma: p.Gamma, nu: p.Nu}
}

// thetaLen returns the optimiser dimension.
func (s modelSpec) thetaLen() int {
	n := 1 + s.p + s.q
	if s.typ == GJRGARCH || s.typ == EGARCH {
		n += s.p
	}
	if s.innov == StudentT {
		n++
	}
	return n
}

// initialTheta encodes the conventional starting point: alpha = 0.05,
// beta = 0.9 split across lags, omega matching the sample variance.
func (s modelSpec) initialTheta() []float64 {
	theta := make([]float64, s.thetaLen())
	alpha0 := 0.05 / float64(s.p)
	beta0 := 0.90 / float64(s.q)
	omega0 := s.sampleVar * (1 - 0.05 - 0.90)
	if omega0 <= 0 {
		omega0 = s.sampleVar * 0.05
	}

	i := 0
	if s.typ == EGARCH {
		theta[i] = math.Log(s.sampleVar) * (1 - 0.90)
		i++
		for k := 0; k < s.p; k++ {
			theta[i] = 0.1
			i++
		}
		for k := 0; k < s.p; k++ {
			theta[i] = -0.05 // leverage starts mildly negative
			i++
		}
		for k := 0; k < s.q; k++ {
			theta[i] = beta0
			i++
		}
	} else {
		theta[i] = math.Log(omega0)
		i++
		for k := 0; k < s.p; k++ {
			theta[i] = math.Log(alpha0)
			i++
		}
		if s.typ == GJRGARCH {
			for k := 0; k < s.p; k++ {
				theta[i] = math.Log(0.02)
				i++
			}
		}
		for k := 0; k < s.q; k++ {
			theta[i] = math.Log(beta0)
			i++
		}
	}
	if s.innov == StudentT {
		theta[i] = math.Log(8 - 2.1) // nu ~ 8
	}
	return theta
}

// unpackRaw maps the unconstrained theta onto model parameters. Positivity
// for plain GARCH and GJR comes from the exp transform; EGARCH runs on the
// raw coefficients.
func (s modelSpec) unpackRaw(theta []float64) rawParams {
	rp := rawParams{
		alpha: make([]float64, s.p),
		beta:  make([]float64, s.q),
	}
	i := 0
	if s.typ == EGARCH {
		rp.gamma = make([]float64, s.p)
		rp.omega = theta[i]
		i++
		for k := 0; k < s.p; k++ {
			rp.alpha[k] = theta[i]
			i++
		}
		for k := 0; k < s.p; k++ {
			rp.gamma[k] = theta[i]
			i++
		}
		for k := 0; k < s.q; k++ {
			rp.beta[k] = theta[i]
			i++
		}
	} else {
		rp.omega = math.Exp(theta[i])
		i++
		for k := 0; k < s.p; k++ {
			rp.alpha[k] = math.Exp(theta[i])
			i++
		}
		if s.typ == GJRGARCH {
			rp.gamma = make([]float64, s.p)
			for k := 0; k < s.p; k++ {
				rp.gamma[k] = math.Exp(theta[i])
				i++
			}
		}
		for k := 0; k < s.q; k++ {
			rp.beta[k] = math.Exp(theta[i])
			i++
		}
	}
	if s.innov == StudentT {
		rp.nu = 2.1 + math.Exp(theta[i])
	}
	return rp
}

// unpack produces the exported Parameters including persistence.
func (s modelSpec) unpack(theta []float64) Parameters {
	rp := s.unpackRaw(theta)
	return Parameters{
		Omega:       rp.omega,
		Alpha:       rp.alpha,
		Beta:        rp.beta,
		Gamma:       rp.gamma,
		Nu:          rp.nu,
		Persistence: s.persistence(rp),
	}
}

// persistence measures how long shocks affect conditional variance.
func (s modelSpec) persistence(rp rawParams) float64 {
	var sum float64
	switch s.typ {
	case EGARCH:
		for _, b := range rp.beta {
			sum += b
		}
	case GJRGARCH:
		for _, a := range rp.alpha {
			sum += a
		}
		for _, g := range rp.gamma {
			sum += g / 2 // negative shocks hit half the time
		}
		for _, b := range rp.beta {
			sum += b
		}
	default:
		for _, a := range rp.alpha {
			sum += a
		}
		for _, b := range rp.beta {
			sum += b
		}
	}
	return sum
}

// recursion computes the conditional variance path. The presample window is
// seeded with the sample variance.
func (s modelSpec) recursion(rp rawParams, resid []float64) []float64 {
	n := len(resid)
	h := make([]float64, n)
	m := s.p
	if s.q > m {
		m = s.q
	}
	for t := 0; t < m && t < n; t++ {
		h[t] = s.sampleVar
	}

	for t := m; t < n; t++ {
		switch s.typ {
		case EGARCH:
			lnH := rp.omega
			for i := 0; i < s.p; i++ {
				z := resid[t-1-i] / math.Sqrt(h[t-1-i])
				lnH += rp.alpha[i] * (math.Abs(z) - absMomentNormal)
				lnH += rp.gamma[i] * z
			}
			for j := 0; j < s.q; j++ {
				lnH += rp.beta[j] * math.Log(h[t-1-j])
			}
			h[t] = math.Exp(lnH)
		case GJRGARCH:
			v := rp.omega
			for i := 0; i < s.p; i++ {
				e := resid[t-1-i]
				a := rp.alpha[i]
				if e < 0 {
					a += rp.gamma[i]
				}
				v += a * e * e
			}
			for j := 0; j < s.q; j++ {
				v += rp.beta[j] * h[t-1-j]
			}
			h[t] = v
		default:
			v := rp.omega
			for i := 0; i < s.p; i++ {
				e := resid[t-1-i]
				v += rp.alpha[i] * e * e
			}
			for j := 0; j < s.q; j++ {
				v += rp.beta[j] * h[t-1-j]
			}
			h[t] = v
		}
		if h[t] < 1e-300 {
			h[t] = 1e-300
		}
	}
	return h
}

// negLogLikelihood is the objective. Stationarity for plain GARCH and GJR
// enters as a smooth quadratic penalty above the cap so BFGS keeps a usable
// gradient near the boundary.
func (s modelSpec) negLogLikelihood(theta []float64, resid []float64) float64 {
	rp := s.unpackRaw(theta)

	penalty := 0.0
	if s.typ != EGARCH {
		if pers := s.persistence(rp); pers > persistenceCap {
			d := pers - persistenceCap
			penalty += 1e6 * d * d
		}
	} else {
		var betaSum float64
		for _, b := range rp.beta {
			betaSum += b
		}
		if a := math.Abs(betaSum); a > persistenceCap {
			d := a - persistenceCap
			penalty += 1e6 * d * d
		}
	}

	h := s.recursion(rp, resid)

	m := s.p
	if s.q > m {
		m = s.q
	}

	var ll float64
	if s.innov == StudentT {
		dist := distuv.StudentsT{Mu: 0, Nu: rp.nu}
		scale := math.Sqrt((rp.nu - 2) / rp.nu)
		for t := m; t < len(resid); t++ {
			sigma := math.Sqrt(h[t])
			dist.Sigma = sigma * scale
			ll += dist.LogProb(resid[t])
		}
	} else {
		const ln2pi = 1.8378770664093453
		for t := m; t < len(resid); t++ {
			ll += -0.5 * (ln2pi + math.Log(h[t]) + resid[t]*resid[t]/h[t])
		}
	}

	if !isFinite(ll) {
		return math.MaxFloat64
	}
	return -ll + penalty
}
