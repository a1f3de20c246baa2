package correlation

import (
	"math"

	"gonum.org/v1/gonum/mathext"
	"gonum.org/v1/gonum/stat/distuv"
)

// tinyP is the smallest probability handled in linear space. Below it the
// p-value and its normal quantile are carried as logarithms.
const tinyP = 1e-280

var logTinyP = math.Log(tinyP)

// logRegIncBeta returns log I_x(a, b). Once the linear value drops under
// tinyP it switches to the continued fraction evaluated in log space, which
// stays finite where I_x itself underflows.
func logRegIncBeta(a, b, x float64) float64 {
	if x <= 0 {
		return math.Inf(-1)
	}
	if x >= 1 {
		return 0
	}
	if p := mathext.RegIncBeta(a, b, x); p > tinyP {
		return math.Log(p)
	}
	return logRegIncBetaCF(a, b, x)
}

// logRegIncBetaCF is log I_x(a, b) from the continued fraction expansion.
// It converges for x < (a+1)/(a+b+2), which holds wherever I_x is tiny.
func logRegIncBetaCF(a, b, x float64) float64 {
	front := a*math.Log(x) + b*math.Log1p(-x) - math.Log(a) - mathext.Lbeta(a, b)
	return front + math.Log(betaContinuedFraction(a, b, x))
}

// betaContinuedFraction evaluates the incomplete beta continued fraction with
// the modified Lentz method.
func betaContinuedFraction(a, b, x float64) float64 {
	const (
		maxIter = 1000
		eps     = 1e-15
		fpmin   = 1e-300
	)
	clamp := func(v float64) float64 {
		if math.Abs(v) < fpmin {
			return fpmin
		}
		return v
	}

	qab, qap, qam := a+b, a+1, a-1
	c := 1.0
	d := 1 / clamp(1-qab*x/qap)
	h := d
	for m := 1; m <= maxIter; m++ {
		fm := float64(m)
		m2 := 2 * fm

		aa := fm * (b - fm) * x / ((qam + m2) * (a + m2))
		d = 1 / clamp(1+aa*d)
		c = clamp(1 + aa/c)
		h *= d * c

		aa = -(a + fm) * (qab + fm) * x / ((a + m2) * (qap + m2))
		d = 1 / clamp(1+aa*d)
		c = clamp(1 + aa/c)
		del := d * c
		h *= del
		if math.Abs(del-1) < eps {
			break
		}
	}
	return h
}

// normalTailZ returns z >= 0 with P(Z > z) = exp(logp) for a standard normal
// Z. logp must not exceed log(1/2).
func normalTailZ(logp float64) float64 {
	if logp > logTinyP {
		return math.Abs(distuv.UnitNormal.Quantile(math.Exp(logp)))
	}
	u := -2 * logp
	z := math.Sqrt(u - math.Log(u) - math.Log(2*math.Pi))
	for i := 0; i < 10; i++ {
		lq := logNormalTail(z)
		// d/dz log Q(z) = -phi(z)/Q(z)
		step := (lq - logp) / math.Exp(distuv.UnitNormal.LogProb(z)-lq)
		z += step
		if math.Abs(step) < 1e-13*z {
			break
		}
	}
	return z
}

// logNormalTail is log P(Z > z) from the asymptotic Mills ratio series. It is
// accurate to double precision for z above 30.
func logNormalTail(z float64) float64 {
	w := 1 / (z * z)
	series := 1 + w*(-1+w*(3+w*(-15+w*(105-945*w))))
	return distuv.UnitNormal.LogProb(z) - math.Log(z) + math.Log(series)
}
