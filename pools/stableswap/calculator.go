package stableswap

import (
	"fmt"
	"math/big"

	"github.com/swapgraph/swapgraph-go/pools"
)

// All invariant math runs on balances normalized to 18-decimal precision.
const normalizedDecimals = 18

const maxIterations = 255

var (
	one                 = big.NewInt(1)
	basisPointDivisor   = big.NewInt(10000)
	normalizedPrecision = new(big.Int).Exp(big.NewInt(10), big.NewInt(normalizedDecimals), nil)
)

// getD computes the StableSwap invariant D for the normalized balances xp and
// amplification coefficient amp, by Newton iteration:
//
//	D = (Ann*S + n*D_P) * D / ((Ann-1)*D + (n+1)*D_P)
//
// where Ann = amp*n and D_P = D^(n+1) / (n^n * prod(xp)). Converges within a
// couple of iterations for any reasonable amp; failure to converge means the
// balances are degenerate.
func getD(xp []*big.Int, amp uint64) (*big.Int, error) {
	n := int64(len(xp))
	s := new(big.Int)
	for _, x := range xp {
		s.Add(s, x)
	}
	if s.Sign() == 0 {
		return new(big.Int), nil
	}

	nBig := big.NewInt(n)
	ann := new(big.Int).Mul(new(big.Int).SetUint64(amp), nBig)

	d := new(big.Int).Set(s)
	dPrev := new(big.Int)
	dP := new(big.Int)
	num := new(big.Int)
	den := new(big.Int)

	for i := 0; i < maxIterations; i++ {
		dP.Set(d)
		for _, x := range xp {
			den.Mul(x, nBig)
			if den.Sign() == 0 {
				return nil, fmt.Errorf("%w: zero balance in stable-swap pool", pools.ErrInsufficientLiquidity)
			}
			dP.Mul(dP, d)
			dP.Div(dP, den)
		}

		dPrev.Set(d)

		// d = (ann*s + dP*n) * d / ((ann-1)*d + (n+1)*dP)
		num.Mul(ann, s)
		num.Add(num, new(big.Int).Mul(dP, nBig))
		num.Mul(num, d)

		den.Sub(ann, one)
		den.Mul(den, d)
		den.Add(den, new(big.Int).Mul(new(big.Int).Add(nBig, one), dP))

		d.Div(num, den)

		if new(big.Int).Sub(d, dPrev).CmpAbs(one) <= 0 {
			return d, nil
		}
	}

	return nil, fmt.Errorf("%w: invariant did not converge", pools.ErrInvalidState)
}

// getY solves for the output-side normalized balance after the input-side
// balance at index i has moved to x, holding the invariant D constant:
//
//	y^2 + (b - D)*y = c
//
// solved by Newton iteration y = (y^2 + c) / (2y + b - D).
func getY(i, j int, x *big.Int, xp []*big.Int, amp uint64, d *big.Int) (*big.Int, error) {
	n := int64(len(xp))
	nBig := big.NewInt(n)
	ann := new(big.Int).Mul(new(big.Int).SetUint64(amp), nBig)

	c := new(big.Int).Set(d)
	s := new(big.Int)

	for k := 0; k < len(xp); k++ {
		if k == j {
			continue
		}
		xk := xp[k]
		if k == i {
			xk = x
		}
		if xk.Sign() == 0 {
			return nil, fmt.Errorf("%w: zero balance in stable-swap pool", pools.ErrInsufficientLiquidity)
		}
		s.Add(s, xk)
		c.Mul(c, d)
		c.Div(c, new(big.Int).Mul(xk, nBig))
	}

	// c = c * D / (Ann * n)
	c.Mul(c, d)
	c.Div(c, new(big.Int).Mul(ann, nBig))

	// b = S + D/Ann
	b := new(big.Int).Add(s, new(big.Int).Div(d, ann))

	y := new(big.Int).Set(d)
	yPrev := new(big.Int)
	num := new(big.Int)
	den := new(big.Int)

	for iter := 0; iter < maxIterations; iter++ {
		yPrev.Set(y)

		// y = (y^2 + c) / (2y + b - D)
		num.Mul(y, y)
		num.Add(num, c)

		den.Lsh(y, 1)
		den.Add(den, b)
		den.Sub(den, d)
		if den.Sign() <= 0 {
			return nil, fmt.Errorf("%w: no solution for output balance", pools.ErrInsufficientLiquidity)
		}

		y.Div(num, den)

		if new(big.Int).Sub(y, yPrev).CmpAbs(one) <= 0 {
			return y, nil
		}
	}

	return nil, fmt.Errorf("%w: output balance did not converge", pools.ErrInvalidState)
}
