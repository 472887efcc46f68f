// Copyright 2022 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package shamirgeneric implements shamir secret sharing with a generic group structure.
package shamirgeneric

import (
	"fmt"
	"io"
	"math/big"

	"github.com/GoogleCloudPlatform/custody/internal/secret_sharing/internal/field"
	"github.com/GoogleCloudPlatform/custody/internal/secret_sharing/secrets"
)

// GenerateShares splits `secret` into numShares shares where threshold or more
// shares can be combined to reconstruct it. Coefficients are read from r, which
// is consumed only after every parameter has been validated.
func GenerateShares(r io.Reader, secret field.Element, numShares, threshold int, gf field.GaloisField) ([]secrets.Share, error) {
	if err := validateGenerateInput(numShares, threshold, gf); err != nil {
		return nil, err
	}

	// We build a polynomial of degree threshold - 1 whose constant coefficient is the
	// secret and every other coefficient is a random field element:
	// secret + R_1 * x^1 + R_2 * X^2 + ... + R_(t-1) * X^(t-1)
	coefficients := make([]field.Element, threshold)
	coefficients[0] = secret
	for i := 1; i < threshold; i++ {
		var err error
		if coefficients[i], err = gf.NewRandom(r); err != nil {
			return nil, err
		}
	}

	shares := make([]secrets.Share, numShares)
	for i := 0; i < numShares; i++ {
		// Each share is the evaluation of the polynomial at X = i + 1, X = 0 is the secret.
		xi, err := gf.CreateElement(i + 1)
		if err != nil {
			return nil, err
		}
		shares[i] = secrets.Share{
			X: i + 1,
			Y: evaluatePolynomial(coefficients, xi).BigInt(),
		}
	}
	return shares, nil
}

// evaluates a polynomial at `x` with Horner's method where `coefficients` take the form:
// f(x) = c[n-1] * x^(n-1) + c[n-2] * x^(n-2) + ... + c[1] * x^1 + c[0]
// All arithmetic is performed over the finite field.
func evaluatePolynomial(coefficients []field.Element, x field.Element) field.Element {
	sum := coefficients[len(coefficients)-1]
	for i := len(coefficients) - 2; i >= 0; i-- {
		sum = sum.Multiply(x).Add(coefficients[i])
	}
	return sum
}

// Reconstruct recovers the constant term of the polynomial the shares lie on.
//
// Every supplied share is used and the input order is irrelevant. The result is
// only the original secret if at least threshold shares of one split are
// supplied; fewer shares produce a well-formed but unrelated value and no error.
func Reconstruct(shares []secrets.Share, gf field.GaloisField) (field.Element, error) {
	if len(shares) == 0 {
		return nil, secrets.ErrNoShares
	}
	xVals := make([]field.Element, 0, len(shares))
	yVals := make([]field.Element, 0, len(shares))
	for _, s := range shares {
		if s.X <= 0 {
			return nil, fmt.Errorf("%w: X must be positive, got %d", secrets.ErrInvalidShare, s.X)
		}
		xi, err := gf.CreateElement(s.X)
		if err != nil {
			return nil, err
		}
		if xi.IsZero() {
			return nil, fmt.Errorf("%w: X %d is a multiple of the field order", secrets.ErrInvalidShare, s.X)
		}
		yi, err := gf.NewElement(s.Y)
		if err != nil {
			return nil, fmt.Errorf("%w: share %d: %v", secrets.ErrInvalidShare, s.X, err)
		}
		xVals = append(xVals, xi)
		yVals = append(yVals, yi)
	}
	coefficients, err := lagrangeCoefficients(xVals, gf)
	if err != nil {
		return nil, err
	}
	return interpolatePolynomial(coefficients, yVals, gf)
}

// performs lagrange polynomial interpolation at 0 from a set of points on a finite field:
// ∑i={1,n} y[i] * ( ∏j={1,n,j≠i} ( (0 - x[j]) / ( x[i] - x[j]) ) )
// lagrange coefficients are precalculated and the y coordinates are used to compute the sum.
func interpolatePolynomial(lagCoeff []field.Element, yVals []field.Element, gf field.GaloisField) (field.Element, error) {
	if len(lagCoeff) != len(yVals) {
		return nil, fmt.Errorf("invalid lagrange coefficients")
	}
	sum, err := gf.CreateElement(0)
	if err != nil {
		return nil, err
	}
	for i, y := range yVals {
		sum = sum.Add(y.Multiply(lagCoeff[i]))
	}
	return sum, nil
}

// recovers the basis polynomials evaluated at 0 using the x coordinates.
// ∏j={1,n,j≠i} ( (0 - x[j]) * ( x[i] - x[j] )^-1 )
// A repeated x makes a denominator zero, which Inverse reports as ErrNotInvertible.
func lagrangeCoefficients(x []field.Element, gf field.GaloisField) ([]field.Element, error) {
	out := make([]field.Element, 0, len(x))
	for i := range x {
		li, err := gf.CreateElement(1)
		if err != nil {
			return nil, err
		}
		for j := range x {
			if i == j {
				continue
			}
			inv, err := x[i].Subtract(x[j]).Inverse()
			if err != nil {
				return nil, fmt.Errorf("shares %d and %d: %w", i, j, err)
			}
			li = li.Multiply(x[j].Negate()).Multiply(inv)
		}
		out = append(out, li)
	}
	return out, nil
}

func validateGenerateInput(numShares, threshold int, gf field.GaloisField) error {
	if threshold < 1 {
		return fmt.Errorf("%w: threshold must be at least 1, got %d", secrets.ErrInvalidThreshold, threshold)
	}
	if threshold > numShares {
		return fmt.Errorf("%w: threshold (%d) should be smaller than or equal to numShares (%d)", secrets.ErrInvalidThreshold, threshold, numShares)
	}
	// X coordinates 1..numShares must be distinct and non-zero in the field.
	if gf.Order().Cmp(big.NewInt(int64(numShares))) <= 0 {
		return fmt.Errorf("%w: field order %v must exceed numShares %d", secrets.ErrModulusTooSmall, gf.Order(), numShares)
	}
	return nil
}
