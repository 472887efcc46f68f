// Copyright 2024 Google LLC
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

// Package secrets contains types for secret sharing. When splitting a secret, a dealer needs
// to provide both the `secret` + `Metadata`. A dealer would then get a `Split`, which contains
// the `Metadata` and the secret shares.
package secrets

import (
	"errors"
	"fmt"
	"math/big"
)

var (
	// ErrArithmetic is the category of failures raised by field arithmetic and interpolation.
	ErrArithmetic = errors.New("arithmetic error")
	// ErrInput is the category of failures caused by invalid parameters.
	ErrInput = errors.New("input error")

	// ErrNotInvertible is returned when an element has no multiplicative inverse, which
	// for a prime modulus means it is congruent to zero. During reconstruction this is
	// how two shares with the same X coordinate show up.
	ErrNotInvertible = fmt.Errorf("%w: element is not invertible", ErrArithmetic)
	// ErrInsufficientShares is returned when the caller supplies fewer shares than the
	// threshold recorded in the split metadata.
	ErrInsufficientShares = fmt.Errorf("%w: insufficient shares", ErrArithmetic)

	// ErrModulusTooSmall is returned when the modulus does not exceed the secret or the
	// number of shares.
	ErrModulusTooSmall = fmt.Errorf("%w: modulus too small", ErrInput)
	// ErrModulusNotPrime is returned when the modulus fails a primality test.
	ErrModulusNotPrime = fmt.Errorf("%w: modulus is not prime", ErrInput)
	// ErrInvalidThreshold is returned unless 1 <= threshold <= numShares.
	ErrInvalidThreshold = fmt.Errorf("%w: invalid threshold", ErrInput)
	// ErrInvalidSecret is returned for negative secrets.
	ErrInvalidSecret = fmt.Errorf("%w: invalid secret", ErrInput)
	// ErrInvalidShare is returned for shares with a non-positive X or a Y outside the field.
	ErrInvalidShare = fmt.Errorf("%w: invalid share", ErrInput)
	// ErrNoShares is returned when reconstruction is attempted on an empty set.
	ErrNoShares = fmt.Errorf("%w: no shares provided", ErrInput)
)

// Metadata contains the necessary secret sharing scheme information to split and/or reconstruct a secret.
type Metadata struct {
	// Modulus is the prime defining the field every share lives in. Shares
	// produced under one modulus are meaningless under any other.
	Modulus   *big.Int
	NumShares int
	Threshold int
}

// Split represents a secret split into shares alongside the metadata needed to reconstruct it.
type Split struct {
	Metadata Metadata
	Shares   []Share
}

// Share represents one point (X, Y) on the secret-encoding polynomial without any metadata.
type Share struct {
	X int
	Y *big.Int
}

// String does not print Y so shares don't end up in logs by accident.
func (s Share) String() string {
	return fmt.Sprintf("Share{X: %d}", s.X)
}

// Xs returns the X coordinates of the shares in the order given.
func Xs(shares []Share) []int {
	out := make([]int, 0, len(shares))
	for _, s := range shares {
		out = append(out, s.X)
	}
	return out
}
