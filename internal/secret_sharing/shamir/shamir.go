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

// Package shamir encapsulates all of the logic needed to perform t-of-n [Shamir
// Secret Sharing] (SSS) on integer secrets over a prime field Z/pZ. SSS is based
// on the Lagrange interpolation theorem, which states that `k` points are enough
// to uniquely determine a polynomial of degree less than or equal to `k - 1`.
//
// This scheme is secure under the following assumptions:
//   - The scheme requires a trusted dealer to generate the shares. Participants
//     must trust the dealer with access to the secret and to properly generate the
//     shares.
//   - The scheme assumes a passive adversary which can observe (t - 1) shares
//     without being able to reconstruct the secret. However, this scheme
//     assumes the adversary isn't allowed to participate in the `reconstruct` step by
//     providing a chosen share.
//     Examples of this attack: https://crypto.stackexchange.com/q/41994/76875
//   - The prime is large enough for the secret to be unguessable. Small primes
//     such as 7919 are only useful for examples.
//
// Interpolating fewer than t shares succeeds and returns an unrelated value.
// Callers must track the threshold themselves, [ReconstructSplit] does so using
// the split metadata.
//
// [Shamir Secret Sharing]: https://web.mit.edu/6.857/OldStuff/Fall03/ref/Shamir-HowToShareAsecrets.pdf
package shamir

import (
	"fmt"
	"io"
	"math/big"

	"github.com/GoogleCloudPlatform/custody/internal/secret_sharing/internal/shamirgeneric"
	"github.com/GoogleCloudPlatform/custody/internal/secret_sharing/primefield"
	"github.com/GoogleCloudPlatform/custody/internal/secret_sharing/secrets"
)

// GenerateShares splits secret into n shares over Z/primeZ such that any t of
// them reconstruct it. Polynomial coefficients are drawn from r, or from
// crypto/rand when r is nil; every call draws fresh coefficients. All inputs are
// validated before r is read.
func GenerateShares(r io.Reader, secret *big.Int, n, t int, prime *big.Int) ([]secrets.Share, error) {
	if err := validateSecret(secret, n, t, prime); err != nil {
		return nil, err
	}
	f, err := primefield.New(prime)
	if err != nil {
		return nil, err
	}
	s, err := f.NewElement(secret)
	if err != nil {
		return nil, err
	}
	return shamirgeneric.GenerateShares(r, s, n, t, f)
}

// Reconstruct recovers the secret from shares by Lagrange interpolation at 0.
//
// All X coordinates must be distinct; a repeated X fails with
// secrets.ErrNotInvertible. Reconstruct will not detect bogus, corrupted or too
// few shares.
func Reconstruct(shares []secrets.Share, prime *big.Int) (*big.Int, error) {
	f, err := primefield.New(prime)
	if err != nil {
		return nil, err
	}
	s, err := shamirgeneric.Reconstruct(shares, f)
	if err != nil {
		return nil, err
	}
	return s.BigInt(), nil
}

// SplitSecret splits a secret into metadata.NumShares shares where metadata.Threshold
// or more shares can be combined to reconstruct the original secret.
func SplitSecret(r io.Reader, metadata secrets.Metadata, secret *big.Int) (secrets.Split, error) {
	shares, err := GenerateShares(r, secret, metadata.NumShares, metadata.Threshold, metadata.Modulus)
	if err != nil {
		return secrets.Split{}, err
	}
	return secrets.Split{
		Metadata: secrets.Metadata{
			Modulus:   new(big.Int).Set(metadata.Modulus),
			NumShares: metadata.NumShares,
			Threshold: metadata.Threshold,
		},
		Shares: shares,
	}, nil
}

// ReconstructSplit reconstructs the secret from secretSplit.
//
// The number of shares provided must meet the threshold specified when the
// shares were created by [SplitSecret], otherwise secrets.ErrInsufficientShares
// is returned.
func ReconstructSplit(secretSplit secrets.Split) (*big.Int, error) {
	md := secretSplit.Metadata
	if md.Threshold < 1 || md.NumShares < md.Threshold {
		return nil, fmt.Errorf("%w: threshold %d of %d shares", secrets.ErrInvalidThreshold, md.Threshold, md.NumShares)
	}
	if len(secretSplit.Shares) < md.Threshold {
		return nil, fmt.Errorf("%w: need at least %d, got %d", secrets.ErrInsufficientShares, md.Threshold, len(secretSplit.Shares))
	}
	for _, s := range secretSplit.Shares {
		if s.X > md.NumShares {
			return nil, fmt.Errorf("%w: X %d exceeds numShares %d", secrets.ErrInvalidShare, s.X, md.NumShares)
		}
	}
	return Reconstruct(secretSplit.Shares, md.Modulus)
}

// ModInverse exposes the field inverse for callers that check arithmetic
// directly, such as the conformance runner.
func ModInverse(a, prime *big.Int) (*big.Int, error) {
	return primefield.ModInverse(a, prime)
}

func validateSecret(secret *big.Int, n, t int, prime *big.Int) error {
	if secret == nil || secret.Sign() < 0 {
		return fmt.Errorf("%w: secret must be a non-negative integer", secrets.ErrInvalidSecret)
	}
	if t < 1 || t > n {
		return fmt.Errorf("%w: need 1 <= t <= n, got t=%d n=%d", secrets.ErrInvalidThreshold, t, n)
	}
	if prime == nil || prime.Cmp(secret) <= 0 {
		return fmt.Errorf("%w: modulus must exceed the secret", secrets.ErrModulusTooSmall)
	}
	if prime.Cmp(big.NewInt(int64(n))) <= 0 {
		return fmt.Errorf("%w: modulus %v must exceed n=%d", secrets.ErrModulusTooSmall, prime, n)
	}
	return nil
}
