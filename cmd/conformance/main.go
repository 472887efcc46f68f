// Copyright 2021 Google LLC
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

// Binary to validate the secret sharing scheme against known answers and
// boundary cases.
package main

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"os"

	"flag"
	"github.com/GoogleCloudPlatform/custody/internal/secret_sharing/finitefield"
	"github.com/GoogleCloudPlatform/custody/internal/secret_sharing/secrets"
	"github.com/GoogleCloudPlatform/custody/internal/secret_sharing/shamir"
	"github.com/alecthomas/colour"
)

var (
	modulusName = flag.String("modulus", "p256", "Modulus for the round trip cases: a known name or a prime literal")
	rounds      = flag.Int("rounds", 20, "Number of random secrets per round trip case")
)

type conformanceTest struct {
	testName string
	run      func(p *big.Int) error
}

func inverseTable(*big.Int) error {
	for _, tc := range []struct{ a, p, want int64 }{
		{3, 7919, 2640},
		{1, 7919, 1},
		{7918, 7919, 7918},
		{2, 11, 6},
		{10, 17, 12},
	} {
		got, err := shamir.ModInverse(big.NewInt(tc.a), big.NewInt(tc.p))
		if err != nil {
			return err
		}
		if got.Int64() != tc.want {
			return fmt.Errorf("ModInverse(%d, %d) = %v, want %d", tc.a, tc.p, got, tc.want)
		}
	}
	if _, err := shamir.ModInverse(big.NewInt(7919), big.NewInt(7919)); !errors.Is(err, secrets.ErrNotInvertible) {
		return fmt.Errorf("ModInverse(7919, 7919) err = %v, want not invertible", err)
	}
	return nil
}

func demoScenario(*big.Int) error {
	p := big.NewInt(7919)
	shares, err := shamir.GenerateShares(nil, big.NewInt(1234), 5, 3, p)
	if err != nil {
		return err
	}
	got, err := shamir.Reconstruct([]secrets.Share{shares[0], shares[2], shares[4]}, p)
	if err != nil {
		return err
	}
	if got.Int64() != 1234 {
		return fmt.Errorf("reconstructed %v, want 1234", got)
	}
	return nil
}

func knownShares(*big.Int) error {
	// f(x) = 1234 + 166x + 94x^2 mod 7919.
	shares := []secrets.Share{
		{X: 2, Y: big.NewInt(1942)},
		{X: 4, Y: big.NewInt(3402)},
		{X: 5, Y: big.NewInt(4414)},
	}
	got, err := shamir.Reconstruct(shares, big.NewInt(7919))
	if err != nil {
		return err
	}
	if got.Int64() != 1234 {
		return fmt.Errorf("reconstructed %v, want 1234", got)
	}
	return nil
}

func roundTrip(n, t int) func(p *big.Int) error {
	return func(p *big.Int) error {
		for i := 0; i < *rounds; i++ {
			secret, err := rand.Int(rand.Reader, p)
			if err != nil {
				return err
			}
			split, err := shamir.SplitSecret(nil, secrets.Metadata{Modulus: p, NumShares: n, Threshold: t}, secret)
			if err != nil {
				return err
			}
			split.Shares = split.Shares[n-t:]
			got, err := shamir.ReconstructSplit(split)
			if err != nil {
				return err
			}
			if got.Cmp(secret) != 0 {
				return fmt.Errorf("round %d reconstructed the wrong secret", i)
			}
		}
		return nil
	}
}

func thresholdOne(p *big.Int) error {
	secret := big.NewInt(77)
	shares, err := shamir.GenerateShares(nil, secret, 4, 1, p)
	if err != nil {
		return err
	}
	for _, s := range shares {
		if s.Y.Cmp(secret) != 0 {
			return fmt.Errorf("share %d does not carry the secret", s.X)
		}
	}
	return nil
}

func duplicateX(*big.Int) error {
	p := big.NewInt(7919)
	shares, err := shamir.GenerateShares(nil, big.NewInt(1234), 5, 2, p)
	if err != nil {
		return err
	}
	_, err = shamir.Reconstruct([]secrets.Share{shares[3], shares[3]}, p)
	if !errors.Is(err, secrets.ErrNotInvertible) {
		return fmt.Errorf("err = %v, want not invertible", err)
	}
	return nil
}

func subThreshold(*big.Int) error {
	p := big.NewInt(7919)
	shares := []secrets.Share{{X: 1, Y: big.NewInt(1494)}, {X: 2, Y: big.NewInt(1942)}}
	got, err := shamir.Reconstruct(shares, p)
	if err != nil {
		return err
	}
	if got.Int64() == 1234 {
		return fmt.Errorf("two shares of a 3-of-5 split reconstructed the secret")
	}
	split := secrets.Split{Metadata: secrets.Metadata{Modulus: p, NumShares: 5, Threshold: 3}, Shares: shares}
	if _, err := shamir.ReconstructSplit(split); !errors.Is(err, secrets.ErrInsufficientShares) {
		return fmt.Errorf("ReconstructSplit() err = %v, want insufficient shares", err)
	}
	return nil
}

func modulusTooSmall(*big.Int) error {
	_, err := shamir.GenerateShares(failingReader{}, big.NewInt(7919), 5, 3, big.NewInt(7919))
	if !errors.Is(err, secrets.ErrModulusTooSmall) {
		return fmt.Errorf("err = %v, want modulus too small", err)
	}
	return nil
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("randomness was read before validation")
}

func main() {
	flag.Parse()

	p, err := finitefield.Parse(*modulusName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	fmt.Println("Running secret sharing conformance tests...")

	testCases := []conformanceTest{
		{testName: "Modular inverse table", run: inverseTable},
		{testName: "3-of-5 over 7919 reconstructs 1234 from x={1,3,5}", run: demoScenario},
		{testName: "Known shares of 1234+166x+94x^2 reconstruct 1234", run: knownShares},
		{testName: fmt.Sprintf("3-of-5 round trip over %s", *modulusName), run: roundTrip(5, 3)},
		{testName: fmt.Sprintf("T=N round trip over %s", *modulusName), run: roundTrip(4, 4)},
		{testName: fmt.Sprintf("T=1 round trip over %s", *modulusName), run: roundTrip(4, 1)},
		{testName: "T=1 shares all equal the secret", run: thresholdOne},
		{testName: "Duplicate x is not invertible", run: duplicateX},
		{testName: "Fewer than T shares give a wrong secret and are refused with metadata", run: subThreshold},
		{testName: "Modulus not above the secret is rejected before drawing randomness", run: modulusTooSmall},
	}

	failed := 0
	for _, testCase := range testCases {
		if err := testCase.run(p); err == nil {
			colour.Printf("^2 - %v^R\n", testCase.testName)
		} else {
			failed++
			colour.Printf("^1 - %v: %v^R\n", testCase.testName, err)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}
