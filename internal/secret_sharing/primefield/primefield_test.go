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

package primefield_test

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/GoogleCloudPlatform/custody/internal/secret_sharing/primefield"
	"github.com/GoogleCloudPlatform/custody/internal/secret_sharing/secrets"
	"github.com/google/go-cmp/cmp"
	"github.com/google/tink/go/subtle/random"
)

const demoPrime = 7919

func TestModInverseKnownValues(t *testing.T) {
	type testCase struct {
		tag  string
		a    int64
		p    int64
		want int64
	}
	for _, tc := range []testCase{
		{tag: "3 mod 7919", a: 3, p: demoPrime, want: 2640},
		{tag: "identity", a: 1, p: 7, want: 1},
		{tag: "2 mod 7", a: 2, p: 7, want: 4},
		{tag: "3 mod 7", a: 3, p: 7, want: 5},
		{tag: "p-1 is self inverse", a: 6, p: 7, want: 6},
		{tag: "10 mod 17", a: 10, p: 17, want: 12},
		{tag: "negative input is reduced", a: -1, p: 7, want: 6},
		{tag: "input above modulus is reduced", a: demoPrime + 3, p: demoPrime, want: 2640},
		{tag: "composite modulus with coprime input", a: 3, p: 8, want: 3},
	} {
		t.Run(tc.tag, func(t *testing.T) {
			got, err := primefield.ModInverse(big.NewInt(tc.a), big.NewInt(tc.p))
			if err != nil {
				t.Fatalf("ModInverse(%d, %d) err = %v, want nil", tc.a, tc.p, err)
			}
			if got.Cmp(big.NewInt(tc.want)) != 0 {
				t.Errorf("ModInverse(%d, %d) = %v, want %d", tc.a, tc.p, got, tc.want)
			}
		})
	}
}

func TestModInverseMultipliesToOne(t *testing.T) {
	p := big.NewInt(demoPrime)
	one := big.NewInt(1)
	for a := int64(1); a < demoPrime; a++ {
		inv, err := primefield.ModInverse(big.NewInt(a), p)
		if err != nil {
			t.Fatalf("ModInverse(%d) err = %v", a, err)
		}
		if inv.Sign() <= 0 || inv.Cmp(p) >= 0 {
			t.Fatalf("ModInverse(%d) = %v, outside [1, p)", a, inv)
		}
		if got := primefield.ModMul(big.NewInt(a), inv, p); got.Cmp(one) != 0 {
			t.Fatalf("%d * ModInverse(%d) = %v mod p, want 1", a, a, got)
		}
	}
}

func TestModInverseLargePrime(t *testing.T) {
	// 2^256 - 189
	p := new(big.Int).Lsh(big.NewInt(1), 256)
	p.Sub(p, big.NewInt(189))
	for i := 0; i < 32; i++ {
		a := new(big.Int).SetBytes(random.GetRandomBytes(32))
		a.Mod(a, p)
		if a.Sign() == 0 {
			continue
		}
		inv, err := primefield.ModInverse(a, p)
		if err != nil {
			t.Fatalf("ModInverse() err = %v", err)
		}
		if got := primefield.ModMul(a, inv, p); got.Cmp(big.NewInt(1)) != 0 {
			t.Fatalf("a * ModInverse(a) = %v, want 1", got)
		}
		if want := new(big.Int).ModInverse(a, p); inv.Cmp(want) != 0 {
			t.Errorf("ModInverse() = %v, math/big says %v", inv, want)
		}
	}
}

func TestModInverseFailures(t *testing.T) {
	type testCase struct {
		tag     string
		a       int64
		p       int64
		wantErr error
	}
	for _, tc := range []testCase{
		{tag: "zero", a: 0, p: demoPrime, wantErr: secrets.ErrNotInvertible},
		{tag: "multiple of modulus", a: 2 * demoPrime, p: demoPrime, wantErr: secrets.ErrNotInvertible},
		{tag: "shared factor", a: 4, p: 8, wantErr: secrets.ErrNotInvertible},
		{tag: "modulus one", a: 3, p: 1, wantErr: secrets.ErrInput},
		{tag: "negative modulus", a: 3, p: -7, wantErr: secrets.ErrInput},
	} {
		t.Run(tc.tag, func(t *testing.T) {
			_, err := primefield.ModInverse(big.NewInt(tc.a), big.NewInt(tc.p))
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("ModInverse(%d, %d) err = %v, want %v", tc.a, tc.p, err, tc.wantErr)
			}
		})
	}
	_, err := primefield.ModInverse(big.NewInt(0), big.NewInt(demoPrime))
	if !errors.Is(err, secrets.ErrArithmetic) {
		t.Errorf("ModInverse(0) err = %v, want it to be an arithmetic error", err)
	}
}

func TestFieldArithmetic(t *testing.T) {
	type testCase struct {
		tag  string
		a    int64
		b    int64
		sum  int64
		mult int64
		sub  int64
	}
	for _, tc := range []testCase{
		{tag: "small values", a: 2, b: 5, sum: 7, mult: 10, sub: demoPrime - 3},
		{tag: "field order", a: demoPrime - 1, b: 1, sum: 0, mult: demoPrime - 1, sub: demoPrime - 2},
		{tag: "field order + 1", a: demoPrime - 1, b: 2, sum: 1, mult: demoPrime - 2, sub: demoPrime - 3},
		{tag: "p-1 squared", a: demoPrime - 1, b: demoPrime - 1, sum: demoPrime - 2, mult: 1, sub: 0},
		{tag: "zero", a: 0, b: 0, sum: 0, mult: 0, sub: 0},
	} {
		t.Run(tc.tag, func(t *testing.T) {
			p := big.NewInt(demoPrime)
			a, b := big.NewInt(tc.a), big.NewInt(tc.b)
			got := []int64{
				primefield.ModAdd(a, b, p).Int64(),
				primefield.ModMul(a, b, p).Int64(),
				primefield.ModSub(a, b, p).Int64(),
			}
			want := []int64{tc.sum, tc.mult, tc.sub}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("[add, mul, sub] mismatch (-want +got):\n%s", diff)
			}

			// The Element methods must agree with the package functions.
			f, err := primefield.New(p)
			if err != nil {
				t.Fatal(err)
			}
			ea, err := f.NewElement(a)
			if err != nil {
				t.Fatal(err)
			}
			eb, err := f.NewElement(b)
			if err != nil {
				t.Fatal(err)
			}
			gotElems := []int64{
				ea.Add(eb).BigInt().Int64(),
				ea.Multiply(eb).BigInt().Int64(),
				ea.Subtract(eb).BigInt().Int64(),
			}
			if diff := cmp.Diff(want, gotElems); diff != "" {
				t.Errorf("Element [add, mul, sub] mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestElementNegateAndInverse(t *testing.T) {
	f, err := primefield.New(big.NewInt(demoPrime))
	if err != nil {
		t.Fatal(err)
	}
	three, _ := f.CreateElement(3)
	if got := three.Negate().BigInt().Int64(); got != demoPrime-3 {
		t.Errorf("Negate(3) = %d, want %d", got, demoPrime-3)
	}
	if !three.Add(three.Negate()).IsZero() {
		t.Errorf("3 + -3 != 0")
	}
	inv, err := three.Inverse()
	if err != nil {
		t.Fatalf("Inverse() err = %v", err)
	}
	if got := inv.BigInt().Int64(); got != 2640 {
		t.Errorf("Inverse(3) = %d, want 2640", got)
	}
	zero, _ := f.CreateElement(0)
	if _, err := zero.Inverse(); !errors.Is(err, secrets.ErrNotInvertible) {
		t.Errorf("Inverse(0) err = %v, want ErrNotInvertible", err)
	}
	wrapped, _ := f.CreateElement(demoPrime + 3)
	if !wrapped.Equal(three) {
		t.Errorf("CreateElement(p+3) = %v, want 3", wrapped.BigInt())
	}
}

func TestNewRejectsComposite(t *testing.T) {
	for _, p := range []int64{-7, 0, 1, 4, 7917, 7921} {
		if _, err := primefield.New(big.NewInt(p)); !errors.Is(err, secrets.ErrModulusNotPrime) {
			t.Errorf("New(%d) err = %v, want ErrModulusNotPrime", p, err)
		}
	}
	if _, err := primefield.New(nil); !errors.Is(err, secrets.ErrModulusNotPrime) {
		t.Errorf("New(nil) err = %v, want ErrModulusNotPrime", err)
	}
}

func TestNewElementRange(t *testing.T) {
	f, err := primefield.New(big.NewInt(demoPrime))
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range []int64{-1, demoPrime, demoPrime + 1} {
		if _, err := f.NewElement(big.NewInt(v)); !errors.Is(err, secrets.ErrInput) {
			t.Errorf("NewElement(%d) err = %v, want ErrInput", v, err)
		}
	}
	if _, err := f.NewElement(nil); err == nil {
		t.Errorf("NewElement(nil) err = nil, want error")
	}
}

func TestBytesArePadded(t *testing.T) {
	f, err := primefield.New(big.NewInt(demoPrime))
	if err != nil {
		t.Fatal(err)
	}
	if f.ElementSize() != 2 {
		t.Fatalf("ElementSize() = %d, want 2", f.ElementSize())
	}
	e, _ := f.CreateElement(5)
	if got, want := e.Bytes(), []byte{0x00, 0x05}; !bytes.Equal(got, want) {
		t.Errorf("Bytes() = %x, want %x", got, want)
	}
}

func TestNewRandomStaysInField(t *testing.T) {
	p := big.NewInt(demoPrime)
	f, err := primefield.New(p)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 1000; i++ {
		e, err := f.NewRandom(nil)
		if err != nil {
			t.Fatalf("NewRandom() err = %v", err)
		}
		if v := e.BigInt(); v.Sign() < 0 || v.Cmp(p) >= 0 {
			t.Fatalf("NewRandom() = %v, outside [0, p)", v)
		}
	}
}

func TestNewRandomPropagatesReaderError(t *testing.T) {
	f, err := primefield.New(big.NewInt(demoPrime))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.NewRandom(bytes.NewReader(nil)); err == nil {
		t.Errorf("NewRandom(empty reader) err = nil, want error")
	}
}

func TestIsPrime(t *testing.T) {
	p256 := new(big.Int).Lsh(big.NewInt(1), 256)
	p256.Sub(p256, big.NewInt(189))
	if !primefield.IsPrime(p256) {
		t.Errorf("IsPrime(2^256-189) = false, want true")
	}
	if primefield.IsPrime(new(big.Int).Add(p256, big.NewInt(2))) {
		t.Errorf("IsPrime(2^256-187) = true, want false")
	}
}
