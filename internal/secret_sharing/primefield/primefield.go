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

// Package primefield implements arithmetic in the prime field Z/pZ for an
// arbitrary prime p.
//
// The package level functions operate on *big.Int values that already lie in
// [0, p) and always return freshly allocated results in [0, p). Field and
// Element wrap them behind the generic field interfaces used by the Shamir
// implementation.
package primefield

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/GoogleCloudPlatform/custody/internal/secret_sharing/internal/field"
	"github.com/GoogleCloudPlatform/custody/internal/secret_sharing/secrets"
)

// Number of Miller-Rabin rounds used by IsPrime in addition to the
// Baillie-PSW test big.Int.ProbablyPrime always performs.
const primalityRounds = 20

var (
	zero = big.NewInt(0)
	one  = big.NewInt(1)
)

// ModAdd returns (a + b) mod p.
func ModAdd(a, b, p *big.Int) *big.Int {
	r := new(big.Int).Add(a, b)
	return r.Mod(r, p)
}

// ModSub returns (a - b) mod p, normalized into [0, p).
func ModSub(a, b, p *big.Int) *big.Int {
	r := new(big.Int).Sub(a, b)
	// big.Int.Mod is Euclidean, the result is never negative for p > 0.
	return r.Mod(r, p)
}

// ModMul returns (a * b) mod p.
func ModMul(a, b, p *big.Int) *big.Int {
	r := new(big.Int).Mul(a, b)
	return r.Mod(r, p)
}

// ModInverse returns the unique x in [1, p) with a*x ≡ 1 (mod p), computed with
// the extended Euclidean algorithm. It returns secrets.ErrNotInvertible when
// a ≡ 0 (mod p) or, for a composite p, when gcd(a, p) != 1.
func ModInverse(a, p *big.Int) (*big.Int, error) {
	if p.Cmp(one) <= 0 {
		return nil, fmt.Errorf("%w: modulus must be greater than 1, got %v", secrets.ErrInput, p)
	}
	a0 := new(big.Int).Mod(a, p)
	if a0.Sign() == 0 {
		return nil, fmt.Errorf("%w: %v is congruent to 0 mod %v", secrets.ErrNotInvertible, a, p)
	}

	// Invariant: oldS*a0 ≡ oldR and s*a0 ≡ r (mod p).
	oldR, r := new(big.Int).Set(a0), new(big.Int).Set(p)
	oldS, s := big.NewInt(1), big.NewInt(0)
	q, tmp := new(big.Int), new(big.Int)
	for r.Sign() != 0 {
		q.Quo(oldR, r)

		tmp.Mul(q, r)
		tmp.Sub(oldR, tmp)
		oldR, r = r, new(big.Int).Set(tmp)

		tmp.Mul(q, s)
		tmp.Sub(oldS, tmp)
		oldS, s = s, new(big.Int).Set(tmp)
	}
	if oldR.Cmp(one) != 0 {
		return nil, fmt.Errorf("%w: gcd(%v, %v) = %v", secrets.ErrNotInvertible, a, p, oldR)
	}
	// The Bezout coefficient is frequently negative.
	if oldS.Sign() < 0 {
		oldS.Add(oldS, p)
	}
	return oldS.Mod(oldS, p), nil
}

// IsPrime reports whether p is (with overwhelming probability) prime.
func IsPrime(p *big.Int) bool {
	return p != nil && p.Cmp(one) > 0 && p.ProbablyPrime(primalityRounds)
}

// Element is an element in Z/pZ.
type Element struct {
	v *big.Int
	f *Field
}

var _ field.Element = (*Element)(nil)

// Add element by 'x' modulo the field order.
func (e *Element) Add(x field.Element) field.Element {
	return e.f.wrap(ModAdd(e.v, x.(*Element).v, e.f.p))
}

// Subtract element by 'x' modulo the field order.
func (e *Element) Subtract(x field.Element) field.Element {
	return e.f.wrap(ModSub(e.v, x.(*Element).v, e.f.p))
}

// Multiply element by 'x' modulo the field order.
func (e *Element) Multiply(x field.Element) field.Element {
	return e.f.wrap(ModMul(e.v, x.(*Element).v, e.f.p))
}

// Negate returns -e modulo the field order.
func (e *Element) Negate() field.Element {
	return e.f.wrap(ModSub(zero, e.v, e.f.p))
}

// Inverse returns the multiplicative inverse for an element in the field.
func (e *Element) Inverse() (field.Element, error) {
	inv, err := ModInverse(e.v, e.f.p)
	if err != nil {
		return nil, err
	}
	return e.f.wrap(inv), nil
}

// IsZero reports whether e is the additive identity.
func (e *Element) IsZero() bool {
	return e.v.Sign() == 0
}

// Equal reports whether e and b hold the same value.
func (e *Element) Equal(b field.Element) bool {
	return e.v.Cmp(b.(*Element).v) == 0
}

// BigInt returns a copy of the element's value.
func (e *Element) BigInt() *big.Int {
	return new(big.Int).Set(e.v)
}

// Bytes returns a big endian representation of the element value, left padded
// to the field's element size.
func (e *Element) Bytes() []byte {
	return e.v.FillBytes(make([]byte, e.f.size))
}

// Field is the prime field Z/pZ.
type Field struct {
	p    *big.Int
	size int
}

var _ field.GaloisField = (*Field)(nil)

// New creates the field of integers modulo p. p must be prime.
func New(p *big.Int) (*Field, error) {
	if !IsPrime(p) {
		return nil, fmt.Errorf("%w: %v", secrets.ErrModulusNotPrime, p)
	}
	return &Field{
		p:    new(big.Int).Set(p),
		size: (p.BitLen() + 7) / 8,
	}, nil
}

func (f *Field) wrap(v *big.Int) *Element {
	return &Element{v: v, f: f}
}

// Order returns a copy of the field's prime modulus.
func (f *Field) Order() *big.Int {
	return new(big.Int).Set(f.p)
}

// ElementSize returns the size in bytes of elements in the field.
func (f *Field) ElementSize() int {
	return f.size
}

// CreateElement creates an element in the field by reducing o modulo the
// field order.
func (f *Field) CreateElement(o int) (field.Element, error) {
	v := big.NewInt(int64(o))
	return f.wrap(v.Mod(v, f.p)), nil
}

// NewElement wraps v, which must already be in [0, p).
func (f *Field) NewElement(v *big.Int) (field.Element, error) {
	if v == nil || v.Sign() < 0 || v.Cmp(f.p) >= 0 {
		return nil, fmt.Errorf("%w: value outside [0, %v)", secrets.ErrInput, f.p)
	}
	return f.wrap(new(big.Int).Set(v)), nil
}

// NewRandom returns a uniformly random element in [0, p) read from r. A nil
// reader falls back to crypto/rand.
func (f *Field) NewRandom(r io.Reader) (field.Element, error) {
	if r == nil {
		r = rand.Reader
	}
	v, err := rand.Int(r, f.p)
	if err != nil {
		return nil, fmt.Errorf("drawing random field element: %w", err)
	}
	return f.wrap(v), nil
}
