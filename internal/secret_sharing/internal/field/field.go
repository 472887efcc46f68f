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

// Package field defines a generic definition of a finite field.
package field

import (
	"io"
	"math/big"
)

// Element is an element in a Finite Field
type Element interface {
	// Add element `a` and returns a new element.
	Add(a Element) Element
	// Subtract element `a` and returns a new element.
	Subtract(a Element) Element
	// Multiply by element `a` and returns a new element.
	Multiply(a Element) Element
	// Negate returns the additive inverse.
	Negate() Element
	// Inverse returns an element that's the multiplicative inverse.
	// If element has no inverse, an error is returned.
	Inverse() (Element, error)
	// IsZero reports whether the element is the additive identity.
	IsZero() bool
	// Equal reports whether both elements hold the same value.
	Equal(b Element) bool
	// BigInt returns a copy of the element's canonical value in [0, order).
	BigInt() *big.Int
	// Bytes returns the element in a big endian encoded byte representation of ElementSize() bytes.
	Bytes() []byte
}

// GaloisField represents a Finite Field.
type GaloisField interface {
	// CreateElement creates a new field element from i, reduced modulo the field order.
	CreateElement(i int) (Element, error)
	// NewElement creates an element from v. v must already lie in [0, order).
	NewElement(v *big.Int) (Element, error)
	// NewRandom draws a uniformly random element in [0, order) from r.
	NewRandom(r io.Reader) (Element, error)
	// Order returns a copy of the number of elements in the field.
	Order() *big.Int
	// ElementSize returns the size of each element in bytes.
	ElementSize() int
}
