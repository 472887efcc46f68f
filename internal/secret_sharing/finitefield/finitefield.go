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

// Package finitefield names the prime moduli supported by the secret sharing library.
package finitefield

import (
	"fmt"
	"math/big"
	"strings"
)

// ID represents a named prime modulus.
type ID int

const (
	// Demo7919 is the four digit prime used in examples. It offers no security.
	Demo7919 ID = 1 + iota
	// P256 is 2^256 - 189, the largest prime below 2^256.
	P256
	// Secp256k1N is the order of the secp256k1 group. Secrets below it are valid
	// secp256k1 scalars.
	Secp256k1N
	// P521 is the Mersenne prime 2^521 - 1.
	P521
)

var names = map[ID]string{
	Demo7919:   "demo-7919",
	P256:       "p256",
	Secp256k1N: "secp256k1-n",
	P521:       "p521",
}

func (id ID) String() string {
	if n, ok := names[id]; ok {
		return n
	}
	return fmt.Sprintf("unknown modulus ID: %d", int(id))
}

// Modulus returns a fresh copy of the prime identified by id.
func (id ID) Modulus() (*big.Int, error) {
	switch id {
	case Demo7919:
		return big.NewInt(7919), nil
	case P256:
		p := new(big.Int).Lsh(big.NewInt(1), 256)
		return p.Sub(p, big.NewInt(189)), nil
	case Secp256k1N:
		p, _ := new(big.Int).SetString("FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFEBAAEDCE6AF48A03BBFD25E8CD0364141", 16)
		return p, nil
	case P521:
		p := new(big.Int).Lsh(big.NewInt(1), 521)
		return p.Sub(p, big.NewInt(1)), nil
	default:
		return nil, fmt.Errorf("invalid modulus: %v", id)
	}
}

// Parse resolves s either as the name of a known modulus or as an integer
// literal (decimal, or hexadecimal with a 0x prefix). Primality of literals is
// checked by the field, not here.
func Parse(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	for id, n := range names {
		if strings.EqualFold(s, n) {
			return id.Modulus()
		}
	}
	p, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("modulus %q is neither a known name nor an integer", s)
	}
	return p, nil
}
