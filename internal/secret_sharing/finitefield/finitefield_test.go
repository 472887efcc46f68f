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

package finitefield

import (
	"math/big"
	"testing"
)

func TestNamedModuliArePrime(t *testing.T) {
	for id, name := range names {
		t.Run(name, func(t *testing.T) {
			p, err := id.Modulus()
			if err != nil {
				t.Fatalf("Modulus() err = %v", err)
			}
			if !p.ProbablyPrime(20) {
				t.Errorf("%v = %v is not prime", id, p)
			}
		})
	}
}

func TestModulusReturnsCopy(t *testing.T) {
	p, _ := Demo7919.Modulus()
	p.SetInt64(4)
	q, _ := Demo7919.Modulus()
	if q.Int64() != 7919 {
		t.Errorf("Modulus() = %v after mutating a previous result, want 7919", q)
	}
}

func TestParse(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want *big.Int
	}{
		{in: "demo-7919", want: big.NewInt(7919)},
		{in: "  DEMO-7919 ", want: big.NewInt(7919)},
		{in: "7919", want: big.NewInt(7919)},
		{in: "0x1eef", want: big.NewInt(7919)},
		{in: "p256", want: new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(189))},
	} {
		got, err := Parse(tc.in)
		if err != nil {
			t.Errorf("Parse(%q) err = %v", tc.in, err)
			continue
		}
		if got.Cmp(tc.want) != 0 {
			t.Errorf("Parse(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	for _, bad := range []string{"", "p257", "12ab"} {
		if _, err := Parse(bad); err == nil {
			t.Errorf("Parse(%q) err = nil, want error", bad)
		}
	}
}

func TestUnknownID(t *testing.T) {
	if _, err := ID(99).Modulus(); err == nil {
		t.Errorf("ID(99).Modulus() err = nil, want error")
	}
	if got := ID(99).String(); got != "unknown modulus ID: 99" {
		t.Errorf("String() = %q", got)
	}
}
