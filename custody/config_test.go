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

package custody

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/GoogleCloudPlatform/custody/custody/shares"
	"github.com/GoogleCloudPlatform/custody/internal/secret_sharing/finitefield"
	"github.com/GoogleCloudPlatform/custody/internal/secret_sharing/secrets"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

const sampleConfig = `
modulus: secp256k1-n
numShares: 5
threshold: 3
commitment: true
derivation:
  network: testnet3
  passphrase: correct horse
  path: "m/44'/1'/0'/0/0"
  addressType: p2wpkh
`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	if err != nil {
		t.Fatalf("ParseConfig() err = %v", err)
	}
	want := &Config{
		Modulus:    "secp256k1-n",
		NumShares:  5,
		Threshold:  3,
		Commitment: true,
		Derivation: DerivationConfig{
			Network:     "testnet3",
			Passphrase:  "correct horse",
			Path:        "m/44'/1'/0'/0/0",
			AddressType: "p2wpkh",
		},
	}
	if diff := cmp.Diff(want, cfg, cmpopts.IgnoreUnexported(Config{})); diff != "" {
		t.Errorf("ParseConfig() mismatch (-want +got):\n%s", diff)
	}
	n, _ := finitefield.Secp256k1N.Modulus()
	if cfg.ModulusInt().Cmp(n) != 0 {
		t.Errorf("ModulusInt() = %v, want %v", cfg.ModulusInt(), n)
	}
	md := cfg.Metadata()
	if md.NumShares != 5 || md.Threshold != 3 || md.Modulus.Cmp(n) != 0 {
		t.Errorf("Metadata() = %+v", md)
	}
	if _, err := cfg.Pipeline(); err != nil {
		t.Errorf("Pipeline() err = %v", err)
	}
}

func TestParseConfigKeepsDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("numShares: 7\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Modulus != "p256" || cfg.Threshold != 3 || cfg.NumShares != 7 || !cfg.Commitment {
		t.Errorf("ParseConfig() = %+v, want defaults with numShares 7", cfg)
	}
}

func TestParseConfigRejects(t *testing.T) {
	for _, tc := range []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{name: "unknown key", yaml: "shares: 5\n"},
		{name: "threshold above shares", yaml: "numShares: 2\nthreshold: 3\n", wantErr: secrets.ErrInvalidThreshold},
		{name: "zero threshold", yaml: "threshold: 0\n", wantErr: secrets.ErrInvalidThreshold},
		{name: "composite modulus", yaml: "modulus: \"7921\"\ncommitment: false\n", wantErr: secrets.ErrModulusNotPrime},
		{name: "unknown modulus", yaml: "modulus: p999\n", wantErr: secrets.ErrInput},
		{name: "modulus not above shares", yaml: "modulus: \"7\"\nnumShares: 7\nthreshold: 2\ncommitment: false\n", wantErr: secrets.ErrModulusTooSmall},
		{name: "commitment on small modulus", yaml: "modulus: demo-7919\n", wantErr: shares.ErrCommitmentTooWeak},
		{name: "unknown network", yaml: "derivation:\n  network: dogecoin\n"},
		{name: "bad path", yaml: "derivation:\n  path: x/1\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tc.yaml))
			if err == nil {
				t.Fatalf("ParseConfig() err = nil, want error")
			}
			if tc.wantErr != nil && !errors.Is(err, tc.wantErr) {
				t.Errorf("ParseConfig() err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custody.yaml")
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() err = %v", err)
	}
	if cfg.Derivation.Network != "testnet3" {
		t.Errorf("LoadConfig() network = %q, want testnet3", cfg.Derivation.Network)
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Errorf("LoadConfig(missing) err = nil, want error")
	}
}

func TestModulusIntReturnsCopy(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ModulusInt() != nil {
		t.Fatalf("ModulusInt() before Validate = %v, want nil", cfg.ModulusInt())
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	cfg.ModulusInt().SetInt64(3)
	if cfg.ModulusInt().BitLen() != 256 {
		t.Errorf("ModulusInt() was mutated through a previous result")
	}
}
