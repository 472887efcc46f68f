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

// Package derivation feeds a reconstructed secret into a key-derivation
// pipeline (seed, private key, public key, address).
//
// The pipeline steps are supplied by a Pipeline implementation; this package
// only sequences them and propagates their failures.
package derivation

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	glog "github.com/golang/glog"
)

// ErrSecretMismatch is returned by VerifyRoundTrip when the recovered secret
// differs from the original.
var ErrSecretMismatch = errors.New("recovered secret does not match the original")

// Pipeline is an external key-derivation pipeline. Each method either returns
// a well-formed result or an implementation-defined error.
type Pipeline interface {
	// SeedFromSecret derives seed bytes from canonical secret material.
	SeedFromSecret(material []byte) ([]byte, error)
	// MasterKeyFromSeed derives the hierarchical private key from a seed.
	MasterKeyFromSeed(seed []byte) ([]byte, error)
	// PublicKeyFromPrivate derives the serialized public key.
	PublicKeyFromPrivate(privateKey []byte) ([]byte, error)
	// AddressFromPublicKey encodes a public key as an address.
	AddressFromPublicKey(publicKey []byte) (string, error)
}

// Identity is the key material derived from one secret.
type Identity struct {
	Seed       []byte
	PrivateKey []byte
	PublicKey  []byte
	Address    string
}

// String omits the seed and private key.
func (id *Identity) String() string {
	return fmt.Sprintf("Identity{Address: %s, PublicKey: %x}", id.Address, id.PublicKey)
}

// SecretMaterial returns secret as big endian bytes left padded to width, the
// canonical form handed to Pipeline.SeedFromSecret. Callers pass the byte
// length of the modulus so the encoding does not depend on the secret's value.
func SecretMaterial(secret *big.Int, width int) ([]byte, error) {
	if secret == nil || secret.Sign() < 0 {
		return nil, fmt.Errorf("secret must be a non-negative integer")
	}
	if n := (secret.BitLen() + 7) / 8; n > width {
		return nil, fmt.Errorf("secret needs %d bytes, more than the width %d", n, width)
	}
	return secret.FillBytes(make([]byte, width)), nil
}

// DeriveIdentity runs secret through p: seed, private key, public key, address.
// The first failing step aborts the derivation and its error is returned
// wrapped, so it can still be matched with errors.Is/As.
func DeriveIdentity(ctx context.Context, p Pipeline, secret *big.Int, width int) (*Identity, error) {
	if p == nil {
		return nil, fmt.Errorf("nil Pipeline passed to DeriveIdentity()")
	}
	material, err := SecretMaterial(secret, width)
	if err != nil {
		return nil, err
	}

	id := &Identity{}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id.Seed, err = p.SeedFromSecret(material); err != nil {
		return nil, fmt.Errorf("deriving seed: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id.PrivateKey, err = p.MasterKeyFromSeed(id.Seed); err != nil {
		return nil, fmt.Errorf("deriving master key: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id.PublicKey, err = p.PublicKeyFromPrivate(id.PrivateKey); err != nil {
		return nil, fmt.Errorf("deriving public key: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id.Address, err = p.AddressFromPublicKey(id.PublicKey); err != nil {
		return nil, fmt.Errorf("deriving address: %w", err)
	}

	glog.V(1).Infof("Derived identity for address %s", id.Address)
	return id, nil
}

// VerifyRoundTrip compares a recovered secret against the original. It is a
// self-test aid for demos where the original is at hand, not a security check.
func VerifyRoundTrip(recovered, original *big.Int) error {
	if recovered == nil || original == nil || recovered.Cmp(original) != 0 {
		return ErrSecretMismatch
	}
	return nil
}
