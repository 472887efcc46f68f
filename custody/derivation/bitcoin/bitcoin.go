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

// Package bitcoin implements derivation.Pipeline with the BIP-39 seed function,
// BIP-32 hierarchical keys and secp256k1, producing Bitcoin addresses.
package bitcoin

import (
	"crypto/sha512"
	"fmt"
	"strconv"
	"strings"

	"github.com/GoogleCloudPlatform/custody/constants"
	"github.com/GoogleCloudPlatform/custody/custody/derivation"
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"golang.org/x/crypto/pbkdf2"
)

// AddressType selects the address encoding.
type AddressType string

const (
	// P2PKH is a base58 pay-to-public-key-hash address.
	P2PKH AddressType = "p2pkh"
	// P2WPKH is a bech32 native segwit pay-to-witness-public-key-hash address.
	P2WPKH AddressType = "p2wpkh"
)

// Pipeline derives Bitcoin key material from a secret.
type Pipeline struct {
	params      *chaincfg.Params
	passphrase  string
	path        []uint32
	addressType AddressType
}

var _ derivation.Pipeline = (*Pipeline)(nil)

// Options configures a Pipeline. The zero value derives the mainnet master key
// with an empty passphrase and a P2PKH address.
type Options struct {
	// Network is one of mainnet, testnet3, regtest, simnet or signet.
	Network string
	// Passphrase is the optional BIP-39 passphrase mixed into the seed salt.
	Passphrase string
	// Path is a BIP-32 path such as m/44'/0'/0'/0/0. Empty or "m" keeps the master key.
	Path string
	// AddressType defaults to P2PKH.
	AddressType AddressType
}

// New creates a Pipeline from opts.
func New(opts Options) (*Pipeline, error) {
	params, err := NetworkParams(opts.Network)
	if err != nil {
		return nil, err
	}
	path, err := ParsePath(opts.Path)
	if err != nil {
		return nil, err
	}
	at := opts.AddressType
	switch at {
	case "":
		at = P2PKH
	case P2PKH, P2WPKH:
	default:
		return nil, fmt.Errorf("unknown address type %q", at)
	}
	return &Pipeline{
		params:      params,
		passphrase:  opts.Passphrase,
		path:        path,
		addressType: at,
	}, nil
}

// NetworkParams maps a network name to its chain parameters. The empty name is mainnet.
func NetworkParams(name string) (*chaincfg.Params, error) {
	switch strings.ToLower(name) {
	case "", "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	case "simnet":
		return &chaincfg.SimNetParams, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network %q", name)
	}
}

// ParsePath parses a BIP-32 path. Hardened components are marked with ', h or H.
func ParsePath(path string) ([]uint32, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "m" {
		return nil, nil
	}
	parts := strings.Split(path, "/")
	if parts[0] != "m" {
		return nil, fmt.Errorf("derivation path %q must start with m/", path)
	}
	out := make([]uint32, 0, len(parts)-1)
	for _, p := range parts[1:] {
		offset := uint32(0)
		if strings.HasSuffix(p, "'") || strings.HasSuffix(p, "h") || strings.HasSuffix(p, "H") {
			offset = hdkeychain.HardenedKeyStart
			p = p[:len(p)-1]
		}
		i, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid path component %q in %q: %v", p, path, err)
		}
		if i >= hdkeychain.HardenedKeyStart {
			return nil, fmt.Errorf("path component %d in %q is out of range", i, path)
		}
		out = append(out, uint32(i)+offset)
	}
	return out, nil
}

// SeedFromSecret applies the BIP-39 seed function, PBKDF2-HMAC-SHA512 with the
// salt "mnemonic"+passphrase, to the secret material.
func (p *Pipeline) SeedFromSecret(material []byte) ([]byte, error) {
	if len(material) == 0 {
		return nil, fmt.Errorf("empty secret material")
	}
	salt := []byte(constants.SeedSaltPrefix + p.passphrase)
	return pbkdf2.Key(material, salt, constants.SeedIterations, constants.SeedBytes, sha512.New), nil
}

// ExtendedKey returns the extended private key at the configured path.
func (p *Pipeline) ExtendedKey(seed []byte) (*hdkeychain.ExtendedKey, error) {
	key, err := hdkeychain.NewMaster(seed, p.params)
	if err != nil {
		return nil, err
	}
	for _, i := range p.path {
		if key, err = key.Derive(i); err != nil {
			return nil, fmt.Errorf("deriving child %d: %w", i, err)
		}
	}
	return key, nil
}

// MasterKeyFromSeed returns the 32 byte secp256k1 private key of the extended
// key at the configured path.
func (p *Pipeline) MasterKeyFromSeed(seed []byte) ([]byte, error) {
	key, err := p.ExtendedKey(seed)
	if err != nil {
		return nil, err
	}
	priv, err := key.ECPrivKey()
	if err != nil {
		return nil, err
	}
	return priv.Serialize(), nil
}

// PublicKeyFromPrivate returns the compressed SEC1 public key.
func (p *Pipeline) PublicKeyFromPrivate(privateKey []byte) ([]byte, error) {
	priv, err := parsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	return priv.PubKey().SerializeCompressed(), nil
}

// AddressFromPublicKey encodes a compressed or uncompressed public key.
func (p *Pipeline) AddressFromPublicKey(publicKey []byte) (string, error) {
	if _, err := btcec.ParsePubKey(publicKey); err != nil {
		return "", fmt.Errorf("invalid public key: %w", err)
	}
	hash := btcutil.Hash160(publicKey)
	var (
		addr btcutil.Address
		err  error
	)
	switch p.addressType {
	case P2WPKH:
		addr, err = btcutil.NewAddressWitnessPubKeyHash(hash, p.params)
	default:
		addr, err = btcutil.NewAddressPubKeyHash(hash, p.params)
	}
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

// WIF renders a private key in wallet import format for the pipeline's network.
func (p *Pipeline) WIF(privateKey []byte) (string, error) {
	priv, err := parsePrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	wif, err := btcutil.NewWIF(priv, p.params, true)
	if err != nil {
		return "", err
	}
	return wif.String(), nil
}

func parsePrivateKey(b []byte) (*btcec.PrivateKey, error) {
	if len(b) != btcec.PrivKeyBytesLen {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", btcec.PrivKeyBytesLen, len(b))
	}
	var s btcec.ModNScalar
	if overflow := s.SetByteSlice(b); overflow || s.IsZero() {
		return nil, fmt.Errorf("private key is not a valid secp256k1 scalar")
	}
	priv, _ := btcec.PrivKeyFromBytes(b)
	return priv, nil
}
