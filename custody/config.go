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
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/GoogleCloudPlatform/custody/constants"
	"github.com/GoogleCloudPlatform/custody/custody/derivation/bitcoin"
	"github.com/GoogleCloudPlatform/custody/custody/shares"
	"github.com/GoogleCloudPlatform/custody/internal/secret_sharing/finitefield"
	"github.com/GoogleCloudPlatform/custody/internal/secret_sharing/primefield"
	"github.com/GoogleCloudPlatform/custody/internal/secret_sharing/secrets"
	"sigs.k8s.io/yaml"
)

// DerivationConfig configures the Bitcoin derivation pipeline.
type DerivationConfig struct {
	Network     string `json:"network,omitempty"`
	Passphrase  string `json:"passphrase,omitempty"`
	Path        string `json:"path,omitempty"`
	AddressType string `json:"addressType,omitempty"`
}

// Config is the YAML configuration shared by the library and the CLI.
type Config struct {
	// Modulus is a named field (demo-7919, p256, secp256k1-n, p521) or a prime literal.
	Modulus    string           `json:"modulus"`
	NumShares  int              `json:"numShares"`
	Threshold  int              `json:"threshold"`
	Commitment bool             `json:"commitment"`
	Derivation DerivationConfig `json:"derivation"`

	modulus *big.Int
}

// DefaultConfig returns a 3-of-5 split over p256 with a commitment.
func DefaultConfig() Config {
	return Config{
		Modulus:    constants.DefaultModulus,
		NumShares:  5,
		Threshold:  3,
		Commitment: true,
	}
}

// DefaultConfigPath returns the config file location under the user's config directory.
func DefaultConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.DefaultConfigDir, constants.DefaultConfigFile), nil
}

// ParseConfig parses YAML on top of DefaultConfig and validates the result.
// Unknown keys are rejected.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig reads and parses the config file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// Validate checks the share counts against the modulus and resolves it.
func (c *Config) Validate() error {
	p, err := finitefield.Parse(c.Modulus)
	if err != nil {
		return fmt.Errorf("%w: %v", secrets.ErrInput, err)
	}
	if !primefield.IsPrime(p) {
		return fmt.Errorf("%w: %v", secrets.ErrModulusNotPrime, c.Modulus)
	}
	if c.Threshold < 1 || c.Threshold > c.NumShares {
		return fmt.Errorf("%w: threshold %d with %d shares", secrets.ErrInvalidThreshold, c.Threshold, c.NumShares)
	}
	if p.Cmp(big.NewInt(int64(c.NumShares))) <= 0 {
		return fmt.Errorf("%w: %d shares need a modulus above %d", secrets.ErrModulusTooSmall, c.NumShares, c.NumShares)
	}
	if c.Commitment && !shares.CommitmentAllowed(p) {
		return fmt.Errorf("%w: %s has %d bits", shares.ErrCommitmentTooWeak, c.Modulus, p.BitLen())
	}
	if _, err := c.pipelineOptions(); err != nil {
		return err
	}
	c.modulus = p
	return nil
}

// ModulusInt returns the resolved modulus. Validate must have succeeded.
func (c *Config) ModulusInt() *big.Int {
	if c.modulus == nil {
		return nil
	}
	return new(big.Int).Set(c.modulus)
}

// Metadata returns the split metadata described by the config.
func (c *Config) Metadata() secrets.Metadata {
	return secrets.Metadata{Modulus: c.ModulusInt(), NumShares: c.NumShares, Threshold: c.Threshold}
}

func (c *Config) pipelineOptions() (bitcoin.Options, error) {
	opts := bitcoin.Options{
		Network:     c.Derivation.Network,
		Passphrase:  c.Derivation.Passphrase,
		Path:        c.Derivation.Path,
		AddressType: bitcoin.AddressType(c.Derivation.AddressType),
	}
	if _, err := bitcoin.New(opts); err != nil {
		return bitcoin.Options{}, fmt.Errorf("invalid derivation config: %w", err)
	}
	return opts, nil
}

// Pipeline builds the Bitcoin pipeline described by the derivation stanza.
func (c *Config) Pipeline() (*bitcoin.Pipeline, error) {
	opts, err := c.pipelineOptions()
	if err != nil {
		return nil, err
	}
	return bitcoin.New(opts)
}
