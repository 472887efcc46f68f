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

// Package custody is the client library for splitting a wallet secret into
// threshold shares and recovering keys from them.
package custody

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"

	"github.com/GoogleCloudPlatform/custody/constants"
	"github.com/GoogleCloudPlatform/custody/custody/derivation"
	"github.com/GoogleCloudPlatform/custody/custody/shares"
	"github.com/GoogleCloudPlatform/custody/internal/secret_sharing/finitefield"
	"github.com/GoogleCloudPlatform/custody/internal/secret_sharing/secrets"
	glog "github.com/golang/glog"
)

// Client splits secrets and recovers keys according to a validated Config.
// It holds no mutable state and is safe for concurrent use.
type Client struct {
	Config Config

	// Rand supplies polynomial coefficients and self-test subset choices.
	// crypto/rand is used when nil.
	Rand io.Reader

	// Pipeline derives keys from recovered secrets.
	Pipeline derivation.Pipeline
}

// NewClient validates cfg and returns a Client using the Bitcoin pipeline it describes.
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil Config passed to NewClient()")
	}
	c := *cfg
	if err := c.Validate(); err != nil {
		return nil, err
	}
	p, err := c.Pipeline()
	if err != nil {
		return nil, err
	}
	return &Client{Config: c, Pipeline: p}, nil
}

func (c *Client) rand() io.Reader {
	if c.Rand == nil {
		return rand.Reader
	}
	return c.Rand
}

func (c *Client) metadata() (secrets.Metadata, error) {
	cfg := c.Config
	if cfg.ModulusInt() == nil {
		if err := cfg.Validate(); err != nil {
			return secrets.Metadata{}, err
		}
	}
	return cfg.Metadata(), nil
}

// SplitResult is the outcome of Client.Split.
type SplitResult struct {
	SplitID   string
	Envelopes []shares.Envelope
	// Secret is the secret that was split. It is the generated one when
	// Split was called without a secret.
	Secret *big.Int
}

// String omits the secret.
func (r *SplitResult) String() string {
	return fmt.Sprintf("SplitResult{SplitID: %s, Envelopes: %d}", r.SplitID, len(r.Envelopes))
}

// Split divides secret into envelopes. A nil secret is replaced by a uniformly
// random one.
func (c *Client) Split(ctx context.Context, secret *big.Int) (*SplitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	md, err := c.metadata()
	if err != nil {
		return nil, err
	}
	if secret == nil {
		if secret, err = shares.NewSecret(md.Modulus); err != nil {
			return nil, err
		}
	}
	envs, err := shares.SplitSecret(c.rand(), md, secret, c.Config.Commitment)
	if err != nil {
		return nil, err
	}
	return &SplitResult{SplitID: envs[0].SplitID, Envelopes: envs, Secret: secret}, nil
}

// Combine reconstitutes the secret from envelopes of a single split.
func (c *Client) Combine(ctx context.Context, envelopes []shares.Envelope) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return shares.CombineEnvelopes(envelopes)
}

// Recover combines envelopes and runs the recovered secret through the
// derivation pipeline. When original is non-nil the recovered secret must equal
// it; this is for demos and self-tests where the original is known.
func (c *Client) Recover(ctx context.Context, envelopes []shares.Envelope, original *big.Int) (*derivation.Identity, error) {
	secret, err := c.Combine(ctx, envelopes)
	if err != nil {
		return nil, err
	}
	if original != nil {
		if err := derivation.VerifyRoundTrip(secret, original); err != nil {
			return nil, err
		}
	}
	modulus, err := finitefield.Parse(envelopes[0].Modulus)
	if err != nil {
		return nil, err
	}
	if m := c.Config.ModulusInt(); m != nil && m.Cmp(modulus) != 0 {
		glog.Warningf("Envelopes use modulus %v, configured modulus is %v", modulus, m)
	}
	return derivation.DeriveIdentity(ctx, c.Pipeline, secret, shares.Width(modulus))
}

// SelfTestReport describes one SelfTest run.
type SelfTestReport struct {
	SplitID string
	// Xs are the shares used for reconstruction, in the order they were combined.
	Xs       []int
	Identity *derivation.Identity
}

// SelfTest splits secret, reconstructs it from a random threshold-sized subset
// of the shares, checks the result and derives its identity.
func (c *Client) SelfTest(ctx context.Context, secret *big.Int) (*SelfTestReport, error) {
	res, err := c.Split(ctx, secret)
	if err != nil {
		return nil, err
	}
	subset, err := c.pickSubset(res.Envelopes, c.Config.Threshold)
	if err != nil {
		return nil, err
	}
	id, err := c.Recover(ctx, subset, res.Secret)
	if err != nil {
		return nil, fmt.Errorf("self-test of split %s: %w", res.SplitID, err)
	}
	report := &SelfTestReport{SplitID: res.SplitID, Identity: id}
	for _, e := range subset {
		report.Xs = append(report.Xs, e.X)
	}
	glog.V(1).Infof("Self-test of split %s passed with shares %v", res.SplitID, report.Xs)
	return report, nil
}

// pickSubset returns k envelopes chosen uniformly with a partial Fisher-Yates shuffle.
func (c *Client) pickSubset(envs []shares.Envelope, k int) ([]shares.Envelope, error) {
	pool := append([]shares.Envelope(nil), envs...)
	for i := 0; i < k; i++ {
		j, err := rand.Int(c.rand(), big.NewInt(int64(len(pool)-i)))
		if err != nil {
			return nil, fmt.Errorf("choosing shares: %w", err)
		}
		n := i + int(j.Int64())
		pool[i], pool[n] = pool[n], pool[i]
	}
	return pool[:k], nil
}

// EnvelopeFileName is the name WriteEnvelopes gives an envelope.
func EnvelopeFileName(e shares.Envelope) string {
	return fmt.Sprintf("%s-%d%s", e.SplitID, e.X, constants.ShareFileExtension)
}

// WriteEnvelopes writes each envelope to its own file in dir, readable only by
// the owner, and returns the paths in share order.
func WriteEnvelopes(dir string, envelopes []shares.Envelope) ([]string, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(envelopes))
	for _, e := range envelopes {
		data, err := shares.Marshal(e)
		if err != nil {
			return nil, err
		}
		p := filepath.Join(dir, EnvelopeFileName(e))
		if err := os.WriteFile(p, data, 0o600); err != nil {
			return nil, fmt.Errorf("failed to write share %d: %w", e.X, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// ReadEnvelopes reads envelope files.
func ReadEnvelopes(paths []string) ([]shares.Envelope, error) {
	envs := make([]shares.Envelope, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		e, err := shares.Unmarshal(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		envs = append(envs, e)
	}
	return envs, nil
}
