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

// Package testutil contains utilities for unit tests.
package testutil

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"sync"
)

// Step names recorded by FakePipeline, in pipeline order.
const (
	StepSeed       = "seed"
	StepMasterKey  = "masterKey"
	StepPublicKey  = "publicKey"
	StepAddress    = "address"
	fakeAddrPrefix = "fake:"
)

// ErrFakePipeline is returned by FakePipeline at the step named in FailAt.
var ErrFakePipeline = errors.New("fake pipeline failure")

// FakeSeed mirrors FakePipeline.SeedFromSecret.
func FakeSeed(material []byte) []byte {
	h := sha256.Sum256(append([]byte(StepSeed), material...))
	return h[:]
}

// FakeKey mirrors FakePipeline.MasterKeyFromSeed and PublicKeyFromPrivate:
// a label-prefixed SHA-256 of the input.
func FakeKey(label string, in []byte) []byte {
	h := sha256.Sum256(append([]byte(label), in...))
	return h[:]
}

// FakeAddress mirrors FakePipeline.AddressFromPublicKey.
func FakeAddress(pub []byte) string {
	return fakeAddrPrefix + hex.EncodeToString(pub[:8])
}

// FakePipeline is a deterministic derivation pipeline that records the steps
// it was asked to run. It is safe for concurrent use.
type FakePipeline struct {
	// FailAt names a step that returns Err (or ErrFakePipeline when Err is nil).
	FailAt string
	Err    error

	mu    sync.Mutex
	calls []string
}

func (f *FakePipeline) record(step string) error {
	f.mu.Lock()
	f.calls = append(f.calls, step)
	f.mu.Unlock()
	if step != f.FailAt {
		return nil
	}
	if f.Err != nil {
		return f.Err
	}
	return ErrFakePipeline
}

// Calls returns the steps run so far.
func (f *FakePipeline) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// SeedFromSecret returns FakeSeed(material).
func (f *FakePipeline) SeedFromSecret(material []byte) ([]byte, error) {
	if err := f.record(StepSeed); err != nil {
		return nil, err
	}
	return FakeSeed(material), nil
}

// MasterKeyFromSeed returns FakeKey(StepMasterKey, seed).
func (f *FakePipeline) MasterKeyFromSeed(seed []byte) ([]byte, error) {
	if err := f.record(StepMasterKey); err != nil {
		return nil, err
	}
	return FakeKey(StepMasterKey, seed), nil
}

// PublicKeyFromPrivate returns FakeKey(StepPublicKey, privateKey).
func (f *FakePipeline) PublicKeyFromPrivate(privateKey []byte) ([]byte, error) {
	if err := f.record(StepPublicKey); err != nil {
		return nil, err
	}
	return FakeKey(StepPublicKey, privateKey), nil
}

// AddressFromPublicKey returns FakeAddress(publicKey).
func (f *FakePipeline) AddressFromPublicKey(publicKey []byte) (string, error) {
	if err := f.record(StepAddress); err != nil {
		return "", err
	}
	return FakeAddress(publicKey), nil
}

// CountingReader wraps R and counts the bytes read from it.
type CountingReader struct {
	R io.Reader

	mu sync.Mutex
	n  int
}

func (c *CountingReader) Read(p []byte) (int, error) {
	n, err := c.R.Read(p)
	c.mu.Lock()
	c.n += n
	c.mu.Unlock()
	return n, err
}

// N returns the number of bytes read.
func (c *CountingReader) N() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// FailingReader returns Err on every read.
type FailingReader struct{ Err error }

func (f FailingReader) Read([]byte) (int, error) {
	if f.Err == nil {
		return 0, io.ErrUnexpectedEOF
	}
	return 0, f.Err
}
