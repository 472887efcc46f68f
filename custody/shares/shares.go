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

// Package shares contains functions for packaging secret shares into
// self-describing envelopes and for checking them on the way back in.
package shares

import (
	"bytes"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/GoogleCloudPlatform/custody/constants"
	"github.com/GoogleCloudPlatform/custody/internal/secret_sharing/finitefield"
	"github.com/GoogleCloudPlatform/custody/internal/secret_sharing/secrets"
	"github.com/GoogleCloudPlatform/custody/internal/secret_sharing/shamir"
	glog "github.com/golang/glog"
	"github.com/google/tink/go/subtle/random"
	"github.com/google/uuid"
	"sigs.k8s.io/yaml"
)

var (
	// ErrShareHashMismatch is returned when an envelope's hash does not match its contents.
	ErrShareHashMismatch = errors.New("share hash does not match")
	// ErrMixedSplits is returned when envelopes from different splits are combined.
	ErrMixedSplits = errors.New("shares belong to different splits")
	// ErrCommitmentMismatch is returned when a reconstructed secret does not match
	// the commitment recorded at split time.
	ErrCommitmentMismatch = errors.New("reconstructed secret does not match the split commitment")
	// ErrCommitmentTooWeak is returned when a commitment is requested for a modulus
	// smaller than constants.MinCommitmentBits.
	ErrCommitmentTooWeak = fmt.Errorf("%w: modulus too small for a commitment", secrets.ErrInput)
)

// Envelope is the on-disk form of a single share. It carries everything needed
// to check that it is combined only with its siblings.
type Envelope struct {
	Version   int    `json:"version"`
	SplitID   string `json:"splitId"`
	Modulus   string `json:"modulus"`
	Threshold int    `json:"threshold"`
	NumShares int    `json:"numShares"`
	X         int    `json:"x"`
	// Y is hex encoded, left padded to the byte length of the modulus.
	Y string `json:"y"`
	// Hash is the SHA-256 of the canonical envelope encoding, see Digest.
	Hash string `json:"hash"`
	// Commitment and SaltY are present only when the split was created with a
	// commitment. SaltY is this envelope's share of the commitment salt, which
	// is split with the same threshold as the secret.
	Commitment string `json:"commitment,omitempty"`
	SaltY      string `json:"saltY,omitempty"`
}

// String does not print Y.
func (e Envelope) String() string {
	return fmt.Sprintf("Envelope{SplitID: %s, X: %d, Threshold: %d/%d}", e.SplitID, e.X, e.Threshold, e.NumShares)
}

// Width returns the byte length of the modulus, the fixed width of every Y value
// and of the canonical secret encoding.
func Width(modulus *big.Int) int {
	return (modulus.BitLen() + 7) / 8
}

// EncodeShare returns the canonical encoding of a share: X as a big endian
// uint64 followed by Y left padded to width bytes.
func EncodeShare(s secrets.Share, width int) ([]byte, error) {
	if s.X <= 0 || s.Y == nil || s.Y.Sign() < 0 || Width(s.Y) > width {
		return nil, fmt.Errorf("%w: cannot encode %v in %d bytes", secrets.ErrInvalidShare, s, width)
	}
	out := make([]byte, 8+width)
	binary.BigEndian.PutUint64(out, uint64(s.X))
	s.Y.FillBytes(out[8:])
	return out, nil
}

// HashShare performs a SHA-256 hash on the provided share.
func HashShare(share []byte) []byte {
	hash := sha256.Sum256(share)
	return hash[:]
}

// ValidateShare performs HashShare on the provided share, then returns whether
// the result is equal to the provided hash.
func ValidateShare(share []byte, expectedHash []byte) bool {
	actualHash := HashShare(share)
	return bytes.Equal(actualHash, expectedHash)
}

func writeField(b *bytes.Buffer, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	b.Write(n[:])
	b.WriteString(s)
}

func writeInt(b *bytes.Buffer, v int) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(v))
	b.Write(n[:])
}

// decoded is an envelope with its hex fields parsed.
type decoded struct {
	modulus *big.Int
	share   secrets.Share
	salt    *secrets.Share
}

func (e Envelope) decode() (*decoded, error) {
	if e.Version != constants.EnvelopeVersion {
		return nil, fmt.Errorf("unsupported envelope version %d", e.Version)
	}
	modulus, err := finitefield.Parse(e.Modulus)
	if err != nil {
		return nil, err
	}
	width := Width(modulus)
	parseY := func(s string) (*big.Int, error) {
		y, err := hex.DecodeString(s)
		if err != nil || len(y) != width {
			return nil, fmt.Errorf("%w: share %d has a malformed value", secrets.ErrInvalidShare, e.X)
		}
		return new(big.Int).SetBytes(y), nil
	}
	d := &decoded{modulus: modulus}
	y, err := parseY(e.Y)
	if err != nil {
		return nil, err
	}
	d.share = secrets.Share{X: e.X, Y: y}
	if (e.Commitment == "") != (e.SaltY == "") {
		return nil, fmt.Errorf("%w: share %d has a commitment without a salt share or the reverse", secrets.ErrInvalidShare, e.X)
	}
	if e.SaltY != "" {
		sy, err := parseY(e.SaltY)
		if err != nil {
			return nil, err
		}
		d.salt = &secrets.Share{X: e.X, Y: sy}
	}
	return d, nil
}

// Digest returns the SHA-256 over the canonical encoding of every envelope
// field except Hash: version, split ID, modulus, threshold, share count,
// commitment, then the share and the salt share as encoded by EncodeShare.
func (e Envelope) Digest() ([]byte, error) {
	d, err := e.decode()
	if err != nil {
		return nil, err
	}
	return d.digest(e)
}

func (d *decoded) digest(e Envelope) ([]byte, error) {
	width := Width(d.modulus)
	var b bytes.Buffer
	writeInt(&b, e.Version)
	writeField(&b, e.SplitID)
	writeField(&b, d.modulus.String())
	writeInt(&b, e.Threshold)
	writeInt(&b, e.NumShares)
	writeField(&b, e.Commitment)
	share, err := EncodeShare(d.share, width)
	if err != nil {
		return nil, err
	}
	b.Write(share)
	if d.salt != nil {
		salt, err := EncodeShare(*d.salt, width)
		if err != nil {
			return nil, err
		}
		b.Write(salt)
	}
	return HashShare(b.Bytes()), nil
}

// CommitmentAllowed reports whether modulus is large enough for a commitment.
// The salt is drawn from the field, so the modulus bounds its entropy.
func CommitmentAllowed(modulus *big.Int) bool {
	return modulus != nil && modulus.BitLen() >= constants.MinCommitmentBits
}

// Commitment binds a secret to its split: SHA-256(label || splitID || salt ||
// secret), with salt and secret left padded to width bytes. The salt is split
// with the secret's threshold, so fewer than threshold shares cannot test
// candidate secrets against the commitment.
func Commitment(splitID string, salt, secret *big.Int, width int) ([]byte, error) {
	if secret == nil || secret.Sign() < 0 || Width(secret) > width {
		return nil, fmt.Errorf("%w: cannot encode secret in %d bytes", secrets.ErrInvalidSecret, width)
	}
	if salt == nil || salt.Sign() < 0 || Width(salt) > width {
		return nil, fmt.Errorf("%w: cannot encode salt in %d bytes", secrets.ErrInput, width)
	}
	h := sha256.New()
	io.WriteString(h, constants.CommitmentLabel)
	io.WriteString(h, splitID)
	h.Write(salt.FillBytes(make([]byte, width)))
	h.Write(secret.FillBytes(make([]byte, width)))
	return h.Sum(nil), nil
}

// VerifyCommitment checks secret against a commitment made by Commitment.
func VerifyCommitment(splitID string, salt, secret *big.Int, width int, commitment []byte) error {
	want, err := Commitment(splitID, salt, secret, width)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(want, commitment) != 1 {
		return ErrCommitmentMismatch
	}
	return nil
}

// NewSecret returns a uniformly random secret in [0, modulus) by rejection sampling.
func NewSecret(modulus *big.Int) (*big.Int, error) {
	if modulus == nil || modulus.Cmp(big.NewInt(1)) <= 0 {
		return nil, fmt.Errorf("%w: %v", secrets.ErrModulusTooSmall, modulus)
	}
	width := Width(modulus)
	// Clear the unused high bits so at least half of the draws are accepted.
	mask := byte(0xff >> (uint(width*8 - modulus.BitLen())))
	for {
		b := random.GetRandomBytes(uint32(width))
		b[0] &= mask
		if v := new(big.Int).SetBytes(b); v.Cmp(modulus) < 0 {
			return v, nil
		}
	}
}

// SplitSecret splits secret under md and packages the shares as envelopes of
// a fresh split ID. When commit is set, a random salt is split with the same
// threshold and each envelope also records a commitment to salt and secret.
func SplitSecret(r io.Reader, md secrets.Metadata, secret *big.Int, commit bool) ([]Envelope, error) {
	if commit && !CommitmentAllowed(md.Modulus) {
		return nil, fmt.Errorf("%w: %d bits, need %d", ErrCommitmentTooWeak, md.Modulus.BitLen(), constants.MinCommitmentBits)
	}
	split, err := shamir.SplitSecret(r, md, secret)
	if err != nil {
		return nil, fmt.Errorf("error splitting secret: %w", err)
	}

	splitID := uuid.NewString()
	width := Width(md.Modulus)
	var (
		commitment string
		saltShares []secrets.Share
	)
	if commit {
		salt, err := NewSecret(md.Modulus)
		if err != nil {
			return nil, err
		}
		saltSplit, err := shamir.SplitSecret(r, md, salt)
		if err != nil {
			return nil, fmt.Errorf("error splitting commitment salt: %w", err)
		}
		saltShares = saltSplit.Shares
		c, err := Commitment(splitID, salt, secret, width)
		if err != nil {
			return nil, err
		}
		commitment = hex.EncodeToString(c)
	}

	envelopes := make([]Envelope, 0, len(split.Shares))
	for i, s := range split.Shares {
		d := &decoded{modulus: md.Modulus, share: s}
		e := Envelope{
			Version:    constants.EnvelopeVersion,
			SplitID:    splitID,
			Modulus:    md.Modulus.String(),
			Threshold:  md.Threshold,
			NumShares:  md.NumShares,
			X:          s.X,
			Y:          hex.EncodeToString(s.Y.FillBytes(make([]byte, width))),
			Commitment: commitment,
		}
		if saltShares != nil {
			d.salt = &saltShares[i]
			e.SaltY = hex.EncodeToString(saltShares[i].Y.FillBytes(make([]byte, width)))
		}
		digest, err := d.digest(e)
		if err != nil {
			return nil, err
		}
		e.Hash = hex.EncodeToString(digest)
		envelopes = append(envelopes, e)
	}
	glog.V(1).Infof("Created split %s with %d shares, threshold %d", splitID, md.NumShares, md.Threshold)
	return envelopes, nil
}

// verify decodes the envelope and checks it against the envelope hash.
func (e Envelope) verify() (*decoded, error) {
	d, err := e.decode()
	if err != nil {
		return nil, err
	}
	digest, err := d.digest(e)
	if err != nil {
		return nil, err
	}
	hash, err := hex.DecodeString(e.Hash)
	if err != nil || subtle.ConstantTimeCompare(digest, hash) != 1 {
		return nil, fmt.Errorf("%w: share %d of split %s", ErrShareHashMismatch, e.X, e.SplitID)
	}
	return d, nil
}

// Share decodes the envelope's share and checks the envelope against its hash.
func (e Envelope) Share() (secrets.Share, error) {
	d, err := e.verify()
	if err != nil {
		return secrets.Share{}, err
	}
	return d.share, nil
}

// Bundle is a set of envelopes checked to belong to one split.
type Bundle struct {
	SplitID    string
	Commitment []byte
	Split      secrets.Split
	// SaltShares holds the commitment salt shares, parallel to Split.Shares.
	SaltShares []secrets.Share
}

// FromEnvelopes decodes envelopes into a split. It rejects envelopes whose
// hash does not match and any mix of split IDs, moduli, thresholds or share counts.
func FromEnvelopes(envelopes []Envelope) (*Bundle, error) {
	if len(envelopes) == 0 {
		return nil, secrets.ErrNoShares
	}
	first := envelopes[0]
	if _, err := uuid.Parse(first.SplitID); err != nil {
		return nil, fmt.Errorf("invalid split ID %q: %v", first.SplitID, err)
	}
	modulus, err := finitefield.Parse(first.Modulus)
	if err != nil {
		return nil, err
	}

	b := &Bundle{
		SplitID: first.SplitID,
		Split: secrets.Split{
			Metadata: secrets.Metadata{Modulus: modulus, NumShares: first.NumShares, Threshold: first.Threshold},
		},
	}
	if first.Commitment != "" {
		if b.Commitment, err = hex.DecodeString(first.Commitment); err != nil {
			return nil, fmt.Errorf("malformed commitment: %v", err)
		}
	}

	for _, e := range envelopes {
		if e.SplitID != first.SplitID || e.Modulus != first.Modulus || e.Threshold != first.Threshold ||
			e.NumShares != first.NumShares || e.Commitment != first.Commitment {
			return nil, fmt.Errorf("%w: %v and %v", ErrMixedSplits, first, e)
		}
		d, err := e.verify()
		if err != nil {
			glog.Warningf("Rejected share %d of split %s: %v", e.X, e.SplitID, err)
			return nil, err
		}
		b.Split.Shares = append(b.Split.Shares, d.share)
		if d.salt != nil {
			b.SaltShares = append(b.SaltShares, *d.salt)
		}
	}
	return b, nil
}

// CombineEnvelopes reconstitutes the secret from envelopes. The threshold from
// the envelopes is enforced and, when the split has a commitment, the salt is
// reconstructed from the same shares and the result verified against it.
func CombineEnvelopes(envelopes []Envelope) (*big.Int, error) {
	b, err := FromEnvelopes(envelopes)
	if err != nil {
		return nil, err
	}
	secret, err := shamir.ReconstructSplit(b.Split)
	if err != nil {
		return nil, fmt.Errorf("error combining shares of split %s: %w", b.SplitID, err)
	}
	if b.Commitment != nil {
		salt, err := shamir.ReconstructSplit(secrets.Split{Metadata: b.Split.Metadata, Shares: b.SaltShares})
		if err != nil {
			return nil, fmt.Errorf("error combining salt shares of split %s: %w", b.SplitID, err)
		}
		if err := VerifyCommitment(b.SplitID, salt, secret, Width(b.Split.Metadata.Modulus), b.Commitment); err != nil {
			return nil, err
		}
	}
	return secret, nil
}

// Marshal renders an envelope as YAML.
func Marshal(e Envelope) ([]byte, error) {
	return yaml.Marshal(e)
}

// Unmarshal parses a YAML envelope, rejecting unknown fields.
func Unmarshal(data []byte) (Envelope, error) {
	var e Envelope
	if err := yaml.UnmarshalStrict(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("failed to parse share envelope: %w", err)
	}
	return e, nil
}
