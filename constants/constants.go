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

// Package constants contains shared constants between the library and the CLI.
package constants

// DefaultConfigFile is the name of the YAML configuration file looked up in
// the user's config directory when no --config flag is given.
const DefaultConfigFile = "custody.yaml"

// DefaultConfigDir is the directory under os.UserConfigDir holding DefaultConfigFile.
const DefaultConfigDir = "custody"

// DefaultModulus names the field used when the configuration does not set one.
const DefaultModulus = "p256"

// EnvelopeVersion is written into every share envelope.
const EnvelopeVersion = 1

// ShareFileExtension is appended to share envelopes written to disk.
const ShareFileExtension = ".share.yaml"

// MinCommitmentBits is the smallest modulus, in bits, for which a split
// commitment is written. Below it the secret can be brute forced from the hash.
const MinCommitmentBits = 128

// SeedSaltPrefix prefixes the passphrase to form the BIP-39 PBKDF2 salt.
const SeedSaltPrefix = "mnemonic"

// SeedIterations is the BIP-39 PBKDF2 iteration count.
const SeedIterations = 2048

// SeedBytes is the length of a BIP-39 seed.
const SeedBytes = 64

// CommitmentLabel domain-separates split commitments from other hashes.
const CommitmentLabel = "custody split commitment v1"
