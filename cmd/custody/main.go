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

// This binary is the main entrypoint for the custody command line tool.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"os"

	"flag"
	"github.com/GoogleCloudPlatform/custody/custody"
	glog "github.com/golang/glog"
	"github.com/google/subcommands"
)

// The current version, displayed via the `version` subcommand.
const custodyVersion string = "0.1.0"

// configFlags is embedded by every subcommand that reads the config file.
type configFlags struct {
	configFile string
}

func (c *configFlags) register(f *flag.FlagSet) {
	path, err := custody.DefaultConfigPath()
	if err != nil {
		glog.Errorf("Failed to get config directory location: %v", err.Error())
	}
	f.StringVar(&c.configFile, "config-file", path, "Path to a custody YAML config file. Defaults are used if the default file does not exist.")
}

// load reads the config file. A missing file at the default location falls
// back to custody.DefaultConfig.
func (c *configFlags) load() (*custody.Config, error) {
	cfg, err := custody.LoadConfig(c.configFile)
	if err == nil {
		return cfg, nil
	}
	if def, _ := custody.DefaultConfigPath(); c.configFile == def && errors.Is(err, fs.ErrNotExist) {
		glog.Infof("No config file at %s, using defaults", def)
		d := custody.DefaultConfig()
		return &d, d.Validate()
	}
	return nil, err
}

func parseSecret(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("secret %q is not an integer", s)
	}
	return v, nil
}

// splitCmd handles CLI options for the split command.
type splitCmd struct {
	configFlags
	secret string
	outDir string
}

func (*splitCmd) Name() string { return "split" }
func (*splitCmd) Synopsis() string {
	return "splits a secret into share files according to the given config"
}
func (*splitCmd) Usage() string {
	return `Usage: custody split [--config-file=<config_file>] [--secret=<integer>] --out-dir=<dir>

Examples:
  Generate a random secret and split it into shares under ./shares:
    $ custody split --out-dir=shares

  Split a known secret with a specific configuration file:
    $ custody split --config-file="demo.yaml" --secret=1234 --out-dir=shares

Flags:
`
}
func (s *splitCmd) SetFlags(f *flag.FlagSet) {
	s.register(f)
	f.StringVar(&s.secret, "secret", "", "Secret to split, decimal or 0x-prefixed hex. A random secret is generated if empty.")
	f.StringVar(&s.outDir, "out-dir", ".", "Directory the share files are written to.")
}

func (s *splitCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := s.load()
	if err != nil {
		glog.Errorf("Failed to load config: %v", err.Error())
		return subcommands.ExitFailure
	}
	secret, err := parseSecret(s.secret)
	if err != nil {
		glog.Errorf("%v", err.Error())
		return subcommands.ExitUsageError
	}
	client, err := custody.NewClient(cfg)
	if err != nil {
		glog.Errorf("Failed to create client: %v", err.Error())
		return subcommands.ExitFailure
	}

	res, err := client.Split(ctx, secret)
	if err != nil {
		glog.Errorf("Failed to split secret: %v", err.Error())
		return subcommands.ExitFailure
	}
	paths, err := custody.WriteEnvelopes(s.outDir, res.Envelopes)
	if err != nil {
		glog.Errorf("Failed to write shares: %v", err.Error())
		return subcommands.ExitFailure
	}

	fmt.Printf("Split ID: %s (%d of %d)\n", res.SplitID, cfg.Threshold, cfg.NumShares)
	for _, p := range paths {
		fmt.Println(p)
	}
	if secret == nil {
		fmt.Printf("Generated secret: %s\n", res.Secret.Text(10))
	}
	return subcommands.ExitSuccess
}

// combineCmd handles CLI options for the combine command.
type combineCmd struct {
	configFlags
}

func (*combineCmd) Name() string { return "combine" }
func (*combineCmd) Synopsis() string {
	return "reconstructs a secret from share files"
}
func (*combineCmd) Usage() string {
	return `Usage: custody combine <share_file>...

Example:
    $ custody combine shares/*-1.share.yaml shares/*-3.share.yaml shares/*-5.share.yaml

Flags:
`
}
func (c *combineCmd) SetFlags(f *flag.FlagSet) { c.register(f) }

func (c *combineCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		glog.Errorf("Not enough arguments (expected share files)")
		return subcommands.ExitUsageError
	}
	cfg, err := c.load()
	if err != nil {
		glog.Errorf("Failed to load config: %v", err.Error())
		return subcommands.ExitFailure
	}
	envs, err := custody.ReadEnvelopes(f.Args())
	if err != nil {
		glog.Errorf("Failed to read shares: %v", err.Error())
		return subcommands.ExitFailure
	}
	client := &custody.Client{Config: *cfg}
	secret, err := client.Combine(ctx, envs)
	if err != nil {
		glog.Errorf("Failed to combine shares: %v", err.Error())
		return subcommands.ExitFailure
	}
	fmt.Println(secret.Text(10))
	return subcommands.ExitSuccess
}

// deriveCmd handles CLI options for the derive command.
type deriveCmd struct {
	configFlags
	expect      string
	showPrivate bool
}

func (*deriveCmd) Name() string { return "derive" }
func (*deriveCmd) Synopsis() string {
	return "reconstructs a secret from share files and derives its keys and address"
}
func (*deriveCmd) Usage() string {
	return `Usage: custody derive [--config-file=<config_file>] [--expect=<integer>] [--show-private] <share_file>...

Flags:
`
}
func (d *deriveCmd) SetFlags(f *flag.FlagSet) {
	d.register(f)
	f.StringVar(&d.expect, "expect", "", "Original secret to compare the recovered one against. Optional.")
	f.BoolVar(&d.showPrivate, "show-private", false, "Also print the private key in wallet import format.")
}

func (d *deriveCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		glog.Errorf("Not enough arguments (expected share files)")
		return subcommands.ExitUsageError
	}
	cfg, err := d.load()
	if err != nil {
		glog.Errorf("Failed to load config: %v", err.Error())
		return subcommands.ExitFailure
	}
	expect, err := parseSecret(d.expect)
	if err != nil {
		glog.Errorf("%v", err.Error())
		return subcommands.ExitUsageError
	}
	pipeline, err := cfg.Pipeline()
	if err != nil {
		glog.Errorf("Failed to create derivation pipeline: %v", err.Error())
		return subcommands.ExitFailure
	}
	envs, err := custody.ReadEnvelopes(f.Args())
	if err != nil {
		glog.Errorf("Failed to read shares: %v", err.Error())
		return subcommands.ExitFailure
	}

	client := &custody.Client{Config: *cfg, Pipeline: pipeline}
	id, err := client.Recover(ctx, envs, expect)
	if err != nil {
		glog.Errorf("Failed to recover identity: %v", err.Error())
		return subcommands.ExitFailure
	}
	fmt.Printf("Address:    %s\n", id.Address)
	fmt.Printf("Public key: %s\n", hex.EncodeToString(id.PublicKey))
	if d.showPrivate {
		wif, err := pipeline.WIF(id.PrivateKey)
		if err != nil {
			glog.Errorf("Failed to encode private key: %v", err.Error())
			return subcommands.ExitFailure
		}
		fmt.Printf("WIF:        %s\n", wif)
	}
	return subcommands.ExitSuccess
}

// selftestCmd handles CLI options for the selftest command.
type selftestCmd struct {
	configFlags
	secret string
}

func (*selftestCmd) Name() string { return "selftest" }
func (*selftestCmd) Synopsis() string {
	return "splits, reconstructs from a random threshold subset and derives, without writing files"
}
func (*selftestCmd) Usage() string {
	return `Usage: custody selftest [--config-file=<config_file>] [--secret=<integer>]

Flags:
`
}
func (s *selftestCmd) SetFlags(f *flag.FlagSet) {
	s.register(f)
	f.StringVar(&s.secret, "secret", "", "Secret to test with. A random secret is generated if empty.")
}

func (s *selftestCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := s.load()
	if err != nil {
		glog.Errorf("Failed to load config: %v", err.Error())
		return subcommands.ExitFailure
	}
	secret, err := parseSecret(s.secret)
	if err != nil {
		glog.Errorf("%v", err.Error())
		return subcommands.ExitUsageError
	}
	client, err := custody.NewClient(cfg)
	if err != nil {
		glog.Errorf("Failed to create client: %v", err.Error())
		return subcommands.ExitFailure
	}
	report, err := client.SelfTest(ctx, secret)
	if err != nil {
		glog.Errorf("Self-test failed: %v", err.Error())
		return subcommands.ExitFailure
	}
	fmt.Printf("Split %s reconstructed from shares %v\n", report.SplitID, report.Xs)
	fmt.Printf("Address: %s\n", report.Identity.Address)
	return subcommands.ExitSuccess
}

// versionCmd handles CLI options for the version command.
type versionCmd struct{}

func (*versionCmd) Name() string           { return "version" }
func (*versionCmd) Synopsis() string       { return "prints the current version" }
func (*versionCmd) Usage() string          { return "Usage: custody version" }
func (*versionCmd) SetFlags(*flag.FlagSet) {}
func (*versionCmd) Execute(context.Context, *flag.FlagSet, ...interface{}) subcommands.ExitStatus {
	fmt.Printf("custody version %s\n", custodyVersion)
	return subcommands.ExitSuccess
}

func main() {
	flag.Parse()

	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(&splitCmd{}, "")
	subcommands.Register(&combineCmd{}, "")
	subcommands.Register(&deriveCmd{}, "")
	subcommands.Register(&selftestCmd{}, "")
	subcommands.Register(&versionCmd{}, "")

	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}
