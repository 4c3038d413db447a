// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package transparency implements an interface to the
// boot-transparency library functions to validate the kernel image
// before it is loaded.
package transparency

import (
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// Status represents the status of the boot transparency functionality.
type Status int

// Boot transparency status codes, online mode is not available as no network
// stack exists before the kernel is started.
const (
	// Boot transparency disabled.
	None Status = iota

	// Boot transparency enabled in offline mode.
	Offline
)

var statusNames = map[Status]string{
	None:    "none",
	Offline: "offline",
}

// String resolves Status codes into human-readable strings.
func (s Status) String() string {
	return statusNames[s]
}

// ParseStatus returns the Status code for its human-readable name.
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}

	return None, fmt.Errorf("invalid transparency status %q", name)
}

// Boot transparency configuration root directory and filenames.
const (
	transparencyRoot = `/transparency`

	bootPolicy    = `policy.json`
	witnessPolicy = `trust_policy`
	proofBundle   = `proof-bundle.json`
	submitKey     = `submit-key.pub`
	logKey        = `log-key.pub`
)

// Config represents the configuration for the boot transparency functionality.
type Config struct {
	// Status represents the status of the boot transparency functionality.
	Status Status

	// Root, when set, is the volume from which the remaining fields are
	// loaded during validation, using a per boot entry directory.
	Root fs.FS

	// BootPolicy represents the boot policy in JSON format
	// following the policy syntax supported by boot-transparency library.
	BootPolicy []byte

	// WitnessPolicy represents the witness policy following
	// the Sigsum plaintext witness policy format.
	WitnessPolicy []byte

	// SubmitKey represents the log submitter public key in OpenSSH format.
	SubmitKey []byte

	// LogKey represents the log public key in OpenSSH format.
	LogKey []byte

	// ProofBundle represents the proof bundle in JSON format
	// following the proof bundle format supported by boot-transparency library.
	ProofBundle []byte
}

// Path returns a unique configuration path for a given set of
// artifacts (i.e. boot entry), using UEFI path separators.
// Returns error if one of the artifacts does not include a valid
// SHA-256 hash.
func (c *Config) Path(b BootEntry) (entryPath string, err error) {
	if len(b) == 0 {
		return "", fmt.Errorf("cannot build configuration path, got an empty boot entry")
	}

	artifacts := make(BootEntry, len(b))
	copy(artifacts, b)

	// sorting by Category ensures a consistent path for the same set
	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].Category < artifacts[j].Category
	})

	entryPath = transparencyRoot

	for _, a := range artifacts {
		if err = a.validHash(); err != nil {
			return "", fmt.Errorf("cannot build configuration path, %w", err)
		}

		entryPath = path.Join(entryPath, hex.EncodeToString(a.Hash))
	}

	return strings.ReplaceAll(entryPath, `/`, `\`), nil
}

// load reads the transparency configuration files from the root volume, the
// entry argument allows per-bundle configurations.
func (c *Config) load(entryPath string) (err error) {
	assets := []struct {
		name string
		dst  *[]byte
	}{
		{bootPolicy, &c.BootPolicy},
		{witnessPolicy, &c.WitnessPolicy},
		{submitKey, &c.SubmitKey},
		{logKey, &c.LogKey},
		{proofBundle, &c.ProofBundle},
	}

	for _, a := range assets {
		p := strings.Join([]string{entryPath, a.name}, `\`)

		if *a.dst, err = fs.ReadFile(c.Root, p); err != nil {
			return fmt.Errorf("cannot load configuration file %s, %w", a.name, err)
		}
	}

	return
}
