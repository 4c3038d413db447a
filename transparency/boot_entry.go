// Copyright (c) The go-boot authors. All Rights Reserved.
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package transparency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/usbarmory/boot-transparency/artifact"
	_ "github.com/usbarmory/boot-transparency/engine/sigsum"
	"github.com/usbarmory/boot-transparency/policy"
	"github.com/usbarmory/boot-transparency/transparency"
)

// Artifact represents a boot artifact.
type Artifact struct {
	// Category represents the artifact category as defined
	// in the boot-transparency library.
	Category uint

	// Hash represents the SHA256 checksum of the artifact.
	Hash []byte
}

// BootEntry represents a boot entry as a set of artifacts.
type BootEntry []Artifact

var (
	// ErrHashMismatch represents an hash mismatch error.
	ErrHashMismatch = errors.New("file hash mismatch")
	// ErrHashInvalid represents an hash invalid error.
	ErrHashInvalid = errors.New("invalid artifact hash")
)

// Verify applies boot-transparency validation to the argument kernel image.
func Verify(c *Config, image []byte) error {
	sum := sha256.Sum256(image)

	b := BootEntry{
		Artifact{
			Category: artifact.LinuxKernel,
			Hash:     sum[:],
		},
	}

	return b.Validate(c)
}

// Validate applies boot-transparency validation (e.g. inclusion proof,
// boot policy and claims consistency) for the argument [Config] representing
// the boot artifacts.
// Returns error if the boot artifacts are not passing the validation.
func (b BootEntry) Validate(c *Config) (err error) {
	if c.Status == None {
		return
	}

	if len(b) == 0 {
		return errors.New("invalid boot entry")
	}

	for _, a := range b {
		if err = a.validHash(); err != nil {
			return
		}
	}

	if c.Root != nil {
		entryPath, err := c.Path(b)

		if err != nil {
			return fmt.Errorf("cannot load boot-transparency configuration, %w", err)
		}

		if err = c.load(entryPath); err != nil {
			return fmt.Errorf("cannot load boot-transparency configuration, %w", err)
		}
	}

	format, statement, proof, _, _, err := transparency.ParseProofBundle(c.ProofBundle)

	if err != nil {
		return fmt.Errorf("unable to parse the proof bundle, %w", err)
	}

	if format != transparency.Sigsum {
		return errors.New("proof bundle format doesn't match the transparency engine")
	}

	te, err := transparency.GetEngine(format)

	if err != nil {
		return fmt.Errorf("unable to get transparency engine, %w", err)
	}

	if err = te.SetKey(c.LogKey, c.SubmitKey); err != nil {
		return fmt.Errorf("unable to set log and submitter keys, %w", err)
	}

	if err = te.SetWitnessPolicy(c.WitnessPolicy); err != nil {
		return fmt.Errorf("unable to set witness policy, %w", err)
	}

	if err = te.VerifyProof(statement, proof, nil); err != nil {
		return
	}

	requirements, err := policy.ParseRequirements(c.BootPolicy)

	if err != nil {
		return
	}

	claims, err := policy.ParseStatement(statement)

	if err != nil {
		return
	}

	if err = b.validateProofHashes(claims); err != nil {
		return
	}

	// boot bundle is authorized only if the logged claims match the
	// policy requirements
	return policy.Validate(requirements, claims)
}

func (b BootEntry) validateProofHashes(s *policy.Statement) (err error) {
	for _, a := range b {
		if err = a.validateProofHash(s); err != nil {
			return err
		}
	}

	return
}

// validateProofHash matches the loaded artifact hash against the one included
// in the proof bundle, the policy only applies to the claims of the logged
// artifacts.
func (a Artifact) validateProofHash(s *policy.Statement) (err error) {
	var h artifact.Handler

	for _, claimed := range s.Artifacts {
		if a.Category != claimed.Category {
			continue
		}

		if h, err = artifact.GetHandler(a.Category); err != nil {
			return
		}

		// boot-transparency expects requirements in JSON format
		requirements, _ := json.Marshal(map[string]string{"file_hash": hex.EncodeToString(a.Hash)})

		r, err := h.ParseRequirements(requirements)

		if err != nil {
			return err
		}

		c, err := h.ParseClaims([]byte(claimed.Claims))

		if err != nil {
			return err
		}

		if err = h.Validate(r, c); err != nil {
			return fmt.Errorf("%w for artifact category %d, hash %q", ErrHashMismatch, a.Category, hex.EncodeToString(a.Hash))
		}

		return nil
	}

	return fmt.Errorf("artifact category %d not present in the proof bundle", a.Category)
}

func (a Artifact) validHash() (err error) {
	if len(a.Hash) != sha256.Size {
		err = fmt.Errorf("%w for artifact category %d", ErrHashInvalid, a.Category)
	}

	return
}
