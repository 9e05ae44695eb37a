// Copyright 2023 LiveKit, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cryptor

import (
	"crypto/sha256"
	"io"
	"slices"
	"sync"

	"golang.org/x/crypto/hkdf"
)

// KeyProviderOptions describes how encryption keys are supplied for a
// security context. SharedKey and the ratchet parameters are not mutually
// exclusive; a shared key seeds key index 0 and ratcheting derives
// successors from it.
type KeyProviderOptions struct {
	// SharedKey is optional pre-shared key material, installed at key index 0
	// for every participant.
	SharedKey []byte

	// RatchetSalt is the salt input to ratchet key derivation.
	RatchetSalt []byte

	// RatchetWindowSize is how many successive derived keys the receive path
	// may try when the current key fails to authenticate a frame.
	RatchetWindowSize int

	// FailureTolerance is the number of consecutive decryption failures
	// tolerated before the transform engine reports CryptionStateDecryptionFailed.
	FailureTolerance int
}

// KeyProvider owns the key material for one security context (typically one
// room). It is shared by reference across every FrameCryptor created for
// that context and is safe for concurrent use.
//
// Raw key bytes are handed out only to the transform engine; the control
// plane itself never reads them.
type KeyProvider struct {
	opts KeyProviderOptions

	mu              sync.RWMutex
	sharedKeys      map[int][]byte
	participantKeys map[string]map[int][]byte
}

// NewKeyProvider builds a KeyProvider from options. Negative
// RatchetWindowSize or FailureTolerance is rejected with
// ErrInvalidKeyProviderOptions. The options are copied and immutable after
// construction.
func NewKeyProvider(opts KeyProviderOptions) (*KeyProvider, error) {
	if opts.RatchetWindowSize < 0 || opts.FailureTolerance < 0 {
		return nil, ErrInvalidKeyProviderOptions
	}

	opts.SharedKey = slices.Clone(opts.SharedKey)
	opts.RatchetSalt = slices.Clone(opts.RatchetSalt)

	p := &KeyProvider{
		opts:            opts,
		sharedKeys:      make(map[int][]byte),
		participantKeys: make(map[string]map[int][]byte),
	}
	if len(opts.SharedKey) > 0 {
		p.sharedKeys[0] = slices.Clone(opts.SharedKey)
	}
	return p, nil
}

// Options returns a copy of the provider's configuration.
func (p *KeyProvider) Options() KeyProviderOptions {
	opts := p.opts
	opts.SharedKey = slices.Clone(p.opts.SharedKey)
	opts.RatchetSalt = slices.Clone(p.opts.RatchetSalt)
	return opts
}

// SetSharedKey installs key material at the given index for all participants
// that have no participant-specific key at that index.
func (p *KeyProvider) SetSharedKey(key []byte, index int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sharedKeys[index] = slices.Clone(key)
}

// SetKey installs key material at the given index for a single participant,
// replacing any previous key at that index.
func (p *KeyProvider) SetKey(participantID string, index int, key []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ring := p.participantKeys[participantID]
	if ring == nil {
		ring = make(map[int][]byte)
		p.participantKeys[participantID] = ring
	}
	ring[index] = slices.Clone(key)
}

// RatchetKey advances the participant's key at the given index by one
// derivation step and returns the new material. Returns ErrMissingKey when
// no key is installed for the participant and index.
func (p *KeyProvider) RatchetKey(participantID string, index int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	current, ok := p.lookupLocked(participantID, index)
	if !ok {
		return nil, ErrMissingKey
	}
	next, err := p.ratchetMaterial(current)
	if err != nil {
		return nil, err
	}
	ring := p.participantKeys[participantID]
	if ring == nil {
		ring = make(map[int][]byte)
		p.participantKeys[participantID] = ring
	}
	ring[index] = next
	return slices.Clone(next), nil
}

// keyForIndex resolves key material for the transform engine: the
// participant's own ring first, then the shared ring.
func (p *KeyProvider) keyForIndex(participantID string, index int) ([]byte, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	key, ok := p.lookupLocked(participantID, index)
	if !ok {
		return nil, false
	}
	return slices.Clone(key), true
}

func (p *KeyProvider) lookupLocked(participantID string, index int) ([]byte, bool) {
	if ring, ok := p.participantKeys[participantID]; ok {
		if key, ok := ring[index]; ok {
			return key, true
		}
	}
	key, ok := p.sharedKeys[index]
	return key, ok
}

// commitRatchetedKey stores material the engine recovered via ratcheting so
// that subsequent frames decrypt without re-deriving.
func (p *KeyProvider) commitRatchetedKey(participantID string, index int, key []byte) {
	p.SetKey(participantID, index, key)
}

// ratchetMaterial derives the successor of key via HKDF-SHA256 over the
// ratchet salt, preserving the key length.
func (p *KeyProvider) ratchetMaterial(key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, ErrIncorrectSecretLength
	}
	r := hkdf.New(sha256.New, key, p.opts.RatchetSalt, nil)
	next := make([]byte, len(key))
	if _, err := io.ReadFull(r, next); err != nil {
		return nil, err
	}
	return next, nil
}
