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
	"crypto/aes"
	"sync"

	"go.uber.org/atomic"
)

// gcmTransformer is the built-in AES-GCM transform engine. The AES-CBC
// resolution also lands here; this engine only implements the GCM transform,
// which is what algorithm fallback guarantees.
type gcmTransformer struct {
	participantID string
	kind          TrackKind
	direction     MediaDirection
	algorithm     Algorithm
	provider      *KeyProvider

	enabled  atomic.Bool
	keyIndex atomic.Int32
	failures atomic.Int32

	mu         sync.Mutex
	notify     func(state CryptionState)
	lastState  CryptionState
	sifTrailer []byte
}

func newGCMTransformer(participantID string, kind TrackKind, direction MediaDirection, algorithm Algorithm, provider *KeyProvider) FrameTransformer {
	return &gcmTransformer{
		participantID: participantID,
		kind:          kind,
		direction:     direction,
		algorithm:     algorithm,
		provider:      provider,
		lastState:     CryptionStateNew,
	}
}

func (t *gcmTransformer) SetEnabled(enabled bool) {
	t.enabled.Store(enabled)
}

func (t *gcmTransformer) Enabled() bool {
	return t.enabled.Load()
}

// SetKeyIndex masks the index to 0-255; the KID travels as a single byte in
// the frame trailer, so wider values could not round-trip to the receiver.
func (t *gcmTransformer) SetKeyIndex(index int) {
	t.keyIndex.Store(int32(index & 0xFF))
}

func (t *gcmTransformer) KeyIndex() int {
	return int(t.keyIndex.Load())
}

func (t *gcmTransformer) RegisterObserver(fn func(state CryptionState)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notify = fn
}

func (t *gcmTransformer) UnregisterObserver() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notify = nil
}

// setSIFTrailer installs the session's Server Injected Frame marker; receive
// payloads carrying it bypass decryption and are dropped.
func (t *gcmTransformer) setSIFTrailer(trailer []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sifTrailer = trailer
}

func (t *gcmTransformer) currentSIFTrailer() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sifTrailer
}

// emitState notifies the registered observer of a state transition.
// Repeated identical states are collapsed, except KeyRatcheted which is
// meaningful on every occurrence.
func (t *gcmTransformer) emitState(state CryptionState) {
	t.mu.Lock()
	if state == t.lastState && state != CryptionStateKeyRatcheted {
		t.mu.Unlock()
		return
	}
	t.lastState = state
	notify := t.notify
	t.mu.Unlock()

	if notify != nil {
		notify(state)
	}
}

func (t *gcmTransformer) Transform(payload []byte) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}
	if !t.enabled.Load() {
		return payload, nil
	}
	if t.direction == DirectionSend {
		return t.encrypt(payload)
	}
	return t.decrypt(payload)
}

func (t *gcmTransformer) Close() error {
	t.UnregisterObserver()
	return nil
}

func (t *gcmTransformer) encrypt(payload []byte) ([]byte, error) {
	index := int(t.keyIndex.Load())
	key, ok := t.provider.keyForIndex(t.participantID, index)
	if !ok {
		t.emitState(CryptionStateMissingKey)
		return nil, ErrMissingKey
	}
	if len(key) != keySizeBytes {
		t.emitState(CryptionStateInternalError)
		return nil, ErrIncorrectKeyLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		t.emitState(CryptionStateInternalError)
		return nil, err
	}

	out, err := encryptGCMFrame(payload, uint8(index), unencryptedHeaderBytes(t.kind), block)
	if err != nil {
		t.emitState(CryptionStateEncryptionFailed)
		return nil, err
	}

	t.emitState(CryptionStateOk)
	return out, nil
}

func (t *gcmTransformer) decrypt(payload []byte) ([]byte, error) {
	if isSIFPayload(payload, t.currentSIFTrailer()) {
		// unencrypted Server Injected Frame, drop
		return nil, nil
	}

	kid, err := frameKeyIndex(payload)
	if err != nil {
		return nil, t.decryptFailed(err)
	}

	key, ok := t.provider.keyForIndex(t.participantID, int(kid))
	if !ok {
		t.emitState(CryptionStateMissingKey)
		return nil, ErrMissingKey
	}

	headerLen := unencryptedHeaderBytes(t.kind)
	if out, err := decryptWithKey(payload, headerLen, key); err == nil {
		t.failures.Store(0)
		t.emitState(CryptionStateOk)
		return out, nil
	}

	// the sender may have ratcheted ahead of us; try successive derived keys
	// within the configured window
	material := key
	for step := 0; step < t.provider.opts.RatchetWindowSize; step++ {
		material, err = t.provider.ratchetMaterial(material)
		if err != nil {
			break
		}
		out, err := decryptWithKey(payload, headerLen, material)
		if err != nil {
			continue
		}
		t.provider.commitRatchetedKey(t.participantID, int(kid), material)
		t.failures.Store(0)
		getLogger().Debug("recovered decryption key via ratchet",
			"participant", t.participantID, "keyIndex", kid, "steps", step+1)
		t.emitState(CryptionStateKeyRatcheted)
		return out, nil
	}

	return nil, t.decryptFailed(ErrDecryptionFailed)
}

// decryptFailed counts a consecutive decryption failure and reports
// DecryptionFailed once the provider's tolerance is exceeded.
func (t *gcmTransformer) decryptFailed(err error) error {
	if int(t.failures.Inc()) > t.provider.opts.FailureTolerance {
		t.emitState(CryptionStateDecryptionFailed)
	}
	return err
}

func decryptWithKey(payload []byte, headerLen int, key []byte) ([]byte, error) {
	if len(key) != keySizeBytes {
		return nil, ErrIncorrectKeyLength
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return decryptGCMFrame(payload, headerLen, block)
}
