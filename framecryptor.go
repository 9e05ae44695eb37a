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
	"sync"

	"github.com/google/uuid"
)

// FrameCryptor binds one participant's encryption context to a single
// track's send or receive path. It owns the enable/disable, key-index and
// observer protocol; the cipher work itself happens in the FrameTransformer
// installed into the media pipeline at construction.
//
// All methods are safe for concurrent use. A single mutex guards the enabled
// flag, the key index and the observer binding, and the transform engine is
// notified while it is held, so state change and engine notification are
// observed atomically.
type FrameCryptor struct {
	id            string
	participantID string
	kind          TrackKind
	direction     MediaDirection
	algorithm     Algorithm
	provider      *KeyProvider
	transformer   FrameTransformer
	bridge        *observerBridge

	mu       sync.Mutex
	enabled  bool
	keyIndex int
	observer CryptionStateObserver
	closed   bool
}

func newFrameCryptor(participantID string, kind TrackKind, direction MediaDirection, algorithm Algorithm, provider *KeyProvider, transformer FrameTransformer) *FrameCryptor {
	c := &FrameCryptor{
		id:            uuid.NewString(),
		participantID: participantID,
		kind:          kind,
		direction:     direction,
		algorithm:     algorithm,
		provider:      provider,
		transformer:   transformer,
		bridge:        newObserverBridge(participantID),
	}
	getLogger().Debug("created frame cryptor",
		"cryptorID", c.id,
		"participant", participantID,
		"kind", kind.String(),
		"direction", direction.String(),
		"algorithm", algorithm.String())
	return c
}

func (c *FrameCryptor) ParticipantID() string {
	return c.participantID
}

func (c *FrameCryptor) Kind() TrackKind {
	return c.kind
}

func (c *FrameCryptor) Direction() MediaDirection {
	return c.direction
}

// Algorithm returns the algorithm actually in effect, which may differ from
// the requested one after fallback resolution.
func (c *FrameCryptor) Algorithm() Algorithm {
	return c.algorithm
}

// KeyProvider returns the shared key provider this cryptor was created with.
func (c *FrameCryptor) KeyProvider() *KeyProvider {
	return c.provider
}

// SetEnabled toggles frame encryption/decryption on the underlying engine.
// A disabled cryptor passes frames through unmodified.
func (c *FrameCryptor) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.enabled = enabled
	c.transformer.SetEnabled(enabled)
}

func (c *FrameCryptor) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// SetKeyIndex forwards the new key index to the engine. Out-of-range values
// are the engine's concern; no validation happens here. The built-in GCM
// engine carries the index as a single KID byte on the wire and masks it to
// 0-255.
func (c *FrameCryptor) SetKeyIndex(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.keyIndex = index
	c.transformer.SetKeyIndex(index)
}

func (c *FrameCryptor) KeyIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keyIndex
}

// RegisterObserver attaches observer to this cryptor's state-change stream,
// tearing down any previous binding first.
func (c *FrameCryptor) RegisterObserver(observer CryptionStateObserver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.observer != nil {
		c.transformer.UnregisterObserver()
		c.bridge.setObserver(nil)
	}
	c.observer = observer
	if observer == nil {
		return
	}
	c.bridge.setObserver(observer)
	c.transformer.RegisterObserver(c.bridge.notify)
}

// UnregisterObserver detaches the current observer. Calling it with no
// observer registered is a no-op.
func (c *FrameCryptor) UnregisterObserver() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unregisterObserverLocked()
}

func (c *FrameCryptor) unregisterObserverLocked() {
	if c.observer == nil {
		return
	}
	c.observer = nil
	c.bridge.setObserver(nil)
	c.transformer.UnregisterObserver()
}

// Close releases the cryptor. Any registered observer is unregistered before
// the engine handle is released so no notification lands on a torn-down
// binding. Idempotent.
func (c *FrameCryptor) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.unregisterObserverLocked()
	c.bridge.close()
	return c.transformer.Close()
}

// observerBridge connects the engine's state-change signal to the
// caller-supplied observer, adding the participant id. It deliberately holds
// no reference to the FrameCryptor, and drops deliveries that race with
// teardown.
type observerBridge struct {
	participantID string

	mu       sync.Mutex
	observer CryptionStateObserver
	closed   bool
}

func newObserverBridge(participantID string) *observerBridge {
	return &observerBridge{participantID: participantID}
}

func (b *observerBridge) setObserver(observer CryptionStateObserver) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observer = observer
}

func (b *observerBridge) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.observer = nil
}

// notify runs on the engine's frame-processing goroutine.
func (b *observerBridge) notify(state CryptionState) {
	b.mu.Lock()
	observer := b.observer
	closed := b.closed
	b.mu.Unlock()

	if closed || observer == nil {
		return
	}
	observer.OnCryptionStateChanged(b.participantID, state)
}
