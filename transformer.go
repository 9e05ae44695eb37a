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

// FrameTransformer is the capability the control plane requires from a frame
// transform engine. The engine performs the per-frame cipher work on the
// media pipeline's own goroutine; all methods must be safe to call
// concurrently with Transform.
type FrameTransformer interface {
	SetEnabled(enabled bool)
	Enabled() bool
	SetKeyIndex(index int)
	KeyIndex() int

	// RegisterObserver binds fn to the engine's state-change signal. The
	// engine notifies at most one function; a second registration replaces
	// the first.
	RegisterObserver(fn func(state CryptionState))
	UnregisterObserver()

	// Transform encrypts (send path) or decrypts (receive path) one encoded
	// frame payload. A disabled engine returns the payload unmodified. A nil
	// payload with nil error means the frame must be dropped.
	Transform(payload []byte) ([]byte, error)

	Close() error
}

// TransformerFactory builds the transform engine a FrameCryptor drives.
// The default produces the AES-GCM engine; tests and alternative cipher
// backends can substitute their own.
type TransformerFactory func(participantID string, kind TrackKind, direction MediaDirection, algorithm Algorithm, provider *KeyProvider) FrameTransformer
