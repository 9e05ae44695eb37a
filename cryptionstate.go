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

// CryptionState is the encryption/decryption health of a single track,
// reported asynchronously through a CryptionStateObserver.
type CryptionState int

const (
	CryptionStateNew CryptionState = iota
	CryptionStateOk
	CryptionStateEncryptionFailed
	CryptionStateDecryptionFailed
	CryptionStateMissingKey
	CryptionStateKeyRatcheted
	CryptionStateInternalError
)

func (s CryptionState) String() string {
	switch s {
	case CryptionStateNew:
		return "new"
	case CryptionStateOk:
		return "ok"
	case CryptionStateEncryptionFailed:
		return "encryption_failed"
	case CryptionStateDecryptionFailed:
		return "decryption_failed"
	case CryptionStateMissingKey:
		return "missing_key"
	case CryptionStateKeyRatcheted:
		return "key_ratcheted"
	case CryptionStateInternalError:
		return "internal_error"
	}
	return "unknown"
}

// CryptionStateObserver receives encryption-state changes for the participant
// a FrameCryptor is bound to. At most one observer is attached per cryptor;
// registering a new one replaces the previous binding.
//
// Observers are the only channel through which runtime crypto failures are
// surfaced. Without one, decryption failures manifest only as dropped media.
type CryptionStateObserver interface {
	OnCryptionStateChanged(participantID string, state CryptionState)
}

// CryptionStateObserverFunc adapts a function to the CryptionStateObserver
// interface.
type CryptionStateObserverFunc func(participantID string, state CryptionState)

func (f CryptionStateObserverFunc) OnCryptionStateChanged(participantID string, state CryptionState) {
	f(participantID, state)
}
