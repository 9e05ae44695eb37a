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

// FrameCryptorFactory builds FrameCryptors for sender and receiver track
// paths.
type FrameCryptorFactory struct {
	newTransformer TransformerFactory
}

type FrameCryptorFactoryOption func(*FrameCryptorFactory)

// WithTransformerFactory substitutes the transform engine constructor; the
// default builds the AES-GCM engine.
func WithTransformerFactory(f TransformerFactory) FrameCryptorFactoryOption {
	return func(factory *FrameCryptorFactory) {
		factory.newTransformer = f
	}
}

func NewFrameCryptorFactory(opts ...FrameCryptorFactoryOption) *FrameCryptorFactory {
	f := &FrameCryptorFactory{
		newTransformer: newGCMTransformer,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CryptorForSender creates a FrameCryptor for an outbound track path. The
// media kind is inferred from the track, the transform engine is installed
// at the encoder→packetizer boundary and starts disabled. Fails with
// ErrInvalidTrack when the pipeline has no underlying track.
func (f *FrameCryptorFactory) CryptorForSender(participantID string, algorithm Algorithm, provider *KeyProvider, sender SenderPipeline) (*FrameCryptor, error) {
	if sender == nil || sender.Track() == nil {
		return nil, ErrInvalidTrack
	}

	kind := TrackKindFromString(sender.Track().Kind())
	resolved := f.resolve(participantID, algorithm)

	transformer := f.newTransformer(participantID, kind, DirectionSend, resolved, provider)
	sender.SetEncoderTransformer(transformer)
	transformer.SetEnabled(false)

	return newFrameCryptor(participantID, kind, DirectionSend, resolved, provider, transformer), nil
}

// CryptorForReceiver creates a FrameCryptor for an inbound track path, with
// the transform at the depacketizer→decoder boundary.
func (f *FrameCryptorFactory) CryptorForReceiver(participantID string, algorithm Algorithm, provider *KeyProvider, receiver ReceiverPipeline) (*FrameCryptor, error) {
	if receiver == nil || receiver.Track() == nil {
		return nil, ErrInvalidTrack
	}

	kind := TrackKindFromString(receiver.Track().Kind())
	resolved := f.resolve(participantID, algorithm)

	transformer := f.newTransformer(participantID, kind, DirectionReceive, resolved, provider)
	receiver.SetDecoderTransformer(transformer)
	transformer.SetEnabled(false)

	return newFrameCryptor(participantID, kind, DirectionReceive, resolved, provider, transformer), nil
}

func (f *FrameCryptorFactory) resolve(participantID string, algorithm Algorithm) Algorithm {
	resolved := resolveAlgorithm(algorithm)
	if resolved != algorithm {
		getLogger().Warn("requested encryption algorithm is not implemented, falling back",
			"participant", participantID,
			"requested", algorithm.String(),
			"resolved", resolved.String())
	}
	return resolved
}

var defaultFactory = NewFrameCryptorFactory()

// NewFrameCryptorForSender creates a sender FrameCryptor with the default
// factory.
func NewFrameCryptorForSender(participantID string, algorithm Algorithm, provider *KeyProvider, sender SenderPipeline) (*FrameCryptor, error) {
	return defaultFactory.CryptorForSender(participantID, algorithm, provider, sender)
}

// NewFrameCryptorForReceiver creates a receiver FrameCryptor with the
// default factory.
func NewFrameCryptorForReceiver(participantID string, algorithm Algorithm, provider *KeyProvider, receiver ReceiverPipeline) (*FrameCryptor, error) {
	return defaultFactory.CryptorForReceiver(participantID, algorithm, provider, receiver)
}
