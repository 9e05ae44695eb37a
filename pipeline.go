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
	"github.com/pion/webrtc/v4"

	e2ee "github.com/livekit/frame-cryptor-go/pkg/interceptor"
)

// MediaTrack is the view of a track the factory needs to infer the media
// kind.
type MediaTrack interface {
	ID() string
	Kind() string
}

// SenderPipeline is an outbound track path. SetEncoderTransformer installs a
// frame transform at the encoder→packetizer boundary; at most one transform
// binding exists per track direction, installing a new one replaces the
// prior binding.
type SenderPipeline interface {
	Track() MediaTrack
	SetEncoderTransformer(t FrameTransformer)
}

// ReceiverPipeline is an inbound track path; the transform sits at the
// depacketizer→decoder boundary.
type ReceiverPipeline interface {
	Track() MediaTrack
	SetDecoderTransformer(t FrameTransformer)
}

// RTPSenderPipeline adapts a pion RTPSender to SenderPipeline. The
// transformer is registered with the E2EE interceptor's registry under the
// track id and applied to outgoing payloads before packetization.
type RTPSenderPipeline struct {
	sender   *webrtc.RTPSender
	registry *e2ee.TransformerRegistry
}

func NewRTPSenderPipeline(sender *webrtc.RTPSender, registry *e2ee.TransformerRegistry) *RTPSenderPipeline {
	return &RTPSenderPipeline{sender: sender, registry: registry}
}

func (p *RTPSenderPipeline) Track() MediaTrack {
	t := p.sender.Track()
	if t == nil {
		return nil
	}
	return localTrack{t}
}

func (p *RTPSenderPipeline) SetEncoderTransformer(t FrameTransformer) {
	track := p.sender.Track()
	if track == nil {
		return
	}
	p.registry.SetSenderTransformer(track.ID(), t)
}

// RTPReceiverPipeline adapts a pion RTPReceiver to ReceiverPipeline.
type RTPReceiverPipeline struct {
	receiver *webrtc.RTPReceiver
	registry *e2ee.TransformerRegistry
}

func NewRTPReceiverPipeline(receiver *webrtc.RTPReceiver, registry *e2ee.TransformerRegistry) *RTPReceiverPipeline {
	return &RTPReceiverPipeline{receiver: receiver, registry: registry}
}

func (p *RTPReceiverPipeline) Track() MediaTrack {
	t := p.receiver.Track()
	if t == nil {
		return nil
	}
	return remoteTrack{t}
}

func (p *RTPReceiverPipeline) SetDecoderTransformer(t FrameTransformer) {
	track := p.receiver.Track()
	if track == nil {
		return
	}
	p.registry.SetReceiverTransformer(track.ID(), t)
}

type localTrack struct {
	t webrtc.TrackLocal
}

func (l localTrack) ID() string   { return l.t.ID() }
func (l localTrack) Kind() string { return l.t.Kind().String() }

type remoteTrack struct {
	t *webrtc.TrackRemote
}

func (r remoteTrack) ID() string   { return r.t.ID() }
func (r remoteTrack) Kind() string { return r.t.Kind().String() }
