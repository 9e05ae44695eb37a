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

type TrackKind string

const (
	TrackKindVideo TrackKind = "video"
	TrackKindAudio TrackKind = "audio"
)

func (k TrackKind) String() string {
	return string(k)
}

// TrackKindFromString normalizes a track's declared kind. Anything that is
// not "audio" is treated as video.
func TrackKindFromString(kind string) TrackKind {
	if kind == string(TrackKindAudio) {
		return TrackKindAudio
	}
	return TrackKindVideo
}

// MediaDirection is the side of the media pipeline a FrameCryptor is bound
// to: the encoder→packetizer boundary for send, the depacketizer→decoder
// boundary for receive.
type MediaDirection int

const (
	DirectionSend MediaDirection = iota
	DirectionReceive
)

func (d MediaDirection) String() string {
	if d == DirectionSend {
		return "send"
	}
	return "receive"
}
