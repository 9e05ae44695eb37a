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

// Algorithm identifies the frame encryption algorithm requested for a track.
type Algorithm int

const (
	AlgorithmAesGcm Algorithm = iota
	AlgorithmAesCbc
	AlgorithmSm4Gcm
	AlgorithmSm4Cbc
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmAesGcm:
		return "aes-gcm"
	case AlgorithmAesCbc:
		return "aes-cbc"
	case AlgorithmSm4Gcm:
		return "sm4-gcm"
	case AlgorithmSm4Cbc:
		return "sm4-cbc"
	}
	return "unknown"
}

// resolveAlgorithm maps a requested algorithm to one the transform engine
// implements. SM4 variants and unknown values fall back to AES-GCM so that
// session setup never fails on an unimplemented identifier; callers needing
// the exact algorithm must check FrameCryptor.Algorithm after construction.
func resolveAlgorithm(requested Algorithm) Algorithm {
	switch requested {
	case AlgorithmAesGcm:
		return AlgorithmAesGcm
	case AlgorithmAesCbc:
		return AlgorithmAesCbc
	case AlgorithmSm4Gcm:
		return AlgorithmAesGcm
	case AlgorithmSm4Cbc:
		return AlgorithmAesGcm
	default:
		return AlgorithmAesGcm
	}
}
