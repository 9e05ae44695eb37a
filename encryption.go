package cryptor

import (
	"bytes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

const (
	sdkSalt         = "LKFrameEncryptionKey"
	gcmIVLength     = 12
	pbkdfIterations = 100000
	keySizeBytes    = 16
	hkdfInfoBytes   = 128

	// Leading payload bytes left unencrypted (and only authenticated) so the
	// depacketizer can still parse the frame. One byte covers the audio TOC;
	// video payloads are encrypted in full.
	unencryptedAudioBytes = 1
	unencryptedVideoBytes = 0

	frameTrailerLength = 2 // IV_LENGTH and KID, one byte each
)

// DeriveKeyFromString derives a 128 bit AES key from a passphrase using
// PBKDF2 with the fixed SDK salt, compatible with the LiveKit client SDKs.
func DeriveKeyFromString(password string) ([]byte, error) {
	return DeriveKeyFromStringCustomSalt(password, sdkSalt)
}

func DeriveKeyFromStringCustomSalt(password, salt string) ([]byte, error) {
	if password == "" {
		return nil, ErrIncorrectSecretLength
	}
	if salt == "" {
		return nil, ErrIncorrectSaltLength
	}

	return pbkdf2.Key([]byte(password), []byte(salt), pbkdfIterations, keySizeBytes, sha256.New), nil
}

// DeriveKeyFromBytes derives a 128 bit AES key from a shared secret using
// HKDF-SHA256 with the fixed SDK salt.
func DeriveKeyFromBytes(secret []byte) ([]byte, error) {
	return DeriveKeyFromBytesCustomSalt(secret, sdkSalt)
}

func DeriveKeyFromBytesCustomSalt(secret []byte, salt string) ([]byte, error) {
	if secret == nil {
		return nil, ErrIncorrectSecretLength
	}
	if salt == "" {
		return nil, ErrIncorrectSaltLength
	}

	hkdfReader := hkdf.New(sha256.New, secret, []byte(salt), make([]byte, hkdfInfoBytes))

	key := make([]byte, keySizeBytes)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		return nil, err
	}

	return key, nil
}

func unencryptedHeaderBytes(kind TrackKind) int {
	if kind == TrackKindAudio {
		return unencryptedAudioBytes
	}
	return unencryptedVideoBytes
}

// frameKeyIndex reads the key index (KID) byte from an encrypted frame
// without decrypting it.
//
// Encrypted frame format, matching the LiveKit client SDKs:
// ---------+-------------------------+---------+----
// payload  |IV...(length = IV_LENGTH)|IV_LENGTH|KID|
// ---------+-------------------------+---------+----
func frameKeyIndex(payload []byte) (uint8, error) {
	if len(payload) < frameTrailerLength {
		return 0, ErrIncorrectIVLength
	}
	return payload[len(payload)-1], nil
}

// isSIFPayload reports whether the payload is an unencrypted Server Injected
// Frame, identified by the session's SIF trailer.
func isSIFPayload(payload, sifTrailer []byte) bool {
	if len(sifTrailer) == 0 || len(payload) < len(sifTrailer) {
		return false
	}
	return bytes.Equal(payload[len(payload)-len(sifTrailer):], sifTrailer)
}

// encryptGCMFrame encrypts a frame payload with AES-GCM, leaving the first
// headerLen bytes unencrypted and authenticated, and appends the IV and
// trailer per the frame format above.
func encryptGCMFrame(payload []byte, kid uint8, headerLen int, block cipher.Block) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}
	if len(payload) < headerLen {
		headerLen = len(payload)
	}

	frameHeader := payload[:headerLen]

	iv := make([]byte, gcmIVLength)
	if _, err := rand.Read(iv); err != nil {
		return nil, errors.Join(ErrUnableGenerateIV, err)
	}

	aesGCM, err := cipher.NewGCMWithNonceSize(block, gcmIVLength)
	if err != nil {
		return nil, err
	}

	cipherText := aesGCM.Seal(nil, iv, payload[headerLen:], frameHeader)

	out := make([]byte, 0, headerLen+len(cipherText)+gcmIVLength+frameTrailerLength)
	out = append(out, frameHeader...)
	out = append(out, cipherText...)
	out = append(out, iv...)
	out = append(out, gcmIVLength, kid)
	return out, nil
}

// decryptGCMFrame reverses encryptGCMFrame with the supplied cipher block.
// The caller resolves the key from the KID byte before calling.
func decryptGCMFrame(payload []byte, headerLen int, block cipher.Block) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}
	if len(payload) < headerLen+frameTrailerLength {
		return nil, ErrIncorrectIVLength
	}

	frameHeader := payload[:headerLen]
	frameTrailer := payload[len(payload)-frameTrailerLength:]
	ivLength := int(frameTrailer[0])
	ivStart := len(payload) - frameTrailerLength - ivLength
	if ivStart < headerLen {
		return nil, ErrIncorrectIVLength
	}

	iv := payload[ivStart : ivStart+ivLength]
	cipherText := payload[headerLen:ivStart]

	// nonce size is taken from the frame rather than assumed, peers MAY use
	// a non-default length
	aesGCM, err := cipher.NewGCMWithNonceSize(block, ivLength)
	if err != nil {
		return nil, err
	}

	plainText, err := aesGCM.Open(nil, iv, cipherText, frameHeader)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, headerLen+len(plainText))
	out = append(out, frameHeader...)
	out = append(out, plainText...)
	return out, nil
}
