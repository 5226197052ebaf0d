// SPDX-License-Identifier: Apache-2.0

// Package webpush implements the Web Push wire protocol: RFC 8291
// message encryption with the aes128gcm content encoding, and RFC 8292
// VAPID sender authentication.
package webpush

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// recordSize advertised in the aes128gcm header. Single-record
	// messages only; payloads larger than what the push service accepts
	// come back as a 413 at send time.
	recordSize = 4096

	saltLen      = 16
	gcmTagLen    = 16
	publicKeyLen = 65

	// Final-record delimiter from RFC 8188.
	recordDelimiter = 0x02
)

// Subscription is the (endpoint, p256dh, auth) triple a browser push
// service hands out on registration. Keys stay base64url-encoded until
// the moment of use.
type Subscription struct {
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

func deriveKey(secret, salt, info []byte, size int) ([]byte, error) {
	out := make([]byte, size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, info), out); err != nil {
		return nil, err
	}
	return out, nil
}

// Encrypt seals plaintext for one subscription per RFC 8291 and returns
// the self-describing aes128gcm record:
//
//	salt (16) ‖ rs (4) ‖ idlen (1) ‖ server public key (65) ‖ ciphertext+tag
//
// A fresh ephemeral key pair and salt are drawn on every call, so two
// encryptions of the same plaintext never produce the same bytes.
func Encrypt(plaintext []byte, sub *Subscription) ([]byte, error) {
	subscriberRaw, err := decodeKey(sub.P256dh)
	if err != nil {
		return nil, fmt.Errorf("could not decode p256dh key: %w", err)
	}

	authSecret, err := decodeKey(sub.Auth)
	if err != nil {
		return nil, fmt.Errorf("could not decode auth secret: %w", err)
	}

	subscriberKey, err := ecdh.P256().NewPublicKey(subscriberRaw)
	if err != nil {
		return nil, fmt.Errorf("subscriber key is not a valid P-256 point: %w", err)
	}

	ephemeral, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("could not generate ephemeral key: %w", err)
	}
	serverPublic := ephemeral.PublicKey().Bytes()

	sharedSecret, err := ephemeral.ECDH(subscriberKey)
	if err != nil {
		return nil, fmt.Errorf("could not agree on a shared secret: %w", err)
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("could not generate salt: %w", err)
	}

	// key_info = "WebPush: info" || 0x00 || ua_public || as_public
	keyInfo := make([]byte, 0, 14+2*publicKeyLen)
	keyInfo = append(keyInfo, []byte("WebPush: info\x00")...)
	keyInfo = append(keyInfo, subscriberRaw...)
	keyInfo = append(keyInfo, serverPublic...)

	ikm, err := deriveKey(sharedSecret, authSecret, keyInfo, 32)
	if err != nil {
		return nil, fmt.Errorf("could not derive IKM: %w", err)
	}

	cek, err := deriveKey(ikm, salt, []byte("Content-Encoding: aes128gcm\x00"), 16)
	if err != nil {
		return nil, fmt.Errorf("could not derive CEK: %w", err)
	}

	nonce, err := deriveKey(ikm, salt, []byte("Content-Encoding: nonce\x00"), 12)
	if err != nil {
		return nil, fmt.Errorf("could not derive nonce: %w", err)
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	record := make([]byte, 0, len(plaintext)+1)
	record = append(record, plaintext...)
	record = append(record, recordDelimiter)
	ciphertext := gcm.Seal(nil, nonce, record, nil)

	body := make([]byte, 0, saltLen+4+1+publicKeyLen+len(ciphertext))
	body = append(body, salt...)
	body = binary.BigEndian.AppendUint32(body, recordSize)
	body = append(body, byte(len(serverPublic)))
	body = append(body, serverPublic...)
	body = append(body, ciphertext...)

	return body, nil
}
