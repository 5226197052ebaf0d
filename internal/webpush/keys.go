// SPDX-License-Identifier: Apache-2.0
package webpush

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
	"strings"
)

// Key material travels as base64url without padding, the same format
// PushManager.subscribe hands to browsers.
func encodeKey(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeKey(value string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(value, "="))
}

// VAPIDKeys holds an application server identity: a P-256 pair encoded
// as a 32-byte scalar and a 65-byte uncompressed point.
type VAPIDKeys struct {
	Public  string `yaml:"public" env:"PUSHGATE_VAPID_PUBLIC_KEY"`
	Private string `yaml:"private" env:"PUSHGATE_VAPID_PRIVATE_KEY"`
}

func GenerateVAPIDKeys() (*VAPIDKeys, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("could not generate P-256 pair: %w", err)
	}

	return &VAPIDKeys{
		Public:  encodeKey(priv.PublicKey().Bytes()),
		Private: encodeKey(priv.Bytes()),
	}, nil
}

// SigningKey turns the stored private scalar into an ecdsa key usable
// for ES256.
func (k *VAPIDKeys) SigningKey() (*ecdsa.PrivateKey, error) {
	raw, err := decodeKey(k.Private)
	if err != nil {
		return nil, fmt.Errorf("could not decode VAPID private key: %w", err)
	}

	if len(raw) != 32 {
		return nil, fmt.Errorf("VAPID private key must be 32 bytes, got %d", len(raw))
	}

	curve := elliptic.P256()
	priv := &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: curve},
		D:         new(big.Int).SetBytes(raw),
	}
	priv.PublicKey.X, priv.PublicKey.Y = curve.ScalarBaseMult(raw)
	if priv.PublicKey.X == nil {
		return nil, fmt.Errorf("VAPID private key is not a valid P-256 scalar")
	}

	return priv, nil
}
