// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package signer produces tamper-evident strings for activation links.
// A signed value has the form "value:signature" (or "value:timestamp:signature"
// for the timestamped variant), where signature is the unpadded base64url
// HMAC-SHA256 of everything before it.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

const sep = ":"

var (
	// ErrBadSignature is returned for malformed or forged values.
	ErrBadSignature = errors.New("bad signature")
	// ErrExpired is returned when a timestamped value is older than allowed.
	ErrExpired = errors.New("signature expired")
)

// Signer signs and verifies values with a server secret.
type Signer struct {
	key  []byte
	salt string
	now  func() time.Time
}

// New creates a Signer. The salt namespaces signatures so a value signed for
// one purpose cannot be replayed for another.
func New(secret, salt string) *Signer {
	return &Signer{key: []byte(secret), salt: salt, now: time.Now}
}

// Sign returns value with its signature appended.
func (s *Signer) Sign(value string) string {
	return value + sep + s.signature(value)
}

// Unsign verifies a string produced by Sign and returns the original value.
func (s *Signer) Unsign(signed string) (string, error) {
	i := strings.LastIndex(signed, sep)
	if i < 0 {
		return "", ErrBadSignature
	}
	value, sig := signed[:i], signed[i+1:]
	if !s.verify(value, sig) {
		return "", ErrBadSignature
	}
	return value, nil
}

// SignTimestamped signs value together with the current time.
func (s *Signer) SignTimestamped(value string) string {
	ts := strconv.FormatInt(s.now().Unix(), 36)
	return s.Sign(value + sep + ts)
}

// UnsignTimestamped verifies a string produced by SignTimestamped. A positive
// maxAge rejects values signed longer ago than that; zero accepts any age.
func (s *Signer) UnsignTimestamped(signed string, maxAge time.Duration) (string, error) {
	inner, err := s.Unsign(signed)
	if err != nil {
		return "", err
	}
	i := strings.LastIndex(inner, sep)
	if i < 0 {
		return "", ErrBadSignature
	}
	value, raw := inner[:i], inner[i+1:]
	unix, err := strconv.ParseInt(raw, 36, 64)
	if err != nil {
		return "", ErrBadSignature
	}
	if maxAge > 0 && s.now().Sub(time.Unix(unix, 0)) > maxAge {
		return "", ErrExpired
	}
	return value, nil
}

func (s *Signer) signature(value string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(s.salt))
	mac.Write([]byte(sep))
	mac.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (s *Signer) verify(value, sig string) bool {
	return hmac.Equal([]byte(s.signature(value)), []byte(sig))
}
