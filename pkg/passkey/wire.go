// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkeygate.
//
// go-passkeygate is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package passkey

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Binary fields of a serialized PublicKeyCredential. Anything listed here
// may arrive as a JSON array of byte values or as a base64url string.
var (
	credentialBinaryFields = []string{"rawId"}
	responseBinaryFields   = []string{
		"clientDataJSON",
		"attestationObject",
		"authenticatorData",
		"signature",
		"userHandle",
		"publicKey",
	}
)

// EncodeBinary returns the canonical wire form: unpadded base64url.
func EncodeBinary(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeBinaryString decodes base64url with or without padding. Standard
// base64 is accepted as well since some clients emit it for rawId.
func DecodeBinaryString(s string) ([]byte, error) {
	trimmed := strings.TrimRight(s, "=")
	if b, err := base64.RawURLEncoding.DecodeString(trimmed); err == nil {
		return b, nil
	}
	b, err := base64.RawStdEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: not base64url", ErrMalformedInput)
	}
	return b, nil
}

// Binary is a byte slice that unmarshals from either wire representation
// and always marshals to base64url.
type Binary []byte

// MarshalJSON implements json.Marshaler.
func (b Binary) MarshalJSON() ([]byte, error) {
	return json.Marshal(EncodeBinary(b))
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Binary) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	decoded, err := decodeBinaryValue(v)
	if err != nil {
		return err
	}
	*b = decoded
	return nil
}

// CanonicalizeCredential rewrites a client credential payload so that every
// binary field is base64url, ready for the go-webauthn parsers. It also
// fills "id" from "rawId" and defaults "type" to "public-key" when absent.
func CanonicalizeCredential(raw json.RawMessage) ([]byte, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, ErrMissingInput
	}

	var cred map[string]any
	if err := json.Unmarshal(raw, &cred); err != nil {
		return nil, fmt.Errorf("%w: credential is not a JSON object", ErrMalformedInput)
	}

	if err := canonicalizeFields(cred, credentialBinaryFields); err != nil {
		return nil, err
	}

	response, ok := cred["response"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: credential response is missing", ErrMalformedInput)
	}
	if err := canonicalizeFields(response, responseBinaryFields); err != nil {
		return nil, err
	}

	rawID, _ := cred["rawId"].(string)
	if rawID == "" {
		return nil, fmt.Errorf("%w: rawId is missing", ErrMalformedInput)
	}
	if id, _ := cred["id"].(string); id == "" {
		cred["id"] = rawID
	}
	if t, _ := cred["type"].(string); t == "" {
		cred["type"] = "public-key"
	}

	out, err := json.Marshal(cred)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return out, nil
}

func canonicalizeFields(obj map[string]any, fields []string) error {
	for _, name := range fields {
		v, ok := obj[name]
		if !ok || v == nil {
			continue
		}
		b, err := decodeBinaryValue(v)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		obj[name] = EncodeBinary(b)
	}
	return nil
}

func decodeBinaryValue(v any) ([]byte, error) {
	switch t := v.(type) {
	case string:
		return DecodeBinaryString(t)
	case []any:
		out := make([]byte, len(t))
		for i, e := range t {
			n, ok := e.(float64)
			if !ok || n < 0 || n > math.MaxUint8 || n != math.Trunc(n) {
				return nil, fmt.Errorf("%w: byte array element %d out of range", ErrMalformedInput, i)
			}
			out[i] = byte(n)
		}
		return out, nil
	case map[string]any:
		// Uint8Array serialized with JSON.stringify: {"0":1,"1":2,...}
		out := make([]byte, len(t))
		for i := range out {
			n, ok := t[fmt.Sprint(i)].(float64)
			if !ok || n < 0 || n > math.MaxUint8 || n != math.Trunc(n) {
				return nil, fmt.Errorf("%w: byte map element %d out of range", ErrMalformedInput, i)
			}
			out[i] = byte(n)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported binary encoding %T", ErrMalformedInput, v)
	}
}
