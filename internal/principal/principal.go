// Copyright (c) 2025 Tether
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package principal defines the user record exchanged between the identity
// service, the local store and the session provider.
//
// A User is deliberately opaque: the provider stores and forwards it without
// interpreting its fields. Only the CLI reaches into it, for display.
package principal

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// User is the authenticated principal as returned by the identity service.
type User map[string]any

// ErrNotObject is returned by Decode when the text is valid JSON but not an object.
var ErrNotObject = errors.New("principal: serialized user is not a JSON object")

// Encode serializes u to compact JSON text.
func Encode(u User) (string, error) {
	if u == nil {
		return "", errors.New("principal: cannot encode nil user")
	}
	b, err := json.Marshal(map[string]any(u))
	if err != nil {
		return "", fmt.Errorf("principal: encode: %w", err)
	}
	return string(b), nil
}

// Decode parses JSON text produced by Encode (or by any other writer of the
// same store key). Only a JSON object is accepted.
func Decode(s string) (User, error) {
	var raw any
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("principal: decode: %w", err)
	}
	obj, ok := raw.(map[string]any)
	if !ok || obj == nil {
		return nil, ErrNotObject
	}
	return User(obj), nil
}

// Clone returns a deep copy of u.
func (u User) Clone() User {
	if u == nil {
		return nil
	}
	return User(cloneMap(u))
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// ID returns the user identifier, trying the Appwrite field first.
func (u User) ID() string {
	return u.firstString("$id", "id", "user_id")
}

// Name returns the display name, if any.
func (u User) Name() string {
	return u.firstString("name")
}

// Email returns the email address, if any.
func (u User) Email() string {
	return u.firstString("email")
}

// Label picks the friendliest identifier available: email, then name, then id.
func (u User) Label() string {
	if e := u.Email(); e != "" {
		return e
	}
	if n := u.Name(); n != "" {
		return n
	}
	if id := u.ID(); id != "" {
		return id
	}
	return "user"
}

func (u User) firstString(keys ...string) string {
	for _, k := range keys {
		if v, ok := u[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
