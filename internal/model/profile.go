package model

import (
	"errors"
	"strings"
	"time"
)

// FallbackFacts are the secondary answers used by graduated verification.
type FallbackFacts struct {
	MotherName string `json:"mother_name,omitempty" msgpack:"mother_name,omitempty"`
	PetName    string `json:"pet_name,omitempty" msgpack:"pet_name,omitempty"`
}

// Profile is the identity of the single local user of a device.
type Profile struct {
	DisplayName      string        `json:"display_name" msgpack:"display_name"`
	CodeWord         string        `json:"code_word,omitempty" msgpack:"code_word,omitempty"`
	Age              string        `json:"age,omitempty" msgpack:"age,omitempty"`
	ChallengePhrases []string      `json:"challenge_phrases,omitempty" msgpack:"challenge_phrases,omitempty"`
	Fallback         FallbackFacts `json:"fallback" msgpack:"fallback"`
	CreatedAt        time.Time     `json:"created_at" msgpack:"created_at"`
}

// Validate reports whether the profile can drive at least one verification variant.
func (p *Profile) Validate() error {
	if p == nil {
		return errors.New("profile is nil")
	}
	if strings.TrimSpace(p.DisplayName) == "" {
		return errors.New("display name is required")
	}
	if strings.TrimSpace(p.CodeWord) == "" && len(p.ChallengePhrases) == 0 {
		return errors.New("codeword or challenge phrases required")
	}
	return nil
}
