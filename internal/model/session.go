package model

import "time"

// Stage is a state of the onboarding and verification machine.
type Stage string

const (
	StageStart       Stage = "start"
	StageAskName     Stage = "ask_name"
	StageAskAge      Stage = "ask_age"
	StageAskMother   Stage = "ask_mother"
	StageAskPet      Stage = "ask_pet"
	StageAskCodeword Stage = "ask_codeword"
	StageVerify      Stage = "verify"
	StageSoftVerify  Stage = "soft_verify"
	StageComplete    Stage = "complete"
	StageLocked      Stage = "locked"
)

// Onboarding reports whether the stage belongs to first-contact profile collection.
func (s Stage) Onboarding() bool {
	switch s {
	case StageAskName, StageAskAge, StageAskMother, StageAskPet, StageAskCodeword:
		return true
	}
	return false
}

// SessionState is the mutable state of the verification machine.
// SoftStep is the 1-based graduated question index while in StageSoftVerify.
type SessionState struct {
	Stage             Stage     `json:"stage"`
	AttemptsRemaining int       `json:"attempts_remaining"`
	SoftStep          int       `json:"soft_step,omitempty"`
	LockoutUntil      time.Time `json:"lockout_until,omitempty"`
}
