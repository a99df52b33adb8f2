// Package models defines the core data structures for EcoHearing.
//
// It includes the hearing step variants, the exchange log, accepted answers,
// and the canonical payload handed to the results stage. These types are
// shared across modules.
package models

import (
	"errors"
	"fmt"
)

// InputMode defines how a hearing step collects its response.
type InputMode string

const (
	// InputChoice presents multiple selectable options.
	InputChoice InputMode = "choice"
	// InputSingleChoice presents options of which exactly one applies.
	InputSingleChoice InputMode = "single_choice"
	// InputFreeText accepts a typed string, optionally validated.
	InputFreeText InputMode = "free_text"
	// InputFile accepts an attached file reference.
	InputFile InputMode = "file"
)

// Error variables for better error handling and testability
var (
	ErrNotAwaitingResponse = errors.New("session is not awaiting a response")
	ErrStepMismatch        = errors.New("response targets a step other than the current one")
	ErrWrongInputMode      = errors.New("response shape does not match the step's input mode")
	ErrUnknownOption       = errors.New("selected option is not offered by the current step")
	ErrNoFileSelected      = errors.New("no file selected")
	ErrNotCompleted        = errors.New("session has not completed the hearing")
	ErrSessionNotFound     = errors.New("session not found")
)

// ValidationError reports a rejected free-text response together with the
// hint shown to the user. It is recoverable: the session stays on the same
// step awaiting a corrected response.
type ValidationError struct {
	StepID int
	Hint   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("step %d rejected input: %s", e.StepID, e.Hint)
}

// Step is one unit of the fixed hearing sequence. Each input mode has its
// own variant type carrying only the fields that mode uses.
type Step interface {
	// ID returns the stable step identifier; ids are unique and their
	// order defines presentation order.
	ID() int
	// Prompt returns the system message presented for this step.
	Prompt() string
	// Mode returns the step's input mode.
	Mode() InputMode
}

// ChoiceStep presents a fixed set of options and accepts one of them.
// Single distinguishes the single-choice variant (exactly one applies)
// from the plain multi-option variant; both accept exactly one selection.
type ChoiceStep struct {
	StepID        int
	PromptText    string
	Options       []string
	Single        bool
	Annotation    string // shown beneath the prompt when non-empty
	EmphasisColor string // rendering hint for the option buttons
}

func (s ChoiceStep) ID() int { return s.StepID }
func (s ChoiceStep) Prompt() string { return s.PromptText }
func (s ChoiceStep) Mode() InputMode {
	if s.Single {
		return InputSingleChoice
	}
	return InputChoice
}

// Offers reports whether option is one of the step's options.
func (s ChoiceStep) Offers(option string) bool {
	for _, o := range s.Options {
		if o == option {
			return true
		}
	}
	return false
}

// TextStep accepts a typed string, optionally validated.
type TextStep struct {
	StepID     int
	PromptText string
	Validate   func(string) bool // nil means every input passes
	RejectHint string            // shown when Validate rejects
	AutoFill   bool              // prefix the answer with the looked-up address fragment
	Supplement string
	Extra      string
}

func (s TextStep) ID() int { return s.StepID }
func (s TextStep) Prompt() string { return s.PromptText }
func (s TextStep) Mode() InputMode { return InputFreeText }

// FileStep accepts an attached file reference.
type FileStep struct {
	StepID      int
	PromptText  string
	AcceptTypes []string
}

func (s FileStep) ID() int { return s.StepID }
func (s FileStep) Prompt() string { return s.PromptText }
func (s FileStep) Mode() InputMode { return InputFile }

// Role identifies who produced an exchange log entry.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// ExchangeEntry is one append-only record of a prompt presented to the
// user or a response accepted from them. Entries are never mutated or
// removed except by a full session reset.
type ExchangeEntry struct {
	ID         int64  `json:"id"`
	Role       Role   `json:"role"`
	Text       string `json:"text"`
	Annotation string `json:"annotation,omitempty"`
	Supplement string `json:"supplement,omitempty"`
	Extra      string `json:"extra,omitempty"`
}

// FileHandle is an opaque, read-only reference to an attached file. Only
// the display name travels through this core; the bytes belong to the
// upload collaborator.
type FileHandle struct {
	Name string `json:"name"`
}

// Answer is one accepted response: either a typed/selected string or a
// file handle, never both.
type Answer struct {
	Text string      `json:"text,omitempty"`
	File *FileHandle `json:"file,omitempty"`
}

// IsFile reports whether the answer holds a file handle.
func (a Answer) IsFile() bool { return a.File != nil }

// NotProvided is the sentinel delivered for payload fields whose source
// step was skipped or empty.
const NotProvided = "未入力"

// Payload is the finalized, named-field summary of a completed session.
// File answers are excluded; the installation-status answer (step 6) is
// collected in the exchange log but intentionally absent here.
type Payload struct {
	PostalCode          string `json:"postal_code"`
	Address             string `json:"address"`
	ElectricityBillTier string `json:"electricity_bill_tier"`
	HousingType         string `json:"housing_type"`
	Name                string `json:"name"`
	Phone               string `json:"phone"`
}

// Normalized returns a copy with every empty field replaced by the
// NotProvided sentinel, the shape delivered to the results stage.
func (p Payload) Normalized() Payload {
	for _, f := range []*string{&p.PostalCode, &p.Address, &p.ElectricityBillTier, &p.HousingType, &p.Name, &p.Phone} {
		if *f == "" {
			*f = NotProvided
		}
	}
	return p
}
