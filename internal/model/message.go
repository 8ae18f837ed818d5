package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Speaker identifies who authored a message.
type Speaker int

const (
	SpeakerUser Speaker = iota + 1
	SpeakerAssistant
)

func (s Speaker) String() string {
	switch s {
	case SpeakerUser:
		return "user"
	case SpeakerAssistant:
		return "assistant"
	default:
		return fmt.Sprintf("Speaker(%d)", int(s))
	}
}

// ParseSpeaker parses the string form produced by String.
func ParseSpeaker(s string) (Speaker, error) {
	switch s {
	case "user":
		return SpeakerUser, nil
	case "assistant":
		return SpeakerAssistant, nil
	}
	return 0, fmt.Errorf("unknown speaker %q", s)
}

func (s Speaker) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Speaker) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return err
	}
	v, err := ParseSpeaker(str)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Message is one entry of the visible transcript.
type Message struct {
	ID        string    `json:"id" msgpack:"id"`
	Sequence  int       `json:"seq" msgpack:"seq"`
	Speaker   Speaker   `json:"speaker" msgpack:"speaker"`
	Content   string    `json:"content" msgpack:"content"`
	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
}
