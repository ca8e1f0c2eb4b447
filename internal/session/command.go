package session

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Command is a client control command.
type Command string

const (
	CommandStart Command = "START"
	CommandStop  Command = "STOP"
	CommandReset Command = "RESET"
)

// ParseCommand recognizes START, STOP and RESET, ignoring case and
// surrounding whitespace.
func ParseCommand(s string) (Command, bool) {
	switch c := Command(strings.ToUpper(strings.TrimSpace(s))); c {
	case CommandStart, CommandStop, CommandReset:
		return c, true
	}
	return "", false
}

// DecodeFrame extracts image bytes from a data URL
// ("data:image/jpeg;base64,...") or from bare base64.
func DecodeFrame(s string) ([]byte, error) {
	payload := s
	if strings.HasPrefix(s, "data:") {
		_, after, ok := strings.Cut(s, ",")
		if !ok {
			return nil, fmt.Errorf("malformed data URL")
		}
		payload = after
	}
	if payload == "" {
		return nil, fmt.Errorf("empty frame")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}
	return data, nil
}
