package smtp

import "strings"

// SessionConfig holds configurable limits (reusable across sessions)
type SessionConfig struct {
	MaxBodyBytes int // Maximum accumulated body length in bytes (default: 4096)
}

// DefaultSessionConfig returns the gateway defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		MaxBodyBytes: 4096,
	}
}

// Session tracks one connection's transaction state: the command sequencing
// phase plus the fields and body captured during the DATA phase. A Session
// is owned by a single connection goroutine and never shared.
type Session struct {
	config SessionConfig
	state  SessionState

	sender    string
	recipient string

	fields     ParsedFields
	inHeaders  bool
	headerDone bool
	body       strings.Builder
	truncated  bool
}

// NewSession creates a session in the initial state.
func NewSession(config SessionConfig) *Session {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultSessionConfig().MaxBodyBytes
	}
	return &Session{
		config: config,
		state:  StateInit,
	}
}

// Config returns the session configuration
func (s *Session) Config() SessionConfig {
	return s.config
}

// State returns the current session state
func (s *Session) State() SessionState {
	return s.state
}

// SetState sets the session state
func (s *Session) SetState(state SessionState) {
	s.state = state
}

// SetSender sets the envelope sender
func (s *Session) SetSender(sender string) {
	s.sender = sender
}

// Sender returns the envelope sender
func (s *Session) Sender() string {
	return s.sender
}

// SetRecipient sets the envelope recipient
func (s *Session) SetRecipient(recipient string) {
	s.recipient = recipient
}

// Recipient returns the envelope recipient
func (s *Session) Recipient() string {
	return s.recipient
}

// InData returns whether the session is in DATA mode
func (s *Session) InData() bool {
	return s.state == StateReceivingData
}

// BeginData enters the DATA phase with a clean capture buffer, discarding
// anything captured by an earlier transaction on the same connection.
func (s *Session) BeginData() {
	s.fields = ParsedFields{}
	s.inHeaders = true
	s.headerDone = false
	s.body.Reset()
	s.truncated = false
	s.state = StateReceivingData
}

// ConsumeDataLine processes one line of the DATA phase. The line must
// already be trimmed of trailing whitespace and dot-unstuffed. Lines before
// the header/body separator feed the header extractor; every later line is
// appended to the body accumulator.
func (s *Session) ConsumeDataLine(line string) {
	if s.inHeaders {
		if !s.headerDone {
			switch ExtractHeader(line, &s.fields) {
			case ExtractComplete:
				s.headerDone = true
			case ExtractInvalid:
				s.headerDone = true
				s.inHeaders = false
			}
			return
		}
		// All fields found; skip remaining header lines up to the separator.
		if strings.TrimSpace(line) == "" {
			s.inHeaders = false
		}
		return
	}

	s.appendBodyLine(line)
}

// appendBodyLine adds one line to the body accumulator, enforcing the cap:
// the accumulated text never exceeds MaxBodyBytes and is cut at exactly
// that length when a line would overflow it.
func (s *Session) appendBodyLine(line string) {
	if s.truncated {
		return
	}

	text := line + "\n"
	remaining := s.config.MaxBodyBytes - s.body.Len()
	if len(text) > remaining {
		text = text[:remaining]
		s.truncated = true
	}
	s.body.WriteString(text)
}

// Fields returns the fields extracted so far. Absent fields are empty.
func (s *Session) Fields() ParsedFields {
	return s.fields
}

// Body returns the accumulated body text.
func (s *Session) Body() string {
	return s.body.String()
}

// Truncated reports whether the body hit the accumulator cap.
func (s *Session) Truncated() bool {
	return s.truncated
}
