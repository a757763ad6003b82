package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Severity is the canonical ordered log level. Comparisons with < and >=
// follow the declared order.
type Severity int8

const (
	SeverityTrace Severity = iota
	SeverityDebug
	SeverityInfo
	SeverityWarn
	SeverityError
	SeverityFatal
)

var severityNames = [...]string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (s Severity) String() string {
	if s < SeverityTrace || s > SeverityFatal {
		return fmt.Sprintf("Severity(%d)", int8(s))
	}
	return severityNames[s]
}

// MarshalJSON renders the canonical name so stored and printed events stay
// readable.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	sev, ok := ParseSeverity(name)
	if !ok {
		return fmt.Errorf("model: unknown severity %q", name)
	}
	*s = sev
	return nil
}

// severityTokens maps recognizer-specific level tokens onto the canonical
// enum. Numeric entries are syslog severities (RFC 3164: 0 emerg .. 7 debug).
var severityTokens = map[string]Severity{
	"trace":     SeverityTrace,
	"7":         SeverityDebug,
	"debug":     SeverityDebug,
	"dbg":       SeverityDebug,
	"6":         SeverityInfo,
	"info":      SeverityInfo,
	"5":         SeverityInfo,
	"notice":    SeverityInfo,
	"4":         SeverityWarn,
	"warn":      SeverityWarn,
	"warning":   SeverityWarn,
	"3":         SeverityError,
	"error":     SeverityError,
	"err":       SeverityError,
	"severe":    SeverityError,
	"exception": SeverityError,
	"2":         SeverityFatal,
	"crit":      SeverityFatal,
	"critical":  SeverityFatal,
	"1":         SeverityFatal,
	"alert":     SeverityFatal,
	"0":         SeverityFatal,
	"emerg":     SeverityFatal,
	"emergency": SeverityFatal,
	"fatal":     SeverityFatal,
	"panic":     SeverityFatal,
}

// ParseSeverity maps a level token (any case) onto the canonical enum.
// The second return is false for tokens the table does not know; callers
// decide the fallback (the normalizer uses INFO and counts the miss).
func ParseSeverity(token string) (Severity, bool) {
	s, ok := severityTokens[strings.ToLower(strings.TrimSpace(token))]
	return s, ok
}
