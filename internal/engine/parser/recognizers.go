package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pale-fire/logdoctor/internal/config"
	"github.com/pale-fire/logdoctor/internal/model"
)

var (
	levelTokenRe = regexp.MustCompile(`(?i)\b(FATAL|CRITICAL|CRIT|SEVERE|PANIC|ERROR|ERR|WARNING|WARN|NOTICE|INFO|DEBUG|TRACE)\b`)
	leadingSepRe = regexp.MustCompile(`^\s*[-:\[\]|]+\s*`)

	traceIDRe   = regexp.MustCompile(`(?i)trace[_-]?id[=:]\s*([a-fA-F0-9-]+)`)
	requestIDRe = regexp.MustCompile(`(?i)request[_-]?id[=:]\s*([a-fA-F0-9-]+)`)
)

// traceFields pulls trace/request correlation ids out of free text.
func traceFields(text string, fields map[string]string) map[string]string {
	if m := traceIDRe.FindStringSubmatch(text); m != nil {
		if fields == nil {
			fields = make(map[string]string)
		}
		if _, dup := fields["trace_id"]; !dup {
			fields["trace_id"] = m[1]
		}
	}
	if m := requestIDRe.FindStringSubmatch(text); m != nil {
		if fields == nil {
			fields = make(map[string]string)
		}
		if _, dup := fields["request_id"]; !dup {
			fields["request_id"] = m[1]
		}
	}
	return fields
}

// --- custom patterns ---

func customRecognizer(pat config.LinePattern) func(model.RawLine) (Candidate, bool) {
	names := pat.Compiled.SubexpNames()
	return func(line model.RawLine) (Candidate, bool) {
		m := pat.Compiled.FindStringSubmatch(line.Text)
		if m == nil {
			return Candidate{}, false
		}
		cand := Candidate{Service: pat.Service}
		for i, name := range names {
			if i == 0 || name == "" || m[i] == "" {
				continue
			}
			switch name {
			case "ts", "time":
				cand.Timestamp, cand.Zoned = parseCustomTime(m[i], pat.TimeLayout, line.Arrival)
			case "level":
				cand.Level = m[i]
			case "msg", "message":
				cand.Message = m[i]
			case "service":
				cand.Service = m[i]
			default:
				if cand.Fields == nil {
					cand.Fields = make(map[string]string)
				}
				cand.Fields[name] = m[i]
			}
		}
		if cand.Message == "" {
			cand.Message = line.Text
		}
		cand.Fields = traceFields(line.Text, cand.Fields)
		return cand, true
	}
}

func parseCustomTime(s, layout string, arrival time.Time) (time.Time, bool) {
	if layout != "" {
		if t, err := time.Parse(layout, s); err == nil {
			return t, layoutZoned(layout)
		}
	}
	if t, zoned, _, ok := extractTime(s, arrival); ok {
		return t, zoned
	}
	return time.Time{}, false
}

// layoutZoned reports whether a Go reference layout carries a UTC offset.
func layoutZoned(layout string) bool {
	return strings.Contains(layout, "Z07") ||
		strings.Contains(layout, "-07") ||
		strings.Contains(layout, "MST")
}

// --- JSON lines ---

var (
	jsonTimeKeys    = []string{"timestamp", "time", "@timestamp", "ts", "datetime"}
	jsonLevelKeys   = []string{"level", "severity", "loglevel", "log_level"}
	jsonMessageKeys = []string{"message", "msg", "text", "log", "error"}
	jsonServiceKeys = []string{"service", "app"}
)

func recognizeJSON(line model.RawLine) (Candidate, bool) {
	trimmed := strings.TrimSpace(line.Text)
	if !strings.HasPrefix(trimmed, "{") {
		return Candidate{}, false
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(trimmed), &data); err != nil {
		return Candidate{}, false
	}

	cand := Candidate{}
	consumed := make(map[string]bool)

	for _, key := range jsonTimeKeys {
		v, present := data[key]
		if !present {
			continue
		}
		switch tv := v.(type) {
		case float64:
			// Unix seconds; values this large are milliseconds.
			if tv > 1e12 {
				tv /= 1000
			}
			sec := int64(tv)
			nsec := int64((tv - float64(sec)) * 1e9)
			cand.Timestamp = time.Unix(sec, nsec).UTC()
			cand.Zoned = true
		case string:
			if t, zoned, _, ok := extractTime(tv, line.Arrival); ok {
				cand.Timestamp = t
				cand.Zoned = zoned
			}
		}
		consumed[key] = true
		break
	}
	for _, key := range jsonLevelKeys {
		if v, present := data[key]; present {
			cand.Level = stringify(v)
			consumed[key] = true
			break
		}
	}
	for _, key := range jsonMessageKeys {
		if v, present := data[key]; present {
			cand.Message = stringify(v)
			consumed[key] = true
			break
		}
	}
	for _, key := range jsonServiceKeys {
		if v, present := data[key]; present {
			cand.Service = stringify(v)
			consumed[key] = true
			break
		}
	}
	if cand.Message == "" {
		cand.Message = trimmed
	}

	for k, v := range data {
		if consumed[k] {
			continue
		}
		if cand.Fields == nil {
			cand.Fields = make(map[string]string)
		}
		cand.Fields[k] = stringify(v)
	}
	return cand, true
}

func stringify(v any) string {
	switch tv := v.(type) {
	case string:
		return tv
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(tv)
	case nil:
		return ""
	default:
		b, err := json.Marshal(tv)
		if err != nil {
			return fmt.Sprintf("%v", tv)
		}
		return string(b)
	}
}

// --- logfmt lines ---

var logfmtKeyRe = regexp.MustCompile(`^[A-Za-z0-9_.@/-]+$`)

func recognizeLogfmt(line model.RawLine) (Candidate, bool) {
	pairs, ok := splitLogfmt(line.Text)
	if !ok {
		return Candidate{}, false
	}

	cand := Candidate{}
	for _, key := range []string{"time", "ts", "t"} {
		if v, present := pairs[key]; present {
			if t, zoned, _, ok := extractTime(v, line.Arrival); ok {
				cand.Timestamp = t
				cand.Zoned = zoned
			}
			delete(pairs, key)
			break
		}
	}
	for _, key := range []string{"level", "lvl", "severity"} {
		if v, present := pairs[key]; present {
			cand.Level = v
			delete(pairs, key)
			break
		}
	}
	for _, key := range []string{"msg", "message"} {
		if v, present := pairs[key]; present {
			cand.Message = v
			delete(pairs, key)
			break
		}
	}
	for _, key := range []string{"service", "app", "component"} {
		if v, present := pairs[key]; present {
			cand.Service = v
			delete(pairs, key)
			break
		}
	}
	if cand.Message == "" {
		cand.Message = line.Text
	}
	if len(pairs) > 0 {
		cand.Fields = pairs
	}
	return cand, true
}

// splitLogfmt tokenizes key=value pairs, honoring double quotes. To avoid
// claiming prose that merely contains an equals sign, a line qualifies only
// with two or more pairs including one of the conventional keys.
func splitLogfmt(text string) (map[string]string, bool) {
	pairs := make(map[string]string)
	rest := strings.TrimSpace(text)
	for rest != "" {
		eq := strings.IndexByte(rest, '=')
		if eq <= 0 {
			return nil, false
		}
		key := rest[:eq]
		if !logfmtKeyRe.MatchString(key) {
			return nil, false
		}
		rest = rest[eq+1:]
		var val string
		if strings.HasPrefix(rest, `"`) {
			end := 1
			for end < len(rest) {
				if rest[end] == '\\' {
					end += 2
					continue
				}
				if rest[end] == '"' {
					break
				}
				end++
			}
			if end >= len(rest) {
				return nil, false
			}
			if unq, err := strconv.Unquote(rest[:end+1]); err == nil {
				val = unq
			} else {
				val = rest[1:end]
			}
			rest = strings.TrimLeft(rest[end+1:], " ")
		} else {
			sp := strings.IndexByte(rest, ' ')
			if sp < 0 {
				val, rest = rest, ""
			} else {
				val, rest = rest[:sp], strings.TrimLeft(rest[sp+1:], " ")
			}
		}
		pairs[key] = val
	}

	if len(pairs) < 2 {
		return nil, false
	}
	for _, key := range []string{"msg", "message", "level", "lvl", "time", "ts", "t"} {
		if _, present := pairs[key]; present {
			return pairs, true
		}
	}
	return nil, false
}

// --- Apache/Nginx access logs ---

var accessRe = regexp.MustCompile(`^(\S+) (\S+) (\S+) \[([^\]]+)\] "([^"]*)" (\d{3}) (\S+)(?: "([^"]*)" "([^"]*)")?`)

func recognizeAccess(line model.RawLine) (Candidate, bool) {
	m := accessRe.FindStringSubmatch(line.Text)
	if m == nil {
		return Candidate{}, false
	}
	host, user, tsRaw, request, statusRaw, size := m[1], m[3], m[4], m[5], m[6], m[7]

	status, err := strconv.Atoi(statusRaw)
	if err != nil {
		return Candidate{}, false
	}

	cand := Candidate{
		Fields: map[string]string{
			"remote": host,
			"status": statusRaw,
		},
	}
	if t, zoned, _, ok := extractTime(tsRaw, line.Arrival); ok {
		cand.Timestamp = t
		cand.Zoned = zoned
	}
	switch {
	case status >= 500:
		cand.Level = "error"
	case status >= 400:
		cand.Level = "warn"
	default:
		cand.Level = "info"
	}

	method, path := "", ""
	if reqParts := strings.Fields(request); len(reqParts) >= 2 {
		method, path = reqParts[0], reqParts[1]
		cand.Fields["method"] = method
		cand.Fields["path"] = path
		cand.Message = fmt.Sprintf("%s %s %s", method, path, statusRaw)
	} else {
		cand.Message = fmt.Sprintf("%q %s", request, statusRaw)
	}
	if user != "-" && user != "" {
		cand.Fields["user"] = user
	}
	if size != "-" {
		cand.Fields["bytes"] = size
	}
	if len(m) > 8 && m[8] != "" && m[8] != "-" {
		cand.Fields["referer"] = m[8]
	}
	if len(m) > 9 && m[9] != "" && m[9] != "-" {
		cand.Fields["user_agent"] = m[9]
	}
	return cand, true
}

// --- RFC3164 syslog ---

var syslogLineRe = regexp.MustCompile(`^(?:<(\d{1,3})>)?([A-Z][a-z]{2} {1,2}\d{1,2} \d{2}:\d{2}:\d{2}) (\S+) ([^:\[\s]+)(?:\[(\d+)\])?: ?(.*)$`)

func recognizeSyslog(line model.RawLine) (Candidate, bool) {
	m := syslogLineRe.FindStringSubmatch(line.Text)
	if m == nil {
		return Candidate{}, false
	}
	pri, tsRaw, host, tag, pid, msg := m[1], m[2], m[3], m[4], m[5], m[6]

	cand := Candidate{
		Service: tag,
		Message: msg,
		Fields:  map[string]string{"host": host},
	}
	if t, zoned, _, ok := extractTime(tsRaw, line.Arrival); ok {
		cand.Timestamp = t
		cand.Zoned = zoned
	}
	if pri != "" {
		n, err := strconv.Atoi(pri)
		if err != nil || n > 191 {
			return Candidate{}, false
		}
		cand.Level = strconv.Itoa(n % 8)
		cand.Fields["facility"] = strconv.Itoa(n / 8)
	} else if lv := levelTokenRe.FindString(msg); lv != "" {
		cand.Level = lv
	}
	if pid != "" {
		cand.Fields["pid"] = pid
	}
	cand.Fields = traceFields(line.Text, cand.Fields)
	return cand, true
}

// --- generic leveled text ---

func recognizeText(line model.RawLine) (Candidate, bool) {
	ts, zoned, tsMatch, hasTime := extractTime(line.Text, line.Arrival)
	level := levelTokenRe.FindString(line.Text)
	if !hasTime && level == "" {
		return Candidate{}, false
	}

	msg := line.Text
	if tsMatch != "" {
		msg = strings.Replace(msg, tsMatch, "", 1)
	}
	if level != "" {
		msg = strings.Replace(msg, level, "", 1)
	}
	msg = leadingSepRe.ReplaceAllString(msg, "")
	msg = strings.TrimSpace(msg)
	if msg == "" {
		msg = line.Text
	}

	cand := Candidate{
		Level:   level,
		Message: msg,
	}
	if hasTime {
		cand.Timestamp = ts
		cand.Zoned = zoned
	}
	cand.Fields = traceFields(line.Text, cand.Fields)
	return cand, true
}
