// Package validation applies schema rule tokens to a settings document.
package validation

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/mattjoyce/crispbridge/internal/log"
	"github.com/mattjoyce/crispbridge/internal/schema"
)

// Errors maps dotted field paths to their failure messages.
type Errors map[string][]string

// Add records a message for key.
func (e Errors) Add(key, msg string) {
	e[key] = append(e[key], msg)
}

// First returns the first message for key, or "".
func (e Errors) First(key string) string {
	if msgs := e[key]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Keys returns the failing paths in sorted order.
func (e Errors) Keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks doc against rules. labels supplies display names for
// messages; keys without a label fall back to the path. An empty result
// means the document passed.
func Validate(doc schema.Document, rules schema.RuleSet, labels map[string]string) Errors {
	errs := Errors{}
	keys := make([]string, 0, len(rules))
	for k := range rules {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		tokens := rules[key]
		value, _ := schema.Lookup(doc, key)
		attr := labels[key]
		if attr == "" {
			attr = strings.ReplaceAll(key, "_", " ")
		}

		if schema.IsEmpty(value) {
			if hasToken(tokens, schema.RuleRequired) {
				errs.Add(key, fmt.Sprintf("The %s field is required.", attr))
			}
			continue
		}

		numeric := hasToken(tokens, schema.RuleNumeric)
		for _, tok := range tokens {
			if msg := check(tok, value, numeric, attr); msg != "" {
				errs.Add(key, msg)
			}
		}
	}
	return errs
}

func hasToken(tokens []string, want string) bool {
	for _, t := range tokens {
		if t == want {
			return true
		}
	}
	return false
}

// check evaluates one token and returns a message on failure.
func check(token string, value any, numeric bool, attr string) string {
	name, param, _ := strings.Cut(token, ":")
	switch name {
	case schema.RuleRequired, schema.RuleNullable:
		return ""
	case schema.RuleNumeric:
		if _, ok := toNumber(value); !ok {
			return fmt.Sprintf("The %s field must be a number.", attr)
		}
	case schema.RuleBoolean:
		if !isBoolean(value) {
			return fmt.Sprintf("The %s field must be true or false.", attr)
		}
	case "min", "max":
		return checkSize(name, param, value, numeric, attr)
	case "regex":
		s, ok := value.(string)
		re := compilePattern(param)
		if re == nil || !ok || !re.MatchString(s) {
			return fmt.Sprintf("The %s field format is invalid.", attr)
		}
	case "email":
		s, _ := value.(string)
		addr, err := mail.ParseAddress(s)
		if err != nil || addr.Address != s {
			return fmt.Sprintf("The %s field must be a valid email address.", attr)
		}
	case "url":
		s, _ := value.(string)
		u, err := url.ParseRequestURI(s)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Sprintf("The %s field must be a valid URL.", attr)
		}
	case "uuid":
		s, _ := value.(string)
		if _, err := uuid.Parse(s); err != nil {
			return fmt.Sprintf("The %s field must be a valid UUID.", attr)
		}
	case "date":
		s, _ := value.(string)
		if !isDate(s) {
			return fmt.Sprintf("The %s field must be a valid date.", attr)
		}
	case "in":
		text := textOf(value)
		for _, a := range allowedValues(param) {
			if a == text {
				return ""
			}
		}
		return fmt.Sprintf("The selected %s is invalid.", attr)
	}
	return ""
}

func checkSize(name, param string, value any, numeric bool, attr string) string {
	limit, err := strconv.ParseFloat(param, 64)
	if err != nil {
		return ""
	}

	var size float64
	var unit string
	switch v := value.(type) {
	case []any:
		size, unit = float64(len(v)), " items"
	case map[string]any:
		size, unit = float64(len(v)), " items"
	default:
		if n, ok := toNumber(value); numeric && ok {
			size = n
		} else {
			size, unit = float64(utf8.RuneCountInString(textOf(value))), " characters"
		}
	}

	bound := strconv.FormatFloat(limit, 'f', -1, 64)
	if name == "min" && size < limit {
		if unit == "" {
			return fmt.Sprintf("The %s field must be at least %s.", attr, bound)
		}
		return fmt.Sprintf("The %s field must be at least %s%s.", attr, bound, unit)
	}
	if name == "max" && size > limit {
		if unit == "" {
			return fmt.Sprintf("The %s field must not be greater than %s.", attr, bound)
		}
		return fmt.Sprintf("The %s field must not be greater than %s%s.", attr, bound, unit)
	}
	return ""
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func isBoolean(v any) bool {
	switch b := v.(type) {
	case bool:
		return true
	case float64:
		return b == 0 || b == 1
	case int:
		return b == 0 || b == 1
	case string:
		switch b {
		case "0", "1", "true", "false":
			return true
		}
	}
	return false
}

func isDate(s string) bool {
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

// allowedValues splits an "in" parameter. A JSON array parameter keeps
// values that contain commas intact.
func allowedValues(param string) []string {
	if strings.HasPrefix(param, "[") && gjson.Valid(param) {
		list := gjson.Parse(param).Array()
		out := make([]string, 0, len(list))
		for _, v := range list {
			out = append(out, textOf(v.Value()))
		}
		return out
	}
	return strings.Split(param, ",")
}

// textOf renders a scalar the way enum values are written into "in:" rules.
func textOf(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

var patterns sync.Map // pattern string -> *regexp.Regexp (nil when invalid)

var warn = func(msg string, args ...any) {
	log.WithComponent("validation").Warn(msg, args...)
}

// compilePattern accepts bare patterns and PCRE-style /pattern/flags.
// Patterns RE2 cannot compile return nil; every value then fails the rule.
func compilePattern(p string) *regexp.Regexp {
	if cached, ok := patterns.Load(p); ok {
		re, _ := cached.(*regexp.Regexp)
		return re
	}

	expr := p
	if len(p) >= 2 && p[0] == '/' {
		if end := strings.LastIndexByte(p, '/'); end > 0 {
			expr = p[1:end]
			if flags := p[end+1:]; strings.Contains(flags, "i") {
				expr = "(?i)" + expr
			}
		}
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		re = nil
	}
	if _, loaded := patterns.LoadOrStore(p, re); !loaded && err != nil {
		warn("unsupported pattern rejects all values", "pattern", p, "error", err)
	}
	return re
}
