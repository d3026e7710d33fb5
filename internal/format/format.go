// Package format expands job-directory templates using values from a user
// config mapping.
//
// The syntax is brace-based with dotted key paths and an optional format
// spec after a colon:
//
//	"{nested.dict.key}"            ==> config["nested"]["dict"]["key"]
//	"{hp.batch_size:06}"           ==> "000032"
//	"{hp.lr:.1e}"                  ==> "1.0e-02"
//	"{date:%Y-%m-%d}"              ==> "2020-01-01"
//	"{date:%Y-%m-%d_%H-%M-%S_%3f}" ==> "2020-01-01_00-00-03_141"
//
// "date" is built in and ignores any config entry of that name. Literal
// braces are written as "{{" and "}}". An unresolvable key is an error:
// job directory names must never silently contain raw placeholders.
package format

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Sentinel errors returned while expanding templates.
var (
	ErrMissingKey = errors.New("template key not found in config")
	ErrBadSpec    = errors.New("unsupported format spec")
)

// DefaultDateSpec is used for a bare "{date}" placeholder.
const DefaultDateSpec = "%Y-%m-%d_%H-%M-%S_%3f"

var termRe = regexp.MustCompile(`\{[^}]*\}`)

// Escaped braces are tunneled through expansion as noncharacter runes, the
// same trick Python's string.Template-alikes use.
const (
	encodedOpen  = "￾￾"
	encodedClose = "￿￿"
)

// Format expands template using config and the current wall-clock time.
func Format(template string, config map[string]any) (string, error) {
	return FormatAt(template, config, time.Now())
}

// FormatAt is Format with an explicit timestamp for "{date:...}" terms.
func FormatAt(template string, config map[string]any, now time.Time) (string, error) {
	s := strings.ReplaceAll(template, "{{", encodedOpen)
	s = strings.ReplaceAll(s, "}}", encodedClose)

	var b strings.Builder
	last := 0
	for _, span := range termRe.FindAllStringIndex(s, -1) {
		b.WriteString(s[last:span[0]])
		expanded, err := formatTerm(s[span[0]:span[1]], config, now)
		if err != nil {
			return "", err
		}
		b.WriteString(expanded)
		last = span[1]
	}
	b.WriteString(s[last:])

	out := strings.ReplaceAll(b.String(), encodedOpen, "{")
	out = strings.ReplaceAll(out, encodedClose, "}")
	return out, nil
}

// Get resolves a dotted key path inside a nested config mapping.
func Get(config map[string]any, path []string) (any, error) {
	var cur any = config
	for i, key := range path {
		switch m := cur.(type) {
		case map[string]any:
			v, ok := m[key]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrMissingKey, strings.Join(path[:i+1], "."))
			}
			cur = v
		case map[any]any:
			v, ok := m[key]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrMissingKey, strings.Join(path[:i+1], "."))
			}
			cur = v
		default:
			return nil, fmt.Errorf("%w: %q: %q is not a mapping",
				ErrMissingKey, strings.Join(path, "."), strings.Join(path[:i], "."))
		}
	}
	return cur, nil
}

// Set assigns a value at a dotted key path inside a nested config mapping,
// creating intermediate mappings as needed. A path that runs through an
// existing non-mapping value is an error rather than silent data loss.
func Set(config map[string]any, path []string, value any) error {
	if len(path) == 0 {
		return errors.New("empty key path")
	}
	cur := config
	for i, key := range path[:len(path)-1] {
		next, ok := cur[key]
		if !ok {
			m := make(map[string]any)
			cur[key] = m
			cur = m
			continue
		}
		m, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("cannot set %q: %q is not a mapping",
				strings.Join(path, "."), strings.Join(path[:i+1], "."))
		}
		cur = m
	}
	cur[path[len(path)-1]] = value
	return nil
}

func formatTerm(term string, config map[string]any, now time.Time) (string, error) {
	inner := term[1 : len(term)-1]
	key, spec, hasSpec := strings.Cut(inner, ":")

	if key == "date" {
		if !hasSpec {
			spec = DefaultDateSpec
		}
		return strftime(spec, now)
	}

	value, err := Get(config, strings.Split(key, "."))
	if err != nil {
		return "", err
	}
	if !hasSpec {
		return plain(value), nil
	}
	return applySpec(value, spec, term)
}

// plain renders a value the way its YAML source would: integers without
// exponents, floats in shortest form.
func plain(value any) string {
	switch v := value.(type) {
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	default:
		return fmt.Sprintf("%v", v)
	}
}

var (
	widthSpecRe = regexp.MustCompile(`^(0?)([1-9]\d*)$`)
	precSpecRe  = regexp.MustCompile(`^\.(\d+)([ef])$`)
)

func applySpec(value any, spec, term string) (string, error) {
	if m := widthSpecRe.FindStringSubmatch(spec); m != nil {
		zero := m[1] == "0"
		width, _ := strconv.Atoi(m[2])
		return padded(value, width, zero, term)
	}
	if m := precSpecRe.FindStringSubmatch(spec); m != nil {
		prec, _ := strconv.Atoi(m[1])
		f, ok := asFloat(value)
		if !ok {
			return "", fmt.Errorf("%w: %q applied to non-numeric value %v", ErrBadSpec, term, value)
		}
		return strconv.FormatFloat(f, m[2][0], prec, 64), nil
	}
	return "", fmt.Errorf("%w: %q", ErrBadSpec, term)
}

func padded(value any, width int, zero bool, term string) (string, error) {
	s := plain(value)
	if _, isStr := value.(string); isStr {
		if zero {
			return "", fmt.Errorf("%w: %q: zero padding applied to string", ErrBadSpec, term)
		}
		// Strings align left, numbers align right.
		return fmt.Sprintf("%-*s", width, s), nil
	}
	fill := byte(' ')
	if zero {
		fill = '0'
	}
	for len(s) < width {
		s = string(fill) + s
	}
	return s, nil
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint64:
		return float64(v), true
	default:
		return 0, false
	}
}

// strftime formats t with C-style directives, extended with single-digit
// width prefixes that truncate the directive's output: "%3f" keeps the
// first three digits of the microsecond field. "%%" is not supported.
func strftime(spec string, t time.Time) (string, error) {
	tokens := strings.Split(spec, "%")
	var b strings.Builder
	b.WriteString(tokens[0])
	for _, token := range tokens[1:] {
		if token == "" {
			return "", fmt.Errorf("%w: %q: bare or doubled %%", ErrBadSpec, spec)
		}
		if token[0] >= '1' && token[0] <= '9' {
			if len(token) < 2 {
				return "", fmt.Errorf("%w: %q: width with no directive", ErrBadSpec, spec)
			}
			width := int(token[0] - '0')
			s, err := directive(token[1], t)
			if err != nil {
				return "", err
			}
			if len(s) > width {
				s = s[:width]
			}
			b.WriteString(s)
			b.WriteString(token[2:])
			continue
		}
		s, err := directive(token[0], t)
		if err != nil {
			return "", err
		}
		b.WriteString(s)
		b.WriteString(token[1:])
	}
	return b.String(), nil
}

func directive(c byte, t time.Time) (string, error) {
	switch c {
	case 'Y':
		return fmt.Sprintf("%04d", t.Year()), nil
	case 'y':
		return fmt.Sprintf("%02d", t.Year()%100), nil
	case 'm':
		return fmt.Sprintf("%02d", int(t.Month())), nil
	case 'd':
		return fmt.Sprintf("%02d", t.Day()), nil
	case 'H':
		return fmt.Sprintf("%02d", t.Hour()), nil
	case 'I':
		return t.Format("03"), nil
	case 'p':
		return t.Format("PM"), nil
	case 'M':
		return fmt.Sprintf("%02d", t.Minute()), nil
	case 'S':
		return fmt.Sprintf("%02d", t.Second()), nil
	case 'f':
		return fmt.Sprintf("%06d", t.Nanosecond()/1000), nil
	case 'j':
		return fmt.Sprintf("%03d", t.YearDay()), nil
	case 'a':
		return t.Format("Mon"), nil
	case 'A':
		return t.Format("Monday"), nil
	case 'b':
		return t.Format("Jan"), nil
	case 'B':
		return t.Format("January"), nil
	default:
		return "", fmt.Errorf("%w: unknown date directive %%%c", ErrBadSpec, c)
	}
}
