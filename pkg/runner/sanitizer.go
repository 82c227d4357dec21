package runner

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/langrun/pkg/domain"
	"github.com/aretw0/langrun/pkg/tweaks"
)

var (
	// DefaultMaxInputSize is 32KB, room for a long prompt.
	DefaultMaxInputSize = 32 << 10
	// EnvMaxInputSize overrides DefaultMaxInputSize.
	EnvMaxInputSize = "LANGRUN_MAX_INPUT_SIZE"
)

var (
	ErrInputTooLarge = errors.New("input exceeds maximum allowed size")
	ErrInvalidUTF8   = errors.New("input contains invalid UTF-8 sequences")
)

// Sanitizer cleans text that remote callers send into a flow.
type Sanitizer struct {
	// MaxInputSize bounds the input value in bytes. Tweak values are not bounded;
	// the transport limits the request as a whole.
	MaxInputSize int
}

// NewSanitizer reads the input limit from LANGRUN_MAX_INPUT_SIZE.
func NewSanitizer() Sanitizer {
	return Sanitizer{MaxInputSize: maxInputSizeFromEnv()}
}

// Input checks the input value: it enforces the size limit, requires valid
// UTF-8 and strips control characters other than newline, tab and carriage
// return. Oversized input is rejected, not truncated.
func (s Sanitizer) Input(input string) (string, error) {
	limit := s.MaxInputSize
	if limit <= 0 {
		limit = DefaultMaxInputSize
	}
	if len(input) > limit {
		return "", fmt.Errorf("%w: input_value size=%d limit=%d", ErrInputTooLarge, len(input), limit)
	}
	return cleanText("input_value", input)
}

// Tweaks returns a copy of t whose string values, at any depth, are valid
// UTF-8 without control characters. t is not modified.
func (s Sanitizer) Tweaks(t domain.Tweaks) (domain.Tweaks, error) {
	if len(t) == 0 {
		return t, nil
	}
	out := tweaks.Clone(t)
	for key, value := range out {
		cleaned, err := cleanValue("tweaks."+key, value)
		if err != nil {
			return nil, err
		}
		out[key] = cleaned
	}
	return out, nil
}

// SanitizeInput applies NewSanitizer().Input.
func SanitizeInput(input string) (string, error) {
	return NewSanitizer().Input(input)
}

func cleanValue(path string, v any) (any, error) {
	switch val := v.(type) {
	case string:
		return cleanText(path, val)
	case map[string]any:
		for k, inner := range val {
			cleaned, err := cleanValue(path+"."+k, inner)
			if err != nil {
				return nil, err
			}
			val[k] = cleaned
		}
	case []any:
		for i, inner := range val {
			cleaned, err := cleanValue(fmt.Sprintf("%s[%d]", path, i), inner)
			if err != nil {
				return nil, err
			}
			val[i] = cleaned
		}
	}
	return v, nil
}

func cleanText(path, s string) (string, error) {
	if !utf8.ValidString(s) {
		return "", fmt.Errorf("%w: %s", ErrInvalidUTF8, path)
	}
	if strings.IndexFunc(s, isUnsafeControl) < 0 {
		return s, nil
	}
	return strings.Map(func(r rune) rune {
		if isUnsafeControl(r) {
			return -1
		}
		return r
	}, s), nil
}

func isUnsafeControl(r rune) bool {
	return unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r'
}

func maxInputSizeFromEnv() int {
	if val := os.Getenv(EnvMaxInputSize); val != "" {
		if size, err := strconv.Atoi(val); err == nil && size > 0 {
			return size
		}
	}
	return DefaultMaxInputSize
}
