// Package header rewrites the build marker lines of a generated C header.
//
// The header is treated as opaque text. Only two marker spans are located
// and replaced:
//
//	#define BUILD_NUMBER <digits>
//	#define BUILD_DATE "<text>"
//
// Every other byte, line endings included, is left as it was.
package header

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	// DefaultPath is the header location relative to the working directory.
	DefaultPath = "rendertoy_internal.h"

	DefaultNumberMacro = "BUILD_NUMBER"
	DefaultDateMacro   = "BUILD_DATE"

	// DateLayout formats build dates as YYYY-MM-DD+HH:MM:SS.
	DateLayout = "2006-01-02+15:04:05"
)

var (
	ErrMarkerMissing = errors.New("marker line not found")
	ErrInvalidMacro  = errors.New("invalid macro name")
	ErrInvalidDate   = errors.New("build date cannot contain quotes, backslashes or newlines")
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Markers names the two macros that carry build metadata.
type Markers struct {
	Number string
	Date   string
}

// DefaultMarkers returns BUILD_NUMBER / BUILD_DATE.
func DefaultMarkers() Markers {
	return Markers{Number: DefaultNumberMacro, Date: DefaultDateMacro}
}

// Values are the marker values currently present in a header.
type Values struct {
	Number int
	Date   string
}

// Patcher locates and rewrites marker lines.
type Patcher struct {
	markers Markers
	number  *regexp.Regexp
	date    *regexp.Regexp
}

// NewPatcher compiles line-anchored patterns for m.
func NewPatcher(m Markers) (*Patcher, error) {
	if !identPattern.MatchString(m.Number) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMacro, m.Number)
	}
	if !identPattern.MatchString(m.Date) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMacro, m.Date)
	}
	if m.Number == m.Date {
		return nil, fmt.Errorf("%w: number and date macros are both %q", ErrInvalidMacro, m.Number)
	}

	return &Patcher{
		markers: m,
		number:  regexp.MustCompile(`(?m)^(#define ` + regexp.QuoteMeta(m.Number) + ` )([0-9]+)`),
		date:    regexp.MustCompile(`(?m)^(#define ` + regexp.QuoteMeta(m.Date) + ` )"([^"\n]*)"`),
	}, nil
}

// Markers returns the macro names the patcher looks for.
func (p *Patcher) Markers() Markers {
	return p.markers
}

// Patch returns src with the first number marker set to number and the first
// date marker set to the quoted date. src is not modified.
func (p *Patcher) Patch(src []byte, number int, date string) ([]byte, error) {
	if !validDate(date) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}

	out, err := replaceFirst(src, p.number, p.markers.Number, []byte(strconv.Itoa(number)))
	if err != nil {
		return nil, err
	}
	return replaceFirst(out, p.date, p.markers.Date, []byte(`"`+date+`"`))
}

// Inspect reads the current values of the first marker lines.
func (p *Patcher) Inspect(src []byte) (Values, error) {
	var v Values

	m := p.number.FindSubmatch(src)
	if m == nil {
		return v, fmt.Errorf("%w: #define %s", ErrMarkerMissing, p.markers.Number)
	}
	n, err := strconv.Atoi(string(m[2]))
	if err != nil {
		return v, fmt.Errorf("failed to parse %s: %w", p.markers.Number, err)
	}
	v.Number = n

	m = p.date.FindSubmatch(src)
	if m == nil {
		return v, fmt.Errorf("%w: #define %s", ErrMarkerMissing, p.markers.Date)
	}
	v.Date = string(m[2])

	return v, nil
}

// Count reports how many lines match each marker.
func (p *Patcher) Count(src []byte) (number, date int) {
	return len(p.number.FindAllIndex(src, -1)), len(p.date.FindAllIndex(src, -1))
}

// replaceFirst keeps the marker prefix (group 1) of the first match and
// swaps everything after it for value.
func replaceFirst(src []byte, re *regexp.Regexp, macro string, value []byte) ([]byte, error) {
	loc := re.FindSubmatchIndex(src)
	if loc == nil {
		return nil, fmt.Errorf("%w: #define %s", ErrMarkerMissing, macro)
	}
	prefixEnd, matchEnd := loc[3], loc[1]

	out := make([]byte, 0, len(src)-(matchEnd-prefixEnd)+len(value))
	out = append(out, src[:prefixEnd]...)
	out = append(out, value...)
	out = append(out, src[matchEnd:]...)
	return out, nil
}

func validDate(date string) bool {
	return !strings.ContainsAny(date, "\"\\\n")
}
