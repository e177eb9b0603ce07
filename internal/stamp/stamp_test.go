package stamp

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/foxytanuki/buildstamp/internal/header"
	"github.com/foxytanuki/buildstamp/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fixtureHeader = `#pragma once

#include <string>
#include <glm/glm.hpp>

#define RENDERTOY_FUNC_ARGUMENT_OUT &

template <typename T>
T RENDERTOY_DISCARD_VARIABLE;

#define BUILD_NUMBER 41
#define BUILD_DATE "2023-01-01+00:00:00"

#define CLASS_METADATA_MARK(classname) \
    public: \
        virtual const char* GetClassName() const { return #classname; } \
    private: \
`

var (
	fixedNow  = time.Date(2024, 6, 30, 13, 5, 9, 0, time.Local)
	dateShape = regexp.MustCompile(`(?m)^#define BUILD_DATE "\d{4}-\d{2}-\d{2}\+\d{2}:\d{2}:\d{2}"$`)
)

type fixture struct {
	dir     string
	counter string
	header  string
	logs    *bytes.Buffer
}

func newFixture(t *testing.T, counterContent, headerContent *string) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:     dir,
		counter: filepath.Join(dir, "build_number"),
		header:  filepath.Join(dir, "rendertoy_internal.h"),
		logs:    &bytes.Buffer{},
	}
	if counterContent != nil {
		require.NoError(t, os.WriteFile(f.counter, []byte(*counterContent), 0o644))
	}
	if headerContent != nil {
		require.NoError(t, os.WriteFile(f.header, []byte(*headerContent), 0o644))
	}
	return f
}

func (f *fixture) stamper(t *testing.T, mutate func(*Options)) *Stamper {
	t.Helper()
	opts := Options{
		CounterPath: f.counter,
		HeaderPath:  f.header,
		Now:         func() time.Time { return fixedNow },
	}
	if mutate != nil {
		mutate(&opts)
	}
	s, err := New(opts, logger.New(&logger.Config{Level: "debug", Console: true, Output: f.logs}))
	require.NoError(t, err)
	return s
}

func (f *fixture) read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func ptr(s string) *string { return &s }

func TestUpdateBuildNumberScenario(t *testing.T) {
	f := newFixture(t, ptr("41"), ptr(fixtureHeader))

	res, err := f.stamper(t, nil).UpdateBuildNumber(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 41, res.Previous)
	assert.Equal(t, 42, res.BuildNumber)
	assert.Equal(t, "2024-06-30+13:05:09", res.BuildDate)
	assert.False(t, res.DryRun)

	assert.Equal(t, "42", f.read(t, f.counter))

	want := strings.Replace(fixtureHeader, "#define BUILD_NUMBER 41", "#define BUILD_NUMBER 42", 1)
	want = strings.Replace(want, `"2023-01-01+00:00:00"`, `"2024-06-30+13:05:09"`, 1)
	assert.Equal(t, want, f.read(t, f.header))
}

func TestUpdateBuildNumberIncrementsFromAnyValue(t *testing.T) {
	for _, start := range []string{"0", "9", "99", "568\n", "123456789"} {
		t.Run(strings.TrimSpace(start), func(t *testing.T) {
			f := newFixture(t, ptr(start), ptr(fixtureHeader))

			res, err := f.stamper(t, nil).UpdateBuildNumber(context.Background())
			require.NoError(t, err)

			assert.Equal(t, res.Previous+1, res.BuildNumber)
			got := f.read(t, f.header)
			assert.Contains(t, got, "\n#define BUILD_NUMBER "+f.read(t, f.counter)+"\n")
			assert.Regexp(t, dateShape, got)
		})
	}
}

func TestUpdateBuildNumberTwice(t *testing.T) {
	f := newFixture(t, ptr("41"), ptr(fixtureHeader))
	s := f.stamper(t, func(o *Options) { o.Now = time.Now })

	_, err := s.UpdateBuildNumber(context.Background())
	require.NoError(t, err)
	res, err := s.UpdateBuildNumber(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 43, res.BuildNumber)
	assert.Equal(t, "43", f.read(t, f.counter))
	assert.Contains(t, f.read(t, f.header), "#define BUILD_NUMBER 43\n")
	assert.Regexp(t, dateShape, f.read(t, f.header))
}

func TestUpdateBuildNumberCounterFailures(t *testing.T) {
	tests := []struct {
		name    string
		counter *string
		kind    error
		code    string
	}{
		{name: "missing counter", counter: nil, kind: ErrCounterRead, code: CodeCounterRead},
		{name: "non-integer counter", counter: ptr("abc"), kind: ErrCounterParse, code: CodeCounterParse},
		{name: "negative counter", counter: ptr("-4"), kind: ErrCounterParse, code: CodeCounterParse},
		{name: "empty counter", counter: ptr(""), kind: ErrCounterParse, code: CodeCounterParse},
	}

	for _, mode := range []string{"sequential", "atomic"} {
		for _, tt := range tests {
			t.Run(mode+"/"+tt.name, func(t *testing.T) {
				f := newFixture(t, tt.counter, ptr(fixtureHeader))
				s := f.stamper(t, func(o *Options) { o.Atomic = mode == "atomic" })

				res, err := s.UpdateBuildNumber(context.Background())
				require.Error(t, err)
				assert.Nil(t, res)
				assert.ErrorIs(t, err, tt.kind)
				assert.Equal(t, tt.code, GetErrorCode(err))
				assert.True(t, IsCounterError(err))
				assert.False(t, IsHeaderError(err))

				var stampErr *Error
				require.ErrorAs(t, err, &stampErr)
				assert.Equal(t, f.counter, stampErr.Path)

				assert.Equal(t, fixtureHeader, f.read(t, f.header), "header must be untouched")
				if tt.counter != nil {
					assert.Equal(t, *tt.counter, f.read(t, f.counter), "counter must be untouched")
				}
			})
		}
	}
}

func TestUpdateBuildNumberHeaderMissingIsNotAtomic(t *testing.T) {
	f := newFixture(t, ptr("41"), nil)

	res, err := f.stamper(t, nil).UpdateBuildNumber(context.Background())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrHeaderRead)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.True(t, IsHeaderError(err))

	assert.Equal(t, "42", f.read(t, f.counter), "counter stays incremented")
	assert.NoFileExists(t, f.header)
}

func TestUpdateBuildNumberHeaderMissingAtomic(t *testing.T) {
	f := newFixture(t, ptr("41"), nil)

	_, err := f.stamper(t, func(o *Options) { o.Atomic = true }).UpdateBuildNumber(context.Background())
	require.ErrorIs(t, err, ErrHeaderRead)

	assert.Equal(t, "41", f.read(t, f.counter), "atomic mode leaves the counter alone")
	assertNoTempFiles(t, f.dir)
}

func TestUpdateBuildNumberMarkerMissing(t *testing.T) {
	noDate := "#define BUILD_NUMBER 41\n"

	for _, atomic := range []bool{false, true} {
		f := newFixture(t, ptr("41"), ptr(noDate))

		_, err := f.stamper(t, func(o *Options) { o.Atomic = atomic }).UpdateBuildNumber(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMarkerMissing)
		assert.ErrorIs(t, err, header.ErrMarkerMissing)
		assert.Equal(t, CodeMarkerMissing, GetErrorCode(err))
		assert.Contains(t, err.Error(), "BUILD_DATE")

		assert.Equal(t, noDate, f.read(t, f.header))
		if atomic {
			assert.Equal(t, "41", f.read(t, f.counter))
		} else {
			assert.Equal(t, "42", f.read(t, f.counter))
		}
	}
}

func TestUpdateBuildNumberHeaderUnwritable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}

	f := newFixture(t, ptr("41"), ptr(fixtureHeader))
	require.NoError(t, os.Chmod(f.header, 0o444))

	_, err := f.stamper(t, nil).UpdateBuildNumber(context.Background())
	require.ErrorIs(t, err, ErrHeaderWrite)
	assert.Equal(t, CodeHeaderWrite, GetErrorCode(err))
	assert.Equal(t, "42", f.read(t, f.counter))
	assert.Equal(t, fixtureHeader, f.read(t, f.header))
}

func TestUpdateBuildNumberCounterUnwritable(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced for root")
	}

	f := newFixture(t, ptr("41"), ptr(fixtureHeader))
	require.NoError(t, os.Chmod(f.counter, 0o444))

	_, err := f.stamper(t, nil).UpdateBuildNumber(context.Background())
	require.ErrorIs(t, err, ErrCounterWrite)
	assert.Equal(t, fixtureHeader, f.read(t, f.header))
}

func TestUpdateBuildNumberAtomic(t *testing.T) {
	f := newFixture(t, ptr("41"), ptr(fixtureHeader))
	require.NoError(t, os.Chmod(f.header, 0o640))

	res, err := f.stamper(t, func(o *Options) { o.Atomic = true }).UpdateBuildNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, res.BuildNumber)

	assert.Equal(t, "42", f.read(t, f.counter))
	assert.Contains(t, f.read(t, f.header), "#define BUILD_NUMBER 42\n")
	assert.Contains(t, f.read(t, f.header), `#define BUILD_DATE "2024-06-30+13:05:09"`)

	info, err := os.Stat(f.header)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm(), "header keeps its mode")
	assertNoTempFiles(t, f.dir)
}

func TestUpdateBuildNumberDryRun(t *testing.T) {
	f := newFixture(t, ptr("41"), ptr(fixtureHeader))

	res, err := f.stamper(t, func(o *Options) { o.DryRun = true }).UpdateBuildNumber(context.Background())
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, 42, res.BuildNumber)

	assert.Equal(t, "41", f.read(t, f.counter))
	assert.Equal(t, fixtureHeader, f.read(t, f.header))
	assert.Contains(t, f.logs.String(), "Dry run")
}

func TestUpdateBuildNumberCanceled(t *testing.T) {
	f := newFixture(t, ptr("41"), ptr(fixtureHeader))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.stamper(t, nil).UpdateBuildNumber(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, CodeCanceled, GetErrorCode(err))
	assert.Equal(t, "41", f.read(t, f.counter))
}

func TestUpdateBuildNumberWarnsOnDuplicateMarkers(t *testing.T) {
	dup := fixtureHeader + "#define BUILD_NUMBER 7\n"
	f := newFixture(t, ptr("41"), ptr(dup))

	_, err := f.stamper(t, nil).UpdateBuildNumber(context.Background())
	require.NoError(t, err)

	assert.Contains(t, f.logs.String(), "Multiple marker lines found")
	assert.Contains(t, f.read(t, f.header), "#define BUILD_NUMBER 7\n")
}

func TestUpdateBuildNumberCustomMarkers(t *testing.T) {
	src := "#define APP_BUILD 1\n#define APP_DATE \"\"\n#define BUILD_NUMBER 5\n"
	f := newFixture(t, ptr("1"), ptr(src))

	_, err := f.stamper(t, func(o *Options) {
		o.Markers = header.Markers{Number: "APP_BUILD", Date: "APP_DATE"}
	}).UpdateBuildNumber(context.Background())
	require.NoError(t, err)

	assert.Equal(t,
		"#define APP_BUILD 2\n#define APP_DATE \"2024-06-30+13:05:09\"\n#define BUILD_NUMBER 5\n",
		f.read(t, f.header))
}

func TestNewDefaults(t *testing.T) {
	s, err := New(Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "build_number", s.CounterPath())
	assert.Equal(t, "rendertoy_internal.h", s.HeaderPath())

	_, err = New(Options{Markers: header.Markers{Number: "BAD NAME"}}, nil)
	assert.ErrorIs(t, err, header.ErrInvalidMacro)
}

func TestInspect(t *testing.T) {
	f := newFixture(t, ptr("41\n"), ptr(fixtureHeader))

	cur, err := f.stamper(t, nil).Inspect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 41, cur.Counter)
	assert.Equal(t, header.Values{Number: 41, Date: "2023-01-01+00:00:00"}, cur.Header)

	f = newFixture(t, ptr("abc"), ptr(fixtureHeader))
	_, err = f.stamper(t, nil).Inspect(context.Background())
	assert.ErrorIs(t, err, ErrCounterParse)

	f = newFixture(t, nil, ptr(fixtureHeader))
	_, err = f.stamper(t, nil).Inspect(context.Background())
	assert.ErrorIs(t, err, ErrCounterRead)
}

func TestErrorFormatting(t *testing.T) {
	err := newError("read counter", "build_number", ErrCounterRead, errors.New("open build_number: no such file or directory"))
	assert.Equal(t,
		"read counter build_number: counter store unreadable: open build_number: no such file or directory",
		err.Error())

	bare := newError("patch header", "h", ErrMarkerMissing, nil)
	assert.Equal(t, "patch header h: header marker missing", bare.Error())
	assert.ErrorIs(t, bare, ErrMarkerMissing)
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, CodeInternalError, GetErrorCode(errors.New("other")))
	assert.Equal(t, CodeCanceled, GetErrorCode(context.DeadlineExceeded))
	assert.Equal(t, CodeHeaderRead, GetErrorCode(newError("read header", "h", ErrHeaderRead, os.ErrNotExist)))
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp.", "leftover temp file")
	}
}
