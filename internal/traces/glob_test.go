package traces

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompileGlob(t *testing.T) {
	test := assert.New(t)

	cases := []struct {
		pattern string
		name    string
		match   bool
	}{
		{"*", "anything: [linux/amd64]", true},
		{"test*", "test: [release, linux]", true},
		{"test*", "build", false},
		{"build-?", "build-1", true},
		{"build-?", "build-10", false},
		{`build: \[*`, "build: [linux]", true},
		{"job-[0-9]", "job-7", true},
		{"job-[!0-9]", "job-7", false},
		{"job-[!0-9]", "job-x", true},
		{"{build,test}:*", "test: [release, linux]", true},
		{"{build,test}:*", "deploy: production", false},
		{"dots.", "dotsx", false},
		{"сборка*", "сборка: linux", true},
	}

	for _, testcase := range cases {
		compiled, err := CompileGlob(testcase.pattern)
		if !test.NoError(err, testcase.pattern) {
			continue
		}

		test.Equal(
			testcase.match,
			compiled.Match(testcase.name),
			"%q vs %q", testcase.pattern, testcase.name,
		)
	}
}

func TestCompileGlob_ReturnsErrorOnUnclosedClass(t *testing.T) {
	test := assert.New(t)

	_, err := CompileGlob("unclosed[")
	test.Error(err)
}

func TestMatcher_DefaultsToEverything(t *testing.T) {
	test := assert.New(t)

	matcher, err := newMatcher(nil)
	test.NoError(err)
	test.True(matcher.Match("whatever"))
}
