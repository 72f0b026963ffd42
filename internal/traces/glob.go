package traces

import (
	"github.com/gobwas/glob"
	"github.com/reconquest/karma-go"
)

// CompileGlob compiles a shell-style job name pattern. No separators are
// given, so wildcards also match '/', job names like "build: [linux/amd64]"
// are common.
func CompileGlob(pattern string) (glob.Glob, error) {
	compiled, err := glob.Compile(pattern)
	if err != nil {
		return nil, karma.Format(err, "invalid glob: %q", pattern)
	}

	return compiled, nil
}

type matcher []glob.Glob

func newMatcher(patterns []string) (matcher, error) {
	if len(patterns) == 0 {
		patterns = []string{"*"}
	}

	result := make(matcher, 0, len(patterns))
	for _, pattern := range patterns {
		compiled, err := CompileGlob(pattern)
		if err != nil {
			return nil, err
		}

		result = append(result, compiled)
	}

	return result, nil
}

func (matcher matcher) Match(name string) bool {
	for _, compiled := range matcher {
		if compiled.Match(name) {
			return true
		}
	}

	return false
}
