package masker

import (
	"sort"
	"strings"
)

type Masker interface {
	Mask(string) string
}

var _ Masker = (*Replacer)(nil)

// Replacer replaces every secret with asterisks of the same length.
type Replacer struct {
	replacer *strings.Replacer
}

func New(secrets ...string) *Replacer {
	masker := &Replacer{}

	old := []string{}
	for _, secret := range secrets {
		for _, line := range strings.Split(secret, "\n") {
			value := strings.TrimSpace(line)
			if value != "" {
				old = append(old, value)
			}
		}
	}

	// longer secrets go first so that a secret containing another one is
	// masked as a whole
	sort.SliceStable(old, func(i, j int) bool {
		return len(old[i]) > len(old[j])
	})

	old = unique(old)

	oldnew := make([]string, len(old)*2)
	for i, item := range old {
		oldnew[i*2] = item
		oldnew[i*2+1] = strings.Repeat("*", len(item))
	}

	if len(oldnew) > 0 {
		masker.replacer = strings.NewReplacer(oldnew...)
	}

	return masker
}

func unique(slice []string) []string {
	seen := map[string]struct{}{}
	result := slice[:0]
	for _, item := range slice {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		result = append(result, item)
	}
	return result
}

func (masker *Replacer) Mask(buf string) string {
	if masker.replacer == nil {
		return buf
	}

	return masker.replacer.Replace(buf)
}
