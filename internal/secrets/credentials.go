package secrets

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// maxNumberedEnv bounds the PREFIX1..PREFIXn scan in FromEnv.
const maxNumberedEnv = 32

var lookupEnv = os.LookupEnv

// CredentialSources describes every place an ordered credential list may come from.
type CredentialSources struct {
	// Inline values, in order.
	Values []string
	// Files holding one credential each, in order.
	Files []string
	// EnvPrefix enables numbered environment variables, e.g. GEMINI_API_KEY_
	// reads GEMINI_API_KEY_1, GEMINI_API_KEY_2 and so on. Gaps are skipped.
	EnvPrefix string
}

// LoadCredentials resolves the ordered credential list: inline values first,
// then files, then numbered environment variables. Duplicates keep their first
// position. An empty result is not an error; callers decide how to treat it.
func LoadCredentials(src CredentialSources) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string

	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	for _, v := range src.Values {
		add(v)
	}

	for i, file := range src.Files {
		if strings.TrimSpace(file) == "" {
			continue
		}
		v, err := Load(Source{Name: fmt.Sprintf("credential #%d", i+1), File: file})
		if err != nil {
			return nil, err
		}
		add(v)
	}

	for _, v := range FromEnv(src.EnvPrefix) {
		add(v)
	}

	return out, nil
}

// FromEnv returns the values of PREFIX1..PREFIXn that are set and non-empty.
func FromEnv(prefix string) []string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil
	}

	var out []string
	for i := 1; i <= maxNumberedEnv; i++ {
		v, ok := lookupEnv(prefix + strconv.Itoa(i))
		if !ok {
			continue
		}
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
