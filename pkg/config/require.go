package config

import (
	"fmt"
	"strings"
)

// Missing collects required variables that are unset so startup can report
// all of them at once.
type Missing []string

// Require returns the trimmed value of envName and records it when empty.
func (m *Missing) Require(envName string) string {
	v := EnvDefault(envName, "")
	if v == "" {
		*m = append(*m, envName)
	}
	return v
}

func (m Missing) Err() error {
	if len(m) == 0 {
		return nil
	}
	return fmt.Errorf("missing required env %s", strings.Join(m, ", "))
}
