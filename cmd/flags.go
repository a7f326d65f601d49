package cmd

import (
	"fmt"
	"strings"

	"github.com/conneroisu/wasmreload/internal/fingerprint"
	"github.com/spf13/pflag"
)

// checksumValue is a pflag.Value accepting only the supported fingerprint
// algorithms.
type checksumValue struct {
	alg fingerprint.Algorithm
}

var _ pflag.Value = (*checksumValue)(nil)

func newChecksumValue(def fingerprint.Algorithm) *checksumValue {
	return &checksumValue{alg: def}
}

func (c *checksumValue) String() string {
	return string(c.alg)
}

func (c *checksumValue) Set(s string) error {
	alg := fingerprint.Algorithm(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range fingerprint.Algorithms {
		if alg == known {
			c.alg = alg
			return nil
		}
	}

	return fmt.Errorf("must be one of %s", checksumNames())
}

func (c *checksumValue) Type() string {
	return "checksum"
}

func checksumNames() string {
	names := make([]string, len(fingerprint.Algorithms))
	for i, alg := range fingerprint.Algorithms {
		names[i] = string(alg)
	}

	return strings.Join(names, ", ")
}
