// Package creds materializes the pre-shared JWT + NKEY seed pair into the
// .creds format nats.go's UserCredentials option expects.
//
// Grounded in _examples/original_source/relayx_py/realtime.py's __getCreds:
// the template is reproduced verbatim (including the double-dashed closing
// fences, which is how the upstream relay-x service's tooling recognizes the
// file, not a typo).
package creds

import (
	"fmt"
	"os"
)

const template = `
-----BEGIN NATS USER JWT-----
%s
------END NATS USER JWT------

************************* IMPORTANT *************************
NKEY Seed printed below can be used to sign and prove identity.
NKEYs are sensitive and should be treated as secrets.

-----BEGIN USER NKEY SEED-----
%s
------END USER NKEY SEED------

*************************************************************
`

// ErrEmptyField is returned when the api key or secret is blank.
type ErrEmptyField struct{ Field string }

func (e ErrEmptyField) Error() string {
	return fmt.Sprintf("%s value must not be an empty string", e.Field)
}

// Materialize renders the creds file contents for the given api key and
// secret. The secret is never logged by any caller of this function.
func Materialize(apiKey, secret string) (string, error) {
	if apiKey == "" {
		return "", ErrEmptyField{Field: "api_key"}
	}
	if secret == "" {
		return "", ErrEmptyField{Field: "secret"}
	}
	return fmt.Sprintf(template, apiKey, secret), nil
}

// WriteFile materializes the creds content and writes it to path with
// owner-only permissions, returning path for use with nats.UserCredentials.
func WriteFile(path, apiKey, secret string) (string, error) {
	content, err := Materialize(apiKey, secret)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("writing creds file: %w", err)
	}
	return path, nil
}
