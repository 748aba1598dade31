package model

import "fmt"

// ConfigError reports a missing or malformed configuration input. Var names
// the environment variable at fault.
type ConfigError struct {
	Var    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Var, e.Reason)
}

// StorageError reports a credential store that could not be read or written.
type StorageError struct {
	Path string
	Op   string // store operation, e.g. "read" or "write"
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// RegistrationError reports a failed acme-dns registration call: an
// unexpected HTTP status, or a response body that does not decode into a
// valid credential record. Status is zero when the call never completed.
type RegistrationError struct {
	Status int
	Body   string
	Err    error
}

func (e *RegistrationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("registration failed: HTTP %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("registration failed: %v", e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// UpdateError reports a failed challenge submission, including a token that
// failed validation before any request was made.
type UpdateError struct {
	SubDomain string
	Status    int
	Body      string
	Err       error
}

func (e *UpdateError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("challenge update for subdomain %s failed: HTTP %d: %s", e.SubDomain, e.Status, e.Body)
	}
	return fmt.Sprintf("challenge update for subdomain %s failed: %v", e.SubDomain, e.Err)
}

func (e *UpdateError) Unwrap() error { return e.Err }
