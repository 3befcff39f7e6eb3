// Package storeerr defines the error taxonomy shared by every component
// that talks to the backing store. Raw go-redis errors are wrapped into
// one of these types at component boundaries; callers above the storage
// layer only ever see this taxonomy.
package storeerr

import (
	"fmt"
	"strings"
)

// TransientError marks a network or timeout failure talking to the store.
// Always safe to retry.
type TransientError struct {
	Op  string
	Key string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: transient store failure for key %q: %v", e.Op, e.Key, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// ValidationError marks malformed, partial, or semantically invalid data
// observed on read. Retried a bounded number of times by the safe reader,
// then surfaced as fatal.
type ValidationError struct {
	Op     string
	Key    string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s: validation failed for key %q: %s", e.Op, e.Key, e.Reason)
	}
	return fmt.Sprintf("%s: validation failed: %s", e.Op, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IntegrityError marks data corruption: an index pointing at a payload
// that does not exist, or a batch write that partially failed. Never
// retried automatically.
type IntegrityError struct {
	Op        string
	Key       string
	Reason    string
	FailedOps []int
	Err       error
}

func (e *IntegrityError) Error() string {
	msg := fmt.Sprintf("%s: integrity violation for key %q: %s", e.Op, e.Key, e.Reason)
	if len(e.FailedOps) > 0 {
		ops := make([]string, len(e.FailedOps))
		for i, idx := range e.FailedOps {
			ops[i] = fmt.Sprintf("%d", idx)
		}
		msg += fmt.Sprintf(" (failed batch ops: %s)", strings.Join(ops, ","))
	}
	return msg
}

func (e *IntegrityError) Unwrap() error { return e.Err }

// ConcurrencyExhaustedError reports that optimistic-update retries ran out
// under sustained contention. The caller may re-drive the whole operation
// later; it must not assume the mutation was applied.
type ConcurrencyExhaustedError struct {
	Op       string
	Key      string
	Attempts int
	Err      error
}

func (e *ConcurrencyExhaustedError) Error() string {
	return fmt.Sprintf("%s: optimistic update for key %q gave up after %d attempts: %v", e.Op, e.Key, e.Attempts, e.Err)
}

func (e *ConcurrencyExhaustedError) Unwrap() error { return e.Err }

// WriteFailedError reports that the store did not acknowledge an atomic
// batch write.
type WriteFailedError struct {
	Key string
	Err error
}

func (e *WriteFailedError) Error() string {
	return fmt.Sprintf("atomic write to key %q was not acknowledged by the store", e.Key)
}

func (e *WriteFailedError) Unwrap() error { return e.Err }

// ConfigurationError reports an invalid policy or parameter supplied at
// component construction time.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}
