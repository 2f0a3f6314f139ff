package catalog

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
)

var ErrNotFound = fmt.Errorf("course not found")

// ValidationError marks a scraped record that cannot be stored, most
// often because no natural key could be established. The pipeline
// skips and logs these; they never fail a page.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid course record: %s: %s", e.Field, e.Reason)
}

type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Connectivity reports whether the failure looks like a lost database
// connection rather than a bad statement or a constraint violation.
// Connectivity failures halt the whole run; anything else fails only
// the page that hit it.
func (e *StorageError) Connectivity() bool {
	if e.Err == nil {
		return false
	}
	if errors.Is(e.Err, driver.ErrBadConn) || errors.Is(e.Err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	if errors.As(e.Err, &netErr) {
		return true
	}
	msg := e.Err.Error()
	return strings.Contains(msg, "database is closed") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset")
}
