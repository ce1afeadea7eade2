package sqlxrepos

import (
	"database/sql/driver"

	"github.com/pkg/errors"

	"github.com/jkimani/karo/core"
)

// dbErr wraps a repository error with context. A dead connection is flagged
// as a shutdown error so the API server stops serving instead of failing
// every subsequent request.
func dbErr(err error, msg string) error {
	if errors.Cause(err) == driver.ErrBadConn {
		return core.NewShutdownError(msg + ": database connection lost")
	}
	return errors.Wrap(err, msg)
}
