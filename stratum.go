package stratum

import "errors"

// ErrNotFound is returned by Session queries naming a class or package
// that nothing indexed or imported declares.
var ErrNotFound = errors.New("stratum: not found")

// readerVersionKey is the settings key holding the syntax reader version
// the database was built with.
const readerVersionKey = "reader_version"
