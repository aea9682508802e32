package stratum

import (
	"github.com/jward/stratum/internal/deserialize"
	"github.com/jward/stratum/internal/provider"
	"github.com/jward/stratum/internal/raw"
	"github.com/jward/stratum/internal/store"
)

// Public type aliases for internal types used in the Engine and Session
// API. These are Go type aliases (=), identical to the internal types at
// compile time.

type Store = store.Store
type File = store.File
type Class = raw.Class
type Package = raw.Package
type DeclarationProvider = provider.DeclarationProvider
type ClassDescriptor = deserialize.Class
type PackageScope = deserialize.PackageScope
