package scene

import "errors"

// ErrBuild indicates an object spec references a parameter the
// validated set does not contain. Validation is total, so this is a
// template authoring bug, not a user error.
var ErrBuild = errors.New("scene: build failed")
