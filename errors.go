package boson

import "errors"

// ErrCreation is returned when a graph or device object could not be
// created, typically because the underlying pool or device allocation
// failed. A graph that fails to complete is not partially usable.
var ErrCreation = errors.New("creation failed")

var insufficientPoolSpaceError = errors.New("insufficient storage space in resource pool")
