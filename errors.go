package collide

import (
	"github.com/pkg/errors"
)

var (
	// ErrNotReady is returned when build results are requested before Ready.
	ErrNotReady = errors.New("collision world is not ready")
	// ErrDisposed is returned by any operation on a disposed world.
	ErrDisposed = errors.New("collision world is disposed")
	// ErrInvalidTransition is returned when a lifecycle call is not legal in
	// the current state.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
	// ErrBuildAbandoned is returned by a build whose result was discarded
	// because the world was disposed or rebuilt while it ran.
	ErrBuildAbandoned = errors.New("build abandoned")
)

// MeshError reports a malformed mesh skipped by the classifier.
type MeshError struct {
	MeshID string
	Reason string
}

func (e *MeshError) Error() string {
	return "mesh " + e.MeshID + ": " + e.Reason
}
