// SPDX-License-Identifier: MIT
package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLoaded is returned by Run when no file has been loaded.
	ErrNotLoaded = errors.New("engine: no file loaded")
	// ErrBusy is returned by LoadFile and Run while a session is running.
	ErrBusy = errors.New("engine: visualization in progress")
)

// LoadError reports a file the audio source could not decode. The engine
// stays Idle; the caller may offer another path.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
