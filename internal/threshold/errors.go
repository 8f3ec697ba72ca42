package threshold

import "fmt"

// ConfigError reports an invalid parameter combination. It is raised before
// any pixel is touched and is always fatal to the call.
type ConfigError struct {
	Param string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("threshold configuration error in %q: %v", e.Param, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// DomainError reports that a statistic could not be estimated from the
// available samples, e.g. a fully masked image.
type DomainError struct {
	Stage string
	Err   error
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("threshold domain error in %s: %v", e.Stage, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// ShapeError reports a geometry mismatch between an image and its mask or
// backing buffer. Shapes are never silently reconciled.
type ShapeError struct {
	Stage string
	Err   error
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("threshold shape error in %s: %v", e.Stage, e.Err)
}

func (e *ShapeError) Unwrap() error { return e.Err }
