package model

import (
	"errors"
	"fmt"
)

// ErrStructural marks a malformed balance sheet supplied by a collaborator.
var ErrStructural = errors.New("structural error")

// StructuralError describes where a balance sheet breaks its shape contract.
type StructuralError struct {
	Path   string
	Reason string
}

func (e *StructuralError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("structural error: %s", e.Reason)
	}
	return fmt.Sprintf("structural error [%s]: %s", e.Path, e.Reason)
}

func (e *StructuralError) Unwrap() error {
	return ErrStructural
}
