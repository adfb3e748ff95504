// Package repository contains data access logic separated from HTTP handlers.
// This file defines sentinel errors reused across repositories so handlers
// can translate failure kinds into HTTP responses without string matching.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own. Handlers translate this into HTTP 403.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an operation cannot proceed because of
// conflicting state, such as accepting an offer on a listing that is no
// longer open. Handlers translate this into HTTP 409.
var ErrConflict = errors.New("conflict")
