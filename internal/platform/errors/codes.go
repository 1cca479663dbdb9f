// Package errors provides structured error handling for the progression engine.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Ingestion errors
	CodeValidation          Code = "VALIDATION"
	CodeUnknownActivityType Code = "UNKNOWN_ACTIVITY_TYPE"

	// Allocation errors
	CodeInsufficientPoints Code = "INSUFFICIENT_POINTS"
	CodeNodeUnreachable    Code = "NODE_UNREACHABLE"
	CodePrerequisiteNotMet Code = "PREREQUISITE_NOT_MET"
	CodeAlreadyAllocated   Code = "ALREADY_ALLOCATED"

	// Respec errors
	CodeNoRespecTokens Code = "NO_RESPEC_TOKENS"

	// Skill errors
	CodeOnCooldown       Code = "ON_COOLDOWN"
	CodeSkillNotUnlocked Code = "SKILL_NOT_UNLOCKED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// HTTPStatus maps domain codes to HTTP status codes for the JSON API.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, bad input
	case CodeValidation,
		CodeUnknownActivityType:
		return http.StatusBadRequest

	// Conflict - state doesn't allow the operation
	case CodeInsufficientPoints,
		CodeNodeUnreachable,
		CodePrerequisiteNotMet,
		CodeAlreadyAllocated,
		CodeNoRespecTokens,
		CodeOnCooldown,
		CodeSkillNotUnlocked:
		return http.StatusConflict

	// NotFound - resource doesn't exist
	case CodeNotFound:
		return http.StatusNotFound

	default:
		return http.StatusInternalServerError
	}
}
