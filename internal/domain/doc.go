// Package domain defines core data models and interfaces shared across sealkit.
// It contains plain types (wire/state), contracts (interfaces) and shared error values only.
package domain
