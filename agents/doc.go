// Package agents contains the built-in agents shipped with the substrate.
//
// ReverseAgent and UppercaseAgent are deliberately small: they exist as
// reference implementations of the core.Agent contract (parameter validation,
// trajectory conventions, structured failure results) and as fixtures for
// tests and examples.
package agents
