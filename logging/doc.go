// Package logging provides a tiny abstraction over slog so the substrate can
// depend on a minimal interface (Logger) while allowing users to plug any
// structured logger. The dispatcher, planner and CLI log through it; the
// default everywhere is the NoOpLogger so library use stays silent.
package logging
