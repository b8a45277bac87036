// Package llm defines the provider contract the planner consumes: a single
// blocking Complete call that turns a prompt (plus optional system message)
// into text. Concrete backends live in subpackages (ollama, openaicompat,
// anthropic) so applications only link the SDKs they use.
package llm
