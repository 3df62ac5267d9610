// Package main is the entry point for the parapet CLI. Parapet aggregates
// security signals from the account's native security services into a
// scored posture assessment with ranked recommendations, and exposes the
// same operations as a structured tool surface for conversational callers.
package main

func main() {
	Execute()
}
