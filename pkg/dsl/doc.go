/*
Package dsl provides a fluent Go API for writing flow documents.

It lets a flow be declared in code instead of drawn on the canvas or written as
JSON, which is useful for seeding stores, generating flows and unit testing.
Steps are ordered as they are added.

Example usage:

	doc, err := dsl.New("welcome").
		Description("First contact").
		Step("hello").Text("Hi! How can we help?").
		Options("Billing", "Sales").
		Retry(2).
		Flow().
		Step("handoff").Template("agent_handoff").
		Flow().
		Build()
*/
package dsl
