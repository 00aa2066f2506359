// Package core provides the value types and error taxonomy shared by all
// tansu packages.
//
// The package defines Document, Metadata, Identity and the sentinel errors
// the engine surfaces to callers.
//
// # Identity
//
// Identity identifies the author of commits produced by transactions:
//
//	identity := core.Identity{
//	    Name:  "Jane Doe",
//	    Email: "jane@example.com",
//	}
//
// # Documents
//
// A Document is a keyed record whose payload is a flat-or-nested field map.
// Creation and modification timestamps are maintained by the transaction
// engine and travel with the document:
//
//	doc := core.Document{
//	    Key:    core.NewKey(),
//	    Fields: core.Fields{"name": "jane", "age": 30},
//	}
package core
