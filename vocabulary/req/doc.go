// Package req provides vocabulary predicates for requirement traceability
// entities.
//
// Requirements and the documents that define or mention them are exported as
// entities. Attribute values become literals, reference-typed attributes
// and reverse relations become links between requirement entities.
//
// Import this package to auto-register predicates:
//
//	import _ "github.com/c360studio/semreq/vocabulary/req"
package req
