// Package schema turns the backend's heterogeneous node-definition payload
// (/object_info) into a uniform catalog of NodeSchema values and resolves
// the initial widget value of every editable input slot.
//
// Decoding is deliberately forgiving. A malformed field of one definition
// degrades to its zero value; it never rejects the definition or the catalog.
package schema
