// Package board provides type-safe Go definitions for the Mural shared canvas
// model: the tagged-union object schema, the geometry helpers used for frame
// containment and connector attachment, and the adaptive write-throttle policy.
//
// # Overview
//
// A Mural document is a single replicated associative collection keyed by
// object ID. Every entry is one Object value, serialized as JSON and replaced
// whole on every write. There is no field-level merge: two concurrent edits to
// the same object resolve to whichever write the store orders last. That is a
// deliberate trade-off that keeps conflict handling cheap and comprehensible
// at canvas scale (at most MaxObjects objects, human-speed edits).
//
// # Core Concepts
//
// Objects are the fundamental unit of state. The Type field is the closed
// discriminant over all canvas kinds: sticky notes, rectangle and circle
// shapes, free text, grouping frames, and connectors. Common geometry fields
// (position, size, rotation, paint order) live on every object; variant fields
// are populated per kind and omitted from the wire form otherwise.
//
// Frames group other objects by reference: a frame's ChildrenIDs always equals
// the exact set of objects whose ParentID names that frame. Frames never
// rotate, always paint behind everything else, and cannot nest.
//
// Connectors attach to two other objects by target ID plus a snap anchor, and
// carry cached endpoint coordinates that are recomputed whenever either
// attached object moves.
//
// # Wire Contract
//
// The JSON shape produced by this package is the interop contract for any
// alternate implementation: "type" is a required discriminant and unknown or
// missing required fields cause Decode to reject the entry as malformed.
// Malformed entries are skipped by readers, never treated as fatal.
//
// # Usage Example
//
//	obj := board.NewStickyNote(100, 100, "remember the milk", "yellow")
//	if err := obj.Validate(); err != nil {
//		log.Fatal(err)
//	}
//	raw, _ := board.Marshal(obj)
//	// store raw under obj.ID in the shared document
package board
