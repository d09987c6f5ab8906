// Package geometry interprets pointer gestures against annotation shapes.
//
// Everything in this package is a pure function of its inputs: hit tests,
// resize-handle transforms, drag-rectangle normalization, and polygon
// derivations (bounding box, SVG path, shoelace area). No function keeps
// state between calls, so repeated calls during a drag with the same
// arguments always produce the same result.
//
// # Coordinate System
//
// Coordinates are image pixels stored as float64, with (0,0) at the top-left
// corner, X increasing rightward and Y increasing downward. A Rect is stored
// as its top-left corner plus a non-negative width and height.
//
// # Hit Testing
//
// Point annotations are hit when the test point lies strictly within
// HitRadius of the annotation's location. Every other shape is hit-tested
// against its axis-aligned bounding box with inclusive edges. Rotation is
// ignored for hit-testing, so a rotated box is selectable anywhere inside its
// unrotated extent.
package geometry
