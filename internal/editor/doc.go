// Package editor is the annotation editing engine. It owns the working
// annotation collection for the displayed image, its undo history, the
// clipboard, in-progress gestures and the open dataset session.
//
// Front-ends drive it with Commands. Apply is the single dispatch point: it
// runs the handler for the command's Op and, for operations that change the
// collection, pushes the collection as it was before the change onto the
// undo history. Input that does not meet a precondition (a box smaller than
// 5x5, a polygon with fewer than three vertices, a resize on a rejected
// shape) is dropped without an error.
//
// Navigation stores the live collection and view into the session cache
// before leaving an image, and history never carries across images.
package editor
