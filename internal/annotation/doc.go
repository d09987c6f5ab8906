// Package annotation holds the labeled shapes drawn over one image and the
// rules that govern how they change.
//
// An Annotation is a point, box, rotated box or polygon carrying a class id
// and a lifecycle State. Machine-imported shapes start Pending, user-drawn
// shapes start Manual, and any edit to a Pending shape promotes it to
// Accepted. Deleting a shape marks it Rejected; rejected shapes stay in the
// collection so indices held by an in-progress gesture remain valid and so
// deletion can always be undone by restoring an earlier Snapshot.
//
// A Collection is the live working copy the editor mutates. It owns the id
// counter that keeps ids unique, and it implements every click-driven lookup
// with the same backward scan: the last non-rejected shape under the cursor
// wins.
package annotation
