// Package export converts a session's annotations into interchange formats:
// a single COCO JSON file for the whole dataset, or one Pascal VOC XML file
// per image. Rejected annotations are never exported.
package export
