// Package classes defines the label classes and the key-driven picker used
// to assign them.
//
// Classes are read from a YAML file shaped like:
//
//	classes:
//	  - id: 1
//	    name: Car
//	    color: "#ff0000"
//	    shortcut: "1"
//	hierarchy:
//	  - key: 1
//	    label: Vehicles
//	    children:
//	      - key: 1
//	        label: Car
//	        id: 1
//
// With five or fewer classes the number keys select a class directly. Larger
// class sets are reached through a tree of at most five children per level
// and three levels, walked one key at a time with a Navigator.
package classes
