// Package deploy merges the bundled library tree into an extracted package.
//
// The merge never removes files from the destination: entries that exist
// only in the target are left untouched, and conflicts are resolved by an
// explicit Policy. The installer always uses Overwrite.
package deploy
