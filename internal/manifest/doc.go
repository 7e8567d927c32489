// Package manifest rewires the native library declaration of an extracted
// AndroidManifest.xml.
//
// The file is treated as opaque bytes: a structured parse and re-encode could
// reorder attributes or reformat unrelated content, while the change needed
// is a single known attribute value. Rewrite replaces every exact occurrence
// of one byte string with another and writes the result back atomically.
package manifest
