// Package generate runs the load → compose → map pipeline for one request
// and turns the result into files: a workspace tree on disk, or a zip
// archive for download.
//
// A Service holds no per-request state. Pattern documents are read through
// a Loader; CachedLoader keeps parsed models in an LRU keyed by file
// identity so that repeated requests skip the XML parse. Models handed out
// by a loader are shared and must not be mutated.
package generate
