// Package pipeline runs landmark frames through the posture layers.
//
// This package is the composition root: it imports the layer packages
// (l1landmarks through l7alerts) and config, but none of those packages
// import pipeline/. The Engine holds every piece of cross-frame state and
// is driven from a single goroutine; the Runner provides that goroutine
// and hands results to sinks (notifier, history store, charts).
package pipeline
