// Package recorder implements the recording session controller.
//
// A Controller owns every piece of mutable session state behind one mutex:
// the active session, the cached sensor presence and the sticky log error
// flags. The capture loop and the presence detector run on their own
// goroutines and only touch that state through short critical sections;
// process invocations, presence probes and joins on the capture goroutine
// happen without the lock so Status and List stay responsive.
//
// Session lifecycle:
//
//	idle -> starting -> recording -> stopping -> idle
//
// A session ends either through Stop or because the capture loop exceeded its
// failure threshold. Both paths run finalize exactly once, which appends the
// session to the drive's recordings log and the local journal before the
// controller returns to idle.
package recorder
