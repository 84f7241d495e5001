// Package generator implements the three request generators the Device
// Handler hosts: DeviceSearcher, SessionInitializer, and HeartbeatGenerator.
// All three share the same shape - start/stop/process, a completion flag,
// an error flag - and talk only to a Dispatcher and a Protocol, never to
// the datastore or CommHandler directly.
package generator
