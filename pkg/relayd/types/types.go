// Package types defines the wire protocol between the ezstream control plane
// and relayd worker daemons.
//
// This package is part of the public API and can be imported by third-party
// clients to build custom workers.
//
// Core types:
//   - RegisterRequest: A worker announcing itself to the control plane
//   - Heartbeat: Periodic worker liveness and telemetry report
//   - StartCommand: Instructs a worker to begin pushing a stream
//   - StopCommand: Instructs a worker to halt a stream
//   - CommandAck: The worker's synchronous accept/reject response
//   - StreamEvent: Asynchronous lifecycle callbacks from worker to control plane
package types

// ProtocolVersion is the wire protocol version.
const ProtocolVersion = "1.0.0"
