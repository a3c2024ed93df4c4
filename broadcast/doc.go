// Package broadcast implements a process-local SSE broadcaster for Datastar.
//
// Events published to a named channel fan out to every open stream on that channel.
// A single home-loop goroutine owns all subscriber queues; producers on other goroutines
// post enqueue work onto it, so queue mutation never races. Per-connection stream drivers
// drain their queue into the transport, injecting heartbeat frames when idle.
package broadcast
