// Package events provides the in-process publish/subscribe primitive used by the
// plugin manager.
//
// # Overview
//
// Dispatch is synchronous: Emit calls every listener for the event name in the
// order they subscribed, on the caller's goroutine. There is no priority and no
// backpressure.
//
// # Usage Example
//
//	emitter := events.NewEmitter()
//	sub := emitter.On(events.StateChanged, func(ev events.Event) {
//		fmt.Println(ev.State)
//	})
//	defer emitter.Off(sub)
//
// # Related Packages
//
//   - pkg/plugins: Emits plugin lifecycle and state events
//   - pkg/observability: Turns events into Prometheus metrics
//   - pkg/storage: Persists state:changed snapshots
package events
