// Package async provides panic-safe execution helpers for plugin callbacks and
// background tasks.
//
// # Key Functions
//
// SafeCall: Run a callback synchronously, turning panics into errors
//
//	err := async.SafeCall(ctx, 5*time.Second, "analytics.onInit", func(ctx context.Context) error {
//		return plugin.OnInit(ctx, manager)
//	})
//
// SafeGo: Execute function in a goroutine with panic recovery and logging
//
//	async.SafeGo(ctx, log, 0, "plugin install retry", func(ctx context.Context) error {
//		return manager.Install(ctx, id)
//	})
//
// # Related Packages
//
//   - pkg/plugins: Uses SafeCall for lifecycle callbacks and hooks, SafeGo for
//     the watcher's install retries
//   - pkg/storage: Uses SafeCall for state saves
package async
