// Package build encodes the values tracebuild invocations pass to each other
// on the command line.
//
// # Overview
//
// A CI system runs tracebuild once per build and once per step. The
// invocations never talk to each other; they agree on trace linkage only
// through the identifiers printed by `tracebuild id` and the timestamps
// printed by `tracebuild now`.
//
//   - ID is a 48 character lowercase hex token: 32 characters of trace id
//     followed by 16 characters of span id.
//   - StepID uses the same layout but only its span half is meaningful.
//   - Timestamp is the number of whole seconds since the Unix epoch.
//   - Status is "success" or "failure".
//
// # Parent context
//
// ParentContext turns a build id and an optional step id into a remote,
// sampled span context. Without a step the build's own span becomes the
// parent, so steps reported against a build nest under the build span.
//
//	ctx = build.ParentContext(ctx, buildID, nil)
//	ctx, span := tracer.Start(ctx, "step")
package build
