// Package orchestrator turns one tracebuild invocation into a span and a
// duration measurement.
//
// # Operations
//
// The orchestrator has three entry points, one per reporting subcommand:
//
//   - RunCommand runs a child command under a span parented to a build
//     (and optionally a step) and returns the exit code tracebuild should
//     exit with.
//   - ReportStep records a step span after the fact, with the step id and
//     start time chosen by the CI system.
//   - ReportBuild records the root build span, whose trace and span ids both
//     come from the build id.
//
// Every operation records a histogram named tracebuild.<kind>.duration in
// seconds with buckets 0, 1, 10, 100 and 1000.
//
// # Telemetry failures
//
// Nothing in this package fails because of telemetry. Instrument creation
// errors are logged and the measurement is skipped; the exit code returned
// by RunCommand depends only on the child.
//
// The caller owns the telemetry pipeline and must shut it down after the
// operation returns and before the process exits.
package orchestrator
