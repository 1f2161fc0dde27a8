// Package supervisor runs a child command on behalf of tracebuild.
//
// The supervisor races the child's completion against a termination request
// delivered to tracebuild itself (SIGTERM on unix, an interrupt on
// windows, or cancellation of the caller's context). When termination wins
// the request is forwarded to the child and the supervisor keeps waiting for
// the child's own exit status. Platforms that cannot forward a graceful
// request force-kill the child instead and report ErrKilled.
//
// The supervisor never imposes its own deadline after forwarding: a child
// that ignores termination keeps tracebuild waiting.
//
// ExitCode maps every outcome onto the exit code tracebuild itself reports.
package supervisor
