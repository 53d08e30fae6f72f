// Package pipeline provides the deploy pipeline that turns a CI build
// notification into a script execution.
//
// # Stages
//
// A notification moves through the stages below in order. The first failing
// stage ends the run with a single *domain.DeployError; no later stage runs.
//
//	pending -> validating -> resolving -> checking_existence
//	        -> checking_executable -> executing -> completed | failed
//
//   - validating: the body must be a JSON object with non-empty ref,
//     build_status and repository.name. Unknown fields are ignored.
//   - resolving: repository.name must be a configured project, ref must equal
//     the project branch and build_status must be "success".
//   - checking_existence / checking_executable: the configured script must
//     exist, then must be executable by this process.
//   - executing: the script is run as `<shell> <script>` and must exit 0.
//
// Only the executing stage has side effects, so nothing is rolled back on
// failure.
//
// # Concurrency
//
// Executions of the same project are serialized with a per-project lock.
// Under the queue policy a second notification waits for the lock; under the
// reject policy it fails with deploy_in_progress. Projects never block each
// other.
//
// Script execution is detached from the caller's cancellation and bounded by
// the configured timeout instead.
package pipeline
