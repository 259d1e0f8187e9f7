// Package cli turns command-line arguments into an app.Config. Usage and
// validation errors are reported as ExitError so the entrypoint can pick the
// process exit code.
package cli
