// Package cli provides the interactive restosession command-line client.
//
// It wires configuration, the three credential tiers, the HTTP transport
// and the SessionController, restores any saved session and runs a REPL
// that exercises the session manager.
//
// Commands:
//   - login / register / logout
//   - whoami   show the current profile
//   - refresh  reload the profile, ignoring debounce guards
//   - status   show session and connectivity state
//   - diag     list recent login attempts
//   - clear    clear the last error
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
// A background connectivity monitor keeps the online/offline mode current.
package cli
