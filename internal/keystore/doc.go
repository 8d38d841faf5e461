// Package keystore reads the upstream provider API key from persistent storage.
//
// Backends:
//   - File: a single-line key file that must be readable by the owner only (0600)
//   - Env: an environment variable
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager,
//     Linux Secret Service)
//
// Keys are read lazily, on the first upstream request, so the proxy can start
// before the credential is provisioned.
package keystore
