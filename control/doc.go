// Package control
// Author: momentics <momentics@gmail.com>
//
// Runtime settings, hot-reload and metrics for the ping-pong endpoints.
//
// Provides concurrent-safe state handling primitives including:
//   - Settings loaded from YAML with environment overrides
//   - A settings store with reload listeners, driven by SIGHUP
//   - A counter registry shared by the server and client drivers
package control
