// Package daemon hosts the long-running hopper process: it enforces
// single-instance execution with a lock file, recovers jobs left active by
// a previous crash, runs the download scheduler, and serves the HTTP API.
package daemon
