// Package runstore provides core.RunStore implementations: a volatile
// in-process store with bounded retention of terminal runs, and a Postgres
// store for deployments that need run bookkeeping to survive restarts.
package runstore
