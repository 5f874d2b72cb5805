// Package periodic hands out explicit, cancellable handles for repeating
// tasks on a shared cron runner.
//
// Components own their handles: restarting a task means Stop() on the old
// handle before creating the new one. A stopped handle never fires again,
// even if the underlying entry was already queued to run.
package periodic
