// Package countdown implements the menu-bar countdown engine.
//
// The engine owns one configured duration plus completion message, runs a
// one-second-resolution countdown, and signals completion exactly once. The
// "finished" flag survives independently of the running state so the UI can
// flash for attention until the user acknowledges it.
package countdown
