// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (command.go, event.go, change.go, project.go) hold
// shared types and the cross-cutting interfaces consumed by the dispatcher,
// the event hub and the watcher registry. No implementation code, just
// contracts, so packages can depend on each other through here without
// import cycles.
package domain
