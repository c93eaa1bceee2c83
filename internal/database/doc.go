// Package database stores projects in SQLite through modernc.org/sqlite.
//
// ProjectRepo implements domain.ProjectRepository. Timestamps are stored as
// RFC 3339 text in UTC.
package database
