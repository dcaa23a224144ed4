// Package gorm implements pairauth storage on any GORM-supported
// database. Call AutoMigrate once at startup, then hand a Store to the
// handlers.
package gorm
