// Package storage implements roster.Store drivers.
//
// The default "file" driver keeps the flat pipe-delimited layout the bot
// has always used (one member per line); the "sqlite" driver is an
// optional alternative behind the sqlite build tag.
package storage
