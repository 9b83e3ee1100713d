// Package logger is a standardized event logging framework for the shell.
//
// Events are stored as newline delimited JSON objects, one LogEntry per line,
// so a session can be replayed or summarized with a Report after the fact.
package logger
