/*
Package console connects a conversation to a terminal.

Sink prints agent messages, rendering markdown with glamour when the output
is a TTY, and Reader pumps sanitized lines from standard input.
*/
package console
