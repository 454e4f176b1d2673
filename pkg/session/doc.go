/*
Package session hosts many conversations in one process.

The Manager starts an Assistant the first time a conversation ID is seen,
runs it in the background and stops it on request or on shutdown. Snapshots
of conversations that are not running are read from the configured store.
*/
package session
