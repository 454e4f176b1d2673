/*
Package arbiter implements the single gate between the producers of
conversation work and the conversation loop.

Producers (the user's transport, background apps, permission prompts) call
SubmitUserInput or SubmitSystemWork from any goroutine. The loop consumes
with NextQueueItem at the top of its cycle and NextIntent inside a
sub-dialogue. Every submitted item carries a one-shot completion handle that
the loop settles exactly once.
*/
package arbiter
