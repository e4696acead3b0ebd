/*
Package bridge drives a long-running interactive child process that speaks a prompt-oriented text protocol over stdin and stdout.

The child process has no message framing. It reads one command line at a time and writes free-form text, ending every response with a fixed prompt string once it is idle again. The bridge turns that stream into discrete responses:

1. The Process starts the child with stdout and stderr merged into one pipe, then reads the startup banner up to the first prompt (the handshake).
2. Each command is written to stdin through a Channel, which then reads the merged output until the prompt shows up somewhere in the accumulated bytes. A prompt split across two reads is still found.
3. The Session serializes commands so that only one write+read cycle is ever in flight against the child, and returns a Transcript holding the command and the response verbatim.

If the child exits while a command is in flight, the call fails with a *ChildExitedError and the session becomes unusable: every later Play fails immediately with ErrSessionNotReady. There is no automatic respawn.

Reads block; there are no timeouts on a response. A stalled child can only be interrupted by stopping the session, which is safe to do at any time.
*/
package bridge
