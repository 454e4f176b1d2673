/*
Package ports defines the driven ports (interfaces) for the parley engine.

These interfaces decouple the conversation core from the surrounding
application: the engine that runs statements, the NLU that parses text,
the transport that shows replies to the user and the store that keeps
snapshots for inspection.

# Key Interfaces

  - Engine: Runs a statement and streams its output.
  - Sink: Accepts user-visible messages (text, pictures, cards, buttons, choices).
  - Dialogue: The conversation handle given to policies and slot resolvers.
  - SlotResolver: Fills an unresolved slot, usually by asking the user.
  - Parser: Turns free text into an intent.
  - SnapshotStore: Persists conversation snapshots per conversation ID.
*/
package ports
