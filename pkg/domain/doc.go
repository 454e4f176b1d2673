/*
Package domain contains the core data model of the parley conversation engine.

It defines what flows through the engine (queue items and intents), the
declarative dialogue state the policies reason about, and the pure merge
algorithm that reconciles an existing state with a freshly predicted one.
This package is kept free of I/O and concurrency, following Hexagonal
Architecture principles.

# Key Entities

  - QueueItem: A unit of work competing for the conversation (user input or system work).
  - Intent: What the user said, as classified by the NLU collaborator.
  - DialogueState: Policy name, current dialogue act and the ordered statement history.
  - HistoryItem: One statement, its confirmation status and its results once executed.
  - Statement: The opaque program representation the engine executes.
*/
package domain
