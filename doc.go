/*
Package parley is a dialogue runtime for virtual assistants: it serializes
every conversational turn of one conversation while user input and
asynchronous system work arrive concurrently.

# Concept

Producers (a chat transport, background skills, scheduled notifications)
submit work to an arbiter and get a future back. A single loop consumes that
work one turn at a time. Inside a turn the active dialogue policy may ask the
user questions; the loop then waits for the next intent while notifications
stay queued until the conversation is idle again.

# Key Features

  - One Turn At A Time: replies never interleave, whatever the producers do.
  - Pluggable Policies: dialogue policies are registered by name in an explicit registry.
  - Typed Cancellation: "never mind" or a change of subject unwinds the turn safely.
  - Snapshots: the state after every turn can be stored (memory or Redis) and observed.

# Usage

	catalog, err := skill.LoadFile("skills.yaml")
	if err != nil {
		log.Fatal(err)
	}

	sink := console.NewSink(os.Stdout)
	assistant, err := parley.New(catalog, sink,
		parley.WithParser(skill.NewParser(catalog)),
		parley.WithSchemas(catalog),
	)
	if err != nil {
		log.Fatal(err)
	}

	go assistant.Run(ctx)

	fut, _ := assistant.HandleText(ctx, "what's the weather?")
	_, _ = fut.Wait(ctx)
*/
package parley
