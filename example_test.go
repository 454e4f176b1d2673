package parley_test

import (
	"context"
	"fmt"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/adapters/skill"
	"github.com/aretw0/parley/pkg/domain"
)

const exampleSkills = `
skills:
  - id: weather
    function: com.example.weather:current
    keywords: [weather]
    slots:
      - name: city
        category: location
        prompt: Which city?
    results:
      - id: sunny in {city}
`

// ExampleNew shows a conversation that fills a slot before running a query.
func ExampleNew() {
	catalog, err := skill.Parse([]byte(exampleSkills))
	if err != nil {
		fmt.Println(err)
		return
	}

	sink := memory.NewSink()
	assistant, err := parley.New(catalog, sink, parley.WithParser(skill.NewParser(catalog)))
	if err != nil {
		fmt.Println(err)
		return
	}

	ctx := context.Background()
	done := make(chan error, 1)
	go func() { done <- assistant.Run(ctx) }()

	fut, _ := assistant.HandleText(ctx, "weather")
	_ = sink.WaitExpecting(ctx, domain.CategoryLocation)
	answer, _ := assistant.HandleText(ctx, "Lisbon")
	_, _ = answer.Wait(ctx)
	_, _ = fut.Wait(ctx)

	assistant.Close()
	<-done

	for _, text := range sink.Texts() {
		fmt.Println(text)
	}
	// Output:
	// Which city?
	// I found sunny in Lisbon.
}
