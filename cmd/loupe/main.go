// Command loupe is an interactive research assistant REPL. It wires the
// configured model provider and the built-in research tools into an
// assistant and chats over stdin/stdout. Configuration comes from an
// optional TOML file named by LOUPE_CONFIG; the provider API key must be
// present in the environment.
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/loupehq/loupe"
	"github.com/loupehq/loupe/core"
	"github.com/loupehq/loupe/internal/config"
	"github.com/loupehq/loupe/logging"
	"github.com/loupehq/loupe/model"
	"github.com/loupehq/loupe/model/anthropic"
	"github.com/loupehq/loupe/model/openai"
	"github.com/loupehq/loupe/tool"
	"github.com/loupehq/loupe/tool/kgraph"
	"github.com/loupehq/loupe/tool/notes"
	"github.com/loupehq/loupe/tool/search"
	"github.com/loupehq/loupe/tool/webpage"
)

const welcomeText = `Welcome to Loupe, a conversational research assistant.

Capabilities:
  - Web search using Wikipedia and DuckDuckGo
  - Webpage processing and summarization
  - Research note generation
  - Knowledge graph creation
  - Conversational memory within a session

Try one of these:
  - "Search for information about quantum computing"
  - "Summarize the webpage https://go.dev/blog/context"
  - "Generate research notes on climate change"
  - "Create a knowledge graph about artificial intelligence"
  - "What can you tell me about machine learning?"

Type 'exit' to quit, or 'help' to see this message again.`

func main() {
	cfg, err := config.Load(os.Getenv("LOUPE_CONFIG"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if _, err := cfg.APIKey(); err != nil {
		log.Fatalf("%v (set it in your environment before starting)", err)
	}

	logger := logging.NewSlogLogger(logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
	})

	llm := buildModel(cfg)
	httpClient := &http.Client{Timeout: time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second}

	assistant := loupe.New(llm, func(o *loupe.Options) {
		o.MaxSteps = cfg.Agent.MaxSteps
		o.EnableStreaming = cfg.Agent.Streaming
		o.Logger = logger
		o.Tools = []tool.Tool{
			search.New(func(o *search.Options) { o.HTTPClient = httpClient }),
			webpage.New(llm, func(o *webpage.Options) { o.HTTPClient = httpClient }),
			notes.New(llm),
			kgraph.New(llm),
		}
	})

	runREPL(assistant)
}

func buildModel(cfg config.Config) model.Model {
	switch cfg.LLM.Provider {
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.LLM.Model != "" {
				o.Model = anthropicsdk.Model(cfg.LLM.Model)
			}
			o.Temperature = cfg.LLM.Temperature
		})
	default:
		return openai.NewModel(func(o *openai.Options) {
			if cfg.LLM.Model != "" {
				o.Model = cfg.LLM.Model
			}
			o.Temperature = cfg.LLM.Temperature
		})
	}
}

// turnCanceller lets the signal handler interrupt an in-flight turn without
// killing the process. A Ctrl-C at the prompt exits instead.
type turnCanceller struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func (tc *turnCanceller) set(cancel context.CancelFunc) {
	tc.mu.Lock()
	tc.cancel = cancel
	tc.mu.Unlock()
}

func (tc *turnCanceller) fire() bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.cancel == nil {
		return false
	}
	tc.cancel()
	tc.cancel = nil
	return true
}

func runREPL(assistant *loupe.Assistant) {
	fmt.Println(welcomeText)

	sessionID := core.NewID()
	canceller := &turnCanceller{}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		for range sigCh {
			if !canceller.fire() {
				fmt.Println("\nGoodbye!")
				os.Exit(0)
			}
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nYou: ")
		if !scanner.Scan() {
			fmt.Println("\nGoodbye!")
			return
		}

		input := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(input) {
		case "":
			continue
		case "exit", "quit", "bye":
			fmt.Println("\nGoodbye! Thanks for trying Loupe.")
			return
		case "help", "?":
			fmt.Println(welcomeText)
			continue
		}

		ctx, cancel := context.WithCancel(context.Background())
		canceller.set(cancel)
		runTurn(ctx, assistant, sessionID, input)
		canceller.set(nil)
		cancel()
	}
}

func runTurn(ctx context.Context, assistant *loupe.Assistant, sessionID, input string) {
	fmt.Print("\nAssistant: ")

	_, eventsCh, errorsCh, err := assistant.Invoke(ctx, sessionID, core.NewUserText(input))
	if err != nil {
		fmt.Printf("error: %v\nTry a different question or check your setup.\n", err)
		return
	}

	streamed := false
	for eventsCh != nil || errorsCh != nil {
		select {
		case ev, ok := <-eventsCh:
			if !ok {
				eventsCh = nil
				continue
			}
			streamed = printEvent(ev, streamed)

		case err, ok := <-errorsCh:
			if !ok {
				errorsCh = nil
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					fmt.Println("\n(interrupted)")
					return
				}
				fmt.Printf("\nerror: %v\nTry a different question or check your setup.\n", err)
			}
		}
	}
	fmt.Println()
}

// printEvent renders one agent event. Partial fragments stream inline; the
// final message is skipped when its fragments were already printed.
func printEvent(ev core.Event, streamed bool) bool {
	if ev.Content == nil {
		return streamed
	}

	if ev.IsPartial() {
		fmt.Print(ev.Content.Text())
		return true
	}

	for _, fc := range ev.GetFunctionCalls() {
		fmt.Printf("\n  [using %s]\n", fc.Name)
	}
	for _, fr := range ev.GetFunctionResponses() {
		if fr.Error != "" {
			fmt.Printf("  [%s failed: %s]\n", fr.Name, fr.Error)
		}
	}

	if text := ev.Content.Text(); text != "" && ev.Author != "user" {
		if streamed {
			return false
		}
		fmt.Print(text)
	}
	return streamed
}
