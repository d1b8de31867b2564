// Command handoff-chat is a terminal client for the escalation-aware
// customer service chat.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// CLI represents the command-line interface.
type CLI struct {
	APIKey   string        `env:"OPENAI_API_KEY" help:"OpenAI API key"`
	BaseURL  string        `env:"OPENAI_BASE_URL" help:"Custom API base URL"`
	Model    string        `default:"gpt-4o" enum:"gpt-4o,gpt-4o-mini,gpt-4-turbo,gpt-4" help:"Model to chat with (${enum})"`
	Priming  string        `default:"merged" enum:"merged,legacy" env:"PRIMING_MODE" help:"How the instructions are sent to the model (${enum})"`
	Provider string        `default:"openai" enum:"openai,scripted" env:"COMPLETION_PROVIDER" help:"Completion provider (${enum})"`
	Timeout  time.Duration `default:"60s" env:"OPENAI_REQUEST_TIMEOUT" help:"Per-turn provider timeout"`
	LogLevel string        `default:"warn" help:"Log level"`
	NoColor  bool          `help:"Disable colored output"`
}

func main() {
	_ = godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("handoff-chat"),
		kong.Description("Customer service chat that flags conversations for a human representative"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	if err := ctx.Run(&cli); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
