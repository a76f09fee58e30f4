// Command extracttest runs the slot extraction prompt against every
// configured LLM provider and prints what each one resolves.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/joho/godotenv"

	"github.com/wolfman30/appointment-webhook-bridge/cmd/mainconfig"
	"github.com/wolfman30/appointment-webhook-bridge/internal/app/bootstrap"
	appconfig "github.com/wolfman30/appointment-webhook-bridge/internal/config"
	"github.com/wolfman30/appointment-webhook-bridge/internal/conversation"
	"github.com/wolfman30/appointment-webhook-bridge/internal/schedule"
	"github.com/wolfman30/appointment-webhook-bridge/pkg/logging"
)

var defaultPhrases = []string{
	"tomorrow morning",
	"next tuesday at 3pm",
	"saturday afternoon",
	"the 15th at noon",
}

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	providers := flag.String("providers", "openai,gemini,bedrock", "comma-separated providers to try")
	nowFlag := flag.String("now", "", "reference time (RFC 3339); defaults to the current time")
	flag.Parse()

	cfg := appconfig.Load()
	zone, err := schedule.LoadZone(cfg.GHLCalendarTZ)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	now := zone.Now()
	if *nowFlag != "" {
		parsed, err := time.Parse(time.RFC3339, *nowFlag)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid -now: %v\n", err)
			os.Exit(2)
		}
		now = zone.In(parsed)
	}

	phrases := flag.Args()
	if len(phrases) == 0 {
		phrases = defaultPhrases
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	failed := run(ctx, os.Stdout, cfg, zone, now, strings.Split(*providers, ","), phrases, bedrockFactory(cfg))
	if failed {
		os.Exit(1)
	}
}

// run exercises each provider and reports whether any phrase failed.
func run(ctx context.Context, out io.Writer, cfg *appconfig.Config, zone *schedule.Zone, now time.Time, providers, phrases []string, bedrock bootstrap.BedrockFactory) bool {
	logger := logging.NewWithFormat("warn", "text", os.Stderr)
	fmt.Fprintf(out, "Reference time: %s\n", zone.Stamp(now))

	failed := false
	for _, name := range providers {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		fmt.Fprintf(out, "\n[%s]\n", name)
		llm, closer, err := bootstrap.BuildLLMProvider(ctx, name, cfg, bedrock)
		if err != nil {
			fmt.Fprintf(out, "    skipped: %v\n", err)
			continue
		}

		extractor := conversation.NewSlotExtractor(conversation.SlotExtractorConfig{
			LLM:     llm,
			Zone:    zone,
			Timeout: cfg.LLMTimeout,
			Logger:  logger,
		})
		for _, phrase := range phrases {
			start := time.Now()
			slot, err := extractor.Extract(ctx, now, phrase)
			elapsed := time.Since(start).Round(time.Millisecond)
			if err != nil {
				failed = true
				fmt.Fprintf(out, "    FAIL %-28q %v (%v)\n", phrase, err, elapsed)
				continue
			}
			fmt.Fprintf(out, "    ok   %-28q %s (%v)\n", phrase, slot, elapsed)
		}
		closer()
	}
	return failed
}

func bedrockFactory(cfg *appconfig.Config) bootstrap.BedrockFactory {
	return func(ctx context.Context) (*bedrockruntime.Client, error) {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return mainconfig.NewBedrockClient(awsCfg, cfg), nil
	}
}
