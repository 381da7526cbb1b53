package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"scraper-agent/internal/di"
	"scraper-agent/internal/domain/entity"
	"scraper-agent/internal/infrastructure/config"
	"scraper-agent/internal/infrastructure/env"
)

func main() {
	envService := env.NewEnvService()

	configPath := flag.String("config", "scrape.yaml", "Path to the scrape configuration file (JSON or YAML)")
	outputPath := flag.String("output", envOr(envService.Get("OUTPUT_PATH"), "results.json"), "Path for the extracted results")
	model := flag.String("model", envService.Get("OPENROUTER_MODEL_NAME"), "Model name to use as the reasoning oracle")
	headless := flag.Bool("headless", envService.GetBool("BROWSER_HEADLESS", true), "Run the browser headless")
	iterations := flag.Int("iterations", envService.GetInt("ITERATION_LIMIT", 0), "Override the iteration limit (0 keeps the default)")
	timeout := flag.Duration("timeout", 30*time.Minute, "Overall run timeout")
	flag.Parse()

	if *model == "" {
		log.Fatal("Model name is required: pass --model or set OPENROUTER_MODEL_NAME")
	}

	scrapeCfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err := di.NewContainer(di.Config{
		APIKey:          envService.MustGet("OPENROUTER_API_KEY"),
		Model:           *model,
		BaseURL:         envService.Get("OPENROUTER_BASE_URL"),
		BrowserHeadless: *headless,
		OutputPath:      *outputPath,
		IterationLimit:  *iterations,
		ScrapeConfig:    scrapeCfg,
	})
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer container.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	container.Logger.Info("Run started",
		"url", scrapeCfg.URL,
		"collection", scrapeCfg.CollectionName(),
		"output", *outputPath)
	fmt.Printf("Scraping %s ...\n", scrapeCfg.URL)

	outcome, err := container.Runner.Run(ctx, scrapeCfg)
	if err != nil {
		container.Logger.Error("Run failed", "error", err)
		fmt.Printf("Run failed: %v\n", err)
		os.Exit(1)
	}

	container.Logger.Info("Run finished",
		"status", string(outcome.Status),
		"iterations", outcome.Iterations)

	fmt.Printf("Status: %s (%d iterations)\n", outcome.Status, outcome.Iterations)
	for _, note := range outcome.Notes {
		fmt.Printf("Note: %s\n", note)
	}
	if outcome.Result != nil {
		fmt.Printf("Extracted %d items into %q, saved to %s\n",
			outcome.Result.Metadata.ItemCount, outcome.Result.Collection, *outputPath)
	}

	if outcome.Status != entity.RunSuccess {
		os.Exit(1)
	}
}

func envOr(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
