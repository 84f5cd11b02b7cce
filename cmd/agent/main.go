package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
	"graphmem/internal/agent"
	"graphmem/internal/graph"
	"graphmem/internal/llm"
	"graphmem/pkg/config"
	"graphmem/pkg/logger"
)

func main() {
	title := flag.String("title", "", "conversation title")
	flag.Parse()

	// Initialize logger
	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Initialize graph engine driver
	driver, err := neo4j.NewDriverWithContext(
		cfg.GraphURI,
		neo4j.BasicAuth(cfg.GraphUser, cfg.GraphPassword, ""),
	)
	if err != nil {
		log.Fatal("Failed to create graph driver", zap.Error(err))
	}
	defer driver.Close(context.Background())

	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		log.Fatal("Failed to verify graph connectivity", zap.Error(err))
	}

	// Initialize dependencies
	engine := graph.NewBoltEngine(driver)
	store, err := graph.NewStore(ctx, engine)
	if err != nil {
		log.Fatal("Failed to open store session", zap.Error(err))
	}
	defer store.Close(context.Background())

	resolver := graph.NewResolver(store)
	retriever := graph.NewRetriever(store, cfg.RetrievalLimit, cfg.HistoryLimit, cfg.HopLimit)
	client := llm.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.ModelID)
	extractor := llm.NewExtractor(client)
	orch := agent.NewOrchestrator(store, resolver, retriever, extractor, client)

	printBanner()

	convID, err := orch.StartConversation(ctx, *title)
	if err != nil {
		log.Fatal("Failed to start conversation", zap.Error(err))
	}

	color.Green("Started conversation: %s", convID)
	color.Yellow("Type your message and press Enter. Use 'exit' or 'quit' to end the conversation.\n")

	promptLabel := color.New(color.FgHiBlue, color.Bold).SprintFunc()
	assistantLabel := color.New(color.FgHiGreen, color.Bold).SprintFunc()
	dimmed := color.New(color.Faint).SprintFunc()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Printf("%s ", promptLabel("You:"))
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			break
		}

		result, err := orch.ProcessTurn(ctx, convID, input)
		if err != nil {
			color.Red("Error: %v", err)
			continue
		}

		if info := formatEntities(result.Entities); info != "" {
			fmt.Println(dimmed("[Extracted: " + info + "]"))
		}
		fmt.Printf("%s %s\n\n", assistantLabel("Assistant:"), result.AssistantText)
	}

	color.Green("Goodbye! Your memory has been saved.")
}

func formatEntities(entities graph.ExtractedEntities) string {
	var parts []string
	if len(entities.People) > 0 {
		parts = append(parts, "People: "+strings.Join(entities.People, ", "))
	}
	if len(entities.Topics) > 0 {
		parts = append(parts, "Topics: "+strings.Join(entities.Topics, ", "))
	}
	if len(entities.Tasks) > 0 {
		parts = append(parts, "Tasks: "+strings.Join(entities.Tasks, ", "))
	}
	if len(entities.Documents) > 0 {
		parts = append(parts, "Documents: "+strings.Join(entities.Documents, ", "))
	}
	return strings.Join(parts, " | ")
}

func printBanner() {
	banner := color.New(color.FgHiCyan)
	banner.Println()
	banner.Println("  graphmem: AI assistant with context graph memory")
	banner.Println()
}
