package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fabfab/therapy-rag/api"
	"github.com/fabfab/therapy-rag/config"
	"github.com/fabfab/therapy-rag/corpus"
	"github.com/fabfab/therapy-rag/database"
	"github.com/fabfab/therapy-rag/embeddings"
	"github.com/fabfab/therapy-rag/ingestion"
	"github.com/fabfab/therapy-rag/llm"
	"github.com/fabfab/therapy-rag/query"
	"github.com/fabfab/therapy-rag/vectorstore"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	switch os.Args[1] {
	case "ingest":
		ingestCmd(cfg, logger, os.Args[2:])
	case "query":
		queryCmd(cfg, logger, os.Args[2:])
	case "serve":
		serveCmd(cfg, logger, os.Args[2:])
	case "clear":
		clearCmd(cfg, logger, os.Args[2:])
	default:
		logger.Printf("unknown command: %s", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func ingestCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("ingest", flag.ExitOnError)
	dataDir := flags.String("dir", cfg.DataDir, "path to directory containing .txt and .pdf documents")
	chunkSize := flags.Int("chunk-size", cfg.ChunkSize, "target chunk size in characters")
	chunkOverlap := flags.Int("chunk-overlap", cfg.ChunkOverlap, "overlap between consecutive chunks in characters")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse ingest flags: %v", err)
	}

	cfg.ChunkSize = *chunkSize
	cfg.ChunkOverlap = *chunkOverlap
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("postgres connection: %v", err)
	}
	defer pool.Close()

	if err := database.EnsureCorpusSchema(ctx, pool, cfg.Embeddings.Dimension); err != nil {
		logger.Fatalf("ensure schema: %v", err)
	}

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		logger.Fatalf("embedder setup: %v", err)
	}

	store := vectorstore.NewPostgres(pool, cfg.Embeddings.Dimension)
	svc, err := ingestion.NewService(corpus.NewFileLoader(), embedder, store, cfg, logger)
	if err != nil {
		logger.Fatalf("ingestion setup: %v", err)
	}

	logger.Printf("ingesting documents from %s using %s/%s embeddings",
		*dataDir, strings.ToUpper(cfg.Embeddings.Provider), cfg.Embeddings.Model)

	report, err := svc.Run(ctx, *dataDir)
	if err != nil {
		if errors.Is(err, embeddings.ErrModelUnavailable) {
			logger.Fatalf("embedding backend unavailable: %v", err)
		}
		logger.Fatalf("ingestion failed: %v", err)
	}

	if len(report.Succeeded) == 0 && len(report.Failed) == 0 {
		fmt.Println("No documents found in the source directory.")
		return
	}

	fmt.Printf("Ingested %d documents (%d chunks).\n", len(report.Succeeded), report.Chunks)
	if len(report.Failed) > 0 {
		fmt.Printf("%d documents failed:\n", len(report.Failed))
		for _, failure := range report.Failed {
			fmt.Printf("  %s: %v\n", failure.Path, failure.Err)
		}
	}
}

func queryCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("query", flag.ExitOnError)
	question := flags.String("question", "", "question to ask the assistant")
	topK := flags.Int("top-k", cfg.TopK, "number of context chunks to retrieve")
	category := flags.String("category", "", "restrict retrieval to one document category (e.g. CBT)")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse query flags: %v", err)
	}

	if strings.TrimSpace(*question) == "" {
		fmt.Print("Enter your question: ")
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			*question = scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			logger.Fatalf("read question: %v", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("postgres connection: %v", err)
	}
	defer pool.Close()

	if err := database.EnsureCorpusSchema(ctx, pool, cfg.Embeddings.Dimension); err != nil {
		logger.Fatalf("ensure schema: %v", err)
	}

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		logger.Fatalf("embedder setup: %v", err)
	}

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		logger.Fatalf("llm setup: %v", err)
	}

	store := vectorstore.NewPostgres(pool, cfg.Embeddings.Dimension)
	svc := query.NewService(embedder, store, llmClient, query.Options{
		TopK:           *topK,
		MaxPromptChars: cfg.MaxPromptChars,
	}, logger)

	var filter map[string]string
	if *category != "" {
		filter = map[string]string{corpus.MetaCategory: *category}
	}

	answer, err := svc.AskFiltered(ctx, *question, filter)
	if err != nil {
		if errors.Is(err, embeddings.ErrModelUnavailable) || errors.Is(err, llm.ErrGeneration) {
			logger.Fatalf("model backend unavailable: %v", err)
		}
		logger.Fatalf("query failed: %v", err)
	}

	fmt.Println(answer.Text)
	if len(answer.Sources) == 0 {
		fmt.Println()
		fmt.Println("(no relevant context was found in the corpus)")
		return
	}

	fmt.Println()
	fmt.Println("Sources:")
	for idx, match := range answer.Sources {
		label := match.Chunk.Metadata[corpus.MetaSource]
		if page := match.Chunk.Metadata[corpus.MetaPage]; page != "" {
			label += ", page " + page
		}
		fmt.Printf("%d. %s (score %.3f)\n", idx+1, label, match.Score)
	}
}

func serveCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := flags.String("addr", ":8080", "listen address for the HTTP API")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse serve flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("postgres connection: %v", err)
	}
	defer pool.Close()

	if err := database.EnsureCorpusSchema(ctx, pool, cfg.Embeddings.Dimension); err != nil {
		logger.Fatalf("ensure schema: %v", err)
	}

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		logger.Fatalf("embedder setup: %v", err)
	}

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		logger.Fatalf("llm setup: %v", err)
	}

	store := vectorstore.NewPostgres(pool, cfg.Embeddings.Dimension)
	querySvc := query.NewService(embedder, store, llmClient, query.Options{
		TopK:           cfg.TopK,
		MaxPromptChars: cfg.MaxPromptChars,
	}, logger)
	ingestSvc, err := ingestion.NewService(corpus.NewFileLoader(), embedder, store, cfg, logger)
	if err != nil {
		logger.Fatalf("ingestion setup: %v", err)
	}

	server := &http.Server{
		Addr:    *addr,
		Handler: api.NewServer(querySvc, ingestSvc, logger),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("HTTP API listening on %s", *addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http server: %v", err)
		}
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Fatalf("http shutdown: %v", err)
		}
	}
}

func clearCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("clear", flag.ExitOnError)
	confirmed := flags.Bool("confirm", false, "skip confirmation prompt")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse clear flags: %v", err)
	}

	if !*confirmed {
		fmt.Print("This will permanently delete all ingested chunks. Continue? [y/N]: ")
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				logger.Fatalf("read confirmation: %v", err)
			}
			logger.Println("clear aborted")
			return
		}
		answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if answer != "y" && answer != "yes" {
			logger.Println("clear aborted")
			return
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatalf("postgres connection: %v", err)
	}
	defer pool.Close()

	if err := database.EnsureCorpusSchema(ctx, pool, cfg.Embeddings.Dimension); err != nil {
		logger.Fatalf("ensure schema: %v", err)
	}

	store := vectorstore.NewPostgres(pool, cfg.Embeddings.Dimension)
	if err := store.Clear(ctx); err != nil {
		logger.Fatalf("clear corpus: %v", err)
	}

	logger.Println("corpus cleared")
}

func printUsage() {
	fmt.Println("Usage: therapy-rag <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  ingest   Ingest .txt/.pdf documents into the vector store (use --dir to override data directory)")
	fmt.Println("  query    Ask a question against the ingested corpus")
	fmt.Println("  serve    Run the HTTP API")
	fmt.Println("  clear    Remove all ingested chunks")
}
