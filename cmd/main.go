package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pdf-rag-qa/internal/api"
	"pdf-rag-qa/internal/chromemdb"
	"pdf-rag-qa/internal/chunker"
	"pdf-rag-qa/internal/config"
	"pdf-rag-qa/internal/db"
	"pdf-rag-qa/internal/embedding"
	"pdf-rag-qa/internal/helper"
	"pdf-rag-qa/internal/llmservice"
	"pdf-rag-qa/internal/parser"
	"pdf-rag-qa/internal/rag"
)

const configFilePath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", configFilePath, "Path to the YAML config file")
	ingest := flag.Bool("ingest", false, "Ingest every document in the data directory and exit")
	clearStore := flag.Bool("clear", false, "Clear the vector store before ingesting")
	dryRun := flag.Bool("dry-run", false, "Load and chunk documents, print the chunks, do not embed")
	query := flag.String("query", "", "Question to be answered")
	exportPath := flag.String("export", "", "Export the collection to this file and exit")
	importPath := flag.String("import", "", "Import the collection from this file and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *dryRun {
		printChunks(cfg)
		return
	}

	embedder, err := embedding.New(&cfg.Embedding)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	index, err := chromemdb.NewVectorDBManager(chromemdb.Options{
		Dir:           cfg.Storage.VectorDBDir,
		Collection:    cfg.Storage.Collection,
		Compress:      cfg.Storage.Compress,
		EncryptionKey: cfg.Storage.EncryptionKey,
		Dedup:         cfg.RAG.Dedup,
		Embedder:      embedder,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Error creating vector database manager")
	}

	svc := rag.NewService(
		rag.ServiceOptions{
			DataDir: cfg.Storage.DataDir,
			Loader:  parser.LoaderOptions{ExtraFormats: cfg.RAG.ExtraFormats},
			Dedup:   cfg.RAG.Dedup,
		},
		chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap),
		index,
		rag.NewRetriever(index, rag.RetrieverOptions{
			TopK:        cfg.RAG.TopK,
			MaxDistance: cfg.RAG.MaxDistance,
			MockScores:  cfg.Mock.MockRetrieval(),
		}),
		rag.NewAnswerGenerator(llmservice.New(&cfg.LLM)),
	)

	if cfg.Database.URL != "" {
		runLog, err := openRunLog(ctx, &cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Error initializing database")
		}
		defer runLog.Close()
		svc.WithRunLog(runLog)
	}

	switch {
	case *exportPath != "":
		if err := index.Export(*exportPath); err != nil {
			log.Fatal().Err(err).Msg("Error exporting collection")
		}
		log.Info().Str("path", *exportPath).Int("count", index.Count()).Msg("Exported collection")
	case *importPath != "":
		if err := index.Import(*importPath); err != nil {
			log.Fatal().Err(err).Msg("Error importing collection")
		}
		log.Info().Str("path", *importPath).Int("count", index.Count()).Msg("Imported collection")
	case *ingest:
		if *clearStore {
			if err := svc.Reset(); err != nil {
				log.Fatal().Err(err).Msg("Error clearing vector store")
			}
		}
		summary, err := svc.Ingest(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Error ingesting documents")
		}
		helper.PrettyPrint(summary)
	case *query != "":
		answer, err := svc.Query(ctx, *query)
		if err != nil {
			log.Fatal().Err(err).Msg("Error querying")
		}
		log.Info().Msg("Query: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
		fmt.Printf("%s\n\n", *query)

		log.Info().Msg("Assistant: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
		fmt.Printf("%s\n\n", answer.Answer)

		log.Info().Msg("Sources: ~~~~~~~~~~~~~~~~~~~~~~~~~>>>>>")
		helper.PrettyPrint(answer.Sources)
	default:
		serve(ctx, cfg, api.NewHandler(svc, cfg.Storage.DataDir))
	}
}

func openRunLog(ctx context.Context, cfg *config.DatabaseConfig) (*db.RunLog, error) {
	sqldb, err := db.ConnectDB(cfg)
	if err != nil {
		return nil, err
	}
	bunDB := db.NewDB(sqldb, cfg.Debug)
	if err := db.InitDB(ctx, bunDB); err != nil {
		bunDB.Close()
		return nil, err
	}
	return db.NewRunLog(bunDB), nil
}

func printChunks(cfg *config.Config) {
	pages, err := parser.LoadDirectory(cfg.Storage.DataDir, parser.LoaderOptions{ExtraFormats: cfg.RAG.ExtraFormats})
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading documents")
	}
	chunks := chunker.New(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap).Split(pages)
	helper.PrettyPrint(chunks)
}

func serve(ctx context.Context, cfg *config.Config, h *api.Handler) {
	e := api.NewRouter(h)
	addr := ":" + cfg.Server.Port

	go func() {
		log.Info().Str("addr", addr).Msg("Starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error shutting down server")
	}
}
