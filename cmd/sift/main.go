package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"sift/internal/classify"
	"sift/internal/config"
	"sift/internal/engine"
	"sift/internal/service"
)

var (
	cfgFile    string
	maxResults int
	queryType  string
	sourceType string
	language   string
	embFile    string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sift",
	Short: "sift - section-aware passage retrieval for manual-grounded assistants",
	Long: `sift loads a pre-embedded technical manual and answers nearest-neighbor
queries with section expansion, level-aware strategies, and relevance
re-weighting. The index artifacts are produced by the offline chunking
pipeline; sift only reads them.`,
}

// statsCmd reports the health/status of the loaded index.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Load the index and print its health report",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := loadService(false)
		if err != nil {
			return err
		}
		defer svc.Close()

		out, err := json.MarshalIndent(svc.Health(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

// searchCmd runs a query against the loaded index.
var searchCmd = &cobra.Command{
	Use:   "search [query text]",
	Short: "Search the index with a text query or a raw embedding",
	Long: `Search the index. With query text, the configured embedding provider
produces the query vector and the level-aware strategies apply. With
--embedding, the given JSON vector file is searched directly using the
dynamic strategy (--type simple|detailed).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if embFile == "" && len(args) == 0 {
			return fmt.Errorf("either query text or --embedding is required")
		}

		svc, err := loadService(embFile == "")
		if err != nil {
			return err
		}
		defer svc.Close()

		ctx := context.Background()
		var results []engine.Result

		if embFile != "" {
			embedding, err := readEmbedding(embFile)
			if err != nil {
				return err
			}
			eng, err := svc.Engine()
			if err != nil {
				return err
			}
			results = eng.SearchDynamic(ctx, embedding, engine.DynamicOptions{
				QueryType:       engine.QueryType(queryType),
				EstimatedChunks: maxResults,
				SourceType:      sourceType,
				Language:        language,
			})
		} else {
			results = svc.Retrieve(ctx, args[0], engine.RetrieveOptions{
				MaxResults: maxResults,
				SourceType: sourceType,
				Language:   language,
			})
		}

		printResults(results)
		return nil
	},
}

// classifyCmd shows the strategy a query would route to.
var classifyCmd = &cobra.Command{
	Use:   "classify <query text>",
	Short: "Show the search category a query classifies to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(classify.Classify(args[0]))
		return nil
	},
}

// sectionsCmd lists a section's passages in document order.
var sectionsCmd = &cobra.Command{
	Use:   "sections [section-id]",
	Short: "List sections, or the passages of one section in document order",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := loadService(false)
		if err != nil {
			return err
		}
		defer svc.Close()

		eng, err := svc.Engine()
		if err != nil {
			return err
		}

		if len(args) == 0 {
			h := svc.Health()
			fmt.Printf("%d sections across %d passages\n", h.TotalSections, h.TotalVectors)
			return nil
		}

		printResults(eng.SectionPassages(args[0]))
		return nil
	},
}

// loadService builds and loads the retrieval service from the config.
func loadService(withEmbedder bool) (*service.Service, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	var embedder engine.Embedder
	if withEmbedder && cfg.Embedding.Provider == "openai" {
		embedder, err = engine.NewOpenAIEmbedder(cfg.Embedding.OpenAI.ResolveKey(), cfg.Embedding.OpenAI.Model)
		if err != nil {
			return nil, err
		}
	}

	svc := service.New(cfg, embedder)
	if err := svc.Load(context.Background()); err != nil {
		return nil, err
	}
	return svc, nil
}

// readEmbedding parses a JSON []float32 vector file.
func readEmbedding(path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read embedding file: %w", err)
	}
	var v []float32
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse embedding file %s: %w", path, err)
	}
	return v, nil
}

func printResults(results []engine.Result) {
	if len(results) == 0 {
		fmt.Println("no relevant information found")
		return
	}
	for i, r := range results {
		fmt.Printf("%2d. [%.4f] %s / %s (level=%s page=%s)\n", i+1, r.Similarity, r.Title, r.SectionID, r.Level, r.PageNumber)
		fmt.Printf("    %s\n", truncate(r.Content, 160))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func init() {
	cobra.OnInitialize(func() {
		// Optional .env for OPENAI_API_KEY and SIFT_* overrides.
		_ = godotenv.Load()
	})

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "sift.yaml", "config file path")

	searchCmd.Flags().IntVarP(&maxResults, "max", "n", 0, "maximum results (0 = configured default)")
	searchCmd.Flags().StringVar(&queryType, "type", "simple", "dynamic query type: simple or detailed")
	searchCmd.Flags().StringVar(&sourceType, "source-type", "", "filter by source type")
	searchCmd.Flags().StringVar(&language, "language", "", "filter by language")
	searchCmd.Flags().StringVar(&embFile, "embedding", "", "JSON file holding a raw query embedding")

	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(sectionsCmd)
}

func main() {
	log.SetFlags(log.LstdFlags)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
