package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"taedam/internal/config"
	"taedam/internal/logging"
	"taedam/internal/retrieval"
)

func newIndexCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "index <corpus.jsonl>",
		Short: "Load a JSONL reference corpus into the evidence store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logging.SetLevel(logging.ParseLevel(cfg.LogLevel))
			defer func() { _ = logging.Close() }()
			logger := logging.NewComponentLogger("index")

			embedder, err := retrieval.NewEmbedder(retrieval.EmbedderConfig{
				Model:   cfg.LLM.EmbedModel,
				APIKey:  cfg.LLM.APIKey,
				BaseURL: cfg.LLM.BaseURL,
			})
			if err != nil {
				return err
			}
			vs, err := retrieval.NewVectorStore(retrieval.StoreConfig{
				PersistPath: cfg.Storage.VectorPath,
				Collection:  cfg.Storage.Collection,
			}, embedder)
			if err != nil {
				return err
			}

			n, err := retrieval.IndexCorpus(cmd.Context(), vs, args[0], logger)
			if err != nil {
				return err
			}
			fmt.Printf("indexed %d chunks (collection now holds %d)\n", n, vs.Count())
			return nil
		},
	}
}
