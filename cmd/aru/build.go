package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-kb-retrieval/internal/builder"
	"github.com/tbourn/go-kb-retrieval/internal/config"
	"github.com/tbourn/go-kb-retrieval/internal/domain"
	"github.com/tbourn/go-kb-retrieval/internal/minhash"
	"github.com/tbourn/go-kb-retrieval/internal/sysutil"
)

const defaultBuildOutput = "./output/chunks.json"

var buildWatch bool

var buildCmd = &cobra.Command{
	Use:   "build <input-dir> [output-file]",
	Short: "Chunk a folder of documents into an import file",
	Long: `Reads every .txt and .md file in input-dir, splits it into chunks and
writes them with precomputed shingles and signatures as a JSON array
(default ` + defaultBuildOutput + `). With --watch the file is rebuilt
whenever a document changes.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().BoolVarP(&buildWatch, "watch", "w", false, "rebuild when documents change")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	in, out := args[0], defaultBuildOutput
	if len(args) > 1 {
		out = sysutil.FirstNonEmpty(args[1], defaultBuildOutput)
	}

	b := newBuilder(cfg, builder.WithLogger(log))
	chunks, err := b.Build(in)
	if err != nil {
		return err
	}
	if err := builder.WriteFile(out, chunks); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d chunks to %s\n", len(chunks), out)

	if !buildWatch {
		return nil
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s...\n", in)
	return b.Watch(ctx, in, builder.DefaultDebounce, func(chunks []domain.Chunk, err error) {
		if err == nil {
			err = builder.WriteFile(out, chunks)
		}
		if err != nil {
			log.Error().Err(err).Msg("rebuild failed")
			return
		}
		log.Info().Int("chunks", len(chunks)).Str("out", out).Msg("rebuilt")
	})
}

// newBuilder returns a builder whose chunking and signatures match what the
// retrieval service computes for the same configuration.
func newBuilder(cfg config.Config, opts ...builder.Option) *builder.Builder {
	gen := minhash.New(
		minhash.WithChannels(cfg.Retrieval.SignatureSize),
		minhash.WithShingleSize(cfg.Retrieval.ShingleSize),
	)
	return builder.New(append([]builder.Option{
		builder.WithChunkSize(cfg.Retrieval.ChunkSize),
		builder.WithGenerator(gen),
	}, opts...)...)
}
