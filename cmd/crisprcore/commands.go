package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"crisprcore/internal/config"
	"crisprcore/internal/core"
	"crisprcore/pkg/domain"
)

func newImportCmd(a *app) *cobra.Command {
	var dumpPath string
	var exportJSON bool
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Parse a PostgreSQL dump and store its tables",
		Long: `
Parse the COPY blocks of a plain-text PostgreSQL dump, decode the region,
crisprlocus_region, crisprlocus, clustercas and sequence tables and replace
the stored table snapshot. Use "-" to read the dump from stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withService(cmd.Context(), func(ctx context.Context, svc *core.Service) error {
				var r io.Reader = cmd.InOrStdin()
				if dumpPath != "-" {
					f, err := os.Open(dumpPath)
					if err != nil {
						return fmt.Errorf("open dump: %w", err)
					}
					defer func() { _ = f.Close() }()
					r = f
				}
				res, err := svc.Import(ctx, r, core.ImportOptions{ExportJSON: exportJSON})
				if err != nil {
					return err
				}
				for _, name := range domain.KnownTables {
					fmt.Fprintf(a.stdout, "%s\t%d\n", name, res.Rows[name])
				}
				for _, key := range res.ExportKeys {
					fmt.Fprintln(a.stdout, key)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&dumpPath, "dump", "d", "", "PostgreSQL dump file")
	cmd.Flags().BoolVar(&exportJSON, "export-json", false, "also store every table as JSON in the artifact store")
	_ = cmd.MarkFlagRequired("dump")
	return cmd
}

func newRunCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Assemble mature crRNAs and store the FASTA artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withService(cmd.Context(), func(ctx context.Context, svc *core.Service) error {
				summary, err := svc.Run(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "run %s: %d arrays (%d typed), %d mature crRNAs, %d repeats\n",
					summary.RunID, summary.Arrays, summary.TypedArrays, summary.MatureRNAs, summary.Repeats)
				for _, key := range summary.Artifacts {
					fmt.Fprintln(a.stdout, key)
				}
				return nil
			})
		},
	}
	cmd.Flags().Int("workers", 0, "arrays assembled concurrently (0 = GOMAXPROCS)")
	_ = a.v.BindPFlag(config.KeyWorkers, cmd.Flags().Lookup("workers"))
	return cmd
}

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print unique repeat and spacer counts of the stored tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withService(cmd.Context(), func(ctx context.Context, svc *core.Service) error {
				st, err := svc.Stats(ctx)
				if err != nil {
					return err
				}
				for _, stage := range st.Stages {
					fmt.Fprintf(a.stdout, "%s\t%d\n", stage.Stage, stage.Rows)
				}
				fmt.Fprintf(a.stdout, "Number of unique repeats: %d\n", st.UniqueRepeats)
				fmt.Fprintf(a.stdout, "Number of unique spacers: %d\n", st.UniqueSpacers)
				return nil
			})
		},
	}
}

func newArtifactsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifacts",
		Short: "Inspect and remove the artifacts of pipeline runs",
	}

	list := &cobra.Command{
		Use:   "list <run-id>",
		Short: "List the artifacts of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(ctx context.Context, svc *core.Service) error {
				infos, err := svc.ListRun(ctx, args[0])
				if err != nil {
					return err
				}
				for _, info := range infos {
					fmt.Fprintf(a.stdout, "%s\t%d\t%s\n", info.Key, info.Size, info.ContentType)
				}
				return nil
			})
		},
	}

	get := &cobra.Command{
		Use:   "get <run-id> <name>",
		Short: "Write one artifact to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(ctx context.Context, svc *core.Service) error {
				art, err := svc.ReadRunArtifact(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				_, err = a.stdout.Write(art.Data)
				return err
			})
		},
	}

	var expiry time.Duration
	url := &cobra.Command{
		Use:   "url <run-id> <name>",
		Short: "Print a download URL for one artifact",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(ctx context.Context, svc *core.Service) error {
				u, err := svc.RunArtifactURL(ctx, args[0], args[1], expiry)
				if err != nil {
					return err
				}
				fmt.Fprintln(a.stdout, u)
				return nil
			})
		},
	}
	url.Flags().DurationVar(&expiry, "expiry", 15*time.Minute, "lifetime of signed URLs")

	del := &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Remove every artifact of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(ctx context.Context, svc *core.Service) error {
				removed, err := svc.DeleteRun(ctx, args[0])
				if err != nil {
					return err
				}
				for _, key := range removed {
					fmt.Fprintln(a.stdout, key)
				}
				return nil
			})
		},
	}

	cmd.AddCommand(list, get, url, del)
	return cmd
}
