package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"cartoon-ingest/pkg/config"
	"cartoon-ingest/pkg/db"
	"cartoon-ingest/pkg/domain"
	"cartoon-ingest/pkg/engagement"
	"cartoon-ingest/pkg/logging"
	"cartoon-ingest/pkg/maintenance"
	"cartoon-ingest/pkg/replication"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs once config is loaded.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "videoadmin",
		Short:         "Maintenance commands for the videos collection",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v, a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			logging.Configure(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Service: "videoadmin"})
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "Config file (default ./config.yaml)")
	pf.String("mongo-uri", "mongodb://localhost:27017", "MongoDB connection string")
	pf.String("db", "cartoon", "MongoDB database name")
	pf.String("log-level", "info", "Log level")
	if err := config.BindFlags(a.v, pf, map[string]string{
		"mongo-uri": "mongo.uri",
		"db":        "mongo.database",
		"log-level": "log.level",
	}); err != nil {
		panic(err)
	}

	root.AddCommand(
		a.migrateCountersCmd(),
		a.resetCountersCmd(),
		a.viewCmd(),
		a.reactCmd(),
		a.replicateCmd(),
	)
	return root
}

// withMongo connects to MongoDB for the duration of fn.
func (a *app) withMongo(cmd *cobra.Command, fn func(ctx context.Context, client *db.Client) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := db.NewClient(a.cfg.Mongo.URI, a.cfg.Mongo.Database, a.cfg.Mongo.Collection)
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Close(closeCtx)
	}()
	return fn(ctx, client)
}

func (a *app) migrateCountersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate-counters",
		Short: "Fold legacy like/view fields into likes/views and drop the duplicated id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withMongo(cmd, func(ctx context.Context, client *db.Client) error {
				n, err := maintenance.New(client).MigrateLegacyCounters(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Migrated %s videos\n", humanize.Comma(n))
				return nil
			})
		},
	}
}

func (a *app) resetCountersCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset-counters",
		Short: "Set views, likes and dislikes to zero on every video",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to reset counters without --yes")
			}
			return a.withMongo(cmd, func(ctx context.Context, client *db.Client) error {
				n, err := maintenance.New(client).ResetCounters(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("Reset counters on %s videos\n", humanize.Comma(n))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm resetting every counter")
	return cmd
}

func (a *app) viewCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "view VIDEO_ID",
		Short: "Record a view of a video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withMongo(cmd, func(ctx context.Context, client *db.Client) error {
				if err := engagement.New(client).RecordView(ctx, userID, args[0]); err != nil {
					return err
				}
				fmt.Println("View recorded")
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Viewing user id (optional)")
	return cmd
}

func (a *app) reactCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "react VIDEO_ID like|dislike",
		Short: "Toggle a user's reaction to a video",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withMongo(cmd, func(ctx context.Context, client *db.Client) error {
				if err := client.EnsureIndexes(ctx); err != nil {
					return err
				}
				current, err := engagement.New(client).React(ctx, userID, args[0], domain.ReactionKind(args[1]))
				if err != nil {
					return err
				}
				if current == "" {
					fmt.Println("Reaction removed")
				} else {
					fmt.Printf("Reaction is now %s\n", current)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Reacting user id")
	return cmd
}

func (a *app) replicateCmd() *cobra.Command {
	var (
		target  string
		workers int
	)
	cmd := &cobra.Command{
		Use:   "replicate",
		Short: "Copy every video from MongoDB into the Postgres video table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withMongo(cmd, func(ctx context.Context, client *db.Client) error {
				pg, closePG, err := a.openTarget(ctx, target)
				if err != nil {
					return err
				}
				defer closePG()

				rep, err := replication.NewReplicator(replication.Config{
					Source:  client,
					Target:  pg,
					Workers: workers,
				})
				if err != nil {
					return err
				}

				start := time.Now()
				stats, err := rep.ReplicateVideos(ctx)
				if err != nil {
					return fmt.Errorf("replication failed: %w", err)
				}
				fmt.Printf("Replicated %s videos (%s new) in %s\n",
					humanize.Comma(int64(stats.Processed)),
					humanize.Comma(int64(stats.Inserted)),
					time.Since(start).Round(time.Millisecond))
				if stats.Unreadable > 0 {
					fmt.Printf("Skipped %s unreadable documents (see log for ids)\n", humanize.Comma(int64(stats.Unreadable)))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&target, "target", "postgres", "Replication target: postgres or supabase")
	cmd.Flags().IntVar(&workers, "workers", 5, "Parallel batch writers")
	return cmd
}

func (a *app) openTarget(ctx context.Context, target string) (db.DBProvider, func(), error) {
	switch target {
	case "postgres":
		pg := db.NewPostgresClient(a.cfg.Postgres)
		if err := pg.Connect(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return pg, func() { _ = pg.Close() }, nil
	case "supabase":
		sb := db.NewSupabaseClient(a.cfg.Supabase, a.cfg.Postgres)
		if err := sb.Connect(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to connect to supabase: %w", err)
		}
		if !sb.HasDirectDB() {
			_ = sb.Close()
			return nil, nil, fmt.Errorf("supabase replication needs supabase.connection_string or supabase.password")
		}
		return sb, func() { _ = sb.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown replication target %q", target)
	}
}
