package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	serverrun "github.com/rzbill/courier/internal/cmd/server"
	cfgpkg "github.com/rzbill/courier/internal/config"
	"github.com/rzbill/courier/internal/consume"
	"github.com/rzbill/courier/internal/lookup"
	"github.com/rzbill/courier/internal/runtime"
	pebblestore "github.com/rzbill/courier/internal/storage/pebble"
	"github.com/rzbill/courier/internal/store"
	"github.com/rzbill/courier/internal/store/model"
	"github.com/rzbill/courier/internal/streamlog"
)

func main() {
	var configPath string
	var dataDir string

	loadConfig := func() (cfgpkg.Config, error) {
		cfg, err := cfgpkg.Load(configPath)
		if err != nil {
			return cfgpkg.Config{}, err
		}
		cfgpkg.FromEnv(&cfg)
		if dataDir != "" {
			cfg.DataDir = dataDir
		}
		return cfg, nil
	}

	rootCmd := &cobra.Command{
		Use:   "courier",
		Short: "Courier notification delivery worker",
		Long:  "Courier consumes delivery requests from its stream log and sends notifications over email and SMS.",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to JSON config file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "stream data directory (overrides config)")

	// server start
	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverStartCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the delivery worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return serverrun.Run(cmd.Context(), serverrun.Options{Config: cfg})
		},
	}
	serverCmd.AddCommand(serverStartCmd)
	rootCmd.AddCommand(serverCmd)

	// db init
	dbCmd := &cobra.Command{Use: "db", Short: "Database commands"}
	dbInitCmd := &cobra.Command{
		Use:   "init",
		Short: "Create the schema and seed the code table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := runtime.OpenSQL(cfg.DB)
			if err != nil {
				return err
			}
			defer db.Close()
			ctx := cmd.Context()
			if err := store.CreateSchema(ctx, db); err != nil {
				return err
			}
			if err := store.SeedCodes(ctx, db); err != nil {
				return err
			}
			fmt.Println("database initialized")
			return nil
		},
	}
	dbCmd.AddCommand(dbInitCmd)
	rootCmd.AddCommand(dbCmd)

	// enqueue: dev/test producer. Creates the WAITING row, then appends the
	// stream record that will drive its delivery.
	var channel, purpose string
	var userID, templateID, reservationID int64
	enqueueCmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Create a WAITING send result and append its delivery request to the stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			db, err := runtime.OpenSQL(cfg.DB)
			if err != nil {
				return err
			}
			defer db.Close()
			lk, err := lookup.Load(ctx, db)
			if err != nil {
				return err
			}
			channelID, ok := lk.ID(lookup.GroupChannel, channel)
			if !ok {
				return fmt.Errorf("unknown channel %q", channel)
			}
			purposeID, ok := lk.ID(lookup.GroupPurpose, purpose)
			if !ok {
				return fmt.Errorf("unknown purpose %q", purpose)
			}
			sr := &model.SendResult{
				ReservationID: reservationID,
				UserID:        userID,
				TemplateID:    templateID,
				ChannelID:     channelID,
				PurposeID:     purposeID,
			}
			if err := store.New(db, lk).Create(ctx, sr); err != nil {
				return err
			}

			kv, err := pebblestore.Open(pebblestore.Options{DataDir: cfg.DataDir})
			if err != nil {
				return err
			}
			defer kv.Close()
			stream, err := streamlog.Open(kv, cfg.Stream.Key)
			if err != nil {
				return err
			}
			rid, err := stream.Append(ctx, map[string]string{
				consume.FieldSendResultID: strconv.FormatInt(sr.ID, 10),
				consume.FieldChannel:      channel,
				consume.FieldPurpose:      purpose,
			})
			if err != nil {
				return err
			}
			fmt.Printf("send result %d enqueued as %s\n", sr.ID, rid.String())
			return nil
		},
	}
	enqueueCmd.Flags().StringVar(&channel, "channel", "EMAIL", "channel symbol")
	enqueueCmd.Flags().StringVar(&purpose, "purpose", "NOTICE", "purpose symbol")
	enqueueCmd.Flags().Int64Var(&userID, "user", 1, "recipient user id")
	enqueueCmd.Flags().Int64Var(&templateID, "template", 1, "message template id")
	enqueueCmd.Flags().Int64Var(&reservationID, "reservation", 1, "owning reservation id")
	rootCmd.AddCommand(enqueueCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
