package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/mahaj/lionsphere/pkg/config"
	"github.com/mahaj/lionsphere/pkg/db"
	"github.com/mahaj/lionsphere/pkg/logging"
)

func main() {
	var (
		configFile  string
		drop        bool
		replication int
	)
	cmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Create the LionSphere keyspace and tables",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile, "")
			if err != nil {
				return err
			}
			log, closer, err := logging.New("migrate", cfg.Log)
			if err != nil {
				return err
			}
			defer closer.Close()

			if drop {
				s, err := db.NewSession(cfg.Scylla.Hosts, cfg.Scylla.Keyspace, cfg.Scylla.Timeout)
				if err != nil {
					return err
				}
				err = db.Drop(s)
				s.Close()
				if err != nil {
					return err
				}
				log.Info("dropped tables", "keyspace", cfg.Scylla.Keyspace)
			}

			if err := db.Migrate(cfg.Scylla.Hosts, cfg.Scylla.Keyspace, replication, cfg.Scylla.Timeout); err != nil {
				return err
			}
			log.Info("schema ready", "keyspace", cfg.Scylla.Keyspace)
			return nil
		},
	}
	cmd.Flags().StringVar(&configFile, "config", os.Getenv("LIONSPHERE_CONFIG"), "path to a YAML config file")
	cmd.Flags().BoolVar(&drop, "drop", false, "drop every table first")
	cmd.Flags().IntVar(&replication, "replication", 1, "keyspace replication factor")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
