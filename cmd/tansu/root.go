package main

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tansudb/tansu/backup"
	"github.com/tansudb/tansu/codec"
	"github.com/tansudb/tansu/core"
	"github.com/tansudb/tansu/db"
)

const version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:   "tansu",
	Short: "transactional document store on a content-addressed object store",
	Long: fmt.Sprintf(`tansu (v%s)

An embedded document store that persists collections as commit
histories in a git-compatible object store. Every transaction is a
commit; every commit is a queryable snapshot.`, version),
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of tansu",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("tansu v%s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("path", ".", "Location of the collection repository")
	rootCmd.PersistentFlags().String("name", "", "Collection name, used only when creating a new collection")
	rootCmd.PersistentFlags().String("codec", "", "Document codec (json or yaml), used only when creating a new collection")
	rootCmd.PersistentFlags().String("author-name", "", "Author name recorded on commits")
	rootCmd.PersistentFlags().String("author-email", "", "Author email recorded on commits")
	rootCmd.PersistentFlags().String("s3-access-key", "", "S3 access key for s3:// archive locations")
	rootCmd.PersistentFlags().String("s3-secret-key", "", "S3 secret key for s3:// archive locations")
	rootCmd.PersistentFlags().String("s3-region", "", "S3 region for s3:// archive locations")
	rootCmd.PersistentFlags().String("s3-endpoint", "", "Custom S3-compatible endpoint")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(delCmd)
	rootCmd.AddCommand(findCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(replicateCmd)
}

// initConfig wires environment variables into flag values, so every flag
// can also be set as TANSU_<FLAG> (dashes become underscores).
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("tansu")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func bindFlags(cmd *cobra.Command) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	return viper.BindPFlags(cmd.InheritedFlags())
}

func openCollection(cmd *cobra.Command) (*db.Collection, error) {
	if err := bindFlags(cmd); err != nil {
		return nil, err
	}

	opts := db.Options{Name: viper.GetString("name")}
	if name := viper.GetString("codec"); name != "" {
		c, err := codec.ByName(name)
		if err != nil {
			return nil, err
		}
		opts.Codec = c
	}
	if name := viper.GetString("author-name"); name != "" {
		opts.Identity = core.Identity{
			Name:  name,
			Email: viper.GetString("author-email"),
		}
	}

	return db.Open(viper.GetString("path"), opts)
}

func s3ConfigFromFlags() *backup.S3Config {
	cfg := &backup.S3Config{
		AccessKey: viper.GetString("s3-access-key"),
		SecretKey: viper.GetString("s3-secret-key"),
		Region:    viper.GetString("s3-region"),
		Endpoint:  viper.GetString("s3-endpoint"),
	}
	if *cfg == (backup.S3Config{}) {
		return nil
	}
	return cfg
}
