package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/tansudb/tansu/backup"
	"github.com/tansudb/tansu/core"
	"github.com/tansudb/tansu/db"
)

func printDoc(doc core.Document) error {
	out, err := json.Marshal(map[string]any{
		"key":    doc.Key,
		"fields": doc.Fields,
		"meta":   doc.Meta,
	})
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// readFields parses a JSON object from the argument, or from stdin when the
// argument is "-".
func readFields(arg string) (core.Fields, error) {
	data := []byte(arg)
	if arg == "-" {
		var err error
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
	}
	var fields core.Fields
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("fields must be a JSON object: %w", err)
	}
	return fields, nil
}

var getCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Read a document by key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		col, err := openCollection(cmd)
		if err != nil {
			return err
		}
		defer col.Close()

		snap, err := snapshotFromFlags(cmd, col)
		if err != nil {
			return err
		}
		doc, err := snap.Get(args[0])
		if err != nil {
			return err
		}
		return printDoc(doc)
	},
}

var putCmd = &cobra.Command{
	Use:   "put [key] [fields-json]",
	Short: "Insert or update a document; pass - to read fields from stdin",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		col, err := openCollection(cmd)
		if err != nil {
			return err
		}
		defer col.Close()

		fields, err := readFields(args[1])
		if err != nil {
			return err
		}

		txn, err := col.Begin(cmd.Context())
		if err != nil {
			return err
		}
		if _, err := txn.Base().Get(args[0]); err == nil {
			err = txn.Update(args[0], fields)
		} else {
			err = txn.Insert(args[0], fields)
		}
		if err != nil {
			txn.Discard()
			return err
		}

		message, _ := cmd.Flags().GetString("message")
		snap, err := txn.Commit(message)
		if err != nil {
			return err
		}
		fmt.Printf("committed %s\n", snap.ID())
		return nil
	},
}

var delCmd = &cobra.Command{
	Use:   "del [key]",
	Short: "Delete a document by key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		col, err := openCollection(cmd)
		if err != nil {
			return err
		}
		defer col.Close()

		txn, err := col.Begin(cmd.Context())
		if err != nil {
			return err
		}
		if err := txn.Delete(args[0]); err != nil {
			txn.Discard()
			return err
		}

		message, _ := cmd.Flags().GetString("message")
		snap, err := txn.Commit(message)
		if err != nil {
			return err
		}
		fmt.Printf("committed %s\n", snap.ID())
		return nil
	},
}

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Query documents in the current or a historical snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		col, err := openCollection(cmd)
		if err != nil {
			return err
		}
		defer col.Close()

		snap, err := snapshotFromFlags(cmd, col)
		if err != nil {
			return err
		}

		filter := db.Filter{}
		filter.KeyPrefix, _ = cmd.Flags().GetString("key-prefix")
		if eq, _ := cmd.Flags().GetStringToString("eq"); len(eq) > 0 {
			filter.Eq = make(map[string]any, len(eq))
			for field, raw := range eq {
				filter.Eq[field] = parseScalar(raw)
			}
		}
		if prefix, _ := cmd.Flags().GetStringToString("field-prefix"); len(prefix) > 0 {
			filter.Prefix = prefix
		}

		docs, err := snap.FindAll(filter)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			if err := printDoc(doc); err != nil {
				return err
			}
		}
		return nil
	},
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List every document key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		col, err := openCollection(cmd)
		if err != nil {
			return err
		}
		defer col.Close()

		snap, err := snapshotFromFlags(cmd, col)
		if err != nil {
			return err
		}
		for key := range snap.Keys() {
			fmt.Println(key)
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List commits from newest to oldest",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		col, err := openCollection(cmd)
		if err != nil {
			return err
		}
		defer col.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		n := 0
		for snap := range col.History() {
			if limit > 0 && n >= limit {
				break
			}
			info, err := snap.Info()
			if err != nil {
				return err
			}
			fmt.Printf("%s  %s  %s  %s\n", info.ID, info.When.Format("2006-01-02 15:04:05"), info.Author, info.Message)
			n++
		}
		return nil
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback [commit-id]",
	Short: "Restore the state of an earlier commit as a new commit",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		col, err := openCollection(cmd)
		if err != nil {
			return err
		}
		defer col.Close()

		steps, _ := cmd.Flags().GetInt("steps")
		var snap *db.Snapshot
		switch {
		case len(args) == 1 && steps > 0:
			return errors.New("pass either a commit id or --steps, not both")
		case len(args) == 1:
			snap, err = col.Rollback(cmd.Context(), args[0])
		case steps > 0:
			snap, err = col.RollbackN(cmd.Context(), steps)
		default:
			return errors.New("pass a commit id or --steps")
		}
		if err != nil {
			return err
		}
		fmt.Printf("rolled back, new head %s\n", snap.ID())
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [dest]",
	Short: "Export the current snapshot as a tar.gz archive to a local path or s3:// URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		col, err := openCollection(cmd)
		if err != nil {
			return err
		}
		defer col.Close()

		snap, err := snapshotFromFlags(cmd, col)
		if err != nil {
			return err
		}
		if err := backup.Export(cmd.Context(), snap, args[0], s3ConfigFromFlags()); err != nil {
			return err
		}
		fmt.Printf("exported %d document(s) from %s\n", snap.Count(), snap.ID())
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import [src]",
	Short: "Import an archive from a local path, s3:// or http(s):// URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		col, err := openCollection(cmd)
		if err != nil {
			return err
		}
		defer col.Close()

		manifest, snap, err := backup.Import(cmd.Context(), col, args[0], s3ConfigFromFlags())
		if err != nil {
			return err
		}
		fmt.Printf("imported %d document(s) from collection %q, new head %s\n",
			manifest.Documents, manifest.Collection, snap.ID())
		return nil
	},
}

var replicateCmd = &cobra.Command{
	Use:   "replicate",
	Short: "Push the collection history to its configured replicas",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		col, err := openCollection(cmd)
		if err != nil {
			return err
		}
		defer col.Close()

		if remotes, _ := cmd.Flags().GetStringToString("remote"); len(remotes) > 0 {
			for name, url := range remotes {
				if err := col.AddReplica(name, url); err != nil {
					return err
				}
			}
		}

		results, err := col.Replicate(cmd.Context())
		if err != nil {
			return err
		}
		failed := false
		for name, pushErr := range results {
			if pushErr != nil {
				failed = true
				fmt.Printf("%s: %v\n", name, pushErr)
			} else {
				fmt.Printf("%s: ok\n", name)
			}
		}
		if failed {
			return errors.New("replication failed for at least one replica")
		}
		return nil
	},
}

// snapshotFromFlags resolves --at into a historical snapshot, defaulting to
// the current head.
func snapshotFromFlags(cmd *cobra.Command, col *db.Collection) (*db.Snapshot, error) {
	if at, _ := cmd.Flags().GetString("at"); at != "" {
		return col.At(at)
	}
	return col.Current()
}

// parseScalar interprets a flag value as bool or number when possible, so
// --eq age=25 matches numeric fields.
func parseScalar(raw string) any {
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

func init() {
	for _, cmd := range []*cobra.Command{getCmd, findCmd, keysCmd, exportCmd} {
		cmd.Flags().String("at", "", "Commit id of a historical snapshot to read instead of the head")
	}
	for _, cmd := range []*cobra.Command{putCmd, delCmd} {
		cmd.Flags().StringP("message", "m", "", "Commit message recorded with the change")
	}
	findCmd.Flags().String("key-prefix", "", "Only keys beginning with this prefix")
	findCmd.Flags().StringToString("eq", nil, "Field equality predicates, field=value")
	findCmd.Flags().StringToString("field-prefix", nil, "String field prefix predicates, field=prefix")
	historyCmd.Flags().IntP("limit", "n", 0, "Maximum number of commits to list, 0 for all")
	rollbackCmd.Flags().Int("steps", 0, "Walk back this many commits instead of naming one")
	replicateCmd.Flags().StringToString("remote", nil, "Replicas to register before pushing, name=url")
}
