package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/plannetic/compliance-cli/internal/model"
	"github.com/plannetic/compliance-cli/internal/records"
)

var (
	recordsJSON     bool
	recordsNotes    string
	recordsEvidence string
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List and edit compliance records",
}

var recordsListCmd = &cobra.Command{
	Use:   "list <record-type>",
	Short: "List one record per subject, virtual where never edited",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rt := model.RecordType(args[0])
		s, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		merged, err := records.NewMaterializer(s).Reconcile(ctx, rt)
		if err != nil {
			return err
		}

		if recordsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(merged)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RECORD ID\tSUBJECT\tOVERALL\tUPDATED")
		for _, rec := range merged {
			updated := "-"
			if !rec.UpdatedAt.IsZero() {
				updated = rec.UpdatedAt.Format("2006-01-02")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rec.ID, rec.SubjectID, rec.Overall, updated)
		}
		return w.Flush()
	},
}

var recordsSetStatusCmd = &cobra.Command{
	Use:   "set-status <record-type> <record-id> <category> <status>",
	Short: "Set one category's status and recompute the aggregate",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		rt := model.RecordType(args[0])
		s, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		rec, err := records.NewMaterializer(s).SetStatus(ctx, rt, args[1], args[2], args[3])
		if err != nil {
			return err
		}

		fmt.Printf("Record %s: %s = %s (overall %s)\n", rec.ID, args[2], args[3], rec.Overall)
		return nil
	},
}

var recordsUpdateCmd = &cobra.Command{
	Use:   "update <record-type> <record-id>",
	Short: "Update a record's notes or evidence",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		update := records.FieldUpdate{}
		if cmd.Flags().Changed("notes") {
			update.Notes = &recordsNotes
		}
		if cmd.Flags().Changed("evidence") {
			update.Evidence = &recordsEvidence
		}
		if update.Notes == nil && update.Evidence == nil {
			return eris.New("records: nothing to update, pass --notes or --evidence")
		}

		rt := model.RecordType(args[0])
		s, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		rec, err := records.NewMaterializer(s).UpdateField(ctx, rt, args[1], update)
		if err != nil {
			return err
		}

		fmt.Printf("Record %s updated (overall %s)\n", rec.ID, rec.Overall)
		return nil
	},
}

func init() {
	recordsListCmd.Flags().BoolVar(&recordsJSON, "json", false, "emit JSON instead of a table")
	recordsUpdateCmd.Flags().StringVar(&recordsNotes, "notes", "", "replace the record's notes")
	recordsUpdateCmd.Flags().StringVar(&recordsEvidence, "evidence", "", "replace the record's evidence reference")

	recordsCmd.AddCommand(recordsListCmd)
	recordsCmd.AddCommand(recordsSetStatusCmd)
	recordsCmd.AddCommand(recordsUpdateCmd)
	rootCmd.AddCommand(recordsCmd)
}
