package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/plannetic/compliance-cli/internal/model"
)

var subjectsCmd = &cobra.Command{
	Use:   "subjects",
	Short: "Manage the subject list",
}

var subjectsImportCmd = &cobra.Command{
	Use:   "import <csv-file>",
	Short: "Import subjects from a CSV file (columns: id,name,email)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		subjects, err := readSubjectsCSV(args[0])
		if err != nil {
			return err
		}
		if len(subjects) == 0 {
			return eris.New("subjects: no rows found in CSV")
		}

		s, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := s.UpsertSubjects(ctx, subjects)
		if err != nil {
			return err
		}

		zap.L().Info("subjects imported",
			zap.Int("parsed", len(subjects)),
			zap.Int64("upserted", n),
		)
		fmt.Printf("Imported %d subject(s)\n", n)
		return nil
	},
}

var subjectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known subjects",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		s, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		subjects, err := s.ListSubjects(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tEMAIL")
		for _, subject := range subjects {
			fmt.Fprintf(w, "%s\t%s\t%s\n", subject.ID, subject.Name, subject.Email)
		}
		return w.Flush()
	},
}

// readSubjectsCSV parses a subject CSV. A header row is detected by a
// literal "id" in the first column and skipped.
func readSubjectsCSV(path string) ([]model.Subject, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "subjects: open csv")
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var subjects []model.Subject
	now := time.Now().UTC()
	line := 0
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "subjects: read csv")
		}
		line++

		if line == 1 && strings.EqualFold(strings.TrimSpace(row[0]), "id") {
			continue
		}
		if len(row) < 2 {
			return nil, eris.Errorf("subjects: line %d: expected at least id,name", line)
		}

		subject := model.Subject{
			ID:        strings.TrimSpace(row[0]),
			Name:      strings.TrimSpace(row[1]),
			CreatedAt: now,
		}
		if len(row) > 2 {
			subject.Email = strings.TrimSpace(row[2])
		}
		if subject.ID == "" {
			return nil, eris.Errorf("subjects: line %d: empty subject id", line)
		}
		subjects = append(subjects, subject)
	}
	return subjects, nil
}

func init() {
	subjectsCmd.AddCommand(subjectsImportCmd)
	subjectsCmd.AddCommand(subjectsListCmd)
	rootCmd.AddCommand(subjectsCmd)
}
