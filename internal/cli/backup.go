package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cyp0633/librepeat/backup"
	"github.com/cyp0633/librepeat/calsync"
	"github.com/cyp0633/librepeat/storage"
	"github.com/cyp0633/librepeat/task"
)

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export FILE",
		Short: "Write every task to an XML backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			store, err := e.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			tasks, err := store.List(cmd.Context(), storage.Filter{})
			if err != nil {
				return err
			}

			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			if err := backup.Export(f, tasks); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(e.out, "exported %d tasks\n", len(tasks))
			return nil
		},
	}
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Load tasks from an XML backup or an iCalendar file of VTODOs",
		Long: `Files ending in .ics are read as iCalendar, anything else as an XML backup.
Tasks whose id already exists in the database are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			var tasks []task.Task
			if strings.EqualFold(filepath.Ext(args[0]), ".ics") {
				tasks, err = calsync.TasksFromCalendar(f, e.loc)
			} else {
				tasks, err = backup.Import(f, e.loc)
			}
			if err != nil {
				return err
			}

			store, err := e.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			imported, skipped := 0, 0
			for _, t := range tasks {
				err := store.Create(cmd.Context(), t)
				switch {
				case storage.IsAlreadyExists(err):
					e.logger.Warn("task already exists, skipping", "task_id", t.ID)
					skipped++
				case err != nil:
					return err
				default:
					imported++
				}
			}
			fmt.Fprintf(e.out, "imported %d tasks, skipped %d\n", imported, skipped)
			return nil
		},
	}
}
