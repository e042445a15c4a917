package db

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"
)

// MigrateHelp is printed for "posture migrate help" and on usage errors.
const MigrateHelp = `Usage: posture migrate <action> [args]

Actions:
  up                 apply every pending migration
  down               roll back the most recent migration
  status             show applied and latest versions
  version <n>        migrate up or down to version n
  force <n>          set the version without running SQL (recovery only)
  baseline <n>       mark version n applied on a hand-built schema
  help               show this message
`

// RunMigrateCommand runs one migrate action against the database at dbPath
// using the embedded migrations. Output goes to out; force reads its
// confirmation from in.
func RunMigrateCommand(args []string, dbPath string, out io.Writer, in io.Reader) error {
	if len(args) < 1 {
		fmt.Fprint(out, MigrateHelp)
		return fmt.Errorf("missing migrate action")
	}
	action := args[0]
	if action == "help" {
		fmt.Fprint(out, MigrateHelp)
		return nil
	}

	database, err := OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()
	migrations := MigrationsFS()

	switch action {
	case "up":
		if err := database.MigrateUp(migrations); err != nil {
			return err
		}
		return printVersion(out, database, migrations)

	case "down":
		if err := database.MigrateDown(migrations); err != nil {
			return err
		}
		return printVersion(out, database, migrations)

	case "status":
		st, err := database.Status(migrations)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Current version: %d\nLatest version: %d\nDirty: %v\nSchema migrations table exists: %v\n",
			st.Version, st.Latest, st.Dirty, st.TableExists)
		if st.Dirty {
			fmt.Fprintln(out, "\nThe last migration failed part way. Inspect the database, then run: posture migrate force <version>")
		} else if st.Outstanding > 0 {
			fmt.Fprintf(out, "\n%d outstanding migration(s); run: posture migrate up\n", st.Outstanding)
		}
		return nil

	case "version":
		v, err := versionArg(args)
		if err != nil {
			return err
		}
		if err := database.MigrateTo(migrations, uint(v)); err != nil {
			return err
		}
		return printVersion(out, database, migrations)

	case "force":
		v, err := versionArg(args)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Forcing migration version to %d. This only records the version; no SQL runs.\nContinue? [y/N]: ", v)
		answer, _ := bufio.NewReader(in).ReadString('\n')
		if a := strings.TrimSpace(answer); a != "y" && a != "Y" {
			fmt.Fprintln(out, "Aborted")
			return nil
		}
		if err := database.MigrateForce(migrations, v); err != nil {
			return err
		}
		return printVersion(out, database, migrations)

	case "baseline":
		v, err := versionArg(args)
		if err != nil {
			return err
		}
		if err := database.BaselineAtVersion(uint(v)); err != nil {
			return err
		}
		fmt.Fprintf(out, "Baselined at version %d\n", v)
		return nil
	}

	fmt.Fprintf(out, "Unknown migrate action: %s\n\n%s", action, MigrateHelp)
	return fmt.Errorf("unknown migrate action %q", action)
}

func versionArg(args []string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("usage: posture migrate %s <version>", args[0])
	}
	v, err := strconv.Atoi(args[1])
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid version number %q", args[1])
	}
	return v, nil
}

func printVersion(out io.Writer, database *DB, migrations fs.FS) error {
	v, dirty, err := database.MigrateVersion(migrations)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Current version: %d (dirty: %v)\n", v, dirty)
	return nil
}
