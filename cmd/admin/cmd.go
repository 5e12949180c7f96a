package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"rollcall/internal/attendance"
	"rollcall/internal/calendar"
	"rollcall/internal/export"
	"rollcall/internal/records"
	"rollcall/internal/report"
	"rollcall/internal/roster"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	recs       *records.Store
	cal        *calendar.Calendar
	attendance *attendance.Service
	roster     *roster.Service
	out        io.Writer
	in         io.Reader
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  export-csv [-o FILE]                          - write the full attendance archive as CSV")
	fmt.Fprintln(cli.out, "  backup [-o FILE]                              - write a JSON backup of all data")
	fmt.Fprintln(cli.out, "  restore -i FILE                               - replace all data with a JSON backup")
	fmt.Fprintln(cli.out, "  month-grid -class ID [-year Y] [-month M] [-format csv|xlsx] [-o FILE]")
	fmt.Fprintln(cli.out, "                                                - per-student monthly attendance grid")
	fmt.Fprintln(cli.out, "  factory-reset [-yes]                          - erase every record and re-seed the roster")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	exportCmd := flag.NewFlagSet("export-csv", flag.ContinueOnError)
	exportOut := exportCmd.String("o", "", "Output file. Defaults to attendance_archive_<today>.csv.")

	backupCmd := flag.NewFlagSet("backup", flag.ContinueOnError)
	backupOut := backupCmd.String("o", "", "Output file. Defaults to system_backup_<today>.json.")

	restoreCmd := flag.NewFlagSet("restore", flag.ContinueOnError)
	restoreIn := restoreCmd.String("i", "", "Backup file to restore.")

	gridCmd := flag.NewFlagSet("month-grid", flag.ContinueOnError)
	gridClass := gridCmd.String("class", "", "Class id, e.g. myp1-a.")
	gridYear := gridCmd.Int("year", 0, "Year. Defaults to the current year.")
	gridMonth := gridCmd.Int("month", 0, "Month 1-12. Defaults to the current month.")
	gridFormat := gridCmd.String("format", "csv", "csv or xlsx.")
	gridOut := gridCmd.String("o", "", "Output file. Defaults to Attendance_<class>_<month>_<year>.<format>.")

	resetCmd := flag.NewFlagSet("factory-reset", flag.ContinueOnError)
	resetYes := resetCmd.Bool("yes", false, "Skip the confirmation prompt.")

	for _, fs := range []*flag.FlagSet{exportCmd, backupCmd, restoreCmd, gridCmd, resetCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "export-csv":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.exportCSV(ctx, *exportOut)
	case "backup":
		if err := backupCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.backup(ctx, *backupOut)
	case "restore":
		if err := restoreCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *restoreIn == "" {
			restoreCmd.Usage()
			return errHelp
		}
		return cli.restore(ctx, *restoreIn)
	case "month-grid":
		if err := gridCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *gridClass == "" {
			gridCmd.Usage()
			return errHelp
		}
		return cli.monthGrid(ctx, *gridClass, *gridYear, *gridMonth, *gridFormat, *gridOut)
	case "factory-reset":
		if err := resetCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.factoryReset(ctx, *resetYes)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) exportCSV(ctx context.Context, out string) error {
	logs, err := cli.attendance.All(ctx)
	if err != nil {
		return err
	}
	classes, err := cli.recs.Classes(ctx)
	if err != nil {
		return err
	}
	if out == "" {
		out = export.ArchiveFilename(cli.cal.Today())
	}
	return cli.writeFile(out, func(w io.Writer) error {
		return export.WriteArchiveCSV(w, cli.cal, logs, classes)
	})
}

func (cli *commandLine) backup(ctx context.Context, out string) error {
	snap, err := cli.recs.Snapshot(ctx, cli.cal.Now())
	if err != nil {
		return err
	}
	if out == "" {
		out = export.BackupFilename(cli.cal.Today())
	}
	return cli.writeFile(out, func(w io.Writer) error {
		return export.WriteBackup(w, snap)
	})
}

func (cli *commandLine) restore(ctx context.Context, in string) error {
	f, err := os.Open(in)
	if err != nil {
		return err
	}
	defer f.Close()
	snap, err := export.ReadBackup(f)
	if err != nil {
		return err
	}
	if err := cli.attendance.Restore(ctx, snap); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "restored %d logs and %d incidents from %s\n", len(snap.Logs), len(snap.Disciplinary), in)
	return nil
}

func (cli *commandLine) monthGrid(ctx context.Context, classID string, year, month int, format, out string) error {
	today := cli.cal.Today()
	if year == 0 {
		year = today.Year
	}
	if month == 0 {
		month = int(today.Month)
	}
	if month < 1 || month > 12 {
		return fmt.Errorf("month must be 1-12 (got %d)", month)
	}
	if format != "csv" && format != "xlsx" {
		return fmt.Errorf("format must be csv or xlsx (got %q)", format)
	}
	cls, err := cli.roster.Class(ctx, classID)
	if err != nil {
		return err
	}
	logs, err := cli.attendance.ForMonth(ctx, year, time.Month(month))
	if err != nil {
		return err
	}
	grid := report.BuildMonthGrid(cli.cal, logs, cls, year, time.Month(month))
	if out == "" {
		out = export.MonthGridFilename(grid, format)
	}
	if format == "xlsx" {
		buf, _, err := export.MonthGridXLSX(grid)
		if err != nil {
			return err
		}
		return cli.writeFile(out, func(w io.Writer) error {
			_, err := buf.WriteTo(w)
			return err
		})
	}
	return cli.writeFile(out, func(w io.Writer) error {
		return export.WriteMonthGridCSV(w, grid)
	})
}

func (cli *commandLine) factoryReset(ctx context.Context, yes bool) error {
	if !yes {
		fmt.Fprint(cli.out, "This erases all attendance, incidents and settings. Type RESET to continue: ")
		line, err := bufio.NewReader(cli.in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}
		if strings.TrimSpace(line) != "RESET" {
			fmt.Fprintln(cli.out, "aborted")
			return nil
		}
	}
	if err := cli.recs.Reset(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "factory reset complete")
	return nil
}

// writeFile writes to path, or to cli.out when path is "-".
func (cli *commandLine) writeFile(path string, write func(io.Writer) error) error {
	if path == "-" {
		return write(cli.out)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "wrote %s\n", path)
	return nil
}
