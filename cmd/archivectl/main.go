// Command archivectl exports and imports archive backups against the configured store.
//
// Usage:
//
//	archivectl export [-o file]
//	archivectl import [-mode merge|overwrite] [-yes] file
//
// The store is configured with the same ARTARCHIVE_* environment as the server.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/fx"

	"github.com/Rogue-Bear-Innovations/art-archive/internal/backup"
	"github.com/Rogue-Bear-Innovations/art-archive/internal/config"
	"github.com/Rogue-Bear-Innovations/art-archive/internal/db"
	"github.com/Rogue-Bear-Innovations/art-archive/internal/logger"
	"github.com/Rogue-Bear-Innovations/art-archive/internal/metrics"
	"github.com/Rogue-Bear-Innovations/art-archive/internal/models"
	"github.com/Rogue-Bear-Innovations/art-archive/internal/service"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes one subcommand and returns the process exit code. The fx app is started before the
// command and stopped after it so lifecycle hooks such as the logger sync run.
func run(args []string, in io.Reader, out, errOut io.Writer) int {
	if len(args) < 1 || (args[0] != "export" && args[0] != "import") {
		usage(errOut)
		return 2
	}

	var gallery *service.Gallery
	app := fx.New(
		config.Module,
		logger.Module,
		metrics.Module,
		db.Module,
		service.Module,
		fx.Populate(&gallery),
	)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStart()
	if err := app.Start(startCtx); err != nil {
		fmt.Fprintf(errOut, "start: %v\n", err)
		return 1
	}
	defer func() {
		stopCtx, cancelStop := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelStop()
		if err := app.Stop(stopCtx); err != nil {
			fmt.Fprintf(errOut, "stop: %v\n", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var err error
	switch args[0] {
	case "export":
		err = runExport(ctx, gallery, args[1:], out, errOut)
	case "import":
		err = runImport(ctx, gallery, args[1:], in, out, errOut)
	}
	if err != nil {
		fmt.Fprintf(errOut, "%s: %v\n", args[0], err)
		return 1
	}
	return 0
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: archivectl export [-o file] | import [-mode merge|overwrite] [-yes] file")
}

func runExport(ctx context.Context, gallery *service.Gallery, args []string, out, errOut io.Writer) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(errOut)
	output := fs.String("o", "", "output file, defaults to the conventional backup name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	b, err := gallery.Export(ctx)
	if err != nil {
		return err
	}

	name := *output
	if name == "" {
		exportedAt, err := time.Parse(models.TimestampLayout, b.ExportedAt)
		if err != nil {
			exportedAt = time.Now()
		}
		name = backup.FileName(exportedAt)
	}

	f, err := os.Create(name)
	if err != nil {
		return errors.Wrap(err, "create output file")
	}
	defer f.Close()

	if err := backup.Encode(f, b); err != nil {
		return err
	}
	fmt.Fprintf(out, "exported %d arts, %d categories, %d tag categories to %s\n",
		len(b.Arts), len(b.Categories), len(b.TagCategories), name)
	return nil
}

func runImport(ctx context.Context, gallery *service.Gallery, args []string, in io.Reader, out, errOut io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(errOut)
	mode := fs.String("mode", service.ModeMerge, "merge adds missing records, overwrite replaces everything")
	yes := fs.Bool("yes", false, "skip the overwrite confirmation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("exactly one backup file is required")
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return errors.Wrap(err, "read backup file")
	}

	var confirm service.ConfirmFunc = service.Confirmed
	if !*yes {
		confirm = promptConfirm(in, out)
	}

	res, err := gallery.Import(ctx, data, *mode, confirm)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "import %s (%s): imported %d/%d/%d, skipped %d/%d/%d (arts/categories/tag categories)\n",
		res.ID, res.Mode,
		res.Imported.Arts, res.Imported.Categories, res.Imported.TagCategories,
		res.Skipped.Arts, res.Skipped.Categories, res.Skipped.TagCategories)
	return nil
}

// promptConfirm asks on out and reads a y/N answer from in.
func promptConfirm(in io.Reader, out io.Writer) service.ConfirmFunc {
	return func(_ context.Context, c backup.Counts) bool {
		fmt.Fprintf(out, "This replaces ALL stored data with %d arts, %d categories and %d tag categories. Continue? [y/N] ",
			c.Arts, c.Categories, c.TagCategories)
		answer, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && answer == "" {
			return false
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes"
	}
}
