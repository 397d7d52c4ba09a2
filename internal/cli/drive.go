package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrd/ca-drive/internal/api"
	"github.com/mrd/ca-drive/internal/config"
	"github.com/mrd/ca-drive/internal/drive"
	"github.com/mrd/ca-drive/internal/events"
	"github.com/mrd/ca-drive/internal/journal"
	"github.com/mrd/ca-drive/internal/localfs"
	"github.com/mrd/ca-drive/internal/logging"
	"github.com/mrd/ca-drive/internal/models"
	"github.com/mrd/ca-drive/internal/pathutil"
	"github.com/mrd/ca-drive/internal/progress"
	"github.com/mrd/ca-drive/internal/transfer"
	"github.com/mrd/ca-drive/internal/tui"
	"github.com/mrd/ca-drive/internal/util/filter"
	"github.com/mrd/ca-drive/internal/util/sanitize"
	ustr "github.com/mrd/ca-drive/internal/util/strings"
)

func newDriveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drive",
		Short: "Browse and manage a client's drive",
		Long: `Commands for a client's document drive.

Paths are slash separated folder names starting below Root, for example
"FY - 2024-25/April". Month prefixes like "01-" may be omitted.`,
	}
	cmd.AddCommand(
		newDriveLsCmd(),
		newDriveTreeCmd(),
		newDriveUploadCmd(),
		newDriveRmCmd(),
		newDriveRmdirCmd(),
		newDriveMkdirCmd(),
		newDriveGetCmd(),
		newDriveBrowseCmd(),
	)
	return cmd
}

// locate resolves --path, or --year when no path is given, against snap.
func locate(snap models.Snapshot, path, year string) (drive.State, error) {
	if path != "" {
		return drive.Resolve(snap, path)
	}
	if year != "" {
		return drive.Reduce(drive.NewState(), drive.SyncToYear{Year: year}, snap)
	}
	return drive.NewState(), nil
}

// moveTo replays s on the explorer, one folder at a time from root.
func moveTo(ex *drive.Explorer, s drive.State) error {
	if _, err := ex.GoToBreadcrumb(0); err != nil {
		return err
	}
	for _, c := range s.Breadcrumbs[1:] {
		if _, err := ex.Enter(*c.ID); err != nil {
			return err
		}
	}
	return nil
}

// listing is the ls result for json and yaml output.
type listing struct {
	ClientID string          `json:"clientId" yaml:"clientId"`
	Path     string          `json:"path" yaml:"path"`
	FolderID *string         `json:"folderId" yaml:"folderId"`
	Folders  []models.Folder `json:"folders" yaml:"folders"`
	Files    []models.File   `json:"files" yaml:"files"`
}

func newDriveLsCmd() *cobra.Command {
	var path, year, include, exclude, search, kinds string

	cmd := &cobra.Command{
		Use:   "ls <client-id>",
		Short: "List a folder",
		Long: `List the folders and files of one folder. Folders are sorted with fiscal
years newest first and months in calendar order; files keep upload order.

Examples:
  ca-drive drive ls 65f1c0
  ca-drive drive ls 65f1c0 --year "FY - 2024-25"
  ca-drive drive ls 65f1c0 --path "FY - 2024-25/April" --include "*.pdf"
  ca-drive drive ls 65f1c0 --path "FY - 2024-25/April" --kind image,pdf -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := getAPIClient()
			if err != nil {
				return err
			}
			snap, err := client.GetAllData(GetContext(), args[0])
			if err != nil {
				return err
			}
			state, err := locate(snap, path, year)
			if err != nil {
				return err
			}

			out := listing{
				ClientID: args[0],
				Path:     state.String(),
				FolderID: state.CurrentFolderID,
				Folders:  drive.VisibleFolders(snap, state.CurrentFolderID),
				Files: filter.ApplyToFiles(drive.VisibleFiles(snap, state.CurrentFolderID), filter.Config{
					Include: filter.ParsePatternList(include),
					Exclude: filter.ParsePatternList(exclude),
					Search:  filter.ParsePatternList(search),
					Kinds:   filter.ParseKinds(kinds),
				}),
			}

			return render(cmd.OutOrStdout(), outputFormat, out, func(tw *tabwriter.Writer) {
				fmt.Fprintf(tw, "%s  (%s, %s)\n\n", out.Path,
					ustr.Count(len(out.Folders), "folder"), ustr.Count(len(out.Files), "file"))
				row(tw, "TYPE", "NAME", "ID", "SIZE", "DATE")
				for _, f := range out.Folders {
					row(tw, "DIR", drive.DisplayName(f.Name), f.ID, "-", shortDate(f.ModifiedAt()))
				}
				for _, f := range out.Files {
					row(tw, f.TypeLabel(), f.FileName, f.ID, ustr.FormatBytes(f.FileSize), shortDate(f.CreatedAt))
				}
			})
		},
	}

	cmd.Flags().StringVarP(&path, "path", "p", "", "Folder path below Root")
	cmd.Flags().StringVarP(&year, "year", "y", "", "Fiscal year folder to list")
	cmd.Flags().StringVar(&include, "include", "", "Include only files matching these glob patterns (comma-separated)")
	cmd.Flags().StringVar(&exclude, "exclude", "", "Exclude files matching these glob patterns (comma-separated)")
	cmd.Flags().StringVar(&search, "search", "", "Include only files containing all of these terms (comma-separated)")
	cmd.Flags().StringVar(&kinds, "kind", "", "Include only these kinds: pdf, spreadsheet, image, other")
	return cmd
}

func newDriveTreeCmd() *cobra.Command {
	var showFiles bool

	cmd := &cobra.Command{
		Use:   "tree <client-id>",
		Short: "Print the folder tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := getAPIClient()
			if err != nil {
				return err
			}
			snap, err := client.GetAllData(GetContext(), args[0])
			if err != nil {
				return err
			}
			if outputFormat != outputTable {
				return render(cmd.OutOrStdout(), outputFormat, snap, nil)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "Root")
			printTree(w, snap, nil, "", showFiles, map[string]bool{})
			return nil
		},
	}
	cmd.Flags().BoolVarP(&showFiles, "files", "f", false, "Include files")
	return cmd
}

// printTree draws the children of parent. seen guards against cycles in bad data.
func printTree(w io.Writer, snap models.Snapshot, parent *string, indent string, showFiles bool, seen map[string]bool) {
	folders := drive.VisibleFolders(snap, parent)
	var files []models.File
	if showFiles {
		files = drive.VisibleFiles(snap, parent)
	}
	n := len(folders) + len(files)
	i := 0
	branch := func() (string, string) {
		i++
		if i == n {
			return "└── ", "    "
		}
		return "├── ", "│   "
	}
	for _, f := range folders {
		b, next := branch()
		fmt.Fprintf(w, "%s%s%s\n", indent, b, drive.DisplayName(f.Name))
		if seen[f.ID] {
			continue
		}
		seen[f.ID] = true
		id := f.ID
		printTree(w, snap, &id, indent+next, showFiles, seen)
	}
	for _, f := range files {
		b, _ := branch()
		fmt.Fprintf(w, "%s%s%s (%s)\n", indent, b, f.FileName, ustr.FormatBytes(f.FileSize))
	}
}

func newDriveUploadCmd() *cobra.Command {
	var path, year, category string
	var workers int
	var noJournal bool

	cmd := &cobra.Command{
		Use:   "upload <client-id> <file|dir> [file|dir...]",
		Short: "Upload files into a folder",
		Long: `Upload images, PDFs and Excel sheets (10 MiB each at most) into a folder.
A directory contributes its visible files, not its subdirectories.
Files are uploaded in parallel; one failure does not stop the others.
Each outcome is recorded in the upload journal (see 'ca-drive uploads').

The command exits non-zero when any file was rejected or failed.

Examples:
  ca-drive drive upload 65f1c0 --path "FY - 2024-25/April" gstr1.pdf gstr3b.pdf
  ca-drive drive upload 65f1c0 --path "FY - 2024-25/April" ~/scans/*.jpg --workers 8`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := getAPIClient()
			if err != nil {
				return err
			}
			if path == "" && year == "" {
				return errors.New("--path is required (uploads into Root are not allowed)")
			}
			if workers <= 0 {
				workers = cfg.UploadWorkers
			}

			files, err := localFiles(args[1:])
			if err != nil {
				return err
			}

			var jnl drive.UploadJournal
			if !noJournal && cfg.JournalPath != "" {
				j, err := journal.Open(cfg.JournalPath)
				if err != nil {
					GetLogger().Warn().Err(err).Msg("Upload journal unavailable")
				} else {
					defer j.Close()
					jnl = j
				}
			}

			ctx := GetContext()
			ex := drive.NewExplorer(client, drive.Options{
				ClientID: args[0],
				Workers:  workers,
				Logger:   GetLogger(),
				Journal:  jnl,
				Category: category,
			})
			if err := ex.Load(ctx); err != nil {
				return err
			}
			state, err := locate(ex.Snapshot(), path, year)
			if err != nil {
				return err
			}
			if err := moveTo(ex, state); err != nil {
				return err
			}

			ui := progress.NewUploadUI(len(files), state.String())
			ex.SetObserver(ui)
			report, err := ex.Upload(ctx, files)
			ui.Wait()
			if err != nil {
				return err
			}
			return printUploadReport(cmd.OutOrStdout(), report)
		},
	}

	cmd.Flags().StringVarP(&path, "path", "p", "", "Destination folder path below Root")
	cmd.Flags().StringVarP(&year, "year", "y", "", "Upload into this fiscal year folder when --path is not given")
	cmd.Flags().StringVar(&category, "category", "", "Document category (default GENERAL)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Parallel uploads (default from config)")
	cmd.Flags().BoolVar(&noJournal, "no-journal", false, "Do not record outcomes in the upload journal")
	return cmd
}

// localFiles resolves and sniffs each argument. A directory contributes its
// visible regular files.
func localFiles(paths []string) ([]drive.LocalFile, error) {
	var files []drive.LocalFile
	for _, p := range paths {
		abs, err := pathutil.ResolveAbsolutePath(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		entries, err := localfs.UploadCandidates(abs, localfs.ListOptions{})
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			f, err := drive.NewLocalFile(e.Path)
			if err != nil {
				return nil, err
			}
			files = append(files, f)
		}
	}
	return files, nil
}

func printUploadReport(w io.Writer, r *drive.UploadReport) error {
	up := r.Count(models.UploadStatusUploaded)
	rej := r.Count(models.UploadStatusRejected)
	failed := r.Count(models.UploadStatusFailed)

	if outputFormat != outputTable {
		type result struct {
			File   string `json:"file" yaml:"file"`
			Status string `json:"status" yaml:"status"`
			FileID string `json:"fileId,omitempty" yaml:"fileId,omitempty"`
			Error  string `json:"error,omitempty" yaml:"error,omitempty"`
		}
		out := struct {
			BatchID string   `json:"batchId" yaml:"batchId"`
			Folder  string   `json:"folder" yaml:"folder"`
			Results []result `json:"results" yaml:"results"`
		}{BatchID: r.BatchID, Folder: r.FolderPath}
		for _, res := range r.Results {
			item := result{File: res.File.Name, Status: string(res.Status), FileID: res.FileID}
			if res.Err != nil {
				item.Error = res.Err.Error()
			}
			out.Results = append(out.Results, item)
		}
		if err := render(w, outputFormat, out, nil); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(w, "\n%d uploaded, %d rejected, %d failed → %s\n", up, rej, failed, r.FolderPath)
		for _, res := range r.Results {
			if res.Err != nil {
				fmt.Fprintf(w, "  ✗ %s (%s): %v\n", res.File.Name, res.Status, res.Err)
			}
		}
		if r.RefetchErr != nil {
			fmt.Fprintf(w, "warning: refresh after upload failed: %v\n", r.RefetchErr)
		}
	}

	if rej+failed > 0 {
		return fmt.Errorf("%s not uploaded (batch %s)", ustr.Count(rej+failed, "file"), r.BatchID)
	}
	return nil
}

func newDriveRmCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "rm <file-id> [file-id...]",
		Short: "Move files to the bin",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := getAPIClient()
			if err != nil {
				return err
			}
			if !yes && !confirm(stdinReader, os.Stderr, fmt.Sprintf("Move %s to the bin?", ustr.Count(len(args), "file"))) {
				return nil
			}
			var errs []error
			for _, id := range args {
				if err := client.DeleteFile(GetContext(), id); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", id, err))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ %s moved to bin\n", id)
			}
			return errors.Join(errs...)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newDriveRmdirCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "rmdir <folder-id>",
		Short: "Move a folder and its contents to the bin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := getAPIClient()
			if err != nil {
				return err
			}
			if !yes && !confirm(stdinReader, os.Stderr, "Move folder "+args[0]+" and its contents to the bin?") {
				return nil
			}
			if err := client.DeleteFolder(GetContext(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s moved to bin\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newDriveMkdirCmd() *cobra.Command {
	var parent, path string

	cmd := &cobra.Command{
		Use:   "mkdir <client-id> <name>",
		Short: "Create a folder",
		Long: `Create a folder under --parent (a folder ID) or --path. Without either the
folder is created at the top level.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := getAPIClient()
			if err != nil {
				return err
			}
			name := sanitize.Name(args[1])
			if name == "" {
				return drive.ErrEmptyName
			}
			ctx := GetContext()
			req := models.CreateFolderRequest{Name: name, ClientID: args[0]}
			switch {
			case parent != "":
				req.ParentFolderID = &parent
			case path != "":
				snap, err := client.GetAllData(ctx, args[0])
				if err != nil {
					return err
				}
				state, err := drive.Resolve(snap, path)
				if err != nil {
					return err
				}
				req.ParentFolderID = state.CurrentFolderID
			}

			f, err := client.CreateFolder(ctx, req)
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), outputFormat, f, func(tw *tabwriter.Writer) {
				row(tw, "✓ Created", f.Name, f.ID)
			})
		},
	}
	cmd.Flags().StringVar(&parent, "parent", "", "Parent folder ID")
	cmd.Flags().StringVarP(&path, "path", "p", "", "Parent folder path below Root")
	return cmd
}

func newDriveGetCmd() *cobra.Command {
	var dest, folderID string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "get <client-id> [file-id...]",
		Short: "Download files",
		Long: `Download files by ID, or every file directly inside --folder.

Files with the same name get their ID appended. Existing local files are
kept unless --overwrite is given.

Examples:
  ca-drive drive get 65f1c0 66a2b1 66a2b2 -d ./april
  ca-drive drive get 65f1c0 --folder 66a000 -d ./april`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := getAPIClient()
			if err != nil {
				return err
			}
			if len(args) == 1 && folderID == "" {
				return errors.New("give file IDs or --folder")
			}
			ctx := GetContext()
			snap, err := client.GetAllData(ctx, args[0])
			if err != nil {
				return err
			}

			var files []models.File
			if folderID != "" {
				files = drive.VisibleFiles(snap, &folderID)
			}
			for _, id := range args[1:] {
				f, ok := snap.FileByID(id)
				if !ok {
					return fmt.Errorf("file %s: %w", id, api.ErrNotFound)
				}
				files = append(files, f)
			}
			if len(files) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No files to download")
				return nil
			}

			destDir, err := pathutil.ResolveAbsolutePath(dest)
			if err != nil {
				return err
			}
			return downloadFiles(ctx, cmd.OutOrStdout(), cfg, client.DownloadURL, files, destDir, overwrite)
		},
	}
	cmd.Flags().StringVarP(&dest, "dest", "d", ".", "Destination directory")
	cmd.Flags().StringVar(&folderID, "folder", "", "Download every file in this folder")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing local files")
	return cmd
}

func downloadFiles(ctx context.Context, w io.Writer, cfg *config.Config, resolve transfer.URLResolver, files []models.File, destDir string, overwrite bool) error {
	reqs, renamed, err := transfer.Plan(files, destDir, resolve, overwrite)
	if err != nil {
		return err
	}
	if renamed > 0 {
		GetLogger().Warn().Int("files", renamed).Msg("Duplicate names: file IDs appended")
	}

	d, err := transfer.NewDownloader(cfg, GetLogger())
	if err != nil {
		return err
	}

	var errs []error
	for _, req := range reqs {
		res, err := d.Download(ctx, req, progress.NewReporter())
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			errs = append(errs, fmt.Errorf("%s: %w", req.FileName, err))
			continue
		}
		fmt.Fprintf(w, "✓ %s (%s)\n", res.Path, ustr.FormatBytes(res.Bytes))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s failed:\n%w", ustr.Count(len(errs), "download"), errors.Join(errs...))
	}
	return nil
}

func newDriveBrowseCmd() *cobra.Command {
	var year string

	cmd := &cobra.Command{
		Use:   "browse <client-id>",
		Short: "Open the interactive drive explorer",
		Long: `Open a terminal explorer for one client's drive.

Keys:
  Enter      open folder / show file
  Backspace  up one level
  0-9        jump to breadcrumb
  Tab        switch between folders and files
  r          refresh
  d          delete (asks first)
  u          upload a file or directory
  n          new folder
  y          next fiscal year
  v          toggle grid/list view (saved in config)
  q          quit

Logs are written to ` + config.LogDirectory() + `.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, cfg, err := getAPIClient()
			if err != nil {
				return err
			}
			if year == "" {
				year = cfg.DefaultYear
			}

			bus := events.NewEventBus(256)
			defer bus.Close()

			logFile, err := openTUILog()
			if err != nil {
				return err
			}
			defer logFile.Close()
			log := logging.NewLogger("tui", bus)
			log.SetOutput(logFile)

			var jnl drive.UploadJournal
			if cfg.JournalPath != "" {
				if j, err := journal.Open(cfg.JournalPath); err == nil {
					defer j.Close()
					jnl = j
				} else {
					log.Warn().Err(err).Msg("Upload journal unavailable")
				}
			}

			ex := drive.NewExplorer(client, drive.Options{
				ClientID: args[0],
				Workers:  cfg.UploadWorkers,
				EventBus: bus,
				Logger:   log,
				Journal:  jnl,
			})
			ex.SetActiveYear(year)

			app := tui.NewApp(ex, bus, cfg, configPath(), log)
			return app.Run(GetContext())
		},
	}
	cmd.Flags().StringVarP(&year, "year", "y", "", "Fiscal year to open (default from config)")
	return cmd
}

func openTUILog() (*os.File, error) {
	if err := config.EnsureLogDirectory(); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	path := filepath.Join(config.LogDirectory(), "browse.log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, nil
}

func shortDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}
