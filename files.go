package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/alidrive-go/internal/adrive"
	"github.com/tonimelisma/alidrive-go/internal/config"
	"github.com/tonimelisma/alidrive-go/internal/transfer"
)

// idPrefix marks a remote argument as a file id rather than a path.
const idPrefix = "id:"

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [path]",
		Short: "List files and folders",
		Long:  "List a drive folder. Paths are slash separated from the drive root; id:<file_id> names an entry by id.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLs,
	}
}

func newStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <path>",
		Short: "Display file or folder metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  runStat,
	}
}

func newMkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
		RunE:  runMkdir,
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <remote-path> [local-path]",
		Short: "Download a file",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runGet,
	}
}

func newPutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "put <local-path>...",
		Short: "Upload files",
		Long: `Upload one or more local files into a drive folder.

Content the service already holds is linked without transferring it. An
interrupted upload resumes from the last confirmed part when run again.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runPut,
	}

	cmd.Flags().String("to", "/", "remote folder to upload into")
	cmd.Flags().String("name", "", "remote name (single file only)")

	return cmd
}

func newURLCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "url <remote-path>",
		Short: "Print a temporary download link",
		Args:  cobra.ExactArgs(1),
		RunE:  runURL,
	}

	cmd.Flags().Int("expire-sec", 0, "link lifetime in seconds (default 14400)")

	return cmd
}

// cleanRemotePath strips leading/trailing slashes, returns "" for root.
func cleanRemotePath(path string) string {
	return strings.Trim(path, "/")
}

// splitParentAndName splits a remote path into parent path and name.
// For "foo/bar/baz" returns ("foo/bar", "baz").
// For "baz" returns ("", "baz").
func splitParentAndName(path string) (string, string) {
	clean := cleanRemotePath(path)
	idx := strings.LastIndex(clean, "/")

	if idx < 0 {
		return "", clean
	}

	return clean[:idx], clean[idx+1:]
}

// fileLookup is the part of *adrive.Client that resolves remote arguments.
type fileLookup interface {
	GetFile(ctx context.Context, driveID, fileID string) (*adrive.File, error)
	GetFileByPath(ctx context.Context, driveID, filePath string) (*adrive.File, error)
}

// resolveRemote resolves a remote argument: id:<file_id>, "/" for the root,
// or a slash-separated path.
func resolveRemote(ctx context.Context, api fileLookup, driveID, arg string) (*adrive.File, error) {
	if id, ok := strings.CutPrefix(arg, idPrefix); ok {
		if id == "" {
			return nil, fmt.Errorf("empty file id in %q", arg)
		}

		return api.GetFile(ctx, driveID, id)
	}

	clean := cleanRemotePath(arg)
	if clean == "" {
		return &adrive.File{
			DriveID: driveID,
			FileID:  adrive.RootFileID,
			Name:    "/",
			Type:    adrive.TypeFolder,
		}, nil
	}

	return api.GetFileByPath(ctx, driveID, "/"+clean)
}

// resolveFolder is resolveRemote that insists on a folder.
func resolveFolder(ctx context.Context, api fileLookup, driveID, arg string) (*adrive.File, error) {
	f, err := resolveRemote(ctx, api, driveID, arg)
	if err != nil {
		return nil, err
	}

	if !f.IsFolder() {
		return nil, fmt.Errorf("%q is not a folder", arg)
	}

	return f, nil
}

func runLs(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd)
	ctx := cmd.Context()

	remotePath := "/"
	if len(args) > 0 {
		remotePath = args[0]
	}

	s, err := newSession(ctx, cc)
	if err != nil {
		return err
	}

	dir, err := resolveRemote(ctx, s.Client, s.driveID(), remotePath)
	if err != nil {
		return fmt.Errorf("resolving %q: %w", remotePath, err)
	}

	files := []adrive.File{*dir}

	if dir.IsFolder() {
		files, err = s.Client.ListFiles(ctx, dir.FileID, func(r *adrive.ListFilesRequest) {
			r.DriveID = s.driveID()
		})
		if err != nil {
			return fmt.Errorf("listing %q: %w", remotePath, err)
		}
	}

	sortFiles(files)

	if cc.Flags.JSON {
		return printJSON(cc.Out, files)
	}

	printFileTable(cc.Out, files)

	return nil
}

func printFileTable(w io.Writer, files []adrive.File) {
	rows := make([][]string, 0, len(files))
	for i := range files {
		f := &files[i]

		size := formatSize(f.Size)
		if f.IsFolder() {
			size = "-"
		}

		rows = append(rows, []string{size, formatTime(f.UpdatedAt.Time), f.FileID, displayName(f.Name, f.IsFolder())})
	}

	printTable(w, []string{"SIZE", "MODIFIED", "ID", "NAME"}, rows)
}

func runStat(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd)
	ctx := cmd.Context()

	s, err := newSession(ctx, cc)
	if err != nil {
		return err
	}

	f, err := resolveRemote(ctx, s.Client, s.driveID(), args[0])
	if err != nil {
		return fmt.Errorf("resolving %q: %w", args[0], err)
	}

	if cc.Flags.JSON {
		return printJSON(cc.Out, f)
	}

	printStat(cc.Out, f)

	return nil
}

func printStat(w io.Writer, f *adrive.File) {
	fmt.Fprintf(w, "Name:     %s\n", f.Name)
	fmt.Fprintf(w, "ID:       %s\n", f.FileID)
	fmt.Fprintf(w, "Parent:   %s\n", f.ParentFileID)
	fmt.Fprintf(w, "Type:     %s\n", f.Type)

	if !f.IsFolder() {
		fmt.Fprintf(w, "Size:     %s (%d bytes)\n", formatSize(f.Size), f.Size)
	}

	if f.ContentHash != "" {
		fmt.Fprintf(w, "Hash:     %s:%s\n", f.ContentHashName, f.ContentHash)
	}

	fmt.Fprintf(w, "Created:  %s\n", formatTime(f.CreatedAt.Time))
	fmt.Fprintf(w, "Modified: %s\n", formatTime(f.UpdatedAt.Time))
}

func runMkdir(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd)
	ctx := cmd.Context()

	parentPath, name := splitParentAndName(args[0])
	if name == "" {
		return errors.New("folder name must not be empty")
	}

	s, err := newSession(ctx, cc)
	if err != nil {
		return err
	}

	parent, err := resolveFolder(ctx, s.Client, s.driveID(), "/"+parentPath)
	if err != nil {
		return fmt.Errorf("resolving parent of %q: %w", args[0], err)
	}

	resp, err := s.Client.CreateFolder(ctx, parent.FileID, name)
	if err != nil {
		return fmt.Errorf("creating %q: %w", args[0], err)
	}

	if resp.Exist {
		cc.Statusf("Folder %s already exists (%s).\n", args[0], resp.FileID)
		return nil
	}

	cc.Statusf("Created %s (%s).\n", args[0], resp.FileID)

	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd)
	ctx := cmd.Context()

	s, err := newSession(ctx, cc)
	if err != nil {
		return err
	}

	f, err := resolveRemote(ctx, s.Client, s.driveID(), args[0])
	if err != nil {
		return fmt.Errorf("resolving %q: %w", args[0], err)
	}

	target := localTarget(f.Name, args[1:])

	d := transfer.NewDownloader(s.Transfer, transfer.DownloaderOptions{Logger: cc.Logger})

	res, err := d.DownloadToFile(ctx, f.DriveID, f.FileID, target)
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		return printJSON(cc.Out, res)
	}

	cc.Statusf("Downloaded %s to %s (%s).\n", f.Name, res.Path, formatSize(res.Size))

	if !res.HashVerified {
		cc.Statusf("Warning: content hash of %s could not be verified.\n", f.Name)
	}

	return nil
}

// localTarget picks the download destination: the explicit argument, the
// remote name inside it when it is an existing directory, or the remote
// name in the working directory.
func localTarget(remoteName string, args []string) string {
	if len(args) == 0 || args[0] == "" {
		return remoteName
	}

	if info, err := os.Stat(args[0]); err == nil && info.IsDir() {
		return filepath.Join(args[0], remoteName)
	}

	return args[0]
}

// putOutput is the JSON schema for `put --json`.
type putOutput struct {
	LocalPath string       `json:"local_path"`
	File      *adrive.File `json:"file,omitempty"`
	Rapid     bool         `json:"rapid,omitempty"`
	Resumed   bool         `json:"resumed,omitempty"`
	Error     string       `json:"error,omitempty"`
}

func runPut(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd)
	ctx := cmd.Context()

	to, _ := cmd.Flags().GetString("to")
	name, _ := cmd.Flags().GetString("name")

	if name != "" && len(args) > 1 {
		return errors.New("--name needs exactly one local file")
	}

	partSize, err := config.ParseSize(cc.Cfg.Transfers.PartSize)
	if err != nil {
		return fmt.Errorf("transfers.part_size: %w", err)
	}

	s, err := newSession(ctx, cc)
	if err != nil {
		return err
	}

	parent, err := resolveFolder(ctx, s.Client, s.driveID(), to)
	if err != nil {
		return fmt.Errorf("resolving --to %q: %w", to, err)
	}

	store := openSessionStore(ctx, cc)
	if store != nil {
		defer store.Close()
	}

	up := transfer.NewUploader(s.Transfer, s.Token, transfer.UploaderOptions{
		PartSize:      partSize,
		CheckNameMode: cc.Cfg.Transfers.CheckNameMode,
		Store:         store,
		Logger:        cc.Logger,
	})

	m := transfer.NewManager(up, nil, transfer.ManagerOptions{
		Parallel: cc.Cfg.Transfers.ParallelTransfers,
		Logger:   cc.Logger,
	})

	reqs := make([]transfer.UploadRequest, len(args))
	for i, p := range args {
		reqs[i] = transfer.UploadRequest{
			LocalPath:    p,
			DriveID:      s.driveID(),
			ParentFileID: parent.FileID,
			Name:         name,
		}
	}

	outcomes, err := m.UploadAll(ctx, reqs)
	if err != nil {
		return err
	}

	return reportUploads(cc, outcomes)
}

// openSessionStore opens the resume database. Uploads still work without
// it, they just cannot resume, so failure is only logged.
func openSessionStore(ctx context.Context, cc *CLIContext) *transfer.SessionStore {
	store, err := transfer.OpenSessionStore(ctx, config.SessionDBPath(), cc.Logger)
	if err != nil {
		cc.Logger.Warn("upload resume disabled", slog.String("error", err.Error()))
		return nil
	}

	return store
}

func reportUploads(cc *CLIContext, outcomes []transfer.UploadOutcome) error {
	failed := 0
	out := make([]putOutput, 0, len(outcomes))

	for _, o := range outcomes {
		po := putOutput{LocalPath: o.Request.LocalPath}

		switch {
		case o.Err != nil:
			failed++
			po.Error = o.Err.Error()
			cc.Statusf("Failed %s: %v\n", o.Request.LocalPath, o.Err)
		case o.Result != nil:
			po.File = o.Result.File
			po.Rapid = o.Result.Rapid
			po.Resumed = o.Result.Resumed
			cc.Statusf("Uploaded %s as %s (%s)%s\n",
				o.Request.LocalPath, o.Result.File.Name, formatSize(o.Result.Size), uploadNote(o.Result))
		}

		out = append(out, po)
	}

	if cc.Flags.JSON {
		if err := printJSON(cc.Out, out); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(outcomes))
	}

	return nil
}

func uploadNote(r *transfer.UploadResult) string {
	switch {
	case r.Rapid:
		return ", already on server"
	case r.Resumed:
		return ", resumed"
	default:
		return ""
	}
}

func runURL(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd)
	ctx := cmd.Context()

	expireSec, _ := cmd.Flags().GetInt("expire-sec")

	s, err := newSession(ctx, cc)
	if err != nil {
		return err
	}

	f, err := resolveRemote(ctx, s.Client, s.driveID(), args[0])
	if err != nil {
		return fmt.Errorf("resolving %q: %w", args[0], err)
	}

	link, err := s.Client.GetDownloadURLWith(ctx, &adrive.GetDownloadURLRequest{
		DriveID:   f.DriveID,
		FileID:    f.FileID,
		ExpireSec: expireSec,
	})
	if err != nil {
		return fmt.Errorf("getting link for %q: %w", args[0], err)
	}

	if cc.Flags.JSON {
		return printJSON(cc.Out, link)
	}

	fmt.Fprintln(cc.Out, link.URL)

	return nil
}
