package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/alidrive-go/internal/adrive"
)

func newShareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "share",
		Short: "Create, manage and browse share links",
	}

	cmd.AddCommand(newShareCreateCmd())
	cmd.AddCommand(newShareUpdateCmd())
	cmd.AddCommand(newShareCancelCmd())
	cmd.AddCommand(newShareListCmd())
	cmd.AddCommand(newShareInfoCmd())
	cmd.AddCommand(newShareTokenCmd())
	cmd.AddCommand(newShareLsCmd())
	cmd.AddCommand(newShareURLCmd())
	cmd.AddCommand(newShareSaveCmd())

	return cmd
}

func newShareCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <remote-path>...",
		Short: "Share files or folders",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runShareCreate,
	}

	cmd.Flags().String("name", "", "share name")
	cmd.Flags().String("password", "", "extraction code")
	cmd.Flags().String("description", "", "share description")
	cmd.Flags().String("expire", "", `lifetime such as "72h" or "7d"; "0" never expires (default from config)`)

	return cmd
}

func newShareUpdateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <share-id>",
		Short: "Change the settings of a share",
		Long:  "Change the settings of a share. Only flags that are given are sent; --password \"\" removes the password.",
		Args:  cobra.ExactArgs(1),
		RunE:  runShareUpdate,
	}

	cmd.Flags().String("name", "", "new share name")
	cmd.Flags().String("password", "", "new extraction code")
	cmd.Flags().String("description", "", "new description")
	cmd.Flags().String("expire", "", `new lifetime from now, such as "72h" or "7d"`)

	return cmd
}

func newShareCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <share-id>...",
		Short: "Revoke shares",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runShareCancel,
	}
}

func newShareListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your shares",
		Args:  cobra.NoArgs,
		RunE:  runShareList,
	}

	cmd.Flags().Bool("include-canceled", false, "include revoked shares")
	cmd.Flags().Int("page-size", 0, "entries per request (default 100)")

	return cmd
}

func newShareInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <share-id>",
		Short: "Show the public summary of a share",
		Args:  cobra.ExactArgs(1),
		RunE:  runShareInfo,
	}
}

func newShareTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <share-id>",
		Short: "Print a share token",
		Args:  cobra.ExactArgs(1),
		RunE:  runShareToken,
	}

	addSharePasswordFlag(cmd)

	return cmd
}

func newShareLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls <share-id> [parent-file-id]",
		Short: "List a folder inside a share",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runShareLs,
	}

	addSharePasswordFlag(cmd)

	return cmd
}

func newShareURLCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "url <share-id> <file-id>",
		Short: "Print a temporary download link for a file inside a share",
		Args:  cobra.ExactArgs(2),
		RunE:  runShareURL,
	}

	addSharePasswordFlag(cmd)

	return cmd
}

func newShareSaveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save <share-id> <file-id>...",
		Short: "Copy entries of a share into your drive",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runShareSave,
	}

	addSharePasswordFlag(cmd)
	cmd.Flags().String("to", "/", "drive folder to save into")
	cmd.Flags().String("name", "", "new name (single entry only)")

	return cmd
}

func addSharePasswordFlag(cmd *cobra.Command) {
	cmd.Flags().String("password", "", "extraction code of the share")
}

// parseExpire parses a share lifetime. It accepts Go durations plus a "d"
// suffix for whole days. "0" means no expiry.
func parseExpire(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid expiration %q", s)
		}

		return time.Duration(n) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid expiration %q", s)
	}

	return d, nil
}

// expirationAt converts a lifetime into the absolute timestamp the API
// takes. Zero stays zero, which the request omits.
func expirationAt(now time.Time, d time.Duration) adrive.Time {
	if d == 0 {
		return adrive.Time{}
	}

	return adrive.NewTime(now.Add(d))
}

func runShareCreate(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd)
	ctx := cmd.Context()
	flags := cmd.Flags()

	lifetime := cc.Cfg.Share.ShareExpiration()

	if flags.Changed("expire") {
		v, _ := flags.GetString("expire")

		d, err := parseExpire(v)
		if err != nil {
			return err
		}

		lifetime = d
	}

	s, err := newSession(ctx, cc)
	if err != nil {
		return err
	}

	fileIDs := make([]string, len(args))
	for i, arg := range args {
		f, err := resolveRemote(ctx, s.Client, s.driveID(), arg)
		if err != nil {
			return fmt.Errorf("resolving %q: %w", arg, err)
		}

		fileIDs[i] = f.FileID
	}

	name, _ := flags.GetString("name")
	password, _ := flags.GetString("password")
	description, _ := flags.GetString("description")

	link, err := s.Client.CreateShareLink(ctx, fileIDs, func(r *adrive.CreateShareLinkRequest) {
		r.DriveID = s.driveID()
		r.ShareName = name
		r.SharePwd = password
		r.Description = description
		r.Expiration = expirationAt(time.Now(), lifetime)
	})
	if err != nil {
		return fmt.Errorf("creating share: %w", err)
	}

	if cc.Flags.JSON {
		return printJSON(cc.Out, link)
	}

	printShareLink(cc.Out, link)

	return nil
}

func runShareUpdate(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd)
	ctx := cmd.Context()

	req, err := shareUpdateFromFlags(cmd, args[0], time.Now())
	if err != nil {
		return err
	}

	s, err := newSession(ctx, cc)
	if err != nil {
		return err
	}

	link, err := s.Client.UpdateShareLinkWith(ctx, req)
	if err != nil {
		return fmt.Errorf("updating share %s: %w", args[0], err)
	}

	if cc.Flags.JSON {
		return printJSON(cc.Out, link)
	}

	printShareLink(cc.Out, link)

	return nil
}

// shareUpdateFromFlags builds an update request carrying only the flags the
// user set.
func shareUpdateFromFlags(cmd *cobra.Command, shareID string, now time.Time) (*adrive.UpdateShareLinkRequest, error) {
	flags := cmd.Flags()
	req := adrive.NewUpdateShareLinkRequest(shareID)
	changed := false

	if flags.Changed("name") {
		req.ShareName, _ = flags.GetString("name")
		changed = true
	}

	if flags.Changed("description") {
		req.Description, _ = flags.GetString("description")
		changed = true
	}

	if flags.Changed("password") {
		pwd, _ := flags.GetString("password")
		req.SharePwd = adrive.String(pwd)
		changed = true
	}

	if flags.Changed("expire") {
		v, _ := flags.GetString("expire")

		d, err := parseExpire(v)
		if err != nil {
			return nil, err
		}

		if d == 0 {
			return nil, errors.New("--expire must be positive when updating a share")
		}

		req.Expiration = expirationAt(now, d)
		changed = true
	}

	if !changed {
		return nil, errors.New("nothing to update: set at least one of --name, --password, --description, --expire")
	}

	return req, nil
}

func runShareCancel(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd)
	ctx := cmd.Context()

	s, err := newSession(ctx, cc)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		if err := s.Client.CancelShareLink(ctx, args[0]); err != nil {
			return fmt.Errorf("canceling share %s: %w", args[0], err)
		}

		cc.Statusf("Canceled %s.\n", args[0])

		return nil
	}

	results, err := s.Client.BatchCancelShareLinks(ctx, args)
	if err != nil {
		return fmt.Errorf("canceling shares: %w", err)
	}

	failed := 0

	for i := range results {
		if err := results[i].Err(); err != nil {
			failed++
			cc.Statusf("Failed %s: %v\n", args[i], err)

			continue
		}

		cc.Statusf("Canceled %s.\n", args[i])
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d cancellations failed", failed, len(args))
	}

	return nil
}

func runShareList(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd)
	ctx := cmd.Context()

	includeCanceled, _ := cmd.Flags().GetBool("include-canceled")
	pageSize, _ := cmd.Flags().GetInt("page-size")

	s, err := newSession(ctx, cc)
	if err != nil {
		return err
	}

	links, err := s.Client.ListShareLinks(ctx, func(r *adrive.ListShareLinksRequest) {
		r.IncludeCanceled = includeCanceled
		r.OrderBy = cc.Cfg.Share.OrderBy
		r.OrderDirection = cc.Cfg.Share.OrderDirection

		if pageSize > 0 {
			r.Limit = pageSize
		}
	})
	if err != nil {
		return fmt.Errorf("listing shares: %w", err)
	}

	if cc.Flags.JSON {
		return printJSON(cc.Out, links)
	}

	printShareTable(cc.Out, links)

	return nil
}

func printShareTable(w io.Writer, links []adrive.ShareLink) {
	rows := make([][]string, 0, len(links))
	for i := range links {
		l := &links[i]

		status := l.Status
		if l.Expired {
			status = "expired"
		}

		rows = append(rows, []string{l.ShareID, status, formatExpiry(l.Expiration), l.ShareURL, l.ShareName})
	}

	printTable(w, []string{"ID", "STATUS", "EXPIRES", "URL", "NAME"}, rows)
}

func printShareLink(w io.Writer, l *adrive.ShareLink) {
	fmt.Fprintf(w, "ID:       %s\n", l.ShareID)
	fmt.Fprintf(w, "Name:     %s\n", l.ShareName)
	fmt.Fprintf(w, "URL:      %s\n", l.ShareURL)

	if l.SharePwd != "" {
		fmt.Fprintf(w, "Password: %s\n", l.SharePwd)
	}

	if l.Description != "" {
		fmt.Fprintf(w, "About:    %s\n", l.Description)
	}

	fmt.Fprintf(w, "Expires:  %s\n", formatExpiry(l.Expiration))
}

func runShareInfo(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd)
	ctx := cmd.Context()

	s, err := newSession(ctx, cc)
	if err != nil {
		return err
	}

	info, err := s.Client.GetShareInfo(ctx, args[0])
	if err != nil {
		return fmt.Errorf("getting share %s: %w", args[0], err)
	}

	if cc.Flags.JSON {
		return printJSON(cc.Out, info)
	}

	fmt.Fprintf(cc.Out, "Name:     %s\n", info.ShareName)
	fmt.Fprintf(cc.Out, "Creator:  %s\n", info.CreatorName)
	fmt.Fprintf(cc.Out, "Files:    %d\n", info.FileCount)
	fmt.Fprintf(cc.Out, "Password: %t\n", info.HasPwd)
	fmt.Fprintf(cc.Out, "Expires:  %s\n", formatExpiry(info.Expiration))

	for _, fi := range info.FileInfos {
		fmt.Fprintf(cc.Out, "  %s  %s\n", fi.FileID, displayName(fi.FileName, fi.Type == adrive.TypeFolder))
	}

	return nil
}

// shareToken exchanges the share id and --password for a share token.
func shareToken(ctx context.Context, cmd *cobra.Command, s *Session, shareID string) (*adrive.ShareToken, error) {
	password, _ := cmd.Flags().GetString("password")

	tok, err := s.Client.GetShareToken(ctx, shareID, password)
	if err != nil {
		return nil, fmt.Errorf("getting share token for %s: %w", shareID, err)
	}

	return tok, nil
}

func runShareToken(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd)
	ctx := cmd.Context()

	s, err := newSession(ctx, cc)
	if err != nil {
		return err
	}

	tok, err := shareToken(ctx, cmd, s, args[0])
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		return printJSON(cc.Out, tok)
	}

	fmt.Fprintln(cc.Out, tok.ShareToken)

	return nil
}

func runShareLs(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd)
	ctx := cmd.Context()

	s, err := newSession(ctx, cc)
	if err != nil {
		return err
	}

	token, err := shareToken(ctx, cmd, s, args[0])
	if err != nil {
		return err
	}

	files, err := s.Client.ListShareFiles(ctx, args[0], token.ShareToken, func(r *adrive.ListShareFilesRequest) {
		if len(args) > 1 {
			r.ParentFileID = args[1]
		}
	})
	if err != nil {
		return fmt.Errorf("listing share %s: %w", args[0], err)
	}

	sortShareFiles(files)

	if cc.Flags.JSON {
		return printJSON(cc.Out, files)
	}

	rows := make([][]string, 0, len(files))
	for i := range files {
		f := &files[i]

		size := formatSize(f.Size)
		if f.IsFolder() {
			size = "-"
		}

		rows = append(rows, []string{size, formatTime(f.UpdatedAt.Time), f.FileID, displayName(f.Name, f.IsFolder())})
	}

	printTable(cc.Out, []string{"SIZE", "MODIFIED", "ID", "NAME"}, rows)

	return nil
}

func runShareURL(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd)
	ctx := cmd.Context()

	s, err := newSession(ctx, cc)
	if err != nil {
		return err
	}

	token, err := shareToken(ctx, cmd, s, args[0])
	if err != nil {
		return err
	}

	link, err := s.Client.GetShareDownloadURL(ctx, args[0], args[1], token.ShareToken)
	if err != nil {
		return fmt.Errorf("getting link for %s in share %s: %w", args[1], args[0], err)
	}

	if cc.Flags.JSON {
		return printJSON(cc.Out, link)
	}

	fmt.Fprintln(cc.Out, link.DownloadURL)

	return nil
}

func runShareSave(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd)
	ctx := cmd.Context()

	shareID, fileIDs := args[0], args[1:]
	to, _ := cmd.Flags().GetString("to")
	name, _ := cmd.Flags().GetString("name")

	if name != "" && len(fileIDs) > 1 {
		return errors.New("--name needs exactly one file id")
	}

	s, err := newSession(ctx, cc)
	if err != nil {
		return err
	}

	parent, err := resolveFolder(ctx, s.Client, s.driveID(), to)
	if err != nil {
		return fmt.Errorf("resolving --to %q: %w", to, err)
	}

	token, err := shareToken(ctx, cmd, s, shareID)
	if err != nil {
		return err
	}

	if len(fileIDs) == 1 {
		resp, err := s.Client.SaveShareFile(ctx, shareID, fileIDs[0], token.ShareToken, func(r *adrive.SaveShareFileRequest) {
			r.ToParentFileID = parent.FileID
			r.ToDriveID = s.driveID()
			r.NewName = name
		})
		if err != nil {
			return fmt.Errorf("saving %s: %w", fileIDs[0], err)
		}

		if cc.Flags.JSON {
			return printJSON(cc.Out, resp)
		}

		cc.Statusf("Saved %s as %s.\n", fileIDs[0], resp.FileID)

		return nil
	}

	results, err := s.Client.BatchSaveShareFiles(ctx, shareID, fileIDs, token.ShareToken, func(r *adrive.BatchSaveShareFilesRequest) {
		r.ToParentFileID = parent.FileID
		r.ToDriveID = s.driveID()
	})
	if err != nil {
		return fmt.Errorf("saving share entries: %w", err)
	}

	return reportSaves(cc, fileIDs, results)
}

func reportSaves(cc *CLIContext, fileIDs []string, results []adrive.BatchResult) error {
	failed := 0
	saved := make([]adrive.SaveShareFileResponse, 0, len(results))

	for i := range results {
		var resp adrive.SaveShareFileResponse
		if err := results[i].Decode(&resp); err != nil {
			failed++
			cc.Statusf("Failed %s: %v\n", fileIDs[i], err)

			continue
		}

		saved = append(saved, resp)
		cc.Statusf("Saved %s as %s.\n", fileIDs[i], resp.FileID)
	}

	if cc.Flags.JSON {
		if err := printJSON(cc.Out, saved); err != nil {
			return err
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d saves failed", failed, len(fileIDs))
	}

	return nil
}
