package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"patientdocs/internal/client"
)

const defaultServer = "http://localhost:5000"

var serverURL string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "docctl: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docctl",
		Short: "Manage PDF documents on a document server",
		Long: `docctl lists, uploads, downloads and deletes PDF documents stored on a
document server. The server address comes from --server or DOCCTL_SERVER.`,
		SilenceUsage: true,
	}
	def := os.Getenv("DOCCTL_SERVER")
	if def == "" {
		def = defaultServer
	}
	cmd.PersistentFlags().StringVarP(&serverURL, "server", "s", def, "Document server base URL")
	cmd.AddCommand(
		newListCmd(),
		newUploadCmd(),
		newDownloadCmd(),
		newDeleteCmd(),
	)
	return cmd
}

func newView() *client.View {
	return client.NewView(client.New(serverURL))
}

// report prints the view's banner: successes on out, failures on stderr.
func report(cmd *cobra.Command, v *client.View) {
	b := v.Banner()
	if b == nil {
		return
	}
	if b.Error {
		fmt.Fprintln(cmd.ErrOrStderr(), b.Text)
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), b.Text)
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid document id %q", arg)
	}
	return id, nil
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored documents, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := newView()
			if err := v.Refresh(cmd.Context()); err != nil {
				report(cmd, v)
				return err
			}

			docs := v.Documents()
			if len(docs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No documents uploaded yet.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSIZE\tUPLOADED")
			for _, d := range docs {
				fmt.Fprintf(tw, "%d\t%s\t%.2f KB\t%s\n",
					d.ID, d.OriginalName, float64(d.FileSize)/1024, humanize.Time(d.CreatedAt))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s document(s)\n", humanize.Comma(int64(len(docs))))
			return nil
		},
	}
}

func newUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file.pdf>",
		Short: "Upload a PDF file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v := newView()
			if !v.Select(args[0]) {
				report(cmd, v)
				return fmt.Errorf("%s is not a PDF file", args[0])
			}

			id, err := v.Upload(cmd.Context())
			report(cmd, v)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "id: %d\n", id)
			return nil
		},
	}
}

func newDownloadCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "download <id>",
		Short: "Download a document under its original name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			v := newView()
			path, err := v.Download(cmd.Context(), id, outDir)
			if err != nil {
				report(cmd, v)
				return err
			}
			if st, err := os.Stat(path); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%s)\n", path, humanize.IBytes(uint64(st.Size())))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "output-dir", "o", ".", "Directory to save the file in")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a document and its stored file",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Are you sure you want to delete document %d?", id)) {
				fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
				return nil
			}

			v := newView()
			err = v.Delete(cmd.Context(), id)
			report(cmd, v)
			return err
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
