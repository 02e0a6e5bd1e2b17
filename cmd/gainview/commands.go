package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/gainview/internal/analysis"
	"github.com/verte-zerg/gainview/internal/api"
	"github.com/verte-zerg/gainview/internal/chart"
	"github.com/verte-zerg/gainview/internal/model"
	"github.com/verte-zerg/gainview/internal/output"
	"github.com/verte-zerg/gainview/internal/transcript"
)

const defaultHistoryLimit = 20

func newLoginCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the analysis service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			in := bufio.NewReader(cmd.InOrStdin())
			if email, err = promptValue(in, "Email: ", email); err != nil {
				return err
			}
			password, err := promptSecret(cmd.InOrStdin(), in, "Password: ")
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd, a.settings.Timeout)
			defer cancel()
			user, err := a.auth.Login(ctx, email, password)
			if err != nil {
				return err
			}
			logErrf("Logged in as %s\n", displayName(user.Name, user.Email))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

func newSignupCmd() *cobra.Command {
	var name, email string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			in := bufio.NewReader(cmd.InOrStdin())
			if name, err = promptValue(in, "Username: ", name); err != nil {
				return err
			}
			if email, err = promptValue(in, "Email: ", email); err != nil {
				return err
			}
			password, err := promptSecret(cmd.InOrStdin(), in, "Password: ")
			if err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd, a.settings.Timeout)
			defer cancel()
			user, err := a.auth.Signup(ctx, name, email, password)
			if err != nil {
				return err
			}
			logErrf("Signed up as %s\n", displayName(user.Name, user.Email))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "username")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.auth.Logout(cmd.Context()); err != nil {
				return err
			}
			logErrln("Logged out")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireAuth(); err != nil {
				return err
			}
			user := a.session.State().User
			_, err = fmt.Fprintln(cmd.OutOrStdout(), displayName(user.Name, user.Email))
			return err
		},
	}
}

func newUploadCmd() *cobra.Command {
	var analyze bool
	var outputFlag string
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a transcript (.json or .csv)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := output.ParseFormat(outputFlag)
			if err != nil {
				return err
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireAuth(); err != nil {
				return err
			}
			file, err := transcript.Load(args[0])
			if err != nil {
				return err
			}

			if !analyze {
				ctx, cancel := withTimeout(cmd, a.settings.Timeout)
				defer cancel()
				_, uploadErr := a.client.Upload(ctx, file)
				if uploadErr != nil {
					uploadErr = &analysis.UploadError{File: file.Name, Err: uploadErr, Standalone: true}
				}
				if err := a.store.InsertUpload(cmd.Context(), analysis.NewUploadRecord(file, uploadErr, time.Now())); err != nil {
					a.log.Warn("failed to record upload", "file", file.Name, "error", err)
				}
				if uploadErr != nil {
					return uploadErr
				}
				logErrln(analysis.UploadedMessage)
				return nil
			}

			wf := a.newWorkflow()
			wf.SelectFile(file)
			if err := wf.Upload(cmd.Context()); err != nil {
				return err
			}
			snap := wf.Snapshot()
			if !snap.Ready() {
				return fmt.Errorf("analysis unavailable for %s", file.Name)
			}
			logErrln(analysis.AnalyzedMessage(file.Name))
			return writeSnapshot(cmd.OutOrStdout(), snap, format, a.settings.PlotHeight)
		},
	}
	cmd.Flags().BoolVar(&analyze, "analyze", false, "fetch gain series, topics and progress after uploading")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "table", "output format: table, json or yaml")
	return cmd
}

func writeSnapshot(w io.Writer, snap analysis.Snapshot, format output.Format, plotHeight int) error {
	if format == output.FormatTable {
		if _, err := fmt.Fprintf(w, "Analysis ready for: %s\n", snap.ActiveFile); err != nil {
			return err
		}
	}
	if err := output.Gain(w, snap.Gain, format, chart.Options{Height: plotHeight}); err != nil {
		return err
	}
	if err := output.Topics(w, snap.Topics, format); err != nil {
		return err
	}
	return output.Progress(w, snap.Progress, format)
}

func newGainCmd() *cobra.Command {
	var (
		fileFlag   string
		outputFlag string
		pngPath    string
		plotHeight int
	)
	cmd := &cobra.Command{
		Use:   "gain",
		Short: "Show the gain series of the uploaded transcripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := output.ParseFormat(outputFlag)
			if err != nil {
				return err
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireAuth(); err != nil {
				return err
			}
			applyIntConfig(cmd, "plot-height", &plotHeight, &a.settings.PlotHeight)
			if plotHeight <= 0 {
				return fmt.Errorf("--plot-height must be > 0")
			}

			ctx, cancel := withTimeout(cmd, a.settings.Timeout)
			defer cancel()
			data, err := a.client.GainSeries(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch gain series: %w", err)
			}
			if fileFlag != "" {
				file, ok := data.Get(fileFlag)
				if !ok {
					return fmt.Errorf("no gain series for %q", fileFlag)
				}
				data.Files = []string{fileFlag}
				data.ByName = map[string]model.GainFile{fileFlag: file}
			}

			if pngPath != "" {
				name, ok := data.First()
				if !ok {
					return chart.ErrNoPoints
				}
				file, _ := data.Get(name)
				if err := chart.ExportPNG(pngPath, "Gain: "+name, file.Points, chart.DefaultImageWidth, chart.DefaultImageHeight); err != nil {
					return err
				}
				logErrf("Wrote %s\n", pngPath)
			}
			return output.Gain(cmd.OutOrStdout(), data, format, chart.Options{Height: plotHeight})
		},
	}
	cmd.Flags().StringVar(&fileFlag, "file", "", "only show this file")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "table", "output format: table, json or yaml")
	cmd.Flags().StringVar(&pngPath, "png", "", "also render the first (or --file) series to a PNG image")
	cmd.Flags().IntVar(&plotHeight, "plot-height", defaultPlotHeight, "chart height in rows")
	return cmd
}

func newTopicsCmd() *cobra.Command {
	var outputFlag string
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "List detected topics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := output.ParseFormat(outputFlag)
			if err != nil {
				return err
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireAuth(); err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd, a.settings.Timeout)
			defer cancel()
			topics, err := a.client.Topics(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch topics: %w", err)
			}
			return output.Topics(cmd.OutOrStdout(), topics, format)
		},
	}
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "table", "output format: table, json or yaml")
	return cmd
}

func newProgressCmd() *cobra.Command {
	var outputFlag string
	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show the predicted completion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := output.ParseFormat(outputFlag)
			if err != nil {
				return err
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireAuth(); err != nil {
				return err
			}
			ctx, cancel := withTimeout(cmd, a.settings.Timeout)
			defer cancel()
			var pct *int
			fraction, err := a.client.Progress(ctx)
			if err != nil {
				a.log.Warn("failed to fetch progress", "error", err)
				logErrf("failed to fetch progress: %v\n", err)
			} else {
				v := api.ProgressPercent(fraction)
				pct = &v
			}
			return output.Progress(cmd.OutOrStdout(), pct, format)
		},
	}
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "table", "output format: table, json or yaml")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var (
		last       int
		outputFlag string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show local upload history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if last <= 0 {
				return fmt.Errorf("--last must be > 0")
			}
			format, err := output.ParseFormat(outputFlag)
			if err != nil {
				return err
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			records, err := a.store.ListUploads(cmd.Context(), last)
			if err != nil {
				return err
			}
			return output.History(cmd.OutOrStdout(), records, format)
		},
	}
	cmd.Flags().IntVar(&last, "last", defaultHistoryLimit, "number of uploads to show")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "table", "output format: table, json or yaml")
	return cmd
}

// promptValue returns current when set, otherwise reads one line from in.
func promptValue(in *bufio.Reader, label, current string) (string, error) {
	if strings.TrimSpace(current) != "" {
		return current, nil
	}
	logErrf("%s", label)
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// promptSecret reads a password without echo when src is a terminal.
func promptSecret(src io.Reader, in *bufio.Reader, label string) (string, error) {
	file, ok := src.(*os.File)
	if !ok || !term.IsTerminal(int(file.Fd())) {
		return promptValue(in, label, "")
	}
	fd := int(file.Fd())
	logErrf("%s", label)
	raw, err := term.ReadPassword(fd)
	logErrln()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(raw), nil
}

func displayName(name, email string) string {
	switch {
	case name != "" && email != "":
		return fmt.Sprintf("%s <%s>", name, email)
	case name != "":
		return name
	default:
		return email
	}
}
