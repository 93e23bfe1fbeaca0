package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/traverse/internal/curriculum"
	"github.com/abhisek/traverse/internal/remediation"
	"github.com/abhisek/traverse/internal/render"
)

var challengeCmd = &cobra.Command{
	Use:   "challenge <path-id> <node-id>",
	Short: "Get the challenge for a lesson and start it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := buildDeps(cmd, depsOptions{})
		if err != nil {
			return err
		}
		defer d.close(cmd.Context())

		user := userFlag(cmd)
		var ch *curriculum.IssuedChallenge
		err = d.retry(cmd.Context(), func() error {
			var err error
			ch, err = d.svc.IssueChallenge(cmd.Context(), user, args[0], args[1])
			return err
		})
		if err != nil {
			return err
		}
		fmt.Print(render.Challenge(ch))
		return nil
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit <challenge-id> [answer]",
	Short: "Submit an answer to a challenge",
	Long:  "Submit an answer to a challenge. Without an answer argument the answer is read from stdin.",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		answer, err := readAnswer(cmd.InOrStdin(), args)
		if err != nil {
			return err
		}

		d, err := buildDeps(cmd, depsOptions{})
		if err != nil {
			return err
		}
		defer d.close(cmd.Context())

		user := userFlag(cmd)
		var res *curriculum.SubmitResult
		err = d.retry(cmd.Context(), func() error {
			var err error
			res, err = d.svc.SubmitAnswer(cmd.Context(), user, args[0], answer)
			return err
		})
		if err != nil {
			return err
		}
		fmt.Print(render.Submission(res))
		return nil
	},
}

var progressCmd = &cobra.Command{
	Use:   "progress <path-id>",
	Short: "Show your progress on a path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := buildDeps(cmd, depsOptions{})
		if err != nil {
			return err
		}
		defer d.close(cmd.Context())

		v, err := d.svc.GetProgress(cmd.Context(), userFlag(cmd), args[0])
		if err != nil {
			return err
		}
		width, _ := cmd.Flags().GetInt("width")
		fmt.Print(render.Progress(v, width))
		return nil
	},
}

var remediateCmd = &cobra.Command{
	Use:   "remediate <node-id>",
	Short: "Insert a remedial lesson before a blocked lesson",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := buildDeps(cmd, depsOptions{requireLLM: true})
		if err != nil {
			return err
		}
		defer d.close(cmd.Context())

		topic, _ := cmd.Flags().GetString("topic")
		user := userFlag(cmd)
		var out *remediation.Outcome
		err = d.retry(cmd.Context(), func() error {
			var err error
			out, err = d.svc.Remediate(cmd.Context(), user, args[0], topic)
			return err
		})
		if err != nil {
			return err
		}
		fmt.Print(render.Remediation(out))
		return nil
	},
}

func init() {
	progressCmd.Flags().Int("width", render.DefaultWidth, "Progress bar width")
	remediateCmd.Flags().String("topic", "", "Topic to cover (default: the grader's last suggestion)")
}

func readAnswer(r io.Reader, args []string) (string, error) {
	if len(args) > 1 {
		return args[1], nil
	}
	if f, ok := r.(*os.File); ok {
		if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
			fmt.Fprintln(os.Stderr, "Type your answer, then Ctrl-D:")
		}
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read answer: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
