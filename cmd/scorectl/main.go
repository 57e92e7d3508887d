// Command scorectl scores response files and validates calibrations offline.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/psychometric-engine/internal/domain"
	"github.com/fairyhunter13/psychometric-engine/internal/scoring"
)

// exitErr carries a process exit code through cobra's error path.
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

func codeError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, "Error:", ee.msg)
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var calibrationPath string
	root := &cobra.Command{
		Use:           "scorectl",
		Short:         "Score assessment responses and inspect calibrations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&calibrationPath, "calibration", "", "Calibration YAML (default: built-in reference bank)")

	engine := func() (*scoring.Engine, error) {
		cal := scoring.ReferenceCalibration()
		if calibrationPath != "" {
			loaded, err := scoring.LoadCalibrationFile(calibrationPath)
			if err != nil {
				return nil, codeError(2, "%v", err)
			}
			cal = loaded
		}
		return scoring.NewEngine(cal)
	}

	root.AddCommand(newValidateCmd(), newScoreCmd(engine), newQuestionsCmd(engine), newDumpReferenceCmd())
	return root
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <calibration.yaml>",
		Short: "Check a calibration file and print its version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cal, err := scoring.LoadCalibrationFile(args[0])
			if err != nil {
				return codeError(2, "%v", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok name=%s version=%s items=%d estimator=%s\n",
				cal.Name, cal.Version(), len(cal.Items), cal.Estimator.Method)
			return nil
		},
	}
}

func newScoreCmd(engine func() (*scoring.Engine, error)) *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "score <responses.json|->",
		Short: "Score a JSON array of {questionId, value} responses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := engine()
			if err != nil {
				return err
			}
			responses, err := readResponses(cmd.InOrStdin(), args[0])
			if err != nil {
				return codeError(2, "reading responses: %v", err)
			}
			out, err := e.ScoreWire(context.Background(), typ, responses)
			if err != nil {
				var ide *domain.InsufficientDataError
				if errors.As(err, &ide) {
					return codeError(3, "insufficient data: %d answered primary items, %d required", ide.Actual, ide.Required)
				}
				return codeError(2, "%v", err)
			}
			for _, d := range out.Dropped {
				fmt.Fprintf(cmd.ErrOrStderr(), "dropped %s: %s\n", d.QuestionID, d.Kind)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out.Result)
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "Assessment tier (default: core)")
	return cmd
}

func newQuestionsCmd(engine func() (*scoring.Engine, error)) *cobra.Command {
	var typ, seed string
	cmd := &cobra.Command{
		Use:   "questions",
		Short: "Print the question list for a tier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := engine()
			if err != nil {
				return err
			}
			var sp *string
			if cmd.Flags().Changed("seed") {
				sp = &seed
			}
			qs, err := e.StartAssessment(sp, typ)
			if err != nil {
				return codeError(2, "%v", err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(qs)
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "Assessment tier (default: core)")
	cmd.Flags().StringVar(&seed, "seed", "", "Shuffle seed; the same seed yields the same order")
	return cmd
}

func newDumpReferenceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump-reference",
		Short: "Print the built-in reference calibration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := scoring.ReferenceCalibration().Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(raw)
			return err
		},
	}
}

// readResponses accepts either a bare array or an object with a responses field.
func readResponses(stdin io.Reader, path string) ([]domain.WireResponse, error) {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	var list []domain.WireResponse
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var wrapped struct {
		Responses []domain.WireResponse `json:"responses"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Responses, nil
}
