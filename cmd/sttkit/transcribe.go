package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	apperrors "github.com/kbukum/sttkit/errors"
	"github.com/kbukum/sttkit/transcription"
)

type transcribeFlags struct {
	providers []string
	retries   int
	timeout   time.Duration
	backoff   time.Duration
	policy    string
	format    string
	json      bool
	attempts  bool
}

func newTranscribeCommand(ctx *commandContext) *cobra.Command {
	var flags transcribeFlags

	cmd := &cobra.Command{
		Use:   "transcribe <audio-path>",
		Short: "Transcribe an audio file, falling back across providers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			planCfg := transcription.PlanConfig{
				Providers: flags.providers,
				Timeout:   flags.timeout,
				Backoff:   flags.backoff,
			}
			if cmd.Flags().Changed("retries") {
				planCfg.MaxRetries = &flags.retries
			}
			return runTranscribe(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, planCfg, args[0], flags)
		},
	}

	cmd.Flags().StringArrayVarP(&flags.providers, "provider", "p", nil, "Provider to try, in order (repeatable)")
	cmd.Flags().IntVar(&flags.retries, "retries", 0, "Retries per provider after the first attempt")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 0, "Per-attempt timeout")
	cmd.Flags().DurationVar(&flags.backoff, "backoff", 0, "Initial delay between retries")
	cmd.Flags().StringVar(&flags.policy, "policy", "", "Selection policy: priority, availability_first, format_aware")
	cmd.Flags().StringVar(&flags.format, "format", "", "Audio format; derived from the file extension when empty")
	cmd.Flags().BoolVar(&flags.json, "json", false, "Print the job as JSON")
	cmd.Flags().BoolVar(&flags.attempts, "attempts", false, "Print the attempt table after a successful run")

	return cmd
}

func runTranscribe(ctx context.Context, stdout, stderr io.Writer, cfg *AppConfig, planCfg transcription.PlanConfig, path string, flags transcribeFlags) error {
	audio, err := transcription.NewAudioReference(path, flags.format)
	if err != nil {
		return err
	}
	plan, err := planCfg.Merge(cfg.Transcription.DefaultPlan).Plan()
	if err != nil {
		return err
	}

	reg, err := newRegistry(ctx, cfg.Transcription)
	if err != nil {
		return err
	}
	defer reg.Close(context.WithoutCancel(ctx))

	executor, _, err := newExecutor(cfg.Transcription, reg)
	if err != nil {
		return err
	}
	if flags.policy != "" {
		policy, err := transcription.PolicyByName(flags.policy, flags.format)
		if err != nil {
			return err
		}
		executor = executor.Using(policy)
	}

	job, err := executor.Execute(ctx, transcription.NewJob(audio, plan))
	if err != nil {
		return err
	}

	if flags.json {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(job.View()); err != nil {
			return err
		}
	} else if job.Status() == transcription.StatusCompleted {
		fmt.Fprintln(stdout, job.Transcript())
	}

	if job.Status() == transcription.StatusCompleted {
		if flags.attempts {
			fmt.Fprintln(stderr, renderAttempts(job))
		}
		return nil
	}

	if !flags.json {
		fmt.Fprintln(stderr, renderAttempts(job))
	}
	if appErr := job.Err(); appErr != nil {
		return appErr
	}
	return apperrors.Internal(errors.New("transcription did not complete"))
}

func renderAttempts(job *transcription.Job) string {
	attempts := job.Attempts()
	rows := make([][]string, 0, len(attempts))
	for _, a := range attempts {
		result := "ok"
		if a.Err != nil {
			result = a.Err.Error()
		}
		rows = append(rows, []string{
			a.Provider,
			strconv.Itoa(a.Number),
			a.Duration.Round(time.Millisecond).String(),
			result,
		})
	}
	return renderTable(
		[]string{"Provider", "Attempt", "Duration", "Result"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft},
	)
}
