package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"caseflow/internal/transition"
	"caseflow/pkg/caseapi"
	"caseflow/pkg/config"
	"caseflow/pkg/logging"
)

type app struct {
	cfg       config.Config
	staffID   string
	staffRole string
	verbose   bool
}

func (a *app) client() (*caseapi.Client, error) {
	level := "warn"
	if a.verbose {
		level = "debug"
	}
	logger, err := logging.New("dev", level)
	if err != nil {
		logger = zap.NewNop()
	}
	return caseapi.New(caseapi.Options{
		BaseURL:   a.cfg.APIURL,
		Token:     a.cfg.APIToken,
		StaffID:   a.staffID,
		StaffRole: a.staffRole,
		Logger:    logger,
	})
}

func (a *app) now() time.Time {
	loc := a.cfg.AgencyLocation
	if loc == nil {
		loc = time.UTC
	}
	return time.Now().In(loc)
}

func newRootCommand(cfg config.Config) *cobra.Command {
	a := &app{cfg: cfg}

	root := &cobra.Command{
		Use:           "stagectl",
		Short:         "Change case stages through the case-management API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&a.cfg.APIURL, "api", cfg.APIURL, "API base URL (CASEFLOW_API_URL)")
	root.PersistentFlags().StringVar(&a.staffID, "staff", "", "dev staff id, used when CASEFLOW_API_TOKEN is unset")
	root.PersistentFlags().StringVar(&a.staffRole, "role", "case_manager", "dev staff role")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log API calls")

	root.AddCommand(
		newStagesCommand(a),
		newChangeCommand(a),
		newApprovalsCommand(a),
		newResolveCommand(a, "approve"),
		newResolveCommand(a, "reject"),
	)
	return root
}

func newStagesCommand(a *app) *cobra.Command {
	var selectable bool
	cmd := &cobra.Command{
		Use:   "stages <pipeline>",
		Short: "List a pipeline's stages in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			cat, err := c.Stages(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			items := cat.Stages()
			if selectable {
				items = cat.Selectable()
			}
			out := cmd.OutOrStdout()
			for _, s := range items {
				status := ""
				if !s.IsActive {
					status = " (inactive)"
				}
				fmt.Fprintf(out, "%3d  %-36s  %s%s\n", s.Order, s.ID, s.Label, status)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&selectable, "selectable", false, "only stages that can be transitioned to")
	return cmd
}

type changeFlags struct {
	date   string
	clock  string
	reason string
	dryRun bool
}

func newChangeCommand(a *app) *cobra.Command {
	var f changeFlags
	cmd := &cobra.Command{
		Use:   "change <case-id> <stage-id>",
		Short: "Move a case to another stage",
		Long: `Move a case to another stage. Without --date the change is effective now.
Moving to an earlier stage needs --reason and is queued for admin approval.
A past --date (or an earlier --time today) also needs --reason.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.change(cmd, args[0], args[1], f)
		},
	}
	cmd.Flags().StringVar(&f.date, "date", "", "effective date, YYYY-MM-DD")
	cmd.Flags().StringVar(&f.clock, "time", "", "effective time of day, HH:MM[:SS] (requires --date)")
	cmd.Flags().StringVar(&f.reason, "reason", "", "reason for the change")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "evaluate without submitting")
	return cmd
}

func (a *app) change(cmd *cobra.Command, caseID, targetID string, f changeFlags) error {
	if f.clock != "" && f.date == "" {
		return errors.New("--time requires --date")
	}

	c, err := a.client()
	if err != nil {
		return err
	}
	view, err := c.GetCase(cmd.Context(), caseID)
	if err != nil {
		return err
	}
	cat, err := c.Stages(cmd.Context(), view.Case.PipelineID)
	if err != nil {
		return err
	}

	d := transition.NewDialog(caseID, cat, view.Case.CurrentStageID(), a.now)
	if _, err := d.SelectTarget(targetID); err != nil {
		return err
	}
	if f.date != "" {
		date, err := transition.ParseDate(f.date)
		if err != nil {
			return err
		}
		_, _ = d.SetEffectiveNow(false)
		_, _ = d.SetDate(&date)
		if f.clock != "" {
			clock, err := transition.ParseClock(f.clock)
			if err != nil {
				return err
			}
			_, _ = d.SetClock(&clock)
		}
	}
	ev, err := d.SetReason(f.reason)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printEvaluation(out, ev, view)
	if !ev.CanSubmit() {
		for _, p := range ev.Problems {
			fmt.Fprintf(out, "  - %s: %s\n", p.Code, p.Message)
		}
		return ev.Problems
	}
	if f.dryRun {
		_ = d.Cancel()
		return nil
	}

	res, err := d.Submit(cmd.Context(), c)
	if err != nil {
		return err
	}
	switch res.Status {
	case transition.StatusPendingApproval:
		fmt.Fprintf(out, "queued for admin approval (request %s)\n", res.RequestID)
	default:
		fmt.Fprintln(out, "applied")
	}
	return nil
}

func printEvaluation(w io.Writer, ev transition.Evaluation, view caseapi.CaseView) {
	var flags []string
	if !ev.Known {
		flags = append(flags, "current stage unknown")
	}
	if ev.Classification.IsRegression {
		flags = append(flags, "regression")
	}
	if ev.Classification.IsBackdated {
		flags = append(flags, "backdated")
	}
	if ev.Policy.RequiresApproval {
		flags = append(flags, "requires approval")
	}
	if ev.Policy.ReasonRequired {
		flags = append(flags, "reason required")
	}
	if len(flags) == 0 {
		flags = append(flags, "forward")
	}
	fmt.Fprintf(w, "%s (%s): %s\n", view.Case.DisplayID, view.Case.FullName, strings.Join(flags, ", "))
	if view.PendingRequestID != nil {
		fmt.Fprintf(w, "  note: request %s is already pending for this case\n", *view.PendingRequestID)
	}
}

func newApprovalsCommand(a *app) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "approvals",
		Short: "List stage change requests (admin)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			items, err := c.ListApprovals(cmd.Context(), status)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range items {
				from := "-"
				if r.FromStageID != nil {
					from = *r.FromStageID
				}
				fmt.Fprintf(out, "%s  case=%s  %s -> %s  by=%s  %q\n", r.ID, r.CaseID, from, r.ToStageID, r.RequestedBy, r.Reason)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "pending", "pending, approved or rejected")
	return cmd
}

func newResolveCommand(a *app, action string) *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   action + " <request-id>",
		Short: strings.ToUpper(action[:1]) + action[1:] + " a stage change request (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			resolve := c.Approve
			if action == "reject" {
				resolve = c.Reject
			}
			r, err := resolve(cmd.Context(), args[0], note)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", r.ID, r.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&note, "note", "", "note for the requester (required to reject)")
	return cmd
}
