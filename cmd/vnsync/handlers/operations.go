package handlers

import (
	"context"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/imamik/vnsync/internal/reconcile"
	"github.com/imamik/vnsync/internal/trigger"
)

// reportView is the printed form of a reconcile.Report.
type reportView struct {
	Operation string                 `yaml:"operation"`
	Duration  string                 `yaml:"duration"`
	Orphans   int                    `yaml:"orphans,omitempty"`
	Summary   map[string]int         `yaml:"summary"`
	Nodes     []reconcile.NodeResult `yaml:"nodes,omitempty"`
	Error     string                 `yaml:"error,omitempty"`
}

// Sync runs a one-shot sync of entity id and prints the report.
func Sync(ctx context.Context, w io.Writer, configPath, entity string, id int64) error {
	return runOperation(ctx, w, configPath, trigger.ActionSync, entity, id)
}

// Delete runs a one-shot delete of entity id and prints the report.
func Delete(ctx context.Context, w io.Writer, configPath, entity string, id int64) error {
	return runOperation(ctx, w, configPath, trigger.ActionDelete, entity, id)
}

// FullSync runs one full-sync pass and prints the report.
func FullSync(ctx context.Context, w io.Writer, configPath string) error {
	rt, err := newRuntime(ctx, configPath)
	if err != nil {
		return err
	}
	defer rt.close()

	report, runErr := rt.fullSync().Run(ctx)
	return printReport(w, report, runErr)
}

func runOperation(ctx context.Context, w io.Writer, configPath, action, entity string, id int64) error {
	rt, err := newRuntime(ctx, configPath)
	if err != nil {
		return err
	}
	defer rt.close()

	d := &trigger.Dispatcher{Orch: rt.orchestrator()}
	op, err := d.Operation(action, entity)
	if err != nil {
		return err
	}
	report, runErr := op(ctx, id)
	return printReport(w, report, runErr)
}

func printReport(w io.Writer, report *reconcile.Report, runErr error) error {
	if report == nil {
		return runErr
	}
	view := reportView{
		Operation: report.Operation,
		Duration:  report.Duration.Round(time.Millisecond).String(),
		Orphans:   report.Orphans,
		Summary:   report.Summary(),
		Nodes:     report.Nodes(),
	}
	if runErr != nil {
		view.Error = runErr.Error()
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(view); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("%s failed: %w", report.Operation, runErr)
	}
	return nil
}
