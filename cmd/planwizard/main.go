// cmd/planwizard/main.go
//
// planwizard walks through creating or editing a plan in the terminal and
// saves it to a PlanHub server.
//
// Flow:
// 1. Load ~/.planwizard.yaml (flags override it)
// 2. Sign in to the server with the configured user
// 3. Run the wizard TUI; on finish the plan is saved over HTTP

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dalemusser/planhub/internal/app/client/clientconfig"
	"github.com/dalemusser/planhub/internal/app/client/planclient"
	"github.com/dalemusser/planhub/internal/app/client/wizardtui"
	"github.com/dalemusser/planhub/internal/app/plans/wizard"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "planwizard: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	defaultPath, err := clientconfig.DefaultPath()
	if err != nil {
		return err
	}

	configPath := pflag.String("config", defaultPath, "path to the config file")
	server := pflag.String("server", "", "PlanHub server URL (overrides the config file)")
	editID := pflag.String("edit", "", "id of a plan to edit instead of creating one")
	userID := pflag.String("user-id", "", "user id to sign in as (overrides the config file)")
	userName := pflag.String("user-name", "", "display name to sign in as (overrides the config file)")
	pflag.Parse()

	cfg, err := clientconfig.Load(*configPath)
	if err != nil {
		return err
	}
	if *server != "" {
		cfg.Server = *server
	}
	if *userID != "" {
		cfg.User.ID = *userID
	}
	if *userName != "" {
		cfg.User.Name = *userName
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := planclient.New(cfg.Server)
	if err != nil {
		return err
	}
	if _, err := client.SignIn(ctx, cfg.User.Snapshot()); err != nil {
		return fmt.Errorf("sign in to %s: %w", cfg.Server, err)
	}

	w := wizard.New()
	if *editID != "" {
		view, err := client.GetPlan(ctx, *editID)
		if err != nil {
			return fmt.Errorf("load plan %s: %w", *editID, err)
		}
		if !view.IsCreator {
			return fmt.Errorf("plan %s belongs to %s", *editID, view.Creator.Name)
		}
		w = wizard.NewForEdit(view.Plan)
	}

	app := wizardtui.NewApp(ctx, w, client, cfg.Tags)
	app.TrackOps(client.Ops)
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run wizard: %w", err)
	}

	if saved, ok := app.Saved(); ok {
		fmt.Printf("saved %q: %s\n", saved.Title, client.ResolveURL("/plans/"+saved.ID.Hex()))
	}
	return nil
}
