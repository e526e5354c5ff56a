package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/richard-senior/matchpredictor/internal/app"
	"github.com/richard-senior/matchpredictor/internal/logger"
	"github.com/richard-senior/matchpredictor/pkg/api"
	"github.com/richard-senior/matchpredictor/pkg/config"
	"github.com/richard-senior/matchpredictor/pkg/report"
	"github.com/richard-senior/matchpredictor/pkg/server"
	"github.com/richard-senior/matchpredictor/pkg/service"
	"github.com/richard-senior/matchpredictor/pkg/transport"
)

const title = "Upcoming predictions"

const usage = `Usage: matchpredictor <command> [flags]

Commands:
  serve      run the HTTP API, retraining on the configured schedule
  mcp        run as an MCP server over stdin and stdout
  train      train a new model from the current season
  predict    predict a fixture, eg predict -home 57 -away 61
  upcoming   predict every scheduled fixture
  table      print the league table, -projected for the predicted final standings
  models     list stored models
  activate   serve a stored model, eg activate -version <version>
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	configPath := fs.String("config", "", "Path to a YAML config file")
	debug := fs.Bool("debug", false, "Enable debug logging")

	var err error
	switch cmd {
	case "serve":
		fs.Parse(args)
		err = withApp(*configPath, *debug, false, serve)
	case "mcp":
		fs.Parse(args)
		err = withApp(*configPath, *debug, true, runMCP)
	case "train":
		fs.Parse(args)
		err = withApp(*configPath, *debug, true, func(ctx context.Context, a *app.App) error {
			result, err := a.Service.Train(ctx)
			if err != nil {
				return err
			}
			return printJSON(result)
		})
	case "predict":
		home := fs.String("home", "", "Home team id")
		away := fs.String("away", "", "Away team id")
		date := fs.String("date", "", "Kickoff date, YYYY-MM-DD. Defaults to now")
		fs.Parse(args)
		err = withApp(*configPath, *debug, true, func(ctx context.Context, a *app.App) error {
			var when time.Time
			if *date != "" {
				var perr error
				if when, perr = time.Parse("2006-01-02", *date); perr != nil {
					return fmt.Errorf("invalid date %q: %w", *date, perr)
				}
			}
			p, err := a.Service.PredictTeams(ctx, *home, *away, when)
			if err != nil {
				return err
			}
			return printJSON(p)
		})
	case "upcoming":
		format := fs.String("format", "markdown", "Output format: markdown, html or json")
		fs.Parse(args)
		err = withApp(*configPath, *debug, true, func(ctx context.Context, a *app.App) error {
			return upcoming(ctx, a, *format)
		})
	case "table":
		format := fs.String("format", "markdown", "Output format: markdown or json")
		projected := fs.Bool("projected", false, "Add the expected points of the predicted fixtures")
		fs.Parse(args)
		err = withApp(*configPath, *debug, true, func(ctx context.Context, a *app.App) error {
			return table(ctx, a, *format, *projected)
		})
	case "models":
		fs.Parse(args)
		err = withApp(*configPath, *debug, true, func(ctx context.Context, a *app.App) error {
			models, err := a.Service.Models()
			if err != nil {
				return err
			}
			return printJSON(models)
		})
	case "activate":
		version := fs.String("version", "", "Model version to serve")
		fs.Parse(args)
		err = withApp(*configPath, *debug, true, func(ctx context.Context, a *app.App) error {
			snap, err := a.Service.Activate(*version)
			if err != nil {
				return err
			}
			fmt.Println("Now serving model", snap.Version)
			return nil
		})
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Error(cmd+" failed", err)
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withApp loads the config, wires the app and runs fn until it returns or a signal arrives
func withApp(configPath string, debug, quiet bool, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if debug {
		cfg.Log.Level = "debug"
	}
	// stdout belongs to the protocol or to command output
	if quiet && cfg.Log.Output != "file" {
		cfg.Log.Output = "file"
	}

	a, err := app.Open(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return fn(ctx, a)
}

func serve(ctx context.Context, a *app.App) error {
	cfg := a.Config
	if cfg.Train.OnStart || (a.Service.Snapshot() == nil && cfg.Train.Schedule != "") {
		if _, err := a.Service.Train(ctx); err != nil {
			logger.Warn("Initial training failed, serving without a new model", err)
		}
	}

	if cfg.Train.Schedule != "" {
		sched, err := service.NewScheduler(a.Service, cfg.Train.Schedule)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	handler := api.NewAPIHandler(a.Service, title)
	return api.Serve(ctx, cfg.Server, handler.SetupRoutes())
}

func runMCP(ctx context.Context, a *app.App) error {
	return server.New(transport.NewStdioTransport(), a.Service, title).Serve(ctx)
}

func upcoming(ctx context.Context, a *app.App, format string) error {
	predictions, err := a.Service.Upcoming(ctx)
	if err != nil {
		return err
	}
	if strings.EqualFold(format, "json") {
		return printJSON(predictions)
	}

	standings, err := a.Service.Standings(ctx)
	if err != nil {
		logger.Warn("League table unavailable", err)
	}
	version := ""
	if snap := a.Service.Snapshot(); snap != nil {
		version = snap.ShortVersion()
	}
	page := report.NewPage(title, version, predictions, standings)
	if page.Projected, err = a.Service.ProjectedStandings(ctx); err != nil {
		logger.Warn("Predicted standings unavailable", err)
	}

	switch strings.ToLower(format) {
	case "html":
		return page.WriteHTML(os.Stdout)
	case "markdown", "md":
		md, err := page.Markdown()
		if err != nil {
			return err
		}
		fmt.Println(md)
		return nil
	}
	return fmt.Errorf("unknown format %q", format)
}

func table(ctx context.Context, a *app.App, format string, projected bool) error {
	load, render := a.Service.Standings, report.StandingsMarkdown
	if projected {
		load, render = a.Service.ProjectedStandings, report.ProjectionMarkdown
	}
	standings, err := load(ctx)
	if err != nil {
		return err
	}

	switch strings.ToLower(format) {
	case "json":
		return printJSON(standings)
	case "markdown", "md":
		md, err := render(standings)
		if err != nil {
			return err
		}
		fmt.Println(md)
		return nil
	}
	return fmt.Errorf("unknown format %q", format)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
