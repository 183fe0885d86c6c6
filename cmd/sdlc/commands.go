package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	cli "github.com/urfave/cli/v3"

	"github.com/jorge-barreto/sdlc/internal/config"
	"github.com/jorge-barreto/sdlc/internal/dispatch"
	"github.com/jorge-barreto/sdlc/internal/docs"
	"github.com/jorge-barreto/sdlc/internal/doctor"
	"github.com/jorge-barreto/sdlc/internal/gate"
	"github.com/jorge-barreto/sdlc/internal/health"
	"github.com/jorge-barreto/sdlc/internal/logging"
	"github.com/jorge-barreto/sdlc/internal/phase"
	"github.com/jorge-barreto/sdlc/internal/prompt"
	"github.com/jorge-barreto/sdlc/internal/runner"
	"github.com/jorge-barreto/sdlc/internal/scaffold"
	"github.com/jorge-barreto/sdlc/internal/state"
	"github.com/jorge-barreto/sdlc/internal/ux"
	"github.com/jorge-barreto/sdlc/internal/watch"
)

func initCmd() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize lifecycle tracking in a project",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "project-name", Usage: "Name of the project", Required: true},
			&cli.StringFlag{Name: "template", Usage: "Project template: " + strings.Join(scaffold.Templates(), ", ")},
			&cli.StringFlag{Name: "output-dir", Usage: "Directory to initialize (default: current directory)"},
			&cli.BoolFlag{Name: "force", Usage: "Reinitialize, discarding all recorded progress"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dir := cmd.String("output-dir")
			if dir == "" {
				var err error
				if dir, err = os.Getwd(); err != nil {
					return err
				}
			}
			lc := phase.Default()
			res, err := scaffold.Init(state.NewStore(lc), lc, scaffold.Options{
				ProjectName: cmd.String("project-name"),
				OutputDir:   dir,
				Template:    cmd.String("template"),
				Force:       cmd.Bool("force"),
			})
			if err != nil {
				return err
			}
			scaffold.Print(dir, res)
			return nil
		},
	}
}

func gateCmd() *cli.Command {
	return &cli.Command{
		Name:    "gate",
		Aliases: []string{"gate-validate"},
		Usage:   "Check a phase's exit criteria",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "phase", Usage: "Phase to check"},
			&cli.BoolFlag{Name: "all", Usage: "Check every phase"},
			projectDirFlag(),
			&cli.BoolFlag{Name: "json", Usage: "Print results as JSON"},
			&cli.BoolFlag{Name: "watch", Usage: "Re-check whenever project files change (Ctrl+C exits 130)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			lc := phase.Default()
			all := cmd.Bool("all")
			name := cmd.String("phase")
			switch {
			case all && name != "":
				return fmt.Errorf("--phase and --all are mutually exclusive")
			case !all && name == "":
				return fmt.Errorf("one of --phase or --all is required")
			case all && cmd.Bool("watch"):
				return fmt.Errorf("--watch requires --phase")
			}
			var id phase.ID
			if name != "" {
				var err error
				if id, err = lc.Parse(name); err != nil {
					return err
				}
			}

			dir, err := projectDir(cmd)
			if err != nil {
				return err
			}
			reg, err := config.LoadRegistry(dir, lc)
			if err != nil {
				return err
			}
			v := gate.NewValidator(reg)
			store := state.NewStore(lc)

			check := func() (bool, error) {
				st, err := store.Load(dir)
				if err != nil {
					return false, err
				}
				var results []gate.Result
				if all {
					results = v.ValidateAll(dir, st)
				} else {
					res, err := v.Validate(id, dir, st)
					if err != nil {
						return false, err
					}
					results = []gate.Result{res}
				}
				return renderGate(cmd.Root().Writer, lc, results, cmd.Bool("json"))
			}

			if cmd.Bool("watch") {
				w, err := watch.New(dir, watch.DefaultDebounce)
				if err != nil {
					return err
				}
				err = w.Run(ctx, func() {
					if _, err := check(); err != nil {
						ux.Error(err)
					}
				})
				if err == nil && ctx.Err() != nil {
					return runner.ErrInterrupted
				}
				return err
			}

			ok, err := check()
			if err != nil {
				return err
			}
			if !ok {
				return errBlocked
			}
			return nil
		},
	}
}

// renderGate prints results and reports whether every gate passed.
func renderGate(w io.Writer, lc *phase.Lifecycle, results []gate.Result, asJSON bool) (bool, error) {
	ok := true
	for _, res := range results {
		ok = ok && res.OK()
	}
	if asJSON {
		data, err := gate.MarshalReport(results)
		if err != nil {
			return false, err
		}
		if _, err := w.Write(data); err != nil {
			return false, err
		}
		return ok, nil
	}
	for _, res := range results {
		info, _ := lc.Info(res.Phase)
		var next *phase.Info
		if id, has := lc.Next(res.Phase); has {
			n, _ := lc.Info(id)
			next = &n
		}
		ux.GateReport(info, res, next)
	}
	return ok, nil
}

func orchestrateCmd() *cli.Command {
	return &cli.Command{
		Name:  "orchestrate",
		Usage: "Walk the lifecycle interactively, phase by phase",
		Flags: []cli.Flag{
			projectDirFlag(),
			&cli.StringFlag{Name: "start-from", Usage: "Jump to a phase before walking"},
			&cli.BoolFlag{Name: "dry-run", Usage: "Walk the flow without running steps or saving state"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			lc := phase.Default()
			dir, err := projectDir(cmd)
			if err != nil {
				return err
			}
			var start phase.ID
			if s := cmd.String("start-from"); s != "" {
				if start, err = lc.Parse(s); err != nil {
					return err
				}
			}
			reg, err := config.LoadRegistry(dir, lc)
			if err != nil {
				return err
			}
			wf, err := config.LoadWorkflow(dir, lc)
			if err != nil {
				return err
			}
			glog, err := state.LoadGateLog(dir)
			if err != nil {
				return err
			}

			dryRun := cmd.Bool("dry-run")
			session := logging.Nop()
			if !dryRun {
				if session, err = logging.Open(dir); err != nil {
					return err
				}
			}
			defer session.Close()

			r := &runner.Runner{
				Lifecycle:  lc,
				Store:      state.NewStore(lc),
				Validator:  gate.NewValidator(reg),
				Workflow:   wf,
				Dispatcher: &dispatch.DefaultDispatcher{},
				Prompter:   prompt.NewTerminal(os.Stdin, ux.Out),
				Log:        session,
				GateLog:    glog,
				ProjectDir: dir,
				StartFrom:  start,
				DryRun:     dryRun,
			}
			return r.Run(ctx)
		},
	}
}

func healthCmd() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Show the project health dashboard",
		Flags: []cli.Flag{
			projectDirFlag(),
			&cli.BoolFlag{Name: "json", Usage: "Print the state document with health_score"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			lc := phase.Default()
			dir, err := projectDir(cmd)
			if err != nil {
				return err
			}
			st, err := state.NewStore(lc).Load(dir)
			if err != nil {
				return err
			}
			glog, err := state.LoadGateLog(dir)
			if err != nil {
				return err
			}
			report, err := health.Build(dir, lc, st, glog)
			if err != nil {
				return err
			}
			if cmd.Bool("json") {
				data, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}
			ux.RenderHealth(report)
			return nil
		},
	}
}

func noteCmd() *cli.Command {
	return &cli.Command{
		Name:  "note",
		Usage: "Record or list evidence notes on phases",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Add a note to a phase",
				ArgsUsage: "<text...>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "phase", Usage: "Phase to annotate", Required: true},
					projectDirFlag(),
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					lc := phase.Default()
					id, err := lc.Parse(cmd.String("phase"))
					if err != nil {
						return err
					}
					text := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
					if text == "" {
						return fmt.Errorf("note text is required")
					}
					dir, err := projectDir(cmd)
					if err != nil {
						return err
					}
					var added bool
					if _, err := state.NewStore(lc).Update(dir, func(s *state.ProjectState) error {
						added, err = s.AddNote(id, text)
						return err
					}); err != nil {
						return err
					}
					if !added {
						ux.Dim("Note already recorded on %s", id)
						return nil
					}
					ux.NoteAdded(id, text)
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "List notes",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "phase", Usage: "Only this phase"},
					projectDirFlag(),
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					lc := phase.Default()
					ids := lc.IDs()
					if name := cmd.String("phase"); name != "" {
						id, err := lc.Parse(name)
						if err != nil {
							return err
						}
						ids = []phase.ID{id}
					}
					dir, err := projectDir(cmd)
					if err != nil {
						return err
					}
					st, err := state.NewStore(lc).Load(dir)
					if err != nil {
						return err
					}
					ux.RenderNotes(lc, st, ids)
					return nil
				},
			},
		},
	}
}

func doctorCmd() *cli.Command {
	return &cli.Command{
		Name:  "doctor",
		Usage: "Check gate configuration and recorded state for inconsistencies",
		Flags: []cli.Flag{projectDirFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			lc := phase.Default()
			dir, err := projectDir(cmd)
			if err != nil {
				return err
			}
			st, err := state.NewStore(lc).Load(dir)
			if err != nil {
				return err
			}
			reg, err := config.LoadRegistry(dir, lc)
			if err != nil {
				return err
			}
			wf, wfErr := config.LoadWorkflow(dir, lc)
			glog, err := state.LoadGateLog(dir)
			if err != nil {
				return err
			}
			report := doctor.Check(doctor.Input{
				ProjectDir:  dir,
				Lifecycle:   lc,
				Registry:    reg,
				Workflow:    wf,
				WorkflowErr: wfErr,
				State:       st,
				GateLog:     glog,
			})
			doctor.Print(st, report)
			if report.HasErrors() {
				return errBlocked
			}
			return nil
		},
	}
}

func docsCmd() *cli.Command {
	return &cli.Command{
		Name:      "docs",
		Usage:     "Show documentation",
		ArgsUsage: "[topic]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			name := cmd.Args().First()
			if name == "" {
				docs.WriteIndex(os.Stdout)
				return nil
			}
			t, err := docs.Get(name)
			if err != nil {
				return err
			}
			fmt.Print(t.Content)
			return nil
		},
	}
}
