package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	"gopkg.in/yaml.v3"

	echoapi "github.com/trezcool/somo/apps/api/echo"
	"github.com/trezcool/somo/core"
	"github.com/trezcool/somo/core/course"
	"github.com/trezcool/somo/storage/database"
)

var (
	gooseRunFunc = database.RunMigration // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf       *core.Config
	db         *sql.DB
	dialect    string
	migrateLog goose.Logger
	courseSvc  *course.Service
	out        io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS...] - run a goose command: up, up-to, down, down-to, redo, reset, status, version")
	fmt.Fprintln(cli.out, "  loadmodule -file FILE - create or update the module described by a YAML file")
	fmt.Fprintln(cli.out, "  progress -learner ID -module ID - show a learner's progress through a module")
	fmt.Fprintln(cli.out, "  devtoken -learner ID [-name NAME] [-email EMAIL] [-role ROLE] [-ttl DURATION] - issue an API token")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	loadModuleCmd := flag.NewFlagSet("loadmodule", flag.ContinueOnError)
	loadModuleFile := loadModuleCmd.String("file", "", "The module's YAML file.")

	progressCmd := flag.NewFlagSet("progress", flag.ContinueOnError)
	progressLearner := progressCmd.String("learner", "", "The learner's ID.")
	progressModule := progressCmd.String("module", "", "The module's ID.")

	devTokenCmd := flag.NewFlagSet("devtoken", flag.ContinueOnError)
	devTokenLearner := devTokenCmd.String("learner", "", "The learner's ID, the token's subject.")
	devTokenName := devTokenCmd.String("name", "", "The learner's name.")
	devTokenEmail := devTokenCmd.String("email", "", "The learner's email, for notifications.")
	devTokenRole := devTokenCmd.String("role", core.RoleStudent, "The learner's role.")
	devTokenTTL := devTokenCmd.Duration("ttl", 24*time.Hour, "How long the token is valid.")

	for _, fs := range []*flag.FlagSet{loadModuleCmd, progressCmd, devTokenCmd} {
		fs.SetOutput(cli.out)
	}

	ctx := context.Background()

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2:])
	case "loadmodule":
		if err := loadModuleCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *loadModuleFile == "" {
			loadModuleCmd.Usage()
			return errHelp
		}
		return cli.loadModule(ctx, *loadModuleFile)
	case "progress":
		if err := progressCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *progressLearner == "" || *progressModule == "" {
			progressCmd.Usage()
			return errHelp
		}
		return cli.progress(ctx, *progressLearner, *progressModule)
	case "devtoken":
		if err := devTokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *devTokenLearner == "" {
			devTokenCmd.Usage()
			return errHelp
		}
		if !core.IsValidRole(*devTokenRole) {
			return fmt.Errorf("invalid role %q, want one of: %s", *devTokenRole, strings.Join(core.AllRoles, ", "))
		}
		lrn := core.Learner{
			ID:    *devTokenLearner,
			Name:  *devTokenName,
			Email: *devTokenEmail,
			Roles: []string{*devTokenRole},
		}
		return cli.devToken(lrn, *devTokenTTL)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) migrate(ctx context.Context, args []string) error {
	if cli.db == nil {
		return errors.New("migrations need a SQL database backend")
	}
	return gooseRunFunc(ctx, cli.db, cli.dialect, cli.migrateLog, args[0], args[1:]...)
}

func (cli *commandLine) loadModule(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var mod course.Module
	if err = yaml.Unmarshal(raw, &mod); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	mod, err = cli.courseSvc.SaveModule(ctx, mod)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "module %s saved with %d steps\n", mod.ID, len(mod.Steps))
	return nil
}

func (cli *commandLine) progress(ctx context.Context, learnerID, moduleID string) error {
	state, err := cli.courseSvc.GetModule(ctx, moduleID, learnerID)
	if err != nil {
		return err
	}
	completed := course.CompletedSet(state.Progress)

	fmt.Fprintf(cli.out, "%s (%s)\n", state.Name, state.ID)
	for i, s := range state.Steps {
		mark := " "
		if completed[s.ID] {
			mark = "x"
		}
		cursor := ""
		if i == state.CurrentStep && !state.Finished {
			cursor = " <- current"
		}
		fmt.Fprintf(cli.out, "  [%s] %d. %s%s\n", mark, i+1, s.Title, cursor)
	}
	fmt.Fprintf(cli.out, "current step: %d/%d, finished: %t\n", state.CurrentStep, len(state.Steps), state.Finished)
	return nil
}

func (cli *commandLine) devToken(lrn core.Learner, ttl time.Duration) error {
	token, err := echoapi.GenerateToken(echoapi.NewClaims(cli.conf, lrn, ttl), cli.conf.SecretKey)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}
