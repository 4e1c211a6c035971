package readbackcli

import (
	"fmt"
	"io"
	"os"

	"github.com/foxcpp/readback/framework/hooks"
	"github.com/foxcpp/readback/framework/log"
	"github.com/urfave/cli/v2"
)

var app *cli.App

func init() {
	app = cli.NewApp()
	app.Name = "readback"
	app.Usage = "read files backward, from the end toward the start"
	app.Description = `readback prints the tail of files, standard input and S3 objects without
reading them from the start. Input is read in blocks from the end, so the
cost of 'tail' does not depend on the size of the input.

Non-seekable input (pipes, standard input) is spooled to memory or to a
temporary file first.
`
	app.Authors = []*cli.Author{
		{
			Name: "readback maintainers & contributors",
		},
	}
	// Errors are handled by Run so that RunArgs can return them.
	app.ExitErrHandler = func(*cli.Context, error) {}
	app.EnableBashCompletion = true
	app.Flags = []cli.Flag{
		&cli.PathFlag{
			Name:    "config",
			Usage:   "Configuration file to use",
			EnvVars: []string{"READBACK_CONFIG"},
		},
		&cli.BoolFlag{
			Name:  "debug",
			Usage: "Enable debug logging",
		},
		&cli.StringFlag{
			Name:  "block-size",
			Usage: "Read `SIZE` bytes at once from the end of the input (e.g. 64K)",
		},
		&cli.StringFlag{
			Name:  "charset",
			Usage: "Decode input from `CHARSET` and print it as UTF-8",
		},
		&cli.PathFlag{
			Name:  "spool-dir",
			Usage: "Directory for temporary copies of non-seekable input",
		},
		&cli.PathFlag{
			Name:  "log-file",
			Usage: "Also append log messages with timestamps to `FILE`",
		},
		&cli.PathFlag{
			Name:  "metrics-file",
			Usage: "Write read statistics in Prometheus text format to `FILE` on exit",
		},
	}
	app.Before = func(c *cli.Context) error {
		log.DefaultLogger.Debug = c.Bool("debug")
		log.DefaultLogger.Out = log.WriterOutput(c.App.ErrWriter, false)

		if path := c.Path("log-file"); path != "" {
			f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
			if err != nil {
				return cli.Exit(fmt.Sprintf("Error: failed to open log file: %v", err), 2)
			}
			log.DefaultLogger.Out = log.MultiOutput(
				log.DefaultLogger.Out,
				log.WriteCloserOutput(f, true),
			)
		}
		return nil
	}
	app.After = func(c *cli.Context) error {
		err := log.DefaultLogger.Out.Close()
		log.DefaultLogger.Out = log.WriterOutput(c.App.ErrWriter, false)
		return err
	}
	app.Commands = []*cli.Command{
		{
			Name:   "generate-man",
			Hidden: true,
			Action: func(c *cli.Context) error {
				man, err := app.ToMan()
				if err != nil {
					return err
				}
				fmt.Fprintln(c.App.Writer, man)
				return nil
			},
		},
		{
			Name:   "generate-fish-completion",
			Hidden: true,
			Action: func(c *cli.Context) error {
				cp, err := app.ToFishCompletion()
				if err != nil {
					return err
				}
				fmt.Fprintln(c.App.Writer, cp)
				return nil
			},
		},
	}
}

func AddSubcommand(cmd *cli.Command) {
	app.Commands = append(app.Commands, cmd)
}

// RunArgs runs the application with the given arguments (args[0] is the
// program name) and I/O streams. The error of the command is returned as is.
func RunArgs(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	app.Reader = stdin
	app.Writer = stdout
	app.ErrWriter = stderr
	return app.Run(args)
}

func Run() {
	// Commands are registered by importing internal/cli/ctl.

	go func() {
		s := waitForSignal()
		log.Printf("signal received (%v), cleaning up", s)
		hooks.RunHooks(hooks.EventShutdown)
		os.Exit(1)
	}()

	err := RunArgs(os.Args, os.Stdin, os.Stdout, os.Stderr)
	hooks.RunHooks(hooks.EventShutdown)
	if err != nil {
		cli.HandleExitCoder(err)
		log.DefaultLogger.Error("app.Run failed", err)
		cli.OsExiter(1)
	}
}
