package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/michaelbrown/runbox/internal/client"
	"github.com/michaelbrown/runbox/internal/runner"
	"github.com/michaelbrown/runbox/internal/toolchain"
)

var (
	languageFlag string
	pollFlag     time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Run a program and talk to it",
	Long: `Run a source file and relay its input and output through your terminal.

The language is inferred from the file extension unless --language is given.
When the program seems to wait for input, or has been quiet for a few polls,
you get a prompt; otherwise runbox keeps polling for output. Ctrl+C
terminates the program.

Examples:
  runbox run hello.py
  runbox run main.c --server http://localhost:5000
  runbox run script.txt --language ruby`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&languageFlag, "language", "l", "", "Language (default: inferred from the file extension)")
	runCmd.Flags().DurationVar(&pollFlag, "poll", 500*time.Millisecond, "Status poll interval while the program is busy")
	rootCmd.AddCommand(runCmd)
}

// sessionEngine is the part of runner.Manager the run loop drives; the
// HTTP client implements it too.
type sessionEngine interface {
	Start(ctx context.Context, code, language string) (*runner.Result, error)
	SubmitInput(ctx context.Context, id, text string) (*runner.Result, error)
	Poll(ctx context.Context, id string) (*runner.Result, error)
	Terminate(ctx context.Context, id string) (*runner.Result, error)
}

func runRun(cmd *cobra.Command, args []string) error {
	code, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	language := languageFlag
	if language == "" {
		table, err := cfg.Toolchains()
		if err != nil {
			return err
		}
		if language, err = table.LanguageForFile(args[0]); err != nil {
			return fmt.Errorf("%w (known: %s; or use --language)", err, languageHint(table))
		}
	}

	var engine sessionEngine
	if serverFlag != "" {
		engine = client.New(serverFlag)
	} else {
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		if store != nil {
			defer store.Close()
		}
		manager, err := newManager(cfg, logger, store)
		if err != nil {
			return err
		}
		defer manager.Close()
		engine = manager
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[36m›\033[0m ",
		InterruptPrompt: "^C",
		EOFPrompt:       "^D",
	})
	if err != nil {
		return fmt.Errorf("readline: %w", err)
	}
	defer rl.Close()

	return converse(context.Background(), engine, rl, string(code), language, pollFlag)
}

// lineReader is the slice of readline the run loop needs.
type lineReader interface {
	Readline() (string, error)
	Stdout() io.Writer
	Stderr() io.Writer
}

// converse starts code and relays output and input until the session ends.
func converse(ctx context.Context, engine sessionEngine, rl lineReader, code, language string, poll time.Duration) error {
	res, err := engine.Start(ctx, code, language)
	if err != nil {
		if detail := runner.DetailOf(err); detail != "" {
			fmt.Fprintln(rl.Stderr(), detail)
		}
		return err
	}
	printResult(rl, res)
	if res.Status != runner.StatusRunning {
		return nil
	}
	id := res.SessionID

	// Ctrl+C while polling; readline reports it itself while prompting.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	// A prompt without a trailing newline never reaches the line reader,
	// so silence counts as waiting here the same way it does at start.
	quiet := 0
	for res.Status == runner.StatusRunning {
		if res.WaitingForInput || quiet >= quietPolls {
			quiet = 0
			line, err := rl.Readline()
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return terminate(ctx, engine, rl, id)
			}
			if err != nil {
				return err
			}
			if res, err = engine.SubmitInput(ctx, id, line); err != nil {
				return err
			}
			printResult(rl, res)
			if silent(res) {
				res.WaitingForInput = true
			}
			continue
		}

		select {
		case <-sigCh:
			return terminate(ctx, engine, rl, id)
		case <-ticker.C:
		}
		if res, err = engine.Poll(ctx, id); err != nil {
			return err
		}
		printResult(rl, res)
		if silent(res) {
			quiet++
		} else {
			quiet = 0
		}
	}
	return nil
}

// quietPolls is how many empty polls in a row make the run loop prompt.
const quietPolls = 3

func silent(res *runner.Result) bool {
	return res.Output == "" && res.Error == ""
}

func terminate(ctx context.Context, engine sessionEngine, rl lineReader, id string) error {
	if _, err := engine.Terminate(ctx, id); err != nil && !errors.Is(err, runner.ErrUnknownSession) {
		return err
	}
	fmt.Fprintln(rl.Stdout(), "\033[90m(terminated)\033[0m")
	return nil
}

func printResult(rl lineReader, res *runner.Result) {
	if res.Output != "" {
		fmt.Fprintln(rl.Stdout(), res.Output)
	}
	if res.Error != "" {
		fmt.Fprintf(rl.Stderr(), "\033[31m%s\033[0m\n", res.Error)
	}
}

// languageHint lists the extensions a table understands, for error messages.
func languageHint(table toolchain.Table) string {
	hint := ""
	for _, lang := range table.Languages() {
		if hint != "" {
			hint += ", "
		}
		hint += table[lang].Extension
	}
	return hint
}
