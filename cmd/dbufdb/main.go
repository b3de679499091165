// Command dbufdb is the interactive console: a readline-driven REPL that
// buffers input until a terminating ';', parses it with internal/sqlshell,
// and dispatches it into an internal/dbengine.Engine. There is no server to
// dial — the console runs the engine in-process, as a single binary.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	"github.com/dbufdb/dbufdb/internal/dbconfig"
	"github.com/dbufdb/dbufdb/internal/dbengine"
	"github.com/dbufdb/dbufdb/internal/dbufparse"
	"github.com/dbufdb/dbufdb/internal/sqlshell"
)

// ---- History (own file) ----

type History struct {
	path  string
	lines []string
}

func NewHistory(path string) *History {
	return &History{path: path}
}

func (h *History) Load(max int) error {
	if h.path == "" {
		return nil
	}
	f, err := os.Open(h.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	defer func() { _ = f.Close() }()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" {
			continue
		}
		h.lines = append(h.lines, s)
		if max > 0 && len(h.lines) > max {
			h.lines = h.lines[len(h.lines)-max:]
		}
	}
	return sc.Err()
}

func (h *History) Append(stmt string) error {
	stmt = strings.TrimSpace(stmt)
	if stmt == "" || h.path == "" {
		return nil
	}
	stmt = compactOneLine(stmt)

	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(h.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	if _, err := fmt.Fprintln(f, stmt); err != nil {
		return err
	}
	h.lines = append(h.lines, stmt)
	return nil
}

func (h *History) Print(last int) {
	if last <= 0 || last > len(h.lines) {
		last = len(h.lines)
	}
	start := len(h.lines) - last
	if start < 0 {
		start = 0
	}
	for i := start; i < len(h.lines); i++ {
		fmt.Printf("%5d  %s\n", i+1, h.lines[i])
	}
}

func compactOneLine(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	s = strings.TrimSpace(s)

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		if r == ' ' {
			if !space {
				b.WriteByte(' ')
				space = true
			}
			continue
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}

// ---- REPL helpers ----

// statementComplete checks if we have a terminating ';' outside a double-
// quoted string literal — dbufdb's string syntax uses '"', not '\''.
func statementComplete(buf string) bool {
	inQuote := false
	for _, r := range buf {
		if r == '"' {
			inQuote = !inQuote
			continue
		}
		if r == ';' && !inQuote {
			return true
		}
	}
	return false
}

func normalizeStmt(buf string) string {
	return strings.TrimSpace(buf)
}

func isMetaCommand(line string) bool {
	line = strings.TrimSpace(line)
	return strings.HasPrefix(line, "\\") || line == "quit" || line == "exit"
}

// printResult renders rows by calling dbval.Value.String() once per cell
// while measuring column widths, instead of measuring in one pass and
// re-stringifying in a second — there's only ever one rendering of a value.
func printResult(res *dbengine.Result) {
	if len(res.Columns) == 0 {
		fmt.Printf("OK (%d affected)\n", res.AffectedRows)
		return
	}

	cols := res.Columns
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = len(c)
	}
	rendered := make([][]string, len(res.Rows))
	for i, row := range res.Rows {
		rendered[i] = make([]string, len(cols))
		for j := range cols {
			s := row[j].String()
			rendered[i][j] = s
			if len(s) > widths[j] {
				widths[j] = len(s)
			}
		}
	}

	printRow := func(values []string) {
		for i := range cols {
			if i > 0 {
				fmt.Print(" | ")
			}
			fmt.Print(padRight(values[i], widths[i]))
		}
		fmt.Println()
	}

	printRow(cols)
	for i, w := range widths {
		if i > 0 {
			fmt.Print("-+-")
		}
		fmt.Print(strings.Repeat("-", w))
	}
	fmt.Println()

	for _, r := range rendered {
		printRow(r)
	}

	fmt.Printf("(%d rows)\n", res.AffectedRows)
	if res.FirstRowError != nil {
		fmt.Printf("warning: row %d dropped: %v\n", res.FirstRowError.Index, res.FirstRowError.Err)
	}
}

func padRight(s string, w int) string {
	if len(s) >= w {
		return s
	}
	return s + strings.Repeat(" ", w-len(s))
}

func defaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".dbufdb_history"
	}
	return filepath.Join(home, ".dbufdb_history")
}

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file")
		histPath   = flag.String("history", "", "history file path (overrides config)")
		histMax    = flag.Int("history-max", 2000, "max history lines loaded into memory")
		oneShot    = flag.String("c", "", "execute one statement and exit (must end with ';')")
	)
	flag.Parse()

	cfg := dbconfig.Default()
	if *configPath != "" {
		loaded, err := dbconfig.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *histPath != "" {
		cfg.Console.HistoryPath = *histPath
	} else if cfg.Console.HistoryPath == "" {
		cfg.Console.HistoryPath = defaultHistoryPath()
	}

	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	eng := dbengine.New(dbufparse.NewParser(), logger)
	parser := sqlshell.NewParser()

	exec := func(stmt string) {
		q, err := parser.Parse(stmt)
		if err != nil {
			fmt.Printf("parse error: %v\n", err)
			return
		}
		res, err := eng.Dispatch(q)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			return
		}
		printResult(res)
	}

	if strings.TrimSpace(*oneShot) != "" {
		exec(*oneShot)
		return
	}

	h := NewHistory(cfg.Console.HistoryPath)
	_ = h.Load(*histMax)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          cfg.Console.Prompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = rl.Close() }()

	for _, line := range h.lines {
		_ = rl.SaveHistory(line)
	}

	var buf strings.Builder

	fmt.Println(cfg.AppName)
	fmt.Println("type \\help for help")

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if buf.Len() > 0 {
				buf.Reset()
				rl.SetPrompt(cfg.Console.Prompt)
				continue
			}
			fmt.Println("^C")
			continue
		}
		if err != nil {
			fmt.Println()
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if isMetaCommand(line) {
			switch line {
			case "\\q", "quit", "exit":
				return
			case "\\help":
				fmt.Println(`meta commands:
  \q | quit | exit       quit
  \history                print history
  \help                   show help

statements:
  end with ';' (parser requires it)
  multiline is supported (console waits until ';')`)
			case "\\history":
				h.Print(50)
			default:
				fmt.Printf("unknown command: %s\n", line)
			}
			continue
		}

		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(line)

		if !statementComplete(buf.String()) {
			rl.SetPrompt("...> ")
			continue
		}

		stmt := normalizeStmt(buf.String())
		buf.Reset()
		rl.SetPrompt(cfg.Console.Prompt)

		_ = h.Append(stmt)
		_ = rl.SaveHistory(compactOneLine(stmt))

		exec(stmt)
	}
}
