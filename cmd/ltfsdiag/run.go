package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/benmcclelland/ltfscore/internal/diag"
)

// Run starts the interactive trace-ring REPL.
func Run() error {
	repl := &REPL{tracer: diag.NewTracer()}

	return repl.loop()
}

// REPL is the interactive command loop over a diag.Tracer.
type REPL struct {
	tracer *diag.Tracer
	liner  *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".ltfsdiag_history")
}

func (r *REPL) loop() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Println("ltfsdiag - trace ring inspector")
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("ltfsdiag> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")

				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		if cmd == "quit" || cmd == "exit" {
			break
		}

		if err := r.dispatch(cmd, args); err != nil {
			fmt.Println("error:", err)
		}
	}

	if f, err := os.Create(historyFile()); err == nil {
		r.liner.WriteHistory(f)
		f.Close()
	}

	return nil
}

func (r *REPL) completer(line string) []string {
	commands := []string{"help", "trace-request", "trace-function", "complete-admin", "requests", "admin", "dump", "quit", "exit"}

	var matches []string

	for _, c := range commands {
		if strings.HasPrefix(c, line) {
			matches = append(matches, c)
		}
	}

	return matches
}

func (r *REPL) dispatch(cmd string, args []string) error {
	switch cmd {
	case "help":
		r.printHelp()
	case "trace-request":
		return r.cmdTraceRequest(args)
	case "trace-function":
		return r.cmdTraceFunction(args)
	case "complete-admin":
		return r.cmdCompleteAdmin(args)
	case "requests":
		r.printRecords(r.tracer.RequestSnapshot())
	case "admin":
		r.printRecords(r.tracer.CompletedAdminSnapshot())
	case "dump":
		return r.cmdDump(args)
	default:
		return fmt.Errorf("unknown command: %s (try 'help')", cmd)
	}

	return nil
}

func (r *REPL) printHelp() {
	fmt.Println(`Commands:
  trace-request <status> <source> <type> <thread-id>   record a request-ring event
  trace-function <filesystem|admin|admin-completed> <thread-id> <aux>   record a function-trace event
  complete-admin <id>                                    close out a pending admin event
  requests                                               show the request ring
  admin                                                  show the completed-admin ring
  dump <path>                                             atomically write all rings to path and record it in path's directory manifest
  quit / exit                                             leave the REPL`)
}

func parseUint(s string, bits int) (uint64, error) {
	return strconv.ParseUint(s, 10, bits)
}

func (r *REPL) cmdTraceRequest(args []string) error {
	if len(args) != 4 {
		return fmt.Errorf("usage: trace-request <status> <source> <type> <thread-id>")
	}

	status, err := parseUint(args[0], 8)
	if err != nil {
		return err
	}

	source, err := parseUint(args[1], 16)
	if err != nil {
		return err
	}

	typ, err := parseUint(args[2], 16)
	if err != nil {
		return err
	}

	threadID, err := parseUint(args[3], 32)
	if err != nil {
		return err
	}

	r.tracer.TraceRequest(diag.Status(status), diag.Source(source), uint16(typ), uint32(threadID), time.Now().UnixNano())

	return nil
}

func (r *REPL) cmdTraceFunction(args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: trace-function <filesystem|admin|admin-completed> <thread-id> <aux>")
	}

	var kind diag.FunctionTraceType

	switch args[0] {
	case "filesystem":
		kind = diag.Filesystem
	case "admin":
		kind = diag.Admin
	case "admin-completed":
		kind = diag.AdminCompleted
	default:
		return fmt.Errorf("unknown trace kind: %s", args[0])
	}

	threadID, err := parseUint(args[1], 32)
	if err != nil {
		return err
	}

	aux, err := parseUint(args[2], 64)
	if err != nil {
		return err
	}

	r.tracer.TraceFunction(kind, uint32(threadID), time.Now().UnixNano(), aux)

	return nil
}

func (r *REPL) cmdCompleteAdmin(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: complete-admin <id>")
	}

	id, err := parseUint(args[0], 32)
	if err != nil {
		return err
	}

	r.tracer.CompleteAdmin(uint32(id), time.Now().UnixNano())

	return nil
}

func (r *REPL) cmdDump(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: dump <path>")
	}

	path := args[0]

	if err := r.tracer.Dump(path); err != nil {
		return err
	}

	dir := filepath.Dir(path)

	return diag.RecordDump(dir, filepath.Base(path), "manual dump", time.Now())
}

func (r *REPL) printRecords(records []diag.Record) {
	if len(records) == 0 {
		fmt.Println("(empty)")

		return
	}

	for _, rec := range records {
		fmt.Printf("ts=%d req=0x%08x thread=%d aux=%d\n", rec.TimestampNanos, rec.ReqNumber, rec.ThreadID, rec.Aux)
	}
}
