// cmd/womctl is a minimal interactive shell over a string-keyed
// wormhole index, mirroring tur's cmd/turdb + pkg/cli REPL shape.
//
// Usage:
//
//	womctl
//
// Commands: put <key> <value>, get <key>, delete <key>,
// scan [start [end]], .help, .exit
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"wormhole/pkg/wormhole"
	"wormhole/pkg/wormstr"
)

func main() {
	repl := newREPL(os.Stdin, os.Stdout, os.Stderr)
	repl.run()
}

// repl provides a Read-Eval-Print Loop over an in-memory string-keyed
// wormhole index.
type repl struct {
	wh        *wormstr.WormholeForStringKey[string]
	input     *bufio.Scanner
	output    *os.File
	errOutput *os.File
	running   bool
}

func newREPL(input *os.File, output, errOutput *os.File) *repl {
	return &repl{
		wh:        wormstr.New[string](wormhole.Options{LeafSize: wormhole.DefaultLeafSize}),
		input:     bufio.NewScanner(input),
		output:    output,
		errOutput: errOutput,
	}
}

func (r *repl) run() {
	r.running = true
	fmt.Fprintln(r.output, "womctl — in-memory ordered key-value index")
	fmt.Fprintln(r.output, `Enter ".help" for usage hints.`)

	for r.running && r.input.Scan() {
		line := strings.TrimSpace(r.input.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ".") {
			r.handleDotCommand(line)
			continue
		}
		if err := r.execute(line); err != nil {
			fmt.Fprintf(r.errOutput, "error: %v\n", err)
		}
	}
}

func (r *repl) handleDotCommand(cmd string) {
	switch cmd {
	case ".exit", ".quit":
		r.running = false
	case ".help":
		fmt.Fprintln(r.output, "put <key> <value>  get <key>  delete <key>  scan [start [end]]  .exit")
	default:
		fmt.Fprintf(r.errOutput, "unknown command: %s\n", cmd)
	}
}

func (r *repl) execute(line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch strings.ToLower(fields[0]) {
	case "put":
		if len(fields) < 3 {
			return fmt.Errorf("usage: put <key> <value>")
		}
		r.wh.Put(fields[1], strings.Join(fields[2:], " "))
		return nil

	case "get":
		if len(fields) != 2 {
			return fmt.Errorf("usage: get <key>")
		}
		v, ok := r.wh.Get(fields[1])
		if !ok {
			fmt.Fprintln(r.output, "(not found)")
			return nil
		}
		fmt.Fprintln(r.output, v)
		return nil

	case "delete":
		if len(fields) != 2 {
			return fmt.Errorf("usage: delete <key>")
		}
		fmt.Fprintln(r.output, r.wh.Delete(fields[1]))
		return nil

	case "scan":
		var end *string
		start := ""
		if len(fields) >= 2 {
			start = fields[1]
		}
		if len(fields) >= 3 {
			end = &fields[2]
		}
		r.wh.Scan(start, end, true, func(key string, value string) bool {
			fmt.Fprintf(r.output, "%s = %s\n", key, value)
			return true
		})
		return nil

	default:
		return fmt.Errorf("unknown command: %s (try .help)", fields[0])
	}
}
