// Package console implements the operator's interactive line-edited
// REPL, driving the same command set as pkg/api. Not present in
// original_source (main.py is a bare `reactor.run()` with no CLI);
// built with github.com/chzyer/readline, the same line-editing library
// haricheung-agentic-shell's cmd/agsh and iatsiuk-r-cli's internal/repl
// use for their own REPLs.
package console

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/labstation/orchestrator/pkg/api"
)

var commands = []string{
	"start", "stop", "pause", "shutdown",
	"overview", "components", "experiment-types", "run-table",
	"add", "insert-after", "exit", "help",
}

// Run drives the console loop against station until the operator
// exits or stdin closes.
func Run(station *api.Station) {
	completer := readline.NewPrefixCompleter(completionItems()...)
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "labstation> ",
		HistoryFile:     historyPath(),
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "console: readline unavailable: %v\n", err)
		return
	}
	defer rl.Close()

	fmt.Println("labstation operator console — type 'help' for commands")
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}
		dispatch(station, line)
	}
}

func historyPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ".labstation_history"
	}
	return dir + "/labstation_history"
}

func completionItems() []readline.PrefixCompleterInterface {
	items := make([]readline.PrefixCompleterInterface, 0, len(commands))
	for _, c := range commands {
		items = append(items, readline.PcItem(c))
	}
	return items
}

func dispatch(station *api.Station, line string) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	var result any
	var err error

	switch cmd {
	case "help":
		fmt.Println(strings.Join(commands, ", "))
		return
	case "start":
		result, err = station.Start()
	case "stop":
		result, err = station.Stop()
	case "pause":
		result, err = station.Pause()
	case "shutdown":
		result, err = station.Shutdown()
	case "overview":
		result, err = station.StationOverview()
	case "components":
		result, err = station.StationComponents()
	case "experiment-types":
		result, err = station.GetExperimentTypes()
	case "run-table":
		result, err = station.StationRunTables()
	case "add":
		if len(args) != 2 {
			fmt.Println("usage: add <experiment-id> <experiment-type>")
			return
		}
		result, err = station.AddExperiment(args[0], args[1])
	case "insert-after":
		if len(args) != 3 {
			fmt.Println("usage: insert-after <existing-id> <experiment-id> <experiment-type>")
			return
		}
		result, err = station.InsertExperimentAfter(args[0], args[1], args[2])
	default:
		fmt.Printf("unknown command %q, type 'help'\n", cmd)
		return
	}

	if err != nil {
		fmt.Printf("error: %v\n", err)
		return
	}
	if result == nil {
		fmt.Println("ok")
		return
	}
	pretty, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Println(result)
		return
	}
	fmt.Println(string(pretty))
}
