package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"voiceboard-go/types"
)

func (s *sim) repl(ctx context.Context, cancel context.CancelFunc, rl *readline.Instance) {
	out := rl.Stdout()
	printHelp(out)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(out, "Exiting...")
			cancel()
			return
		}
		parts := strings.Fields(strings.TrimSpace(line))
		if len(parts) == 0 {
			continue
		}
		cmd, args := strings.ToLower(parts[0]), parts[1:]

		switch cmd {
		case "help", "?":
			printHelp(out)
		case "press", "release":
			if len(args) != 1 {
				fmt.Fprintf(out, "Usage: %s <button>\n", cmd)
				continue
			}
			report(out, s.press(args[0], cmd == "press"))
		case "click", "double", "multi":
			s.cmdClick(out, cmd, args)
		case "state":
			s.cmdState(out, args)
		case "tick":
			s.cmdTick(out, args)
		case "tools":
			for _, d := range s.brd.Tools().List() {
				fmt.Fprintf(out, "  %-32s %s\n", d.Name, d.Description)
			}
		case "tool":
			s.cmdTool(ctx, out, args)
		case "status":
			fmt.Fprintln(out, s.brd.DeviceStatusJSON())
		case "board":
			fmt.Fprintln(out, s.brd.BoardJSON())
		case "charging":
			s.cmdCharging(out, args)
		case "action":
			s.cmdAction(ctx, out, args)
		case "quit", "exit", "q":
			fmt.Fprintln(out, "Exiting...")
			cancel()
			return
		default:
			fmt.Fprintf(out, "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, `
Commands:
  press <button>            hold a button down
  release <button>          let it go
  click <button>            single click
  double <button>           double click
  multi <button> <n>        n clicks in a row
  state [name]              show or set the application state
  tick [n]                  advance the power coordinator n seconds
  tools                     list registered tools
  tool <name> [json]        call a tool
  status                    device status document
  board                     board description document
  charging on|off           plug or unplug the charger
  action <name>             run a board action directly
  quit                      exit`)
}

func report(w io.Writer, err error) {
	if err != nil {
		fmt.Fprintln(w, "Error:", err)
		return
	}
	fmt.Fprintln(w, "OK")
}

func (s *sim) cmdClick(w io.Writer, cmd string, args []string) {
	if len(args) < 1 {
		fmt.Fprintf(w, "Usage: %s <button>\n", cmd)
		return
	}
	n := 1
	switch cmd {
	case "double":
		n = 2
	case "multi":
		if len(args) < 2 {
			fmt.Fprintln(w, "Usage: multi <button> <n>")
			return
		}
		v, err := strconv.Atoi(args[1])
		if err != nil || v < 1 {
			fmt.Fprintf(w, "Invalid count: %s\n", args[1])
			return
		}
		n = v
	}
	report(w, s.clicks(args[0], n))
}

func (s *sim) cmdState(w io.Writer, args []string) {
	if len(args) == 0 {
		fmt.Fprintf(w, "device=%s power=%s network=%s\n",
			s.app.DeviceState(), s.brd.Power().State(), s.brd.NetworkStateIcon())
		return
	}
	st, ok := types.ParseDeviceState(args[0])
	if !ok {
		fmt.Fprintf(w, "Unknown state: %s\n", args[0])
		return
	}
	s.app.SetDeviceState(st)
	fmt.Fprintln(w, "OK")
}

func (s *sim) cmdTick(w io.Writer, args []string) {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			fmt.Fprintf(w, "Invalid count: %s\n", args[0])
			return
		}
		n = v
	}
	pc := s.brd.Power()
	for i := 0; i < n; i++ {
		pc.Tick()
	}
	fmt.Fprintf(w, "power=%s\n", pc.State())
}

func (s *sim) cmdTool(ctx context.Context, w io.Writer, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(w, "Usage: tool <name> [json]")
		return
	}
	raw := strings.Join(args[1:], " ")
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	res, err := s.brd.Tools().CallJSON(ctx, args[0], []byte(raw))
	if err != nil {
		fmt.Fprintln(w, "Error:", err)
		return
	}
	b, _ := json.Marshal(res.Value)
	fmt.Fprintf(w, "%s -> %s\n", res.ID, b)
}

func (s *sim) cmdCharging(w io.Writer, args []string) {
	if s.charge < 0 {
		fmt.Fprintln(w, "This board has no charger input")
		return
	}
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		fmt.Fprintln(w, "Usage: charging on|off")
		return
	}
	s.pins.Pin(s.charge).Set(args[0] == "on")
	fmt.Fprintln(w, "OK (picked up on the next battery poll)")
}

var actions = map[string]types.Action{
	"toggle":      types.ActionToggleChat,
	"listen":      types.ActionStartListening,
	"stop":        types.ActionStopListening,
	"wake":        types.ActionWakeWord,
	"wifi-reset":  types.ActionResetWiFiConfig,
	"wifi-config": types.ActionEnterWiFiConfig,
	"switch":      types.ActionSwitchTransport,
}

func (s *sim) cmdAction(ctx context.Context, w io.Writer, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(w, "Usage: action toggle|listen|stop|wake|wifi-reset|wifi-config|switch")
		return
	}
	a, ok := actions[args[0]]
	if !ok {
		fmt.Fprintf(w, "Unknown action: %s\n", args[0])
		return
	}
	report(w, s.brd.Execute(ctx, a))
}
