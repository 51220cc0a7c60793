package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dougsko/rigbridge/pkg/client"
	"github.com/dougsko/rigbridge/pkg/protocol"
)

var (
	addr    = flag.String("addr", "127.0.0.1:8080", "rigbridge address (host:port)")
	user    = flag.String("user", "", "Basic auth username")
	pass    = flag.String("pass", "", "Basic auth password")
	command = flag.String("cmd", "", "Command to send (e.g. 'set_freq', 'get_state')")
	value   = flag.String("value", "", "Command value")
	mode    = flag.String("mode", "", "Mode for set_filter_width")
	status  = flag.Bool("status", false, "Show daemon status")
	watch   = flag.Bool("watch", false, "Print state updates until interrupted")
	timeout = flag.Duration("timeout", 5*time.Second, "Request timeout")
)

func main() {
	flag.Parse()

	c := client.NewSessionClient(*addr)
	c.SetTimeout(*timeout)
	if *user != "" {
		c.SetCredentials(*user, *pass)
	}

	switch {
	case *status:
		st, err := c.GetStatus()
		if err != nil {
			fail(err)
		}
		printJSON(st)

	case *watch:
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		err := c.Watch(ctx, func(state protocol.StateMessage) bool {
			printJSON(state)
			return true
		})
		if err != nil {
			fail(err)
		}

	case *command != "":
		req := protocol.CommandRequest{Cmd: *command, Mode: *mode}
		if *value != "" {
			req.Value = parseValue(*value)
		}
		reply, err := c.SendCommand(req)
		if err != nil {
			fail(err)
		}
		printJSON(reply)
		if _, isError := reply.(protocol.ErrorMessage); isError {
			os.Exit(1)
		}

	default:
		showHelp()
	}
}

// parseValue sends numbers and booleans as JSON numbers and booleans, the
// way the web UI does
func parseValue(s string) interface{} {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fail(err)
	}
	fmt.Println(string(data))
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func showHelp() {
	fmt.Println("rigbridgectl - rigbridge control tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  %s [options]\n", os.Args[0])
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  set_freq <hz>             Tune the rig")
	fmt.Println("  set_mode <mode>           USB, LSB, CW, AM, FM, DATA")
	fmt.Println("  set_filter_width <hz>     Passband width (with -mode, default USB)")
	fmt.Println("  set_spot <bool>           Momentary SPOT")
	fmt.Println("  set_agc <OFF|SLOW|MED|FAST>")
	fmt.Println("  set_rf_gain <0-100>       RF gain percent")
	fmt.Println("  set_power <0-100>         TX power percent")
	fmt.Println("  set_break_in <bool>       Full break-in")
	fmt.Println("  set_rit <hz>              RIT offset")
	fmt.Println("  send_raw <native>         Vendor command via rigctld w")
	fmt.Println("  get_state                 Poll the rig now")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Printf("  %s -cmd set_freq -value 7074000\n", os.Args[0])
	fmt.Printf("  %s -cmd set_filter_width -mode CW -value 500\n", os.Args[0])
	fmt.Printf("  %s -status\n", os.Args[0])
	fmt.Printf("  %s -watch\n", os.Args[0])
}
