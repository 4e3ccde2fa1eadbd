package provider

import "fmt"

// PipePath is where the supervisor listens for lifecycle commands inside the
// node scope. The native provider passes a pipe under the node base path
// instead; the script uses whichever path it is given.
const PipePath = "/tmp/zombiepipe"

// Supervisor commands understood by the wrapper script.
const (
	CmdStart   = "start"
	CmdPause   = "pause"
	CmdResume  = "resume"
	CmdRestart = "restart"
	CmdQuit    = "quit"
)

// WrapperScript is the supervisor every node runs under, across all
// providers. It starts the node binary as a child and reads single-line
// commands from a named pipe: start, pause, resume, restart [secs], quit.
// Invocation: zombie-wrapper.sh <pipe> <start-paused:0|1> <cmd> [args...]
const WrapperScript = `#!/bin/sh
set -u

PIPE="$1"
START_PAUSED="$2"
shift 2

rm -f "$PIPE"
mkfifo "$PIPE"

CHILD=0

start_child() {
    "$@" &
    CHILD=$!
}

stop_child() {
    if [ "$CHILD" != "0" ]; then
        kill "$CHILD" 2>/dev/null
        wait "$CHILD" 2>/dev/null
        CHILD=0
    fi
}

if [ "$START_PAUSED" = "0" ]; then
    start_child "$@"
fi

while true; do
    if read line < "$PIPE"; then
        cmd=$(echo "$line" | cut -d' ' -f1)
        arg=$(echo "$line" | cut -s -d' ' -f2)
        case "$cmd" in
            start)
                if [ "$CHILD" = "0" ]; then start_child "$@"; fi
                ;;
            pause)
                [ "$CHILD" != "0" ] && kill -STOP "$CHILD"
                ;;
            resume)
                [ "$CHILD" != "0" ] && kill -CONT "$CHILD"
                ;;
            restart)
                stop_child
                [ -n "$arg" ] && sleep "$arg"
                start_child "$@"
                ;;
            quit)
                stop_child
                rm -f "$PIPE"
                exit 0
                ;;
        esac
    fi
done
`

// RestartCommand renders the pipe line for a restart with an optional delay.
func RestartCommand(secs int) string {
	if secs > 0 {
		return fmt.Sprintf("%s %d", CmdRestart, secs)
	}
	return CmdRestart
}
