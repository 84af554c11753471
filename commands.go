package nebulite

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// CommandContext is the environment a CommandHandler runs against: the
// owning document (spec.md §4.6 "set <key> <value> on the owned
// document"), the global document, and the queue a handler may push
// further commands onto.
type CommandContext struct {
	Self   *Document
	Global *Document
	Queue  *CommandQueue
}

// CommandHandler executes one dispatched command and returns its result
// code (spec.md §7).
type CommandHandler func(args []string, vars map[string]string, ctx *CommandContext) Code

// CommandTree is the command dispatch table of spec.md §4.6/§9: a flat map
// from a command's first token to its handler (multi-token command paths
// are not supported). Names are registered once (statically) and collisions
// panic at registration time rather than silently overwriting a handler.
type CommandTree struct {
	mu       sync.RWMutex
	handlers map[string]CommandHandler
}

// NewCommandTree creates an empty CommandTree.
func NewCommandTree() *CommandTree {
	return &CommandTree{handlers: make(map[string]CommandHandler)}
}

// Register binds name to h. Registering the same name twice panics
// (handler collision), per the §9 design note — this is a programming
// error caught at startup, not a runtime condition.
func (t *CommandTree) Register(name string, h CommandHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.handlers[name]; exists {
		panic(fmt.Sprintf("nebulite: command handler already registered for %q", name))
	}
	t.handlers[name] = h
}

// tokenizeCommand splits a command line into its "--key=value" leading
// tokens and the remaining name+args tokens (spec.md §6).
func tokenizeCommand(line string) (vars map[string]string, rest []string) {
	vars = make(map[string]string)
	fields := strings.Fields(line)
	i := 0
	for i < len(fields) && strings.HasPrefix(fields[i], "--") {
		kv := fields[i][2:]
		eq := strings.IndexByte(kv, '=')
		if eq < 0 {
			vars[kv] = ""
		} else {
			vars[kv[:eq]] = kv[eq+1:]
		}
		i++
	}
	return vars, fields[i:]
}

// Dispatch tokenizes line, binds any leading "--key=value" variables, and
// invokes the handler named by the first remaining token.
func (t *CommandTree) Dispatch(line string, ctx *CommandContext) Code {
	vars, rest := tokenizeCommand(line)
	if len(rest) == 0 {
		return CodeTooFewArgs
	}
	name := rest[0]
	args := rest[1:]

	t.mu.RLock()
	h, ok := t.handlers[name]
	t.mu.RUnlock()
	if !ok {
		log.Warnw("unknown command", "name", name)
		return CodeUnknownArg
	}
	return h(args, vars, ctx)
}

// RegisterCoreCommands installs the minimal handler set this module needs
// to demonstrate and test the dispatch mechanism itself (spec.md §4.6:
// "the exact command inventory is out of core scope"). Hosts may register
// additional handlers on the same tree.
func RegisterCoreCommands(t *CommandTree) {
	t.Register("set", cmdSet)
	t.Register("add", cmdAdd)
	t.Register("log", cmdLog)
	t.Register("wait", cmdWait)
}

func cmdSet(args []string, vars map[string]string, ctx *CommandContext) Code {
	if len(args) < 2 {
		return CodeTooFewArgs
	}
	if ctx == nil || ctx.Self == nil {
		return CodeGeneral
	}
	ctx.Self.SetString(args[0], strings.Join(args[1:], " "))
	return CodeNone
}

func cmdAdd(args []string, vars map[string]string, ctx *CommandContext) Code {
	if len(args) < 2 {
		return CodeTooFewArgs
	}
	if ctx == nil || ctx.Self == nil {
		return CodeGeneral
	}
	delta, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return CodeArgParseError
	}
	ctx.Self.SetAdd(args[0], delta)
	return CodeNone
}

func cmdLog(args []string, vars map[string]string, ctx *CommandContext) Code {
	log.Infow("command log", "message", strings.Join(args, " "))
	return CodeNone
}

func cmdWait(args []string, vars map[string]string, ctx *CommandContext) Code {
	if len(args) < 1 {
		return CodeTooFewArgs
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return CodeArgParseError
	}
	if ctx == nil || ctx.Queue == nil {
		return CodeGeneral
	}
	ctx.Queue.SetWaitCounter(n)
	return CodeNone
}
