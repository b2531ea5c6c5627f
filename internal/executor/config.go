package executor

// Config holds the command executor configuration.
type Config struct {
	// Command is the executable to run, e.g. "powershell" or "osascript".
	Command string
}
