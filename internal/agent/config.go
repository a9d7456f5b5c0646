package agent

// Config holds the agent loop settings. Template strings are rendered
// with text/template; the data is the environment's template vars plus
// per-template fields documented on each default.
type Config struct {
	// SystemTemplate is the system prompt. Data: environment vars.
	SystemTemplate string `yaml:"system_template"`
	// InstanceTemplate opens the conversation. Data: environment vars
	// plus {{.task}}.
	InstanceTemplate string `yaml:"instance_template"`
	// ActionObservationTemplate reports a finished command. Data:
	// {{.output}} and {{.returncode}}.
	ActionObservationTemplate string `yaml:"action_observation_template"`
	// FormatErrorTemplate is sent back when the reply did not contain
	// exactly one bash code block. Data: {{.actions}} (count found).
	FormatErrorTemplate string `yaml:"format_error_template"`
	// TimeoutTemplate reports a timed-out command. Data: {{.error}}.
	TimeoutTemplate string `yaml:"timeout_template"`
	// StepLimit caps loop iterations; 0 means unlimited.
	StepLimit int `yaml:"step_limit"`
	// CostLimit caps accumulated dollar cost; 0 means unlimited.
	CostLimit float64 `yaml:"cost_limit"`
}

// DefaultConfig returns the stock prompt set and limits.
func DefaultConfig() Config {
	return Config{
		SystemTemplate: `You are a helpful assistant that solves tasks by executing shell commands.

Your response must contain exactly ONE bash code block with ONE command (or commands chained with && or ;).
Include a short thought before the code block. Do not ask for confirmation; just act.

Format every response like this:

A short thought about the next step.

` + "```bash" + `
your_command_here
` + "```" + `

When the task is fully solved, submit by making the FIRST line of your command's output the literal marker:

` + "```bash" + `
echo COMPLETE_TASK_AND_SUBMIT_FINAL_OUTPUT && echo "summary of what was done"
` + "```",
		InstanceTemplate: `Please solve this task:

{{.task}}

You are working in {{.cwd}}. Commands run through bash -lc with a timeout; long-running or interactive commands will be killed.`,
		ActionObservationTemplate: `Observation (exit code {{.returncode}}):
{{.output}}`,
		FormatErrorTemplate: `Your response contained {{.actions}} bash code blocks, but exactly one is required. Reply with a single bash code block.`,
		TimeoutTemplate:     `The command was aborted: {{.error}}. No output was captured. Use a faster command or raise the timeout.`,
		StepLimit:           50,
		CostLimit:           3.0,
	}
}
