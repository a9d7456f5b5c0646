// Package agent implements the command loop: query the model, run the
// returned shell command in the environment, feed the observation back,
// until the task is submitted or a limit trips.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"text/template"

	"miniswe/internal/environment"
	"miniswe/internal/models"
)

// SubmitMarker is the first output line that signals task completion.
// Everything after it is the final output.
const SubmitMarker = "COMPLETE_TASK_AND_SUBMIT_FINAL_OUTPUT"

var actionRe = regexp.MustCompile("(?s)```bash\\s*\n(.*?)\n```")

// Agent drives one model against one environment. Not safe for
// concurrent use; run one agent per goroutine.
type Agent struct {
	config Config
	model  models.Model
	env    environment.Environment
	logger *log.Logger

	messages []models.ChatMessage
	steps    int
	cost     float64
}

// New creates an agent. Zero-valued template fields fall back to the
// defaults so partial configs stay usable.
func New(model models.Model, env environment.Environment, cfg Config) *Agent {
	defaults := DefaultConfig()
	if cfg.SystemTemplate == "" {
		cfg.SystemTemplate = defaults.SystemTemplate
	}
	if cfg.InstanceTemplate == "" {
		cfg.InstanceTemplate = defaults.InstanceTemplate
	}
	if cfg.ActionObservationTemplate == "" {
		cfg.ActionObservationTemplate = defaults.ActionObservationTemplate
	}
	if cfg.FormatErrorTemplate == "" {
		cfg.FormatErrorTemplate = defaults.FormatErrorTemplate
	}
	if cfg.TimeoutTemplate == "" {
		cfg.TimeoutTemplate = defaults.TimeoutTemplate
	}
	return &Agent{
		config: cfg,
		model:  model,
		env:    env,
		logger: log.Default(),
	}
}

// SetLogger replaces the default logger.
func (a *Agent) SetLogger(l *log.Logger) { a.logger = l }

// Messages returns the full conversation so far.
func (a *Agent) Messages() []models.ChatMessage { return a.messages }

// Steps returns the number of completed loop iterations.
func (a *Agent) Steps() int { return a.steps }

// Cost returns the accumulated dollar cost.
func (a *Agent) Cost() float64 { return a.cost }

// Run executes the loop for one task and returns the submitted final
// output. A timed-out or failed command becomes an observation for the
// model, not a loop abort; only model errors, context cancellation and
// exhausted limits end the run early.
func (a *Agent) Run(ctx context.Context, task string) (string, error) {
	vars := a.env.TemplateVars()

	system, err := a.render(a.config.SystemTemplate, vars)
	if err != nil {
		return "", err
	}
	instance, err := a.render(a.config.InstanceTemplate, withTask(vars, task))
	if err != nil {
		return "", err
	}
	a.messages = []models.ChatMessage{
		{Role: models.RoleSystem, Content: system},
		{Role: models.RoleUser, Content: instance},
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		a.steps++
		if a.config.StepLimit > 0 && a.steps > a.config.StepLimit {
			return "", &LimitsExceededError{Steps: a.steps - 1, Cost: a.cost}
		}

		reply, usage, err := a.model.Query(ctx, a.messages)
		if err != nil {
			return "", err
		}
		a.cost += usage.Cost
		a.messages = append(a.messages, reply)
		if a.config.CostLimit > 0 && a.cost > a.config.CostLimit {
			return "", &LimitsExceededError{Steps: a.steps, Cost: a.cost}
		}

		action, count, err := parseAction(reply.Content)
		if err != nil {
			observation, rerr := a.render(a.config.FormatErrorTemplate, map[string]any{"actions": count})
			if rerr != nil {
				return "", rerr
			}
			a.observe(observation)
			continue
		}

		a.logger.Printf("step %d: executing %q", a.steps, action)
		result, err := a.env.Execute(ctx, action, environment.ExecOpts{})
		if errors.Is(err, environment.ErrCommandTimeout) {
			observation, rerr := a.render(a.config.TimeoutTemplate, map[string]any{"error": err.Error()})
			if rerr != nil {
				return "", rerr
			}
			a.observe(observation)
			continue
		}
		if err != nil {
			return "", err
		}

		if final, ok := submission(result); ok {
			a.logger.Printf("task submitted after %d steps ($%.4f)", a.steps, a.cost)
			return final, nil
		}

		observation, err := a.render(a.config.ActionObservationTemplate, map[string]any{
			"output":     result.Output,
			"returncode": result.ReturnCode,
		})
		if err != nil {
			return "", err
		}
		a.observe(observation)
	}
}

func (a *Agent) observe(content string) {
	a.messages = append(a.messages, models.ChatMessage{Role: models.RoleUser, Content: content})
}

func (a *Agent) render(tpl string, data map[string]any) (string, error) {
	parsed, err := template.New("prompt").Parse(tpl)
	if err != nil {
		return "", fmt.Errorf("invalid template: %w", err)
	}
	var sb strings.Builder
	if err := parsed.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("template rendering failed: %w", err)
	}
	return sb.String(), nil
}

// parseAction extracts the single bash code block from a reply. Zero or
// multiple blocks are a format error the model gets to correct.
func parseAction(content string) (action string, count int, err error) {
	matches := actionRe.FindAllStringSubmatch(content, -1)
	if len(matches) != 1 {
		return "", len(matches), errFormat
	}
	return strings.TrimSpace(matches[0][1]), 1, nil
}

// submission checks whether the command output starts with the submit
// marker; the remainder of the output is the final answer. Only a clean
// exit counts.
func submission(result environment.Result) (string, bool) {
	if result.ReturnCode != 0 {
		return "", false
	}
	lines := strings.SplitN(result.Output, "\n", 2)
	if strings.TrimSpace(lines[0]) != SubmitMarker {
		return "", false
	}
	if len(lines) < 2 {
		return "", true
	}
	return lines[1], true
}

func withTask(vars map[string]any, task string) map[string]any {
	data := make(map[string]any, len(vars)+1)
	for k, v := range vars {
		data[k] = v
	}
	data["task"] = task
	return data
}
