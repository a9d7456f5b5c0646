// Command miniswe runs an LLM-driven agent that solves a task by
// executing shell commands, by default inside a Docker container.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"miniswe/internal/agent"
	"miniswe/internal/config"
	"miniswe/internal/environment"
	"miniswe/internal/models"
	"miniswe/internal/session"
)

func main() {
	// Load .env file if it exists.
	_ = godotenv.Load()

	if err := run(context.Background(), os.Args[1:]); err != nil {
		log.Fatalf("miniswe failed: %v", err)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("miniswe", flag.ExitOnError)
	task := fs.String("t", "", "Task for the agent (or pass it as positional arguments)")
	configPath := fs.String("c", "", "Path to a YAML run configuration")
	image := fs.String("i", "", "Docker image to start a new container from")
	containerID := fs.String("container-id", "", "Adopt an existing container by id")
	containerName := fs.String("container-name", "", "Adopt an existing container by name")
	cwd := fs.String("w", "", "Working directory for commands")
	local := fs.Bool("local", false, "Run commands on the host instead of a container")
	output := fs.String("o", "", "Write the transcript JSON to this file")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *task == "" && fs.NArg() > 0 {
		*task = strings.Join(fs.Args(), " ")
	}
	if *task == "" {
		return errors.New("a task is required: miniswe -t \"...\" or miniswe \"...\"")
	}

	// Saved user preferences feed the model factory through the process
	// environment, same as a .env file would.
	if manager, err := config.NewManager(); err == nil {
		if user, err := manager.Load(); err == nil {
			user.ApplyToEnv()
		} else {
			log.Printf("WARNING: failed to load user config: %v", err)
		}
	}

	fileCfg := &config.File{Agent: agent.DefaultConfig()}
	if *configPath != "" {
		var err error
		fileCfg, err = config.Load(*configPath)
		if err != nil {
			return err
		}
	}
	applyModelSettings(fileCfg.Model)

	envCfg := fileCfg.Environment.Config()
	if *image != "" {
		envCfg.Image = *image
	}
	if *containerID != "" {
		envCfg.ContainerID = *containerID
	}
	if *containerName != "" {
		envCfg.ContainerName = *containerName
	}
	if *cwd != "" {
		envCfg.Cwd = *cwd
	}

	var env environment.Environment
	if *local {
		env = environment.NewLocalEnvironment(environment.LocalConfig{
			Cwd:     envCfg.Cwd,
			Env:     envCfg.Env,
			Timeout: envCfg.Timeout,
		})
	} else {
		denv := environment.NewDockerEnvironment(envCfg)
		if err := denv.Start(ctx); err != nil {
			return fmt.Errorf("failed to acquire container: %w", err)
		}
		env = denv
	}
	defer env.Cleanup()

	model, err := models.FromEnv()
	if err != nil {
		return err
	}
	log.Printf("Using model %s", model.Name())

	ag := agent.New(model, env, fileCfg.Agent)
	final, runErr := ag.Run(ctx, *task)

	status := session.StatusSubmitted
	switch {
	case agent.IsLimitsExceeded(runErr):
		status = session.StatusLimits
	case runErr != nil:
		status = session.StatusError
	}

	persistRun(ctx, ag, model.Name(), *task, status)
	if *output != "" {
		if err := writeTranscript(*output, ag.Messages()); err != nil {
			log.Printf("WARNING: failed to write transcript: %v", err)
		}
	}

	if runErr != nil {
		return runErr
	}
	fmt.Print(final)
	return nil
}

// persistRun records the transcript in the session database. Failures
// only warn: losing a record must not fail the run itself.
func persistRun(ctx context.Context, ag *agent.Agent, modelName, task, status string) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		log.Printf("WARNING: failed to locate config dir: %v", err)
		return
	}
	dir := filepath.Join(configDir, "miniswe")
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("WARNING: failed to create session dir: %v", err)
		return
	}

	store, err := session.Open(ctx, filepath.Join(dir, "sessions.db"))
	if err != nil {
		log.Printf("WARNING: failed to open session store: %v", err)
		return
	}
	defer store.Close()

	run := &session.Run{
		Task:     task,
		Model:    modelName,
		Status:   status,
		Steps:    ag.Steps(),
		Cost:     ag.Cost(),
		Messages: ag.Messages(),
	}
	if err := store.Save(ctx, run); err != nil {
		log.Printf("WARNING: failed to save session: %v", err)
		return
	}
	log.Printf("Saved session %s", run.ID)
}

func writeTranscript(path string, messages []models.ChatMessage) error {
	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func applyModelSettings(settings config.ModelSettings) {
	if settings.Provider != "" {
		os.Setenv("LLM_PROVIDER", settings.Provider)
	}
	if settings.Name == "" {
		return
	}
	switch settings.Provider {
	case "anthropic":
		os.Setenv("ANTHROPIC_MODEL", settings.Name)
	case "deepseek":
		os.Setenv("DEEPSEEK_MODEL", settings.Name)
	case "groq":
		os.Setenv("GROQ_MODEL", settings.Name)
	case "ollama":
		os.Setenv("OLLAMA_MODEL", settings.Name)
	default:
		os.Setenv("OPENAI_MODEL", settings.Name)
	}
}
