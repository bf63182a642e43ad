package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gatelog/internal/agent"
	"gatelog/internal/anpr"
	"gatelog/internal/gatelog/types"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".gatelog", "agent.toml"), nil
}

func configPath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path, nil
	}
	return defaultConfigPath()
}

// newAgent reads the config and wires up the capture pipeline.
func newAgent(cmd *cobra.Command) (*agent.Agent, *agent.Config, error) {
	path, err := configPath(cmd)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := agent.ReadFromFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading config: %w", err)
	}

	logger := log.New(os.Stdout, "gatelog-agent ", log.LstdFlags)
	camera := agent.NewSnapshotCamera(cfg.Camera)
	detector := anpr.NewPlateRecognizer(cfg.Recognizer.Endpoint, cfg.Recognizer.Token)
	client := agent.NewClient(cfg.Server.BaseURL)

	return agent.New(cfg, camera, detector, client, logger), cfg, nil
}

var rootCmd = &cobra.Command{
	Use:   "gatelog-agent",
	Short: "Checkpoint camera agent for the vehicle ledger",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath(cmd)
		if err != nil {
			return err
		}

		cfg := agent.NewConfig(filepath.Dir(path))
		if err := agent.InitConfig(path, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", path)
		fmt.Println("Edit it to set the camera snapshot URL and recognizer token.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configPath(cmd)
		if err != nil {
			return err
		}

		cfg, err := agent.ReadFromFile(path)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", path)
		fmt.Printf("Server:     %s\n", cfg.Server.BaseURL)
		fmt.Printf("Camera:     %s\n", cfg.Camera.SnapshotURL)
		fmt.Printf("Recognizer: %s\n", cfg.Recognizer.Endpoint)
		fmt.Printf("Photos Dir: %s\n", cfg.PhotosDir)
		fmt.Printf("Interval:   %s\n", cfg.Interval())
		return nil
	},
}

// watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the capture loop until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, cfg, err := newAgent(cmd)
		if err != nil {
			return err
		}

		fmt.Printf("Watching %s every %s\n", cfg.Camera.SnapshotURL, cfg.Interval())

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := a.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

// detect command
var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run a single capture-recognize-report cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := newAgent(cmd)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		resp, err := a.RunOnce(ctx)
		if err != nil {
			return err
		}
		if resp == nil {
			fmt.Println("No plate detected.")
			return nil
		}

		switch resp.Decision {
		case types.DecisionOpen:
			fmt.Printf("%s entered (event %s)\n", resp.VehicleNo, resp.EventID)
			if resp.FormURL != "" {
				fmt.Printf("Visitor form: %s\n", resp.FormURL)
			}
		case types.DecisionClose:
			fmt.Printf("%s exited (event %s)\n", resp.VehicleNo, resp.EventID)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to agent config file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(detectCmd)
}
