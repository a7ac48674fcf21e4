package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/TechFutureAIFPT/hr-support/internal/ai"
	"github.com/TechFutureAIFPT/hr-support/internal/export"
	"github.com/TechFutureAIFPT/hr-support/internal/filtering"
	"github.com/TechFutureAIFPT/hr-support/internal/logger"
	"github.com/TechFutureAIFPT/hr-support/internal/pipeline"
)

const (
	PromptYes                 = "Yes"
	PromptNo                  = "No"
	PromptAsk                 = "Ask the assistant"
	PromptAppendToExcludeFile = "Append candidates to exclude file"
	PromptExit                = "Exit"
)

var errExit = errors.New("exit requested")

var confirmPrompt = promptui.Select{
	Label: "Proceed?",
	Items: []string{PromptYes, PromptNo},
}

var runCmd = &cobra.Command{
	Use:   "run [file|dir|s3://bucket/key]...",
	Short: "Extract CVs and rank them against a job description",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		run(cmd, args)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("jd", "", "file with the job description (required)")
	runCmd.Flags().Bool("structure-jd", false, "restructure the job description with the model before analysis")
	runCmd.Flags().StringP("criteria", "c", "", "YAML file with scoring criteria and hard filters")
	runCmd.Flags().String("language", "", "language of the model answers (default VIETNAMESE)")
	runCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation and skip the interactive menu")
	runCmd.Flags().String("xlsx", "", "write the ranking to this spreadsheet")
	runCmd.Flags().String("json-out", "", "write the ranking to this JSON file")
	runCmd.Flags().Float64("min-score", 0, "hide scored candidates below this total score")
	runCmd.Flags().Bool("hide-failed", false, "hide files that could not be read")
	runCmd.Flags().Bool("passed-only", false, "hide candidates failing a mandatory hard filter")
	runCmd.Flags().StringP("exclude-file", "e", "", "file listing already reviewed CV file names to hide")

	_ = runCmd.MarkFlagRequired("jd")

	viper.BindPFlag("scoring", runCmd.Flags().Lookup("criteria"))
	viper.BindPFlag("language", runCmd.Flags().Lookup("language"))
	viper.BindPFlag("filters.min-score", runCmd.Flags().Lookup("min-score"))
	viper.BindPFlag("filters.hide-failed", runCmd.Flags().Lookup("hide-failed"))
	viper.BindPFlag("filters.passed-only", runCmd.Flags().Lookup("passed-only"))
	viper.BindPFlag("filters.exclude-file", runCmd.Flags().Lookup("exclude-file"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, config := setup()
	out := printer{out: cmd.OutOrStdout()}

	logger.Info("starting the hr-support", zap.String("version", version))

	jdPath, _ := cmd.Flags().GetString("jd")
	rawJD, err := os.ReadFile(jdPath)
	if err != nil {
		logger.Fatal("reading job description", zap.Error(err))
	}
	jd := strings.TrimSpace(string(rawJD))
	if jd == "" {
		logger.Fatal("job description is empty", zap.String("file", jdPath))
	}

	a, err := newApplication(ctx, config, logger, appOptions{withModel: true, withLock: true})
	if err != nil {
		logger.Fatal("building application", zap.Error(err))
	}
	defer a.Close(context.Background())

	loader, err := a.loader(ctx, args)
	if err != nil {
		logger.Fatal("preparing sources", zap.Error(err))
	}
	files, err := loader.Load(ctx, args)
	if err != nil {
		logger.Fatal("loading files", zap.Error(err))
	}

	if structure, _ := cmd.Flags().GetBool("structure-jd"); structure {
		structured, err := a.analyzer.StructureJobDescription(ctx, jd)
		if err != nil {
			logger.Fatal("structuring job description", zap.Error(err))
		}
		jd = structured
	}
	jobTitle := a.analyzer.ExtractJobTitle(ctx, jd)

	autoApprove, _ := cmd.Flags().GetBool("auto-approve")

	out.info("%d files ready for %s", len(files), orDefault(jobTitle, "the job description"))
	if !autoApprove {
		if _, answer, err := confirmPrompt.Run(); err != nil || answer != PromptYes {
			logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
	}

	var candidates []pipeline.Candidate
	acquired, err := a.coordinator.RunExclusive(ctx, func(ctx context.Context) error {
		stream := a.controller.Run(ctx, pipeline.Input{
			JobDescription: jd,
			Scoring:        a.scoring,
			Files:          files,
			Language:       config.Language,
		})
		defer stream.Close()

		var err error
		candidates, err = stream.Collect(out.progress)
		return err
	})
	if !acquired && err == nil {
		out.warning("another analysis is running, try again later")
		a.Close(context.Background())
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal("analysis failed", zap.Error(err))
	}

	visible, err := filtering.Run(ctx, &config.Filters, filtering.Deps{Logger: logger}, filtering.Default(), candidates)
	if err != nil {
		logger.Fatal("filtering failed", zap.Error(err))
	}

	out.ranking(jobTitle, visible)
	writeExports(cmd, logger, out, export.Report{JobTitle: jobTitle, GeneratedAt: time.Now(), Candidates: visible})

	if autoApprove {
		return
	}

	batch := ai.Batch{JobTitle: jobTitle, Language: config.Language, Candidates: visible}
	for {
		if err := handleAction(ctx, a, out, config, batch); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

// setup builds the logger and reads the configuration, exiting on failure.
func setup() (*zap.Logger, *Config) {
	if viper.GetBool("no-color") {
		noColor()
	}
	log, err := logger.New(logger.Options{
		JSON:  viper.GetBool("json"),
		Debug: viper.GetBool("debug"),
		Color: !color.NoColor,
	})
	if err != nil {
		stdLogFatal("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		log.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		log.Fatal("config is required")
	}
	return log, config
}

func writeExports(cmd *cobra.Command, logger *zap.Logger, out printer, report export.Report) {
	for _, flag := range []string{"xlsx", "json-out"} {
		path, _ := cmd.Flags().GetString(flag)
		if path == "" {
			continue
		}
		if flag == "xlsx" && !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
			path += ".xlsx"
		}
		if err := export.Save(path, report); err != nil {
			logger.Error("export failed", zap.String("path", path), zap.Error(err))
			continue
		}
		out.success("saved %s", path)
	}
}

func handleAction(ctx context.Context, a *application, out printer, config *Config, batch ai.Batch) error {
	items := []string{PromptAsk}
	if config.Filters.ExcludeFile != "" && len(batch.Candidates) > 0 {
		items = append(items, PromptAppendToExcludeFile)
	}
	items = append(items, PromptExit)

	menu := promptui.Select{Label: "What next?", Items: items}
	_, action, err := menu.Run()
	if err != nil {
		return err
	}

	switch action {
	case PromptAsk:
		question, err := (&promptui.Prompt{Label: "Question"}).Run()
		if err != nil {
			return err
		}
		advice, err := a.advisor.Advise(ctx, batch, question)
		if errors.Is(err, ai.ErrEmptyQuestion) {
			return nil
		}
		if err != nil {
			out.warning("%v", err)
			return nil
		}
		out.advice(advice, batch.Candidates)
		return nil
	case PromptAppendToExcludeFile:
		if err := filtering.AppendExcludeFile(config.Filters.ExcludeFile, batch.Candidates); err != nil {
			return err
		}
		out.success("appended %d file names to %s", len(batch.Candidates), config.Filters.ExcludeFile)
		return nil
	case PromptExit:
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func stdLogFatal(format string, args ...any) {
	log.Fatalf(format, args...)
}
