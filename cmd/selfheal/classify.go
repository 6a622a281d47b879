package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hochfrequenz/e2e-self-heal/internal/classify"
	"github.com/hochfrequenz/e2e-self-heal/internal/domain"
	"github.com/hochfrequenz/e2e-self-heal/internal/instructions"
)

var (
	classifyPlaywright string
	classifyBackend    string
	classifyWithPlan   bool
)

func init() {
	classifyCmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a failure from its Playwright and backend logs",
		RunE:  runClassify,
	}
	classifyCmd.Flags().StringVar(&classifyPlaywright, "playwright", "", "Playwright log file")
	classifyCmd.Flags().StringVar(&classifyBackend, "backend", "", "backend log file")
	classifyCmd.Flags().BoolVar(&classifyWithPlan, "instructions", false, "include the agent instructions for the error type")
	rootCmd.AddCommand(classifyCmd)
}

func readOptional(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

func runClassify(cmd *cobra.Command, args []string) error {
	if classifyPlaywright == "" && classifyBackend == "" {
		return fail("missing-log", fmt.Errorf("pass --playwright and/or --backend"))
	}
	pw, err := readOptional(classifyPlaywright)
	if err != nil {
		return fail("missing-log", err)
	}
	be, err := readOptional(classifyBackend)
	if err != nil {
		return fail("missing-log", err)
	}

	c := classify.Classify(pw, be)
	summary(dimColor, "%s (%s confidence)", c.ErrorType, c.Confidence)
	if !classifyWithPlan {
		return printJSON(c)
	}
	return printJSON(struct {
		Classification domain.Classification `json:"classification"`
		Instructions   instructions.Set      `json:"instructions"`
	}{c, instructions.BuildFor(c.ErrorType, cfg.FixAgent.Branch, cfg.FixAgent.Base)})
}
