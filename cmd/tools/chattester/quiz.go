package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	quizmodel "github.com/zhouzirui/dadmind/backend/internal/model/quiz"
	"github.com/zhouzirui/dadmind/backend/internal/service/quiz"
)

func newQuizCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "quiz [choice...]",
		Short: "Score the stress quiz from 1-based option numbers, one per question",
		Long: `Options are listed from most to least stressed, so "1 1 1 1 1" is the
highest score and "4 4 4 4 4" is zero. Missing answers are reported the
same way the submit endpoint reports them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			return runQuiz(ctx, opts, args)
		},
	}
}

func runQuiz(ctx context.Context, opts *rootOptions, args []string) error {
	logger := opts.logger()

	_, aiService, err := loadAI(ctx, logger)
	if err != nil {
		return err
	}

	var adviser quiz.Adviser
	if aiService != nil {
		adviser = aiService
	}

	questions := quizmodel.Seed()
	answers := make(map[string]string, len(questions))
	for i, q := range questions {
		if i >= len(args) {
			break
		}
		n, err := strconv.Atoi(args[i])
		if err != nil || n < 1 || n > len(q.Options) {
			return fmt.Errorf("answer %d: want a number between 1 and %d, got %q", i+1, len(q.Options), args[i])
		}
		answers[q.ID] = q.Options[n-1].ID
	}

	result, err := quiz.NewService(questions, adviser, logger).Submit(ctx, answers)
	if err != nil {
		fmt.Println(errorStyle.Render(err.Error()))
		return err
	}

	printHeader(fmt.Sprintf("Stress %d%% (%d/%d)", result.Percentage, result.Score, result.MaxScore))
	fmt.Println(result.Feedback)
	fmt.Println()
	if result.Advice != "" {
		printHeader("Advice")
		printMarkdown(result.Advice)
	}
	if result.AdviceError != "" {
		fmt.Println(errorStyle.Render(result.AdviceError))
	}
	return nil
}
