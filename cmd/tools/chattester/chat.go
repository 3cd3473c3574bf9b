package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/dadmind/backend/internal/service/chat"
	"github.com/zhouzirui/dadmind/backend/internal/service/conversation"
	"github.com/zhouzirui/dadmind/backend/internal/service/document"
	"github.com/zhouzirui/dadmind/backend/internal/storage"
)

func newChatCommand(opts *rootOptions) *cobra.Command {
	var filePath string

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send one message through the streaming pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			return runChat(ctx, opts, strings.Join(args, " "), filePath)
		},
	}
	cmd.Flags().StringVarP(&filePath, "file", "f", "", "attach a .pdf, .docx, .txt or .md document")
	return cmd
}

func runChat(ctx context.Context, opts *rootOptions, text, filePath string) error {
	logger := opts.logger()

	cfg, aiService, err := loadAI(ctx, logger)
	if err != nil {
		return err
	}

	var completer conversation.Completer
	if aiService != nil {
		completer = aiService
	}
	pipeline := conversation.New(completer,
		conversation.WithLogger(logger),
		conversation.WithExcerptLimit(cfg.Document.PromptExcerpt),
	)

	store := chat.NewRegistry(storage.NewMemory(), chat.WithLogger(logger)).Store(ctx, "chattester")
	session := store.CreateSession(ctx)
	if _, err := pipeline.Open(session); err != nil {
		return err
	}
	defer pipeline.Close(session.ID)

	req := conversation.Request{SessionID: session.ID, Text: text}
	if filePath != "" {
		attachment, err := ingest(ctx, cfg.Document.MaxChars, filePath)
		if err != nil {
			return err
		}
		req.File = &attachment
	}

	printHeader("You")
	fmt.Println(text)
	fmt.Println()

	sub, err := pipeline.Send(ctx, store, req)
	if err != nil {
		fmt.Println(errorStyle.Render(conversation.ErrorText(err)))
		return err
	}

	// 回复与请求上下文解耦，超时需要显式取消
	go func() {
		select {
		case <-ctx.Done():
			sub.Cancel()
		case <-sub.Done():
		}
	}()

	printHeader("DadMind")
	fragments := 0
	var final string
	for ev := range sub.Events() {
		switch ev.Type {
		case conversation.EventDelta:
			fragments++
			fmt.Print(faintStyle.Render(ev.Delta))
		case conversation.EventMessage:
			final = ev.Message.Text
		case conversation.EventError:
			fmt.Println()
			fmt.Println(errorStyle.Render(ev.Message.Text))
		}
	}
	if err := sub.Wait(); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println()
	printHeader(fmt.Sprintf("Rendered (%d fragments)", fragments))
	printMarkdown(final)
	return nil
}

func ingest(ctx context.Context, maxChars int, path string) (conversation.Attachment, error) {
	ingester, err := document.NewIngester(ctx, maxChars)
	if err != nil {
		return conversation.Attachment{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return conversation.Attachment{}, err
	}
	defer f.Close()

	doc, err := ingester.Ingest(ctx, filepath.Base(path), f)
	if err != nil {
		return conversation.Attachment{}, err
	}
	for _, notice := range doc.Notices {
		fmt.Println(faintStyle.Render(notice))
	}
	return conversation.Attachment{FileName: doc.FileName, Content: doc.Content}, nil
}
