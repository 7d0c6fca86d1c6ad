package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flynn-ai/llmgate/internal/errors"
	"github.com/flynn-ai/llmgate/pkg/protocol"
)

var (
	chatProvider string
	chatModel    string
	chatSystem   string
	chatJSON     bool
)

var chatCmd = &cobra.Command{
	Use:   "chat <prompt>",
	Short: "Send one prompt through the tool-calling loop",
	Long: `Runs a single prompt through the same loop the HTTP API uses and prints
the final answer. Tool calls made along the way are listed on stderr.

Example:
  llmgate chat --provider ollama "What is 17 * 23?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatProvider, "provider", "p", "", "backend provider (default from config)")
	chatCmd.Flags().StringVarP(&chatModel, "model", "m", "", "model name (default depends on the provider)")
	chatCmd.Flags().StringVarP(&chatSystem, "system", "s", "", "system message replacing the tool instructions")
	chatCmd.Flags().BoolVar(&chatJSON, "json", false, "print the full response as JSON")
}

func runChat(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	req := chatRequest(strings.Join(args, " "), chatSystem, chatProvider, chatModel)
	resp, err := a.agent.Chat(ctx, req)
	if err != nil {
		return fmt.Errorf("%s", errors.FormatUserMessage(err))
	}
	return printChat(cmd.OutOrStdout(), cmd.ErrOrStderr(), resp, chatJSON)
}

func chatRequest(prompt, system, provider, model string) *protocol.ChatRequest {
	var msgs protocol.Conversation
	if system != "" {
		msgs = append(msgs, protocol.Message{Role: protocol.RoleSystem, Content: system})
	}
	msgs = append(msgs, protocol.Message{Role: protocol.RoleUser, Content: prompt})
	return &protocol.ChatRequest{Messages: msgs, Provider: provider, Model: model}
}

func printChat(out, errOut io.Writer, resp *protocol.ChatResponse, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	for _, call := range resp.ToolCallsMade {
		args, _ := json.Marshal(call.Arguments)
		fmt.Fprintf(errOut, "-> %s %s\n", call.Tool, args)
	}
	if resp.Usage != nil {
		fmt.Fprintf(errOut, "[%s/%s, %d iterations, %d tokens]\n",
			resp.Provider, resp.Model, resp.Iterations, resp.Usage.TotalTokens)
	}
	_, err := fmt.Fprintln(out, resp.Message.Content)
	return err
}
